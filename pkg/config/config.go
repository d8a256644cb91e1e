package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/pipbot/gopip/internal/domain"
	"github.com/pipbot/gopip/internal/engine"
)

// SymbolEntry 单个品种的 YAML 配置
type SymbolEntry struct {
	Symbol        string  `yaml:"symbol"`
	PipSize       float64 `yaml:"pip_size"`
	ThresholdPips float64 `yaml:"threshold_pips"`
	LotSize       float64 `yaml:"lot_size"`
	VolumeStep    float64 `yaml:"volume_step"`
	Tradeable     *bool   `yaml:"tradeable"` // 缺省为 true
}

// AnchorConfig 每日锚点配置
type AnchorConfig struct {
	ServerTZ string `yaml:"server_tz"` // 服务器时区，默认 Etc/GMT-3
	Hour     int    `yaml:"hour"`      // 锚点小时（服务器时区），默认 8
	Minute   int    `yaml:"minute"`
}

// WindowsConfig 决策窗口配置（阈值比例的闭区间）
type WindowsConfig struct {
	PlaceMin float64 `yaml:"place_min"`
	PlaceMax float64 `yaml:"place_max"`
	CloseMin float64 `yaml:"close_min"`
	CloseMax float64 `yaml:"close_max"`
}

// PricefeedConfig 行情桥接配置
type PricefeedConfig struct {
	BaseURL        string  `yaml:"base_url"`
	TokenEnv       string  `yaml:"token_env"` // 持有 API token 的环境变量名
	TimeoutSec     int     `yaml:"timeout_sec"`
	RequestsPerSec float64 `yaml:"requests_per_sec"`
	StreamURL      string  `yaml:"stream_url"`      // WebSocket 推送地址，留空则纯 REST 轮询
	StaleAfterSec  int     `yaml:"stale_after_sec"` // 推送报价过期时间，默认 3s
}

// GatewayConfig 下单网关配置
type GatewayConfig struct {
	BaseURL    string `yaml:"base_url"`
	TokenEnv   string `yaml:"token_env"`
	TimeoutSec int    `yaml:"timeout_sec"`
}

// NotifyConfig 通知配置（webhook 从环境变量读取，不落 YAML）
type NotifyConfig struct {
	WebhookInfoEnv     string `yaml:"webhook_info_env"`     // 默认 DISCORD_WEBHOOK_INFO
	WebhookNormalEnv   string `yaml:"webhook_normal_env"`   // 默认 DISCORD_WEBHOOK_NORMAL
	WebhookCriticalEnv string `yaml:"webhook_critical_env"` // 默认 DISCORD_WEBHOOK_CRITICAL
	MaxPerMinute       int    `yaml:"max_per_minute"`
	CooldownSec        int    `yaml:"cooldown_sec"`
	DedupeTTLSec       int    `yaml:"dedupe_ttl_sec"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
	LogByDay   bool   `yaml:"log_by_day"` // 按交易日切分日志文件
}

// ConfigFile 配置文件结构（YAML 解析）
type ConfigFile struct {
	Symbols      []SymbolEntry   `yaml:"symbols"`
	Anchor       AnchorConfig    `yaml:"anchor"`
	Windows      WindowsConfig   `yaml:"windows"`
	Pricefeed    PricefeedConfig `yaml:"pricefeed"`
	Gateway      GatewayConfig   `yaml:"gateway"`
	Notify       NotifyConfig    `yaml:"notify"`
	Log          LogConfig       `yaml:"log"`
	PollMs       int             `yaml:"poll_ms"`   // 轮询间隔（毫秒），默认 1000
	MinStage     int             `yaml:"min_stage"` // 最低通知档位，默认 1
	JournalDB    string          `yaml:"journal_db"`
	ControlAddr  string          `yaml:"control_addr"` // 控制面板监听地址，留空不启动
	MetricsAddr  string          `yaml:"metrics_addr"` // pprof/expvar 监听地址，留空不启动
	DataDir      string          `yaml:"data_dir"`     // 快照 dump 目录
	SecretDBPath string          `yaml:"secret_db"`    // badger secret 库路径，留空不启用
	DryRun       bool            `yaml:"dry_run"`
}

// Config 应用配置（已补齐默认值、已叠加环境变量）
type Config struct {
	Symbols     []domain.SymbolConfig
	Anchor      AnchorConfig
	Windows     engine.Windows
	Pricefeed   PricefeedConfig
	Gateway     GatewayConfig
	Notify      NotifyConfig
	Log         LogConfig
	Poll        time.Duration
	MinStage    int
	JournalDB   string
	ControlAddr string
	MetricsAddr string
	DataDir     string
	SecretDB    string
	DryRun      bool
}

// Load 从 YAML 文件加载配置并叠加环境变量
// 优先级：环境变量 > 配置文件 > 默认值
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败 %s: %w", path, err)
	}

	var cf ConfigFile
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, fmt.Errorf("解析配置文件失败 %s: %w", path, err)
	}
	return build(&cf)
}

func build(cf *ConfigFile) (*Config, error) {
	cfg := &Config{
		Anchor:      cf.Anchor,
		Pricefeed:   cf.Pricefeed,
		Gateway:     cf.Gateway,
		Notify:      cf.Notify,
		Log:         cf.Log,
		JournalDB:   cf.JournalDB,
		ControlAddr: cf.ControlAddr,
		MetricsAddr: cf.MetricsAddr,
		DataDir:     cf.DataDir,
		SecretDB:    cf.SecretDBPath,
		DryRun:      parseBoolEnv("DRY_RUN", cf.DryRun),
	}

	// 品种列表
	for _, e := range cf.Symbols {
		sc := domain.SymbolConfig{
			Symbol:        e.Symbol,
			PipSize:       e.PipSize,
			ThresholdPips: e.ThresholdPips,
			LotSize:       e.LotSize,
			VolumeStep:    e.VolumeStep,
			Tradeable:     e.Tradeable == nil || *e.Tradeable,
		}
		if err := sc.Validate(); err != nil {
			return nil, fmt.Errorf("品种配置非法 %q: %w", e.Symbol, err)
		}
		cfg.Symbols = append(cfg.Symbols, sc)
	}
	if len(cfg.Symbols) == 0 {
		return nil, fmt.Errorf("配置中至少需要一个品种")
	}

	// 锚点默认值
	if cfg.Anchor.ServerTZ == "" {
		cfg.Anchor.ServerTZ = getEnv("SERVER_TZ", "Etc/GMT-3")
	}
	if cfg.Anchor.Hour == 0 && cfg.Anchor.Minute == 0 {
		cfg.Anchor.Hour = 8
	}
	if cfg.Anchor.Hour < 0 || cfg.Anchor.Hour > 23 || cfg.Anchor.Minute < 0 || cfg.Anchor.Minute > 59 {
		return nil, fmt.Errorf("锚点时间非法: %02d:%02d", cfg.Anchor.Hour, cfg.Anchor.Minute)
	}
	if _, err := time.LoadLocation(cfg.Anchor.ServerTZ); err != nil {
		return nil, fmt.Errorf("服务器时区非法 %q: %w", cfg.Anchor.ServerTZ, err)
	}

	// 决策窗口：全零时用默认窗口
	if cf.Windows == (WindowsConfig{}) {
		cfg.Windows = engine.DefaultWindows()
	} else {
		cfg.Windows = engine.Windows{
			PlaceMin: cf.Windows.PlaceMin,
			PlaceMax: cf.Windows.PlaceMax,
			CloseMin: cf.Windows.CloseMin,
			CloseMax: cf.Windows.CloseMax,
		}
	}
	if err := cfg.Windows.Validate(); err != nil {
		return nil, err
	}

	// 轮询间隔
	pollMs := cf.PollMs
	if pollMs <= 0 {
		pollMs = 1000
	}
	cfg.Poll = time.Duration(parseIntEnv("POLL_MS", pollMs)) * time.Millisecond

	cfg.MinStage = cf.MinStage
	if cfg.MinStage <= 0 {
		cfg.MinStage = 1
	}

	// 行情桥接
	if cfg.Pricefeed.BaseURL == "" {
		cfg.Pricefeed.BaseURL = getEnv("PRICEFEED_BASE_URL", "")
	}
	if cfg.Pricefeed.BaseURL == "" {
		return nil, fmt.Errorf("pricefeed.base_url 不能为空")
	}
	if cfg.Pricefeed.TokenEnv == "" {
		cfg.Pricefeed.TokenEnv = "PRICEFEED_TOKEN"
	}

	// 下单网关：dry run 下允许为空
	if cfg.Gateway.BaseURL == "" {
		cfg.Gateway.BaseURL = getEnv("GATEWAY_BASE_URL", "")
	}
	if cfg.Gateway.BaseURL == "" && !cfg.DryRun {
		return nil, fmt.Errorf("gateway.base_url 不能为空（或开启 dry_run）")
	}
	if cfg.Gateway.TokenEnv == "" {
		cfg.Gateway.TokenEnv = "GATEWAY_TOKEN"
	}

	// 通知环境变量名默认值
	if cfg.Notify.WebhookInfoEnv == "" {
		cfg.Notify.WebhookInfoEnv = "DISCORD_WEBHOOK_INFO"
	}
	if cfg.Notify.WebhookNormalEnv == "" {
		cfg.Notify.WebhookNormalEnv = "DISCORD_WEBHOOK_NORMAL"
	}
	if cfg.Notify.WebhookCriticalEnv == "" {
		cfg.Notify.WebhookCriticalEnv = "DISCORD_WEBHOOK_CRITICAL"
	}

	// 日志默认值
	if cfg.Log.Level == "" {
		cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	}
	if cfg.Log.File == "" {
		cfg.Log.File = getEnv("LOG_FILE", "logs/bot.log")
	}

	if cfg.DataDir == "" {
		cfg.DataDir = getEnv("DATA_DIR", "data")
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseIntEnv(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func parseBoolEnv(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		return v == "true" || v == "1"
	}
	return fallback
}
