package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/pipbot/gopip/internal/anchor"
	"github.com/pipbot/gopip/internal/controlplane"
	"github.com/pipbot/gopip/internal/engine"
	"github.com/pipbot/gopip/internal/gateway"
	"github.com/pipbot/gopip/internal/journal"
	"github.com/pipbot/gopip/internal/metrics"
	"github.com/pipbot/gopip/internal/notify"
	"github.com/pipbot/gopip/internal/pricefeed"
	"github.com/pipbot/gopip/internal/runner"
	"github.com/pipbot/gopip/internal/stage"
	"github.com/pipbot/gopip/pkg/config"
	"github.com/pipbot/gopip/pkg/logger"
	"github.com/pipbot/gopip/pkg/persistence"
	"github.com/pipbot/gopip/pkg/secretstore"
	"github.com/pipbot/gopip/pkg/shutdown"
	"github.com/pipbot/gopip/pkg/syncgroup"
)

func main() {
	var (
		configPath = flag.String("config", "yml/config.yaml", "配置文件路径")
		envPath    = flag.String("env", ".env", ".env 文件路径（可选）")
	)
	flag.Parse()

	// .env 不存在时静默跳过
	_ = godotenv.Load(*envPath)

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(logger.Config{
		Level:      cfg.Log.Level,
		OutputFile: cfg.Log.File,
		MaxSize:    cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAgeDays,
		Compress:   cfg.Log.Compress,
		LogByDay:   cfg.Log.LogByDay,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	log := logrus.WithField("component", "main")

	// secret 库（可选）：token 优先级 环境变量 > secret 库
	var secrets *secretstore.Store
	if cfg.SecretDB != "" {
		keyBytes, err := secretstore.ParseKey(os.Getenv("GOPIP_SECRET_KEY"))
		if err != nil {
			log.Fatalf("解析 secret key 失败: %v", err)
		}
		secrets, err = secretstore.Open(secretstore.OpenOptions{
			Path:          cfg.SecretDB,
			EncryptionKey: keyBytes,
			ReadOnly:      true,
		})
		if err != nil {
			log.Fatalf("打开 secret 库失败: %v", err)
		}
		defer secrets.Close()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 行情源：REST 桥接，配置了推流地址时叠加 WebSocket 缓存
	bridge, err := pricefeed.NewBridge(pricefeed.BridgeConfig{
		BaseURL:        cfg.Pricefeed.BaseURL,
		Token:          resolveSecret(secrets, cfg.Pricefeed.TokenEnv),
		Timeout:        time.Duration(cfg.Pricefeed.TimeoutSec) * time.Second,
		RequestsPerSec: int(cfg.Pricefeed.RequestsPerSec),
	})
	if err != nil {
		log.Fatalf("初始化行情桥接失败: %v", err)
	}

	var source pricefeed.Source = bridge
	var feed *pricefeed.Feed
	if cfg.Pricefeed.StreamURL != "" {
		symbols := make([]string, 0, len(cfg.Symbols))
		for _, s := range cfg.Symbols {
			symbols = append(symbols, s.Symbol)
		}
		feed = pricefeed.NewFeed(pricefeed.FeedConfig{
			URL:        cfg.Pricefeed.StreamURL,
			Symbols:    symbols,
			StaleAfter: time.Duration(cfg.Pricefeed.StaleAfterSec) * time.Second,
		})
		feed.Start(ctx)
		source = pricefeed.NewStreamingSource(bridge, feed)
	}

	anchors, err := anchor.NewStore(anchor.Config{
		ServerTZ:     cfg.Anchor.ServerTZ,
		AnchorHour:   cfg.Anchor.Hour,
		AnchorMinute: cfg.Anchor.Minute,
	}, source)
	if err != nil {
		log.Fatalf("初始化锚点存储失败: %v", err)
	}

	eng, err := engine.New(cfg.Windows)
	if err != nil {
		log.Fatalf("初始化决策引擎失败: %v", err)
	}

	// 下单网关：dry run 用纸上交易
	var gw gateway.Gateway
	if cfg.DryRun {
		log.Warn("DRY RUN 模式：订单只记录，不触达经纪商")
		gw = gateway.NewPaper()
	} else {
		gw, err = gateway.NewBridge(gateway.BridgeConfig{
			BaseURL: cfg.Gateway.BaseURL,
			Token:   resolveSecret(secrets, cfg.Gateway.TokenEnv),
			Timeout: time.Duration(cfg.Gateway.TimeoutSec) * time.Second,
		})
		if err != nil {
			log.Fatalf("初始化下单网关失败: %v", err)
		}
	}

	group := syncgroup.NewSyncGroup()

	// 通知：有 webhook 用 Discord，否则退回日志
	var notifier notify.Notifier
	discordCfg := notify.DiscordConfig{
		WebhookInfo:     resolveSecret(secrets, cfg.Notify.WebhookInfoEnv),
		WebhookNormal:   resolveSecret(secrets, cfg.Notify.WebhookNormalEnv),
		WebhookCritical: resolveSecret(secrets, cfg.Notify.WebhookCriticalEnv),
		MaxPerWindow:    cfg.Notify.MaxPerMinute,
		Cooldown:        time.Duration(cfg.Notify.CooldownSec) * time.Second,
		DedupeTTL:       time.Duration(cfg.Notify.DedupeTTLSec) * time.Second,
	}
	if discordCfg.WebhookInfo == "" && discordCfg.WebhookNormal == "" && discordCfg.WebhookCritical == "" {
		log.Warn("未配置任何 webhook，通知退回日志输出")
		notifier = notify.Log{}
	} else {
		discord, err := notify.NewDiscord(discordCfg)
		if err != nil {
			log.Fatalf("初始化 Discord 通知失败: %v", err)
		}
		group.Go(func() { discord.Run(ctx) })
		notifier = discord
	}

	// 交易流水（可选）
	var jnl *journal.Journal
	if cfg.JournalDB != "" {
		jnl, err = journal.Open(cfg.JournalDB)
		if err != nil {
			log.Fatalf("打开交易流水失败: %v", err)
		}
		defer jnl.Close()
	}

	dumps := persistence.NewJSONFileService(filepath.Join(cfg.DataDir, "snapshots"))
	stages := stage.NewTracker()

	run := runner.New(
		runner.Config{Interval: cfg.Poll, MinStage: cfg.MinStage},
		cfg.Symbols, source, anchors, stages, eng, gw, notifier, jnl, dumps,
	)
	run.Start(ctx)

	// 控制面板（可选）
	var cp *controlplane.Server
	if cfg.ControlAddr != "" {
		cp = controlplane.New(cfg.ControlAddr, run, anchors, stages, jnl)
		cp.Start()
	}

	// pprof / expvar 调试服务（可选，建议只听 localhost）
	if cfg.MetricsAddr != "" {
		if _, err := metrics.StartAsync(ctx, cfg.MetricsAddr); err != nil {
			log.Warnf("启动 metrics 服务失败: %v", err)
		}
	}

	mgr := shutdown.NewManager()
	mgr.OnShutdown(func(context.Context) { run.Stop() })
	if cp != nil {
		mgr.OnShutdown(func(c context.Context) { _ = cp.Shutdown(c) })
	}
	if feed != nil {
		mgr.OnShutdown(func(context.Context) { feed.Stop() })
	}

	log.Infof("gopip 已启动: %d 个品种, 轮询 %s, dry_run=%v", len(cfg.Symbols), cfg.Poll, cfg.DryRun)

	sigC := make(chan os.Signal, 1)
	signal.Notify(sigC, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigC
	log.Infof("收到信号 %s，开始退出", sig)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	mgr.Shutdown(shutdownCtx)
	cancel()
	group.Wait()
	log.Info("退出完成")
}

// resolveSecret 按名字取 secret：环境变量优先，其次 secret 库（env/ 前缀）
func resolveSecret(secrets *secretstore.Store, name string) string {
	if name == "" {
		return ""
	}
	if v := os.Getenv(name); v != "" {
		return v
	}
	if secrets != nil {
		if v, ok, err := secrets.GetString("env/" + name); err == nil && ok {
			return v
		}
	}
	return ""
}
