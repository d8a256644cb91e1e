package notify

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"regexp"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/pipbot/gopip/internal/common"
	"github.com/pipbot/gopip/internal/metrics"
	"github.com/pipbot/gopip/pkg/cache"
	"github.com/pipbot/gopip/pkg/ratelimit"
)

var discordLog = logrus.WithField("component", "notify.discord")

// webhookRe Discord webhook URL 的合法格式
var webhookRe = regexp.MustCompile(
	`^https://(ptb\.|canary\.)?discord\.com/api/webhooks/\d+/[A-Za-z0-9_\-\.]+$`)

// DiscordConfig Discord 通知配置
// 未配置的通道按 critical→info 的顺序回落
type DiscordConfig struct {
	WebhookInfo     string
	WebhookNormal   string
	WebhookCritical string

	MaxPerWindow int           // 每通道窗口内最大条数，默认 20
	Window       time.Duration // 窗口大小，默认 60s
	Cooldown     time.Duration // 每通道两条消息的最小间隔，默认 2s
	DedupeTTL    time.Duration // 相同内容去重窗口，默认 120s
	QueueSize    int           // 发送队列长度，默认 256
}

func (c *DiscordConfig) applyDefaults() {
	if c.MaxPerWindow <= 0 {
		c.MaxPerWindow = 20
	}
	if c.Window <= 0 {
		c.Window = time.Minute
	}
	if c.Cooldown <= 0 {
		c.Cooldown = 2 * time.Second
	}
	if c.DedupeTTL <= 0 {
		c.DedupeTTL = 2 * time.Minute
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 256
	}
}

// Validate 验证 webhook 配置
func (c *DiscordConfig) Validate() error {
	for name, url := range map[string]string{
		"info":     c.WebhookInfo,
		"normal":   c.WebhookNormal,
		"critical": c.WebhookCritical,
	} {
		if url != "" && !webhookRe.MatchString(url) {
			return errors.Errorf("非法的 %s webhook URL", name)
		}
	}
	if c.WebhookInfo == "" && c.WebhookNormal == "" && c.WebhookCritical == "" {
		return errors.New("至少需要配置一个 webhook")
	}
	return nil
}

type outbound struct {
	channel Channel
	message string
}

// Discord 基于 webhook 的通知实现
// 限速（滑动窗口）+ 通道冷却（debouncer）+ 内容去重（TTL 缓存）+ 429 感知重试
type Discord struct {
	client   *resty.Client
	hooks    map[Channel]string
	limiters map[Channel]*ratelimit.SlidingWindow
	cooldown map[Channel]*common.Debouncer
	dedupe   *cache.TTLCache[string, struct{}]
	queue    chan outbound
}

// NewDiscord 创建 Discord 通知器
func NewDiscord(cfg DiscordConfig) (*Discord, error) {
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	hooks := map[Channel]string{
		ChannelInfo:     cfg.WebhookInfo,
		ChannelNormal:   cfg.WebhookNormal,
		ChannelCritical: cfg.WebhookCritical,
	}
	// 未配置的通道回落：normal→info，critical→info
	if hooks[ChannelNormal] == "" {
		hooks[ChannelNormal] = hooks[ChannelInfo]
	}
	if hooks[ChannelCritical] == "" {
		hooks[ChannelCritical] = hooks[ChannelInfo]
	}
	if hooks[ChannelInfo] == "" {
		hooks[ChannelInfo] = hooks[ChannelNormal]
	}

	d := &Discord{
		client: resty.New().
			SetTimeout(10 * time.Second).
			SetRetryCount(3).
			SetRetryWaitTime(time.Second).
			SetRetryMaxWaitTime(15 * time.Second).
			AddRetryCondition(func(r *resty.Response, err error) bool {
				return err != nil || r.StatusCode() == 429 || r.StatusCode() >= 500
			}),
		hooks:    hooks,
		limiters: make(map[Channel]*ratelimit.SlidingWindow),
		cooldown: make(map[Channel]*common.Debouncer),
		dedupe:   cache.New[string, struct{}](cfg.DedupeTTL),
		queue:    make(chan outbound, cfg.QueueSize),
	}
	for ch := range hooks {
		d.limiters[ch] = ratelimit.NewSlidingWindow(cfg.MaxPerWindow, cfg.Window)
		d.cooldown[ch] = common.NewDebouncer(cfg.Cooldown)
	}
	return d, nil
}

// Run 启动发送 worker，阻塞直到 ctx 取消且队列清空
// 关闭时队列里已入队的消息仍会尽力投递
func (d *Discord) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			// 清空残余队列后退出
			for {
				select {
				case o := <-d.queue:
					d.deliver(o)
				default:
					return
				}
			}
		case o := <-d.queue:
			d.deliver(o)
		}
	}
}

// Send 实现 Notifier：非阻塞入队，队列满或被限速/去重时丢弃
func (d *Discord) Send(channel Channel, message string) {
	if message == "" {
		return
	}

	// 去重：同一通道同一内容在 TTL 窗口内只发一次
	key := dedupeKey(channel, message)
	if !d.dedupe.SetIfAbsent(key, struct{}{}, 0) {
		metrics.NotifyDropped.Add(1)
		return
	}

	if lim := d.limiters[channel]; lim != nil && !lim.Allow() {
		metrics.NotifyDropped.Add(1)
		discordLog.Warnf("通道 %s 触发限速，丢弃消息", channel)
		return
	}

	select {
	case d.queue <- outbound{channel: channel, message: message}:
	default:
		metrics.NotifyDropped.Add(1)
		discordLog.Warnf("通知队列已满，丢弃 %s 消息", channel)
	}
}

func (d *Discord) deliver(o outbound) {
	url := d.hooks[o.channel]
	if url == "" {
		return
	}

	// 通道冷却：避免连续消息刷屏
	if cd := d.cooldown[o.channel]; cd != nil {
		now := time.Now()
		if !cd.Ready(now) {
			time.Sleep(cd.Interval())
		}
		cd.Mark(time.Now())
	}

	resp, err := d.client.R().
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]string{"content": o.message}).
		Post(url)
	if err != nil {
		discordLog.Errorf("通知投递失败 (%s): %v", o.channel, err)
		return
	}
	if resp.IsError() {
		discordLog.Errorf("通知投递失败 (%s): HTTP %d", o.channel, resp.StatusCode())
	}
}

func dedupeKey(channel Channel, message string) string {
	h := sha1.Sum([]byte(string(channel) + "\x00" + message))
	return hex.EncodeToString(h[:])
}
