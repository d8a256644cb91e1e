package notify

import (
	"testing"
	"time"
)

const testHook = "https://discord.com/api/webhooks/123456789/abcDEF_ghi-jkl.mno"

func TestDiscordConfig_Validate(t *testing.T) {
	cfg := DiscordConfig{WebhookInfo: testHook}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("合法 webhook 验证失败: %v", err)
	}

	bad := DiscordConfig{WebhookInfo: "https://example.com/hook"}
	if err := bad.Validate(); err == nil {
		t.Fatalf("非法 webhook 应该被拒绝")
	}

	empty := DiscordConfig{}
	if err := empty.Validate(); err == nil {
		t.Fatalf("没有任何 webhook 应该被拒绝")
	}
}

func TestDiscord_ChannelFallback(t *testing.T) {
	d, err := NewDiscord(DiscordConfig{WebhookInfo: testHook})
	if err != nil {
		t.Fatalf("NewDiscord 失败: %v", err)
	}
	// normal / critical 未配置时回落到 info
	if d.hooks[ChannelNormal] != testHook || d.hooks[ChannelCritical] != testHook {
		t.Fatalf("未配置的通道应该回落到 info: %v", d.hooks)
	}
}

func TestDiscord_SendDedupe(t *testing.T) {
	d, err := NewDiscord(DiscordConfig{WebhookInfo: testHook, DedupeTTL: time.Minute})
	if err != nil {
		t.Fatalf("NewDiscord 失败: %v", err)
	}

	// 相同内容在 TTL 内只入队一次（不启动 worker，只看队列）
	d.Send(ChannelInfo, "EURUSD threshold x1 hit")
	d.Send(ChannelInfo, "EURUSD threshold x1 hit")
	d.Send(ChannelInfo, "EURUSD threshold x2 hit")

	if got := len(d.queue); got != 2 {
		t.Fatalf("去重后队列应该有 2 条，实际 %d 条", got)
	}

	// 不同通道的相同内容不互相去重
	d.Send(ChannelCritical, "EURUSD threshold x1 hit")
	if got := len(d.queue); got != 3 {
		t.Fatalf("跨通道不应该去重，实际 %d 条", got)
	}
}

func TestDiscord_SendRateLimit(t *testing.T) {
	d, err := NewDiscord(DiscordConfig{
		WebhookInfo:  testHook,
		MaxPerWindow: 3,
		Window:       time.Minute,
	})
	if err != nil {
		t.Fatalf("NewDiscord 失败: %v", err)
	}

	for i := 0; i < 10; i++ {
		d.Send(ChannelInfo, "message "+string(rune('a'+i)))
	}
	if got := len(d.queue); got != 3 {
		t.Fatalf("限速后窗口内应该只入队 3 条，实际 %d 条", got)
	}
}

func TestDiscord_EmptyMessageIgnored(t *testing.T) {
	d, err := NewDiscord(DiscordConfig{WebhookInfo: testHook})
	if err != nil {
		t.Fatalf("NewDiscord 失败: %v", err)
	}
	d.Send(ChannelInfo, "")
	if len(d.queue) != 0 {
		t.Fatalf("空消息不应该入队")
	}
}
