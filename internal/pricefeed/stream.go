package pricefeed

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/pipbot/gopip/pkg/sigchan"
)

var streamLog = logrus.WithField("component", "pricefeed.stream")

// FeedConfig 行情 WebSocket 推流配置
type FeedConfig struct {
	URL        string        // 例如 ws://127.0.0.1:8787/ws/ticks
	Symbols    []string      // 订阅的品种
	StaleAfter time.Duration // 缓存报价的有效期，默认 3s
}

// Feed 行情推流：维护每品种最新报价的缓存
// 断线自动重连（指数退避），重连期间缓存过期后自动退回 REST
type Feed struct {
	cfg FeedConfig

	mu     sync.RWMutex
	latest map[string]Tick

	updated *sigchan.Chan

	startOnce sync.Once
	cancel    context.CancelFunc
}

// NewFeed 创建行情推流
func NewFeed(cfg FeedConfig) *Feed {
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = 3 * time.Second
	}
	return &Feed{
		cfg:     cfg,
		latest:  make(map[string]Tick),
		updated: sigchan.New(1),
	}
}

// Start 启动推流 goroutine（只会启动一次）
func (f *Feed) Start(ctx context.Context) {
	f.startOnce.Do(func() {
		loopCtx, cancel := context.WithCancel(ctx)
		f.cancel = cancel
		go f.run(loopCtx)
	})
}

// Stop 停止推流
func (f *Feed) Stop() {
	if f.cancel != nil {
		f.cancel()
	}
}

// Updated 返回「收到新报价」信号 channel（price-watcher 即时刷新用）
func (f *Feed) Updated() <-chan struct{} {
	return f.updated.C()
}

// Latest 返回品种的最新缓存报价及其是否仍然新鲜
func (f *Feed) Latest(symbol string) (Tick, bool) {
	f.mu.RLock()
	t, ok := f.latest[symbol]
	f.mu.RUnlock()
	if !ok || time.Since(t.Time) > f.cfg.StaleAfter {
		return Tick{}, false
	}
	return t, true
}

func (f *Feed) run(ctx context.Context) {
	backoff := time.Second
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := f.connectAndConsume(ctx); err != nil && ctx.Err() == nil {
			streamLog.Warnf("行情推流断开: %v，%s 后重连", err, backoff)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		if backoff < 30*time.Second {
			backoff *= 2
		}
	}
}

type tickMessage struct {
	Symbol string  `json:"symbol"`
	Bid    float64 `json:"bid"`
	Ask    float64 `json:"ask"`
	Last   float64 `json:"last"`
	Time   int64   `json:"time"`
}

func (f *Feed) connectAndConsume(ctx context.Context) error {
	url := f.cfg.URL
	if len(f.cfg.Symbols) > 0 {
		url += "?symbols=" + strings.Join(f.cfg.Symbols, ",")
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return err
	}
	defer conn.Close()
	streamLog.Infof("行情推流已连接: %s", f.cfg.URL)

	// ctx 取消时关闭连接，解除 ReadMessage 阻塞
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		var msg tickMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			streamLog.Debugf("报价消息解析失败: %v", err)
			continue
		}
		if msg.Symbol == "" {
			continue
		}

		f.mu.Lock()
		f.latest[msg.Symbol] = Tick{
			Symbol: msg.Symbol,
			Bid:    msg.Bid,
			Ask:    msg.Ask,
			Last:   msg.Last,
			Time:   time.Unix(msg.Time, 0),
		}
		f.mu.Unlock()
		f.updated.Emit()
	}
}

// StreamingSource 组合价格源：当前价优先取推流缓存，过期退回 REST；
// 锚点价和极值始终走 REST（推流只有逐笔报价）
type StreamingSource struct {
	rest Source
	feed *Feed
}

// NewStreamingSource 创建组合价格源
func NewStreamingSource(rest Source, feed *Feed) *StreamingSource {
	return &StreamingSource{rest: rest, feed: feed}
}

// CurrentPrice 实现 Source
func (s *StreamingSource) CurrentPrice(ctx context.Context, symbol string) (Tick, error) {
	if s.feed != nil {
		if t, ok := s.feed.Latest(symbol); ok {
			return t, nil
		}
	}
	return s.rest.CurrentPrice(ctx, symbol)
}

// AnchorPrice 实现 Source
func (s *StreamingSource) AnchorPrice(ctx context.Context, symbol string, at time.Time) (float64, error) {
	return s.rest.AnchorPrice(ctx, symbol, at)
}

// ExtremesSince 实现 Source
func (s *StreamingSource) ExtremesSince(ctx context.Context, symbol string, since time.Time) (float64, float64, error) {
	return s.rest.ExtremesSince(ctx, symbol, since)
}
