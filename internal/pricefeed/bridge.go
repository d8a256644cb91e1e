package pricefeed

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"

	"github.com/pipbot/gopip/pkg/cache"
	"github.com/pipbot/gopip/pkg/ratelimit"
)

// BridgeConfig 行情桥接器配置（MT5 sidecar 的 REST 服务）
type BridgeConfig struct {
	BaseURL        string        // 例如 http://127.0.0.1:8787
	Token          string        // Bearer token（可选）
	Timeout        time.Duration // 单请求超时，默认 10s
	ExtremesTTL    time.Duration // 极值查询缓存 TTL，默认 2s
	RequestsPerSec int           // REST 限速（令牌桶），默认 50/s
}

// Bridge 基于 REST 的价格源实现
type Bridge struct {
	client   *resty.Client
	limiter  *ratelimit.TokenBucket
	extremes *cache.TTLCache[string, extremesPair]
}

type extremesPair struct {
	High float64
	Low  float64
}

// NewBridge 创建行情桥接器客户端
func NewBridge(cfg BridgeConfig) (*Bridge, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("pricefeed: base_url 不能为空")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.ExtremesTTL <= 0 {
		cfg.ExtremesTTL = 2 * time.Second
	}
	if cfg.RequestsPerSec <= 0 {
		cfg.RequestsPerSec = 50
	}

	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetRetryCount(2).
		SetRetryWaitTime(200 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second)
	if cfg.Token != "" {
		client.SetAuthToken(cfg.Token)
	}

	return &Bridge{
		client:   client,
		limiter:  ratelimit.NewTokenBucket(cfg.RequestsPerSec, cfg.RequestsPerSec),
		extremes: cache.New[string, extremesPair](cfg.ExtremesTTL),
	}, nil
}

type priceResponse struct {
	Symbol string  `json:"symbol"`
	Bid    float64 `json:"bid"`
	Ask    float64 `json:"ask"`
	Last   float64 `json:"last"`
	Time   int64   `json:"time"` // Unix 秒
}

type anchorResponse struct {
	Symbol string  `json:"symbol"`
	Price  float64 `json:"price"`
}

type extremesResponse struct {
	Symbol string  `json:"symbol"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
}

// CurrentPrice 实现 Source
func (b *Bridge) CurrentPrice(ctx context.Context, symbol string) (Tick, error) {
	if err := b.limiter.Wait(ctx); err != nil {
		return Tick{}, err
	}

	var out priceResponse
	resp, err := b.client.R().
		SetContext(ctx).
		SetPathParam("symbol", symbol).
		SetResult(&out).
		Get("/api/price/{symbol}")
	if err != nil {
		return Tick{}, errors.Wrapf(err, "获取 %s 当前价失败", symbol)
	}
	if resp.IsError() {
		return Tick{}, errors.Errorf("获取 %s 当前价失败: HTTP %d", symbol, resp.StatusCode())
	}

	return Tick{
		Symbol: symbol,
		Bid:    out.Bid,
		Ask:    out.Ask,
		Last:   out.Last,
		Time:   time.Unix(out.Time, 0),
	}, nil
}

// AnchorPrice 实现 Source
func (b *Bridge) AnchorPrice(ctx context.Context, symbol string, at time.Time) (float64, error) {
	if err := b.limiter.Wait(ctx); err != nil {
		return 0, err
	}

	var out anchorResponse
	resp, err := b.client.R().
		SetContext(ctx).
		SetPathParam("symbol", symbol).
		SetQueryParam("at", at.Format(time.RFC3339)).
		SetResult(&out).
		Get("/api/anchor/{symbol}")
	if err != nil {
		return 0, errors.Wrapf(err, "获取 %s 锚点价失败", symbol)
	}
	if resp.IsError() {
		return 0, errors.Errorf("获取 %s 锚点价失败: HTTP %d", symbol, resp.StatusCode())
	}
	if out.Price <= 0 {
		return 0, errors.Errorf("%s 锚点价非法: %v", symbol, out.Price)
	}
	return out.Price, nil
}

// ExtremesSince 实现 Source（带短 TTL 缓存，降低 REST 压力）
func (b *Bridge) ExtremesSince(ctx context.Context, symbol string, since time.Time) (float64, float64, error) {
	key := fmt.Sprintf("%s@%d", symbol, since.Unix())
	if p, ok := b.extremes.Get(key); ok {
		return p.High, p.Low, nil
	}

	if err := b.limiter.Wait(ctx); err != nil {
		return 0, 0, err
	}

	var out extremesResponse
	resp, err := b.client.R().
		SetContext(ctx).
		SetPathParam("symbol", symbol).
		SetQueryParam("since", since.Format(time.RFC3339)).
		SetResult(&out).
		Get("/api/extremes/{symbol}")
	if err != nil {
		return 0, 0, errors.Wrapf(err, "获取 %s 极值失败", symbol)
	}
	if resp.IsError() {
		return 0, 0, errors.Errorf("获取 %s 极值失败: HTTP %d", symbol, resp.StatusCode())
	}

	b.extremes.Set(key, extremesPair{High: out.High, Low: out.Low}, 0)
	return out.High, out.Low, nil
}
