package gateway

import (
	"context"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/pipbot/gopip/internal/domain"
)

var log = logrus.WithField("component", "gateway")

// BridgeConfig 下单桥接器配置（MT5 sidecar 的 REST 服务）
type BridgeConfig struct {
	BaseURL string
	Token   string
	Timeout time.Duration // 默认 25s：下单比行情查询慢得多
}

// Bridge 基于 REST 的下单网关
type Bridge struct {
	client *resty.Client
}

// NewBridge 创建下单桥接器
func NewBridge(cfg BridgeConfig) (*Bridge, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("gateway: base_url 不能为空")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 25 * time.Second
	}

	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout)
	if cfg.Token != "" {
		client.SetAuthToken(cfg.Token)
	}
	return &Bridge{client: client}, nil
}

func (b *Bridge) Name() string { return "bridge" }

type orderRequest struct {
	ClientID string  `json:"client_id"`
	Symbol   string  `json:"symbol"`
	Side     string  `json:"side"` // buy / sell
	Volume   float64 `json:"volume"`
	Comment  string  `json:"comment,omitempty"`
}

type orderResponse struct {
	OK      bool    `json:"ok"`
	OrderID string  `json:"order_id"`
	Price   float64 `json:"price"`
	Code    string  `json:"code"`
	Message string  `json:"message"`
}

type positionResponse struct {
	Symbol string `json:"symbol"`
	Open   bool   `json:"open"`
}

// Open 实现 Gateway
func (b *Bridge) Open(ctx context.Context, symbol string, side domain.Side, volume float64) (*PlacedOrder, error) {
	// LONG/SHORT 映射到桥接器的 buy/sell
	tradeType := "buy"
	if side == domain.SideShort {
		tradeType = "sell"
	}

	req := orderRequest{
		ClientID: uuid.NewString(),
		Symbol:   symbol,
		Side:     tradeType,
		Volume:   volume,
		Comment:  "ThresholdV1 place " + string(side),
	}

	var out orderResponse
	resp, err := b.client.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&out).
		SetError(&out).
		Post("/api/orders")
	if err != nil {
		return nil, errors.Wrapf(err, "下单请求失败: %s", symbol)
	}
	if resp.IsError() || !out.OK {
		return nil, &Error{Code: orDefault(out.Code, resp.Status()), Details: out.Message}
	}

	log.Infof("开仓成功: %s %s vol=%v order=%s", symbol, side, volume, out.OrderID)
	return &PlacedOrder{
		ID:       out.OrderID,
		ClientID: req.ClientID,
		Symbol:   symbol,
		Side:     side,
		Volume:   volume,
		Price:    out.Price,
		Time:     time.Now(),
	}, nil
}

// Close 实现 Gateway
func (b *Bridge) Close(ctx context.Context, symbol string, reason string) (*PlacedOrder, error) {
	var out orderResponse
	resp, err := b.client.R().
		SetContext(ctx).
		SetPathParam("symbol", symbol).
		SetQueryParam("reason", reason).
		SetResult(&out).
		SetError(&out).
		Delete("/api/positions/{symbol}")
	if err != nil {
		return nil, errors.Wrapf(err, "平仓请求失败: %s", symbol)
	}
	if resp.IsError() || !out.OK {
		return nil, &Error{Code: orDefault(out.Code, resp.Status()), Details: out.Message}
	}

	log.Infof("平仓成功: %s order=%s reason=%s", symbol, out.OrderID, reason)
	return &PlacedOrder{
		ID:     out.OrderID,
		Symbol: symbol,
		Price:  out.Price,
		Time:   time.Now(),
	}, nil
}

// PositionOpen 实现 Gateway
func (b *Bridge) PositionOpen(ctx context.Context, symbol string) (bool, error) {
	var out positionResponse
	resp, err := b.client.R().
		SetContext(ctx).
		SetPathParam("symbol", symbol).
		SetResult(&out).
		Get("/api/positions/{symbol}")
	if err != nil {
		return false, errors.Wrapf(err, "查询持仓失败: %s", symbol)
	}
	if resp.IsError() {
		return false, errors.Errorf("查询持仓失败: %s HTTP %d", symbol, resp.StatusCode())
	}
	return out.Open, nil
}

func orDefault(v, def string) string {
	if v != "" {
		return v
	}
	return def
}
