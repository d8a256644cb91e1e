package gateway

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/pipbot/gopip/internal/domain"
)

// PlacedOrder 已提交订单的归一化视图
type PlacedOrder struct {
	ID       string      // 经纪商订单号
	ClientID string      // 客户端生成的幂等 ID
	Symbol   string
	Side     domain.Side
	Volume   float64
	Price    float64 // 成交/报价参考价（纸上网关为 0）
	Time     time.Time
}

// Error 网关错误：携带经纪商错误码和细节，供 critical 通知渠道转发
type Error struct {
	Code    string
	Details string
}

func (e *Error) Error() string {
	return fmt.Sprintf("gateway error %s: %s", e.Code, e.Details)
}

// Gateway 下单网关
// 核心把每次调用都当作可能失败的调用；失败由调用方转发到 critical 通知渠道，
// 重试策略（如果有）属于网关实现，决策引擎自身从不重试
type Gateway interface {
	Name() string
	// Open 市价开仓
	Open(ctx context.Context, symbol string, side domain.Side, volume float64) (*PlacedOrder, error)
	// Close 平掉品种的全部持仓
	Close(ctx context.Context, symbol string, reason string) (*PlacedOrder, error)
	// PositionOpen 查询品种是否有持仓
	PositionOpen(ctx context.Context, symbol string) (bool, error)
}

// NormalizeVolume 把手数按经纪商步进向下归一化
// step <= 0 时原样返回；结果永远不大于 lot
func NormalizeVolume(lot, step float64) float64 {
	if step <= 0 || lot <= 0 {
		return lot
	}
	l := decimal.NewFromFloat(lot)
	s := decimal.NewFromFloat(step)
	steps := l.Div(s).Floor()
	v, _ := steps.Mul(s).Float64()
	return v
}
