package pricefeed

import (
	"context"
	"time"
)

// Tick 一笔报价
type Tick struct {
	Symbol string    `json:"symbol"`
	Bid    float64   `json:"bid"`
	Ask    float64   `json:"ask"`
	Last   float64   `json:"last"`
	Time   time.Time `json:"time"`
}

// Mid 提取可用价格
// 优先 bid/ask 中值，其次 last、bid、ask；全不可用返回 false
func (t Tick) Mid() (float64, bool) {
	if t.Bid > 0 && t.Ask > 0 {
		return (t.Bid + t.Ask) / 2, true
	}
	for _, v := range []float64{t.Last, t.Bid, t.Ask} {
		if v > 0 {
			return v, true
		}
	}
	return 0, false
}

// Source 价格源
// 所有错误都是瞬时性的（数据暂不可用）：调用方按 skip-this-symbol 或
// 用当前价代替极值的方式就地恢复，绝不把错误升级为整批失败
type Source interface {
	// CurrentPrice 当前报价
	CurrentPrice(ctx context.Context, symbol string) (Tick, error)
	// AnchorPrice 锚点时刻的价格（换日取新起始价用）
	AnchorPrice(ctx context.Context, symbol string, at time.Time) (float64, error)
	// ExtremesSince 自某时刻以来的最高/最低价
	ExtremesSince(ctx context.Context, symbol string, since time.Time) (high, low float64, err error)
}
