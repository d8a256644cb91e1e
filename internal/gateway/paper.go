package gateway

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/pipbot/gopip/internal/domain"
)

var paperLog = logrus.WithField("component", "gateway.paper")

// Paper 纸上交易网关（dry run）：只记录持仓，不触达任何经纪商
type Paper struct {
	mu        sync.Mutex
	positions map[string]*PlacedOrder
}

// NewPaper 创建纸上交易网关
func NewPaper() *Paper {
	return &Paper{positions: make(map[string]*PlacedOrder)}
}

func (p *Paper) Name() string { return "paper" }

// Open 实现 Gateway
func (p *Paper) Open(_ context.Context, symbol string, side domain.Side, volume float64) (*PlacedOrder, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.positions[symbol]; ok {
		return nil, &Error{Code: "POSITION_EXISTS", Details: symbol + " 已有持仓"}
	}

	o := &PlacedOrder{
		ID:       uuid.NewString(),
		ClientID: uuid.NewString(),
		Symbol:   symbol,
		Side:     side,
		Volume:   volume,
		Time:     time.Now(),
	}
	p.positions[symbol] = o
	paperLog.Infof("[paper] 开仓: %s %s vol=%v", symbol, side, volume)
	return o, nil
}

// Close 实现 Gateway
func (p *Paper) Close(_ context.Context, symbol string, reason string) (*PlacedOrder, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	o, ok := p.positions[symbol]
	if !ok {
		return nil, &Error{Code: "NO_POSITION", Details: symbol + " 无持仓可平"}
	}
	delete(p.positions, symbol)
	paperLog.Infof("[paper] 平仓: %s reason=%s", symbol, reason)
	return &PlacedOrder{
		ID:     uuid.NewString(),
		Symbol: symbol,
		Side:   o.Side,
		Volume: o.Volume,
		Time:   time.Now(),
	}, nil
}

// PositionOpen 实现 Gateway
func (p *Paper) PositionOpen(_ context.Context, symbol string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.positions[symbol]
	return ok, nil
}
