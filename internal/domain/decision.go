package domain

import "fmt"

// Side 持仓方向
type Side string

const (
	SideLong  Side = "LONG"
	SideShort Side = "SHORT"
)

// Signal 交易信号类型
type Signal string

const (
	SignalNone  Signal = "NONE"  // 无动作
	SignalOpen  Signal = "OPEN"  // 开仓
	SignalClose Signal = "CLOSE" // 平仓
	SignalHold  Signal = "HOLD"  // 持仓等待（已开仓但未到平仓窗口）
)

// TradeDecision 单次评估产生的交易决策
// 每 tick 重新计算，不持久化；相同输入永远产生相同决策
type TradeDecision struct {
	Signal Signal
	Symbol string
	Side   Side   // 仅 SignalOpen（以及平仓时用于记录）有意义
	Reason string // 人类可读的决策依据
	Ratio  float64
}

// Actionable 判断决策是否需要触达下单网关
func (d TradeDecision) Actionable() bool {
	return d.Signal == SignalOpen || d.Signal == SignalClose
}

func (d TradeDecision) String() string {
	if d.Signal == SignalOpen {
		return fmt.Sprintf("%s %s %s (ratio=%.2f)", d.Signal, d.Side, d.Symbol, d.Ratio)
	}
	return fmt.Sprintf("%s %s (ratio=%.2f)", d.Signal, d.Symbol, d.Ratio)
}
