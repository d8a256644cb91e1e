package domain

import "time"

// Anchor 每日参考价（锚点）
// Anchor 是值对象：换日时整体替换，不原地修改，持有旧 Anchor 的读者不受影响
type Anchor struct {
	Symbol     string
	StartPrice float64   // 锚点时刻的价格，永远大于 0
	TradingDay time.Time // 所属交易日（服务器时区的日期，周末已按策略平移）
	AnchorTime time.Time // 锚点的具体时刻（服务器时区）
}

// SameTradingDay 判断锚点是否属于给定交易日
func (a Anchor) SameTradingDay(day time.Time) bool {
	ay, am, ad := a.TradingDay.Date()
	dy, dm, dd := day.Date()
	return ay == dy && am == dm && ad == dd
}

// IsZero 判断是否为零值锚点（尚未解析）
func (a Anchor) IsZero() bool {
	return a.Symbol == "" && a.StartPrice == 0
}
