package domain

import "fmt"

// StageEvent 阈值档位触达事件
// 同一品种同一交易日内，每个档位至多触发一次（由 stage.Tracker 保证）
type StageEvent struct {
	Symbol   string
	Stage    int // 1 或 2
	Snapshot PriceSnapshot
}

// Message 通知文本（原样携带快照上下文）
func (e StageEvent) Message() string {
	return fmt.Sprintf("[%s] threshold x%d hit | %s", e.Symbol, e.Stage, e.Snapshot.Summary())
}
