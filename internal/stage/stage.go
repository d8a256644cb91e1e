package stage

import (
	"math"
	"sync"

	"github.com/pipbot/gopip/internal/domain"
)

// MaxStage 当前支持的最高档位，超过的部分不触发
const MaxStage = 2

// Check 档位门控的纯函数形式
// 返回新的 lastSent 与可选事件；不修改任何状态，便于单测构造
//
// 触发条件：kReached >= minStage 且 kReached > lastSent
// 返回值恒为 max(lastSent, kReached)，保证同一交易日内单调不减；
// 只有换日（Tracker.ResetAll）或显式人工重置才会减小
func Check(snap domain.PriceSnapshot, lastSent, minStage int) (int, *domain.StageEvent) {
	k := int(math.Floor(snap.ThresholdRatio))
	if k > MaxStage {
		k = MaxStage
	}
	if k < 0 {
		k = 0
	}

	newLast := lastSent
	if k > newLast {
		newLast = k
	}

	if k >= minStage && k > lastSent {
		return newLast, &domain.StageEvent{Symbol: snap.Symbol, Stage: k, Snapshot: snap}
	}
	return newLast, nil
}

// Tracker 每品种 lastStageSent 的所有者
// 同一交易日内每个档位至多发一次事件；换日时由 RunLoop 调 ResetAll 归零
type Tracker struct {
	mu   sync.Mutex
	last map[string]int
}

func NewTracker() *Tracker {
	return &Tracker{last: make(map[string]int)}
}

// Check 对快照做档位判定并推进内部状态
func (t *Tracker) Check(snap domain.PriceSnapshot, minStage int) *domain.StageEvent {
	t.mu.Lock()
	defer t.mu.Unlock()

	newLast, evt := Check(snap, t.last[snap.Symbol], minStage)
	t.last[snap.Symbol] = newLast
	return evt
}

// LastSent 返回品种当前已发送的最高档位
func (t *Tracker) LastSent(symbol string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.last[symbol]
}

// Reset 显式人工重置单个品种（控制面板操作，不会自动触发）
func (t *Tracker) Reset(symbol string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.last, symbol)
}

// ResetAll 换日时整体归零，必须和锚点换日在同一逻辑操作内完成
func (t *Tracker) ResetAll() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.last = make(map[string]int)
}

// All 返回只读副本（控制面板用）
func (t *Tracker) All() map[string]int {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]int, len(t.last))
	for k, v := range t.last {
		out[k] = v
	}
	return out
}
