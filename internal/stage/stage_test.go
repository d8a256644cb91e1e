package stage

import (
	"testing"

	"github.com/pipbot/gopip/internal/domain"
)

func snapWithRatio(symbol string, ratio float64) domain.PriceSnapshot {
	cfg := domain.SymbolConfig{
		Symbol:        symbol,
		PipSize:       0.0001,
		ThresholdPips: 30,
		LotSize:       0.1,
		VolumeStep:    0.01,
		Tradeable:     true,
	}
	start := 1.1000
	cur := start + ratio*cfg.ThresholdPips*cfg.PipSize
	return domain.BuildSnapshot(cfg, start, cur, cur, start)
}

func TestCheck_FiresOncePerStage(t *testing.T) {
	last := 0

	// ratio 0.5：未到第一档
	newLast, evt := Check(snapWithRatio("EURUSD", 0.5), last, 1)
	if evt != nil || newLast != 0 {
		t.Fatalf("ratio 0.5 不应该触发: evt=%v last=%d", evt, newLast)
	}

	// ratio 1.2：触发第一档
	newLast, evt = Check(snapWithRatio("EURUSD", 1.2), newLast, 1)
	if evt == nil || evt.Stage != 1 || newLast != 1 {
		t.Fatalf("ratio 1.2 应该触发第一档: evt=%v last=%d", evt, newLast)
	}

	// 同一档位不重复触发
	newLast, evt = Check(snapWithRatio("EURUSD", 1.3), newLast, 1)
	if evt != nil {
		t.Fatalf("同档位重复 tick 不应该再触发: evt=%v", evt)
	}

	// 回落后 lastSent 不减小
	newLast, evt = Check(snapWithRatio("EURUSD", 0.9), newLast, 1)
	if evt != nil || newLast != 1 {
		t.Fatalf("回落不应该触发也不应该减小: evt=%v last=%d", evt, newLast)
	}

	// 直接跳到 2.3：触发第二档（且被 MaxStage 截断）
	newLast, evt = Check(snapWithRatio("EURUSD", 2.3), newLast, 1)
	if evt == nil || evt.Stage != 2 || newLast != 2 {
		t.Fatalf("ratio 2.3 应该触发第二档: evt=%v last=%d", evt, newLast)
	}

	// 超过 MaxStage 之后不再有新事件
	newLast, evt = Check(snapWithRatio("EURUSD", 5.0), newLast, 1)
	if evt != nil || newLast != 2 {
		t.Fatalf("超过 MaxStage 不应该再触发: evt=%v last=%d", evt, newLast)
	}
}

// TestCheck_SequenceExactlyTwoEvents 给定往返序列恰好发两次事件
func TestCheck_SequenceExactlyTwoEvents(t *testing.T) {
	ratios := []float64{0.5, 1.2, 0.9, 1.5, 2.3, 1.8}
	last, fired := 0, 0
	for _, r := range ratios {
		var evt *domain.StageEvent
		last, evt = Check(snapWithRatio("EURUSD", r), last, 1)
		if evt != nil {
			fired++
		}
	}
	if fired != 2 {
		t.Fatalf("序列 %v 应该恰好触发 2 次，实际 %d 次", ratios, fired)
	}
	if last != 2 {
		t.Fatalf("序列结束后 lastSent 应该为 2，实际为 %d", last)
	}
}

func TestCheck_MinStage(t *testing.T) {
	// minStage=2 时第一档被跳过，但 lastSent 仍然推进
	last, evt := Check(snapWithRatio("EURUSD", 1.2), 0, 2)
	if evt != nil {
		t.Fatalf("minStage=2 时第一档不应该触发: evt=%v", evt)
	}
	if last != 1 {
		t.Fatalf("lastSent 仍应该推进到 1，实际为 %d", last)
	}

	last, evt = Check(snapWithRatio("EURUSD", 2.1), last, 2)
	if evt == nil || evt.Stage != 2 {
		t.Fatalf("minStage=2 时第二档应该触发: evt=%v", evt)
	}
	_ = last
}

func TestTracker_PerSymbolIsolationAndReset(t *testing.T) {
	tr := NewTracker()

	if evt := tr.Check(snapWithRatio("EURUSD", 1.5), 1); evt == nil {
		t.Fatalf("EURUSD 第一档应该触发")
	}
	// 另一个品种独立计数
	if evt := tr.Check(snapWithRatio("USDJPY", 1.5), 1); evt == nil {
		t.Fatalf("USDJPY 第一档应该触发")
	}
	if evt := tr.Check(snapWithRatio("EURUSD", 1.6), 1); evt != nil {
		t.Fatalf("EURUSD 同档位不应该重复触发")
	}

	// 人工重置单品种后可再次触发
	tr.Reset("EURUSD")
	if evt := tr.Check(snapWithRatio("EURUSD", 1.6), 1); evt == nil {
		t.Fatalf("重置后 EURUSD 应该可以再次触发")
	}
	if tr.LastSent("USDJPY") != 1 {
		t.Fatalf("重置 EURUSD 不应该影响 USDJPY")
	}

	// 换日整体归零
	tr.ResetAll()
	if len(tr.All()) != 0 {
		t.Fatalf("ResetAll 之后计数应该为空，实际为 %v", tr.All())
	}
}
