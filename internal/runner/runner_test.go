package runner

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pipbot/gopip/internal/anchor"
	"github.com/pipbot/gopip/internal/domain"
	"github.com/pipbot/gopip/internal/engine"
	"github.com/pipbot/gopip/internal/gateway"
	"github.com/pipbot/gopip/internal/notify"
	"github.com/pipbot/gopip/internal/pricefeed"
	"github.com/pipbot/gopip/internal/stage"
)

// fakeSource 可编程行情源
type fakeSource struct {
	mu       sync.Mutex
	price    map[string]float64
	priceErr map[string]error
	anchorPx map[string]float64
	high     map[string]float64
	low      map[string]float64
	extErr   map[string]error
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		price:    make(map[string]float64),
		priceErr: make(map[string]error),
		anchorPx: make(map[string]float64),
		high:     make(map[string]float64),
		low:      make(map[string]float64),
		extErr:   make(map[string]error),
	}
}

func (f *fakeSource) CurrentPrice(_ context.Context, symbol string) (pricefeed.Tick, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.priceErr[symbol]; err != nil {
		return pricefeed.Tick{}, err
	}
	return pricefeed.Tick{Symbol: symbol, Last: f.price[symbol], Time: time.Now()}, nil
}

func (f *fakeSource) AnchorPrice(_ context.Context, symbol string, _ time.Time) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.anchorPx[symbol], nil
}

func (f *fakeSource) ExtremesSince(_ context.Context, symbol string, _ time.Time) (float64, float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.extErr[symbol]; err != nil {
		return 0, 0, err
	}
	return f.high[symbol], f.low[symbol], nil
}

// recordNotifier 记录所有通知
type recordNotifier struct {
	mu   sync.Mutex
	sent []string
}

func (r *recordNotifier) Send(ch notify.Channel, msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, string(ch)+": "+msg)
}

func (r *recordNotifier) count(substr string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, s := range r.sent {
		if strings.Contains(s, substr) {
			n++
		}
	}
	return n
}

type fixture struct {
	runner   *Runner
	source   *fakeSource
	anchors  *anchor.Store
	stages   *stage.Tracker
	gw       *gateway.Paper
	notifier *recordNotifier
	symbols  []domain.SymbolConfig
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	symbols := []domain.SymbolConfig{{
		Symbol:        "EURUSD",
		PipSize:       0.0001,
		ThresholdPips: 30,
		LotSize:       0.1,
		VolumeStep:    0.01,
		Tradeable:     true,
	}}

	src := newFakeSource()
	src.anchorPx["EURUSD"] = 1.1000
	src.price["EURUSD"] = 1.1000
	src.high["EURUSD"] = 1.1000
	src.low["EURUSD"] = 1.1000

	anchors, err := anchor.NewStore(anchor.Config{}, src)
	if err != nil {
		t.Fatalf("NewStore 失败: %v", err)
	}
	eng, err := engine.New(engine.DefaultWindows())
	if err != nil {
		t.Fatalf("engine.New 失败: %v", err)
	}

	stages := stage.NewTracker()
	gw := gateway.NewPaper()
	notifier := &recordNotifier{}

	r := New(Config{Interval: time.Second, MinStage: 1},
		symbols, src, anchors, stages, eng, gw, notifier, nil, nil)
	return &fixture{runner: r, source: src, anchors: anchors, stages: stages,
		gw: gw, notifier: notifier, symbols: symbols}
}

// setRatio 把当前价调到给定阈值比例
func (f *fixture) setRatio(ratio float64) {
	cur := 1.1000 + ratio*30*0.0001
	f.source.mu.Lock()
	f.source.price["EURUSD"] = cur
	if cur > f.source.high["EURUSD"] {
		f.source.high["EURUSD"] = cur
	}
	f.source.mu.Unlock()
}

func serverTime(t *testing.T, value string) time.Time {
	t.Helper()
	loc, err := time.LoadLocation("Etc/GMT-3")
	if err != nil {
		t.Fatalf("加载时区失败: %v", err)
	}
	ts, err := time.ParseInLocation("2006-01-02 15:04", value, loc)
	if err != nil {
		t.Fatalf("解析时间失败: %v", err)
	}
	return ts
}

func TestTick_PriceErrorSkipsSymbol(t *testing.T) {
	f := newFixture(t)
	now := serverTime(t, "2026-08-20 10:00")

	f.source.priceErr["EURUSD"] = fmt.Errorf("feed down")
	f.runner.tickAll(context.Background(), now)

	if len(f.runner.Snapshots()) != 0 {
		t.Fatalf("取价失败时不应该产生快照")
	}

	// 恢复后下一 tick 正常评估
	f.source.priceErr["EURUSD"] = nil
	f.runner.tickAll(context.Background(), now.Add(time.Second))
	if len(f.runner.Snapshots()) != 1 {
		t.Fatalf("恢复后应该产生快照")
	}
}

func TestTick_ExtremesFallbackNeverBlocks(t *testing.T) {
	f := newFixture(t)
	now := serverTime(t, "2026-08-20 10:00")

	f.setRatio(1.1)
	f.source.extErr["EURUSD"] = fmt.Errorf("extremes down")
	f.runner.tickAll(context.Background(), now)

	snaps := f.runner.Snapshots()
	if len(snaps) != 1 {
		t.Fatalf("极值失败不应该阻断评估")
	}
	s := snaps[0]
	if s.High != s.CurrentPrice || s.Low != s.CurrentPrice {
		t.Fatalf("极值失败时 high/low 应该等于当前价: %+v", s)
	}

	// 评估照常进行：ratio 1.1 在开仓窗口内
	open, _ := f.gw.PositionOpen(context.Background(), "EURUSD")
	if !open {
		t.Fatalf("极值失败时开仓决策仍然应该执行")
	}
}

func TestTick_StageThenOpenThenClose(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	now := serverTime(t, "2026-08-20 10:00")

	// ratio 0.5：什么都不发生
	f.setRatio(0.5)
	f.runner.tickAll(ctx, now)
	if f.stages.LastSent("EURUSD") != 0 {
		t.Fatalf("ratio 0.5 不应该推进档位")
	}

	// ratio 1.1：第一档事件 + 开仓
	f.setRatio(1.1)
	f.runner.tickAll(ctx, now.Add(time.Second))
	if f.stages.LastSent("EURUSD") != 1 {
		t.Fatalf("应该推进到第一档，实际为 %d", f.stages.LastSent("EURUSD"))
	}
	if got := f.notifier.count("threshold x1"); got != 1 {
		t.Fatalf("第一档通知应该发一次，实际 %d 次", got)
	}
	open, _ := f.gw.PositionOpen(ctx, "EURUSD")
	if !open {
		t.Fatalf("ratio 1.1 应该开仓")
	}

	// 同档位重复 tick：不重复开仓、不重复通知
	f.runner.tickAll(ctx, now.Add(2*time.Second))
	if got := f.notifier.count("threshold x1"); got != 1 {
		t.Fatalf("同档位不应该重复通知，实际 %d 次", got)
	}

	// ratio 1.9：落在平仓窗口 → 平仓（第二档事件要到 2.0 才触发）
	f.setRatio(1.9)
	f.runner.tickAll(ctx, now.Add(3*time.Second))
	open, _ = f.gw.PositionOpen(ctx, "EURUSD")
	if open {
		t.Fatalf("ratio 1.9 应该平仓")
	}
	if got := f.notifier.count("TRADE SIGNAL: CLOSE"); got != 1 {
		t.Fatalf("平仓通知应该发一次，实际 %d 次", got)
	}
	if f.stages.LastSent("EURUSD") != 1 {
		t.Fatalf("ratio 1.9 不应该推进到第二档")
	}

	// ratio 2.3：第二档事件（已无持仓，且不在开仓窗口，不再下单）
	f.setRatio(2.3)
	f.runner.tickAll(ctx, now.Add(4*time.Second))
	if f.stages.LastSent("EURUSD") != 2 {
		t.Fatalf("应该推进到第二档")
	}
	if got := f.notifier.count("threshold x2"); got != 1 {
		t.Fatalf("第二档通知应该发一次，实际 %d 次", got)
	}
	open, _ = f.gw.PositionOpen(ctx, "EURUSD")
	if open {
		t.Fatalf("ratio 2.3 不在开仓窗口，不应该再开仓")
	}
}

func TestTick_NotTradeableSkipsExecution(t *testing.T) {
	f := newFixture(t)
	f.runner.symbols[0].Tradeable = false
	ctx := context.Background()

	f.setRatio(1.1)
	f.runner.tickAll(ctx, serverTime(t, "2026-08-20 10:00"))

	// 档位事件照发，但不下单
	if f.stages.LastSent("EURUSD") != 1 {
		t.Fatalf("监控品种的档位事件应该照发")
	}
	open, _ := f.gw.PositionOpen(ctx, "EURUSD")
	if open {
		t.Fatalf("未开启交易的品种不应该下单")
	}
}

func TestRollover_ResetsAnchorsAndStages(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	day1 := serverTime(t, "2026-08-20 10:00")

	f.setRatio(1.1)
	f.runner.tickAll(ctx, day1)
	if f.stages.LastSent("EURUSD") != 1 {
		t.Fatalf("第一天应该推进到第一档")
	}

	// 次日锚点时刻之后的第一轮：先换日再遍历品种
	// 新锚点价取当前价，保证换日后 ratio 归零、档位不再推进
	f.source.mu.Lock()
	f.source.anchorPx["EURUSD"] = f.source.price["EURUSD"]
	f.source.mu.Unlock()
	day2 := serverTime(t, "2026-08-21 08:05")
	f.runner.tickAll(ctx, day2)

	anchors := f.anchors.All()
	if got := anchors["EURUSD"].TradingDay.Format("2006-01-02"); got != "2026-08-21" {
		t.Fatalf("换日后交易日应该为 2026-08-21，实际为 %s", got)
	}
	if anchors["EURUSD"].StartPrice == 1.1000 {
		t.Fatalf("换日后锚点价应该重建，实际为 %v", anchors["EURUSD"].StartPrice)
	}
	if f.stages.LastSent("EURUSD") != 0 {
		t.Fatalf("换日后档位应该归零，实际为 %d", f.stages.LastSent("EURUSD"))
	}

	// 同一天内不重复换日
	before := f.notifier.count("daily_anchor_rollover")
	f.runner.tickAll(ctx, day2.Add(time.Second))
	after := f.notifier.count("daily_anchor_rollover")
	if before != 1 || after != 1 {
		t.Fatalf("换日快照应该恰好发一次: before=%d after=%d", before, after)
	}
}
