package runner

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/pipbot/gopip/internal/anchor"
	"github.com/pipbot/gopip/internal/common"
	"github.com/pipbot/gopip/internal/domain"
	"github.com/pipbot/gopip/internal/engine"
	"github.com/pipbot/gopip/internal/gateway"
	"github.com/pipbot/gopip/internal/journal"
	"github.com/pipbot/gopip/internal/metrics"
	"github.com/pipbot/gopip/internal/notify"
	"github.com/pipbot/gopip/internal/pricefeed"
	"github.com/pipbot/gopip/internal/stage"
	"github.com/pipbot/gopip/pkg/logger"
	"github.com/pipbot/gopip/pkg/persistence"
)

var log = logrus.WithField("component", "runner")

// Config 轮询配置
type Config struct {
	Interval time.Duration // 轮询间隔，默认 1s
	MinStage int           // 最低通知档位，默认 1
}

func (c *Config) applyDefaults() {
	if c.Interval <= 0 {
		c.Interval = time.Second
	}
	if c.MinStage <= 0 {
		c.MinStage = 1
	}
}

// Runner 每 tick 的编排器
//
// 单品种处理顺序固定：取当前价 → 解析锚点 → 取极值（失败用当前价代替）→
// 构造快照 → 档位门控 → 决策引擎 → 分发。品种间互不依赖，
// 任一品种的失败只跳过该品种本次 tick。
// 换日检查每轮循环做一次（不是每品种一次），锚点刷新和档位归零
// 在同一逻辑操作内完成。
type Runner struct {
	cfg      Config
	symbols  []domain.SymbolConfig
	source   pricefeed.Source
	anchors  *anchor.Store
	stages   *stage.Tracker
	engine   *engine.Engine
	gw       gateway.Gateway
	notifier notify.Notifier
	journal  *journal.Journal     // 可为 nil（未启用流水）
	dumps    persistence.Service  // 可为 nil（未启用快照 dump）

	loopOnce sync.Once
	cancel   context.CancelFunc
	stopped  chan struct{}

	mu     sync.RWMutex
	latest map[string]domain.PriceSnapshot
}

// New 创建 Runner
func New(
	cfg Config,
	symbols []domain.SymbolConfig,
	source pricefeed.Source,
	anchors *anchor.Store,
	stages *stage.Tracker,
	eng *engine.Engine,
	gw gateway.Gateway,
	notifier notify.Notifier,
	jnl *journal.Journal,
	dumps persistence.Service,
) *Runner {
	cfg.applyDefaults()
	return &Runner{
		cfg:      cfg,
		symbols:  symbols,
		source:   source,
		anchors:  anchors,
		stages:   stages,
		engine:   eng,
		gw:       gw,
		notifier: notifier,
		journal:  jnl,
		dumps:    dumps,
		stopped:  make(chan struct{}),
		latest:   make(map[string]domain.PriceSnapshot),
	}
}

// Start 启动轮询循环（只会启动一次）
// 启动前先预热所有锚点并发送启动快照
func (r *Runner) Start(ctx context.Context) {
	common.StartLoopOnce(ctx, &r.loopOnce, func(c context.CancelFunc) { r.cancel = c },
		r.cfg.Interval, func(loopCtx context.Context, tickC <-chan time.Time) {
			defer close(r.stopped)

			r.boot(loopCtx)
			for {
				select {
				case <-loopCtx.Done():
					return
				case now := <-tickC:
					r.tickAll(loopCtx, now)
				}
			}
		})
}

// Stop 停止循环并等待当前 tick 完成（在途下单允许收尾）
func (r *Runner) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
	<-r.stopped
}

// Snapshots 返回各品种最近一次快照（控制面板 / TUI 用）
func (r *Runner) Snapshots() []domain.PriceSnapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.PriceSnapshot, 0, len(r.latest))
	for _, cfg := range r.symbols {
		if s, ok := r.latest[cfg.Symbol]; ok {
			out = append(out, s)
		}
	}
	return out
}

// boot 启动流程：预热锚点 + 启动快照
func (r *Runner) boot(ctx context.Context) {
	now := time.Now()
	for _, cfg := range r.symbols {
		if _, err := r.anchors.Resolve(ctx, cfg.Symbol, now); err != nil {
			log.Warnf("启动预热锚点失败: %v", err)
		}
	}
	r.dumpSnapshot(ctx, now, "boot")
}

// tickAll 一轮完整的轮询
func (r *Runner) tickAll(ctx context.Context, now time.Time) {
	// 换日检查每轮只做一次，并且先于品种遍历：
	// Resolve 在品种遍历中会就地刷新过期锚点，如果放在遍历之后，
	// 档位归零会永远等不到换日信号
	if r.anchors.IsDueToRoll(now) {
		r.rollover(ctx, now)
	}

	for _, cfg := range r.symbols {
		if ctx.Err() != nil {
			return
		}
		r.tickSymbol(ctx, cfg, now)
	}
}

// tickSymbol 单品种处理（失败只影响本品种的本次 tick）
func (r *Runner) tickSymbol(ctx context.Context, cfg domain.SymbolConfig, now time.Time) {
	metrics.Ticks.Add(1)
	sym := cfg.Symbol

	// 1. 当前价：失败跳过本次 tick
	tick, err := r.source.CurrentPrice(ctx, sym)
	if err != nil {
		metrics.TickSkips.Add(1)
		log.Warnf("[%s] 获取当前价失败，跳过本次 tick: %v", sym, err)
		return
	}
	cur, ok := tick.Mid()
	if !ok {
		metrics.TickSkips.Add(1)
		r.notifier.Send(notify.ChannelCritical,
			fmt.Sprintf("[%s] No usable price (tick missing). Skipping this tick.", sym))
		return
	}

	// 2. 锚点：失败跳过，下一 tick 自动重试
	a, err := r.anchors.Resolve(ctx, sym, now)
	if err != nil {
		metrics.TickSkips.Add(1)
		log.Warnf("[%s] 锚点解析失败，跳过本次 tick: %v", sym, err)
		return
	}

	// 3. 极值：失败用当前价代替（只降低 strong_direction 的精度，绝不中断评估）
	high, low, err := r.source.ExtremesSince(ctx, sym, a.AnchorTime)
	if err != nil {
		metrics.ExtremesFallbacks.Add(1)
		log.Debugf("[%s] 极值查询失败，用当前价代替: %v", sym, err)
		high, low = cur, cur
	}

	// 4. 快照
	snap := domain.BuildSnapshot(cfg, a.StartPrice, cur, high, low)
	r.mu.Lock()
	r.latest[sym] = snap
	r.mu.Unlock()

	// 5. 档位门控 → info 通知
	if evt := r.stages.Check(snap, r.cfg.MinStage); evt != nil {
		metrics.StageNotifications.Add(1)
		r.notifier.Send(notify.ChannelInfo, evt.Message())
		if r.journal != nil {
			r.journal.RecordStageEvent(ctx, *evt, a.TradingDay)
		}
	}

	// 6. 持仓状态由网关提供；查询失败按无持仓处理
	open, err := r.gw.PositionOpen(ctx, sym)
	if err != nil {
		log.Debugf("[%s] 持仓查询失败，按无持仓处理: %v", sym, err)
		open = false
	}

	// 7. 决策与分发
	decision := r.engine.Evaluate(snap, open)
	if !decision.Actionable() {
		return
	}
	r.dispatch(ctx, cfg, snap, decision)
}

// dispatch 把决策提交到下单网关
func (r *Runner) dispatch(ctx context.Context, cfg domain.SymbolConfig, snap domain.PriceSnapshot, d domain.TradeDecision) {
	if !cfg.Tradeable {
		log.Infof("[%s] 信号 %s 但品种未开启交易，跳过执行", cfg.Symbol, d.Signal)
		return
	}

	switch d.Signal {
	case domain.SignalOpen:
		r.notifier.Send(notify.ChannelNormal, formatPlaceMessage(snap, d))
		vol := gateway.NormalizeVolume(cfg.LotSize, cfg.VolumeStep)
		placed, err := r.gw.Open(ctx, cfg.Symbol, d.Side, vol)
		r.recordOrder(ctx, d, placed, err)

	case domain.SignalClose:
		r.notifier.Send(notify.ChannelNormal, formatCloseMessage(snap, d))
		placed, err := r.gw.Close(ctx, cfg.Symbol, d.Reason)
		r.recordOrder(ctx, d, placed, err)
	}
}

func (r *Runner) recordOrder(ctx context.Context, d domain.TradeDecision, placed *gateway.PlacedOrder, err error) {
	price := 0.0
	if placed != nil {
		price = placed.Price
	}
	if r.journal != nil {
		r.journal.RecordOrder(ctx, d, price, err)
	}
	if err != nil {
		metrics.OrderErrors.Add(1)
		r.notifier.Send(notify.ChannelCritical,
			fmt.Sprintf("[%s] order %s failed: %v", d.Symbol, d.Signal, err))
		return
	}
	if d.Signal == domain.SignalOpen {
		metrics.OrdersPlaced.Add(1)
	} else {
		metrics.OrdersClosed.Add(1)
	}
}

// rollover 换日：锚点批量刷新 + 档位整体归零在同一逻辑操作内完成，
// 任何品种都不会在新锚点下看到残留的旧档位计数
func (r *Runner) rollover(ctx context.Context, now time.Time) {
	metrics.AnchorRollovers.Add(1)

	names := make([]string, 0, len(r.symbols))
	for _, c := range r.symbols {
		names = append(names, c.Symbol)
	}

	rolled, failed := r.anchors.RollAll(ctx, names, now)
	r.stages.ResetAll()

	if err := logger.RotateForDay(now); err != nil {
		log.Warnf("日志换日切换失败: %v", err)
	}

	log.Infof("每日锚点换日完成: 成功 %d, 失败 %d", len(rolled), len(failed))
	r.dumpSnapshot(ctx, now, "daily_anchor_rollover")
}

// snapshotEntry 启动/换日快照的一行
type snapshotEntry struct {
	Symbol       string  `json:"symbol"`
	StartPrice   float64 `json:"start_price"`
	CurrentPrice float64 `json:"current_price"`
	Timestamp    string  `json:"timestamp"`
}

// dumpSnapshot 发送快照通知并落盘（原样对应启动快照 / 换日快照）
func (r *Runner) dumpSnapshot(ctx context.Context, now time.Time, label string) {
	entries := make([]snapshotEntry, 0, len(r.symbols))
	lines := []string{fmt.Sprintf("🟢 **%s Snapshot** — %s", label, now.Format("2006-01-02T15:04:05")), ""}

	for _, cfg := range r.symbols {
		var start, cur float64
		if a, err := r.anchors.Resolve(ctx, cfg.Symbol, now); err == nil {
			start = a.StartPrice
		}
		if t, err := r.source.CurrentPrice(ctx, cfg.Symbol); err == nil {
			cur, _ = t.Mid()
		}
		entries = append(entries, snapshotEntry{
			Symbol:       cfg.Symbol,
			StartPrice:   start,
			CurrentPrice: cur,
			Timestamp:    now.Format(time.RFC3339),
		})
		lines = append(lines, fmt.Sprintf("%s: start=%v  current=%v", cfg.Symbol, start, cur))
	}

	r.notifier.Send(notify.ChannelInfo, strings.Join(lines, "\n"))

	if r.dumps != nil {
		day := r.anchors.TradingDay(now).Format("2006-01-02")
		store := r.dumps.NewStore("snapshot", day, strings.ToLower(strings.ReplaceAll(label, " ", "_")))
		if err := store.Save(entries); err != nil {
			log.Warnf("快照落盘失败: %v", err)
		}
	}
}

func formatPlaceMessage(snap domain.PriceSnapshot, d domain.TradeDecision) string {
	lines := []string{
		"TRADE SIGNAL: PLACE (1st threshold)",
		"Symbol: " + snap.Symbol,
		"Side: " + string(d.Side),
		fmt.Sprintf("Threshold Ratio: %.2f", d.Ratio),
		fmt.Sprintf("Pips Moved: %.1f", snap.PipsMoved),
		fmt.Sprintf("Threshold (pips): %v", snap.ThresholdPips),
		fmt.Sprintf("Start Price: %v", snap.StartPrice),
		fmt.Sprintf("Current Price: %v", snap.CurrentPrice),
		fmt.Sprintf("Latest High: %v", snap.High),
		fmt.Sprintf("Latest Low: %v", snap.Low),
		"Strategy: ThresholdV1",
	}
	return strings.Join(lines, "\n")
}

func formatCloseMessage(snap domain.PriceSnapshot, d domain.TradeDecision) string {
	lines := []string{
		"TRADE SIGNAL: CLOSE (2nd threshold)",
		"Symbol: " + snap.Symbol,
		fmt.Sprintf("Threshold Ratio: %.2f", d.Ratio),
		fmt.Sprintf("Pips Moved: %.1f", snap.PipsMoved),
		fmt.Sprintf("Threshold (pips): %v", snap.ThresholdPips),
		fmt.Sprintf("Start Price: %v", snap.StartPrice),
		fmt.Sprintf("Current Price: %v", snap.CurrentPrice),
		"Strategy: ThresholdV1",
	}
	return strings.Join(lines, "\n")
}
