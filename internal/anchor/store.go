package anchor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/pipbot/gopip/internal/domain"
)

var log = logrus.WithField("component", "anchor")

// StartPriceSource 锚点价来源（由 pricefeed 实现）
type StartPriceSource interface {
	AnchorPrice(ctx context.Context, symbol string, at time.Time) (float64, error)
}

// Config 锚点配置
// 锚点取服务器时区某个固定钟点的价格（默认 08:00 @ Etc/GMT-3），
// 周末按 previous_trading_day 策略平移到周五
type Config struct {
	ServerTZ     string // 服务器时区，默认 Etc/GMT-3
	AnchorHour   int    // 锚点小时（服务器时区）
	AnchorMinute int    // 锚点分钟
}

func (c *Config) applyDefaults() {
	if c.ServerTZ == "" {
		c.ServerTZ = "Etc/GMT-3"
	}
	if c.AnchorHour == 0 && c.AnchorMinute == 0 {
		c.AnchorHour = 8
	}
}

// Store 每品种每日锚点的所有者
// 锚点是值对象：Resolve 返回副本，换日时整体替换，不原地修改
type Store struct {
	loc    *time.Location
	cfg    Config
	source StartPriceSource

	mu      sync.RWMutex
	anchors map[string]domain.Anchor
}

// NewStore 创建锚点存储
func NewStore(cfg Config, source StartPriceSource) (*Store, error) {
	cfg.applyDefaults()
	loc, err := time.LoadLocation(cfg.ServerTZ)
	if err != nil {
		return nil, fmt.Errorf("加载服务器时区 %s 失败: %w", cfg.ServerTZ, err)
	}
	return &Store{
		loc:     loc,
		cfg:     cfg,
		source:  source,
		anchors: make(map[string]domain.Anchor),
	}, nil
}

// TradingDay 返回 now 所属的交易日（服务器时区日期，周末平移到周五）
func (s *Store) TradingDay(now time.Time) time.Time {
	d := now.In(s.loc)
	switch d.Weekday() {
	case time.Saturday:
		d = d.AddDate(0, 0, -1)
	case time.Sunday:
		d = d.AddDate(0, 0, -2)
	}
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, s.loc)
}

// AnchorTime 返回 now 所属交易日的锚点时刻
func (s *Store) AnchorTime(now time.Time) time.Time {
	day := s.TradingDay(now)
	return time.Date(day.Year(), day.Month(), day.Day(), s.cfg.AnchorHour, s.cfg.AnchorMinute, 0, 0, s.loc)
}

// Resolve 返回当前交易日的锚点；过期则向价格源取新锚点价重建
// 失败只影响本品种：调用方跳过该品种的本次 tick，下一 tick 自动重试
func (s *Store) Resolve(ctx context.Context, symbol string, now time.Time) (domain.Anchor, error) {
	day := s.TradingDay(now)

	s.mu.RLock()
	a, ok := s.anchors[symbol]
	s.mu.RUnlock()
	if ok && a.SameTradingDay(day) {
		return a, nil
	}

	return s.refresh(ctx, symbol, now)
}

// refresh 强制重建锚点（忽略缓存）
func (s *Store) refresh(ctx context.Context, symbol string, now time.Time) (domain.Anchor, error) {
	day := s.TradingDay(now)
	at := s.AnchorTime(now)

	price, err := s.source.AnchorPrice(ctx, symbol, at)
	if err != nil {
		return domain.Anchor{}, fmt.Errorf("获取 %s 锚点价失败: %w", symbol, err)
	}
	if price <= 0 {
		return domain.Anchor{}, fmt.Errorf("%s 锚点价非法: %v", symbol, price)
	}

	a := domain.Anchor{
		Symbol:     symbol,
		StartPrice: price,
		TradingDay: day,
		AnchorTime: at,
	}

	s.mu.Lock()
	s.anchors[symbol] = a
	s.mu.Unlock()

	log.Infof("锚点已更新: %s start=%v day=%s", symbol, price, day.Format("2006-01-02"))
	return a, nil
}

// IsDueToRoll 判断是否需要换日
// 纯时间检查：已过今天的锚点时刻，且存在属于旧交易日的锚点
func (s *Store) IsDueToRoll(now time.Time) bool {
	if now.In(s.loc).Before(s.AnchorTime(now)) {
		return false
	}

	day := s.TradingDay(now)
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.anchors {
		if !a.SameTradingDay(day) {
			return true
		}
	}
	return false
}

// RollAll 批量换日：逐品种强制重建锚点
// 单品种失败不阻断其余品种（保留旧锚点，下一 tick 由 Resolve 重试）
// 调用方必须在同一逻辑操作内重置全部档位状态（stage.Tracker.ResetAll）
func (s *Store) RollAll(ctx context.Context, symbols []string, now time.Time) (map[string]domain.Anchor, map[string]error) {
	rolled := make(map[string]domain.Anchor, len(symbols))
	failed := make(map[string]error)
	for _, sym := range symbols {
		a, err := s.refresh(ctx, sym, now)
		if err != nil {
			log.Warnf("换日刷新失败: %v", err)
			failed[sym] = err
			continue
		}
		rolled[sym] = a
	}
	return rolled, failed
}

// All 返回锚点的只读副本（控制面板用）
func (s *Store) All() map[string]domain.Anchor {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]domain.Anchor, len(s.anchors))
	for k, v := range s.anchors {
		out[k] = v
	}
	return out
}
