package domain

import (
	"fmt"
	"math"
)

// Direction 价格运动方向
type Direction string

const (
	DirectionUp   Direction = "UP"
	DirectionDown Direction = "DOWN"
	DirectionFlat Direction = "FLAT"
)

// PriceSnapshot 单个 tick 的价格快照（每 tick 构造一次，构造后不可变）
//
// 派生字段在 BuildSnapshot 中一次性计算：
//   - PipsMoved：带符号的 pip 位移 (current - start) / pip_size
//   - Direction：当前价相对锚点价的方向
//   - StrongDirection：用日内极值而不是当前价计算的方向；
//     和 Direction 不一致时意味着出现回撤
//   - ThresholdRatio：|PipsMoved| / threshold_pips，无量纲
type PriceSnapshot struct {
	Symbol       string
	StartPrice   float64
	CurrentPrice float64
	High         float64 // 锚点以来的最高价
	Low          float64 // 锚点以来的最低价

	PipSize       float64
	ThresholdPips float64

	PipsMoved       float64
	Direction       Direction
	StrongDirection Direction
	ThresholdRatio  float64
}

// BuildSnapshot 构造价格快照
// 对合法数值输入永不失败。极值会被夹到包含当前价，
// 保证不变式 Low <= CurrentPrice <= High 恒成立
// （极值源不可用时调用方用当前价同时填 high/low，也落在这条路径上）。
func BuildSnapshot(cfg SymbolConfig, startPrice, currentPrice, high, low float64) PriceSnapshot {
	if high < currentPrice {
		high = currentPrice
	}
	if low > currentPrice || low <= 0 {
		low = currentPrice
	}

	s := PriceSnapshot{
		Symbol:        cfg.Symbol,
		StartPrice:    startPrice,
		CurrentPrice:  currentPrice,
		High:          high,
		Low:           low,
		PipSize:       cfg.PipSize,
		ThresholdPips: cfg.ThresholdPips,
	}

	s.PipsMoved = (currentPrice - startPrice) / cfg.PipSize

	switch {
	case s.PipsMoved > 0:
		s.Direction = DirectionUp
	case s.PipsMoved < 0:
		s.Direction = DirectionDown
	default:
		s.Direction = DirectionFlat
	}

	// 强方向：看极值一侧的 pip 位移，且必须达到一个完整阈值档位
	upPips := (high - startPrice) / cfg.PipSize
	downPips := (startPrice - low) / cfg.PipSize
	switch {
	case upPips > downPips && upPips >= cfg.ThresholdPips:
		s.StrongDirection = DirectionUp
	case downPips > upPips && downPips >= cfg.ThresholdPips:
		s.StrongDirection = DirectionDown
	default:
		s.StrongDirection = DirectionFlat
	}

	s.ThresholdRatio = math.Abs(s.PipsMoved) / cfg.ThresholdPips
	return s
}

// Map 返回快照的键值表示（用于持久化 dump 和通知内容）
func (s PriceSnapshot) Map() map[string]interface{} {
	return map[string]interface{}{
		"symbol":           s.Symbol,
		"start_price":      s.StartPrice,
		"current_price":    s.CurrentPrice,
		"latest_high":      s.High,
		"latest_low":       s.Low,
		"pips_moved":       round1(s.PipsMoved),
		"direction":        string(s.Direction),
		"strong_direction": string(s.StrongDirection),
		"threshold_ratio":  round2(s.ThresholdRatio),
	}
}

// Summary 单行摘要，用于日志和通知
func (s PriceSnapshot) Summary() string {
	return fmt.Sprintf("start=%v cur=%v pips=%v dir=%s strong=%s ratio=%.2f",
		s.StartPrice, s.CurrentPrice, round1(s.PipsMoved),
		s.Direction, s.StrongDirection, s.ThresholdRatio)
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }
func round2(v float64) float64 { return math.Round(v*100) / 100 }
