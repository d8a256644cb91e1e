package engine

import (
	"fmt"

	"github.com/pipbot/gopip/internal/domain"
)

// Windows 开平仓窗口（阈值比值的闭区间，边界按 >= / <= 计入）
type Windows struct {
	PlaceMin float64 // 开仓窗口下界，默认 1.00
	PlaceMax float64 // 开仓窗口上界，默认 1.25
	CloseMin float64 // 平仓窗口下界，默认 1.80
	CloseMax float64 // 平仓窗口上界，默认 2.00
}

// DefaultWindows 默认窗口
func DefaultWindows() Windows {
	return Windows{PlaceMin: 1.00, PlaceMax: 1.25, CloseMin: 1.80, CloseMax: 2.00}
}

// Validate 验证窗口配置（启动期校验，运行期 Evaluate 永不报错）
func (w Windows) Validate() error {
	if w.PlaceMin <= 0 || w.PlaceMax <= 0 || w.CloseMin <= 0 || w.CloseMax <= 0 {
		return fmt.Errorf("窗口边界必须大于 0")
	}
	if w.PlaceMin > w.PlaceMax {
		return fmt.Errorf("开仓窗口非法: min=%.2f > max=%.2f", w.PlaceMin, w.PlaceMax)
	}
	if w.CloseMin > w.CloseMax {
		return fmt.Errorf("平仓窗口非法: min=%.2f > max=%.2f", w.CloseMin, w.CloseMax)
	}
	return nil
}

// Engine 决策引擎
// Evaluate 是纯函数：无副作用、无 I/O、无隐藏计数器，
// 相同 (snapshot, isPositionOpen) 输入永远得到相同决策
type Engine struct {
	windows Windows
}

// New 创建决策引擎
func New(w Windows) (*Engine, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}
	return &Engine{windows: w}, nil
}

// Evaluate 把快照和持仓状态映射为交易决策
//
// 规则（区间全部含边界）：
//   - 已有持仓且 ratio 落在平仓窗口 → CLOSE
//   - 无持仓且 ratio 落在开仓窗口 → OPEN（方向取 StrongDirection，回撤时退回 Direction）
//   - 已有持仓（不在平仓窗口）→ HOLD（绝不重复开仓）
//   - 其余 → NONE
func (e *Engine) Evaluate(snap domain.PriceSnapshot, isPositionOpen bool) domain.TradeDecision {
	w := e.windows
	ratio := snap.ThresholdRatio
	side := inferSide(snap)

	if isPositionOpen && ratio >= w.CloseMin && ratio <= w.CloseMax {
		return domain.TradeDecision{
			Signal: domain.SignalClose,
			Symbol: snap.Symbol,
			Side:   side,
			Ratio:  ratio,
			Reason: fmt.Sprintf("threshold_ratio %.2f in close window [%.2f, %.2f]", ratio, w.CloseMin, w.CloseMax),
		}
	}

	if !isPositionOpen && ratio >= w.PlaceMin && ratio <= w.PlaceMax {
		return domain.TradeDecision{
			Signal: domain.SignalOpen,
			Symbol: snap.Symbol,
			Side:   side,
			Ratio:  ratio,
			Reason: fmt.Sprintf("threshold_ratio %.2f in place window [%.2f, %.2f]", ratio, w.PlaceMin, w.PlaceMax),
		}
	}

	if isPositionOpen {
		return domain.TradeDecision{
			Signal: domain.SignalHold,
			Symbol: snap.Symbol,
			Side:   side,
			Ratio:  ratio,
			Reason: fmt.Sprintf("position open; threshold_ratio %.2f not in close window", ratio),
		}
	}

	return domain.TradeDecision{
		Signal: domain.SignalNone,
		Symbol: snap.Symbol,
		Ratio:  ratio,
		Reason: fmt.Sprintf("no position; threshold_ratio %.2f not in place window", ratio),
	}
}

// inferSide 推断方向：优先强方向（极值确认过的方向），回撤时退回当前方向
func inferSide(snap domain.PriceSnapshot) domain.Side {
	d := snap.StrongDirection
	if d == domain.DirectionFlat {
		d = snap.Direction
	}
	if d == domain.DirectionUp {
		return domain.SideLong
	}
	return domain.SideShort
}
