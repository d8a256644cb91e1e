package domain

import "fmt"

// SymbolConfig 交易品种配置
type SymbolConfig struct {
	Symbol        string  // 品种代码，例如 EURUSD
	PipSize       float64 // 最小报价增量（一个 pip 对应的价格）
	ThresholdPips float64 // 一个阈值档位对应的 pip 数
	LotSize       float64 // 下单手数
	VolumeStep    float64 // 经纪商手数步进（0 表示不做归一化）
	Tradeable     bool    // 是否允许真实下单（false 时只通知不交易）
}

// Validate 验证品种配置
// pip_size / threshold_pips 非法会导致运行期的比值计算失去意义，必须在启动时拒绝
func (c *SymbolConfig) Validate() error {
	if c.Symbol == "" {
		return fmt.Errorf("品种代码不能为空")
	}
	if c.PipSize <= 0 {
		return fmt.Errorf("品种 %s: pip_size 必须大于 0", c.Symbol)
	}
	if c.ThresholdPips <= 0 {
		return fmt.Errorf("品种 %s: threshold_pips 必须大于 0", c.Symbol)
	}
	if c.LotSize <= 0 {
		return fmt.Errorf("品种 %s: lot_size 必须大于 0", c.Symbol)
	}
	if c.VolumeStep < 0 {
		return fmt.Errorf("品种 %s: volume_step 不能为负数", c.Symbol)
	}
	return nil
}
