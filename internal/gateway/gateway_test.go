package gateway

import (
	"context"
	"testing"

	"github.com/pipbot/gopip/internal/domain"
)

func TestNormalizeVolume(t *testing.T) {
	cases := []struct {
		lot, step, want float64
	}{
		{0.1, 0.01, 0.1},
		{0.15, 0.1, 0.1},   // 向下取整到步长
		{0.123, 0.01, 0.12},
		{1.0, 0.01, 1.0},
		{0.1, 0, 0.1}, // 步长缺省时原样返回
	}
	for _, c := range cases {
		if got := NormalizeVolume(c.lot, c.step); got != c.want {
			t.Fatalf("NormalizeVolume(%v, %v) 应该为 %v，实际为 %v", c.lot, c.step, c.want, got)
		}
	}
}

func TestPaper_OpenCloseCycle(t *testing.T) {
	p := NewPaper()
	ctx := context.Background()

	open, err := p.PositionOpen(ctx, "EURUSD")
	if err != nil || open {
		t.Fatalf("初始应该无持仓: open=%v err=%v", open, err)
	}

	o, err := p.Open(ctx, "EURUSD", domain.SideLong, 0.1)
	if err != nil {
		t.Fatalf("开仓失败: %v", err)
	}
	if o.Symbol != "EURUSD" || o.Side != domain.SideLong {
		t.Fatalf("订单字段不符: %+v", o)
	}

	open, _ = p.PositionOpen(ctx, "EURUSD")
	if !open {
		t.Fatalf("开仓后应该有持仓")
	}

	// 重复开仓被拒绝
	if _, err := p.Open(ctx, "EURUSD", domain.SideLong, 0.1); err == nil {
		t.Fatalf("已有持仓时重复开仓应该报错")
	} else if ge, ok := err.(*Error); !ok || ge.Code != "POSITION_EXISTS" {
		t.Fatalf("错误码应该为 POSITION_EXISTS: %v", err)
	}

	if _, err := p.Close(ctx, "EURUSD", "test"); err != nil {
		t.Fatalf("平仓失败: %v", err)
	}
	open, _ = p.PositionOpen(ctx, "EURUSD")
	if open {
		t.Fatalf("平仓后不应该有持仓")
	}

	// 无持仓平仓被拒绝
	if _, err := p.Close(ctx, "EURUSD", "test"); err == nil {
		t.Fatalf("无持仓时平仓应该报错")
	}
}
