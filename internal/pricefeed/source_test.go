package pricefeed

import (
	"math"
	"testing"
)

func TestTick_Mid(t *testing.T) {
	// bid/ask 齐全时取中间价
	tick := Tick{Bid: 1.1000, Ask: 1.1002}
	v, ok := tick.Mid()
	if !ok || math.Abs(v-1.1001) > 1e-9 {
		t.Fatalf("中间价应该为 1.1001: v=%v ok=%v", v, ok)
	}

	// 只有 last
	tick = Tick{Last: 1.1005}
	v, ok = tick.Mid()
	if !ok || v != 1.1005 {
		t.Fatalf("应该退回 last: v=%v ok=%v", v, ok)
	}

	// 只有单边报价
	tick = Tick{Bid: 1.1000}
	v, ok = tick.Mid()
	if !ok || v != 1.1000 {
		t.Fatalf("应该退回 bid: v=%v ok=%v", v, ok)
	}

	// 完全没有可用报价
	tick = Tick{}
	if _, ok = tick.Mid(); ok {
		t.Fatalf("空 tick 不应该返回可用报价")
	}
}
