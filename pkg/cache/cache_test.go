package cache

import (
	"testing"
	"time"
)

func TestTTLCache_SetGet(t *testing.T) {
	c := New[string, int](time.Minute)
	defer c.Close()

	c.Set("a", 1, 0)
	v, ok := c.Get("a")
	if !ok || v != 1 {
		t.Fatalf("Get 应该命中: v=%d ok=%v", v, ok)
	}
	if _, ok := c.Get("missing"); ok {
		t.Fatalf("未写入的 key 不应该命中")
	}
}

func TestTTLCache_Expiry(t *testing.T) {
	c := New[string, int](10 * time.Millisecond)
	defer c.Close()

	c.Set("a", 1, 0)
	time.Sleep(30 * time.Millisecond)
	if _, ok := c.Get("a"); ok {
		t.Fatalf("过期的 key 不应该命中")
	}
}

func TestTTLCache_SetIfAbsent(t *testing.T) {
	c := New[string, int](time.Minute)
	defer c.Close()

	if !c.SetIfAbsent("a", 1, 0) {
		t.Fatalf("首次写入应该成功")
	}
	if c.SetIfAbsent("a", 2, 0) {
		t.Fatalf("重复写入应该失败")
	}
	v, _ := c.Get("a")
	if v != 1 {
		t.Fatalf("值不应该被覆盖: %d", v)
	}
}
