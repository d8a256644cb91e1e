package ratelimit

import (
	"testing"
	"time"
)

func TestSlidingWindow_Allow(t *testing.T) {
	sw := NewSlidingWindow(3, time.Minute)

	for i := 0; i < 3; i++ {
		if !sw.Allow() {
			t.Fatalf("第 %d 次请求应该被允许", i+1)
		}
	}
	if sw.Allow() {
		t.Fatalf("超出窗口额度的请求应该被拒绝")
	}
	if sw.Remaining() != 0 {
		t.Fatalf("剩余额度应该为 0，实际为 %d", sw.Remaining())
	}
}

func TestSlidingWindow_WindowSlides(t *testing.T) {
	sw := NewSlidingWindow(1, 20*time.Millisecond)

	if !sw.Allow() {
		t.Fatalf("首次请求应该被允许")
	}
	if sw.Allow() {
		t.Fatalf("窗口内第二次请求应该被拒绝")
	}
	time.Sleep(40 * time.Millisecond)
	if !sw.Allow() {
		t.Fatalf("窗口滑过之后应该重新允许")
	}
}

func TestTokenBucket_Allow(t *testing.T) {
	tb := NewTokenBucket(2, 1)

	if !tb.Allow() || !tb.Allow() {
		t.Fatalf("容量内的请求应该被允许")
	}
	if tb.Allow() {
		t.Fatalf("令牌耗尽后应该被拒绝")
	}
	if tb.Remaining() != 0 {
		t.Fatalf("剩余令牌应该为 0，实际为 %d", tb.Remaining())
	}
}
