package throttle

import (
	"context"
	"testing"
	"time"
)

func TestLimiterAllow(t *testing.T) {
	l := NewLimiter[string](context.Background(), BucketConf{Burst: 2, Increment: 1, PeriodMS: 100}, time.Minute, time.Minute)
	now := time.Now()

	if !l.Allow("h1", now) || !l.Allow("h1", now) {
		t.Fatal("burst tokens should be allowed")
	}
	if l.Allow("h1", now) {
		t.Error("third call within the period should be throttled")
	}
	if !l.Allow("h2", now) {
		t.Error("buckets are per key")
	}
	if !l.Allow("h1", now.Add(100*time.Millisecond)) {
		t.Error("a token should be refilled after one period")
	}
	if l.Allow("h1", now.Add(150*time.Millisecond)) {
		t.Error("only one token is refilled per period")
	}
	if !l.Allow("h1", now.Add(10*time.Second)) || !l.Allow("h1", now.Add(10*time.Second)) || l.Allow("h1", now.Add(10*time.Second)) {
		t.Error("refill should be capped at the burst size")
	}

	l.Forget("h2")
	if l.Len() != 1 {
		t.Errorf("Len() = %d after Forget", l.Len())
	}
}

func TestLimiterCleanup(t *testing.T) {
	l := NewLimiter[string](context.Background(), BucketConf{Burst: 5}, time.Minute, time.Second)
	now := time.Now()
	l.Allow("old", now.Add(-time.Hour))
	l.Allow("new", now)
	l.Cleanup(now)
	if l.Len() != 1 {
		t.Fatalf("Len() = %d after Cleanup", l.Len())
	}
	if _, ok := l.buckets.Load("new"); !ok {
		t.Error("recent bucket should be kept")
	}
}

func TestLimiterService(t *testing.T) {
	l := NewLimiter[string](context.Background(), BucketConf{}, 10*time.Millisecond, time.Millisecond)
	if err := l.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := l.Start(); err == nil {
		t.Error("second Start() should fail")
	}
	l.Allow("h", time.Now().Add(-time.Hour))
	deadline := time.After(5 * time.Second)
	for l.Len() != 0 {
		select {
		case <-deadline:
			t.Fatal("cleanup loop did not drop the idle bucket")
		case <-time.After(10 * time.Millisecond):
		}
	}
	l.Stop()
	select {
	case err := <-l.Done():
		if err != nil {
			t.Errorf("Done() = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("limiter did not stop")
	}
}

func TestBucketConfNormalize(t *testing.T) {
	c := BucketConf{PeriodMS: 250}.Normalize()
	if c.Period != 250*time.Millisecond || c.Burst != 1 || c.Increment != 1 {
		t.Errorf("Normalize() = %+v", c)
	}
	if c := (BucketConf{}).Normalize(); c.Period != time.Second {
		t.Errorf("default Period = %v", c.Period)
	}
}
