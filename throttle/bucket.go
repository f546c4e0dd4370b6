package throttle

import (
	"sync"
	"time"
)

type BucketConf struct {
	Burst     int           `json:"burst" yaml:"burst"`         // maximum number of tokens in the bucket
	Increment int           `json:"increment" yaml:"increment"` // how many tokens to add each period
	Period    time.Duration `json:"-" yaml:"-"`                 // how often to add Increment
	PeriodMS  int           `json:"period_ms" yaml:"period_ms"` // Period as read from config files
}

// Normalize fills Period from PeriodMS and applies minimums.
func (c BucketConf) Normalize() BucketConf {
	if c.Period == 0 && c.PeriodMS > 0 {
		c.Period = time.Duration(c.PeriodMS) * time.Millisecond
	}
	if c.Period <= 0 {
		c.Period = time.Second
	}
	if c.Burst <= 0 {
		c.Burst = 1
	}
	if c.Increment <= 0 {
		c.Increment = 1
	}
	return c
}

type Bucket struct {
	mu        sync.Mutex // protects access to bucket state
	tokens    int
	lastCheck time.Time
}

// refill tokens
// Since this modifies the bucket's state, this should be wrapped by mutex lock/unlock
func (b *Bucket) refill(conf *BucketConf, now time.Time) {
	elapsed := now.Sub(b.lastCheck)
	if elapsed >= conf.Period { // compare
		times := int(elapsed / conf.Period) // division
		b.tokens += times * conf.Increment
		if b.tokens > conf.Burst {
			b.tokens = conf.Burst
		}
		b.lastCheck = b.lastCheck.Add(time.Duration(times) * conf.Period)
	}
}

func (b *Bucket) allow(conf *BucketConf, now time.Time) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refill(conf, now)
	if b.tokens <= 0 {
		return false
	}
	b.tokens--
	return true
}

func (b *Bucket) lastChecked() time.Time {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastCheck
}
