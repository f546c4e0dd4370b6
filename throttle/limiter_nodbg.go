//go:build !debug

package throttle

import (
	"time"
)

// Cleanup drops buckets untouched for longer than cleanupOlderThan.
func (l *Limiter[K]) Cleanup(now time.Time) {
	l.buckets.Range(func(id, value any) bool {
		if now.Sub(value.(*Bucket).lastChecked()) > l.cleanupOlderThan {
			l.buckets.Delete(id)
		}
		return true // continue iteration
	})
}
