//go:build debug

package throttle

import (
	"log"
	"time"
)

// Cleanup drops buckets untouched for longer than cleanupOlderThan.
func (l *Limiter[K]) Cleanup(now time.Time) {
	log.Printf("[DEBUG] cleaning expired buckets older than %v at %v", l.cleanupOlderThan, now)
	cleanCnt := 0
	l.buckets.Range(func(id, value any) bool {
		last := value.(*Bucket).lastChecked()
		log.Printf("[DEBUG] inspecting bucket '%v' lastCheck = %v", id, last)
		if now.Sub(last) > l.cleanupOlderThan {
			l.buckets.Delete(id)
			cleanCnt++
			log.Printf("[DEBUG] expired bucket '%v' removed", id)
		}
		return true // continue iteration
	})
	log.Printf("[DEBUG] %d buckets cleaned up", cleanCnt)
}
