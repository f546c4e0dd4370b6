package throttle

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/zeptools/gw-dbbridge/svc"
)

// Limiter rate-limits calls per key (a host id) with token buckets, and
// runs as a service that drops idle buckets.
type Limiter[K comparable] struct {
	Ctx              context.Context    // Service Context
	cancel           context.CancelFunc // Service Context CancelFunc
	mu               sync.Mutex
	state            int        // internal service state
	done             chan error // Shutdown Error Channel
	conf             BucketConf
	cleanupCycle     time.Duration
	cleanupOlderThan time.Duration
	buckets          sync.Map // K -> *Bucket
}

// Ensure throttle.Limiter implements svc.Service interface
var _ svc.Service = (*Limiter[string])(nil)

func (l *Limiter[K]) Name() string {
	return "ThrottleLimiter"
}

func NewLimiter[K comparable](parentCtx context.Context, conf BucketConf, cleanupCycle time.Duration, cleanupOlderThan time.Duration) *Limiter[K] {
	svcCtx, svcCancel := context.WithCancel(parentCtx)
	return &Limiter[K]{
		Ctx:              svcCtx,
		cancel:           svcCancel,
		state:            svc.StateREADY,
		done:             make(chan error, 1),
		conf:             conf.Normalize(),
		cleanupCycle:     cleanupCycle,
		cleanupOlderThan: cleanupOlderThan,
	}
}

// Start starts the cleanup loop
func (l *Limiter[K]) Start() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state == svc.StateRUNNING {
		return fmt.Errorf("already started")
	}
	if l.state != svc.StateREADY {
		return fmt.Errorf("cannot start. not ready")
	}
	l.state = svc.StateRUNNING
	log.Printf("[INFO][Throttle] cleanup service started cycle=%v exp=%v", l.cleanupCycle, l.cleanupOlderThan)
	go l.run()
	return nil
}

func (l *Limiter[K]) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state != svc.StateRUNNING {
		log.Println("[ERROR][Throttle] cannot stop. not running")
		return
	}
	l.cancel()
	l.state = svc.StateSTOPPED
	log.Println("[INFO][Throttle] service stopped")
}

func (l *Limiter[K]) Done() <-chan error {
	return l.done
}

func (l *Limiter[K]) run() {
	ticker := time.NewTicker(l.cleanupCycle)
	defer ticker.Stop()
	for {
		select {
		case <-l.Ctx.Done():
			log.Println("[INFO][Throttle] stopping cleaning service")
			l.done <- nil
			return
		case now := <-ticker.C:
			func() {
				defer func() {
					if r := recover(); r != nil {
						log.Printf("[PANIC] recovered in throttle limiter cleaning service: %v", r)
					}
				}()
				l.Cleanup(now)
			}()
		}
	}
}

// Allow consumes one token of id's bucket.
func (l *Limiter[K]) Allow(id K, now time.Time) bool {
	if b, ok := l.buckets.Load(id); ok {
		return b.(*Bucket).allow(&l.conf, now)
	}
	// consume 1 token from the fresh bucket
	fresh := &Bucket{tokens: l.conf.Burst - 1, lastCheck: now}
	if b, loaded := l.buckets.LoadOrStore(id, fresh); loaded {
		return b.(*Bucket).allow(&l.conf, now)
	}
	return true
}

// Forget drops id's bucket.
func (l *Limiter[K]) Forget(id K) {
	l.buckets.Delete(id)
}

func (l *Limiter[K]) Len() int {
	n := 0
	l.buckets.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
