//go:build debug

package bridge

import (
	"context"
	"log"
	"time"

	"github.com/zeptools/gw-dbbridge/script"
)

func traced(name string, fn script.Func) script.Func {
	return func(ctx context.Context, s *script.State) error {
		log.Printf("[DEBUG][bridge] %s called with %d args", name, s.NumArgs())
		start := time.Now()
		err := fn(ctx, s)
		if err != nil {
			log.Printf("[DEBUG][bridge] %s failed after %v: %v", name, time.Since(start), err)
		} else {
			log.Printf("[DEBUG][bridge] %s returned %s after %v", name, script.KindOf(s.Result()), time.Since(start))
		}
		return err
	}
}
