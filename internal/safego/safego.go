// Package safego launches background goroutines that cannot crash the
// process by panicking.
package safego

import (
	"log/slog"
	"sync"
)

// Go runs fn in a new goroutine. A panic in fn is recovered and logged.
func Go(fn func()) {
	go func() {
		defer recoverAndLog()
		fn()
	}()
}

// GoWait is Go for goroutines tracked by wg. wg.Done is called even when fn
// panics.
func GoWait(wg *sync.WaitGroup, fn func()) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer recoverAndLog()
		fn()
	}()
}

func recoverAndLog() {
	if r := recover(); r != nil {
		slog.Error("recovered panic in background goroutine", "panic", r)
	}
}
