// Package async includes helpers for scheduling runnable, periodic functions
// and contains useful helpers for converting multi-processor computation.
package async

import (
	"context"
	"reflect"
	"runtime"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// RunEvery runs the provided command periodically.
// It runs in a goroutine, and can be cancelled by finishing the supplied context.
func RunEvery(ctx context.Context, period time.Duration, f func()) {
	funcName := runtime.FuncForPC(reflect.ValueOf(f).Pointer()).Name()
	ticker := time.NewTicker(period)
	go func() {
		for {
			select {
			case <-ticker.C:
				log.WithField("function", funcName).Trace("running")
				f()
			case <-ctx.Done():
				log.WithField("function", funcName).Debug("context is closed, exiting")
				ticker.Stop()
				return
			}
		}
	}()
}

// RunEveryNonOverlapping behaves like RunEvery, except that a tick firing
// while a previous invocation of f is still running is skipped instead of
// queued. Each invocation runs in its own goroutine so a slow f never stalls
// the ticker loop, and the lock keeps f from running concurrently with itself.
func RunEveryNonOverlapping(ctx context.Context, period time.Duration, f func()) {
	funcName := runtime.FuncForPC(reflect.ValueOf(f).Pointer()).Name()
	ticker := time.NewTicker(period)
	var mu sync.Mutex
	go func() {
		for {
			select {
			case <-ticker.C:
				if !mu.TryLock() {
					log.WithField("function", funcName).Debug("previous tick still running, skipping")
					continue
				}
				log.WithField("function", funcName).Trace("running")
				go func() {
					defer mu.Unlock()
					f()
				}()
			case <-ctx.Done():
				log.WithField("function", funcName).Debug("context is closed, exiting")
				ticker.Stop()
				return
			}
		}
	}()
}
