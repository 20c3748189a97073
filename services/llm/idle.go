package llmsvc

import (
	"context"
	"io"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
)

// idleTimer cancels a stream when the upstream sends nothing for timeout.
// A zero timeout never fires.
type idleTimer struct {
	timeout time.Duration
	timer   *time.Timer
	fired   atomic.Bool
}

func newIdleTimer(timeout time.Duration, cancel context.CancelFunc) *idleTimer {
	it := &idleTimer{timeout: timeout}
	if timeout > 0 {
		it.timer = time.AfterFunc(timeout, func() {
			it.fired.Store(true)
			cancel()
		})
	}
	return it
}

// touch restarts the countdown after the upstream showed signs of life.
func (it *idleTimer) touch() {
	if it.timer != nil && !it.fired.Load() {
		it.timer.Reset(it.timeout)
	}
}

func (it *idleTimer) stop() {
	if it.timer != nil {
		it.timer.Stop()
	}
}

// check replaces err with an idle error once the timer fired.
func (it *idleTimer) check(err error) error {
	if err != nil && it.fired.Load() {
		return errors.Errorf("llm: no data from upstream for %s", it.timeout)
	}
	return err
}

// idleReader touches its timer on every read that returned data.
type idleReader struct {
	r    io.Reader
	idle *idleTimer
}

func (ir idleReader) Read(p []byte) (int, error) {
	n, err := ir.r.Read(p)
	if n > 0 {
		ir.idle.touch()
	}
	return n, err
}
