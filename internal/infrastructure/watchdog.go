package infrastructure

import (
	"context"
	"os"
	"time"
)

// watchdog cancels its context when it is not kicked within timeout.
// A zero timeout disables the timer.
type watchdog struct {
	ctx     context.Context
	cancel  context.CancelCauseFunc
	timer   *time.Timer
	timeout time.Duration
}

func newWatchdog(parent context.Context, timeout time.Duration) (context.Context, *watchdog) {
	ctx, cancel := context.WithCancelCause(parent)
	var timer *time.Timer
	if timeout > 0 {
		timer = time.AfterFunc(timeout, func() {
			cancel(os.ErrDeadlineExceeded)
		})
	}
	return ctx, &watchdog{
		ctx:     ctx,
		cancel:  cancel,
		timer:   timer,
		timeout: timeout,
	}
}

// Kick postpones the deadline by another timeout
func (wd *watchdog) Kick() {
	if wd.timer != nil {
		wd.timer.Reset(wd.timeout)
	}
}

// Abort cancels the context on behalf of the user
func (wd *watchdog) Abort() {
	wd.stopTimer()
	wd.cancel(context.Canceled)
}

// Stop releases the timer and the context
func (wd *watchdog) Stop() {
	wd.stopTimer()
	wd.cancel(nil)
}

func (wd *watchdog) stopTimer() {
	if wd.timer != nil {
		wd.timer.Stop()
	}
}
