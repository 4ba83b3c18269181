package async

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// SafeGo executes fn in a goroutine with a timeout and panic recovery. Errors and
// panics are logged and never propagate.
func SafeGo(parentCtx context.Context, log logrus.FieldLogger, timeout time.Duration, taskName string, fn func(context.Context) error) {
	go run(parentCtx, log, timeout, taskName, fn)
}

func run(parentCtx context.Context, log logrus.FieldLogger, timeout time.Duration, taskName string, fn func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parentCtx), timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			log.WithFields(logrus.Fields{
				"task":  taskName,
				"panic": fmt.Sprint(r),
				"stack": string(debug.Stack()),
			}).Error("background task panicked")
		}
	}()

	if err := fn(ctx); err != nil {
		log.WithError(err).WithField("task", taskName).Warn("background task failed")
	}
}

// Tracker starts background tasks and can wait for the outstanding ones
type Tracker struct {
	log logrus.FieldLogger
	wg  sync.WaitGroup
}

// NewTracker creates a new task tracker
func NewTracker(log logrus.FieldLogger) *Tracker {
	return &Tracker{log: log}
}

// Go runs fn like SafeGo and tracks it until it returns
func (t *Tracker) Go(parentCtx context.Context, timeout time.Duration, taskName string, fn func(context.Context) error) {
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		run(parentCtx, t.log, timeout, taskName, fn)
	}()
}

// Wait blocks until every tracked task returns or ctx is done
func (t *Tracker) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("background tasks still running: %w", ctx.Err())
	}
}
