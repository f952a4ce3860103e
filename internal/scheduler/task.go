package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

const (
	DefaultBackoffInitial = time.Minute
	DefaultBackoffMax     = 5 * time.Minute
	backoffFactor         = 1.5
)

// Backoff produces growing delays after consecutive failures.
type Backoff struct {
	Initial time.Duration
	Max     time.Duration
	current time.Duration
}

// NewBackoff returns a Backoff starting at initial and capped at maxDelay.
func NewBackoff(initial, maxDelay time.Duration) *Backoff {
	if initial <= 0 {
		initial = DefaultBackoffInitial
	}
	if maxDelay < initial {
		maxDelay = initial
	}
	return &Backoff{Initial: initial, Max: maxDelay}
}

// Next returns the delay to wait before the next attempt.
func (b *Backoff) Next() time.Duration {
	if b.current == 0 {
		b.current = b.Initial
		return b.current
	}
	b.current = time.Duration(float64(b.current) * backoffFactor)
	if b.current > b.Max {
		b.current = b.Max
	}
	return b.current
}

func (b *Backoff) Reset() {
	b.current = 0
}

// Task runs fn repeatedly: after a success it waits for the next schedule
// activation, after an error or panic it waits for the backoff delay.
type Task struct {
	Name     string
	Run      func(ctx context.Context) error
	Schedule cron.Schedule
	Backoff  *Backoff
	Logger   *logrus.Logger

	now func() time.Time
}

// NewTask creates a supervised task.
func NewTask(name string, run func(ctx context.Context) error, schedule cron.Schedule, backoff *Backoff, logger *logrus.Logger) *Task {
	return &Task{
		Name:     name,
		Run:      run,
		Schedule: schedule,
		Backoff:  backoff,
		Logger:   logger,
		now:      time.Now,
	}
}

// Start blocks until ctx is cancelled.
func (t *Task) Start(ctx context.Context) {
	log := t.Logger.WithField("task", t.Name)
	log.Info("Task started")
	for {
		if ctx.Err() != nil {
			log.Info("Task stopped")
			return
		}

		var wait time.Duration
		if err := t.runOnce(ctx); err != nil {
			if ctx.Err() != nil {
				continue
			}
			wait = t.Backoff.Next()
			log.WithError(err).WithField("retry_in", wait).Error("Task run failed")
		} else {
			t.Backoff.Reset()
			now := t.now()
			wait = t.Schedule.Next(now).Sub(now)
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
		case <-timer.C:
		}
	}
}

func (t *Task) runOnce(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return t.Run(ctx)
}
