package sm2

import "time"

// Scheduler wraps Update with a clock. The zero value reads the wall clock.
// A Scheduler holds no card state and is safe for concurrent use.
type Scheduler struct {
	now func() time.Time
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock makes the scheduler read the current time from now.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		s.now = now
	}
}

// NewScheduler returns a Scheduler configured by opts.
func NewScheduler(opts ...Option) *Scheduler {
	s := &Scheduler{}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Update schedules the next review using the scheduler's clock.
func (s *Scheduler) Update(previous *RetentionCard, quality float64) Result {
	return Update(previous, quality, s.Now())
}

// Now returns the scheduler's current time.
func (s *Scheduler) Now() time.Time {
	if s == nil || s.now == nil {
		return time.Now()
	}
	return s.now()
}
