// Package poll queries a remote job until it reaches a terminal state or the attempt budget is spent.
package poll

import (
	"context"
	"errors"
	"time"

	"social-publisher/internal/model"
)

// Status is the normalized view of one status response.
type Status struct {
	State     string
	Done      bool
	Failed    bool
	Reason    string
	NextCheck time.Duration // platform hint, zero when absent
	Data      map[string]any
}

type FetchFunc func(ctx context.Context, attempt int) (Status, error)

type Options struct {
	ID          string
	Interval    time.Duration
	MaxInterval time.Duration // caps NextCheck hints; zero means no cap
	MaxAttempts int
}

var errNoAttempts = errors.New("poll: max attempts must be positive")

// Until calls fetch until it reports Done or Failed. It sleeps between attempts using the platform hint
// when present, otherwise Interval. Exactly MaxAttempts fetches are made before ProcessingTimeoutError.
func Until(ctx context.Context, fetch FetchFunc, opts Options) (Status, error) {
	if opts.MaxAttempts <= 0 {
		return Status{}, errNoAttempts
	}
	start := time.Now()
	var last Status
	for attempt := 1; attempt <= opts.MaxAttempts; attempt++ {
		st, err := fetch(ctx, attempt)
		if err != nil {
			return st, err
		}
		last = st
		switch {
		case st.Failed:
			return st, &model.ProcessingFailedError{ID: opts.ID, State: st.State, Reason: st.Reason}
		case st.Done:
			return st, nil
		}
		if attempt == opts.MaxAttempts {
			break
		}
		if err := sleep(ctx, opts.wait(st)); err != nil {
			return st, err
		}
	}
	return last, &model.ProcessingTimeoutError{
		ID:        opts.ID,
		Attempts:  opts.MaxAttempts,
		LastState: last.State,
		Elapsed:   time.Since(start),
	}
}

func (o Options) wait(st Status) time.Duration {
	d := o.Interval
	if st.NextCheck > 0 {
		d = st.NextCheck
	}
	if o.MaxInterval > 0 && d > o.MaxInterval {
		d = o.MaxInterval
	}
	return d
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
