package spoonacular

import (
	"context"
	"sync"
	"time"
)

// debouncePageSize keeps as-you-type result sets small
const debouncePageSize = 8

// Scheduler abstracts timer creation so debounce behaviour can be tested
// without real timers
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is the pending-callback handle returned by a Scheduler
type Timer interface {
	Stop() bool
}

type realScheduler struct{}

func (realScheduler) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// SearchCallback receives the outcome of a debounced search. Exactly one
// of results and err is set.
type SearchCallback func(results []RecipeSummary, err error)

// DebouncedSearch coalesces rapid successive queries so only the last one
// in a burst reaches the provider. Superseded calls never invoke their
// callback: scheduling a new query cancels the pending timer, and a
// generation counter guards against a timer that already fired racing a
// newer call.
type DebouncedSearch struct {
	client *Client
	delay  time.Duration
	sched  Scheduler

	mu    sync.Mutex
	timer Timer
	gen   uint64
}

type DebounceOption func(*DebouncedSearch)

// WithScheduler substitutes the timer source, for deterministic tests
func WithScheduler(s Scheduler) DebounceOption {
	return func(d *DebouncedSearch) { d.sched = s }
}

// NewDebouncedSearch builds a debounced front end for SearchByText
func (c *Client) NewDebouncedSearch(delay time.Duration, opts ...DebounceOption) *DebouncedSearch {
	d := &DebouncedSearch{
		client: c,
		delay:  delay,
		sched:  realScheduler{},
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Search schedules query to run after the debounce delay. A later call
// within the delay supersedes this one.
func (d *DebouncedSearch) Search(ctx context.Context, query string, cb SearchCallback) {
	d.mu.Lock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.gen++
	gen := d.gen
	d.timer = d.sched.AfterFunc(d.delay, func() {
		d.fire(ctx, gen, query, cb)
	})
	d.mu.Unlock()
}

func (d *DebouncedSearch) fire(ctx context.Context, gen uint64, query string, cb SearchCallback) {
	d.mu.Lock()
	if gen != d.gen {
		d.mu.Unlock()
		return
	}
	d.timer = nil
	d.mu.Unlock()

	results, err := d.client.SearchByText(ctx, query, SearchOptions{Number: debouncePageSize})

	// A newer call may have arrived while the request was in flight; its
	// callback owns the channel now.
	d.mu.Lock()
	stale := gen != d.gen
	d.mu.Unlock()
	if stale {
		return
	}

	if err != nil {
		cb(nil, err)
		return
	}
	cb(results, nil)
}
