package infra

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gauntletsec/gauntlet/internal/zapapi"
)

// StatusFunc is one time-boxed status query against the scan engine.
type StatusFunc func(ctx context.Context) (zapapi.Status, error)

// Poller drives an interval-paced loop over engine status until the scan
// completes or the context is cancelled. Each query is individually
// time-boxed; a failed query is reported through OnError and retried on
// the next tick. Only sustained failure ends the loop.
type Poller struct {
	Status   StatusFunc
	Interval time.Duration

	// QueryTimeout bounds one status query. Zero means zapapi.DefaultTimeout.
	QueryTimeout time.Duration

	// MaxConsecutiveFailures ends the loop with a scan-incomplete error
	// once this many queries fail back to back. Zero means 10.
	MaxConsecutiveFailures int

	// OnStatus and OnError, when set, observe each tick.
	OnStatus func(zapapi.Status)
	OnError  func(error)
}

// Run polls until the engine reports completion, returning the final
// status. Cancellation is cooperative through ctx.
func (p *Poller) Run(ctx context.Context) (zapapi.Status, error) {
	interval := p.Interval
	if interval <= 0 {
		interval = 10 * time.Second
	}
	queryTimeout := p.QueryTimeout
	if queryTimeout <= 0 {
		queryTimeout = zapapi.DefaultTimeout
	}
	maxFailures := p.MaxConsecutiveFailures
	if maxFailures <= 0 {
		maxFailures = 10
	}

	var last zapapi.Status
	failures := 0
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		qctx, cancel := context.WithTimeout(ctx, queryTimeout)
		st, err := p.Status(qctx)
		cancel()

		if err != nil {
			failures++
			slog.Warn("scan engine status query failed", "error", err, "consecutive", failures)
			if p.OnError != nil {
				p.OnError(err)
			}
			if failures >= maxFailures {
				return last, fmt.Errorf("scan incomplete: %d consecutive status failures, last: %w", failures, err)
			}
		} else {
			failures = 0
			last = st
			if p.OnStatus != nil {
				p.OnStatus(st)
			}
			if !st.InProgress {
				return st, nil
			}
		}

		select {
		case <-ctx.Done():
			return last, ctx.Err()
		case <-ticker.C:
		}
	}
}
