package database

import (
	"context"
	"time"
)

// RetryingStore retries Store calls that fail with a retryable error.
type RetryingStore struct {
	Store
	attempts int
	backoff  time.Duration
}

// WithRetry wraps s so each call is tried up to attempts times, sleeping
// backoff, doubled each time, in between. attempts <= 1 returns s unchanged.
func WithRetry(s Store, attempts int, backoff time.Duration) Store {
	if attempts <= 1 {
		return s
	}
	return &RetryingStore{Store: s, attempts: attempts, backoff: backoff}
}

func (r *RetryingStore) SelectMatching(ctx context.Context, q SelectQuery) (rows []Row, err error) {
	err = r.do(ctx, func() error {
		rows, err = r.Store.SelectMatching(ctx, q)
		return err
	})
	return rows, err
}

func (r *RetryingStore) Update(ctx context.Context, q UpdateQuery) (n int64, err error) {
	err = r.do(ctx, func() error {
		n, err = r.Store.Update(ctx, q)
		return err
	})
	return n, err
}

func (r *RetryingStore) ListTables(ctx context.Context, prefix string) (names []string, err error) {
	err = r.do(ctx, func() error {
		names, err = r.Store.ListTables(ctx, prefix)
		return err
	})
	return names, err
}

func (r *RetryingStore) ListColumns(ctx context.Context, table string) (names []string, err error) {
	err = r.do(ctx, func() error {
		names, err = r.Store.ListColumns(ctx, table)
		return err
	})
	return names, err
}

func (r *RetryingStore) CopyTable(ctx context.Context, src, dst string) error {
	return r.do(ctx, func() error {
		return r.Store.CopyTable(ctx, src, dst)
	})
}

func (r *RetryingStore) do(ctx context.Context, fn func() error) error {
	wait := r.backoff
	var err error
	for i := 0; i < r.attempts; i++ {
		if err = fn(); err == nil || !IsRetryable(err) {
			return err
		}
		if i == r.attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return err
		case <-time.After(wait):
		}
		wait *= 2
	}
	return err
}
