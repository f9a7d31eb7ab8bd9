package remote

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// writeLimiter throttles writes per document. Firestore sustains about one
// write per second on a single document.
type writeLimiter struct {
	mu      sync.Mutex
	limit   rate.Limit
	burst   int
	perDocs map[string]*rate.Limiter
}

func newWriteLimiter(limit rate.Limit, burst int) *writeLimiter {
	return &writeLimiter{
		limit:   limit,
		burst:   burst,
		perDocs: make(map[string]*rate.Limiter),
	}
}

func (l *writeLimiter) Wait(ctx context.Context, docID string) error {
	if l == nil || l.limit == rate.Inf {
		return nil
	}
	l.mu.Lock()
	lim, ok := l.perDocs[docID]
	if !ok {
		lim = rate.NewLimiter(l.limit, l.burst)
		l.perDocs[docID] = lim
	}
	l.mu.Unlock()
	return lim.Wait(ctx)
}
