package crawler

import (
	"context"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// originLimiter enforces per-origin politeness: at most perOrigin requests
// in flight to one origin, and at least delay between request starts.
// A zero value for either setting disables that part.
type originLimiter struct {
	perOrigin int64
	delay     time.Duration

	mu       sync.Mutex
	sems     map[string]*semaphore.Weighted
	limiters map[string]*rate.Limiter
}

func newOriginLimiter(perOrigin int, delay time.Duration) *originLimiter {
	return &originLimiter{
		perOrigin: int64(perOrigin),
		delay:     delay,
		sems:      make(map[string]*semaphore.Weighted),
		limiters:  make(map[string]*rate.Limiter),
	}
}

// acquire blocks until a request to origin may start. The returned release
// function must be called when the request is finished.
func (l *originLimiter) acquire(ctx context.Context, origin string) (func(), error) {
	origin = strings.ToLower(origin)
	sem, limiter := l.get(origin)

	if sem != nil {
		if err := sem.Acquire(ctx, 1); err != nil {
			return nil, err
		}
	}
	if limiter != nil {
		if err := limiter.Wait(ctx); err != nil {
			if sem != nil {
				sem.Release(1)
			}
			return nil, err
		}
	}

	return func() {
		if sem != nil {
			sem.Release(1)
		}
	}, nil
}

func (l *originLimiter) get(origin string) (*semaphore.Weighted, *rate.Limiter) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var sem *semaphore.Weighted
	if l.perOrigin > 0 {
		sem = l.sems[origin]
		if sem == nil {
			sem = semaphore.NewWeighted(l.perOrigin)
			l.sems[origin] = sem
		}
	}

	var limiter *rate.Limiter
	if l.delay > 0 {
		limiter = l.limiters[origin]
		if limiter == nil {
			limiter = rate.NewLimiter(rate.Every(l.delay), 1)
			l.limiters[origin] = limiter
		}
	}
	return sem, limiter
}
