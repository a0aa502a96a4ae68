package resilience

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// ErrCircuitOpen is returned when a source has failed too often in a row.
var ErrCircuitOpen = eris.New("circuit breaker is open")

// Breaker stops calling a source after Threshold consecutive transient
// failures. After Cooldown one probe is let through; success closes it.
type Breaker struct {
	name      string
	threshold int
	cooldown  time.Duration

	mu       sync.Mutex
	failures int
	openedAt time.Time
	now      func() time.Time
}

// NewBreaker returns a closed breaker. threshold <= 0 means 5 and cooldown
// <= 0 means 30s.
func NewBreaker(name string, threshold int, cooldown time.Duration) *Breaker {
	if threshold <= 0 {
		threshold = 5
	}
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}
	return &Breaker{name: name, threshold: threshold, cooldown: cooldown, now: time.Now}
}

// Allow returns ErrCircuitOpen while the breaker is open.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failures < b.threshold {
		return nil
	}
	if b.now().Sub(b.openedAt) >= b.cooldown {
		// half-open: one probe
		b.openedAt = b.now()
		return nil
	}
	return eris.Wrapf(ErrCircuitOpen, "%s", b.name)
}

// Record feeds the outcome of a call. Only transient errors count as
// failures; a not-found answer is a healthy response.
func (b *Breaker) Record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err == nil || !IsTransient(err) {
		b.failures = 0
		return
	}
	b.failures++
	if b.failures == b.threshold {
		b.openedAt = b.now()
		zap.L().Warn("fetch: circuit opened",
			zap.String("source", b.name),
			zap.Int("failures", b.failures),
		)
	}
}

// Open reports whether calls are currently refused.
func (b *Breaker) Open() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures >= b.threshold && b.now().Sub(b.openedAt) < b.cooldown
}

// Call runs fn under the breaker with retries. The breaker sees the final
// outcome only, after retries are exhausted.
func Call[T any](ctx context.Context, b *Breaker, cfg RetryConfig, fn func(ctx context.Context) (T, error)) (T, error) {
	if err := b.Allow(); err != nil {
		var zero T
		return zero, err
	}
	val, err := DoVal(ctx, cfg, fn)
	b.Record(err)
	return val, err
}
