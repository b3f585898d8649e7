// Package ratelimit implements per-client sliding-window admission control.
//
// State is sharded by a murmur3 hash of the client ID so admission checks
// for different clients never contend on the same lock. Stale timestamps
// are pruned lazily on each admission check; a periodic sweep drops clients
// that have been idle beyond the window.
package ratelimit

import (
	"sync"
	"time"

	"github.com/spaolacci/murmur3"
	"go.uber.org/zap"
)

const shardCount = 16 // power of two

// Decision is the outcome of an admission check.
type Decision struct {
	Allowed    bool
	RetryAfter time.Duration // time until the oldest in-window request expires; zero when allowed
}

type window struct {
	timestamps []time.Time // ascending
}

type shard struct {
	mu      sync.Mutex
	clients map[string]*window
}

// Limiter admits at most maxRequests requests per client within a trailing
// window.
type Limiter struct {
	shards      [shardCount]*shard
	maxRequests int
	window      time.Duration
	logger      *zap.Logger

	stopSweep chan struct{}
	sweepOnce sync.Once
}

// New creates a sliding-window limiter.
func New(maxRequests int, windowSize time.Duration, logger *zap.Logger) *Limiter {
	l := &Limiter{
		maxRequests: maxRequests,
		window:      windowSize,
		logger:      logger.Named("ratelimit"),
		stopSweep:   make(chan struct{}),
	}
	for i := range l.shards {
		l.shards[i] = &shard{clients: make(map[string]*window)}
	}
	return l
}

func (l *Limiter) shardFor(clientID string) *shard {
	return l.shards[murmur3.Sum32([]byte(clientID))&(shardCount-1)]
}

// Admit records and admits a request for the client if it has budget left
// in the trailing window, else rejects with the time the caller must wait
// for the oldest in-window request to age out.
func (l *Limiter) Admit(clientID string) Decision {
	now := time.Now()
	cutoff := now.Add(-l.window)
	s := l.shardFor(clientID)

	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.clients[clientID]
	if !ok {
		w = &window{}
		s.clients[clientID] = w
	}

	// Lazy prune: drop timestamps that left the window.
	i := 0
	for i < len(w.timestamps) && !w.timestamps[i].After(cutoff) {
		i++
	}
	if i > 0 {
		w.timestamps = append(w.timestamps[:0], w.timestamps[i:]...)
	}

	if len(w.timestamps) >= l.maxRequests {
		retryAfter := w.timestamps[0].Sub(cutoff)
		if retryAfter <= 0 {
			retryAfter = time.Millisecond
		}
		return Decision{Allowed: false, RetryAfter: retryAfter}
	}

	w.timestamps = append(w.timestamps, now)
	return Decision{Allowed: true}
}

// ActiveClients returns the number of clients currently tracked.
func (l *Limiter) ActiveClients() int {
	n := 0
	for _, s := range l.shards {
		s.mu.Lock()
		n += len(s.clients)
		s.mu.Unlock()
	}
	return n
}

// sweepIdle removes clients whose last request is older than the window.
func (l *Limiter) sweepIdle() int {
	cutoff := time.Now().Add(-l.window)
	removed := 0
	for _, s := range l.shards {
		s.mu.Lock()
		for id, w := range s.clients {
			if len(w.timestamps) == 0 || !w.timestamps[len(w.timestamps)-1].After(cutoff) {
				delete(s.clients, id)
				removed++
			}
		}
		s.mu.Unlock()
	}
	return removed
}

// StartSweeper launches the idle-client sweep. This is housekeeping for
// long-term memory bounding, not a correctness requirement.
func (l *Limiter) StartSweeper(every time.Duration) {
	go func() {
		ticker := time.NewTicker(every)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if n := l.sweepIdle(); n > 0 {
					l.logger.Debug("Swept idle rate-limit clients", zap.Int("removed", n))
				}
			case <-l.stopSweep:
				return
			}
		}
	}()
}

// Close stops the sweeper goroutine if one was started.
func (l *Limiter) Close() {
	l.sweepOnce.Do(func() { close(l.stopSweep) })
}
