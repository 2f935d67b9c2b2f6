package utils

import (
	"context"
	"math/rand"
	"sort"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Pacer spaces out requests: at most one per interval, plus a random jitter.
// A nil Pacer never waits.
type Pacer struct {
	limiter *rate.Limiter
	jitter  time.Duration

	mu  sync.Mutex
	rnd *rand.Rand
}

// NewPacer returns nil when both interval and jitter are zero.
func NewPacer(interval, jitter time.Duration) *Pacer {
	if interval <= 0 && jitter <= 0 {
		return nil
	}
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	return &Pacer{
		limiter: rate.NewLimiter(limit, 1),
		jitter:  jitter,
		rnd:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Wait blocks until the next request may start or ctx is done.
func (p *Pacer) Wait(ctx context.Context) error {
	if p == nil {
		return nil
	}
	if err := p.limiter.Wait(ctx); err != nil {
		return err
	}
	if p.jitter <= 0 {
		return nil
	}

	p.mu.Lock()
	d := time.Duration(p.rnd.Int63n(int64(p.jitter)))
	p.mu.Unlock()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// WorkerPool runs jobs on at most maxWorkers goroutines.
type WorkerPool struct {
	semaphore chan struct{}
	pacer     *Pacer
	wg        sync.WaitGroup
}

// NewWorkerPool creates a WorkerPool. pacer may be nil.
func NewWorkerPool(maxWorkers int, pacer *Pacer) *WorkerPool {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	return &WorkerPool{
		semaphore: make(chan struct{}, maxWorkers),
		pacer:     pacer,
	}
}

// Submit enqueues a job, blocking while all workers are busy. Jobs still run
// when ctx is cancelled so they can observe it and record their outcome.
func (wp *WorkerPool) Submit(ctx context.Context, job func()) {
	wp.wg.Add(1)
	wp.semaphore <- struct{}{}

	go func() {
		defer wp.wg.Done()
		defer func() { <-wp.semaphore }()

		_ = wp.pacer.Wait(ctx)
		job()
	}()
}

// Wait blocks until all submitted jobs have completed.
func (wp *WorkerPool) Wait() {
	wp.wg.Wait()
}

// URLSet is a thread-safe set of URLs.
type URLSet struct {
	mu   sync.RWMutex
	seen map[string]struct{}
}

// NewURLSet creates an empty URLSet.
func NewURLSet() *URLSet {
	return &URLSet{seen: make(map[string]struct{})}
}

// Add returns true if the URL was newly added, false if already present.
func (s *URLSet) Add(url string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.seen[url]; exists {
		return false
	}
	s.seen[url] = struct{}{}
	return true
}

// Size returns the number of unique URLs tracked.
func (s *URLSet) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.seen)
}

// Sorted returns the members in lexical order.
func (s *URLSet) Sorted() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.seen))
	for u := range s.seen {
		out = append(out, u)
	}
	sort.Strings(out)
	return out
}
