package store

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// ErrBusy means an exclusive section could not be acquired within the
// configured wait. It reflects contention, not a logic fault, so callers may
// retry.
var ErrBusy = errors.New("store busy, try again")

// Sections hands out exclusive sections keyed by collection name. An
// operation declares every collection it will read-then-write and holds the
// section for the whole load-mutate-save sequence; operations over disjoint
// sets never serialize against each other.
type Sections struct {
	mu      sync.Mutex
	sems    map[string]*semaphore.Weighted
	timeout time.Duration
}

func NewSections(timeout time.Duration) *Sections {
	return &Sections{sems: make(map[string]*semaphore.Weighted), timeout: timeout}
}

func (s *Sections) sem(name string) *semaphore.Weighted {
	s.mu.Lock()
	defer s.mu.Unlock()
	sem, ok := s.sems[name]
	if !ok {
		sem = semaphore.NewWeighted(1)
		s.sems[name] = sem
	}
	return sem
}

// Acquire takes the sections for the named collections and returns a release
// function. Names are deduplicated and taken in sorted order so overlapping
// sets cannot deadlock against each other. Acquisition is bounded by the
// section timeout; on expiry everything taken so far is released and ErrBusy
// is returned.
func (s *Sections) Acquire(ctx context.Context, names ...string) (func(), error) {
	if len(names) == 0 {
		return nil, errors.New("no collections named")
	}
	sorted := slices.Clone(names)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	held := make([]*semaphore.Weighted, 0, len(sorted))
	releaseHeld := func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].Release(1)
		}
	}
	for _, name := range sorted {
		sem := s.sem(name)
		if err := sem.Acquire(ctx, 1); err != nil {
			releaseHeld()
			return nil, fmt.Errorf("%w: section %q", ErrBusy, name)
		}
		held = append(held, sem)
	}

	var once sync.Once
	return func() { once.Do(releaseHeld) }, nil
}
