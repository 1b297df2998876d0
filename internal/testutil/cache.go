package testutil

import (
	"context"
	"slices"
	"sync"
)

// Invalidations records cache keys and prefixes dropped by writers.
type Invalidations struct {
	mu   sync.Mutex
	keys []string
	Err  error
}

func (i *Invalidations) Invalidate(_ context.Context, keyOrPrefix string) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	i.keys = append(i.keys, keyOrPrefix)

	return i.Err
}

func (i *Invalidations) Keys() []string {
	i.mu.Lock()
	defer i.mu.Unlock()

	return slices.Clone(i.keys)
}
