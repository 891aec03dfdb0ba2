package llm

import (
	"context"
	"os"
	"strconv"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// Pool bounds the number of generation calls in flight across the whole process.
// Callers beyond the bound wait for a slot.
type Pool struct {
	sem      *semaphore.Weighted
	size     int64
	inFlight atomic.Int64
}

// NewPool creates a pool with size slots. Non-positive sizes use DefaultPoolSize.
func NewPool(size int) *Pool {
	if size <= 0 {
		size = DefaultPoolSize
	}
	return &Pool{
		sem:  semaphore.NewWeighted(int64(size)),
		size: int64(size),
	}
}

// PoolSizeFromEnv reads SEMAPHORE_LIMIT, falling back to def.
func PoolSizeFromEnv(def int) int {
	if v := os.Getenv("SEMAPHORE_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}

// Acquire blocks until a slot is free or ctx is done.
func (p *Pool) Acquire(ctx context.Context) error {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	p.inFlight.Add(1)
	return nil
}

// Release returns a slot taken by Acquire.
func (p *Pool) Release() {
	p.inFlight.Add(-1)
	p.sem.Release(1)
}

// Size returns the number of slots.
func (p *Pool) Size() int {
	return int(p.size)
}

// InFlight returns the number of slots currently held.
func (p *Pool) InFlight() int {
	return int(p.inFlight.Load())
}
