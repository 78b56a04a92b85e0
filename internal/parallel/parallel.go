// Package parallel provides parallel execution utilities for the ViVQA runtime.
package parallel

import (
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Config controls parallel execution behavior.
type Config struct {
	Enabled      bool // Whether parallel execution is enabled.
	NumWorkers   int  // Number of worker goroutines to use.
	MinChunkSize int  // Minimum items per goroutine to avoid overhead.
}

// DefaultConfig returns sensible defaults based on CPU count.
func DefaultConfig() Config {
	return WithWorkers(runtime.NumCPU())
}

// WithWorkers returns the default configuration capped at n workers.
// n <= 0 falls back to the CPU count.
func WithWorkers(n int) Config {
	if n <= 0 {
		n = runtime.NumCPU()
	}
	return Config{
		Enabled:      n > 1,
		NumWorkers:   n,
		MinChunkSize: 64,
	}
}

// For executes f(i) for i in [0, n) with optional parallelism.
// Falls back to sequential execution if parallelism is disabled or n is too small.
func For(n int, f func(i int), cfg Config) {
	ForChunked(n, cfg.MinChunkSize, f, cfg)
}

// ForChunked is like For but uses minChunk instead of cfg.MinChunkSize.
// Coarse work units (one matrix product per index) pass a small minChunk.
func ForChunked(n, minChunk int, f func(i int), cfg Config) {
	minChunk = max(minChunk, 1)
	if !cfg.Enabled || n < 2*minChunk || cfg.NumWorkers <= 1 {
		for i := 0; i < n; i++ {
			f(i)
		}
		return
	}

	var g errgroup.Group
	g.SetLimit(cfg.NumWorkers)
	chunkSize := max((n+cfg.NumWorkers-1)/cfg.NumWorkers, minChunk)

	for start := 0; start < n; start += chunkSize {
		s, e := start, min(start+chunkSize, n)
		g.Go(func() error {
			for i := s; i < e; i++ {
				f(i)
			}
			return nil
		})
	}
	_ = g.Wait()
}

// ForBatch optimized for batch*heads iteration pattern.
// Common in attention score and context products.
func ForBatch(batch, heads int, f func(b, h int), cfg Config) {
	ForChunked(batch*heads, 1, func(k int) {
		f(k/heads, k%heads)
	}, cfg)
}
