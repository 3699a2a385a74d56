// Package pool provides typed free lists for per-query scratch buffers.
//
// Both listeners draw their read buffers from a pool instead of allocating
// per packet, so sustained query load settles into a fixed working set.
package pool

import "sync"

// Pool is a generic wrapper around sync.Pool.
type Pool[T any] struct {
	internal sync.Pool
}

// New creates a new Pool with the given constructor.
func New[T any](newFn func() T) *Pool[T] {
	return &Pool[T]{
		internal: sync.Pool{
			New: func() any {
				return newFn()
			},
		},
	}
}

// Bytes creates a pool of fixed-size byte buffers. Buffers are handed out
// as pointers so returning one to the pool does not allocate.
func Bytes(size int) *Pool[*[]byte] {
	return New(func() *[]byte {
		buf := make([]byte, size)
		return &buf
	})
}

// Get retrieves an item from the pool.
func (p *Pool[T]) Get() T {
	return p.internal.Get().(T)
}

// Put returns an item to the pool.
func (p *Pool[T]) Put(item T) {
	p.internal.Put(item)
}
