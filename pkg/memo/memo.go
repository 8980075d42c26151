// Package memo memoizes the results of keyed calls for a fixed TTL and
// collapses concurrent calls for the same key into one.
//
// State is process local: separate instances do not share entries or
// in-flight calls.
package memo

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

type entry[V any] struct {
	value   V
	expires time.Time
}

// Group caches values of type V by key K.
type Group[K comparable, V any] struct {
	ttl    time.Duration
	now    func() time.Time
	flight singleflight.Group

	mu      sync.Mutex
	entries map[K]entry[V]
}

// New returns a group whose entries live for ttl.
func New[K comparable, V any](ttl time.Duration) *Group[K, V] {
	return &Group[K, V]{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[K]entry[V]),
	}
}

// Do returns the cached value for key, or calls fn once for all concurrent
// callers and caches a successful result. Errors are not cached.
func (g *Group[K, V]) Do(ctx context.Context, key K, fn func(context.Context) (V, error)) (V, error) {
	if v, ok := g.lookup(key); ok {
		return v, nil
	}

	ch := g.flight.DoChan(fmt.Sprint(key), func() (any, error) {
		if v, ok := g.lookup(key); ok {
			return v, nil
		}
		v, err := fn(context.WithoutCancel(ctx))
		if err != nil {
			return v, err
		}
		g.store(key, v)
		return v, nil
	})

	select {
	case <-ctx.Done():
		var zero V
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			var zero V
			return zero, res.Err
		}
		return res.Val.(V), nil
	}
}

// Forget drops the cached value for key.
func (g *Group[K, V]) Forget(key K) {
	g.mu.Lock()
	delete(g.entries, key)
	g.mu.Unlock()
	g.flight.Forget(fmt.Sprint(key))
}

// Len returns the number of live entries.
func (g *Group[K, V]) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.evictLocked()
	return len(g.entries)
}

func (g *Group[K, V]) lookup(key K) (V, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	e, ok := g.entries[key]
	if !ok || !g.now().Before(e.expires) {
		var zero V
		return zero, false
	}
	return e.value, true
}

func (g *Group[K, V]) store(key K, v V) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.evictLocked()
	g.entries[key] = entry[V]{value: v, expires: g.now().Add(g.ttl)}
}

func (g *Group[K, V]) evictLocked() {
	now := g.now()
	for k, e := range g.entries {
		if !now.Before(e.expires) {
			delete(g.entries, k)
		}
	}
}
