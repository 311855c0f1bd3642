// Package cache provides the TTL-bounded read-through cache used for review listings and stats.
package cache

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Cache is a key/value store with per-entry TTL. A miss is reported as ok=false with a nil error.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	// Keys returns the keys matching a glob pattern ("*" and "?" wildcards).
	Keys(ctx context.Context, pattern string) ([]string, error)
	Ping(ctx context.Context) error
	Close() error
}

// Key builds a deterministic cache key "namespace:op:k1=v1:k2=v2" with params sorted by name.
// Empty values are kept so that "no filter" and "filter" produce different keys.
func Key(namespace, op string, params map[string]string) string {
	names := make([]string, 0, len(params))
	for k := range params {
		names = append(names, k)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString(namespace)
	b.WriteByte(':')
	b.WriteString(op)
	for _, k := range names {
		fmt.Fprintf(&b, ":%s=%s", k, params[k])
	}
	return b.String()
}

// Invalidate deletes every key under namespace and returns how many were removed.
func Invalidate(ctx context.Context, c Cache, namespace string) (int, error) {
	keys, err := c.Keys(ctx, namespace+":*")
	if err != nil {
		return 0, fmt.Errorf("list keys: %w", err)
	}
	if len(keys) == 0 {
		return 0, nil
	}
	if err := c.Delete(ctx, keys...); err != nil {
		return 0, fmt.Errorf("delete keys: %w", err)
	}
	return len(keys), nil
}

// Noop is a cache that never stores anything.
type Noop struct{}

func (Noop) Get(context.Context, string) ([]byte, bool, error) { return nil, false, nil }

func (Noop) Set(context.Context, string, []byte, time.Duration) error { return nil }

func (Noop) Delete(context.Context, ...string) error { return nil }

func (Noop) Keys(context.Context, string) ([]string, error) { return nil, nil }

func (Noop) Ping(context.Context) error { return nil }

func (Noop) Close() error { return nil }
