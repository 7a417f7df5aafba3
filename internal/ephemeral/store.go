// Package ephemeral abstracts the key-value store used for presence sets,
// the recent-message cache, and call-session bookkeeping. TTL expiry is the
// only garbage collection; nothing in here is a system of record.
package ephemeral

import (
	"context"
	"time"
)

// Store is the contract the real-time core coordinates through. Every
// operation is a single-key atomic step; compound sequences are not
// transactional, which is why SetIfAbsent exists.
type Store interface {
	// Lists (head-ordered; index 0 is the newest push).
	ListPush(ctx context.Context, key, value string) error
	ListTrim(ctx context.Context, key string, start, stop int64) error
	ListRange(ctx context.Context, key string, start, stop int64) ([]string, error)

	// Sets.
	SetAdd(ctx context.Context, key, member string) error
	SetRemove(ctx context.Context, key, member string) error
	SetMembers(ctx context.Context, key string) ([]string, error)

	// Plain keys. Get reports presence explicitly; a missing key is not
	// an error. SetIfAbsent is an atomic claim: it returns false without
	// writing when the key already exists.
	Get(ctx context.Context, key string) (string, bool, error)
	SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error
	SetIfAbsent(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	Delete(ctx context.Context, keys ...string) error
	Expire(ctx context.Context, key string, ttl time.Duration) error
}
