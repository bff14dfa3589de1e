package storage

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("key not found")

type Entry struct {
	Key   string
	Value []byte
}

// Store is a key-value store with atomic single-key writes and ordered
// prefix listing. Keys compare bytewise.
type Store interface {
	Set(ctx context.Context, key string, value []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	// List returns every entry whose key starts with prefix, in ascending key order.
	List(ctx context.Context, prefix string) ([]Entry, error)
	Delete(ctx context.Context, key string) error
	// SetAll writes all entries or none of them when the backend supports it.
	SetAll(ctx context.Context, entries []Entry) error
}

// PrefixEnd returns the smallest key greater than every key with the given
// prefix, or "" when no such key exists.
func PrefixEnd(prefix string) string {
	end := []byte(prefix)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] < 0xff {
			end[i]++
			return string(end[:i+1])
		}
	}
	return ""
}
