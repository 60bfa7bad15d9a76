// Package kv holds the small key-value capability the ranking engine keeps
// its client-side state in (vote records, session token).
package kv

import "context"

// Store is a string key-value store. A missing key is not an error: Get
// reports it with ok == false.
type Store interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}
