// Package store defines the document persistence port used by the ledger
// services, with in-memory and Redis implementations.
package store

import (
	"context"
	"errors"
	"reflect"

	"github.com/rgehrsitz/finsight/internal/codec"
)

// ErrNotFound is returned by Get when no document exists under a key.
var ErrNotFound = errors.New("document not found")

// Event carries the document stored under Key after a change.
type Event struct {
	Key  string
	Data []byte
}

// Decode unmarshals the event's document into dst.
func (e Event) Decode(dst interface{}) error {
	return codec.Unmarshal(e.Data, dst)
}

// Store persists JSON documents by key and notifies subscribers of changes.
type Store interface {
	// Get decodes the document under key into dst, or returns ErrNotFound.
	Get(ctx context.Context, key string, dst interface{}) error
	// Put replaces the document under key and notifies subscribers.
	Put(ctx context.Context, key string, value interface{}) error
	// Update atomically reads the document under key into dst, calls fn
	// to modify it and writes dst back. dst is zeroed before the read, so
	// fn sees the zero value when no document exists. fn may run more
	// than once. An error from fn aborts the write and is returned as is.
	Update(ctx context.Context, key string, dst interface{}, fn func() error) error
	// Subscribe streams the current document, if any, followed by every
	// later change. The channel is closed when ctx is done.
	Subscribe(ctx context.Context, key string) (<-chan Event, error)
}

// subscriptionBuffer bounds each subscriber's queue. Slow subscribers
// miss intermediate snapshots rather than blocking writers.
const subscriptionBuffer = 16

// resetValue zeroes the value dst points to.
func resetValue(dst interface{}) {
	v := reflect.ValueOf(dst)
	if v.Kind() == reflect.Ptr && !v.IsNil() {
		v.Elem().Set(reflect.Zero(v.Elem().Type()))
	}
}
