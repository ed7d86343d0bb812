// Package store defines the record store the saga's step executors persist
// through. Records are addressed by a composite partition/sort key pair so
// an order's items can be range-scanned under the order's partition.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound signals that no record exists under the requested key.
var ErrNotFound = errors.New("record not found")

// Key is a composite entity key, e.g. {ORDER#42, ITEM#7}.
type Key struct {
	Partition string
	Sort      string
}

func (k Key) String() string { return k.Partition + "|" + k.Sort }

// Record is one stored entity. Status is kept outside Data so stores can
// update it without rewriting the document.
type Record struct {
	Key       Key
	Status    string
	Data      []byte // JSON document
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Store is the persistence surface consumed by step executors. Concurrent
// saga runs for different orders touch disjoint keys and never contend.
type Store interface {
	// Put writes a record, replacing any existing one under the same key.
	Put(ctx context.Context, rec Record) error
	// Get returns the record under key, or ErrNotFound.
	Get(ctx context.Context, key Key) (Record, error)
	// Query returns records in the partition whose sort key starts with
	// sortPrefix, ordered by sort key. An empty prefix matches all.
	Query(ctx context.Context, partition, sortPrefix string) ([]Record, error)
	// UpdateStatus sets the record's status and returns the updated record,
	// or ErrNotFound.
	UpdateStatus(ctx context.Context, key Key, status string) (Record, error)
}
