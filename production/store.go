/*
store.go - Persistence contract for workers, places and production entries

PURPOSE:
  Defines the interface between the workflow logic and whatever medium
  holds the data. Implementations:
  - production/store/memory.go: in-memory, for tests and throwaway runs
  - store/sqlite: local durable persistence
  - store/mongo: remote document collections, one per entity type

CONTRACT:
  List:   every record of a collection, in insertion order
  Find:   one record by id, (nil, false) when absent
  Add:    append a record; an empty id is replaced by a generated UUIDv7.
          Fails with DuplicateIDError when the id is taken.
  Remove: delete by id; removing an absent id returns false, not an error

  There is no update. Entries are immutable; corrections are delete + add.
  There is no cascade. Removing an entry leaves downstream references
  dangling.

FAILURES:
  Any failure of the medium is returned as a *StoreError (ErrStoreFailure).
  A failed Add or Remove must leave the stored state unchanged.
*/
package production

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// Reader is the read side of a Store.
type Reader interface {
	List(ctx context.Context, c Collection) ([]Record, error)
	Find(ctx context.Context, c Collection, id string) (Record, bool, error)
}

// Store persists workers, places and production entries.
type Store interface {
	Reader
	Add(ctx context.Context, rec Record) (string, error)
	Remove(ctx context.Context, c Collection, id string) (bool, error)
}

// NewID returns a fresh, time-ordered entry id.
func NewID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// EnsureID returns rec with a generated id when it has none.
func EnsureID(rec Record) Record {
	if rec.RecordID() != "" {
		return rec
	}
	return WithID(rec, NewID())
}

// =============================================================================
// TYPED HELPERS
// =============================================================================

// ListAs lists collection c and asserts every record to T.
func ListAs[T Record](ctx context.Context, r Reader, c Collection) ([]T, error) {
	recs, err := r.List(ctx, c)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(recs))
	for _, rec := range recs {
		typed, ok := rec.(T)
		if !ok {
			return nil, &StoreError{Op: "list", Collection: c, Err: fmt.Errorf("unexpected record type %T", rec)}
		}
		out = append(out, typed)
	}
	return out, nil
}

// FindAs looks up id in collection c and asserts the record to T.
func FindAs[T Record](ctx context.Context, r Reader, c Collection, id string) (T, bool, error) {
	var zero T
	rec, ok, err := r.Find(ctx, c, id)
	if err != nil || !ok {
		return zero, false, err
	}
	typed, ok := rec.(T)
	if !ok {
		return zero, false, &StoreError{Op: "find", Collection: c, Err: fmt.Errorf("unexpected record type %T", rec)}
	}
	return typed, true, nil
}

func ListWorkers(ctx context.Context, r Reader) ([]Worker, error) {
	return ListAs[Worker](ctx, r, CollectionWorkers)
}

func ListPlaces(ctx context.Context, r Reader) ([]Place, error) {
	return ListAs[Place](ctx, r, CollectionPlaces)
}

func ListOverlock(ctx context.Context, r Reader) ([]OverlockEntry, error) {
	return ListAs[OverlockEntry](ctx, r, CollectionOverlock)
}

func ListTassel(ctx context.Context, r Reader) ([]TasselEntry, error) {
	return ListAs[TasselEntry](ctx, r, CollectionTassel)
}

func ListFold(ctx context.Context, r Reader) ([]FoldEntry, error) {
	return ListAs[FoldEntry](ctx, r, CollectionFold)
}

func ListDeliveries(ctx context.Context, r Reader) ([]DeliveryEntry, error) {
	return ListAs[DeliveryEntry](ctx, r, CollectionDeliveries)
}
