/*
Package production provides the core of the towel workflow tracker.

PURPOSE:
  Towels move through sequential stages: overlock stitching, tassel
  stitching (optional), folding and delivery. Each stage records entries
  that consume quantity produced by the stage before it. This package holds
  the entities, the store contract, the availability computation, the
  write-time validator and the earnings reports.

KEY CONCEPTS IN THIS FILE (types.go):
  - Worker / Place: user-identified master data
  - OverlockEntry, TasselEntry, FoldEntry, DeliveryEntry: immutable
    production records, one per stage
  - UpstreamRef: tagged reference to the entry a fold consumes
  - Collection: names the six persisted collections

INVARIANTS:
  1. Entries are immutable. They are created and deleted, never edited.
  2. Sum of downstream qty referencing an upstream id <= upstream qty,
     checked at write time (see validator.go), never stored.
  3. towelType on a downstream entry is copied from upstream when built.
  4. Deleting an upstream entry does not cascade. Downstream foreign keys
     are left dangling and resolve to NotFound.

USAGE:
  v := production.NewValidator(store)
  entry, err := v.BuildTassel(ctx, production.TasselRequest{...})
  if err != nil {
      // ValidationError, NotFoundError or InsufficientAvailabilityError
  }
  _, err = store.Add(ctx, entry)

SEE ALSO:
  - store.go: Store contract
  - availability.go: remaining quantity per stage
  - validator.go: stage transition checks
  - report.go: earnings rollups
*/
package production

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// STAGES
// =============================================================================

// Stage is a processing step in the workflow.
type Stage string

const (
	StageOverlock Stage = "Overlock"
	StageTassel   Stage = "Tassel"
	StageFold     Stage = "Fold"
	StageDelivery Stage = "Delivery"
)

// Collection returns where entries of the stage are stored.
func (s Stage) Collection() (Collection, bool) {
	switch s {
	case StageOverlock:
		return CollectionOverlock, true
	case StageTassel:
		return CollectionTassel, true
	case StageFold:
		return CollectionFold, true
	case StageDelivery:
		return CollectionDeliveries, true
	}
	return "", false
}

// NextStep routes an overlock entry either through tassel or straight to fold.
type NextStep string

const (
	NextTassel NextStep = "Tassel"
	NextFold   NextStep = "Fold"
)

func (n NextStep) Valid() bool { return n == NextTassel || n == NextFold }

// WorkerGroup is the team a worker usually belongs to. Informational only.
type WorkerGroup string

const (
	GroupOverlock WorkerGroup = "Overlock"
	GroupTassel   WorkerGroup = "Tassel"
	GroupFold     WorkerGroup = "Fold"
)

// Valid reports whether g is empty or one of the known groups.
func (g WorkerGroup) Valid() bool {
	switch g {
	case "", GroupOverlock, GroupTassel, GroupFold:
		return true
	}
	return false
}

// =============================================================================
// COLLECTIONS
// =============================================================================

// Collection names a persisted entity collection.
type Collection string

const (
	CollectionWorkers    Collection = "workers"
	CollectionPlaces     Collection = "places"
	CollectionOverlock   Collection = "overlockEntries"
	CollectionTassel     Collection = "tasselEntries"
	CollectionFold       Collection = "foldEntries"
	CollectionDeliveries Collection = "deliveryEntries"
)

// Collections lists every collection in dependency order.
var Collections = []Collection{
	CollectionWorkers,
	CollectionPlaces,
	CollectionOverlock,
	CollectionTassel,
	CollectionFold,
	CollectionDeliveries,
}

// Record is implemented by every persisted entity.
type Record interface {
	Collection() Collection
	RecordID() string
}

// =============================================================================
// MASTER DATA
// =============================================================================

type Worker struct {
	ID     string      `json:"id" bson:"_id"`
	Name   string      `json:"name" bson:"name"`
	Group  WorkerGroup `json:"group,omitempty" bson:"group,omitempty"`
	Active bool        `json:"active" bson:"active"`
}

func (w Worker) Collection() Collection { return CollectionWorkers }
func (w Worker) RecordID() string       { return w.ID }

// Place is a delivery destination.
type Place struct {
	ID     string `json:"id" bson:"_id"`
	Name   string `json:"name" bson:"name"`
	Active bool   `json:"active" bson:"active"`
}

func (p Place) Collection() Collection { return CollectionPlaces }
func (p Place) RecordID() string       { return p.ID }

// =============================================================================
// PRODUCTION ENTRIES
// =============================================================================

// OverlockEntry records units stitched at stage one.
type OverlockEntry struct {
	ID        string          `json:"id" bson:"_id"`
	Date      Date            `json:"date" bson:"date"`
	WorkerID  string          `json:"workerId" bson:"workerId"`
	TowelType string          `json:"towelType" bson:"towelType"`
	Qty       int             `json:"qty" bson:"qty"`
	Rate      decimal.Decimal `json:"rate" bson:"rate"`
	NextStep  NextStep        `json:"nextStep" bson:"nextStep"`
	CreatedAt time.Time       `json:"createdAt" bson:"createdAt"`
}

func (e OverlockEntry) Collection() Collection  { return CollectionOverlock }
func (e OverlockEntry) RecordID() string        { return e.ID }
func (e OverlockEntry) Amount() decimal.Decimal { return amount(e.Qty, e.Rate) }

// TasselEntry consumes quantity from one overlock entry routed to tassel.
type TasselEntry struct {
	ID              string          `json:"id" bson:"_id"`
	Date            Date            `json:"date" bson:"date"`
	WorkerID        string          `json:"workerId" bson:"workerId"`
	TowelType       string          `json:"towelType" bson:"towelType"`
	Qty             int             `json:"qty" bson:"qty"`
	Rate            decimal.Decimal `json:"rate" bson:"rate"`
	OverlockEntryID string          `json:"overlockEntryId" bson:"overlockEntryId"`
	CreatedAt       time.Time       `json:"createdAt" bson:"createdAt"`
}

func (e TasselEntry) Collection() Collection  { return CollectionTassel }
func (e TasselEntry) RecordID() string        { return e.ID }
func (e TasselEntry) Amount() decimal.Decimal { return amount(e.Qty, e.Rate) }

// FoldEntry consumes quantity from exactly one tassel entry or one overlock
// entry routed straight to fold. Exactly one of the two ids is set.
type FoldEntry struct {
	ID              string          `json:"id" bson:"_id"`
	Date            Date            `json:"date" bson:"date"`
	WorkerID        string          `json:"workerId" bson:"workerId"`
	TowelType       string          `json:"towelType" bson:"towelType"`
	Qty             int             `json:"qty" bson:"qty"`
	Rate            decimal.Decimal `json:"rate" bson:"rate"`
	TasselEntryID   string          `json:"tasselEntryId,omitempty" bson:"tasselEntryId,omitempty"`
	OverlockEntryID string          `json:"overlockEntryId,omitempty" bson:"overlockEntryId,omitempty"`
	CreatedAt       time.Time       `json:"createdAt" bson:"createdAt"`
}

func (e FoldEntry) Collection() Collection  { return CollectionFold }
func (e FoldEntry) RecordID() string        { return e.ID }
func (e FoldEntry) Amount() decimal.Decimal { return amount(e.Qty, e.Rate) }

// Source returns the upstream entry this fold consumed.
func (e FoldEntry) Source() UpstreamRef {
	if e.TasselEntryID != "" {
		return UpstreamRef{Kind: SourceTassel, ID: e.TasselEntryID}
	}
	return UpstreamRef{Kind: SourceOverlock, ID: e.OverlockEntryID}
}

// DeliveryEntry ships folded towels to a place. It has no foreign key to a
// fold entry: deliveries are matched to folds by (date, towelType) only.
type DeliveryEntry struct {
	ID        string    `json:"id" bson:"_id"`
	Date      Date      `json:"date" bson:"date"`
	TowelType string    `json:"towelType" bson:"towelType"`
	Qty       int       `json:"qty" bson:"qty"`
	PlaceID   string    `json:"placeId" bson:"placeId"`
	PlaceName string    `json:"placeName" bson:"placeName"`
	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
}

func (e DeliveryEntry) Collection() Collection { return CollectionDeliveries }
func (e DeliveryEntry) RecordID() string       { return e.ID }

// =============================================================================
// UPSTREAM REFERENCE - tagged union for fold sources
// =============================================================================

type SourceKind string

const (
	SourceTassel   SourceKind = "tassel"
	SourceOverlock SourceKind = "overlock"
)

// UpstreamRef identifies an entry that a downstream stage may consume.
type UpstreamRef struct {
	Kind SourceKind `json:"kind"`
	ID   string     `json:"id"`
}

func (r UpstreamRef) Collection() Collection {
	if r.Kind == SourceTassel {
		return CollectionTassel
	}
	return CollectionOverlock
}

func (r UpstreamRef) String() string { return string(r.Kind) + ":" + r.ID }

// WithID returns a copy of rec carrying id. Stores use it to fill ids they
// generate on Add.
func WithID(rec Record, id string) Record {
	switch r := rec.(type) {
	case Worker:
		r.ID = id
		return r
	case Place:
		r.ID = id
		return r
	case OverlockEntry:
		r.ID = id
		return r
	case TasselEntry:
		r.ID = id
		return r
	case FoldEntry:
		r.ID = id
		return r
	case DeliveryEntry:
		r.ID = id
		return r
	}
	return rec
}

// DecodeRecord unmarshals a JSON payload into the concrete type stored in c.
func DecodeRecord(c Collection, data []byte) (Record, error) {
	switch c {
	case CollectionWorkers:
		return decodeAs[Worker](data)
	case CollectionPlaces:
		return decodeAs[Place](data)
	case CollectionOverlock:
		return decodeAs[OverlockEntry](data)
	case CollectionTassel:
		return decodeAs[TasselEntry](data)
	case CollectionFold:
		return decodeAs[FoldEntry](data)
	case CollectionDeliveries:
		return decodeAs[DeliveryEntry](data)
	}
	return nil, fmt.Errorf("unknown collection %q", c)
}

func decodeAs[T Record](data []byte) (Record, error) {
	var rec T
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// EntryDate returns the production date of rec, or "" for master data.
func EntryDate(rec Record) Date {
	switch r := rec.(type) {
	case OverlockEntry:
		return r.Date
	case TasselEntry:
		return r.Date
	case FoldEntry:
		return r.Date
	case DeliveryEntry:
		return r.Date
	}
	return ""
}

func amount(qty int, rate decimal.Decimal) decimal.Decimal {
	return decimal.NewFromInt(int64(qty)).Mul(rate)
}
