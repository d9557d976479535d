/*
validator.go - Stage transition checks

PURPOSE:
  Gatekeeps every write into the store. A request is turned into an
  immutable entry only when it passes, in order, short-circuiting on the
  first failure:

  1. FIELDS: date is YYYY-MM-DD, worker resolves (production stages),
     0 < qty <= MaxQty, rate > 0 (production stages), place resolves
     (delivery)
  2. UPSTREAM: the referenced entry exists, is routed to this stage, and
     the availability engine, recomputed for the request date, shows
     remaining >= qty
  3. BUILD: new id, towelType copied from upstream, audit timestamp

SIDE EFFECTS:
  None. The caller persists the returned entry.

CHECK-THEN-ACT:
  Validation reads a snapshot; the caller writes afterwards. Two writers
  racing on the same upstream unit can both pass. workflow.Service
  serializes writes inside one process; nothing guards across processes.

ERRORS:
  *ValidationError               - step 1, or upstream routed elsewhere
  *NotFoundError                 - worker, place or upstream id unknown
  *InsufficientAvailabilityError - step 2 quantity check
  *DuplicateIDError              - worker/place id already taken
*/
package production

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// REQUESTS
// =============================================================================

type WorkerRequest struct {
	ID    string
	Name  string
	Group WorkerGroup
}

type PlaceRequest struct {
	ID   string
	Name string
}

type OverlockRequest struct {
	Date      string
	WorkerID  string
	TowelType string
	Qty       int
	Rate      decimal.Decimal
	NextStep  NextStep
}

type TasselRequest struct {
	Date            string
	WorkerID        string
	OverlockEntryID string
	Qty             int
	Rate            decimal.Decimal
}

type FoldRequest struct {
	Date     string
	WorkerID string
	Source   UpstreamRef
	Qty      int
	Rate     decimal.Decimal
}

type DeliveryRequest struct {
	Date      string
	TowelType string
	Qty       int
	PlaceID   string
}

// =============================================================================
// VALIDATOR
// =============================================================================

type Validator struct {
	store Reader

	// Now stamps CreatedAt. Defaults to time.Now.
	Now func() time.Time
	// NewID generates entry ids. Defaults to NewID (UUIDv7).
	NewID func() string
}

func NewValidator(store Reader) *Validator {
	return &Validator{store: store, Now: time.Now, NewID: NewID}
}

// ValidateAndBuild dispatches params to the builder for stage. params must be
// the request type matching the stage.
func (v *Validator) ValidateAndBuild(ctx context.Context, stage Stage, params any) (Record, error) {
	var (
		rec Record
		err error
	)
	switch req := params.(type) {
	case OverlockRequest:
		if stage == StageOverlock {
			rec, err = v.BuildOverlock(ctx, req)
		}
	case TasselRequest:
		if stage == StageTassel {
			rec, err = v.BuildTassel(ctx, req)
		}
	case FoldRequest:
		if stage == StageFold {
			rec, err = v.BuildFold(ctx, req)
		}
	case DeliveryRequest:
		if stage == StageDelivery {
			rec, err = v.BuildDelivery(ctx, req)
		}
	}
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, fmt.Errorf("%w: %s with %T", ErrUnknownStage, stage, params)
	}
	return rec, nil
}

func (v *Validator) BuildWorker(ctx context.Context, req WorkerRequest) (Worker, error) {
	id, name := strings.TrimSpace(req.ID), strings.TrimSpace(req.Name)
	if id == "" {
		return Worker{}, invalid("id", "required")
	}
	if name == "" {
		return Worker{}, invalid("name", "required")
	}
	if !req.Group.Valid() {
		return Worker{}, invalid("group", "must be empty, %q, %q or %q, got %q", GroupOverlock, GroupTassel, GroupFold, req.Group)
	}
	_, exists, err := v.store.Find(ctx, CollectionWorkers, id)
	if err != nil {
		return Worker{}, err
	}
	if exists {
		return Worker{}, &DuplicateIDError{Collection: CollectionWorkers, ID: id}
	}
	return Worker{ID: id, Name: name, Group: req.Group, Active: true}, nil
}

func (v *Validator) BuildPlace(ctx context.Context, req PlaceRequest) (Place, error) {
	id, name := strings.TrimSpace(req.ID), strings.TrimSpace(req.Name)
	if id == "" {
		return Place{}, invalid("id", "required")
	}
	if name == "" {
		return Place{}, invalid("name", "required")
	}
	_, exists, err := v.store.Find(ctx, CollectionPlaces, id)
	if err != nil {
		return Place{}, err
	}
	if exists {
		return Place{}, &DuplicateIDError{Collection: CollectionPlaces, ID: id}
	}
	return Place{ID: id, Name: name, Active: true}, nil
}

func (v *Validator) BuildOverlock(ctx context.Context, req OverlockRequest) (OverlockEntry, error) {
	snap, err := LoadSnapshot(ctx, v.store)
	if err != nil {
		return OverlockEntry{}, err
	}
	return v.buildOverlock(snap, req)
}

func (v *Validator) BuildTassel(ctx context.Context, req TasselRequest) (TasselEntry, error) {
	snap, err := LoadSnapshot(ctx, v.store)
	if err != nil {
		return TasselEntry{}, err
	}
	return v.buildTassel(snap, req)
}

func (v *Validator) BuildFold(ctx context.Context, req FoldRequest) (FoldEntry, error) {
	snap, err := LoadSnapshot(ctx, v.store)
	if err != nil {
		return FoldEntry{}, err
	}
	return v.buildFold(snap, req)
}

func (v *Validator) BuildDelivery(ctx context.Context, req DeliveryRequest) (DeliveryEntry, error) {
	snap, err := LoadSnapshot(ctx, v.store)
	if err != nil {
		return DeliveryEntry{}, err
	}
	return v.buildDelivery(snap, req)
}

// =============================================================================
// BUILDERS - pure over a snapshot
// =============================================================================

func (v *Validator) buildOverlock(snap *Snapshot, req OverlockRequest) (OverlockEntry, error) {
	date, err := checkProduction(snap, req.Date, req.WorkerID, req.Qty, req.Rate)
	if err != nil {
		return OverlockEntry{}, err
	}
	towel := strings.TrimSpace(req.TowelType)
	if towel == "" {
		return OverlockEntry{}, invalid("towelType", "required")
	}
	if !req.NextStep.Valid() {
		return OverlockEntry{}, invalid("nextStep", "must be %q or %q, got %q", NextTassel, NextFold, req.NextStep)
	}
	return OverlockEntry{
		ID:        v.NewID(),
		Date:      date,
		WorkerID:  req.WorkerID,
		TowelType: towel,
		Qty:       req.Qty,
		Rate:      req.Rate,
		NextStep:  req.NextStep,
		CreatedAt: v.Now().UTC(),
	}, nil
}

func (v *Validator) buildTassel(snap *Snapshot, req TasselRequest) (TasselEntry, error) {
	date, err := checkProduction(snap, req.Date, req.WorkerID, req.Qty, req.Rate)
	if err != nil {
		return TasselEntry{}, err
	}
	if req.OverlockEntryID == "" {
		return TasselEntry{}, invalid("overlockEntryId", "required")
	}

	upstream, ok := snap.OverlockEntry(req.OverlockEntryID)
	if !ok {
		return TasselEntry{}, &NotFoundError{Collection: CollectionOverlock, ID: req.OverlockEntryID}
	}
	if upstream.NextStep != NextTassel {
		return TasselEntry{}, invalid("overlockEntryId", "entry %s is routed to %s, not %s", upstream.ID, upstream.NextStep, NextTassel)
	}
	ref := UpstreamRef{Kind: SourceOverlock, ID: upstream.ID}
	if available := snap.RemainingFor(StageTassel, date, ref); available < req.Qty {
		return TasselEntry{}, &InsufficientAvailabilityError{Stage: StageTassel, Available: available, Requested: req.Qty}
	}

	return TasselEntry{
		ID:              v.NewID(),
		Date:            date,
		WorkerID:        req.WorkerID,
		TowelType:       upstream.TowelType,
		Qty:             req.Qty,
		Rate:            req.Rate,
		OverlockEntryID: upstream.ID,
		CreatedAt:       v.Now().UTC(),
	}, nil
}

func (v *Validator) buildFold(snap *Snapshot, req FoldRequest) (FoldEntry, error) {
	date, err := checkProduction(snap, req.Date, req.WorkerID, req.Qty, req.Rate)
	if err != nil {
		return FoldEntry{}, err
	}
	if req.Source.ID == "" {
		return FoldEntry{}, invalid("source", "required")
	}

	entry := FoldEntry{
		Date:     date,
		WorkerID: req.WorkerID,
		Qty:      req.Qty,
		Rate:     req.Rate,
	}
	switch req.Source.Kind {
	case SourceTassel:
		upstream, ok := snap.TasselEntry(req.Source.ID)
		if !ok {
			return FoldEntry{}, &NotFoundError{Collection: CollectionTassel, ID: req.Source.ID}
		}
		entry.TowelType = upstream.TowelType
		entry.TasselEntryID = upstream.ID
	case SourceOverlock:
		upstream, ok := snap.OverlockEntry(req.Source.ID)
		if !ok {
			return FoldEntry{}, &NotFoundError{Collection: CollectionOverlock, ID: req.Source.ID}
		}
		if upstream.NextStep != NextFold {
			return FoldEntry{}, invalid("source", "entry %s is routed to %s, not %s", upstream.ID, upstream.NextStep, NextFold)
		}
		entry.TowelType = upstream.TowelType
		entry.OverlockEntryID = upstream.ID
	default:
		return FoldEntry{}, invalid("source.kind", "must be %q or %q, got %q", SourceTassel, SourceOverlock, req.Source.Kind)
	}

	if available := snap.RemainingFor(StageFold, date, req.Source); available < req.Qty {
		return FoldEntry{}, &InsufficientAvailabilityError{Stage: StageFold, Available: available, Requested: req.Qty}
	}

	entry.ID = v.NewID()
	entry.CreatedAt = v.Now().UTC()
	return entry, nil
}

func (v *Validator) buildDelivery(snap *Snapshot, req DeliveryRequest) (DeliveryEntry, error) {
	date, err := parseRequired(req.Date)
	if err != nil {
		return DeliveryEntry{}, err
	}
	towel := strings.TrimSpace(req.TowelType)
	if towel == "" {
		return DeliveryEntry{}, invalid("towelType", "required")
	}
	if err := checkQty(req.Qty); err != nil {
		return DeliveryEntry{}, err
	}
	if req.PlaceID == "" {
		return DeliveryEntry{}, invalid("placeId", "required")
	}
	place, ok := snap.Place(req.PlaceID)
	if !ok {
		return DeliveryEntry{}, &NotFoundError{Collection: CollectionPlaces, ID: req.PlaceID}
	}

	if available := snap.DeliverableRemaining(date, towel); available < req.Qty {
		return DeliveryEntry{}, &InsufficientAvailabilityError{Stage: StageDelivery, Available: available, Requested: req.Qty}
	}

	return DeliveryEntry{
		ID:        v.NewID(),
		Date:      date,
		TowelType: towel,
		Qty:       req.Qty,
		PlaceID:   place.ID,
		PlaceName: place.Name,
		CreatedAt: v.Now().UTC(),
	}, nil
}

// checkProduction runs the field checks shared by the three paid stages.
func checkProduction(snap *Snapshot, rawDate, workerID string, qty int, rate decimal.Decimal) (Date, error) {
	date, err := parseRequired(rawDate)
	if err != nil {
		return "", err
	}
	if workerID == "" {
		return "", invalid("workerId", "required")
	}
	if _, ok := snap.Worker(workerID); !ok {
		return "", &NotFoundError{Collection: CollectionWorkers, ID: workerID}
	}
	if err := checkQty(qty); err != nil {
		return "", err
	}
	if !rate.IsPositive() {
		return "", invalid("rate", "must be positive, got %s", rate.String())
	}
	return date, nil
}

// MaxQty bounds a single entry so per-day sums stay far from overflow.
const MaxQty = 1_000_000

func checkQty(qty int) error {
	if qty <= 0 {
		return invalid("qty", "must be a positive integer, got %d", qty)
	}
	if qty > MaxQty {
		return invalid("qty", "must be at most %d, got %d", MaxQty, qty)
	}
	return nil
}

func parseRequired(raw string) (Date, error) {
	if strings.TrimSpace(raw) == "" {
		return "", invalid("date", "required")
	}
	date, err := ParseDate(strings.TrimSpace(raw))
	if err != nil {
		return "", invalid("date", "%v", err)
	}
	return date, nil
}
