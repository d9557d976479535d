/*
availability.go - Remaining quantity per production stage

PURPOSE:
  Answers "what can the next stage still consume today?". For every
  upstream unit produced on the query date:

    remaining = producedQty - consumedQty

  where consumedQty sums the downstream entries that reference the unit
  AND were recorded on the same date. Only units with remaining > 0 are
  offered.

DAILY BATCH CLOSURE:
  Consumption and candidates are both scoped to the query date. A unit
  produced on day N and left unconsumed is NOT available on day N+1. This
  is policy, not an oversight.

STAGES:
  Overlock -> Tassel:    overlock entries with nextStep = Tassel,
                         consumed by TasselEntry.overlockEntryId
  Tassel/Overlock -> Fold: tassel entries (consumed by FoldEntry.tasselEntryId)
                         followed by overlock entries with nextStep = Fold
                         (consumed by FoldEntry.overlockEntryId)
  Fold -> Delivery:      coarser, per towel type only:
                         sum(fold qty) - sum(delivery qty) for the date

ORDER:
  Results keep candidate discovery order: store insertion order, tassel
  candidates before direct-to-fold overlock candidates.

SEE ALSO:
  - validator.go: recomputes these numbers before accepting a write
*/
package production

import "context"

// Available is one upstream unit that still has quantity to hand on.
type Available struct {
	EntryID    string     `json:"entryId"`
	Source     SourceKind `json:"source"`
	TowelType  string     `json:"towelType"`
	Remaining  int        `json:"remainingQty"`
	WorkerName string     `json:"producingWorkerName"`
}

// Ref returns the tagged reference a downstream request should carry.
func (a Available) Ref() UpstreamRef { return UpstreamRef{Kind: a.Source, ID: a.EntryID} }

// TowelAvailability is the fold to delivery balance for one towel type.
type TowelAvailability struct {
	TowelType string `json:"towelType"`
	Folded    int    `json:"folded"`
	Delivered int    `json:"delivered"`
	Remaining int    `json:"remainingQty"`
}

// =============================================================================
// SNAPSHOT QUERIES
// =============================================================================

// TasselAvailability lists overlock units waiting for tassel on date.
func (s *Snapshot) TasselAvailability(date Date) []Available {
	var out []Available
	for _, o := range s.Overlock {
		if o.Date != date || o.NextStep != NextTassel {
			continue
		}
		if remaining := o.Qty - s.tasselConsumed(o.ID, date); remaining > 0 {
			out = append(out, Available{
				EntryID:    o.ID,
				Source:     SourceOverlock,
				TowelType:  o.TowelType,
				Remaining:  remaining,
				WorkerName: s.WorkerName(o.WorkerID),
			})
		}
	}
	return out
}

// FoldAvailability lists tassel units, then direct-to-fold overlock units,
// waiting for fold on date.
func (s *Snapshot) FoldAvailability(date Date) []Available {
	var out []Available
	for _, t := range s.Tassel {
		if t.Date != date {
			continue
		}
		ref := UpstreamRef{Kind: SourceTassel, ID: t.ID}
		if remaining := t.Qty - s.foldConsumed(ref, date); remaining > 0 {
			out = append(out, Available{
				EntryID:    t.ID,
				Source:     SourceTassel,
				TowelType:  t.TowelType,
				Remaining:  remaining,
				WorkerName: s.WorkerName(t.WorkerID),
			})
		}
	}
	for _, o := range s.Overlock {
		if o.Date != date || o.NextStep != NextFold {
			continue
		}
		ref := UpstreamRef{Kind: SourceOverlock, ID: o.ID}
		if remaining := o.Qty - s.foldConsumed(ref, date); remaining > 0 {
			out = append(out, Available{
				EntryID:    o.ID,
				Source:     SourceOverlock,
				TowelType:  o.TowelType,
				Remaining:  remaining,
				WorkerName: s.WorkerName(o.WorkerID),
			})
		}
	}
	return out
}

// DeliveryAvailability lists towel types with folded stock left on date, in
// order of first fold.
func (s *Snapshot) DeliveryAvailability(date Date) []TowelAvailability {
	var (
		order  []string
		folded = make(map[string]int)
	)
	for _, f := range s.Fold {
		if f.Date != date {
			continue
		}
		if _, seen := folded[f.TowelType]; !seen {
			order = append(order, f.TowelType)
		}
		folded[f.TowelType] += f.Qty
	}

	var out []TowelAvailability
	for _, towel := range order {
		delivered := s.delivered(date, towel)
		if remaining := folded[towel] - delivered; remaining > 0 {
			out = append(out, TowelAvailability{
				TowelType: towel,
				Folded:    folded[towel],
				Delivered: delivered,
				Remaining: remaining,
			})
		}
	}
	return out
}

// RemainingFor returns what stage may still consume from ref on date. Units
// that are not candidates for the stage on that date (other day, wrong
// route, unknown id) have nothing remaining.
func (s *Snapshot) RemainingFor(stage Stage, date Date, ref UpstreamRef) int {
	var candidates []Available
	switch stage {
	case StageTassel:
		candidates = s.TasselAvailability(date)
	case StageFold:
		candidates = s.FoldAvailability(date)
	default:
		return 0
	}
	for _, a := range candidates {
		if a.Ref() == ref {
			return a.Remaining
		}
	}
	return 0
}

// DeliverableRemaining returns folded minus delivered for towelType on date,
// never below zero.
func (s *Snapshot) DeliverableRemaining(date Date, towelType string) int {
	for _, a := range s.DeliveryAvailability(date) {
		if a.TowelType == towelType {
			return a.Remaining
		}
	}
	return 0
}

func (s *Snapshot) tasselConsumed(overlockID string, date Date) int {
	total := 0
	for _, t := range s.Tassel {
		if t.Date == date && t.OverlockEntryID == overlockID {
			total += t.Qty
		}
	}
	return total
}

func (s *Snapshot) foldConsumed(ref UpstreamRef, date Date) int {
	total := 0
	for _, f := range s.Fold {
		if f.Date == date && f.Source() == ref {
			total += f.Qty
		}
	}
	return total
}

func (s *Snapshot) delivered(date Date, towelType string) int {
	total := 0
	for _, d := range s.Deliveries {
		if d.Date == date && d.TowelType == towelType {
			total += d.Qty
		}
	}
	return total
}

// =============================================================================
// ENGINE - Store-backed entry point
// =============================================================================

// AvailabilityEngine recomputes availability from the store on every call.
type AvailabilityEngine struct {
	store Reader
}

func NewAvailabilityEngine(store Reader) *AvailabilityEngine {
	return &AvailabilityEngine{store: store}
}

func (e *AvailabilityEngine) ForTassel(ctx context.Context, date Date) ([]Available, error) {
	snap, err := LoadSnapshot(ctx, e.store)
	if err != nil {
		return nil, err
	}
	return snap.TasselAvailability(date), nil
}

func (e *AvailabilityEngine) ForFold(ctx context.Context, date Date) ([]Available, error) {
	snap, err := LoadSnapshot(ctx, e.store)
	if err != nil {
		return nil, err
	}
	return snap.FoldAvailability(date), nil
}

func (e *AvailabilityEngine) ForDelivery(ctx context.Context, date Date) ([]TowelAvailability, error) {
	snap, err := LoadSnapshot(ctx, e.store)
	if err != nil {
		return nil, err
	}
	return snap.DeliveryAvailability(date), nil
}
