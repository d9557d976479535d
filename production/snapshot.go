package production

import "context"

// Snapshot is a point-in-time copy of every collection. Availability,
// validation and reports are pure functions over a snapshot; nothing is
// cached between calls.
type Snapshot struct {
	Workers    []Worker
	Places     []Place
	Overlock   []OverlockEntry
	Tassel     []TasselEntry
	Fold       []FoldEntry
	Deliveries []DeliveryEntry
}

// LoadSnapshot reads all collections from r.
func LoadSnapshot(ctx context.Context, r Reader) (*Snapshot, error) {
	var (
		s   Snapshot
		err error
	)
	if s.Workers, err = ListWorkers(ctx, r); err != nil {
		return nil, err
	}
	if s.Places, err = ListPlaces(ctx, r); err != nil {
		return nil, err
	}
	if s.Overlock, err = ListOverlock(ctx, r); err != nil {
		return nil, err
	}
	if s.Tassel, err = ListTassel(ctx, r); err != nil {
		return nil, err
	}
	if s.Fold, err = ListFold(ctx, r); err != nil {
		return nil, err
	}
	if s.Deliveries, err = ListDeliveries(ctx, r); err != nil {
		return nil, err
	}
	return &s, nil
}

func (s *Snapshot) Worker(id string) (Worker, bool) {
	for _, w := range s.Workers {
		if w.ID == id {
			return w, true
		}
	}
	return Worker{}, false
}

// WorkerName resolves id to a display name, "Unknown" when the worker is gone.
func (s *Snapshot) WorkerName(id string) string {
	if w, ok := s.Worker(id); ok {
		return w.Name
	}
	return UnknownWorker
}

func (s *Snapshot) Place(id string) (Place, bool) {
	for _, p := range s.Places {
		if p.ID == id {
			return p, true
		}
	}
	return Place{}, false
}

func (s *Snapshot) OverlockEntry(id string) (OverlockEntry, bool) {
	for _, e := range s.Overlock {
		if e.ID == id {
			return e, true
		}
	}
	return OverlockEntry{}, false
}

func (s *Snapshot) TasselEntry(id string) (TasselEntry, bool) {
	for _, e := range s.Tassel {
		if e.ID == id {
			return e, true
		}
	}
	return TasselEntry{}, false
}

// UnknownWorker is shown when a worker reference no longer resolves.
const UnknownWorker = "Unknown"
