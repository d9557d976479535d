package workflow

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/warp/towel-workflow/production"
)

const namespace = "towel"

// Metrics counts workflow writes. Label "kind" is the entity written
// (worker, place, overlock, tassel, fold, delivery).
type Metrics struct {
	Recorded *prometheus.CounterVec
	Rejected *prometheus.CounterVec
	Deleted  *prometheus.CounterVec
	Quantity *prometheus.CounterVec
}

// NewMetrics registers the workflow collectors on reg. A nil reg leaves them
// unregistered, which is what tests want.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Recorded: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_added_total",
			Help:      "Records accepted and stored, by kind.",
		}, []string{"kind"}),
		Rejected: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_rejected_total",
			Help:      "Writes refused, by kind and reason.",
		}, []string{"kind", "reason"}),
		Deleted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_removed_total",
			Help:      "Records removed, by collection.",
		}, []string{"collection"}),
		Quantity: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "towels_recorded_total",
			Help:      "Towel quantity recorded, by stage.",
		}, []string{"stage"}),
	}
}

// Reason classifies err for the rejected counter and for logs.
func Reason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, production.ErrValidation):
		return "validation"
	case errors.Is(err, production.ErrNotFound):
		return "not_found"
	case errors.Is(err, production.ErrDuplicateID):
		return "duplicate"
	case errors.Is(err, production.ErrInsufficientAvailability):
		return "insufficient"
	case errors.Is(err, production.ErrStoreFailure):
		return "store"
	}
	return "internal"
}
