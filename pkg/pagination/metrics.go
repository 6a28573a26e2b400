package pagination

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/Sternrassler/catalog-client/pkg/client"
)

// Fetch kinds.
const (
	kindInitial      = "initial"
	kindForeground   = "foreground"
	kindRevalidation = "revalidation"
)

// Session outcomes.
const (
	outcomeStarted   = "started"
	outcomeJoined    = "joined"
	outcomePreempted = "preempted"
	outcomeCompleted = "completed"
	outcomeCancelled = "cancelled"
	outcomeFailed    = "failed"
)

var (
	// pageFetchesTotal counts page fetches by kind and result
	pageFetchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_page_fetches_total",
		Help: "Total page fetches by kind (initial, foreground, revalidation) and result",
	}, []string{"kind", "result"})

	// revalidationSessionsTotal counts revalidation session transitions
	revalidationSessionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_revalidation_sessions_total",
		Help: "Revalidation sessions by outcome",
	}, []string{"outcome"})

	// pageDivergencesTotal counts cached pages found stale during revalidation
	pageDivergencesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "catalog_page_divergences_total",
		Help: "Cached pages that diverged from the upstream ordering",
	})

	// initialLoadsTotal counts initial loads by result
	initialLoadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_initial_loads_total",
		Help: "Initial page loads by result",
	}, []string{"result"})
)

// resultLabel maps a fetch error to a metrics label.
func resultLabel(err error) string {
	if err == nil {
		return "success"
	}
	return string(client.Classify(err))
}
