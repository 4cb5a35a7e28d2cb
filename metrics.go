package viscull

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	stateLabel = "state"
)

var (
	nodeStates = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "viscull_node_states_total",
		Help: "The number of node visits per traversal state.",
	}, []string{stateLabel})

	queriesIssued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "viscull_queries_issued_total",
		Help: "The total number of occlusion queries issued.",
	})

	queryAllocationFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "viscull_query_allocation_failures_total",
		Help: "The number of occlusion query allocations the device rejected.",
	})

	liveQueries = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "viscull_live_queries",
		Help: "The number of occlusion query handles currently held.",
	})

	visibleLists = promauto.NewCounter(prometheus.CounterOpts{
		Name: "viscull_visible_lists_total",
		Help: "The number of node mesh lists handed to listeners.",
	})
)

// Resolved once, node visits are on the hot path.
var nodeStateCounters [numTraversalStates]prometheus.Counter

func init() {
	for s := traversalState(0); s < numTraversalStates; s++ {
		nodeStateCounters[s] = nodeStates.With(prometheus.Labels{stateLabel: s.String()})
	}
}

func instrumentNodeState(s traversalState) {
	nodeStateCounters[s].Inc()
}

func instrumentQueryIssued() {
	queriesIssued.Inc()
}

func instrumentQueryAllocationFailure() {
	queryAllocationFailures.Inc()
}

func instrumentQueriesAllocated(n int) {
	liveQueries.Add(float64(n))
}

func instrumentQueriesFreed(n int) {
	liveQueries.Sub(float64(n))
}

func instrumentVisibleList() {
	visibleLists.Inc()
}
