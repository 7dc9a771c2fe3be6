package dtqueue

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the prometheus instruments a Queue updates alongside
// its own counters, mirroring the shape of the gauges/counters the
// teacher's concurrency manager exports (e.g. Store.GetSlowLatchGauge)
// without pulling in the teacher's own pkg/util/metric registry
// wrapper — this module has no cluster-wide metrics server to
// register against, so instruments are plain prometheus collectors a
// caller can register with whatever registry it likes.
type Metrics struct {
	TasksGenerated    prometheus.Counter
	TasksDequeued     prometheus.Counter
	TasksCompleted    prometheus.Counter
	CacheLocks        prometheus.Counter
	CacheReleases     prometheus.Counter
	SubtreesSplit     prometheus.Counter
	SubtreesCompacted prometheus.Counter
	RemainingGlobal   prometheus.Gauge
}

// NewMetrics constructs a Metrics with a consistent "dtqueue_"
// namespace, unregistered — callers call Registerer.MustRegister
// themselves, the same separation of construction from registration
// used throughout prometheus/client_golang consumers.
func NewMetrics() *Metrics {
	mk := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dtqueue",
			Name:      name,
			Help:      help,
		})
	}
	return &Metrics{
		TasksGenerated:    mk("tasks_generated_total", "Tasks created by GenerateTasks."),
		TasksDequeued:     mk("tasks_dequeued_total", "Tasks handed out by DequeueAny/DequeueFrom."),
		TasksCompleted:    mk("tasks_completed_total", "Tasks retired via PushCompletedComputation."),
		CacheLocks:        mk("cache_locks_total", "LockCache calls issued to the transport."),
		CacheReleases:     mk("cache_releases_total", "Slot references released through ReleaseCache."),
		SubtreesSplit:     mk("subtrees_split_total", "Dynamic splits performed by RedistributeAmongCores."),
		SubtreesCompacted: mk("subtrees_compacted_total", "Subtrees evicted by compaction."),
		RemainingGlobal: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "dtqueue",
			Name:      "remaining_global_computation",
			Help:      "remainingGlobalComputation as of the last observation.",
		}),
	}
}

// Collectors returns every instrument in m, for bulk registration.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.TasksGenerated, m.TasksDequeued, m.TasksCompleted,
		m.CacheLocks, m.CacheReleases, m.SubtreesSplit, m.SubtreesCompacted,
		m.RemainingGlobal,
	}
}
