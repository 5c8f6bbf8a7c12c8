package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/BaSui01/mindflow/types"
)

// Collector registers and records the Prometheus metrics of the
// cognitive cycle: foreground cycles and their phases, memory
// operations, reflection sessions, consolidation ticks and snapshot
// checkpoints, plus gauges mirroring the current memory stats.
type Collector struct {
	cyclesTotal   *prometheus.CounterVec
	cycleDuration *prometheus.HistogramVec
	phaseDuration *prometheus.HistogramVec

	recallsTotal *prometheus.CounterVec
	recallHits   *prometheus.HistogramVec
	storesTotal  prometheus.Counter

	reflectionIterations prometheus.Histogram
	reflectionConfidence prometheus.Histogram

	consolidationTicks    *prometheus.CounterVec
	consolidationDuration prometheus.Histogram
	recordsDecayed        prometheus.Counter
	recordsPruned         prometheus.Counter
	clustersConsolidated  prometheus.Counter

	checkpointsTotal *prometheus.CounterVec

	memoryRecords  *prometheus.GaugeVec
	conceptNodes   prometheus.Gauge
	conceptEdges   prometheus.Gauge
	workingItems   prometheus.Gauge
	meanImportance prometheus.Gauge

	logger *zap.Logger
}

// NewCollector registers the metric set under namespace. A nil
// registerer uses the process-default registry; tests pass their own to
// keep runs isolated.
func NewCollector(namespace string, registerer prometheus.Registerer, logger *zap.Logger) *Collector {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	factory := promauto.With(registerer)

	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	c.cyclesTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_total",
			Help:      "Total number of cognitive cycles by outcome",
		},
		[]string{"outcome"},
	)

	c.cycleDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cycle_duration_seconds",
			Help:      "End-to-end cognitive cycle duration in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
		},
		[]string{"outcome"},
	)

	c.phaseDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "phase_duration_seconds",
			Help:      "Duration of individual cycle phases in seconds",
			Buckets:   []float64{0.0001, 0.001, 0.01, 0.1, 0.5, 1, 5, 10},
		},
		[]string{"phase"},
	)

	c.recallsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recalls_total",
			Help:      "Total number of memory recalls",
		},
		[]string{"mode"},
	)

	c.recallHits = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "recall_hits",
			Help:      "Number of results returned per recall",
			Buckets:   []float64{0, 1, 2, 5, 10, 20, 50},
		},
		[]string{"mode"},
	)

	c.storesTotal = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stores_total",
			Help:      "Total number of memory records stored by foreground cycles",
		},
	)

	c.reflectionIterations = factory.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "reflection_iterations",
			Help:      "Reflecting-phase iterations per session",
			Buckets:   []float64{1, 2, 3, 5, 8, 13, 21},
		},
	)

	c.reflectionConfidence = factory.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "reflection_confidence",
			Help:      "Final confidence of reflection sessions",
			Buckets:   prometheus.LinearBuckets(0, 0.1, 11),
		},
	)

	c.consolidationTicks = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "consolidation_ticks_total",
			Help:      "Total number of consolidation ticks by status",
		},
		[]string{"status"},
	)

	c.consolidationDuration = factory.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "consolidation_duration_seconds",
			Help:      "Consolidation tick duration in seconds",
			Buckets:   []float64{0.0001, 0.001, 0.01, 0.1, 0.5, 1, 5, 30},
		},
	)

	c.recordsDecayed = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_decayed_total",
			Help:      "Total number of records whose importance decay was applied",
		},
	)

	c.recordsPruned = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_pruned_total",
			Help:      "Total number of records removed by pruning",
		},
	)

	c.clustersConsolidated = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "clusters_consolidated_total",
			Help:      "Total number of clusters distilled into the semantic graph",
		},
	)

	c.checkpointsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkpoints_total",
			Help:      "Total number of snapshot checkpoints by status",
		},
		[]string{"status"},
	)

	c.memoryRecords = factory.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "memory_records",
			Help:      "Current number of durable memory records by kind",
		},
		[]string{"kind"},
	)

	c.conceptNodes = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "concept_nodes",
			Help:      "Current number of semantic graph nodes",
		},
	)

	c.conceptEdges = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "concept_edges",
			Help:      "Current number of semantic graph edges",
		},
	)

	c.workingItems = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "working_context_items",
			Help:      "Current number of working context entries",
		},
	)

	c.meanImportance = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "mean_importance",
			Help:      "Mean importance across durable memory records",
		},
	)

	logger.Info("metrics collector initialized", zap.String("namespace", namespace))

	return c
}

// RecordCycle records one finished cognitive cycle.
func (c *Collector) RecordCycle(outcome string, duration time.Duration) {
	c.cyclesTotal.WithLabelValues(outcome).Inc()
	c.cycleDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

// RecordPhase records the duration of one cycle phase.
func (c *Collector) RecordPhase(phase string, duration time.Duration) {
	c.phaseDuration.WithLabelValues(phase).Observe(duration.Seconds())
}

// RecordRecall records one recall and how many results it returned.
// Mode distinguishes similarity recall from associative recall.
func (c *Collector) RecordRecall(mode string, hits int) {
	c.recallsTotal.WithLabelValues(mode).Inc()
	c.recallHits.WithLabelValues(mode).Observe(float64(hits))
}

// RecordStore records one foreground memory write.
func (c *Collector) RecordStore() {
	c.storesTotal.Inc()
}

// RecordReflection records a finished reflection session.
func (c *Collector) RecordReflection(iterations int, confidence float64) {
	c.reflectionIterations.Observe(float64(iterations))
	c.reflectionConfidence.Observe(confidence)
}

// RecordConsolidation records one consolidation tick.
func (c *Collector) RecordConsolidation(status string, duration time.Duration, decayed, pruned, clusters int) {
	c.consolidationTicks.WithLabelValues(status).Inc()
	c.consolidationDuration.Observe(duration.Seconds())
	c.recordsDecayed.Add(float64(decayed))
	c.recordsPruned.Add(float64(pruned))
	c.clustersConsolidated.Add(float64(clusters))
}

// RecordCheckpoint records one snapshot checkpoint attempt outcome.
func (c *Collector) RecordCheckpoint(status string) {
	c.checkpointsTotal.WithLabelValues(status).Inc()
}

// UpdateMemoryGauges mirrors the current memory stats into the gauges.
func (c *Collector) UpdateMemoryGauges(stats types.MemoryStats) {
	c.memoryRecords.WithLabelValues(string(types.MemoryEpisodic)).Set(float64(stats.EpisodicCount))
	c.memoryRecords.WithLabelValues(string(types.MemorySemantic)).Set(float64(stats.SemanticCount))
	c.conceptNodes.Set(float64(stats.ConceptNodes))
	c.conceptEdges.Set(float64(stats.ConceptEdges))
	c.workingItems.Set(float64(stats.WorkingItems))
	c.meanImportance.Set(stats.MeanImportance)
}
