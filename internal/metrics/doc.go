// Package metrics registers and records the Prometheus metrics of the
// agent: cognitive cycle counts and latencies, memory operation
// volumes, reflection depth and confidence, consolidation activity and
// checkpoint outcomes. All metrics share one configurable namespace.
//
// This package is internal and should not be imported by external
// projects.
package metrics
