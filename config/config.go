// Package config provides the unified configuration surface for mindflow.
//
// Load order: defaults → YAML file → environment overrides. Environment
// variables use the MINDFLOW prefix and follow the nesting of the structs,
// e.g. MINDFLOW_REFLECTION_MAX_ITERATIONS.
package config

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Config is the complete agent configuration.
type Config struct {
	// Agent carries identity and foreground-cycle settings.
	Agent AgentConfig `yaml:"agent" env:"AGENT"`

	// Memory configures the working context and episodic store.
	Memory MemoryConfig `yaml:"memory" env:"MEMORY"`

	// Reflection bounds the internal reasoning loop.
	Reflection ReflectionConfig `yaml:"reflection" env:"REFLECTION"`

	// Consolidation schedules the background maintenance task.
	Consolidation ConsolidationConfig `yaml:"consolidation" env:"CONSOLIDATION"`

	// Persistence selects and configures the snapshot backend.
	Persistence PersistenceConfig `yaml:"persistence" env:"PERSISTENCE"`

	// Log configures the zap logger.
	Log LogConfig `yaml:"log" env:"LOG"`

	// Metrics configures the Prometheus collector.
	Metrics MetricsConfig `yaml:"metrics" env:"METRICS"`

	// Telemetry configures OpenTelemetry export.
	Telemetry TelemetryConfig `yaml:"telemetry" env:"TELEMETRY"`
}

// AgentConfig identifies the agent instance and bounds its cycles.
type AgentConfig struct {
	// Name labels logs, spans and snapshots for this instance.
	Name string `yaml:"name" env:"NAME"`
	// CycleTimeout is the deadline applied to every foreground cycle whose
	// caller did not set one. Reflection aborts gracefully on expiry.
	CycleTimeout time.Duration `yaml:"cycle_timeout" env:"CYCLE_TIMEOUT"`
	// ResponderRPS rate-limits calls to the response-generation
	// collaborator. 0 disables the limiter.
	ResponderRPS float64 `yaml:"responder_rps" env:"RESPONDER_RPS"`
	// ResponderBurst is the limiter burst size when ResponderRPS > 0.
	ResponderBurst int `yaml:"responder_burst" env:"RESPONDER_BURST"`
}

// RecallWeights are the composite recall score coefficients. They must
// sum to 1.
type RecallWeights struct {
	// Alpha weighs embedding similarity.
	Alpha float64 `yaml:"alpha" env:"ALPHA"`
	// Beta weighs recency of last access.
	Beta float64 `yaml:"beta" env:"BETA"`
	// Gamma weighs current importance.
	Gamma float64 `yaml:"gamma" env:"GAMMA"`
}

// MemoryConfig configures the working context and episodic store.
type MemoryConfig struct {
	// WorkingCapacity is the working-context size C. Admitting beyond it
	// evicts the oldest entry.
	WorkingCapacity int `yaml:"working_capacity" env:"WORKING_CAPACITY"`
	// EmbeddingDim is the required embedding dimension; records with any
	// other dimension are rejected as invalid.
	EmbeddingDim int `yaml:"embedding_dim" env:"EMBEDDING_DIM"`
	// DecayLambda is the default per-hour importance decay constant for
	// new records, > 0.
	DecayLambda float64 `yaml:"decay_lambda" env:"DECAY_LAMBDA"`
	// RecallWeights are the composite score coefficients (sum to 1).
	RecallWeights RecallWeights `yaml:"recall_weights" env:"RECALL_WEIGHTS"`
	// RecencyHalfLife controls the recency term of the recall score: a
	// record untouched for one half-life scores 0.5 on recency.
	RecencyHalfLife time.Duration `yaml:"recency_half_life" env:"RECENCY_HALF_LIFE"`
	// ReinforcementBoost is the fixed importance increment a recall hit
	// applies, capped so importance never exceeds 1.
	ReinforcementBoost float64 `yaml:"reinforcement_boost" env:"REINFORCEMENT_BOOST"`
	// RecallK is the default number of records a recall returns.
	RecallK int `yaml:"recall_k" env:"RECALL_K"`
}

// ReflectionConfig bounds the internal reflection loop.
type ReflectionConfig struct {
	// MaxIterations caps the reflecting-phase iterations, ≥ 1. Hitting the
	// cap tags the chain low_confidence.
	MaxIterations int `yaml:"max_iterations" env:"MAX_ITERATIONS"`
	// ConfidenceThreshold ends the loop early once reached, in (0,1].
	ConfidenceThreshold float64 `yaml:"confidence_threshold" env:"CONFIDENCE_THRESHOLD"`
	// ActivationDepth bounds semantic spreading activation, ≥ 1.
	ActivationDepth int `yaml:"activation_depth" env:"ACTIVATION_DEPTH"`
}

// ConsolidationConfig schedules the background consolidation task.
type ConsolidationConfig struct {
	// Enabled toggles the background task entirely (background_enabled).
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// Interval between scheduled ticks, > 0.
	Interval time.Duration `yaml:"interval" env:"INTERVAL"`
	// Opportunistic also nudges a tick after each foreground cycle.
	Opportunistic bool `yaml:"opportunistic" env:"OPPORTUNISTIC"`
	// ClusterSimilarity is the minimum cosine similarity for two records
	// to join the same consolidation cluster.
	ClusterSimilarity float64 `yaml:"cluster_similarity" env:"CLUSTER_SIMILARITY"`
	// ClusterMinSize is the smallest cluster that updates the semantic
	// graph.
	ClusterMinSize int `yaml:"cluster_min_size" env:"CLUSTER_MIN_SIZE"`
	// ImportanceFloor and MaxAge gate pruning: a record is removed only
	// when importance < floor AND age > max_age.
	ImportanceFloor float64       `yaml:"importance_floor" env:"IMPORTANCE_FLOOR"`
	MaxAge          time.Duration `yaml:"max_age" env:"MAX_AGE"`
	// LearningRate is the EMA step η for personality updates.
	LearningRate float64 `yaml:"learning_rate" env:"LEARNING_RATE"`
}

// PersistenceConfig selects the snapshot backend.
type PersistenceConfig struct {
	// Type: memory, file, redis or sql.
	Type string `yaml:"type" env:"TYPE"`
	// Dir is the snapshot directory for the file backend.
	Dir string `yaml:"dir" env:"DIR"`
	// Redis configures the redis backend.
	Redis RedisConfig `yaml:"redis" env:"REDIS"`
	// SQL configures the sql backend.
	SQL SQLConfig `yaml:"sql" env:"SQL"`
}

// RedisConfig configures the redis snapshot backend.
type RedisConfig struct {
	Addr      string `yaml:"addr" env:"ADDR"`
	Password  string `yaml:"password" env:"PASSWORD"`
	DB        int    `yaml:"db" env:"DB"`
	KeyPrefix string `yaml:"key_prefix" env:"KEY_PREFIX"`
}

// SQLConfig configures the sql snapshot backend.
type SQLConfig struct {
	// Driver: sqlite or postgres.
	Driver string `yaml:"driver" env:"DRIVER"`
	// DSN is the driver-specific connection string; for sqlite a file path
	// or :memory:.
	DSN string `yaml:"dsn" env:"DSN"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	// Level: debug, info, warn, error.
	Level string `yaml:"level" env:"LEVEL"`
	// Format: json or console.
	Format string `yaml:"format" env:"FORMAT"`
	// OutputPaths, defaults to stdout.
	OutputPaths []string `yaml:"output_paths" env:"OUTPUT_PATHS"`
}

// MetricsConfig configures the Prometheus collector.
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled" env:"ENABLED"`
	Namespace string `yaml:"namespace" env:"NAMESPACE"`
}

// TelemetryConfig configures OpenTelemetry export.
type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled" env:"ENABLED"`
	OTLPEndpoint string  `yaml:"otlp_endpoint" env:"OTLP_ENDPOINT"`
	ServiceName  string  `yaml:"service_name" env:"SERVICE_NAME"`
	SampleRate   float64 `yaml:"sample_rate" env:"SAMPLE_RATE"`
}

// Validate checks cross-field constraints. It returns one error listing
// every violation rather than failing on the first.
func (c *Config) Validate() error {
	var errs []string

	if c.Memory.WorkingCapacity <= 0 {
		errs = append(errs, "memory.working_capacity must be positive")
	}
	if c.Memory.EmbeddingDim <= 0 {
		errs = append(errs, "memory.embedding_dim must be positive")
	}
	if c.Memory.DecayLambda <= 0 {
		errs = append(errs, "memory.decay_lambda must be positive")
	}
	w := c.Memory.RecallWeights
	if w.Alpha < 0 || w.Beta < 0 || w.Gamma < 0 {
		errs = append(errs, "memory.recall_weights must be non-negative")
	}
	if math.Abs(w.Alpha+w.Beta+w.Gamma-1.0) > 1e-6 {
		errs = append(errs, "memory.recall_weights must sum to 1")
	}
	if c.Reflection.MaxIterations < 1 {
		errs = append(errs, "reflection.max_iterations must be at least 1")
	}
	if c.Reflection.ConfidenceThreshold <= 0 || c.Reflection.ConfidenceThreshold > 1 {
		errs = append(errs, "reflection.confidence_threshold must be in (0,1]")
	}
	if c.Consolidation.Interval <= 0 {
		errs = append(errs, "consolidation.interval must be positive")
	}
	if c.Consolidation.LearningRate <= 0 || c.Consolidation.LearningRate > 1 {
		errs = append(errs, "consolidation.learning_rate must be in (0,1]")
	}
	if c.Agent.CycleTimeout <= 0 {
		errs = append(errs, "agent.cycle_timeout must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors: %s", strings.Join(errs, "; "))
	}
	return nil
}
