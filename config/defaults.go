package config

import "time"

// DefaultConfig returns the full default configuration.
func DefaultConfig() *Config {
	return &Config{
		Agent:         DefaultAgentConfig(),
		Memory:        DefaultMemoryConfig(),
		Reflection:    DefaultReflectionConfig(),
		Consolidation: DefaultConsolidationConfig(),
		Persistence:   DefaultPersistenceConfig(),
		Log:           DefaultLogConfig(),
		Metrics:       DefaultMetricsConfig(),
		Telemetry:     DefaultTelemetryConfig(),
	}
}

// DefaultAgentConfig returns the default agent identity and cycle bounds.
func DefaultAgentConfig() AgentConfig {
	return AgentConfig{
		Name:           "mindflow-agent",
		CycleTimeout:   30 * time.Second,
		ResponderRPS:   0, // unlimited
		ResponderBurst: 1,
	}
}

// DefaultMemoryConfig returns the default memory settings.
func DefaultMemoryConfig() MemoryConfig {
	return MemoryConfig{
		WorkingCapacity: 16,
		EmbeddingDim:    16,
		DecayLambda:     0.01, // per hour of inactivity
		RecallWeights: RecallWeights{
			Alpha: 0.5,
			Beta:  0.3,
			Gamma: 0.2,
		},
		RecencyHalfLife:    24 * time.Hour,
		ReinforcementBoost: 0.05,
		RecallK:            5,
	}
}

// DefaultReflectionConfig returns the default reflection bounds.
func DefaultReflectionConfig() ReflectionConfig {
	return ReflectionConfig{
		MaxIterations:       5,
		ConfidenceThreshold: 0.75,
		ActivationDepth:     2,
	}
}

// DefaultConsolidationConfig returns the default background schedule.
func DefaultConsolidationConfig() ConsolidationConfig {
	return ConsolidationConfig{
		Enabled:           true,
		Interval:          5 * time.Minute,
		Opportunistic:     true,
		ClusterSimilarity: 0.65,
		ClusterMinSize:    2,
		ImportanceFloor:   0.05,
		MaxAge:            30 * 24 * time.Hour,
		LearningRate:      0.1,
	}
}

// DefaultPersistenceConfig returns the default snapshot backend (in-memory).
func DefaultPersistenceConfig() PersistenceConfig {
	return PersistenceConfig{
		Type: "memory",
		Dir:  "./snapshots",
		Redis: RedisConfig{
			Addr:      "localhost:6379",
			DB:        0,
			KeyPrefix: "mindflow:",
		},
		SQL: SQLConfig{
			Driver: "sqlite",
			DSN:    "mindflow.db",
		},
	}
}

// DefaultLogConfig returns the default logging settings.
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:       "info",
		Format:      "json",
		OutputPaths: []string{"stdout"},
	}
}

// DefaultMetricsConfig returns the default metrics settings.
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Enabled:   true,
		Namespace: "mindflow",
	}
}

// DefaultTelemetryConfig returns the default telemetry settings (disabled).
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:      false,
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "mindflow",
		SampleRate:   1.0,
	}
}
