// Package mindflow assembles the cognitive agent: a bounded working
// context, an episodic store with importance decay, a semantic concept
// graph and a slowly drifting personality vector, driven by a serialized
// perceive -> recall -> reflect -> respond -> store cycle with background
// consolidation.
//
// Usage:
//
//	a, err := mindflow.New(
//		mindflow.WithPerceiver(myPerceiver),
//		mindflow.WithResponder(myResponder),
//	)
//	if err != nil {
//		// ...
//	}
//	if err := a.Start(ctx); err != nil {
//		// ...
//	}
//	defer a.Close(ctx)
//
//	result, err := a.Process(ctx, "the tide pulls the harbor boats")
//
// Perception and response generation live outside this module; New fails
// without both collaborators.
package mindflow

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/BaSui01/mindflow/agent"
	"github.com/BaSui01/mindflow/agent/memory"
	"github.com/BaSui01/mindflow/agent/persistence"
	"github.com/BaSui01/mindflow/config"
	"github.com/BaSui01/mindflow/internal/metrics"
	"github.com/BaSui01/mindflow/internal/telemetry"
	"github.com/BaSui01/mindflow/types"
)

type options struct {
	cfg        *config.Config
	configPath string
	perceiver  agent.Perceiver
	responder  agent.Responder
	snapshots  persistence.SnapshotStore
	logger     *zap.Logger
	registerer prometheus.Registerer
	now        func() time.Time
}

// Option configures the agent created by [New].
type Option func(*options)

// WithConfig supplies a complete configuration. It takes precedence over
// [WithConfigFile].
func WithConfig(cfg *config.Config) Option {
	return func(o *options) { o.cfg = cfg }
}

// WithConfigFile loads the configuration from a YAML file, with
// environment overrides applied on top.
func WithConfigFile(path string) Option {
	return func(o *options) { o.configPath = path }
}

// WithPerceiver sets the perception collaborator. Required.
func WithPerceiver(p agent.Perceiver) Option {
	return func(o *options) { o.perceiver = p }
}

// WithResponder sets the response-generation collaborator. Required.
func WithResponder(r agent.Responder) Option {
	return func(o *options) { o.responder = r }
}

// WithSnapshotStore overrides the snapshot backend the configuration
// would otherwise select. The caller keeps ownership and closes it.
func WithSnapshotStore(s persistence.SnapshotStore) Option {
	return func(o *options) { o.snapshots = s }
}

// WithLogger sets a custom zap logger instead of the one built from
// config.LogConfig.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithRegisterer sets the Prometheus registerer metrics register with.
// Defaults to prometheus.DefaultRegisterer.
func WithRegisterer(r prometheus.Registerer) Option {
	return func(o *options) { o.registerer = r }
}

// WithClock injects the time source. Used for testing.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// Agent is the assembled cognitive agent: one memory system, one cycle
// orchestrator and the observability around them.
type Agent struct {
	cfg       config.Config
	orch      *agent.Orchestrator
	mem       *memory.System
	snapshots persistence.SnapshotStore
	providers *telemetry.Providers
	logger    *zap.Logger

	ownsStore  bool
	ownsLogger bool
}

// New assembles an agent from the given options. Both a Perceiver and a
// Responder must be provided; everything else has defaults.
func New(opts ...Option) (*Agent, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	cfg := o.cfg
	if cfg == nil && o.configPath != "" {
		loaded, err := config.NewLoader().WithConfigPath(o.configPath).Load()
		if err != nil {
			return nil, types.NewError(types.ErrCodeInvalidConfig, "loading configuration failed").WithCause(err)
		}
		cfg = loaded
	}
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, types.NewError(types.ErrCodeInvalidConfig, "configuration rejected").WithCause(err)
	}

	if o.perceiver == nil {
		return nil, types.NewError(types.ErrCodeInvalidConfig, "a perceiver is required (WithPerceiver)")
	}
	if o.responder == nil {
		return nil, types.NewError(types.ErrCodeInvalidConfig, "a responder is required (WithResponder)")
	}

	logger := o.logger
	ownsLogger := false
	if logger == nil {
		logger = initLogger(cfg.Log)
		ownsLogger = true
	}

	providers, err := telemetry.Init(cfg.Telemetry, logger)
	if err != nil {
		logger.Warn("failed to initialize telemetry", zap.Error(err))
	}

	var collector *metrics.Collector
	if cfg.Metrics.Enabled {
		collector = metrics.NewCollector(cfg.Metrics.Namespace, o.registerer, logger)
	}

	mem := memory.NewSystem(memory.SystemConfig{
		WorkingCapacity: cfg.Memory.WorkingCapacity,
		Episodic: memory.EpisodicConfig{
			EmbeddingDim:       cfg.Memory.EmbeddingDim,
			Alpha:              cfg.Memory.RecallWeights.Alpha,
			Beta:               cfg.Memory.RecallWeights.Beta,
			Gamma:              cfg.Memory.RecallWeights.Gamma,
			RecencyHalfLife:    cfg.Memory.RecencyHalfLife,
			ReinforcementBoost: cfg.Memory.ReinforcementBoost,
			DefaultDecayRate:   cfg.Memory.DecayLambda,
			Now:                o.now,
		},
		Graph: memory.GraphConfig{Now: o.now},
		Now:   o.now,
	}, logger)

	snapshots := o.snapshots
	ownsStore := false
	if snapshots == nil {
		snapshots, err = persistence.NewSnapshotStore(snapshotStoreConfig(cfg.Persistence))
		if err != nil {
			return nil, types.NewError(types.ErrCodePersistence, "building snapshot store failed").WithCause(err)
		}
		ownsStore = true
	}

	orch, err := agent.NewOrchestrator(*cfg, agent.OrchestratorDeps{
		Memory:    mem,
		Perceiver: o.perceiver,
		Responder: o.responder,
		Snapshots: snapshots,
		Metrics:   collector,
		Logger:    logger,
		Now:       o.now,
	})
	if err != nil {
		return nil, err
	}

	return &Agent{
		cfg:        *cfg,
		orch:       orch,
		mem:        mem,
		snapshots:  snapshots,
		providers:  providers,
		logger:     logger,
		ownsStore:  ownsStore,
		ownsLogger: ownsLogger,
	}, nil
}

// Start restores persisted memory and launches background consolidation.
func (a *Agent) Start(ctx context.Context) error {
	return a.orch.Start(ctx)
}

// Process runs one cognitive cycle over raw input.
func (a *Agent) Process(ctx context.Context, input string) (*agent.CycleResult, error) {
	return a.orch.Process(ctx, input)
}

// Introspect reports the agent's personality, memory statistics and
// recent reflection chains.
func (a *Agent) Introspect(ctx context.Context) (*agent.Introspection, error) {
	return a.orch.Introspect(ctx)
}

// Consolidate runs one consolidation tick synchronously.
func (a *Agent) Consolidate(ctx context.Context) error {
	return a.orch.ConsolidateNow(ctx)
}

// MemoryStats reports current counts across the memory structures.
func (a *Agent) MemoryStats() types.MemoryStats {
	return a.mem.Stats()
}

// Close shuts the agent down: stops background work, saves the final
// snapshot and releases the stores and telemetry providers it owns.
func (a *Agent) Close(ctx context.Context) error {
	var errs []error

	if err := a.orch.Close(ctx); err != nil {
		errs = append(errs, err)
	}
	if a.ownsStore && a.snapshots != nil {
		if err := a.snapshots.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := a.providers.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	if a.ownsLogger {
		_ = a.logger.Sync()
	}
	return errors.Join(errs...)
}

func snapshotStoreConfig(cfg config.PersistenceConfig) persistence.StoreConfig {
	return persistence.StoreConfig{
		Type:    persistence.StoreType(cfg.Type),
		BaseDir: cfg.Dir,
		Redis: persistence.RedisStoreConfig{
			Addr:      cfg.Redis.Addr,
			Password:  cfg.Redis.Password,
			DB:        cfg.Redis.DB,
			KeyPrefix: cfg.Redis.KeyPrefix,
		},
		SQL: persistence.SQLStoreConfig{
			Driver: cfg.SQL.Driver,
			DSN:    cfg.SQL.DSN,
		},
		Retry: persistence.DefaultRetryConfig(),
	}
}

func initLogger(cfg config.LogConfig) *zap.Logger {
	var level zapcore.Level
	switch cfg.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "info":
		level = zapcore.InfoLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	var encoderConfig zapcore.EncoderConfig
	if cfg.Format == "console" {
		encoderConfig = zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		encoderConfig = zap.NewProductionEncoderConfig()
		encoderConfig.TimeKey = "timestamp"
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	outputs := cfg.OutputPaths
	if len(outputs) == 0 {
		outputs = []string{"stdout"}
	}

	zapConfig := zap.Config{
		Level:            zap.NewAtomicLevelAt(level),
		Development:      cfg.Format == "console",
		Encoding:         "json",
		EncoderConfig:    encoderConfig,
		OutputPaths:      outputs,
		ErrorOutputPaths: []string{"stderr"},
	}
	if cfg.Format == "console" {
		zapConfig.Encoding = "console"
	}

	logger, err := zapConfig.Build(
		zap.AddCaller(),
		zap.AddStacktrace(zapcore.ErrorLevel),
	)
	if err != nil {
		logger, _ = zap.NewProduction()
	}
	return logger
}
