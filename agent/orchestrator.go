package agent

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/BaSui01/mindflow/agent/memory"
	"github.com/BaSui01/mindflow/agent/persistence"
	"github.com/BaSui01/mindflow/config"
	"github.com/BaSui01/mindflow/internal/metrics"
	"github.com/BaSui01/mindflow/internal/telemetry"
	"github.com/BaSui01/mindflow/types"
)

const (
	// gaugeRefreshInterval paces the background memory-gauge refresh.
	gaugeRefreshInterval = 30 * time.Second
	// historyLimit bounds the recent-chain ring kept for introspection.
	historyLimit = 16
)

// CycleResult is the outcome of one foreground cognitive cycle.
type CycleResult struct {
	// Response is the generated reply. When the responder failed or the
	// cycle was cancelled it degrades to the chain's final thought.
	Response string
	// Chain is the reflection chain the cycle produced.
	Chain *types.ThoughtChain
	// RecordID identifies the stored interaction record; empty when the
	// store rejected it.
	RecordID string
	Duration time.Duration
}

// ChainSummary is the introspection digest of one completed chain.
type ChainSummary struct {
	SessionID   string         `json:"session_id"`
	Tag         types.ChainTag `json:"tag"`
	Confidence  float64        `json:"confidence"`
	Iterations  int            `json:"iterations"`
	Thoughts    int            `json:"thoughts"`
	CompletedAt time.Time      `json:"completed_at"`
}

// Introspection is the agent's self-report: who it is, how it currently
// leans, what its memory holds and how its recent sessions went.
type Introspection struct {
	Agent        string            `json:"agent"`
	Personality  string            `json:"personality"`
	Traits       types.TraitVector `json:"traits"`
	Stats        types.MemoryStats `json:"stats"`
	RecentChains []ChainSummary    `json:"recent_chains"`
}

// OrchestratorDeps are the orchestrator's collaborators. Memory,
// Perceiver and Responder are required.
type OrchestratorDeps struct {
	Memory    *memory.System
	Perceiver Perceiver
	Responder Responder
	// Snapshots persists state across restarts; nil disables persistence.
	Snapshots persistence.SnapshotStore
	// Metrics records cycle instrumentation; nil disables it.
	Metrics *metrics.Collector
	// Logger defaults to a nop logger when nil.
	Logger *zap.Logger

	// Now is used for testing. Defaults to time.Now.
	Now func() time.Time
}

// Orchestrator drives the foreground cognitive cycle and owns the
// background consolidation lifecycle. Cycles are strictly serialized
// through a weighted semaphore of one: a second concurrent Process
// blocks until the first finishes or its context expires. Every cycle
// runs under a deadline; callers without one get Config.Agent.CycleTimeout.
type Orchestrator struct {
	cfg       config.Config
	mem       *memory.System
	engine    *ReflectionEngine
	consol    *memory.Consolidator
	perceiver Perceiver
	responder Responder
	snapshots persistence.SnapshotStore
	metrics   *metrics.Collector
	limiter   *rate.Limiter
	sessions  *semaphore.Weighted
	tracer    trace.Tracer
	logger    *zap.Logger
	now       func() time.Time

	mu               sync.Mutex
	started          bool
	closed           bool
	history          []ChainSummary
	cancelBackground context.CancelFunc
	group            *errgroup.Group
}

// NewOrchestrator assembles an orchestrator from cfg and its
// collaborators. The reflection engine and the consolidator are built
// here so the whole cycle shares one clock and one logger.
func NewOrchestrator(cfg config.Config, deps OrchestratorDeps) (*Orchestrator, error) {
	if deps.Memory == nil {
		return nil, types.NewError(types.ErrCodeInvalidConfig, "orchestrator requires a memory system")
	}
	if deps.Perceiver == nil {
		return nil, types.NewError(types.ErrCodeInvalidConfig, "orchestrator requires a perceiver")
	}
	if deps.Responder == nil {
		return nil, types.NewError(types.ErrCodeInvalidConfig, "orchestrator requires a responder")
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}

	engine := NewReflectionEngine(deps.Memory, ReflectionEngineConfig{
		MaxIterations:       cfg.Reflection.MaxIterations,
		ConfidenceThreshold: cfg.Reflection.ConfidenceThreshold,
		ActivationDepth:     cfg.Reflection.ActivationDepth,
		RecallK:             cfg.Memory.RecallK,
		Now:                 now,
	}, logger)
	engine.SetMetrics(deps.Metrics)

	consol := memory.NewConsolidator(deps.Memory, memory.ConsolidatorConfig{
		Interval:          cfg.Consolidation.Interval,
		ClusterSimilarity: cfg.Consolidation.ClusterSimilarity,
		ClusterMinSize:    cfg.Consolidation.ClusterMinSize,
		ImportanceFloor:   cfg.Consolidation.ImportanceFloor,
		MaxAge:            cfg.Consolidation.MaxAge,
		LearningRate:      cfg.Consolidation.LearningRate,
		Now:               now,
	}, deps.Snapshots, logger)

	var limiter *rate.Limiter
	if cfg.Agent.ResponderRPS > 0 {
		burst := cfg.Agent.ResponderBurst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.Agent.ResponderRPS), burst)
	}

	o := &Orchestrator{
		cfg:       cfg,
		mem:       deps.Memory,
		engine:    engine,
		consol:    consol,
		perceiver: deps.Perceiver,
		responder: deps.Responder,
		snapshots: deps.Snapshots,
		metrics:   deps.Metrics,
		limiter:   limiter,
		sessions:  semaphore.NewWeighted(1),
		tracer:    telemetry.Tracer(),
		logger:    logger.With(zap.String("component", "orchestrator"), zap.String("agent", cfg.Agent.Name)),
		now:       now,
	}
	consol.OnTick(o.onTick)
	return o, nil
}

// Start restores the latest snapshot, launches the background
// consolidation loop and the gauge refresh. It fails if already started.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return types.NewError(types.ErrCodeAgentClosed, "agent is closed")
	}
	if o.started {
		return fmt.Errorf("agent already started")
	}

	if o.snapshots != nil {
		snap, err := o.snapshots.Load(ctx)
		switch {
		case errors.Is(err, persistence.ErrNoSnapshot):
			o.logger.Info("no snapshot found, starting fresh")
		case err != nil:
			o.logger.Warn("snapshot load failed, starting fresh", zap.Error(err))
		default:
			o.mem.RestoreState(snap)
		}
	}

	bctx, cancel := context.WithCancel(context.Background())
	group, gctx := errgroup.WithContext(bctx)

	if o.cfg.Consolidation.Enabled {
		if err := o.consol.Start(gctx); err != nil {
			cancel()
			return err
		}
	}
	group.Go(func() error {
		o.gaugeLoop(gctx)
		return nil
	})

	o.cancelBackground = cancel
	o.group = group
	o.started = true

	o.logger.Info("agent started",
		zap.Bool("consolidation", o.cfg.Consolidation.Enabled),
		zap.Bool("persistence", o.snapshots != nil))
	return nil
}

// Close stops background work, waits out any in-flight cycle and saves
// a final snapshot. Calling Close again returns nil.
func (o *Orchestrator) Close(ctx context.Context) error {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return nil
	}
	o.closed = true
	started := o.started
	o.mu.Unlock()

	var errs []error

	if started {
		if o.consol.Running() {
			if err := o.consol.Stop(); err != nil {
				errs = append(errs, err)
			}
		}
		o.cancelBackground()
		if err := o.group.Wait(); err != nil {
			errs = append(errs, err)
		}
	}

	// Wait for the in-flight cycle so the final snapshot includes it.
	if err := o.sessions.Acquire(ctx, 1); err == nil {
		defer o.sessions.Release(1)
	}

	if o.snapshots != nil {
		snap := o.mem.ExportState()
		if err := o.snapshots.Save(ctx, snap); err != nil {
			errs = append(errs, types.NewError(types.ErrCodePersistence, "final snapshot save failed").WithCause(err))
		} else {
			o.logger.Info("final snapshot saved",
				zap.String("snapshot_id", snap.ID),
				zap.Int("episodic_records", len(snap.Episodic)))
		}
	}

	o.logger.Info("agent closed")
	return errors.Join(errs...)
}

// Process runs one cognitive cycle over raw input: perceive, admit,
// reflect, respond, store. A perception failure is the only error that
// fails the whole cycle; responder failures degrade the response and
// cancellation mid-reflection still commits the memory write.
func (o *Orchestrator) Process(ctx context.Context, input string) (*CycleResult, error) {
	o.mu.Lock()
	closed := o.closed
	o.mu.Unlock()
	if closed {
		return nil, types.NewError(types.ErrCodeAgentClosed, "agent is closed")
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.cfg.Agent.CycleTimeout)
		defer cancel()
	}

	if err := o.sessions.Acquire(ctx, 1); err != nil {
		return nil, types.NewError(types.ErrCodeReflectionTimeout, "gave up waiting for the active session").
			WithCause(err).
			WithRetryable(true)
	}
	defer o.sessions.Release(1)

	start := o.now()
	ctx, span := o.tracer.Start(ctx, "mindflow.cycle",
		trace.WithAttributes(attribute.String("agent.name", o.cfg.Agent.Name)))
	defer span.End()

	result, err := o.runCycle(ctx, span, input)
	duration := o.now().Sub(start)

	outcome := "completed"
	switch {
	case result == nil:
		outcome = "failed"
	case err != nil:
		outcome = "degraded"
	case result.Chain.Tag == types.TagAborted:
		outcome = "aborted"
	}
	if o.metrics != nil {
		o.metrics.RecordCycle(outcome, duration)
	}
	span.SetAttributes(attribute.String("cycle.outcome", outcome))
	if err != nil {
		span.SetAttributes(attribute.String("error.code", string(types.GetErrorCode(err))))
	}

	if result == nil {
		o.logger.Warn("cycle failed", zap.Error(err), zap.Duration("duration", duration))
		return nil, err
	}

	result.Duration = duration
	o.remember(result.Chain)
	o.logger.Info("cycle finished",
		zap.String("session_id", result.Chain.SessionID),
		zap.String("outcome", outcome),
		zap.String("tag", string(result.Chain.Tag)),
		zap.Int("iterations", result.Chain.Iterations),
		zap.Float64("confidence", result.Chain.Confidence),
		zap.String("record_id", result.RecordID),
		zap.Duration("duration", duration))
	return result, err
}

func (o *Orchestrator) runCycle(ctx context.Context, span trace.Span, input string) (*CycleResult, error) {
	phaseStart := o.now()
	percept, err := o.perceiver.Perceive(ctx, input)
	if err != nil {
		if !types.IsErrorCode(err, types.ErrCodePerception) {
			err = types.NewError(types.ErrCodePerception, "perceiving stimulus failed").WithCause(err)
		}
		return nil, err
	}
	if percept == nil || percept.Content == "" {
		return nil, types.NewError(types.ErrCodePerception, "perceiver returned an empty percept")
	}
	o.observePhase(span, "perceiving", phaseStart)

	o.mem.Working().Admit(types.ContextItem{
		Kind:      types.ContextPercept,
		Content:   percept.Content,
		Valence:   percept.Valence,
		Timestamp: o.now(),
	})
	window := o.mem.Working().Snapshot()

	phaseStart = o.now()
	chain, err := o.engine.Reflect(ctx, percept, window)
	if err != nil {
		return nil, err
	}
	o.observePhase(span, "reflecting", phaseStart)
	if o.metrics != nil {
		o.metrics.RecordReflection(chain.Iterations, chain.Confidence)
	}

	phaseStart = o.now()
	response, respondErr := o.respond(ctx, chain, window)
	o.observePhase(span, "responding", phaseStart)

	o.mem.Working().Admit(types.ContextItem{
		Kind:      types.ContextThought,
		Content:   response,
		Valence:   chain.Final().Valence,
		Timestamp: o.now(),
	})

	phaseStart = o.now()
	recordID := o.storeInteraction(ctx, percept, chain, response)
	o.observePhase(span, "storing", phaseStart)

	if o.cfg.Consolidation.Opportunistic && o.consol.Running() {
		o.consol.Nudge()
	}

	span.SetAttributes(
		attribute.String("cycle.tag", string(chain.Tag)),
		attribute.Int("cycle.iterations", chain.Iterations),
		attribute.Float64("cycle.confidence", chain.Confidence))

	return &CycleResult{
		Response: response,
		Chain:    chain,
		RecordID: recordID,
	}, respondErr
}

// respond asks the external responder for a reply, rate limited when
// configured. A cancelled cycle or a limiter wait cut short degrades to
// the final thought without an error; a responder failure degrades and
// surfaces the failure.
func (o *Orchestrator) respond(ctx context.Context, chain *types.ThoughtChain, window []types.ContextItem) (string, error) {
	fallback := chain.Final().Content
	if ctx.Err() != nil {
		return fallback, nil
	}
	if o.limiter != nil {
		if err := o.limiter.Wait(ctx); err != nil {
			o.logger.Warn("responder rate wait cut short", zap.Error(err))
			return fallback, nil
		}
	}
	response, err := o.responder.Generate(ctx, chain, window)
	if err != nil {
		o.logger.Warn("response generation failed, degrading to final thought", zap.Error(err))
		return fallback, types.NewError(types.ErrCodeResponder, "response generation failed").
			WithCause(err).
			WithRetryable(true)
	}
	return response, nil
}

// storeInteraction commits the cycle's episodic record. It runs on a
// context detached from the cycle's cancellation so an aborted session
// still remembers what happened. A rejected record is logged and the
// cycle continues with an empty record ID.
func (o *Orchestrator) storeInteraction(ctx context.Context, percept *types.Percept, chain *types.ThoughtChain, response string) string {
	storeCtx := context.WithoutCancel(ctx)

	valence := clampf(0.5*percept.Valence+0.5*chain.MeanValence(), -1, 1)
	rec := types.MemoryRecord{
		Content:    percept.Content + " => " + response,
		Embedding:  percept.Embedding,
		Importance: interactionImportance(percept.Content, chain, valence),
		Valence:    valence,
	}

	id, err := o.mem.Store(storeCtx, rec)
	if err != nil {
		o.logger.Warn("interaction record rejected", zap.Error(err))
		return ""
	}
	if o.metrics != nil {
		o.metrics.RecordStore()
		o.metrics.UpdateMemoryGauges(o.mem.Stats())
	}
	return id
}

// ConsolidateNow runs one consolidation tick synchronously, regardless
// of the background schedule.
func (o *Orchestrator) ConsolidateNow(ctx context.Context) error {
	return o.consol.TickNow(ctx)
}

// Introspect reports the agent's current self-state: personality
// summary, memory statistics and recent chain digests.
func (o *Orchestrator) Introspect(ctx context.Context) (*Introspection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return nil, types.NewError(types.ErrCodeAgentClosed, "agent is closed")
	}
	recent := append([]ChainSummary(nil), o.history...)
	o.mu.Unlock()

	p := o.mem.Personality()
	return &Introspection{
		Agent:        o.cfg.Agent.Name,
		Personality:  p.Describe(),
		Traits:       p.Traits(),
		Stats:        o.mem.Stats(),
		RecentChains: recent,
	}, nil
}

func (o *Orchestrator) observePhase(span trace.Span, phase string, start time.Time) {
	d := o.now().Sub(start)
	if o.metrics != nil {
		o.metrics.RecordPhase(phase, d)
	}
	span.AddEvent(phase, trace.WithAttributes(
		attribute.Float64("duration_ms", float64(d.Milliseconds()))))
}

func (o *Orchestrator) onTick(r memory.TickReport) {
	if o.metrics == nil {
		return
	}
	status := "ok"
	if r.Err != nil {
		status = "failed"
	}
	o.metrics.RecordConsolidation(status, r.Duration, r.Decayed, r.Pruned, r.Clusters)
	if o.snapshots != nil && r.Err == nil {
		ck := "ok"
		if r.CheckpointErr != nil {
			ck = "failed"
		}
		o.metrics.RecordCheckpoint(ck)
	}
	o.metrics.UpdateMemoryGauges(o.mem.Stats())
}

func (o *Orchestrator) remember(chain *types.ThoughtChain) {
	s := ChainSummary{
		SessionID:   chain.SessionID,
		Tag:         chain.Tag,
		Confidence:  chain.Confidence,
		Iterations:  chain.Iterations,
		Thoughts:    len(chain.Thoughts),
		CompletedAt: chain.CompletedAt,
	}
	o.mu.Lock()
	o.history = append(o.history, s)
	if n := len(o.history); n > historyLimit {
		o.history = o.history[n-historyLimit:]
	}
	o.mu.Unlock()
}

func (o *Orchestrator) gaugeLoop(ctx context.Context) {
	if o.metrics == nil {
		return
	}
	ticker := time.NewTicker(gaugeRefreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			o.metrics.UpdateMemoryGauges(o.mem.Stats())
		case <-ctx.Done():
			return
		}
	}
}

// interactionImportance blends content complexity, peak chain confidence
// and emotional charge, capped at 1.
func interactionImportance(content string, chain *types.ThoughtChain, valence float64) float64 {
	words := len(strings.Fields(content))
	complexity := clampf(float64(words)/40.0, 0, 1)
	return clampf(0.3*complexity+0.4*chain.MaxConfidence()+0.3*math.Abs(valence), 0, 1)
}
