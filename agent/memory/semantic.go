package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/mindflow/types"
)

// GraphConfig tunes spreading activation over the concept graph.
type GraphConfig struct {
	// DecayFactor scales activation per hop and must stay below 1 so
	// traversal terminates. Out-of-range values fall back to 0.7.
	DecayFactor float64
	// ActivationThreshold drops results activated below it.
	ActivationThreshold float64
	// MaxResults caps the number of concepts a recall returns.
	MaxResults int

	// Now is used for testing. Defaults to time.Now.
	Now func() time.Time
}

func (c GraphConfig) withDefaults() GraphConfig {
	if c.DecayFactor <= 0 || c.DecayFactor >= 1 {
		c.DecayFactor = 0.7
	}
	if c.ActivationThreshold <= 0 {
		c.ActivationThreshold = 0.3
	}
	if c.MaxResults <= 0 {
		c.MaxResults = 50
	}
	return c
}

// ActivatedConcept is a spreading-activation hit: a concept reachable from
// the seed, its residual activation and the hop distance at which that
// activation was reached.
type ActivatedConcept struct {
	Label      string
	Activation float64
	Depth      int
}

// SemanticGraph is an undirected weighted concept graph. Concepts and the
// edges between them are strengthened each time they co-occur in a
// consolidation window; recall spreads activation outward from a seed
// concept, decaying per hop and along weak edges.
//
// All methods are safe for concurrent use.
type SemanticGraph struct {
	mu    sync.RWMutex
	cfg   GraphConfig
	nodes map[string]*types.ConceptNode
	edges map[string]*types.ConceptEdge
	// adjacency mirrors edges for traversal, keyed both directions.
	adjacency map[string]map[string]float64
	logger    *zap.Logger
	now       func() time.Time
}

// NewSemanticGraph creates an empty graph. A nil logger disables logging.
func NewSemanticGraph(cfg GraphConfig, logger *zap.Logger) *SemanticGraph {
	if logger == nil {
		logger = zap.NewNop()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &SemanticGraph{
		cfg:       cfg.withDefaults(),
		nodes:     make(map[string]*types.ConceptNode),
		edges:     make(map[string]*types.ConceptEdge),
		adjacency: make(map[string]map[string]float64),
		logger:    logger.With(zap.String("component", "semantic_graph")),
		now:       now,
	}
}

// Reinforce strengthens every listed concept and every pairwise edge
// between them by strength. Unknown concepts and edges are created.
// Duplicate and empty labels are ignored.
func (g *SemanticGraph) Reinforce(ctx context.Context, concepts []string, strength float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strength <= 0 {
		return nil
	}

	labels := dedupeLabels(concepts)
	if len(labels) == 0 {
		return nil
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	for _, label := range labels {
		node, ok := g.nodes[label]
		if !ok {
			node = &types.ConceptNode{Label: label, FirstSeen: now}
			g.nodes[label] = node
		}
		node.Weight += strength
		node.TouchCount++
		node.LastReinforced = now
	}
	for i := 0; i < len(labels); i++ {
		for j := i + 1; j < len(labels); j++ {
			g.reinforceEdge(labels[i], labels[j], strength, now)
		}
	}

	g.logger.Debug("reinforced concepts",
		zap.Strings("concepts", labels),
		zap.Float64("strength", strength))
	return nil
}

func (g *SemanticGraph) reinforceEdge(a, b string, strength float64, now time.Time) {
	if a > b {
		a, b = b, a
	}
	key := a + "|" + b
	edge, ok := g.edges[key]
	if !ok {
		edge = &types.ConceptEdge{A: a, B: b}
		g.edges[key] = edge
	}
	edge.Weight += strength
	edge.LastReinforced = now

	if g.adjacency[a] == nil {
		g.adjacency[a] = make(map[string]float64)
	}
	if g.adjacency[b] == nil {
		g.adjacency[b] = make(map[string]float64)
	}
	g.adjacency[a][b] = edge.Weight
	g.adjacency[b][a] = edge.Weight
}

// RecallRelated spreads activation outward from concept for at most depth
// hops. Each hop scales the parent's activation by the decay factor and
// by the edge's weight relative to the strongest edge at that node, and
// each reached concept keeps its best activation across paths. Results
// below the activation threshold are dropped; the rest are ordered by
// activation, strongest first. An unknown seed yields no results.
func (g *SemanticGraph) RecallRelated(ctx context.Context, concept string, depth int) ([]ActivatedConcept, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if depth <= 0 {
		return nil, nil
	}

	g.mu.RLock()
	defer g.mu.RUnlock()

	if _, ok := g.nodes[concept]; !ok {
		return nil, nil
	}

	type frontier struct {
		label      string
		activation float64
		depth      int
	}
	best := map[string]ActivatedConcept{
		concept: {Label: concept, Activation: 1, Depth: 0},
	}
	queue := []frontier{{label: concept, activation: 1, depth: 0}}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur.depth >= depth {
			continue
		}
		maxWeight := g.maxEdgeWeight(cur.label)
		if maxWeight == 0 {
			continue
		}
		for neighbor, weight := range g.adjacency[cur.label] {
			activation := cur.activation * g.cfg.DecayFactor * (weight / maxWeight)
			if prev, seen := best[neighbor]; seen && prev.Activation >= activation {
				continue
			}
			best[neighbor] = ActivatedConcept{
				Label:      neighbor,
				Activation: activation,
				Depth:      cur.depth + 1,
			}
			queue = append(queue, frontier{label: neighbor, activation: activation, depth: cur.depth + 1})
		}
	}

	out := make([]ActivatedConcept, 0, len(best))
	for label, hit := range best {
		if label == concept || hit.Activation < g.cfg.ActivationThreshold {
			continue
		}
		out = append(out, hit)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Activation != out[j].Activation {
			return out[i].Activation > out[j].Activation
		}
		return out[i].Label < out[j].Label
	})
	if len(out) > g.cfg.MaxResults {
		out = out[:g.cfg.MaxResults]
	}
	return out, nil
}

func (g *SemanticGraph) maxEdgeWeight(label string) float64 {
	var max float64
	for _, w := range g.adjacency[label] {
		if w > max {
			max = w
		}
	}
	return max
}

// Has reports whether the concept exists in the graph.
func (g *SemanticGraph) Has(label string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.nodes[label]
	return ok
}

// NodeCount reports the number of concept nodes.
func (g *SemanticGraph) NodeCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes)
}

// EdgeCount reports the number of concept edges.
func (g *SemanticGraph) EdgeCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.edges)
}

// Export returns the graph as a snapshot with nodes and edges in label
// order.
func (g *SemanticGraph) Export() types.GraphSnapshot {
	g.mu.RLock()
	defer g.mu.RUnlock()

	snap := types.GraphSnapshot{
		Nodes: make([]types.ConceptNode, 0, len(g.nodes)),
		Edges: make([]types.ConceptEdge, 0, len(g.edges)),
	}
	for _, node := range g.nodes {
		snap.Nodes = append(snap.Nodes, *node)
	}
	for _, edge := range g.edges {
		snap.Edges = append(snap.Edges, *edge)
	}
	sort.Slice(snap.Nodes, func(i, j int) bool { return snap.Nodes[i].Label < snap.Nodes[j].Label })
	sort.Slice(snap.Edges, func(i, j int) bool {
		if snap.Edges[i].A != snap.Edges[j].A {
			return snap.Edges[i].A < snap.Edges[j].A
		}
		return snap.Edges[i].B < snap.Edges[j].B
	})
	return snap
}

// Restore replaces the graph's contents with the snapshot.
func (g *SemanticGraph) Restore(snap types.GraphSnapshot) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.nodes = make(map[string]*types.ConceptNode, len(snap.Nodes))
	g.edges = make(map[string]*types.ConceptEdge, len(snap.Edges))
	g.adjacency = make(map[string]map[string]float64)
	for _, node := range snap.Nodes {
		n := node
		g.nodes[n.Label] = &n
	}
	for _, edge := range snap.Edges {
		e := edge
		if e.A > e.B {
			e.A, e.B = e.B, e.A
		}
		g.edges[e.A+"|"+e.B] = &e
		if g.adjacency[e.A] == nil {
			g.adjacency[e.A] = make(map[string]float64)
		}
		if g.adjacency[e.B] == nil {
			g.adjacency[e.B] = make(map[string]float64)
		}
		g.adjacency[e.A][e.B] = e.Weight
		g.adjacency[e.B][e.A] = e.Weight
	}
}

func dedupeLabels(labels []string) []string {
	seen := make(map[string]struct{}, len(labels))
	out := make([]string, 0, len(labels))
	for _, label := range labels {
		if label == "" {
			continue
		}
		if _, ok := seen[label]; ok {
			continue
		}
		seen[label] = struct{}{}
		out = append(out, label)
	}
	return out
}
