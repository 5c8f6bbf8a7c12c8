package memory

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/BaSui01/mindflow/types"
)

// PersonalityState holds the agent's trait vector. Traits drift only
// through Apply, which consolidation calls with behavioral signals;
// readers may observe values from before an in-flight update.
type PersonalityState struct {
	mu     sync.RWMutex
	traits types.TraitVector
}

// NewPersonalityState creates a state seeded with traits, or with the
// default trait vector when traits is nil.
func NewPersonalityState(traits types.TraitVector) *PersonalityState {
	if traits == nil {
		traits = types.DefaultTraits()
	}
	return &PersonalityState{traits: traits.Clone()}
}

// Apply moves each trait toward its signal by the learning rate eta:
// trait += eta * (signal - trait), clamped to [-1, 1]. Signals for
// unknown traits are ignored so the vector keeps a fixed shape.
func (p *PersonalityState) Apply(signals map[string]float64, eta float64) {
	if eta <= 0 || len(signals) == 0 {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	for name, signal := range signals {
		current, ok := p.traits[name]
		if !ok {
			continue
		}
		p.traits[name] = clamp(current+eta*(signal-current), -1, 1)
	}
}

// Trait returns the named trait's value and whether it exists.
func (p *PersonalityState) Trait(name string) (float64, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	v, ok := p.traits[name]
	return v, ok
}

// Traits returns a copy of the full trait vector.
func (p *PersonalityState) Traits() types.TraitVector {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.traits.Clone()
}

// Restore replaces the trait vector with the given one.
func (p *PersonalityState) Restore(traits types.TraitVector) {
	if traits == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.traits = traits.Clone()
}

var traitAdjectives = map[string]string{
	types.TraitCuriosity:     "curious",
	types.TraitEmpathy:       "empathetic",
	types.TraitSkepticism:    "skeptical",
	types.TraitCreativity:    "creative",
	types.TraitIntrospection: "introspective",
}

// Describe renders the trait vector as a short human-readable sentence,
// strongest traits first.
func (p *PersonalityState) Describe() string {
	traits := p.Traits()
	names := traits.Names()
	sort.SliceStable(names, func(i, j int) bool { return traits[names[i]] > traits[names[j]] })

	parts := make([]string, 0, len(names))
	for _, name := range names {
		adjective, ok := traitAdjectives[name]
		if !ok {
			adjective = name
		}
		parts = append(parts, fmt.Sprintf("%s (%.2f)", adjective, traits[name]))
	}
	if len(parts) == 0 {
		return "personality not yet formed"
	}
	return "predominantly " + strings.Join(parts, ", ")
}
