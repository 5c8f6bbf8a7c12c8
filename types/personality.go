package types

import "sort"

// Trait names of the personality vector. The set is fixed: updates apply
// only to these keys, so the vector keeps a constant length for its
// whole lifetime.
const (
	TraitCuriosity     = "curiosity"
	TraitEmpathy       = "empathy"
	TraitSkepticism    = "skepticism"
	TraitCreativity    = "creativity"
	TraitIntrospection = "introspection"
)

// TraitVector maps trait names to values bounded to [-1,1].
type TraitVector map[string]float64

// DefaultTraits returns the baseline personality profile.
func DefaultTraits() TraitVector {
	return TraitVector{
		TraitCuriosity:     0.8,
		TraitEmpathy:       0.7,
		TraitSkepticism:    0.6,
		TraitCreativity:    0.5,
		TraitIntrospection: 0.9,
	}
}

// Clone returns an independent copy of the vector.
func (v TraitVector) Clone() TraitVector {
	out := make(TraitVector, len(v))
	for k, val := range v {
		out[k] = val
	}
	return out
}

// Names returns the trait names in deterministic (sorted) order.
func (v TraitVector) Names() []string {
	names := make([]string, 0, len(v))
	for k := range v {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Dominant returns the trait with the highest value. Ties resolve to the
// lexically first name so the result is deterministic.
func (v TraitVector) Dominant() (string, float64) {
	best, bestVal := "", -2.0
	for _, name := range v.Names() {
		if v[name] > bestVal {
			best, bestVal = name, v[name]
		}
	}
	return best, bestVal
}
