package agent

import (
	"fmt"

	"github.com/BaSui01/mindflow/types"
)

// validTransitions defines the legal phase changes of a reflection
// session. Terminated is reachable from every live phase so a session
// can always be cancelled.
var validTransitions = map[types.Phase][]types.Phase{
	types.PhasePerceiving: {types.PhaseRecalling, types.PhaseTerminated},
	types.PhaseRecalling:  {types.PhaseReflecting, types.PhaseTerminated},
	types.PhaseReflecting: {types.PhaseDeciding, types.PhaseTerminated},
	types.PhaseDeciding:   {types.PhaseTerminated},
	types.PhaseTerminated: {},
}

// CanTransition checks whether a phase change is legal.
func CanTransition(from, to types.Phase) bool {
	allowed, ok := validTransitions[from]
	if !ok {
		return false
	}
	for _, p := range allowed {
		if p == to {
			return true
		}
	}
	return false
}

// ErrInvalidTransition is returned when a session attempts an illegal
// phase change.
type ErrInvalidTransition struct {
	From types.Phase
	To   types.Phase
}

func (e ErrInvalidTransition) Error() string {
	return fmt.Sprintf("invalid phase transition: %s -> %s", e.From, e.To)
}
