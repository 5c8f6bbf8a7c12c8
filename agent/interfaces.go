package agent

import (
	"context"

	"github.com/BaSui01/mindflow/types"
)

// Perceiver normalizes raw external input into a Percept with an
// embedding. Implemented outside this module; a failure aborts the
// cycle before anything is admitted into memory.
type Perceiver interface {
	Perceive(ctx context.Context, raw string) (*types.Percept, error)
}

// Responder renders a finished thought chain into a response, given the
// working-context window the session saw. Treated as a slow, possibly
// failing remote call: a failure degrades the response but never the
// durability of the interaction.
type Responder interface {
	Generate(ctx context.Context, chain *types.ThoughtChain, window []types.ContextItem) (string, error)
}
