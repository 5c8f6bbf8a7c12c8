/*
Package agent implements the cognitive cycle: perceive a stimulus,
recall related memories, reflect over them in a bounded session, respond
and store the interaction back into memory.

# Cycle

One foreground cycle moves through a fixed phase sequence driven by the
session state machine in state.go:

	perceiving -> recalling -> reflecting -> deciding -> terminated

The Orchestrator serializes cycles (at most one session at a time),
applies the cycle deadline, and owns the background consolidation
lifecycle. The ReflectionEngine runs the recalling and reflecting
phases: it reads the memory system under shared access and appends one
Thought per iteration until the confidence threshold or the iteration
cap fires. Cancellation mid-reflection tags the chain aborted and the
cycle still commits its memory write.

# Collaborators

Perception and response generation are external concerns consumed
through the Perceiver and Responder interfaces. Durable state crosses
process restarts through agent/persistence.SnapshotStore.

Memory structures live in agent/memory; this package orchestrates them.
*/
package agent
