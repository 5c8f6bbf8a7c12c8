/*
Package memory implements the agent's layered memory subsystem.

# Overview

The package answers one question: how do perceptions become durable,
weighted memories that decay, consolidate, and come back under
similarity/recency/importance ranking, while a reflection loop reads the
stores concurrently with a background process that mutates them.

# Layers

  - [WorkingContext]: bounded FIFO buffer of the most recent percepts and
    thoughts. Models short-term attention span, not long-term value.
  - [EpisodicStore]: append-oriented store of timestamped records with
    importance, emotional valence and per-record exponential decay.
  - [SemanticGraph]: concept nodes and weighted associative edges distilled
    from clusters of episodic records; recall via spreading activation.
  - [PersonalityState]: bounded named trait vector, drifting slowly under
    exponential-moving-average updates.

# Consolidation

[Consolidator] is the only writer of decay, pruning, graph updates and
personality updates. It runs on a fixed interval plus an opportunistic
nudge after foreground cycles. Each tick decays all records, clusters the
records accessed since the previous tick by embedding similarity, reinforces
the graph from qualifying clusters, applies the personality delta, prunes,
and then checkpoints through the persistence layer.

# Concurrency

[System] composes the layers behind a tick-granular RWMutex: a reflection
session's read phase holds the read lock, foreground stores and whole
consolidation ticks hold the write lock. Each store additionally guards its
own data, so every type in this package is safe for concurrent use on its
own.
*/
package memory
