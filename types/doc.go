/*
Package types provides the shared type definitions for the mindflow agent.

types is the lowest-level package in the module and depends on nothing
internal. It defines the data model every other package agrees on:

  - Percept: normalized external stimulus with embedding
  - Thought: one step of an internal reflection chain
  - ThoughtChain: the ordered, tagged result of a reflection session
  - MemoryRecord: durable episodic/semantic memory entry
  - ConceptNode / ConceptEdge: semantic graph elements
  - TraitVector: bounded named personality traits
  - Snapshot: persistence triple (episodic, semantic, personality)
  - Error / ErrorCode: structured error taxonomy with retryability
*/
package types
