// Package engine orchestrates the retrieval-augmented conversation
// pipeline: query formulation, retrieval, context assembly, and answer
// generation with citation tracking.
//
// Each user turn runs one sequential pipeline (formulate → retrieve →
// assemble → generate → append) under the session's turn lock. The two
// external-collaborator calls — embedding/retrieval and generation — are
// the only suspension points and always carry explicit timeouts. A turn
// that aborts anywhere before the append leaves conversation memory
// untouched.
package engine
