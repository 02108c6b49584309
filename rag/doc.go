// Package rag implements the retrieval side of the conversation engine:
// the read-only knowledge store of embedded document chunks, a snapshot
// loader for pre-built indexes, and the retriever that turns a query
// string into ranked, deduplicated evidence.
//
// The knowledge store is built offline (PDF extraction, chunking,
// embedding) and consumed here strictly read-only, so it is safely shared
// across all sessions.
package rag
