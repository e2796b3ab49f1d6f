// Package ragstack is a retrieval-augmented generation platform: an
// asynchronous ingestion pipeline that turns raw documents into indexed,
// multi-representation knowledge (chunks, summaries, Q&A pairs), and an
// agentic query pipeline that retrieves, reranks and self-evaluates before
// generating a cited answer.
//
// # Quick Start
//
// Install ragstack:
//
//	go install github.com/kadirpekel/ragstack/cmd/ragstack@latest
//
// The platform runs as three processes sharing one codebase:
//
//	ragstack serve          # HTTP API: document upload, query submission
//	ragstack ingest-worker  # consumes ingestion jobs from the broker
//	ragstack query-worker   # consumes query jobs from the broker
//
// # Using as Go Library
//
// Import specific packages:
//
//	import (
//	    "github.com/kadirpekel/ragstack/pkg/chunking"
//	    "github.com/kadirpekel/ragstack/pkg/retrieval"
//	    "github.com/kadirpekel/ragstack/pkg/config"
//	)
//
// # Architecture
//
// Documents and queries are tracked in PostgreSQL, originals and derived
// artifacts live in MinIO-compatible object storage, and vectors are indexed
// in Qdrant across three collections (chunks, summaries, Q&A). Dense search
// is fused with an in-memory BM25 sparse index via reciprocal rank fusion,
// then reranked by an LLM and gated by an agentic evaluator that may refine
// the query or expand the search before a cited answer is generated.
//
// # Alpha Status
//
// ragstack is currently in alpha development. APIs may change, and some
// features are experimental.
package ragstack
