package domain

import "errors"

var (
	// ErrRecordNotFound signals a missing water object.
	ErrRecordNotFound = errors.New("record not found")
	// ErrStoreUnreachable signals a transient record-store failure.
	ErrStoreUnreachable = errors.New("record store unreachable")
	// ErrEmptyQuery signals a query with no text and no filters.
	ErrEmptyQuery = errors.New("query text or filters required")
	// ErrInvalidRole signals an unknown caller role.
	ErrInvalidRole = errors.New("invalid role")
	// ErrExpertOnly signals an expert-only operation requested by a guest.
	// Fails closed before any tool runs.
	ErrExpertOnly = errors.New("expert role required")
	// ErrOverloaded signals the max-concurrent-sessions admission limit.
	ErrOverloaded = errors.New("too many concurrent sessions")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrGenerationFailed signals a text-generation provider failure.
	ErrGenerationFailed = errors.New("generation failed")
)
