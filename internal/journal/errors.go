package journal

import (
	"errors"
	"fmt"
)

// ErrNotInitialized is returned when semantic search is requested before
// the embedding subsystem is ready. Period search is unaffected.
var ErrNotInitialized = errors.New("embedding subsystem not initialized")

// ErrNotFound is returned by repository lookups that match nothing.
var ErrNotFound = errors.New("entry not found")

// TranscriptionError wraps a transcription-service failure.
type TranscriptionError struct{ Err error }

func (e *TranscriptionError) Error() string { return fmt.Sprintf("transcription: %v", e.Err) }
func (e *TranscriptionError) Unwrap() error { return e.Err }

// EmbeddingError wraps an embedding-service failure.
type EmbeddingError struct{ Err error }

func (e *EmbeddingError) Error() string { return fmt.Sprintf("embedding: %v", e.Err) }
func (e *EmbeddingError) Unwrap() error { return e.Err }

// CompletionError wraps a completion-service failure. A well-formed HTTP
// reply with malformed content is not a CompletionError; the classifier
// and composer handle that case themselves.
type CompletionError struct{ Err error }

func (e *CompletionError) Error() string { return fmt.Sprintf("completion: %v", e.Err) }
func (e *CompletionError) Unwrap() error { return e.Err }
