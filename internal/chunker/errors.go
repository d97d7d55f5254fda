package chunker

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownStrategy is returned by New for an unrecognized strategy tag.
	ErrUnknownStrategy = errors.New("unknown chunking strategy")
	// ErrDeprecatedStrategy is returned by New for retired strategy tags.
	ErrDeprecatedStrategy = errors.New("deprecated chunking strategy")
)

// EmptyResultError reports a chunking run that produced no usable chunks.
type EmptyResultError struct {
	Source   string
	Strategy string
	Config   Config
}

func (e *EmptyResultError) Error() string {
	return fmt.Sprintf("chunker (%s) produced empty chunk list for book: %s [%s]", e.Strategy, e.Source, e.Config)
}

// EmbeddingBatchError reports an embedder failure for the fragment range
// [Start, End). The whole run is abandoned.
type EmbeddingBatchError struct {
	Source string
	Start  int
	End    int
	Err    error
}

func (e *EmbeddingBatchError) Error() string {
	return fmt.Sprintf("embed %s fragments [%d, %d): %v", e.Source, e.Start, e.End, e.Err)
}

func (e *EmbeddingBatchError) Unwrap() error {
	return e.Err
}

// IsEmptyResult reports whether err is or wraps an EmptyResultError.
func IsEmptyResult(err error) bool {
	var e *EmptyResultError
	return errors.As(err, &e)
}
