package analysis

import (
	"errors"
	"fmt"

	"github.com/veridexlabs/veridexd/internal/post"
)

var (
	// ErrEmptyPost indicates a post whose text is empty after
	// normalization.
	ErrEmptyPost = errors.New("post text is empty")

	// ErrInvalidResult indicates a result that failed consistency checks.
	ErrInvalidResult = errors.New("invalid analysis result")

	// ErrClassifierUnavailable indicates the classifier stage produced no
	// usable signal.
	ErrClassifierUnavailable = errors.New("classifier unavailable")

	// ErrRetrievalUnavailable indicates the retrieval stage produced no
	// usable signal.
	ErrRetrievalUnavailable = errors.New("retrieval unavailable")

	// ErrSynthesisUnavailable indicates the synthesis stage could not
	// produce a verdict even from partial signal.
	ErrSynthesisUnavailable = errors.New("synthesis unavailable")
)

// ConflictError reports that a cache write lost a race: another writer
// committed a result for the same content key first. Callers treat the
// already-committed result as a cache hit.
type ConflictError struct {
	ContentKey post.ContentKey
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("analysis for %s already committed", e.ContentKey.Short())
}

// IsConflict reports whether err is (or wraps) a ConflictError.
func IsConflict(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce)
}

// StorageError wraps a cache persistence failure. It is distinct from the
// stage errors above because the workflow tolerates it: a result that could
// not be persisted is still returned to the caller.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("cache %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// IsStorage reports whether err is (or wraps) a StorageError.
func IsStorage(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}
