package progress

import "errors"

var (
	// ErrInvalidTotal is returned when a total smaller than 1 is supplied.
	ErrInvalidTotal = errors.New("progress: total must be at least 1")

	// ErrInvalidChunkSize is returned when a chunked strategy is built with a
	// chunk size smaller than 1.
	ErrInvalidChunkSize = errors.New("progress: chunk size must be at least 1")

	// ErrZeroTotal is delivered to observers when a raw update reaches a
	// channel with a non-positive total. The channel is terminated.
	ErrZeroTotal = errors.New("progress: total reached zero while reporting")

	// ErrAlreadyWrapped is returned when a stream or body that already
	// reports progress is wrapped a second time.
	ErrAlreadyWrapped = errors.New("progress: already wrapped for progress reporting")
)
