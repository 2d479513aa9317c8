// Package stream reports the bytes moving through an io.Reader or io.Writer
// to a progress.Sink.
package stream

import (
	"fmt"
	"io"
	"sync/atomic"

	"github.com/konveyor/awty/progress"
)

// Direction says which side of a stream is counted.
type Direction int

const (
	// DirectionRead counts bytes returned by Read.
	DirectionRead Direction = iota + 1

	// DirectionWrite counts bytes accepted by Write.
	DirectionWrite
)

func (d Direction) String() string {
	switch d {
	case DirectionRead:
		return "read"
	case DirectionWrite:
		return "write"
	default:
		return fmt.Sprintf("Direction(%d)", int(d))
	}
}

type config struct {
	total int64
	owns  bool
}

// Option configures a Reader or Writer.
type Option func(*config)

// WithTotal sets the sink total explicitly instead of detecting it.
func WithTotal(total int64) Option {
	return func(c *config) {
		c.total = total
	}
}

// WithOwnership controls whether Close closes the wrapped stream.
// Wrappers own their stream by default.
func WithOwnership(owns bool) Option {
	return func(c *config) {
		c.owns = owns
	}
}

func buildConfig(opts []Option) config {
	c := config{owns: true}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// Counter is implemented by streams that already report their bytes to a
// sink. Reader, Writer and the bodies of package httpprogress implement it,
// and none of them wraps a Counter again.
type Counter interface {
	Sink() *progress.Sink[int64]
}

// Reader counts the bytes read from an inner reader.
type Reader struct {
	r      io.Reader
	sink   *progress.Sink[int64]
	owns   bool
	closed atomic.Bool
}

// NewReader wraps r so every successful Read adds to sink.
//
// The sink total is taken from WithTotal when given. Otherwise, when r is
// an io.Seeker, it is set to the number of bytes between the current
// offset and the end of the stream. Wrapping a Counter fails with
// progress.ErrAlreadyWrapped, since its bytes are already counted.
func NewReader(r io.Reader, sink *progress.Sink[int64], opts ...Option) (*Reader, error) {
	if _, ok := r.(Counter); ok {
		return nil, fmt.Errorf("stream reader: %w", progress.ErrAlreadyWrapped)
	}
	c := buildConfig(opts)

	total := c.total
	if total == 0 {
		if seeker, ok := r.(io.Seeker); ok {
			remaining, err := remainingLength(seeker)
			if err != nil {
				return nil, fmt.Errorf("stream reader: detecting length: %w", err)
			}
			total = remaining
		}
	}
	if total != 0 {
		if err := sink.SetTotal(total); err != nil {
			return nil, fmt.Errorf("stream reader: %w", err)
		}
	}

	return &Reader{r: r, sink: sink, owns: c.owns}, nil
}

func remainingLength(s io.Seeker) (int64, error) {
	cur, err := s.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, err
	}
	end, err := s.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, err
	}
	if _, err := s.Seek(cur, io.SeekStart); err != nil {
		return 0, err
	}
	// an empty stream keeps the sink's existing total
	if end-cur < 1 {
		return 0, nil
	}
	return end - cur, nil
}

// Read implements io.Reader.
func (r *Reader) Read(p []byte) (int, error) {
	n, err := r.r.Read(p)
	if n > 0 {
		r.sink.Add(int64(n))
	}
	return n, err
}

// Direction returns DirectionRead.
func (r *Reader) Direction() Direction {
	return DirectionRead
}

// Sink returns the sink the reader reports to.
func (r *Reader) Sink() *progress.Sink[int64] {
	return r.sink
}

// Close closes the inner reader when it is owned and implements io.Closer.
// Only the first call has any effect.
func (r *Reader) Close() error {
	if !r.closed.CompareAndSwap(false, true) {
		return nil
	}
	if c, ok := r.r.(io.Closer); ok && r.owns {
		return c.Close()
	}
	return nil
}

// Writer counts the bytes written to an inner writer.
type Writer struct {
	w      io.Writer
	sink   *progress.Sink[int64]
	owns   bool
	closed atomic.Bool
}

// NewWriter wraps w so every Write adds the accepted byte count to sink.
// Wrapping a Counter fails with progress.ErrAlreadyWrapped.
func NewWriter(w io.Writer, sink *progress.Sink[int64], opts ...Option) (*Writer, error) {
	if _, ok := w.(Counter); ok {
		return nil, fmt.Errorf("stream writer: %w", progress.ErrAlreadyWrapped)
	}
	c := buildConfig(opts)
	if c.total != 0 {
		if err := sink.SetTotal(c.total); err != nil {
			return nil, fmt.Errorf("stream writer: %w", err)
		}
	}
	return &Writer{w: w, sink: sink, owns: c.owns}, nil
}

// Write implements io.Writer.
func (w *Writer) Write(p []byte) (int, error) {
	n, err := w.w.Write(p)
	if n > 0 {
		w.sink.Add(int64(n))
	}
	return n, err
}

// Direction returns DirectionWrite.
func (w *Writer) Direction() Direction {
	return DirectionWrite
}

// Sink returns the sink the writer reports to.
func (w *Writer) Sink() *progress.Sink[int64] {
	return w.sink
}

// Close closes the inner writer when it is owned and implements io.Closer.
// Only the first call has any effect.
func (w *Writer) Close() error {
	if !w.closed.CompareAndSwap(false, true) {
		return nil
	}
	if c, ok := w.w.(io.Closer); ok && w.owns {
		return c.Close()
	}
	return nil
}
