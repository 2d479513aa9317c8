// Package httpprogress reports the progress of HTTP request and response
// bodies.
//
// A body is wrapped with WrapRequest or WrapResponse, or automatically for
// every round trip by Transport. Bodies whose length is unknown are left
// alone since there is no total to measure against.
package httpprogress

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"

	"github.com/konveyor/awty/progress"
	"github.com/konveyor/awty/progress/stream"
)

var (
	// ErrUnknownLength is returned when a body has no positive Content-Length.
	ErrUnknownLength = errors.New("httpprogress: body length unknown")

	// ErrIncomplete terminates the operation of a body that was closed
	// before all of its bytes were transferred.
	ErrIncomplete = errors.New("httpprogress: body closed before it was fully transferred")
)

// body counts the bytes read from an HTTP body through a stream.Reader.
// Its operation completes at EOF or when the body is closed after the full
// length was read, and fails on a read error or an early close.
type body struct {
	*stream.Reader
	op       *progress.Operation[int64]
	finished atomic.Bool
}

func (b *body) Read(p []byte) (int, error) {
	n, err := b.Reader.Read(p)
	switch {
	case err == io.EOF:
		b.finish(nil)
	case err != nil:
		b.finish(err)
	}
	return n, err
}

func (b *body) Close() error {
	err := b.Reader.Close()
	if b.op.Sink.Current() < b.op.Sink.Total() {
		b.finish(ErrIncomplete)
	} else {
		b.finish(nil)
	}
	return err
}

func (b *body) finish(err error) {
	if b.finished.CompareAndSwap(false, true) {
		b.op.Done(err)
	}
}

func wrap(rc io.ReadCloser, length int64, op *progress.Operation[int64]) (io.ReadCloser, error) {
	if _, ok := rc.(stream.Counter); ok {
		return nil, progress.ErrAlreadyWrapped
	}
	if rc == nil || rc == http.NoBody || length <= 0 {
		return nil, ErrUnknownLength
	}
	r, err := stream.NewReader(rc, op.Sink, stream.WithTotal(length))
	if err != nil {
		return nil, err
	}
	return &body{Reader: r, op: op}, nil
}

// WrapRequest replaces req.Body with one that reports the bytes sent to op.
// The operation total becomes req.ContentLength.
//
// It fails with ErrUnknownLength when the request has no body or an unknown
// length, and with progress.ErrAlreadyWrapped when the body already
// reports progress.
func WrapRequest(req *http.Request, op *progress.Operation[int64]) error {
	rc, err := wrap(req.Body, req.ContentLength, op)
	if err != nil {
		return fmt.Errorf("wrapping request body for %s %s: %w", req.Method, req.URL, err)
	}
	req.Body = rc
	return nil
}

// WrapResponse replaces resp.Body with one that reports the bytes received
// to op. The operation total becomes resp.ContentLength.
//
// It fails with ErrUnknownLength when the response length is unknown, and
// with progress.ErrAlreadyWrapped when the body already reports progress.
func WrapResponse(resp *http.Response, op *progress.Operation[int64]) error {
	rc, err := wrap(resp.Body, resp.ContentLength, op)
	if err != nil {
		return fmt.Errorf("wrapping response body: %w", err)
	}
	resp.Body = rc
	return nil
}
