package httpprogress

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/go-logr/logr"
	"github.com/konveyor/awty/progress"
	"github.com/konveyor/awty/progress/stream"
)

// ContextIDHeader carries the correlation ID of a request.
const ContextIDHeader = "X-Progress-Context-Id"

// DefaultChunkSize is the percentage step used when no strategy is set.
const DefaultChunkSize = 5

// Types selects which bodies a Transport reports on.
type Types int

const (
	// Request reports the request body being sent.
	Request Types = 1 << iota

	// Response reports the response body being received.
	Response

	// Both reports request and response bodies.
	Both = Request | Response
)

// Has reports whether t includes other.
func (t Types) Has(other Types) bool {
	return t&other == other
}

// Kind tells request and response notifications apart.
type Kind string

const (
	KindRequest  Kind = "request"
	KindResponse Kind = "response"
)

// Started is passed to the OnStarted callback once a body has been wrapped
// and before any of its bytes flow. Subscribing to Operation.Channel from
// the callback therefore sees every notification.
type Started struct {
	Kind      Kind
	Direction stream.Direction
	URL       *url.URL
	Method    string
	ContextID string
	Operation *progress.Operation[int64]
}

// Transport is an http.RoundTripper that reports body progress.
//
// Every request is tagged with a correlation ID, taken from the
// ContextIDHeader header, the request context, or generated. Bodies are
// wrapped according to the configured Types; each wrapped body gets its own
// Operation, announced through OnStarted.
type Transport struct {
	base        http.RoundTripper
	types       Types
	newStrategy func() progress.Strategy
	onStarted   func(Started)
	log         logr.Logger
}

// TransportOption configures a Transport.
type TransportOption func(*Transport)

// WithBase sets the RoundTripper that performs the requests.
// The default is http.DefaultTransport.
func WithBase(base http.RoundTripper) TransportOption {
	return func(t *Transport) {
		t.base = base
	}
}

// WithTypes selects the bodies to report on. The default is Both.
func WithTypes(types Types) TransportOption {
	return func(t *Transport) {
		t.types = types
	}
}

// WithStrategy sets the factory for the strategy of each operation. A
// strategy remembers what it reported, so every operation needs a fresh one.
func WithStrategy(newStrategy func() progress.Strategy) TransportOption {
	return func(t *Transport) {
		t.newStrategy = newStrategy
	}
}

// WithOnStarted sets the callback that receives each new operation.
func WithOnStarted(fn func(Started)) TransportOption {
	return func(t *Transport) {
		t.onStarted = fn
	}
}

// WithLogger sets the logger for the Transport.
func WithLogger(log logr.Logger) TransportOption {
	return func(t *Transport) {
		t.log = log
	}
}

// NewTransport creates a Transport.
func NewTransport(opts ...TransportOption) *Transport {
	t := &Transport{
		base:  http.DefaultTransport,
		types: Both,
		newStrategy: func() progress.Strategy {
			s, _ := progress.NewChunkedPercentage(DefaultChunkSize)
			return s
		},
		onStarted: func(Started) {},
		log:       logr.Discard(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	id := req.Header.Get(ContextIDHeader)
	if id != "" {
		ctx = progress.WithContextID(ctx, id)
	} else {
		ctx, id = progress.EnsureContextID(ctx)
	}

	// a RoundTripper must not modify the caller's request
	req = req.Clone(ctx)
	req.Header.Set(ContextIDHeader, id)
	log := t.log.WithValues("method", req.Method, "url", req.URL.String(), "context_id", id)

	var requestOp *progress.Operation[int64]
	if t.types.Has(Request) {
		requestOp = t.start(log, KindRequest, req, id, func(op *progress.Operation[int64]) error {
			return WrapRequest(req, op)
		})
	}

	resp, err := t.base.RoundTrip(req)
	if err != nil {
		if requestOp != nil {
			requestOp.Done(err)
		}
		return nil, err
	}

	if t.types.Has(Response) {
		t.start(log, KindResponse, req, id, func(op *progress.Operation[int64]) error {
			return WrapResponse(resp, op)
		})
	}
	return resp, nil
}

func (t *Transport) start(log logr.Logger, kind Kind, req *http.Request, id string, wrap func(*progress.Operation[int64]) error) *progress.Operation[int64] {
	op, err := progress.NewOperation(req.URL.String(), int64(progress.DefaultTotal), t.newStrategy(),
		progress.WithID(id), progress.WithLogger(log))
	if err != nil {
		log.Error(err, "creating progress operation", "kind", kind)
		return nil
	}
	if err := wrap(op); err != nil {
		if errors.Is(err, ErrUnknownLength) {
			log.V(2).Info("body not reported", "kind", kind, "reason", err.Error())
		} else {
			log.Error(err, "wrapping body", "kind", kind)
		}
		return nil
	}

	direction := stream.DirectionRead
	if kind == KindRequest {
		direction = stream.DirectionWrite
	}
	t.onStarted(Started{
		Kind:      kind,
		Direction: direction,
		URL:       req.URL,
		Method:    req.Method,
		ContextID: id,
		Operation: op,
	})
	return op
}
