package progress

import "github.com/go-logr/logr"

// Operation bundles the pieces that track one unit of work: a Sink whose
// updates are published to a Channel, plus a name and correlation ID used
// when the notifications are turned into Events.
//
// The owner calls Done exactly when the work finishes. Reaching 100% does
// not complete the operation, since the total may still grow.
type Operation[T Number] struct {
	ID      string
	Name    string
	Sink    *Sink[T]
	Channel *Channel[T]

	log logr.Logger
}

// NewOperation creates an operation counting towards total. It fails with
// ErrInvalidTotal when total is smaller than 1.
func NewOperation[T Number](name string, total T, strategy Strategy, opts ...Option) (*Operation[T], error) {
	o := buildOptions(opts)
	if o.id == "" {
		o.id = NewContextID()
	}
	log := o.log.WithValues("operation", name, "context_id", o.id)

	ch := NewChannel[T](strategy, WithLogger(log))
	sink, err := NewSink(total, WithPublisher(ch.Publish))
	if err != nil {
		return nil, err
	}
	return &Operation[T]{
		ID:      o.id,
		Name:    name,
		Sink:    sink,
		Channel: ch,
		log:     log,
	}, nil
}

// Report subscribes r to the operation's notifications, converted to Events.
func (o *Operation[T]) Report(r Reporter) *Subscription {
	return o.Channel.Subscribe(Observe[T](r, o.Name, o.ID))
}

// Done terminates the operation: with completion when err is nil,
// otherwise with err. Later calls are no-ops.
func (o *Operation[T]) Done(err error) {
	if err != nil {
		o.log.V(1).Info("operation failed", "error", err.Error())
		o.Channel.ErrorAll(err)
		return
	}
	o.Channel.CompleteAll()
}
