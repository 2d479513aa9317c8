package progress

import "github.com/go-logr/logr"

type options struct {
	log logr.Logger
	id  string
}

// Option configures a Channel or an Operation.
type Option func(*options)

// WithLogger sets the logger used for diagnostics such as publishes that
// arrive after the channel terminated. Messages are logged at V(1) and above.
func WithLogger(log logr.Logger) Option {
	return func(o *options) {
		o.log = log
	}
}

// WithID sets the correlation ID of an Operation. Without it a new ID is
// generated.
func WithID(id string) Option {
	return func(o *options) {
		o.id = id
	}
}

func buildOptions(opts []Option) options {
	o := options{log: logr.Discard()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
