package octave

import "time"

type namedArg struct {
	name  string
	value any
}

type callOptions struct {
	nout    int
	storeAs string
	timeout time.Duration
	quiet   bool
	named   []namedArg
}

func (o *callOptions) apply(opts []CallOption) {
	for _, opt := range opts {
		opt(o)
	}
}

// CallOption is a functional option for a single call.
type CallOption func(*callOptions)

// Nout sets the number of output values requested from the call.
// Default: 1. Zero requests a statement-style call with no value.
func Nout(n int) CallOption {
	return func(o *callOptions) {
		o.nout = n
	}
}

// StoreAs keeps the call's result in the interpreter's base workspace
// under the given name instead of transferring it. The call returns a
// *VariablePtr to the stored value.
func StoreAs(name string) CallOption {
	return func(o *callOptions) {
		o.storeAs = name
	}
}

// WithTimeout overrides the session's per-call deadline for this call.
func WithTimeout(d time.Duration) CallOption {
	return func(o *callOptions) {
		o.timeout = d
	}
}

// Quiet logs interpreter output at debug level instead of info.
func Quiet() CallOption {
	return func(o *callOptions) {
		o.quiet = true
	}
}

// Named appends a name/value argument pair after the positional
// arguments, for functions with keyword-style trailing parameters.
// Pairs keep the order they were given in.
func Named(name string, value any) CallOption {
	return func(o *callOptions) {
		o.named = append(o.named, namedArg{name: name, value: value})
	}
}
