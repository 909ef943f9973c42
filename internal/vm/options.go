package vm

import "github.com/tliron/commonlog"

const (
	DefaultMaxFrames = 1024
	DefaultMaxStack  = 1 << 16

	// maxGlobals bounds how far a write may grow the globals table.
	maxGlobals = 1 << 16

	// pollInterval is how many instructions run between context checks.
	pollInterval = 1024
)

type options struct {
	maxFrames  int
	maxStack   int
	stepBudget int64
	log        commonlog.Logger
}

func defaultOptions() options {
	return options{
		maxFrames: DefaultMaxFrames,
		maxStack:  DefaultMaxStack,
		log:       log,
	}
}

// Option configures a VM.
type Option func(*options)

// WithMaxFrames bounds the call depth. Non-positive values keep the default.
func WithMaxFrames(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxFrames = n
		}
	}
}

// WithMaxStack bounds the operand stack. Non-positive values keep the default.
func WithMaxStack(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxStack = n
		}
	}
}

// WithStepBudget faults the run with Canceled after n instructions.
// Zero means unlimited.
func WithStepBudget(n int64) Option {
	return func(o *options) {
		if n >= 0 {
			o.stepBudget = n
		}
	}
}

func WithLogger(l commonlog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.log = l
		}
	}
}
