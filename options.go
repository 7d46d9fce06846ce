package apsp

import (
	"fmt"

	"github.com/LynnColeArt/apsp/gpu"
)

// PingPong selects how the min-plus engine feeds one round's product into
// the next round.
type PingPong int

const (
	// PingPongCopy copies the previous product back into the input buffer
	// before every round after the first. The result is always in out.
	PingPongCopy PingPong = iota
	// PingPongSwap alternates the roles of the two buffers without
	// copying. The result is in Stats.Output.
	PingPongSwap
)

func (p PingPong) String() string {
	switch p {
	case PingPongCopy:
		return "copy"
	case PingPongSwap:
		return "swap"
	default:
		return fmt.Sprintf("PingPong(%d)", int(p))
	}
}

// Option configures an engine.
type Option func(*options)

type options struct {
	workgroup Workgroup
	pingPong  PingPong
	label     string
}

func defaultOptions() options {
	return options{
		workgroup: Blocked,
		pingPong:  PingPongCopy,
		label:     "apsp",
	}
}

// WithWorkgroup sets the Floyd–Warshall workgroup shape. Min-plus engines
// take their shape from their Variant.
func WithWorkgroup(w Workgroup) Option {
	return func(o *options) { o.workgroup = w }
}

// WithPingPong selects the min-plus round hand-off.
func WithPingPong(p PingPong) Option {
	return func(o *options) { o.pingPong = p }
}

// WithLabel prefixes the labels of device objects an engine creates.
func WithLabel(prefix string) Option {
	return func(o *options) { o.label = prefix }
}

func gatherOptions(opts []Option) (options, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if err := o.workgroup.Validate(); err != nil {
		return o, err
	}
	if o.pingPong != PingPongCopy && o.pingPong != PingPongSwap {
		return o, gpu.NewInvalidArgError("WithPingPong", fmt.Sprintf("unknown mode %v", o.pingPong))
	}
	return o, nil
}
