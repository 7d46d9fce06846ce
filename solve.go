package apsp

import (
	"context"
	"fmt"

	"github.com/LynnColeArt/apsp/gpu"
)

// Method selects an APSP strategy.
type Method int

const (
	MethodFloydWarshall Method = iota
	MethodNaive
	MethodBlocked
)

// Methods lists every method.
var Methods = []Method{MethodFloydWarshall, MethodNaive, MethodBlocked}

func (m Method) String() string {
	switch m {
	case MethodFloydWarshall:
		return "floyd-warshall"
	case MethodNaive:
		return "naive"
	case MethodBlocked:
		return "blocked"
	default:
		return fmt.Sprintf("Method(%d)", int(m))
	}
}

// ParseMethod parses the String form of a method.
func ParseMethod(s string) (Method, error) {
	for _, m := range Methods {
		if m.String() == s {
			return m, nil
		}
	}
	return 0, gpu.NewInvalidArgError("ParseMethod", fmt.Sprintf("unknown method %q", s))
}

// Runner is the common surface of both engines.
type Runner interface {
	Layout(n int) Layout
	CreateBuffers(n int) (in, out gpu.Buffer, err error)
	Stage(g Graph, dst gpu.Buffer) error
	Run(in, out gpu.Buffer, n int) (Stats, error)
	Release()
}

var (
	_ Runner = (*FloydWarshall)(nil)
	_ Runner = (*TropicalMatmul)(nil)
)

// NewRunner builds the engine for m on dev.
func NewRunner(dev gpu.Device, m Method, opts ...Option) (Runner, error) {
	switch m {
	case MethodFloydWarshall:
		return NewFloydWarshall(dev, opts...)
	case MethodNaive:
		return NewTropicalMatmul(dev, NaiveVariant(), opts...)
	case MethodBlocked:
		return NewTropicalMatmul(dev, BlockedVariant(), opts...)
	default:
		return nil, gpu.NewInvalidArgError("NewRunner", fmt.Sprintf("unknown method %v", m))
	}
}

// Solve runs the whole pipeline for g: stage, run, read back. Buffers are
// released before it returns.
func Solve(ctx context.Context, dev gpu.Device, g Graph, m Method, opts ...Option) (*DistanceMatrix, Stats, error) {
	if err := g.Validate(); err != nil {
		return nil, Stats{}, err
	}
	if g.N == 0 {
		return &DistanceMatrix{}, Stats{}, nil
	}

	r, err := NewRunner(dev, m, opts...)
	if err != nil {
		return nil, Stats{}, err
	}
	defer r.Release()

	return SolveWith(ctx, dev, r, g)
}

// SolveWith is Solve with a caller-supplied engine.
func SolveWith(ctx context.Context, dev gpu.Device, r Runner, g Graph) (*DistanceMatrix, Stats, error) {
	in, out, err := r.CreateBuffers(g.N)
	if err != nil {
		return nil, Stats{}, err
	}
	defer in.Release()
	defer out.Release()

	if err := r.Stage(g, in); err != nil {
		return nil, Stats{}, err
	}
	stats, err := r.Run(in, out, g.N)
	if err != nil {
		return nil, stats, err
	}
	if err := dev.WaitIdle(ctx); err != nil {
		return nil, stats, err
	}
	dm, err := ReadMatrix(ctx, dev, stats.Output, r.Layout(g.N))
	return dm, stats, err
}
