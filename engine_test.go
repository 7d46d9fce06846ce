package apsp

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/LynnColeArt/apsp/gpu"
	"github.com/LynnColeArt/apsp/gpu/cpu"
	"github.com/LynnColeArt/apsp/kernels"
)

type EngineSuite struct {
	suite.Suite
	ctx context.Context
	dev *cpu.Device
}

func TestEngineSuite(t *testing.T) {
	suite.Run(t, new(EngineSuite))
}

func (s *EngineSuite) SetupTest() {
	s.ctx = context.Background()
	s.dev = cpu.New(cpu.WithWorkers(4))
}

func (s *EngineSuite) TearDownTest() {
	s.dev.Destroy()
}

type namedRunner struct {
	name string
	r    Runner
}

// runners builds every engine configuration worth comparing.
func (s *EngineSuite) runners(opts ...Option) []namedRunner {
	var out []namedRunner
	add := func(name string, r Runner, err error) {
		s.Require().NoError(err, name)
		s.T().Cleanup(r.Release)
		out = append(out, namedRunner{name, r})
	}
	fw, err := NewFloydWarshall(s.dev, opts...)
	add("floyd-warshall", fw, err)
	fwNaive, err := NewFloydWarshall(s.dev, append(opts, WithWorkgroup(Naive))...)
	add("floyd-warshall/1x1", fwNaive, err)
	naive, err := NewTropicalMatmul(s.dev, NaiveVariant(), opts...)
	add("naive", naive, err)
	blocked, err := NewTropicalMatmul(s.dev, BlockedVariant(), opts...)
	add("blocked", blocked, err)
	return out
}

func (s *EngineSuite) solve(r Runner, g Graph) (*DistanceMatrix, Stats) {
	dm, stats, err := SolveWith(s.ctx, s.dev, r, g)
	s.Require().NoError(err)
	return dm, stats
}

func (s *EngineSuite) TestPathGraph() {
	g := PathGraph(100)
	for _, nr := range s.runners() {
		dm, stats := s.solve(nr.r, g)
		s.Equal(float32(99), dm.At(0, 99), nr.name)
		s.Equal(float32(99), dm.At(99, 0), nr.name)
		s.Equal(float32(1), dm.At(50, 51), nr.name)
		s.Equal(float32(37), dm.At(13, 50), nr.name)
		s.Equal(99, dm.Diameter(), nr.name)

		switch r := nr.r.(type) {
		case *FloydWarshall:
			s.Equal(100, stats.Dispatches, nr.name)
		case *TropicalMatmul:
			s.Equal(7, stats.Dispatches, nr.name)
			s.Equal(Rounds(100), stats.Dispatches)
			s.Equal(6, stats.Copies, "%s copies before rounds 2..7", r.Variant())
		}
	}
}

func (s *EngineSuite) TestAgreeOnRandomGraphs() {
	for _, n := range []int{1, 2, 7, 16, 33, 70} {
		for _, p := range []float64{0.02, 0.1, 0.5} {
			g := RandomGraph(n, p, uint64(n)*31+uint64(p*100))
			want := FloydWarshallHost(g)
			for _, nr := range s.runners() {
				got, _ := s.solve(nr.r, g)
				i, j, ok := got.Diff(want)
				s.True(ok, "%s n=%d p=%v differs at (%d,%d): %v != %v", nr.name, n, p, i, j, got.At(i, j), want.At(i, j))
			}
		}
	}
}

func (s *EngineSuite) TestSymmetryAndDiagonal() {
	g := RandomGraph(40, 0.08, 3)
	for _, nr := range s.runners() {
		dm, _ := s.solve(nr.r, g)
		for i := 0; i < g.N; i++ {
			s.Zero(dm.At(i, i), nr.name)
			for j := 0; j < g.N; j++ {
				s.Require().Equal(dm.At(i, j), dm.At(j, i), "%s (%d,%d)", nr.name, i, j)
			}
		}
	}
}

func (s *EngineSuite) TestIsolatedVertex() {
	g := PathGraph(10)
	g.N = 11
	for _, nr := range s.runners() {
		dm, _ := s.solve(nr.r, g)
		for v := 0; v < 10; v++ {
			s.Equal(inf, dm.At(10, v), nr.name)
			s.Equal(inf, dm.At(v, 10), nr.name)
			s.False(dm.Reachable(v, 10))
		}
		s.Zero(dm.At(10, 10))
		s.Equal(9, dm.Diameter(), "unreachable pairs do not count")
	}
}

func (s *EngineSuite) TestSingleVertex() {
	for _, nr := range s.runners() {
		dm, stats := s.solve(nr.r, Graph{N: 1})
		s.Zero(dm.At(0, 0), nr.name)
		if _, ok := nr.r.(*TropicalMatmul); ok {
			s.Zero(stats.Dispatches)
		}
	}
}

func (s *EngineSuite) TestPaddingTransparency() {
	g := RandomGraph(45, 0.06, 11)
	want := FloydWarshallHost(g)

	variants := []Variant{
		NaiveVariant(),
		NaiveVariantShape(Workgroup{X: 8, Y: 8}),
		NaiveVariantShape(Workgroup{X: 16, Y: 4}),
		BlockedVariantTile(4),
		BlockedVariantTile(8),
		BlockedVariantTile(16),
		BlockedVariantTile(32),
	}
	for _, v := range variants {
		tm, err := NewTropicalMatmul(s.dev, v)
		s.Require().NoError(err)
		got, _ := s.solve(tm, g)
		tm.Release()
		s.True(got.Equal(want), "%v stride=%d", v, got.Stride)
	}

	for _, w := range []Workgroup{{X: 1, Y: 1}, {X: 4, Y: 8}, {X: 32, Y: 2}} {
		fw, err := NewFloydWarshall(s.dev, WithWorkgroup(w))
		s.Require().NoError(err)
		got, _ := s.solve(fw, g)
		fw.Release()
		s.True(got.Equal(want), "floyd-warshall %v", w)
	}
}

func (s *EngineSuite) TestPingPongSwap() {
	for _, n := range []int{2, 3, 5, 9, 100} {
		g := CycleGraph(n)
		want := FloydWarshallHost(g)
		for _, v := range []Variant{NaiveVariant(), BlockedVariant()} {
			tm, err := NewTropicalMatmul(s.dev, v, WithPingPong(PingPongSwap))
			s.Require().NoError(err)

			in, out, err := tm.CreateBuffers(n)
			s.Require().NoError(err)
			s.Require().NoError(tm.Stage(g, in))
			stats, err := tm.Run(in, out, n)
			s.Require().NoError(err)
			s.Zero(stats.Copies)
			if Rounds(n)%2 == 1 {
				s.Same(out, stats.Output, "n=%d", n)
			} else {
				s.Same(in, stats.Output, "n=%d", n)
			}

			got, err := ReadMatrix(s.ctx, s.dev, stats.Output, tm.Layout(n))
			s.Require().NoError(err)
			s.True(got.Equal(want), "%v n=%d", v, n)

			in.Release()
			out.Release()
			tm.Release()
		}
	}
}

func (s *EngineSuite) TestRunRejects() {
	tm, err := NewTropicalMatmul(s.dev, BlockedVariant())
	s.Require().NoError(err)
	defer tm.Release()

	in, out, err := tm.CreateBuffers(20)
	s.Require().NoError(err)
	defer in.Release()
	defer out.Release()

	_, err = tm.Run(in, out, 40)
	s.ErrorIs(err, ErrLayoutMismatch)
	_, err = tm.Run(in, in, 20)
	s.ErrorIs(err, gpu.ErrInvalidArg)
	_, err = tm.Run(in, out, 0)
	s.ErrorIs(err, gpu.ErrInvalidArg)

	fw, err := NewFloydWarshall(s.dev)
	s.Require().NoError(err)
	defer fw.Release()
	_, err = fw.Run(in, out, 20)
	s.ErrorIs(err, gpu.ErrCapacity, "blocked buffers pad rows, floyd-warshall buffers do not")
}

func (s *EngineSuite) TestRunAfterDeviceLost() {
	fw, err := NewFloydWarshall(s.dev)
	s.Require().NoError(err)
	in, out, err := fw.CreateBuffers(8)
	s.Require().NoError(err)
	s.Require().NoError(fw.Stage(PathGraph(8), in))

	s.dev.Destroy()
	_, err = fw.Run(in, out, 8)
	s.ErrorIs(err, gpu.ErrDeviceLost)

	_, err = Readback(s.ctx, s.dev, out)
	s.ErrorIs(err, gpu.ErrNoData)
}

func TestEngineOptions(t *testing.T) {
	dev := newDevice(t)

	_, err := NewFloydWarshall(dev, WithWorkgroup(Workgroup{X: 0, Y: 1}))
	assert.ErrorIs(t, err, gpu.ErrInvalidArg)
	_, err = NewTropicalMatmul(dev, NaiveVariant(), WithPingPong(PingPong(9)))
	assert.ErrorIs(t, err, gpu.ErrInvalidArg)
	_, err = NewTropicalMatmul(dev, Variant{})
	assert.ErrorIs(t, err, gpu.ErrInvalidArg)
	_, err = NewFloydWarshall(nil)
	assert.ErrorIs(t, err, gpu.ErrDeviceUnavailable)

	tm, err := NewTropicalMatmul(dev, BlockedVariant(), WithLabel("bench"))
	require.NoError(t, err)
	defer tm.Release()
	in, out, err := tm.CreateBuffers(100)
	require.NoError(t, err)
	assert.Equal(t, "bench/in", in.Label())
	assert.Equal(t, "bench/out", out.Label())
	assert.Equal(t, 112*112*4, in.Size())
	assert.Equal(t, Blocked, tm.Workgroup())
	assert.Equal(t, "blocked(16x16)", fmt.Sprint(tm.Variant()))

	params, err := tm.newParams()
	require.NoError(t, err)
	defer params.Release()
	assert.Equal(t, ParamsSize, params.Size())
	assert.Equal(t, kernels.ParamsSize, params.Size(), "matches the kernels' uniform layout")
}

// commandCounts tallies the commands recorded into one command buffer.
type commandCounts struct {
	writes, copies, dispatches int
}

type countedBuffer struct {
	inner  gpu.CommandBuffer
	counts commandCounts
}

func (c *countedBuffer) Len() int { return c.inner.Len() }

type countingEncoder struct {
	inner  gpu.Encoder
	counts commandCounts
}

func (e *countingEncoder) WriteBuffer(dst gpu.Buffer, offset int, data []byte) {
	e.counts.writes++
	e.inner.WriteBuffer(dst, offset, data)
}

func (e *countingEncoder) CopyBuffer(src, dst gpu.Buffer, size int) {
	e.counts.copies++
	e.inner.CopyBuffer(src, dst, size)
}

func (e *countingEncoder) Dispatch(bg gpu.BindGroup, grid gpu.Dim3) {
	e.counts.dispatches++
	e.inner.Dispatch(bg, grid)
}

func (e *countingEncoder) Finish() gpu.CommandBuffer {
	return &countedBuffer{inner: e.inner.Finish(), counts: e.counts}
}

// countingDevice records, per Submit call, the commands of every command
// buffer it forwards.
type countingDevice struct {
	gpu.Device
	submits [][]commandCounts
}

func (d *countingDevice) CreateEncoder() gpu.Encoder {
	return &countingEncoder{inner: d.Device.CreateEncoder()}
}

func (d *countingDevice) Submit(cmds ...gpu.CommandBuffer) error {
	inner := make([]gpu.CommandBuffer, len(cmds))
	counts := make([]commandCounts, len(cmds))
	for i, c := range cmds {
		cb := c.(*countedBuffer)
		inner[i], counts[i] = cb.inner, cb.counts
	}
	d.submits = append(d.submits, counts)
	return d.Device.Submit(inner...)
}

func (d *countingDevice) reset() { d.submits = nil }

func TestSubmissionGranularity(t *testing.T) {
	const n = 10
	dev := &countingDevice{Device: newDevice(t)}
	g := PathGraph(n)
	want := FloydWarshallHost(g)

	fw, err := NewFloydWarshall(dev)
	require.NoError(t, err)
	defer fw.Release()
	in, out, err := fw.CreateBuffers(n)
	require.NoError(t, err)
	defer in.Release()
	defer out.Release()

	dev.reset()
	require.NoError(t, fw.Stage(g, in))
	require.Len(t, dev.submits, 1, "staging is one submission")
	require.Len(t, dev.submits[0], 1)
	assert.Equal(t, commandCounts{writes: 1}, dev.submits[0][0])

	dev.reset()
	stats, err := fw.Run(in, out, n)
	require.NoError(t, err)
	require.Len(t, dev.submits, n+1, "one copy then one submission per pivot")
	assert.Equal(t, []commandCounts{{copies: 1}}, dev.submits[0])
	for k, sub := range dev.submits[1:] {
		require.Len(t, sub, 1, "pivot %d", k)
		assert.Equal(t, commandCounts{writes: 1, dispatches: 1}, sub[0], "pivot %d", k)
	}
	assert.Equal(t, n, stats.Dispatches)

	got, err := ReadMatrix(context.Background(), dev, out, fw.Layout(n))
	require.NoError(t, err)
	assert.True(t, got.Equal(want))

	tm, err := NewTropicalMatmul(dev, BlockedVariant())
	require.NoError(t, err)
	defer tm.Release()
	tin, tout, err := tm.CreateBuffers(n)
	require.NoError(t, err)
	defer tin.Release()
	defer tout.Release()
	require.NoError(t, tm.Stage(g, tin))

	dev.reset()
	_, err = tm.Run(tin, tout, n)
	require.NoError(t, err)
	require.Len(t, dev.submits, Rounds(n))
	for r, sub := range dev.submits {
		require.Len(t, sub, 1, "round %d", r)
		assert.Equal(t, 1, sub[0].dispatches, "round %d", r)
	}
}
