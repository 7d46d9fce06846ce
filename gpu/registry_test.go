package gpu

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry(t *testing.T) {
	Register("test-unavailable", func(ctx context.Context) (Device, error) {
		return nil, NewDeviceError("Open", "no hardware", nil)
	})

	assert.Contains(t, Backends(), "test-unavailable")

	_, err := Open(context.Background(), "test-unavailable")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDeviceUnavailable)

	_, err = Open(context.Background(), "no-such-backend")
	assert.ErrorIs(t, err, ErrDeviceUnavailable)

	assert.Panics(t, func() {
		Register("test-unavailable", nil)
	})
}

func TestByteViews(t *testing.T) {
	f := []float32{0, 1, 2.5}
	b := Float32Bytes(f)
	require.Len(t, b, 12)
	assert.Equal(t, f, BytesFloat32(b))

	u := []uint32{7, 0xffffffff}
	assert.Equal(t, u, BytesUint32(Uint32Bytes(u)))

	assert.Nil(t, Float32Bytes(nil))
	assert.Nil(t, BytesFloat32([]byte{1, 2}))
}

func TestUsageHas(t *testing.T) {
	u := UsageStorage | UsageCopyDst
	assert.True(t, u.Has(UsageStorage))
	assert.True(t, u.Has(UsageStorage|UsageCopyDst))
	assert.False(t, u.Has(UsageCopySrc))
}

func TestWorkgroupGlobal(t *testing.T) {
	wg := Workgroup{ID: Dim3{X: 2, Y: 3, Z: 0}, Size: Dim3{X: 16, Y: 8, Z: 1}}
	assert.Equal(t, 37, wg.GlobalX(5))
	assert.Equal(t, 25, wg.GlobalY(1))
	assert.Equal(t, 128, wg.Size.Size())
	assert.Equal(t, "(16,8,1)", wg.Size.String())
}
