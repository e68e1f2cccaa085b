package vision

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDevice(t *testing.T) {
	cases := []struct {
		in     string
		cuda   bool
		id     int
		hasErr bool
	}{
		{"", false, 0, false},
		{"cpu", false, 0, false},
		{"CUDA", true, 0, false},
		{"cuda:2", true, 2, false},
		{"cuda:-1", false, 0, true},
		{"cuda:x", false, 0, true},
		{"tpu", false, 0, true},
	}
	for _, c := range cases {
		cuda, id, err := ParseDevice(c.in)
		if c.hasErr {
			assert.Error(t, err, c.in)
			continue
		}
		require.NoError(t, err, c.in)
		assert.Equal(t, c.cuda, cuda, c.in)
		assert.Equal(t, c.id, id, c.in)
	}
}

func TestNewTensor(t *testing.T) {
	_, err := NewTensor([]int64{1, 2, 3}, make([]float32, 5))
	assert.Error(t, err)

	tt, err := NewTensor([]int64{1, 2, 3}, make([]float32, 6))
	require.NoError(t, err)
	assert.Equal(t, 2, tt.Dim(1))
	assert.Equal(t, -1, tt.Dim(3))

	z := ZeroTensor(1, 0, 4)
	assert.Empty(t, z.Data)
	assert.Equal(t, 0, ShapeSize(z.Shape))
}
