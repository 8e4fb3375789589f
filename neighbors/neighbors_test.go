package neighbors

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMatrix(t *testing.T) {
	tests := []struct {
		name    string
		count   int
		dim     int
		data    []float32
		wantErr bool
	}{
		{"Valid", 2, 3, make([]float32, 6), false},
		{"ZeroCount", 0, 3, nil, true},
		{"ZeroDim", 2, 0, nil, true},
		{"ShortBuffer", 2, 3, make([]float32, 5), true},
		{"LongBuffer", 2, 3, make([]float32, 7), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewMatrix(tt.count, tt.dim, tt.data)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestMatrixRow(t *testing.T) {
	m, err := NewMatrix(2, 2, []float32{1, 2, 3, 4})
	require.NoError(t, err)

	assert.Equal(t, []float32{3, 4}, m.Row(1))

	// Rows alias the buffer and cannot grow into the next row.
	row := m.Row(0)
	row[0] = 9
	assert.Equal(t, float32(9), m.Data[0])
	assert.Equal(t, 2, cap(row))
}

func TestExcludeSelf(t *testing.T) {
	res := []Neighbor{{Index: 4, Distance: 0}, {Index: 1, Distance: 0}, {Index: 7, Distance: 2}, {Index: 3, Distance: 3}}

	got := ExcludeSelf(res, 4, 2)
	assert.Equal(t, []Neighbor{{Index: 1, Distance: 0}, {Index: 7, Distance: 2}}, got)
}

func TestExcludeSelfNotPresent(t *testing.T) {
	res := []Neighbor{{Index: 1, Distance: 0}, {Index: 7, Distance: 2}, {Index: 3, Distance: 3}}

	got := ExcludeSelf(res, 9, 2)
	assert.Len(t, got, 2)
	assert.Equal(t, 7, got[1].Index)
}
