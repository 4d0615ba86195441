package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLinearImageAccess(t *testing.T) {
	img := NewLinearImage(4, 3)
	img.Set(2, 1, 0.25)

	assert.Equal(t, 0.25, img.At(2, 1))
	assert.Equal(t, 0.25, img.AtPixel(Pixel{X: 2, Y: 1}))
	assert.Equal(t, []float64{0, 0, 0.25, 0}, img.Row(1))
	assert.True(t, img.InBounds(Pixel{X: 3, Y: 2}))
	assert.False(t, img.InBounds(Pixel{X: 4, Y: 0}))
	assert.False(t, img.InBounds(Pixel{X: 0, Y: -1}))
}

func TestLinearImageCloneIsDeep(t *testing.T) {
	img := NewLinearImage(2, 2)
	img.Set(0, 0, 1)
	clone := img.Clone()
	clone.Set(0, 0, 0.5)
	assert.Equal(t, 1.0, img.At(0, 0))
}

func TestSquaredDifference(t *testing.T) {
	a := NewLinearImage(2, 1)
	b := NewLinearImage(2, 1)
	a.Set(0, 0, 0.5)
	b.Set(1, 0, 0.25)

	sum, err := a.SquaredDifference(b)
	require.NoError(t, err)
	assert.InDelta(t, 0.3125, sum, 1e-12)

	_, err = a.SquaredDifference(NewLinearImage(1, 2))
	assert.ErrorIs(t, err, ErrSizeMismatch)
}

func TestPointAndPixel(t *testing.T) {
	p := NewPoint(2.6, -1.4)
	assert.Equal(t, Pixel{X: 3, Y: -1}, p.Round())
	assert.InDelta(t, 5, NewPoint(0, 0).Distance(NewPoint(3, 4)), 1e-12)
	assert.Equal(t, Pixel{X: 2, Y: -2}, Pixel{X: 1, Y: -1}.Scale(2))
	assert.Equal(t, Pixel{X: 3, Y: 1}, Pixel{X: 1, Y: 1}.Add(Pixel{X: 2}))
	assert.Equal(t, NewPoint(1, 2), Pixel{X: 1, Y: 2}.Point())
}
