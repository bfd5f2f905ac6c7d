package coord

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPoint_Add(t *testing.T) {
	a := Point{X: 1, Y: 2, Z: 3}
	b := Point{X: 4, Y: 5, Z: 6}

	assert.Equal(t, Point{X: 5, Y: 7, Z: 9}, a.Add(b))
}

func TestPoint_Sub(t *testing.T) {
	mpos := Point{X: -10, Y: -20, Z: -5}
	wco := Point{X: -15, Y: -25, Z: -10}

	assert.Equal(t, Point{X: 5, Y: 5, Z: 5}, mpos.Sub(wco))
}

func TestPoint_DistanceXY(t *testing.T) {
	dist := Point{X: 1, Y: 2, Z: 3}.DistanceXY(4, 5)
	assert.InEpsilon(t, 4.24264, dist, .01)
}

func TestPoint_WithinXY(t *testing.T) {
	g59_3 := Point{X: -5, Y: -5, Z: -40}

	assert.True(t, g59_3.WithinXY(Point{X: -5, Y: -5, Z: 0}, 5))
	assert.True(t, g59_3.WithinXY(Point{X: -8, Y: -1, Z: -2}, 5))
	assert.False(t, g59_3.WithinXY(Point{X: -10.1, Y: -5}, 5))
}
