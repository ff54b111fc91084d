package vec

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFloorDivNegative(t *testing.T) {
	assert.Equal(t, 0, FloorDiv(15, 16))
	assert.Equal(t, 1, FloorDiv(16, 16))
	assert.Equal(t, -1, FloorDiv(-1, 16))
	assert.Equal(t, -1, FloorDiv(-16, 16))
	assert.Equal(t, -2, FloorDiv(-17, 16))

	assert.Equal(t, 15, FloorMod(-1, 16))
	assert.Equal(t, 0, FloorMod(-16, 16))
}

func TestChunkAndLocalCoords(t *testing.T) {
	tile := Vec2{X: -1, Y: 17}
	assert.Equal(t, Vec2{X: -1, Y: 1}, tile.ToChunkCoords(16))
	assert.Equal(t, Local{Col: 15, Row: 1}, tile.LocalInChunk(16))

	back := tile.LocalInChunk(16).ToWorld(tile.ToChunkCoords(16), 16)
	assert.Equal(t, tile, back)
}

func TestLocalWrap(t *testing.T) {
	off, l := Local{Col: -1, Row: 3}.Wrap(4)
	assert.Equal(t, Vec2{X: -1, Y: 0}, off)
	assert.Equal(t, Local{Col: 3, Row: 3}, l)

	off, l = Local{Col: 2, Row: 4}.Wrap(4)
	assert.Equal(t, Vec2{X: 0, Y: 1}, off)
	assert.Equal(t, Local{Col: 2, Row: 0}, l)

	off, l = Local{Col: 1, Row: 1}.Wrap(4)
	assert.Equal(t, Vec2{}, off)
	assert.Equal(t, Local{Col: 1, Row: 1}, l)
}

func TestLocalClampAndBounds(t *testing.T) {
	assert.Equal(t, Local{Col: 0, Row: 3}, Local{Col: -5, Row: 9}.Clamp(4))
	assert.True(t, Local{Col: 3, Row: 0}.InBounds(4))
	assert.False(t, Local{Col: 4, Row: 0}.InBounds(4))
	assert.Equal(t, 7, Local{Col: 3, Row: 1}.Index(4))
}

func TestRectIntersects(t *testing.T) {
	a := Rect{X: 0, Y: 0, W: 16, H: 16}
	b := Rect{X: 16, Y: 0, W: 16, H: 16}
	assert.False(t, a.Intersects(b), "касание гранями не является пересечением")

	c := Rect{X: 15.5, Y: 8, W: 4, H: 4}
	assert.True(t, a.Intersects(c))

	in, ok := a.Intersection(c)
	assert.True(t, ok)
	assert.InDelta(t, 0.5, in.W, 1e-9)
	assert.InDelta(t, 4, in.H, 1e-9)
}

func TestRectTileRange(t *testing.T) {
	r := Rect{X: -8, Y: 0, W: 32, H: 16}
	lo, hi := r.TileRange(16)
	assert.Equal(t, Vec2{X: -1, Y: 0}, lo)
	assert.Equal(t, Vec2{X: 1, Y: 0}, hi)

	// Ровно по границе: правый тайл не захватывается
	lo, hi = Rect{X: 0, Y: 0, W: 32, H: 32}.TileRange(16)
	assert.Equal(t, Vec2{X: 0, Y: 0}, lo)
	assert.Equal(t, Vec2{X: 1, Y: 1}, hi)
}

func TestTileAt(t *testing.T) {
	assert.Equal(t, Vec2{X: -1, Y: 0}, TileAt(Vec2Float{X: -0.1, Y: 15.9}, 16))
	assert.Equal(t, Vec2{X: 2, Y: 1}, TileAt(Vec2Float{X: 32, Y: 16}, 16))
}
