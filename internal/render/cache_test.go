package render

import (
	"bytes"
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/survival-game/internal/config"
	"github.com/annel0/survival-game/internal/vec"
	"github.com/annel0/survival-game/internal/world"
	"github.com/annel0/survival-game/internal/world/block"
)

const (
	grass  block.BlockID = 1
	dirt   block.BlockID = 2
	stone  block.BlockID = 3
	leaves block.BlockID = 6
	glass  block.BlockID = 7
)

func newTestAtlas(t *testing.T) (config.Engine, *block.Registry, *Atlas) {
	t.Helper()
	reg, err := block.LoadDefault()
	require.NoError(t, err)
	cfg := config.Default().Engine
	return cfg, reg, NewAtlas(cfg, reg)
}

// stubLoader генерирует чанки с ровной землёй и считает загрузки
type stubLoader struct {
	size   int
	reg    *block.Registry
	chunks map[vec.Vec2]*world.Chunk
	loads  map[vec.Vec2]int
}

func newStubLoader(size int, reg *block.Registry) *stubLoader {
	return &stubLoader{
		size:   size,
		reg:    reg,
		chunks: make(map[vec.Vec2]*world.Chunk),
		loads:  make(map[vec.Vec2]int),
	}
}

func (l *stubLoader) LoadChunk(cx, cy int) *world.Chunk {
	coords := vec.Vec2{X: cx, Y: cy}
	l.loads[coords]++
	if c, ok := l.chunks[coords]; ok {
		return c
	}
	c := world.NewChunk(coords, l.size, l.reg)
	for row := l.size / 2; row < l.size; row++ {
		for col := 0; col < l.size; col++ {
			id := dirt
			if row == l.size/2 {
				id = grass
			}
			c.SetBlock(world.LayerFront, vec.Local{Col: col, Row: row}, id)
			c.SetBlock(world.LayerBack, vec.Local{Col: col, Row: row}, stone)
		}
	}
	c.ClearDirty()
	l.chunks[coords] = c
	return c
}

func (l *stubLoader) totalLoads() int {
	n := 0
	for _, v := range l.loads {
		n += v
	}
	return n
}

// chunkCenter возвращает точку мира в центре чанка
func chunkCenter(cfg config.Engine, cx, cy int) vec.Vec2Float {
	px := float64(cfg.ChunkPixels())
	return vec.Vec2Float{X: (float64(cx) + 0.5) * px, Y: (float64(cy) + 0.5) * px}
}

func newRaster(cfg config.Engine) *image.RGBA {
	px := cfg.ChunkPixels()
	return image.NewRGBA(image.Rect(0, 0, px, px))
}

// firstDiff возвращает первый отличающийся пиксель двух растров
func firstDiff(a, b *image.RGBA) (image.Point, bool) {
	for y := a.Rect.Min.Y; y < a.Rect.Max.Y; y++ {
		for x := a.Rect.Min.X; x < a.Rect.Max.X; x++ {
			if a.RGBAAt(x, y) != b.RGBAAt(x, y) {
				return image.Pt(x, y), true
			}
		}
	}
	return image.Point{}, false
}

func TestSlotIndex(t *testing.T) {
	assert.Equal(t, 0, SlotIndex(0, 0))
	assert.Equal(t, 0, SlotIndex(3, 3))
	assert.Equal(t, 5, SlotIndex(2, 1))
	assert.Equal(t, 8, SlotIndex(-1, -1))
	assert.Equal(t, 8, SlotIndex(-4, 2))
}

func TestPartialRepaintMatchesFullRepaint(t *testing.T) {
	cfg, reg, atlas := newTestAtlas(t)
	cache := NewCache(cfg, atlas)
	bs := float64(cfg.BlockSize)

	loader := newStubLoader(cfg.ChunkSize, reg)
	ch := loader.LoadChunk(1, -1)
	origin := vec.Vec2Float{X: float64(cfg.ChunkPixels()), Y: -float64(cfg.ChunkPixels())}

	rock, err := reg.ElementByName("rock")
	require.NoError(t, err)
	tree, err := reg.ElementByName("large_tree")
	require.NoError(t, err)

	oldRock := &world.StaticElement{
		Type:          rock.ID,
		Rect:          vec.Rect{X: origin.X + 2*bs, Y: origin.Y + 8*bs - 14, W: 20, H: 14},
		Durability:    2,
		MaxDurability: 2,
	}
	ch.AddElement(oldRock, cfg.BlockSize)

	img := newRaster(cfg)
	ch.MarkAllDirty()
	cache.Repaint(img, ch)
	ch.ClearDirty()

	// Набор изменений всех видов
	ch.RemoveBlock(world.LayerFront, vec.Local{Col: 5, Row: 8})
	ch.RemoveBlock(world.LayerFront, vec.Local{Col: 6, Row: 8})
	ch.SetBlock(world.LayerFront, vec.Local{Col: 3, Row: 6}, grass)
	ch.SetBlock(world.LayerFront, vec.Local{Col: 12, Row: 9}, glass)
	ch.RemoveBlock(world.LayerFront, vec.Local{Col: 12, Row: 10})
	ch.SetBlock(world.LayerBack, vec.Local{Col: 9, Row: 3}, leaves)
	ch.SetBreaking(vec.Local{Col: 10, Row: 12}, 2)
	ch.SetBreaking(vec.Local{Col: 11, Row: 12}, cfg.BreakingStages-1)
	require.True(t, ch.RemoveElement(oldRock, cfg.BlockSize))
	ch.AddElement(&world.StaticElement{
		Type:          tree.ID,
		Rect:          vec.Rect{X: origin.X + 13*bs, Y: origin.Y + 8*bs - 90, W: 37, H: 90},
		Durability:    5,
		MaxDurability: 5,
	}, cfg.BlockSize)
	ch.Dirty().MarkRow(1)
	ch.Dirty().MarkCol(14)

	require.False(t, ch.Dirty().All, "изменения должны остаться частичными")
	cache.Repaint(img, ch)

	full := newRaster(cfg)
	ch.MarkAllDirty()
	cache.Repaint(full, ch)

	if p, differ := firstDiff(full, img); differ {
		t.Fatalf("частичная перерисовка расходится с полной в пикселе %v: %v != %v",
			p, img.RGBAAt(p.X, p.Y), full.RGBAAt(p.X, p.Y))
	}
}

func TestPartialRepaintAfterBreakingCleared(t *testing.T) {
	cfg, reg, atlas := newTestAtlas(t)
	cache := NewCache(cfg, atlas)
	ch := newStubLoader(cfg.ChunkSize, reg).LoadChunk(0, 0)
	l := vec.Local{Col: 4, Row: 12}

	img := newRaster(cfg)
	ch.SetBreaking(l, 3)
	ch.MarkAllDirty()
	cache.Repaint(img, ch)
	ch.ClearDirty()

	ch.ClearBreaking(l)
	cache.Repaint(img, ch)

	clean := newRaster(cfg)
	ch.MarkAllDirty()
	cache.Repaint(clean, ch)
	assert.True(t, bytes.Equal(clean.Pix, img.Pix), "трещины должны исчезнуть после снятия")
}

func TestUpdateWindowInitialLoad(t *testing.T) {
	cfg, reg, atlas := newTestAtlas(t)
	cache := NewCache(cfg, atlas)
	loader := newStubLoader(cfg.ChunkSize, reg)

	slots := cache.UpdateWindow(loader, chunkCenter(cfg, 0, 0))
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8}, slots)
	assert.Equal(t, 9, loader.totalLoads())
	assert.Equal(t, vec.Vec2{}, cache.Center())

	for cy := -1; cy <= 1; cy++ {
		for cx := -1; cx <= 1; cx++ {
			ch, _, ok := cache.Slot(cx, cy)
			require.True(t, ok, "чанк (%d,%d) должен быть в окне", cx, cy)
			assert.True(t, ch.Dirty().All)
		}
	}
	assert.Equal(t, 9, cache.RepaintDirty())
	assert.Equal(t, 0, cache.RepaintDirty(), "после перерисовки наборы изменений пусты")

	assert.Nil(t, cache.UpdateWindow(loader, chunkCenter(cfg, 0, 0)))
	assert.Equal(t, 9, loader.totalLoads())
}

func TestUpdateWindowShiftKeepsRetainedBuffers(t *testing.T) {
	cfg, reg, atlas := newTestAtlas(t)
	cache := NewCache(cfg, atlas)
	loader := newStubLoader(cfg.ChunkSize, reg)

	cache.UpdateWindow(loader, chunkCenter(cfg, 0, 0))
	cache.RepaintDirty()

	type snapshot struct {
		img *image.RGBA
		pix []byte
	}
	kept := make(map[vec.Vec2]snapshot)
	for cy := -1; cy <= 1; cy++ {
		for cx := 0; cx <= 1; cx++ {
			_, img, ok := cache.Slot(cx, cy)
			require.True(t, ok)
			kept[vec.Vec2{X: cx, Y: cy}] = snapshot{img: img, pix: append([]byte(nil), img.Pix...)}
		}
	}

	slots := cache.UpdateWindow(loader, chunkCenter(cfg, 1, 0))
	assert.Equal(t, []int{2, 5, 8}, slots, "заменяется только освободившийся столбец")
	assert.Equal(t, vec.Vec2{X: 1, Y: 0}, cache.Center())
	assert.Equal(t, 12, loader.totalLoads(), "загружен только новый столбец")

	for coords, snap := range kept {
		ch, img, ok := cache.Slot(coords.X, coords.Y)
		require.True(t, ok)
		assert.Same(t, snap.img, img)
		assert.True(t, bytes.Equal(snap.pix, img.Pix), "растр чанка %v не должен меняться", coords)
		assert.True(t, ch.Dirty().Empty(), "чанк %v не должен помечаться", coords)
	}
	for cy := -1; cy <= 1; cy++ {
		_, _, ok := cache.Slot(-1, cy)
		assert.False(t, ok, "чанк (-1,%d) должен покинуть окно", cy)

		ch, _, ok := cache.Slot(2, cy)
		require.True(t, ok)
		assert.Equal(t, 1, loader.loads[vec.Vec2{X: 2, Y: cy}])
		assert.True(t, ch.Dirty().All, "новый чанк (2,%d) перерисовывается целиком", cy)
	}
	assert.Equal(t, 3, cache.RepaintDirty())
}

func TestUpdateWindowDiagonalShift(t *testing.T) {
	cfg, reg, atlas := newTestAtlas(t)
	cache := NewCache(cfg, atlas)
	loader := newStubLoader(cfg.ChunkSize, reg)

	cache.UpdateWindow(loader, chunkCenter(cfg, 0, 0))
	cache.RepaintDirty()

	slots := cache.UpdateWindow(loader, chunkCenter(cfg, -1, -1))
	assert.Len(t, slots, 5, "открываются строка и столбец")
	assert.Equal(t, 14, loader.totalLoads())
	_, _, ok := cache.Slot(-2, -2)
	assert.True(t, ok)
	_, _, ok = cache.Slot(1, 1)
	assert.False(t, ok)
}

func TestUpdateWindowLargeJumpReinitializes(t *testing.T) {
	cfg, reg, atlas := newTestAtlas(t)
	cache := NewCache(cfg, atlas)
	loader := newStubLoader(cfg.ChunkSize, reg)

	cache.UpdateWindow(loader, chunkCenter(cfg, 0, 0))
	cache.RepaintDirty()

	slots := cache.UpdateWindow(loader, chunkCenter(cfg, 5, 5))
	assert.Len(t, slots, 9)
	assert.Equal(t, vec.Vec2{X: 5, Y: 5}, cache.Center())
	for cy := 4; cy <= 6; cy++ {
		for cx := 4; cx <= 6; cx++ {
			ch, _, ok := cache.Slot(cx, cy)
			require.True(t, ok)
			assert.True(t, ch.Dirty().All)
		}
	}
}

func TestResetForcesFullReload(t *testing.T) {
	cfg, reg, atlas := newTestAtlas(t)
	cache := NewCache(cfg, atlas)
	loader := newStubLoader(cfg.ChunkSize, reg)

	cache.UpdateWindow(loader, chunkCenter(cfg, 0, 0))
	cache.RepaintDirty()
	cache.Reset()

	_, _, ok := cache.Slot(0, 0)
	assert.False(t, ok)
	assert.Len(t, cache.UpdateWindow(loader, chunkCenter(cfg, 0, 0)), 9)
	assert.Equal(t, 18, loader.totalLoads())
}

func TestCompositeCentersViewer(t *testing.T) {
	cfg, reg, atlas := newTestAtlas(t)
	cache := NewCache(cfg, atlas)
	loader := newStubLoader(cfg.ChunkSize, reg)

	// Центр чанка (0,0) приходится на верх травы
	viewer := chunkCenter(cfg, 0, 0)
	cache.UpdateWindow(loader, viewer)
	cache.RepaintDirty()

	dst := image.NewRGBA(image.Rect(0, 0, 64, 48))
	cache.Composite(dst, viewer)

	_, img, ok := cache.Slot(0, 0)
	require.True(t, ok)
	wx, wy := int(viewer.X), int(viewer.Y)
	assert.Equal(t, img.RGBAAt(wx, wy), dst.RGBAAt(32, 24), "центр окна показывает точку наблюдателя")
	assert.Equal(t, SkyColor, dst.RGBAAt(32, 0), "над землёй видно небо")
}

func TestAtlasSprites(t *testing.T) {
	cfg, _, atlas := newTestAtlas(t)
	last := cfg.BlockSize - 1

	assert.Nil(t, atlas.Block(block.Empty, 0, world.LayerFront))

	ramp := atlas.Block(dirt, world.RampRight, world.LayerFront)
	require.NotNil(t, ramp)
	assert.Zero(t, ramp.RGBAAt(0, 0).A, "над диагональю ската пусто")
	assert.Equal(t, uint8(255), ramp.RGBAAt(last, last).A)

	left := atlas.Block(dirt, world.RampLeft, world.LayerFront)
	assert.Zero(t, left.RGBAAt(last, 0).A)
	assert.Equal(t, uint8(255), left.RGBAAt(0, last).A)

	all := world.South | world.East | world.North | world.West
	front := atlas.Block(stone, all, world.LayerFront).RGBAAt(8, 8)
	back := atlas.Block(stone, all, world.LayerBack).RGBAAt(8, 8)
	assert.Less(t, int(back.R)+int(back.G)+int(back.B), int(front.R)+int(front.G)+int(front.B), "задний слой темнее")

	assert.Less(t, atlas.Block(glass, all, world.LayerFront).RGBAAt(8, 8).A, uint8(255), "стекло полупрозрачно")

	require.Equal(t, cfg.BreakingStages, atlas.Stages())
	assert.Nil(t, atlas.Crack(-1))
	assert.Nil(t, atlas.Crack(cfg.BreakingStages))
	prev := 0
	for s := 0; s < atlas.Stages(); s++ {
		n := 0
		crack := atlas.Crack(s)
		for i := 3; i < len(crack.Pix); i += 4 {
			if crack.Pix[i] != 0 {
				n++
			}
		}
		assert.GreaterOrEqual(t, n, prev, "стадия %d не может иметь меньше трещин", s)
		prev = n
	}
	assert.Greater(t, prev, 0)
}
