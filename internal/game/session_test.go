package game

import (
	"context"
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/survival-game/internal/config"
	"github.com/annel0/survival-game/internal/storage"
	"github.com/annel0/survival-game/internal/vec"
	"github.com/annel0/survival-game/internal/world"
	"github.com/annel0/survival-game/internal/world/block"
)

const frame = 1.0 / 60

// flatConfig - ровная земля на строке 0 без пещер и деревьев
func flatConfig() *config.Config {
	cfg := config.Default()
	g := &cfg.Generator
	g.ReliefAmplitude = 0
	g.DetailAmplitude = 0
	g.SurfaceThreshold = 0
	g.DirtThreshold = 0
	g.StoneThreshold = 0
	g.BackThreshold = 0
	g.DecorationChance = 0
	return cfg
}

func openSession(t *testing.T, store storage.Store) (*Session, *block.Registry) {
	t.Helper()
	reg, err := block.LoadDefault()
	require.NoError(t, err)
	s, err := Open(context.Background(), flatConfig(), reg, store, "sandbox", WithSeed(7))
	require.NoError(t, err)
	return s, reg
}

func settle(t *testing.T, s *Session, frames int) {
	t.Helper()
	for i := 0; i < frames; i++ {
		require.NoError(t, s.Step(frame, Input{}))
	}
}

func itemID(t *testing.T, reg *block.Registry, name string) block.ItemID {
	t.Helper()
	def, err := reg.ItemByName(name)
	require.NoError(t, err)
	return def.ID
}

// mineBelow добывает клетку под игроком, пока в инвентаре не появится предмет
func mineBelow(t *testing.T, s *Session, item block.ItemID) {
	t.Helper()
	for i := 0; i < 240; i++ {
		require.NoError(t, s.Step(frame, Input{Mine: true, Aim: vec.Vec2{X: 0, Y: 1}}))
		if s.Inventory().Count(item) > 0 {
			return
		}
	}
	t.Fatalf("клетка под игроком не разрушена за 240 кадров")
}

func TestOpenCreatesWorldAndSpawns(t *testing.T) {
	store := storage.NewMemoryStore()
	s, _ := openSession(t, store)

	info, err := store.GetWorld(context.Background(), "sandbox")
	require.NoError(t, err)
	assert.Equal(t, int64(7), info.Seed)
	assert.InDelta(t, -16, s.Player().Feet(), 1e-9, "игрок появляется на клетку выше поверхности")

	_, _, ok := s.Cache().Slot(0, 0)
	assert.True(t, ok, "окно отрисовки строится при открытии")

	settle(t, s, 60)
	assert.True(t, s.Player().Grounded)
	assert.InDelta(t, 0, s.Player().Feet(), 1e-9)
}

func TestMinePicksUpDrops(t *testing.T) {
	s, reg := openSession(t, storage.NewMemoryStore())
	settle(t, s, 60)

	dirt := itemID(t, reg, "dirt")
	mineBelow(t, s, dirt)

	assert.Equal(t, 1, s.Inventory().Count(dirt), "трава даёт одну землю")
	assert.Equal(t, int64(1), s.Score())
	id, ok := s.World().BlockAt(vec.Vec2{X: 0, Y: 0}, world.LayerFront)
	require.True(t, ok)
	assert.Equal(t, block.Empty, id)

	settle(t, s, 60)
	assert.InDelta(t, 16, s.Player().Feet(), 1e-9, "игрок падает в яму")
}

func TestPutConsumesInventory(t *testing.T) {
	s, reg := openSession(t, storage.NewMemoryStore())
	settle(t, s, 60)
	dirt := itemID(t, reg, "dirt")
	mineBelow(t, s, dirt)
	settle(t, s, 60)

	target := vec.Vec2{X: 1, Y: -1}
	require.NoError(t, s.Step(frame, Input{Put: true, Aim: vec.Vec2{X: 1, Y: -1}}))
	assert.Zero(t, s.Inventory().Count(dirt))
	id, _ := s.World().BlockAt(target, world.LayerFront)
	def, err := reg.BlockByName("dirt")
	require.NoError(t, err)
	assert.Equal(t, def.ID, id)

	// Без предметов ставить нечего
	require.NoError(t, s.Step(frame, Input{Put: true, Aim: vec.Vec2{X: 2, Y: -1}}))
	id, _ = s.World().BlockAt(vec.Vec2{X: 2, Y: -1}, world.LayerFront)
	assert.Equal(t, block.Empty, id)
}

func TestPutOnBackLayer(t *testing.T) {
	s, reg := openSession(t, storage.NewMemoryStore())
	settle(t, s, 60)
	stone := itemID(t, reg, "stone")
	require.Equal(t, 1, s.Inventory().Add(stone, 1))

	s.ToggleBackLayer()
	require.True(t, s.BackLayer())
	require.NoError(t, s.Step(frame, Input{Put: true, Aim: vec.Vec2{X: 1, Y: 0}}))

	front, _ := s.World().BlockAt(vec.Vec2{X: 1, Y: -1}, world.LayerFront)
	back, _ := s.World().BlockAt(vec.Vec2{X: 1, Y: -1}, world.LayerBack)
	assert.Equal(t, block.Empty, front)
	assert.NotEqual(t, block.Empty, back)
}

func TestAimOutOfReachIgnored(t *testing.T) {
	s, _ := openSession(t, storage.NewMemoryStore())
	settle(t, s, 60)

	for i := 0; i < 120; i++ {
		require.NoError(t, s.Step(frame, Input{Mine: true, Aim: vec.Vec2{X: 0, Y: 10}}))
	}
	_, ok := s.World().MiningDamage(vec.Vec2{X: 0, Y: 9})
	assert.False(t, ok)
}

func TestLargeStepDoesNotTunnel(t *testing.T) {
	s, _ := openSession(t, storage.NewMemoryStore())
	require.NoError(t, s.Step(2.0, Input{}))
	assert.InDelta(t, 0, s.Player().Feet(), 1e-9)
	assert.True(t, s.Player().Grounded)
}

func TestWalkAndJump(t *testing.T) {
	s, _ := openSession(t, storage.NewMemoryStore())
	settle(t, s, 60)

	x := s.Player().Rect.X
	for i := 0; i < 30; i++ {
		require.NoError(t, s.Step(frame, Input{Right: true}))
	}
	assert.InDelta(t, x+60, s.Player().Rect.X, 1e-6, "полсекунды ходьбы вправо")

	require.NoError(t, s.Step(frame, Input{Jump: true}))
	assert.False(t, s.Player().Grounded)
	assert.Less(t, s.Player().Feet(), 0.0)
}

func TestCloseAndReopenRestoresState(t *testing.T) {
	store := storage.NewMemoryStore()
	s, reg := openSession(t, store)
	settle(t, s, 60)
	dirt := itemID(t, reg, "dirt")
	mineBelow(t, s, dirt)
	settle(t, s, 60)
	stone := itemID(t, reg, "stone")
	s.Inventory().Add(stone, 5)

	pos := s.Player().Rect
	require.NoError(t, s.Close(context.Background()))

	info, err := store.GetWorld(context.Background(), "sandbox")
	require.NoError(t, err)
	assert.Equal(t, int64(1), info.Score)

	again, _ := openSession(t, store)
	assert.Equal(t, pos.X, again.Player().Rect.X)
	assert.Equal(t, pos.Y, again.Player().Rect.Y)
	assert.Equal(t, 1, again.Inventory().Count(dirt))
	assert.Equal(t, 5, again.Inventory().Count(stone))
	assert.Equal(t, int64(1), again.Score())

	id, _ := again.World().BlockAt(vec.Vec2{X: 0, Y: 0}, world.LayerFront)
	assert.Equal(t, block.Empty, id, "разрушенный блок сохраняется")
}

func TestRenderDrawsPlayerAtCenter(t *testing.T) {
	s, _ := openSession(t, storage.NewMemoryStore())
	settle(t, s, 60)

	dst := image.NewRGBA(image.Rect(0, 0, 64, 48))
	s.Render(dst)
	assert.Equal(t, PlayerColor, dst.RGBAAt(32, 24))
}
