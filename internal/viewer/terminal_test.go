package viewer

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/survival-game/internal/config"
	"github.com/annel0/survival-game/internal/game"
	"github.com/annel0/survival-game/internal/render"
	"github.com/annel0/survival-game/internal/storage"
	"github.com/annel0/survival-game/internal/vec"
	"github.com/annel0/survival-game/internal/world/block"
)

func newTestSession(t *testing.T) *game.Session {
	t.Helper()
	cfg := config.Default()
	g := &cfg.Generator
	g.ReliefAmplitude = 0
	g.DetailAmplitude = 0
	g.SurfaceThreshold = 0
	g.DirtThreshold = 0
	g.StoneThreshold = 0
	g.BackThreshold = 0
	g.DecorationChance = 0

	reg, err := block.LoadDefault()
	require.NoError(t, err)
	s, err := game.Open(context.Background(), cfg, reg, storage.NewMemoryStore(), "viewer", game.WithSeed(3))
	require.NoError(t, err)
	return s
}

func newTestTerminal(t *testing.T) (*Terminal, tcell.SimulationScreen, *game.Session) {
	t.Helper()
	screen := tcell.NewSimulationScreen("UTF-8")
	s := newTestSession(t)
	return NewTerminal(screen, s, 60), screen, s
}

func key(r rune) *tcell.EventKey {
	return tcell.NewEventKey(tcell.KeyRune, r, tcell.ModNone)
}

func TestKeysHeldUntilTimeout(t *testing.T) {
	term, _, _ := newTestTerminal(t)
	now := time.Now()

	assert.True(t, term.HandleEvent(key('d'), now))
	assert.True(t, term.HandleEvent(tcell.NewEventKey(tcell.KeyUp, 0, tcell.ModNone), now))

	in := term.Input(now.Add(50 * time.Millisecond))
	assert.True(t, in.Right)
	assert.True(t, in.Jump)
	assert.False(t, in.Left)
	assert.False(t, in.Mine)

	in = term.Input(now.Add(holdTimeout))
	assert.False(t, in.Right, "клавиша отпущена после таймаута")
	assert.False(t, in.Jump)
}

func TestMineAndPutKeys(t *testing.T) {
	term, _, _ := newTestTerminal(t)
	now := time.Now()

	term.HandleEvent(key('m'), now)
	in := term.Input(now)
	assert.True(t, in.Mine)
	assert.Equal(t, vec.Vec2{}, in.Aim, "добыча перед игроком")

	term.HandleEvent(key('n'), now)
	in = term.Input(now)
	assert.True(t, in.Mine)
	assert.Equal(t, vec.Vec2{X: 0, Y: 1}, in.Aim, "добыча под игроком важнее")

	term.HandleEvent(key('p'), now)
	assert.True(t, term.Input(now).Put)
	assert.False(t, term.Input(now).Put, "установка срабатывает один раз")
}

func TestSessionKeys(t *testing.T) {
	term, _, s := newTestTerminal(t)
	now := time.Now()

	term.HandleEvent(key('b'), now)
	assert.True(t, s.BackLayer())
	term.HandleEvent(key('3'), now)
	assert.Equal(t, 2, s.Inventory().Selected())
	term.HandleEvent(key('0'), now)
	assert.Equal(t, 9, s.Inventory().Selected())
}

func TestQuitKeys(t *testing.T) {
	term, _, _ := newTestTerminal(t)
	now := time.Now()

	assert.False(t, term.HandleEvent(key('q'), now))
	assert.False(t, term.HandleEvent(tcell.NewEventKey(tcell.KeyEscape, 0, tcell.ModNone), now))
	assert.False(t, term.HandleEvent(tcell.NewEventKey(tcell.KeyCtrlC, 0, tcell.ModNone), now))
}

func TestDrawHalfBlocks(t *testing.T) {
	term, screen, s := newTestTerminal(t)
	require.NoError(t, screen.Init())
	defer screen.Fini()
	screen.SetSize(40, 21)

	for i := 0; i < 60; i++ {
		require.NoError(t, s.Step(1.0/60, game.Input{}))
	}
	s.Inventory().Add(1, 3)
	term.Draw()

	// Игрок в центре окна
	r, _, style, _ := screen.GetContent(20, 10)
	assert.Equal(t, halfBlock, r)
	fg, bg, _ := style.Decompose()
	assert.Equal(t, rgb(game.PlayerColor), fg)
	assert.Equal(t, rgb(game.PlayerColor), bg)

	// Верхний левый угол - небо
	_, _, style, _ = screen.GetContent(0, 0)
	fg, _, _ = style.Decompose()
	assert.Equal(t, rgb(render.SkyColor), fg)

	hud := term.HUD()
	assert.True(t, strings.HasPrefix(hud, "[1:dirt×3]"), hud)
	assert.Contains(t, hud, "слой: передний")
	r, _, _, _ = screen.GetContent(0, 20)
	assert.Equal(t, '[', r, "последняя строка - панель")
}

func TestRunStopsOnContextCancel(t *testing.T) {
	term, _, s := newTestTerminal(t)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	require.NoError(t, term.Run(ctx))
	assert.True(t, s.Player().Grounded, "кадры шли, игрок приземлился")
}
