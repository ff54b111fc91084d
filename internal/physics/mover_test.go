package physics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/survival-game/internal/config"
	"github.com/annel0/survival-game/internal/vec"
	"github.com/annel0/survival-game/internal/world"
)

const bs = 16.0

func newTestMover() *Mover {
	cfg := config.Default()
	return NewMover(cfg.Engine, cfg.Physics)
}

func solid(x, y int, mask world.Mask) world.CollisionRect {
	return world.CollisionRect{
		Tile: vec.Vec2{X: x, Y: y},
		Mask: mask,
		Rect: vec.Rect{X: float64(x) * bs, Y: float64(y) * bs, W: bs, H: bs},
	}
}

// floor строит ряд обычных клеток на строке y от x0 до x1 включительно
func floor(x0, x1, y int) []world.CollisionRect {
	var out []world.CollisionRect
	for x := x0; x <= x1; x++ {
		out = append(out, solid(x, y, world.East|world.West))
	}
	return out
}

func newBody(x, feet float64) *Body {
	b := &Body{Rect: vec.Rect{X: x, W: 12, H: 28}, Gravity: true}
	b.SetFeet(feet)
	return b
}

func TestApplyGravityClampsFallSpeed(t *testing.T) {
	m := newTestMover()
	b := &Body{}
	for i := 0; i < 1000; i++ {
		m.ApplyGravity(b, 1.0/60)
	}
	assert.InDelta(t, 900, b.Velocity.Y, 1e-9)
}

func TestLandOnFloor(t *testing.T) {
	m := newTestMover()
	rects := floor(0, 4, 5)
	b := newBody(20, 40)

	for i := 0; i < 200; i++ {
		m.Step(b, rects, 1.0/60)
	}
	assert.True(t, b.Grounded)
	assert.InDelta(t, 80, b.Feet(), 1e-9)
	assert.Zero(t, b.Velocity.Y)
}

func TestNoTunnelingThroughThinFloor(t *testing.T) {
	m := newTestMover()
	rects := floor(0, 2, 10)
	b := newBody(8, 0)
	b.Velocity.Y = 900

	for i := 0; i < 120; i++ {
		m.Step(b, rects, 1.0/60)
		if b.Feet() > 160+epsilon {
			t.Fatalf("тело прошло сквозь пол на шаге %d: ноги %.3f", i, b.Feet())
		}
	}
	assert.True(t, b.Grounded)
}

func TestNoTunnelingThroughWall(t *testing.T) {
	m := newTestMover()
	rects := []world.CollisionRect{solid(10, 0, 0), solid(10, 1, 0)}
	b := &Body{Rect: vec.Rect{X: 0, Y: 4, W: 12, H: 20}}

	for i := 0; i < 40; i++ {
		// Ровно одна клетка за шаг
		b.Velocity.X = bs * 60
		m.Move(b, rects, 1.0/60)
		require.LessOrEqual(t, b.Rect.Right(), 160+epsilon, "шаг %d", i)
	}
	assert.InDelta(t, 160, b.Rect.Right(), 1e-9)
	assert.Zero(t, b.Velocity.X)
}

func TestHeadHitsCeiling(t *testing.T) {
	m := newTestMover()
	rects := []world.CollisionRect{solid(1, 0, world.South|world.East)}
	b := newBody(18, 60)
	b.Velocity.Y = -600

	for i := 0; i < 10; i++ {
		m.Move(b, rects, 1.0/60)
	}
	assert.InDelta(t, 16, b.Rect.Top(), 1e-9, "скат над головой - обычное препятствие")
	assert.False(t, b.Grounded)
}

// rampScene - пол на строке 5, скат RampRight в (3,4), ступень (4,4) и пол выше
func rampScene(withOverhang bool) []world.CollisionRect {
	rects := floor(0, 20, 5)
	rects = append(rects, solid(3, 4, world.RampRight), solid(4, 4, world.South|world.East|world.West))
	for x := 5; x <= 20; x++ {
		rects = append(rects, solid(x, 4, world.South|world.East|world.West))
	}
	if withOverhang {
		rects = append(rects, solid(4, 3, world.South))
	}
	return rects
}

func TestRampClimbIsContinuousAndMonotonic(t *testing.T) {
	m := newTestMover()
	rects := rampScene(false)
	b := newBody(20, 80)

	const dt = 1.0 / 60
	prevFeet, prevX := b.Feet(), b.Rect.X
	for i := 0; i < 150; i++ {
		b.Velocity.X = 60
		m.Step(b, rects, dt)

		dx := b.Rect.X - prevX
		df := prevFeet - b.Feet()
		if df < -epsilon {
			t.Fatalf("шаг %d: тело опустилось при подъёме (%.4f -> %.4f)", i, prevFeet, b.Feet())
		}
		if df > dx+1e-6 {
			t.Fatalf("шаг %d: скачок высоты %.4f при смещении %.4f", i, df, dx)
		}
		assert.True(t, b.Grounded, "шаг %d", i)
		prevFeet, prevX = b.Feet(), b.Rect.X
	}

	assert.InDelta(t, 64, b.Feet(), 1e-9, "тело должно подняться на ступень")
	assert.Greater(t, b.Rect.X, 64.0)
	assert.InDelta(t, 60, b.Velocity.X, 1e-9)

	// Спуск обратно: тело идёт по склону, не отрываясь от него
	for i := 0; i < 170; i++ {
		b.Velocity.X = -60
		m.Step(b, rects, dt)

		dx := prevX - b.Rect.X
		df := b.Feet() - prevFeet
		if df < -epsilon {
			t.Fatalf("спуск, шаг %d: тело поднялось (%.4f -> %.4f)", i, prevFeet, b.Feet())
		}
		if df > dx+1e-6 {
			t.Fatalf("спуск, шаг %d: скачок высоты %.4f при смещении %.4f", i, df, dx)
		}
		assert.True(t, b.Grounded, "спуск, шаг %d", i)
		prevFeet, prevX = b.Feet(), b.Rect.X
	}
	assert.InDelta(t, 80, b.Feet(), 1e-9, "тело спустилось на пол")
}

func TestRampUnderLowCeilingStopsBody(t *testing.T) {
	m := newTestMover()
	// Потолок на строке 2: над полом остаётся 32 пикселя, ступень не пройти
	rects := append(rampScene(false), floor(0, 8, 2)...)
	b := newBody(20, 80)

	prevX := b.Rect.X
	for i := 0; i < 60; i++ {
		b.Velocity.X = 60
		m.Step(b, rects, 1.0/60)

		require.GreaterOrEqual(t, b.Rect.Top(), 48-1e-6, "шаг %d: голова в потолке", i)
		require.GreaterOrEqual(t, b.Rect.X, prevX-1e-6, "шаг %d: тело отброшено назад", i)
		prevX = b.Rect.X
	}
	assert.InDelta(t, 40, b.Rect.X, 1e-9, "тело остановилось, коснувшись потолка")
	assert.InDelta(t, 76, b.Feet(), 1e-9)
	assert.Zero(t, b.Velocity.X)
	assert.True(t, b.Grounded)
}

func TestOverlappingRampsIndependentOfOrder(t *testing.T) {
	m := newTestMover()
	rects := append(floor(0, 8, 5), solid(3, 4, world.RampRight), solid(4, 4, world.RampRight))
	reversed := make([]world.CollisionRect, len(rects))
	for i, r := range rects {
		reversed[len(rects)-1-i] = r
	}

	for _, scene := range [][]world.CollisionRect{rects, reversed} {
		b := newBody(57, 80)
		b.Velocity.X = 60
		m.Move(b, scene, 1.0/60)
		assert.InDelta(t, 58, b.Rect.X, 1e-9)
		assert.InDelta(t, 64, b.Feet(), 1e-9, "побеждает самая высокая поверхность")
		assert.True(t, b.Grounded)
	}
}

func TestRampSurfaceIsLinear(t *testing.T) {
	r := solid(3, 4, world.RampRight)
	for _, right := range []float64{48, 52, 56, 60, 64, 70} {
		b := &Body{Rect: vec.Rect{X: right - 12, W: 12, H: 28}}
		p := right - 48
		if p > 16 {
			p = 16
		}
		assert.InDelta(t, 80-p, rampSurface(b, r), 1e-9, "правая грань %.0f", right)
	}

	l := solid(3, 4, world.RampLeft)
	for _, left := range []float64{64, 60, 50, 48, 40} {
		b := &Body{Rect: vec.Rect{X: left, W: 12, H: 28}}
		p := 64 - left
		if p > 16 {
			p = 16
		}
		assert.InDelta(t, 80-p, rampSurface(b, l), 1e-9, "левая грань %.0f", left)
	}
}

func TestRampLeftClimbWestward(t *testing.T) {
	m := newTestMover()
	// Зеркальная сцена: ступень слева, RampLeft в (4,4), пол справа
	rects := floor(0, 8, 5)
	for x := 0; x <= 3; x++ {
		rects = append(rects, solid(x, 4, world.South|world.East|world.West))
	}
	rects = append(rects, solid(4, 4, world.RampLeft))
	b := newBody(120, 80)

	const dt = 1.0 / 60
	prevFeet := b.Feet()
	for i := 0; i < 100; i++ {
		b.Velocity.X = -60
		m.Step(b, rects, dt)
		if b.Feet() > prevFeet+epsilon {
			t.Fatalf("шаг %d: тело опустилось при подъёме (%.4f -> %.4f)", i, prevFeet, b.Feet())
		}
		prevFeet = b.Feet()
	}
	assert.InDelta(t, 64, b.Feet(), 1e-9)
}

func TestRampOneAboveClamp(t *testing.T) {
	m := newTestMover()
	rects := rampScene(true)
	b := newBody(20, 80)

	for i := 0; i < 150; i++ {
		if b.Velocity.X == 0 && i > 0 {
			break
		}
		b.Velocity.X = 60
		m.Step(b, rects, 1.0/60)
	}
	assert.InDelta(t, 64, b.Rect.Right(), 1e-9, "тело упирается в клетку над соседом ската")
	assert.Zero(t, b.Velocity.X)
	assert.LessOrEqual(t, b.Feet(), 80.0)
	assert.GreaterOrEqual(t, b.Feet(), 64.0)
}

func TestRampWithoutOverheadKeepsVelocity(t *testing.T) {
	m := newTestMover()
	rects := rampScene(false)
	b := newBody(40, 80)

	b.Velocity.X = 60
	m.Step(b, rects, 1.0/60)
	assert.Equal(t, 60.0, b.Velocity.X, "подъём по скату не гасит горизонтальную скорость")
}

func TestQueryAreaIncludesMargin(t *testing.T) {
	m := newTestMover()
	b := newBody(0, 28)
	center, size := m.QueryArea(b)
	assert.Equal(t, b.Center(), center)
	assert.Equal(t, vec.Vec2Float{X: 12 + 2*3*bs, Y: 28 + 2*3*bs}, size)
}
