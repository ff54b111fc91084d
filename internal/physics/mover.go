package physics

import (
	"math"

	"github.com/annel0/survival-game/internal/config"
	"github.com/annel0/survival-game/internal/vec"
	"github.com/annel0/survival-game/internal/world"
)

// Mover продвигает тела сквозь набор твёрдых клеток.
// Смещение за шаг не должно превышать одной клетки, иначе возможно туннелирование.
type Mover struct {
	blockSize    float64
	gravity      float64
	maxFallSpeed float64
	margin       float64
}

// NewMover создаёт Mover
func NewMover(cfg config.Engine, p config.Physics) *Mover {
	return &Mover{
		blockSize:    float64(cfg.BlockSize),
		gravity:      p.Gravity,
		maxFallSpeed: p.MaxFallSpeed,
		margin:       float64(p.QueryMarginTiles * cfg.BlockSize),
	}
}

// QueryArea возвращает центр и размер области, в которой нужно запросить
// препятствия для тела
func (m *Mover) QueryArea(b *Body) (center, size vec.Vec2Float) {
	return b.Center(), vec.Vec2Float{X: b.Rect.W + 2*m.margin, Y: b.Rect.H + 2*m.margin}
}

// ApplyGravity ускоряет тело вниз, ограничивая скорость падения
func (m *Mover) ApplyGravity(b *Body, dt float64) {
	b.Velocity.Y = math.Min(b.Velocity.Y+m.gravity*dt, m.maxFallSpeed)
}

// Step применяет гравитацию (если тело ей подвержено) и двигает тело
func (m *Mover) Step(b *Body, rects []world.CollisionRect, dt float64) {
	if b.Gravity {
		m.ApplyGravity(b, dt)
	}
	m.Move(b, rects, dt)
}

// Move смещает тело на Velocity*dt: сначала по X, затем по Y.
// Скаты под ногами не блокируют движение, а поднимают тело по склону.
func (m *Mover) Move(b *Body, rects []world.CollisionRect, dt float64) {
	wasGrounded := b.Grounded
	b.Grounded = false

	byTile := make(map[vec.Vec2]world.CollisionRect, len(rects))
	for _, r := range rects {
		byTile[r.Tile] = r
	}

	// Горизонтальный проход
	vx := b.Velocity.X
	fromX := b.Rect.X
	b.Rect.X += vx * dt
	beforeLift := b.Rect.Y
	if m.followRamps(b, rects, byTile, fromX, wasGrounded) {
		b.Grounded = true
	}
	forEachOrdered(rects, vx, func(r world.CollisionRect) {
		if vx == 0 || !overlaps(b, r.Rect) || m.rampUnderFeet(b, r) {
			return
		}
		// Клетки, в которые тело попало только из-за подъёма по скату, не толкают его назад
		moved := vec.Rect{X: b.Rect.X, Y: beforeLift, W: b.Rect.W, H: b.Rect.H}
		if !moved.Intersects(r.Rect) {
			return
		}
		clampX(b, r.Rect, vx)
		b.Velocity.X = 0
	})

	// Вертикальный проход
	vy := b.Velocity.Y
	b.Rect.Y += vy * dt
	forEachOrdered(rects, vy, func(r world.CollisionRect) {
		if !overlaps(b, r.Rect) {
			return
		}
		if m.rampUnderFeet(b, r) {
			if surface := rampSurface(b, r); b.Feet() >= surface-epsilon {
				b.SetFeet(surface)
				b.Velocity.Y = 0
				b.Grounded = true
			}
			return
		}
		switch {
		case vy > 0:
			b.SetFeet(r.Rect.Top())
			b.Velocity.Y = 0
			b.Grounded = true
		case vy < 0:
			b.Rect.Y = r.Rect.Bottom()
			b.Velocity.Y = 0
		}
	})
}

// rampUnderFeet сообщает, что r - скат, на который тело опирается ногами.
// Скат на уровне головы или при движении вверх - обычное препятствие.
func (m *Mover) rampUnderFeet(b *Body, r world.CollisionRect) bool {
	return isRamp(r) && b.Velocity.Y >= 0 && feetInRow(b, r.Rect)
}

// followRamps ставит тело на поверхность скатов под ногами: поднимает при подъёме
// и прижимает к склону при спуске, если тело стояло на опоре. Возвращает true,
// если тело опирается на скат.
func (m *Mover) followRamps(b *Body, rects []world.CollisionRect, byTile map[vec.Vec2]world.CollisionRect, fromX float64, wasGrounded bool) bool {
	supported := false
	dx := math.Abs(b.Rect.X - fromX)
	forEachOrdered(rects, b.Velocity.X, func(r world.CollisionRect) {
		if !isRamp(r) || b.Velocity.Y < 0 {
			return
		}
		surface := rampSurface(b, r)
		feet := b.Feet()

		if overlaps(b, r.Rect) && feetInRow(b, r.Rect) && feet >= surface-epsilon {
			if room := headroom(b, rects, fromX); feet-surface > room+epsilon {
				stopUnderCeiling(b, r, feet-room, fromX)
				supported = true
				return
			}
			b.SetFeet(surface)
			supported = true
			m.checkOneAbove(b, r, byTile)
			return
		}

		// Спуск: на 45° ноги отстают от склона не больше, чем на смещение по X
		if wasGrounded && touchesX(b, r.Rect) && feet >= r.Rect.Top()-epsilon &&
			feet < surface && surface-feet <= dx+epsilon {
			b.SetFeet(surface)
			supported = true
		}
	})
	return supported
}

// checkOneAbove не даёт телу пройти сквозь твёрдую клетку над соседом ската
func (m *Mover) checkOneAbove(b *Body, r world.CollisionRect, byTile map[vec.Vec2]world.CollisionRect) {
	side := 1
	if r.Mask == world.RampLeft {
		side = -1
	}
	above, ok := byTile[r.Tile.Add(vec.Vec2{X: side, Y: -1})]
	if !ok || isRamp(above) || !overlaps(b, above.Rect) {
		return
	}
	clampX(b, above.Rect, b.Velocity.X)
	b.Velocity.X = 0
}

// headroom возвращает, на сколько тело может подняться, не задев клеток над головой
// в полосе, которую оно прошло за шаг
func headroom(b *Body, rects []world.CollisionRect, fromX float64) float64 {
	lo := math.Min(fromX, b.Rect.X)
	hi := math.Max(fromX, b.Rect.X) + b.Rect.W
	top := b.Rect.Top()
	room := math.Inf(1)
	for _, r := range rects {
		if r.Rect.Bottom() > top+epsilon || r.Rect.Right() <= lo+epsilon || r.Rect.Left() >= hi-epsilon {
			continue
		}
		room = math.Min(room, top-r.Rect.Bottom())
	}
	return math.Max(room, 0)
}

// stopUnderCeiling останавливает тело на скате там, где голова упирается в потолок.
// minFeet - самое высокое допустимое положение ног. Тело не отходит назад дальше fromX.
func stopUnderCeiling(b *Body, r world.CollisionRect, minFeet, fromX float64) {
	var x float64
	if r.Mask == world.RampRight {
		x = r.Rect.Left() + r.Rect.Bottom() - minFeet - b.Rect.W
	} else {
		x = r.Rect.Right() - r.Rect.Bottom() + minFeet
	}
	switch {
	case b.Rect.X > fromX:
		b.Rect.X = math.Max(fromX, math.Min(b.Rect.X, x))
	case b.Rect.X < fromX:
		b.Rect.X = math.Min(fromX, math.Max(b.Rect.X, x))
	}
	b.SetFeet(math.Max(rampSurface(b, r), minFeet))
	b.Velocity.X = 0
}

// forEachOrdered обходит препятствия так, чтобы ближайшие по направлению
// движения обрабатывались первыми: при положительной скорости - с конца.
func forEachOrdered(rects []world.CollisionRect, v float64, fn func(world.CollisionRect)) {
	if v > 0 {
		for i := len(rects) - 1; i >= 0; i-- {
			fn(rects[i])
		}
		return
	}
	for _, r := range rects {
		fn(r)
	}
}
