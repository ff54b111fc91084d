package world

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/annel0/survival-game/internal/config"
	"github.com/annel0/survival-game/internal/util"
	"github.com/annel0/survival-game/internal/vec"
	"github.com/annel0/survival-game/internal/world/block"
)

// Соли для независимых полей шума
const (
	saltRelief = iota + 1
	saltDetail
	saltCave
	saltOre
)

// Generator генерирует ландшафт чанков как чистую функцию (seed, координаты чанка)
type Generator struct {
	engine config.Engine
	params config.Generator
	seed   int64

	relief *util.NoiseField // крупный рельеф поверхности
	detail *util.NoiseField // мелкие неровности поверхности
	cave   *util.NoiseField // мелкомасштабный 2D шум пустот
	ore    *util.NoiseField // крупномасштабный 2D шум пустот

	surface block.BlockID
	soil    block.BlockID
	deep    block.BlockID

	decoration *block.ElementDef // nil, если украшения отключены
}

// NewGenerator создаёт генератор. Неизвестные имена блоков и объектов - ошибка конфигурации.
func NewGenerator(engine config.Engine, params config.Generator, seed int64, reg *block.Registry) (*Generator, error) {
	g := &Generator{engine: engine, params: params, seed: seed}

	for _, b := range []struct {
		name string
		dst  *block.BlockID
	}{
		{params.SurfaceBlock, &g.surface},
		{params.SoilBlock, &g.soil},
		{params.DeepBlock, &g.deep},
	} {
		def, err := reg.BlockByName(b.name)
		if err != nil {
			return nil, fmt.Errorf("генератор: %w", err)
		}
		*b.dst = def.ID
	}

	if params.DecorationElement != "" {
		def, err := reg.ElementByName(params.DecorationElement)
		if err != nil {
			return nil, fmt.Errorf("генератор: %w", err)
		}
		g.decoration = def
	}

	noise := util.NoiseParams{Alpha: params.NoiseAlpha, Beta: params.NoiseBeta, Octaves: params.NoiseOctaves}
	if noise.Octaves <= 0 {
		noise = util.DefaultNoiseParams
	}
	g.relief = util.NewNoiseField(noise, util.SubSeed(seed, saltRelief))
	g.detail = util.NewNoiseField(noise, util.SubSeed(seed, saltDetail))
	g.cave = util.NewNoiseField(noise, util.SubSeed(seed, saltCave))
	g.ore = util.NewNoiseField(noise, util.SubSeed(seed, saltOre))
	return g, nil
}

// Seed возвращает сид генератора
func (g *Generator) Seed() int64 { return g.seed }

// SurfaceRow возвращает строку поверхности для абсолютного столбца x
func (g *Generator) SurfaceRow(x int) int {
	fx := float64(x)
	h := g.relief.Noise1D(fx*g.params.ReliefFrequency)*g.params.ReliefAmplitude +
		g.detail.Noise1D(fx*g.params.DetailFrequency)*g.params.DetailAmplitude
	return int(math.Round(h))
}

// density возвращает значение 2D шума клетки, по которому решается, заполнена ли она
func (g *Generator) density(x, y int) float64 {
	fx, fy := float64(x), float64(y)
	fine := g.cave.Noise2D(fx*g.params.CaveFrequency, fy*g.params.CaveFrequency)
	coarse := g.ore.Noise2D(fx*g.params.OreFrequency, fy*g.params.OreFrequency)
	return math.Abs(fine*0.3 + coarse)
}

// chunkRand создаёт детерминированный генератор случайных чисел для чанка
func (g *Generator) chunkRand(coords vec.Vec2) *rand.Rand {
	chunkSeed := g.seed ^ (int64(coords.X) * 73856093) ^ (int64(coords.Y) * 19349663)
	return rand.New(rand.NewSource(chunkSeed))
}

// Generate заполняет пустой чанк. Маски соседства считаются только внутри чанка,
// сшивку с соседями выполняет World. Чанк помечается целиком грязным.
func (g *Generator) Generate(c *Chunk) {
	size := c.Size()
	surfaceRows := make([]int, size)

	for col := 0; col < size; col++ {
		x := c.Coords.X*size + col
		surface := g.SurfaceRow(x)
		surfaceRows[col] = surface

		for row := 0; row < size; row++ {
			y := c.Coords.Y*size + row
			if y < surface {
				continue
			}
			l := vec.Local{Col: col, Row: row}
			n := g.density(x, y)

			switch {
			case y == surface:
				if n >= g.params.SurfaceThreshold {
					c.setRaw(LayerFront, l, g.surface)
				}
				c.setRaw(LayerBack, l, g.surface)
			case y > surface+g.params.DeepOffset:
				if n >= g.params.StoneThreshold {
					c.setRaw(LayerFront, l, g.deep)
				}
				if n >= g.params.BackThreshold {
					c.setRaw(LayerBack, l, g.deep)
				}
			default:
				if n >= g.params.DirtThreshold {
					c.setRaw(LayerFront, l, g.soil)
				}
				if n >= g.params.BackThreshold {
					c.setRaw(LayerBack, l, g.soil)
				}
			}
		}
	}
	c.RebuildAdjacency()

	if g.decoration != nil && g.params.DecorationChance > 0 {
		g.decorate(c, surfaceRows)
	}

	c.MarkAllDirty()
	c.modified = false
}

// decorate расставляет украшения на траве поверхности. Объект должен целиком
// помещаться в чанке и не пересекаться с уже поставленными.
func (g *Generator) decorate(c *Chunk, surfaceRows []int) {
	size := c.Size()
	bs := float64(g.engine.BlockSize)
	rng := g.chunkRand(c.Coords)
	chunkTop := float64(c.Coords.Y*size) * bs
	chunkRight := float64((c.Coords.X+1)*size) * bs

	for col := 0; col < size; col++ {
		// Бросаем кости для каждого столбца, чтобы последовательность не зависела от рельефа
		roll := rng.Float64()
		uw, uh, uhp := rng.Float64(), rng.Float64(), rng.Float64()

		row := surfaceRows[col] - c.Coords.Y*size
		if row <= 0 || row >= size || roll >= g.params.DecorationChance {
			continue
		}
		if c.Block(LayerFront, vec.Local{Col: col, Row: row}) != g.surface {
			continue
		}

		w := math.Round(g.decoration.Width.Pick(uw) * bs)
		h := math.Round(g.decoration.Height.Pick(uh) * bs)
		anchor := vec.Vec2{X: c.Coords.X*size + col, Y: c.Coords.Y*size + row - 1}
		rect := elementRect(anchor, w, h, g.engine.BlockSize)
		if rect.Top() < chunkTop || rect.Right() > chunkRight {
			continue
		}

		overlaps := false
		for _, e := range c.elements {
			if e.Rect.Intersects(rect) {
				overlaps = true
				break
			}
		}
		if overlaps {
			continue
		}

		hp := g.decoration.Health.Pick(uhp)
		c.elements = append(c.elements, &StaticElement{
			Type:          g.decoration.ID,
			Rect:          rect,
			Durability:    hp,
			MaxDurability: hp,
		})
	}
}
