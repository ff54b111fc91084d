package render

import (
	"image"
	"image/color"
	"image/draw"

	colorful "github.com/lucasb-eyer/go-colorful"

	"github.com/annel0/survival-game/internal/config"
	"github.com/annel0/survival-game/internal/world"
	"github.com/annel0/survival-game/internal/world/block"
)

// SkyColor - фон окна отрисовки
var SkyColor = color.RGBA{R: 142, G: 196, B: 232, A: 255}

const (
	backShade     = 0.45 // затемнение заднего слоя
	edgeShade     = 0.30 // затемнение открытых граней
	topHighlight  = 0.25 // осветление открытого верха
	transparentA  = 150  // непрозрачность прозрачных блоков
	crackStrength = 0.65 // доля пикселей с трещинами на последней стадии
)

// variants - спрайты одного блока по всем 16 маскам соседства
type variants [16]*image.RGBA

// Atlas хранит процедурные спрайты блоков, накладки трещин и цвета объектов.
// Строится один раз по реестру и дальше только читается.
type Atlas struct {
	blockSize int
	front     map[block.BlockID]*variants
	back      map[block.BlockID]*variants
	cracks    []*image.RGBA
	elements  map[block.ElementID]elementColors
}

type elementColors struct {
	fill, border color.NRGBA
}

// NewAtlas строит спрайты для всех блоков и объектов реестра
func NewAtlas(cfg config.Engine, reg *block.Registry) *Atlas {
	a := &Atlas{
		blockSize: cfg.BlockSize,
		front:     make(map[block.BlockID]*variants),
		back:      make(map[block.BlockID]*variants),
		elements:  make(map[block.ElementID]elementColors),
	}

	for _, id := range reg.BlockIDs() {
		def, err := reg.Block(id)
		if err != nil {
			continue
		}
		base := color.NRGBA{R: def.Color.R, G: def.Color.G, B: def.Color.B, A: 255}
		if def.Transparent {
			base.A = transparentA
		}
		var fv, bv variants
		for m := 0; m < 16; m++ {
			fv[m] = a.blockSprite(base, world.Mask(m))
			bv[m] = a.blockSprite(shade(base, colorful.Color{}, backShade), world.Mask(m))
		}
		a.front[id] = &fv
		a.back[id] = &bv
	}

	for s := 0; s < cfg.BreakingStages; s++ {
		a.cracks = append(a.cracks, a.crackSprite(s, cfg.BreakingStages))
	}

	for _, id := range reg.ElementIDs() {
		def, err := reg.Element(id)
		if err != nil {
			continue
		}
		fillColor := color.NRGBA{R: def.Color.R, G: def.Color.G, B: def.Color.B, A: 255}
		a.elements[id] = elementColors{
			fill:   fillColor,
			border: shade(fillColor, colorful.Color{}, edgeShade),
		}
	}
	return a
}

// BlockSize возвращает сторону спрайта в пикселях
func (a *Atlas) BlockSize() int { return a.blockSize }

// Block возвращает спрайт блока для маски и слоя. nil для пустой или неизвестной клетки.
func (a *Atlas) Block(id block.BlockID, mask world.Mask, layer world.BlockLayer) *image.RGBA {
	set := a.front
	if layer == world.LayerBack {
		set = a.back
	}
	v, ok := set[id]
	if !ok {
		return nil
	}
	return v[mask&0xF]
}

// Crack возвращает накладку трещин стадии stage или nil, если такой стадии нет
func (a *Atlas) Crack(stage int) *image.RGBA {
	if stage < 0 || stage >= len(a.cracks) {
		return nil
	}
	return a.cracks[stage]
}

// Stages возвращает число стадий трещин
func (a *Atlas) Stages() int { return len(a.cracks) }

func (a *Atlas) element(id block.ElementID) (elementColors, bool) {
	c, ok := a.elements[id]
	return c, ok
}

// blockSprite рисует клетку: заливка, тёмные открытые грани, светлый открытый верх.
// Скаты заполняются только треугольником под диагональю.
func (a *Atlas) blockSprite(base color.NRGBA, mask world.Mask) *image.RGBA {
	bs := a.blockSize
	img := image.NewRGBA(image.Rect(0, 0, bs, bs))
	edge := shade(base, colorful.Color{}, edgeShade)
	top := shade(base, colorful.Color{R: 1, G: 1, B: 1}, topHighlight)
	w := bs / 8
	if w < 1 {
		w = 1
	}

	for y := 0; y < bs; y++ {
		for x := 0; x < bs; x++ {
			switch mask {
			case world.RampRight:
				if y < bs-1-x {
					continue
				}
				if y < bs-1-x+w {
					img.Set(x, y, top)
					continue
				}
			case world.RampLeft:
				if y < x {
					continue
				}
				if y < x+w {
					img.Set(x, y, top)
					continue
				}
			}

			c := base
			switch {
			case !mask.Has(world.North) && y < w && !mask.IsRamp():
				c = top
			case !mask.Has(world.South) && y >= bs-w:
				c = edge
			case !mask.Has(world.West) && x < w:
				c = edge
			case !mask.Has(world.East) && x >= bs-w:
				c = edge
			}
			img.Set(x, y, c)
		}
	}
	return img
}

// crackSprite рисует полупрозрачные трещины. Каждая стадия содержит все
// пиксели предыдущей.
func (a *Atlas) crackSprite(stage, stages int) *image.RGBA {
	bs := a.blockSize
	img := image.NewRGBA(image.Rect(0, 0, bs, bs))
	limit := float64(stage+1) / float64(stages) * crackStrength
	ink := color.NRGBA{R: 20, G: 16, B: 12, A: 170}
	for y := 0; y < bs; y++ {
		for x := 0; x < bs; x++ {
			if cellNoise(x, y) < limit {
				img.Set(x, y, ink)
			}
		}
	}
	return img
}

// cellNoise - детерминированное псевдослучайное число [0,1) для пикселя спрайта
func cellNoise(x, y int) float64 {
	h := uint32(x)*374761393 + uint32(y)*668265263
	h = (h ^ (h >> 13)) * 1274126177
	h ^= h >> 16
	return float64(h&0xFFFF) / 65536
}

// shade смешивает цвет с target в пространстве Lab, сохраняя альфу
func shade(c color.NRGBA, target colorful.Color, t float64) color.NRGBA {
	src := colorful.Color{R: float64(c.R) / 255, G: float64(c.G) / 255, B: float64(c.B) / 255}
	r, g, b := src.BlendLab(target, t).Clamped().RGB255()
	return color.NRGBA{R: r, G: g, B: b, A: c.A}
}

// fill закрашивает прямоугольник без смешивания
func fill(img *image.RGBA, r image.Rectangle, c color.Color) {
	draw.Draw(img, r, &image.Uniform{C: c}, image.Point{}, draw.Src)
}
