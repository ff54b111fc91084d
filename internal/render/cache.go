package render

import (
	"image"
	"image/color"
	"image/draw"
	"math"
	"sort"

	"github.com/annel0/survival-game/internal/config"
	"github.com/annel0/survival-game/internal/logging"
	"github.com/annel0/survival-game/internal/metrics"
	"github.com/annel0/survival-game/internal/vec"
	"github.com/annel0/survival-game/internal/world"
)

// windowSize - сторона окна отрисовки в чанках
const windowSize = 3

// ChunkLoader выдаёт чанк по координатам, загружая или генерируя его.
// Реализуется *world.World.
type ChunkLoader interface {
	LoadChunk(cx, cy int) *world.Chunk
}

type slot struct {
	coords vec.Vec2
	chunk  *world.Chunk
	img    *image.RGBA
}

// CacheOption настраивает Cache
type CacheOption func(*Cache)

// WithMetrics подключает счётчики перерисовок
func WithMetrics(m *metrics.Engine) CacheOption {
	return func(c *Cache) { c.metrics = m }
}

// Cache держит растры чанков окна 3x3 вокруг наблюдателя.
// Слоты адресуются по координатам чанка по модулю 3, поэтому при сдвиге окна
// заменяются только открывшиеся строка или столбец.
type Cache struct {
	cfg     config.Engine
	atlas   *Atlas
	slots   [windowSize * windowSize]slot
	center  vec.Vec2
	ready   bool
	metrics *metrics.Engine
	logger  *logging.Logger
}

// NewCache создаёт пустой кэш. Растры выделяются сразу и переиспользуются.
func NewCache(cfg config.Engine, atlas *Atlas, opts ...CacheOption) *Cache {
	c := &Cache{
		cfg:    cfg,
		atlas:  atlas,
		logger: logging.GetRenderLogger(),
	}
	px := cfg.ChunkPixels()
	for i := range c.slots {
		c.slots[i].img = image.NewRGBA(image.Rect(0, 0, px, px))
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SlotIndex возвращает индекс слота для чанка (cx, cy)
func SlotIndex(cx, cy int) int {
	return vec.FloorMod(cy, windowSize)*windowSize + vec.FloorMod(cx, windowSize)
}

// Center возвращает чанк наблюдателя
func (c *Cache) Center() vec.Vec2 { return c.center }

// Reset забывает окно. Следующий UpdateWindow загрузит все 9 чанков.
func (c *Cache) Reset() {
	c.ready = false
	for i := range c.slots {
		c.slots[i].chunk = nil
		c.slots[i].coords = vec.Vec2{}
	}
}

// Slot возвращает чанк и растр, если чанк (cx, cy) сейчас в окне
func (c *Cache) Slot(cx, cy int) (*world.Chunk, *image.RGBA, bool) {
	s := &c.slots[SlotIndex(cx, cy)]
	if s.chunk == nil || s.coords != (vec.Vec2{X: cx, Y: cy}) {
		return nil, nil, false
	}
	return s.chunk, s.img, true
}

// UpdateWindow центрирует окно на чанке, содержащем точку viewer (пиксели мира).
// Первый вызов и прыжок больше чем на один чанк загружают окно целиком;
// сдвиг на один чанк загружает только открывшиеся чанки. Новые чанки помечаются
// для полной перерисовки. Возвращает индексы переназначенных слотов по возрастанию.
func (c *Cache) UpdateWindow(w ChunkLoader, viewer vec.Vec2Float) []int {
	center := vec.TileAt(viewer, c.cfg.BlockSize).ToChunkCoords(c.cfg.ChunkSize)

	if !c.ready || abs(center.X-c.center.X) > 1 || abs(center.Y-c.center.Y) > 1 {
		if c.ready {
			c.logger.Debug("Окно отрисовки перестроено: %v -> %v", c.center, center)
		}
		c.center = center
		c.ready = true
		out := make([]int, 0, len(c.slots))
		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				out = append(out, c.assign(w, center.X+dx, center.Y+dy))
			}
		}
		sort.Ints(out)
		return out
	}

	if center == c.center {
		return nil
	}

	prev := c.center
	c.center = center
	var out []int
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			cx, cy := center.X+dx, center.Y+dy
			if abs(cx-prev.X) <= 1 && abs(cy-prev.Y) <= 1 {
				continue
			}
			out = append(out, c.assign(w, cx, cy))
		}
	}
	sort.Ints(out)
	c.metrics.WindowShift()
	c.logger.Trace("Окно отрисовки сдвинуто: %v -> %v, слоты %v", prev, center, out)
	return out
}

func (c *Cache) assign(w ChunkLoader, cx, cy int) int {
	i := SlotIndex(cx, cy)
	ch := w.LoadChunk(cx, cy)
	ch.MarkAllDirty()
	c.slots[i].coords = vec.Vec2{X: cx, Y: cy}
	c.slots[i].chunk = ch
	return i
}

// RepaintDirty перерисовывает растры слотов с непустым набором изменений
// и очищает эти наборы. Возвращает число перерисованных чанков.
func (c *Cache) RepaintDirty() int {
	n := 0
	for i := range c.slots {
		s := &c.slots[i]
		if s.chunk == nil || s.chunk.Dirty().Empty() {
			continue
		}
		c.Repaint(s.img, s.chunk)
		s.chunk.ClearDirty()
		n++
	}
	return n
}

// Repaint перерисовывает в img области чанка из его набора изменений.
// При All растр строится заново, иначе перерисовываются только помеченные
// строки, столбцы и клетки. Набор изменений не очищается.
func (c *Cache) Repaint(img *image.RGBA, ch *world.Chunk) {
	d := ch.Dirty()
	size := ch.Size()
	if d.All {
		c.paintRegion(img, ch, 0, 0, size, size)
		c.metrics.Repaint(true)
		return
	}
	if d.Empty() {
		return
	}
	for _, row := range d.SortedRows() {
		c.paintRegion(img, ch, 0, row, size, 1)
	}
	for _, col := range d.SortedCols() {
		c.paintRegion(img, ch, col, 0, 1, size)
	}
	for _, l := range d.Cells() {
		c.paintRegion(img, ch, l.Col, l.Row, 1, 1)
	}
	c.metrics.Repaint(false)
}

// paintRegion перерисовывает прямоугольник клеток [col, col+w) x [row, row+h):
// очистка, задний слой где он виден, передний слой по маске, трещины,
// затем статические объекты, обрезанные по области.
func (c *Cache) paintRegion(img *image.RGBA, ch *world.Chunk, col, row, w, h int) {
	bs := c.cfg.BlockSize
	clip := image.Rect(col*bs, row*bs, (col+w)*bs, (row+h)*bs).Add(img.Rect.Min)
	fill(img, clip, color.Transparent)

	for r := row; r < row+h; r++ {
		for cl := col; cl < col+w; cl++ {
			l := vec.Local{Col: cl, Row: r}
			cell := image.Rect(cl*bs, r*bs, (cl+1)*bs, (r+1)*bs).Add(img.Rect.Min)
			if ch.BackVisible(l) {
				c.drawSprite(img, cell, c.atlas.Block(ch.Block(world.LayerBack, l), ch.Mask(world.LayerBack, l), world.LayerBack))
			}
			c.drawSprite(img, cell, c.atlas.Block(ch.Block(world.LayerFront, l), ch.Mask(world.LayerFront, l), world.LayerFront))
			if stage, ok := ch.Breaking(l); ok {
				c.drawSprite(img, cell, c.atlas.Crack(stage))
			}
		}
	}

	origin := vec.Vec2Float{
		X: float64(ch.Coords.X * c.cfg.ChunkPixels()),
		Y: float64(ch.Coords.Y * c.cfg.ChunkPixels()),
	}
	for _, e := range ch.Elements() {
		colors, ok := c.atlas.element(e.Type)
		if !ok {
			continue
		}
		er := pixelRect(e.Rect, origin).Add(img.Rect.Min)
		if !er.Overlaps(clip) {
			continue
		}
		draw.Draw(img, er.Intersect(clip), &image.Uniform{C: colors.border}, image.Point{}, draw.Over)
		draw.Draw(img, er.Inset(1).Intersect(clip), &image.Uniform{C: colors.fill}, image.Point{}, draw.Over)
	}
}

func (c *Cache) drawSprite(img *image.RGBA, cell image.Rectangle, sprite *image.RGBA) {
	if sprite == nil {
		return
	}
	draw.Draw(img, cell, sprite, sprite.Rect.Min, draw.Over)
}

// Composite собирает окно в dst: центр dst совпадает с точкой viewer мира.
// Участки без загруженных чанков остаются цвета неба.
func (c *Cache) Composite(dst *image.RGBA, viewer vec.Vec2Float) {
	fill(dst, dst.Rect, SkyColor)
	if !c.ready {
		return
	}
	topLeft := viewportOrigin(dst, viewer)
	px := c.cfg.ChunkPixels()
	for i := range c.slots {
		s := &c.slots[i]
		if s.chunk == nil {
			continue
		}
		at := image.Pt(s.coords.X*px, s.coords.Y*px).Sub(topLeft).Add(dst.Rect.Min)
		r := image.Rectangle{Min: at, Max: at.Add(image.Pt(px, px))}
		draw.Draw(dst, r, s.img, s.img.Rect.Min, draw.Over)
	}
}

// Overlay рисует прямоугольник мира поверх собранного окна
func Overlay(dst *image.RGBA, viewer vec.Vec2Float, r vec.Rect, col color.Color) {
	pr := pixelRect(r, vec.Vec2Float{}).Sub(viewportOrigin(dst, viewer)).Add(dst.Rect.Min)
	draw.Draw(dst, pr.Intersect(dst.Rect), &image.Uniform{C: col}, image.Point{}, draw.Over)
}

// viewportOrigin возвращает пиксель мира, попадающий в левый верхний угол dst
func viewportOrigin(dst *image.RGBA, viewer vec.Vec2Float) image.Point {
	return image.Pt(
		int(math.Floor(viewer.X))-dst.Rect.Dx()/2,
		int(math.Floor(viewer.Y))-dst.Rect.Dy()/2,
	)
}

// pixelRect переводит прямоугольник мира в целые пиксели относительно origin
func pixelRect(r vec.Rect, origin vec.Vec2Float) image.Rectangle {
	return image.Rect(
		int(math.Floor(r.Left()-origin.X)),
		int(math.Floor(r.Top()-origin.Y)),
		int(math.Floor(r.Right()-origin.X)),
		int(math.Floor(r.Bottom()-origin.Y)),
	)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
