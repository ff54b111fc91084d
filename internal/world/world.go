package world

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/annel0/survival-game/internal/config"
	"github.com/annel0/survival-game/internal/logging"
	"github.com/annel0/survival-game/internal/metrics"
	"github.com/annel0/survival-game/internal/storage"
	"github.com/annel0/survival-game/internal/vec"
	"github.com/annel0/survival-game/internal/world/block"
)

// CollisionRect - твёрдая клетка переднего слоя для Collision Mover
type CollisionRect struct {
	Tile vec.Vec2
	Mask Mask
	Rect vec.Rect
}

// miningState - накопленный урон по блоку
type miningState struct {
	damage float64
}

// persistedChunk - строки хранилища, загруженные при открытии мира
type persistedChunk struct {
	blocks  []storage.BlockRow
	objects []storage.StaticObjectRow
}

// Option настраивает World
type Option func(*World)

// WithEventSink задаёт получателя событий мира
func WithEventSink(sink EventSink) Option {
	return func(w *World) { w.sink = sink }
}

// WithMetrics подключает метрики движка
func WithMetrics(m *metrics.Engine) Option {
	return func(w *World) { w.metrics = m }
}

// World владеет загруженными чанками, создаёт их по требованию и выполняет
// правила добычи, постройки и восстановления блоков.
// Однопоточный: все методы вызываются из цикла кадров.
type World struct {
	cfg  config.Engine
	info storage.WorldInfo
	gen  *Generator
	reg  *block.Registry

	chunks        map[vec.Vec2]*Chunk
	blockMining   map[vec.Vec2]*miningState    // абсолютный тайл -> урон
	elementMining map[*StaticElement]vec.Vec2  // повреждённый объект -> чанк
	persisted     map[vec.Vec2]*persistedChunk // ещё не загруженные сохранённые чанки
	known         map[vec.Vec2]struct{}        // чанки, уже записанные в хранилище

	sink    EventSink
	metrics *metrics.Engine
	logger  *logging.Logger
}

// New создаёт мир
func New(cfg config.Engine, info storage.WorldInfo, gen *Generator, reg *block.Registry, opts ...Option) *World {
	w := &World{
		cfg:           cfg,
		info:          info,
		gen:           gen,
		reg:           reg,
		chunks:        make(map[vec.Vec2]*Chunk),
		blockMining:   make(map[vec.Vec2]*miningState),
		elementMining: make(map[*StaticElement]vec.Vec2),
		persisted:     make(map[vec.Vec2]*persistedChunk),
		known:         make(map[vec.Vec2]struct{}),
		sink:          nopSink{},
		logger:        logging.GetWorldLogger(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Info возвращает описание мира
func (w *World) Info() storage.WorldInfo { return w.info }

// Config возвращает параметры движка
func (w *World) Config() config.Engine { return w.cfg }

// Registry возвращает метаданные блоков
func (w *World) Registry() *block.Registry { return w.reg }

// Open однократно загружает из хранилища список сохранённых чанков и их строки.
// Неизвестные типы блоков и объектов прерывают открытие.
func (w *World) Open(ctx context.Context, r storage.Reader) error {
	coords, err := r.LoadChunks(ctx, w.info.ID)
	if err != nil {
		return fmt.Errorf("ошибка загрузки списка чанков: %w", err)
	}
	for _, cc := range coords {
		box := storage.ChunkBox(cc, w.cfg.ChunkSize)
		blocks, err := r.LoadBlocks(ctx, w.info.ID, box)
		if err != nil {
			return fmt.Errorf("ошибка загрузки блоков чанка %v: %w", cc, err)
		}
		objects, err := r.LoadStaticObjects(ctx, w.info.ID, box)
		if err != nil {
			return fmt.Errorf("ошибка загрузки объектов чанка %v: %w", cc, err)
		}
		for _, row := range blocks {
			if row.Layer >= uint8(LayerCount) {
				return fmt.Errorf("чанк %v: недопустимый слой %d", cc, row.Layer)
			}
			if _, err := w.reg.Block(row.Type); err != nil {
				return fmt.Errorf("чанк %v: %w", cc, err)
			}
		}
		for _, row := range objects {
			if _, err := w.reg.Element(row.Type); err != nil {
				return fmt.Errorf("чанк %v: %w", cc, err)
			}
		}
		w.persisted[cc] = &persistedChunk{blocks: blocks, objects: objects}
		w.known[cc] = struct{}{}
	}
	w.logger.Info("🌍 Мир %q (id=%d, seed=%d) открыт, сохранённых чанков: %d", w.info.Name, w.info.ID, w.info.Seed, len(coords))
	w.sink.Emit(RenderReinitEvent{Reason: "world opened"})
	return nil
}

// LoadChunk возвращает загруженный чанк или создаёт его
func (w *World) LoadChunk(cx, cy int) *Chunk {
	return w.LoadChunkAt(vec.Vec2{X: cx, Y: cy})
}

// LoadChunkAt возвращает загруженный чанк или создаёт его: из сохранённых
// строк, если они есть, иначе генератором. Затем сшивает соседство с уже
// загруженными соседями и помечает чанк целиком грязным.
func (w *World) LoadChunkAt(coords vec.Vec2) *Chunk {
	if c, ok := w.chunks[coords]; ok {
		return c
	}

	c := NewChunk(coords, w.cfg.ChunkSize, w.reg)
	if p, ok := w.persisted[coords]; ok {
		w.restore(c, p)
		delete(w.persisted, coords)
		w.chunks[coords] = c
		w.metrics.ChunkRestored(len(w.chunks))
		w.logger.Debug("Чанк %v восстановлен из хранилища", coords)
	} else {
		w.gen.Generate(c)
		w.chunks[coords] = c
		w.metrics.ChunkGenerated(len(w.chunks))
		w.logger.Debug("Чанк %v сгенерирован", coords)
	}

	w.stitch(c)
	c.MarkAllDirty()
	return c
}

func (w *World) restore(c *Chunk, p *persistedChunk) {
	for _, row := range p.blocks {
		l := vec.Vec2{X: row.X, Y: row.Y}.LocalInChunk(w.cfg.ChunkSize)
		c.setRaw(BlockLayer(row.Layer), l, row.Type)
	}
	c.RebuildAdjacency()
	for _, row := range p.objects {
		c.elements = append(c.elements, elementFromRow(row, w.cfg.BlockSize))
	}
	c.modified = false
}

// borderCells возвращает клетки чанка вдоль стороны d
func borderCells(d Mask, size int) []vec.Local {
	cells := make([]vec.Local, size)
	for i := 0; i < size; i++ {
		switch d {
		case South:
			cells[i] = vec.Local{Col: i, Row: size - 1}
		case North:
			cells[i] = vec.Local{Col: i, Row: 0}
		case East:
			cells[i] = vec.Local{Col: size - 1, Row: i}
		case West:
			cells[i] = vec.Local{Col: 0, Row: i}
		}
	}
	return cells
}

// stitch выставляет биты соседства через границы с уже загруженными соседями
func (w *World) stitch(c *Chunk) {
	size := w.cfg.ChunkSize
	for _, d := range Directions {
		dc, dr := d.Delta()
		n, ok := w.chunks[c.Coords.Add(vec.Vec2{X: dc, Y: dr})]
		if !ok {
			continue
		}
		for layer := BlockLayer(0); layer < LayerCount; layer++ {
			for _, l := range borderCells(d, size) {
				_, nl := neighbor(l, d).Wrap(size)
				if c.Block(layer, l) == block.Empty || n.Block(layer, nl) == block.Empty {
					continue
				}
				c.SetNeighborBit(layer, l, d, true)
				n.SetNeighborBit(layer, nl, d.Opposite(), true)
			}
		}

		// Пограничные строка или столбец перерисовываются в обоих чанках
		switch d {
		case East, West:
			c.dirty.MarkCol(borderCells(d, size)[0].Col)
			n.dirty.MarkCol(borderCells(d.Opposite(), size)[0].Col)
		default:
			c.dirty.MarkRow(borderCells(d, size)[0].Row)
			n.dirty.MarkRow(borderCells(d.Opposite(), size)[0].Row)
		}
	}
}

// syncBorders приводит биты соседства клетки на границе чанка в соответствие с соседними чанками
func (w *World) syncBorders(c *Chunk, layer BlockLayer, l vec.Local) {
	size := w.cfg.ChunkSize
	present := c.Block(layer, l) != block.Empty
	for _, d := range Directions {
		off, nl := neighbor(l, d).Wrap(size)
		if off == (vec.Vec2{}) {
			continue
		}
		n, ok := w.chunks[c.Coords.Add(off)]
		if !ok {
			continue
		}
		n.SetNeighborBit(layer, nl, d.Opposite(), present)
		c.SetNeighborBit(layer, l, d, n.Block(layer, nl) != block.Empty)
	}
}

// locate возвращает загруженный чанк и локальные координаты тайла
func (w *World) locate(tile vec.Vec2) (*Chunk, vec.Local, bool) {
	c, ok := w.chunks[tile.ToChunkCoords(w.cfg.ChunkSize)]
	if !ok {
		return nil, vec.Local{}, false
	}
	return c, tile.LocalInChunk(w.cfg.ChunkSize), true
}

// Chunk возвращает загруженный чанк без загрузки
func (w *World) Chunk(coords vec.Vec2) (*Chunk, bool) {
	c, ok := w.chunks[coords]
	return c, ok
}

// Chunks возвращает координаты загруженных чанков в порядке (y, x)
func (w *World) Chunks() []vec.Vec2 {
	out := make([]vec.Vec2, 0, len(w.chunks))
	for cc := range w.chunks {
		out = append(out, cc)
	}
	sortTiles(out)
	return out
}

// ResidentCount возвращает количество загруженных чанков
func (w *World) ResidentCount() int { return len(w.chunks) }

// BlockAt возвращает блок тайла; false, если чанк не загружен
func (w *World) BlockAt(tile vec.Vec2, layer BlockLayer) (block.BlockID, bool) {
	c, l, ok := w.locate(tile)
	if !ok {
		return block.Empty, false
	}
	return c.Block(layer, l), true
}

// MaskAt возвращает маску соседства тайла; false, если чанк не загружен
func (w *World) MaskAt(tile vec.Vec2, layer BlockLayer) (Mask, bool) {
	c, l, ok := w.locate(tile)
	if !ok {
		return 0, false
	}
	return c.Mask(layer, l), true
}

// MiningDamage возвращает накопленный урон по тайлу
func (w *World) MiningDamage(tile vec.Vec2) (float64, bool) {
	st, ok := w.blockMining[tile]
	if !ok {
		return 0, false
	}
	return st.damage, true
}

// Mine наносит урон dps*dt всем непустым клеткам, которые покрывает прямоугольник
// [pos, pos+area), и статическим объектам, пересекающим его. Незагруженные чанки пропускаются.
func (w *World) Mine(pos, area vec.Vec2Float, dps, dt float64) {
	amount := dps * dt
	if amount <= 0 {
		return
	}
	rect := vec.NewRect(pos, area)
	lo, hi := rect.TileRange(w.cfg.BlockSize)

	touched := make(map[vec.Vec2]*Chunk)
	for y := lo.Y; y <= hi.Y; y++ {
		for x := lo.X; x <= hi.X; x++ {
			tile := vec.Vec2{X: x, Y: y}
			c, l, ok := w.locate(tile)
			if !ok {
				continue
			}
			touched[c.Coords] = c
			if c.Block(LayerFront, l) == block.Empty && c.Block(LayerBack, l) == block.Empty {
				continue
			}
			st, ok := w.blockMining[tile]
			if !ok {
				st = &miningState{}
				w.blockMining[tile] = st
			}
			st.damage += amount
		}
	}

	for cc, c := range touched {
		for _, e := range c.elements {
			if e.Rect.Intersects(rect) {
				e.TakeDamage(amount)
				w.elementMining[e] = cc
			}
		}
	}
}

// Put ставит до quantity блоков id в пустые клетки целевого слоя внутри
// прямоугольника [pos, pos+area), построчно от начала. Клетки, пересекающие
// placer, пропускаются. Возвращает число поставленных блоков: оно может быть
// меньше quantity, вызывающий сверяет с ним инвентарь.
func (w *World) Put(pos, area vec.Vec2Float, id block.BlockID, quantity int, placer vec.Rect, back bool) (int, error) {
	if _, err := w.reg.Block(id); err != nil {
		return 0, err
	}
	if quantity <= 0 {
		return 0, nil
	}
	layer := LayerFront
	if back {
		layer = LayerBack
	}

	bs := float64(w.cfg.BlockSize)
	lo, hi := vec.NewRect(pos, area).TileRange(w.cfg.BlockSize)
	placed := make([]vec.Vec2, 0, quantity)

scan:
	for y := lo.Y; y <= hi.Y; y++ {
		for x := lo.X; x <= hi.X; x++ {
			tile := vec.Vec2{X: x, Y: y}
			c, l, ok := w.locate(tile)
			if !ok || c.Block(layer, l) != block.Empty {
				continue
			}
			cell := vec.Rect{X: float64(x) * bs, Y: float64(y) * bs, W: bs, H: bs}
			if cell.Intersects(placer) {
				continue
			}
			c.SetBlock(layer, l, id)
			w.syncBorders(c, layer, l)
			placed = append(placed, tile)
			if len(placed) == quantity {
				break scan
			}
		}
	}

	if len(placed) > 0 {
		w.metrics.BlocksPlaced(len(placed))
		w.sink.Emit(BlockPlacedEvent{Tiles: placed, Layer: layer, Block: id})
	}
	return len(placed), nil
}

// UpdateWorldState применяет накопленный урон: разрушает блоки и объекты,
// прочность которых исчерпана, остальным восстанавливает прочность.
func (w *World) UpdateWorldState(dt float64) error {
	tiles := make([]vec.Vec2, 0, len(w.blockMining))
	for t := range w.blockMining {
		tiles = append(tiles, t)
	}
	sortTiles(tiles)

	stages := w.cfg.BreakingStages
	for _, tile := range tiles {
		st := w.blockMining[tile]
		c, l, ok := w.locate(tile)
		if !ok {
			delete(w.blockMining, tile)
			continue
		}

		layer := LayerFront
		id := c.Block(LayerFront, l)
		if id == block.Empty {
			layer = LayerBack
			id = c.Block(LayerBack, l)
		}
		if id == block.Empty {
			panic(fmt.Sprintf("world: запись добычи для пустой клетки %v", tile))
		}
		def, err := w.reg.Block(id)
		if err != nil {
			return fmt.Errorf("тайл %v: %w", tile, err)
		}

		if st.damage >= def.Health {
			w.destroyBlock(c, l, tile, layer, def)
			delete(w.blockMining, tile)
			continue
		}

		st.damage -= w.cfg.BlockRecoveryRate * dt
		if st.damage <= 0 {
			delete(w.blockMining, tile)
			c.ClearBreaking(l)
			continue
		}
		stage := int(math.Floor(st.damage / def.Health * float64(stages)))
		if stage > stages-1 {
			stage = stages - 1
		}
		c.SetBreaking(l, stage)
	}

	return w.updateElements(dt)
}

func (w *World) destroyBlock(c *Chunk, l vec.Local, tile vec.Vec2, layer BlockLayer, def *block.BlockDef) {
	c.RemoveBlock(layer, l)
	c.ClearBreaking(l)
	w.syncBorders(c, layer, l)

	bs := float64(w.cfg.BlockSize)
	center := vec.Vec2Float{X: (float64(tile.X) + 0.5) * bs, Y: (float64(tile.Y) + 0.5) * bs}
	for _, d := range def.Drops {
		w.sink.Emit(ItemDropEvent{Item: d.Item, Count: d.Count, Position: center})
	}
	w.sink.Emit(BlockDestroyedEvent{Tile: tile, Layer: layer, Block: def.ID})
	w.metrics.BlockDestroyed()
	w.logger.Trace("Блок %s разрушен в %v (слой %s)", def.Name, tile, layer)
}

func (w *World) updateElements(dt float64) error {
	if len(w.elementMining) == 0 {
		return nil
	}
	damaged := make([]*StaticElement, 0, len(w.elementMining))
	for e := range w.elementMining {
		damaged = append(damaged, e)
	}
	sort.Slice(damaged, func(i, j int) bool {
		a, b := damaged[i].Rect, damaged[j].Rect
		if a.Y != b.Y {
			return a.Y < b.Y
		}
		return a.X < b.X
	})

	for _, e := range damaged {
		cc := w.elementMining[e]
		if !e.Destroyed() {
			if e.Recover(w.cfg.ElementRecoveryRate * dt) {
				delete(w.elementMining, e)
			}
			continue
		}

		def, err := w.reg.Element(e.Type)
		if err != nil {
			return fmt.Errorf("объект в чанке %v: %w", cc, err)
		}
		if c, ok := w.chunks[cc]; ok {
			c.RemoveElement(e, w.cfg.BlockSize)
		}
		delete(w.elementMining, e)

		center := e.Rect.Center()
		for _, d := range def.Drops {
			w.sink.Emit(ItemDropEvent{Item: d.Item, Count: d.Count, Position: center})
		}
		w.sink.Emit(ElementDestroyedEvent{Type: e.Type, Rect: e.Rect})
		w.metrics.ElementDestroyed()
		w.logger.Trace("Объект %s разрушен в %v", def.Name, e.Rect.Pos())
	}
	return nil
}

// CollisionRectsAround возвращает твёрдые клетки переднего слоя в квадрате
// размера size с центром center. Незагруженные чанки пропускаются: отсутствие
// данных трактуется как отсутствие препятствия.
func (w *World) CollisionRectsAround(center, size vec.Vec2Float) []CollisionRect {
	bs := float64(w.cfg.BlockSize)
	lo := vec.Vec2Float{X: center.X - size.X/2, Y: center.Y - size.Y/2}.Mul(1 / bs).Floor()
	hi := vec.Vec2Float{X: center.X + size.X/2, Y: center.Y + size.Y/2}.Mul(1 / bs).Floor()

	var out []CollisionRect
	for y := lo.Y; y <= hi.Y; y++ {
		for x := lo.X; x <= hi.X; x++ {
			tile := vec.Vec2{X: x, Y: y}
			c, l, ok := w.locate(tile)
			if !ok || !c.Collidable(l) {
				continue
			}
			out = append(out, CollisionRect{
				Tile: tile,
				Mask: c.Mask(LayerFront, l),
				Rect: vec.Rect{X: float64(x) * bs, Y: float64(y) * bs, W: bs, H: bs},
			})
		}
	}
	return out
}

// Save записывает изменённые чанки в хранилище и снимает с них флаг изменений
func (w *World) Save(ctx context.Context, wr storage.Writer) error {
	var fresh []vec.Vec2
	saved := 0
	for _, cc := range w.Chunks() {
		c := w.chunks[cc]
		if !c.modified {
			continue
		}
		box := storage.ChunkBox(cc, w.cfg.ChunkSize)

		var rows []storage.BlockRow
		for layer := BlockLayer(0); layer < LayerCount; layer++ {
			for row := 0; row < c.size; row++ {
				for col := 0; col < c.size; col++ {
					l := vec.Local{Col: col, Row: row}
					id := c.Block(layer, l)
					if id == block.Empty {
						continue
					}
					t := l.ToWorld(cc, c.size)
					rows = append(rows, storage.BlockRow{X: t.X, Y: t.Y, Layer: uint8(layer), Type: id})
				}
			}
		}
		objects := make([]storage.StaticObjectRow, 0, len(c.elements))
		for _, e := range c.elements {
			objects = append(objects, elementToRow(e, w.cfg.BlockSize))
		}

		if err := wr.SaveBlocks(ctx, w.info.ID, box, rows); err != nil {
			return fmt.Errorf("ошибка сохранения блоков чанка %v: %w", cc, err)
		}
		if err := wr.SaveStaticObjects(ctx, w.info.ID, box, objects); err != nil {
			return fmt.Errorf("ошибка сохранения объектов чанка %v: %w", cc, err)
		}
		c.modified = false
		saved++
		if _, ok := w.known[cc]; !ok {
			fresh = append(fresh, cc)
		}
	}

	if len(fresh) > 0 {
		if err := wr.SaveChunks(ctx, w.info.ID, fresh); err != nil {
			return fmt.Errorf("ошибка сохранения списка чанков: %w", err)
		}
		for _, cc := range fresh {
			w.known[cc] = struct{}{}
		}
	}
	w.logger.Info("💾 Мир %q сохранён: чанков записано %d", w.info.Name, saved)
	return nil
}

// sortTiles сортирует координаты построчно: по Y, затем по X
func sortTiles(tiles []vec.Vec2) {
	sort.Slice(tiles, func(i, j int) bool {
		if tiles[i].Y != tiles[j].Y {
			return tiles[i].Y < tiles[j].Y
		}
		return tiles[i].X < tiles[j].X
	})
}
