package world

import (
	"github.com/annel0/survival-game/internal/vec"
	"github.com/annel0/survival-game/internal/world/block"
)

// BlockInfo даёт чанку доступ к свойствам типов блоков.
// Реализуется *block.Registry.
type BlockInfo interface {
	IsCollidable(id block.BlockID) bool
	IsTransparent(id block.BlockID) bool
}

// Chunk представляет квадратный участок мира size x size клеток в двух слоях.
// Чанком владеет World; отрисовка только читает его и очищает Dirty.
type Chunk struct {
	Coords vec.Vec2 // Координаты чанка в мире

	size       int
	info       BlockInfo
	blocks     [LayerCount][]block.BlockID
	masks      [LayerCount][]Mask
	collidable []bool
	elements   []*StaticElement
	breaking   map[vec.Local]int // текущая стадия трещин
	dirty      DirtySet
	modified   bool // есть изменения, которые нужно сохранить
}

// NewChunk создаёт пустой чанк с указанными координатами
func NewChunk(coords vec.Vec2, size int, info BlockInfo) *Chunk {
	c := &Chunk{
		Coords:     coords,
		size:       size,
		info:       info,
		collidable: make([]bool, size*size),
		breaking:   make(map[vec.Local]int),
		dirty:      newDirtySet(),
	}
	for layer := range c.blocks {
		c.blocks[layer] = make([]block.BlockID, size*size)
		c.masks[layer] = make([]Mask, size*size)
	}
	return c
}

// Size возвращает сторону чанка в клетках
func (c *Chunk) Size() int { return c.size }

// Block возвращает блок клетки
func (c *Chunk) Block(layer BlockLayer, l vec.Local) block.BlockID {
	return c.blocks[layer][l.Index(c.size)]
}

// Mask возвращает маску соседства клетки
func (c *Chunk) Mask(layer BlockLayer, l vec.Local) Mask {
	return c.masks[layer][l.Index(c.size)]
}

// Collidable сообщает, твёрдая ли клетка переднего слоя
func (c *Chunk) Collidable(l vec.Local) bool {
	return c.collidable[l.Index(c.size)]
}

// Dirty возвращает набор областей для перерисовки
func (c *Chunk) Dirty() *DirtySet { return &c.dirty }

// ClearDirty очищает набор изменений
func (c *Chunk) ClearDirty() { c.dirty.Clear() }

// MarkAllDirty помечает весь чанк для перерисовки
func (c *Chunk) MarkAllDirty() { c.dirty.MarkAll() }

// Modified сообщает, что чанк изменён с момента загрузки или сохранения
func (c *Chunk) Modified() bool { return c.modified }

// BackVisible сообщает, виден ли задний слой в клетке:
// передний пуст, прозрачен или является скатом.
func (c *Chunk) BackVisible(l vec.Local) bool {
	i := l.Index(c.size)
	front := c.blocks[LayerFront][i]
	return front == block.Empty || c.info.IsTransparent(front) || c.masks[LayerFront][i].IsRamp()
}

func (c *Chunk) markCell(layer BlockLayer, l vec.Local) {
	if layer == LayerBack && !c.BackVisible(l) {
		return
	}
	c.dirty.MarkBlock(l)
}

// SetBlock устанавливает блок. Пересчитывает collidable для переднего слоя,
// маску клетки и биты соседей внутри чанка. Биты в сторону соседних чанков
// выставляет World. Запись 0 эквивалентна RemoveBlock.
func (c *Chunk) SetBlock(layer BlockLayer, l vec.Local, id block.BlockID) {
	if id == block.Empty {
		c.RemoveBlock(layer, l)
		return
	}
	i := l.Index(c.size)
	prev := c.blocks[layer][i]
	if prev == id {
		return
	}
	c.blocks[layer][i] = id
	c.modified = true
	if layer == LayerFront {
		c.collidable[i] = c.info.IsCollidable(id)
	}

	if prev == block.Empty {
		var m Mask
		for _, d := range Directions {
			n := neighbor(l, d)
			if !n.InBounds(c.size) {
				continue
			}
			if c.blocks[layer][n.Index(c.size)] == block.Empty {
				continue
			}
			m |= d
			c.setBit(layer, n, d.Opposite(), true)
		}
		c.masks[layer][i] = m
	}
	c.markCell(layer, l)
}

// RemoveBlock очищает клетку, её маску и биты соседей, указывающие на неё
func (c *Chunk) RemoveBlock(layer BlockLayer, l vec.Local) {
	i := l.Index(c.size)
	if c.blocks[layer][i] == block.Empty {
		return
	}
	c.markCell(layer, l)
	c.blocks[layer][i] = block.Empty
	c.masks[layer][i] = 0
	c.modified = true
	if layer == LayerFront {
		c.collidable[i] = false
	}
	for _, d := range Directions {
		n := neighbor(l, d)
		if n.InBounds(c.size) {
			c.setBit(layer, n, d.Opposite(), false)
		}
	}
}

// SetNeighborBit выставляет или снимает бит соседа за границей чанка.
// Пустые клетки не хранят маску. Возвращает true, если маска изменилась.
func (c *Chunk) SetNeighborBit(layer BlockLayer, l vec.Local, d Mask, present bool) bool {
	return c.setBit(layer, l, d, present)
}

func (c *Chunk) setBit(layer BlockLayer, l vec.Local, d Mask, present bool) bool {
	i := l.Index(c.size)
	if c.blocks[layer][i] == block.Empty {
		return false
	}
	old := c.masks[layer][i]
	m := old &^ d
	if present {
		m |= d
	}
	if m == old {
		return false
	}
	c.masks[layer][i] = m
	c.markCell(layer, l)
	return true
}

// RebuildAdjacency пересчитывает маски только по соседям внутри чанка.
// Биты в сторону соседних чанков сбрасываются, их восстанавливает World.
func (c *Chunk) RebuildAdjacency() {
	for layer := BlockLayer(0); layer < LayerCount; layer++ {
		for row := 0; row < c.size; row++ {
			for col := 0; col < c.size; col++ {
				l := vec.Local{Col: col, Row: row}
				i := l.Index(c.size)
				if c.blocks[layer][i] == block.Empty {
					c.masks[layer][i] = 0
					continue
				}
				var m Mask
				for _, d := range Directions {
					n := neighbor(l, d)
					if n.InBounds(c.size) && c.blocks[layer][n.Index(c.size)] != block.Empty {
						m |= d
					}
				}
				c.masks[layer][i] = m
			}
		}
	}
	for i, id := range c.blocks[LayerFront] {
		c.collidable[i] = c.info.IsCollidable(id)
	}
}

// setRaw записывает блок без пересчёта масок и пометок. Используется генератором
// и восстановлением из хранилища перед RebuildAdjacency.
func (c *Chunk) setRaw(layer BlockLayer, l vec.Local, id block.BlockID) {
	c.blocks[layer][l.Index(c.size)] = id
}

// Breaking возвращает текущую стадию трещин клетки
func (c *Chunk) Breaking(l vec.Local) (int, bool) {
	stage, ok := c.breaking[l]
	return stage, ok
}

// SetBreaking выставляет стадию трещин и помечает клетку, если стадия изменилась
func (c *Chunk) SetBreaking(l vec.Local, stage int) {
	if cur, ok := c.breaking[l]; ok && cur == stage {
		return
	}
	c.breaking[l] = stage
	c.dirty.MarkBreaking(l, stage)
}

// ClearBreaking снимает трещины с клетки
func (c *Chunk) ClearBreaking(l vec.Local) {
	if _, ok := c.breaking[l]; !ok {
		return
	}
	delete(c.breaking, l)
	c.dirty.MarkBreaking(l, -1)
}

// Elements возвращает статические объекты чанка
func (c *Chunk) Elements() []*StaticElement { return c.elements }

// AddElement добавляет объект и помечает занятые им клетки
func (c *Chunk) AddElement(e *StaticElement, blockSize int) {
	c.elements = append(c.elements, e)
	c.modified = true
	c.markRect(e.Rect, blockSize)
}

// RemoveElement удаляет объект из чанка. Возвращает false, если объекта нет.
func (c *Chunk) RemoveElement(e *StaticElement, blockSize int) bool {
	for i, cur := range c.elements {
		if cur == e {
			c.elements = append(c.elements[:i], c.elements[i+1:]...)
			c.modified = true
			c.markRect(e.Rect, blockSize)
			return true
		}
	}
	return false
}

// markRect помечает клетки чанка, которые пересекает прямоугольник в пикселях мира
func (c *Chunk) markRect(r vec.Rect, blockSize int) {
	lo, hi := r.TileRange(blockSize)
	for y := lo.Y; y <= hi.Y; y++ {
		for x := lo.X; x <= hi.X; x++ {
			t := vec.Vec2{X: x, Y: y}
			if t.ToChunkCoords(c.size) != c.Coords {
				continue
			}
			c.dirty.MarkBlock(t.LocalInChunk(c.size))
		}
	}
}

// CountBlocks возвращает количество непустых клеток слоя
func (c *Chunk) CountBlocks(layer BlockLayer) int {
	n := 0
	for _, id := range c.blocks[layer] {
		if id != block.Empty {
			n++
		}
	}
	return n
}
