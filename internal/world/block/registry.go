package block

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"image/color"
	"io/fs"
	"os"
	"sort"
)

// Drop описывает предметы, выпадающие при разрушении
type Drop struct {
	Item  ItemID
	Count int
}

// Range - диапазон [Min, Max] для случайных характеристик объектов
type Range struct {
	Min, Max float64
}

// Pick возвращает значение из диапазона по числу u из [0,1)
func (r Range) Pick(u float64) float64 {
	return r.Min + (r.Max-r.Min)*u
}

// BlockDef - метаданные типа блока
type BlockDef struct {
	ID          BlockID
	Name        string
	Collidable  bool
	Health      float64
	Drops       []Drop
	Sprite      string
	Color       color.RGBA
	Transparent bool
}

// ElementDef - метаданные статического объекта. Размеры заданы в клетках.
type ElementDef struct {
	ID     ElementID
	Name   string
	Width  Range
	Height Range
	Health Range
	Sprite string
	Color  color.RGBA
	Drops  []Drop
}

// ItemDef - метаданные предмета
type ItemDef struct {
	ID       ItemID
	Name     string
	PlaceAs  BlockID // Empty, если предмет нельзя поставить
	MaxStack int
}

// Registry хранит метаданные блоков, объектов и предметов.
// После загрузки только читается и безопасен для конкурентного чтения.
type Registry struct {
	blocks       map[BlockID]*BlockDef
	blockNames   map[string]BlockID
	elements     map[ElementID]*ElementDef
	elementNames map[string]ElementID
	items        map[ItemID]*ItemDef
	itemNames    map[string]ItemID
	digest       string
}

// Block возвращает метаданные блока
func (r *Registry) Block(id BlockID) (*BlockDef, error) {
	def, ok := r.blocks[id]
	if !ok {
		return nil, fmt.Errorf("%w: id %d", ErrUnknownBlock, id)
	}
	return def, nil
}

// BlockByName возвращает метаданные блока по имени
func (r *Registry) BlockByName(name string) (*BlockDef, error) {
	id, ok := r.blockNames[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownBlock, name)
	}
	return r.blocks[id], nil
}

// Element возвращает метаданные статического объекта
func (r *Registry) Element(id ElementID) (*ElementDef, error) {
	def, ok := r.elements[id]
	if !ok {
		return nil, fmt.Errorf("%w: id %d", ErrUnknownElement, id)
	}
	return def, nil
}

// ElementByName возвращает метаданные объекта по имени
func (r *Registry) ElementByName(name string) (*ElementDef, error) {
	id, ok := r.elementNames[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownElement, name)
	}
	return r.elements[id], nil
}

// Item возвращает метаданные предмета
func (r *Registry) Item(id ItemID) (*ItemDef, error) {
	def, ok := r.items[id]
	if !ok {
		return nil, fmt.Errorf("%w: id %d", ErrUnknownItem, id)
	}
	return def, nil
}

// ItemByName возвращает метаданные предмета по имени
func (r *Registry) ItemByName(name string) (*ItemDef, error) {
	id, ok := r.itemNames[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownItem, name)
	}
	return r.items[id], nil
}

// IsCollidable сообщает, участвует ли блок в коллизиях. Пустая и неизвестная клетка проходимы.
func (r *Registry) IsCollidable(id BlockID) bool {
	def, ok := r.blocks[id]
	return ok && def.Collidable
}

// IsTransparent сообщает, виден ли задний слой сквозь блок
func (r *Registry) IsTransparent(id BlockID) bool {
	if id == Empty {
		return true
	}
	def, ok := r.blocks[id]
	return !ok || def.Transparent
}

// BlockIDs возвращает отсортированный список известных блоков
func (r *Registry) BlockIDs() []BlockID {
	ids := make([]BlockID, 0, len(r.blocks))
	for id := range r.blocks {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// ElementIDs возвращает отсортированный список известных объектов
func (r *Registry) ElementIDs() []ElementID {
	ids := make([]ElementID, 0, len(r.elements))
	for id := range r.elements {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Digest возвращает sha256 исходных каталогов
func (r *Registry) Digest() string { return r.digest }

type blockJSON struct {
	ID          BlockID        `json:"id"`
	Name        string         `json:"name"`
	Collidable  bool           `json:"collidable"`
	Health      float64        `json:"health"`
	Drops       map[string]int `json:"drops"`
	Sprite      string         `json:"sprite"`
	Color       [3]uint8       `json:"color"`
	Transparent bool           `json:"transparent"`
}

type elementJSON struct {
	ID         ElementID      `json:"id"`
	Name       string         `json:"name"`
	Dimensions [2][2]float64  `json:"dimensions"`
	Health     [2]float64     `json:"health"`
	Sprite     string         `json:"sprite"`
	Color      [3]uint8       `json:"color"`
	Drops      map[string]int `json:"drops"`
}

type itemJSON struct {
	ID       ItemID `json:"id"`
	Name     string `json:"name"`
	PlaceAs  string `json:"place_as"`
	MaxStack int    `json:"max_stack"`
}

// LoadRegistry загружает каталоги blocks.json, elements.json и items.json из fsys,
// проверяет их JSON-схемой и перекрёстные ссылки. Любая ошибка фатальна.
func LoadRegistry(fsys fs.FS) (*Registry, error) {
	validator, err := newCatalogValidator()
	if err != nil {
		return nil, err
	}

	raw := make(map[string][]byte, 3)
	h := sha256.New()
	for _, name := range []string{"blocks.json", "elements.json", "items.json"} {
		data, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, fmt.Errorf("%w: чтение %s: %v", ErrInvalidCatalog, name, err)
		}
		if err := validator.validate(name, data); err != nil {
			return nil, err
		}
		raw[name] = data
		h.Write(data)
	}

	var (
		blocksDoc   struct{ Blocks []blockJSON `json:"blocks"` }
		elementsDoc struct{ Elements []elementJSON `json:"elements"` }
		itemsDoc    struct{ Items []itemJSON `json:"items"` }
	)
	if err := json.Unmarshal(raw["blocks.json"], &blocksDoc); err != nil {
		return nil, fmt.Errorf("%w: blocks.json: %v", ErrInvalidCatalog, err)
	}
	if err := json.Unmarshal(raw["elements.json"], &elementsDoc); err != nil {
		return nil, fmt.Errorf("%w: elements.json: %v", ErrInvalidCatalog, err)
	}
	if err := json.Unmarshal(raw["items.json"], &itemsDoc); err != nil {
		return nil, fmt.Errorf("%w: items.json: %v", ErrInvalidCatalog, err)
	}

	r := &Registry{
		blocks:       make(map[BlockID]*BlockDef),
		blockNames:   make(map[string]BlockID),
		elements:     make(map[ElementID]*ElementDef),
		elementNames: make(map[string]ElementID),
		items:        make(map[ItemID]*ItemDef),
		itemNames:    make(map[string]ItemID),
		digest:       hex.EncodeToString(h.Sum(nil)),
	}

	// Сначала предметы: на них ссылаются таблицы выпадения
	for _, it := range itemsDoc.Items {
		if _, dup := r.items[it.ID]; dup {
			return nil, fmt.Errorf("%w: дубликат предмета id %d", ErrInvalidCatalog, it.ID)
		}
		if _, dup := r.itemNames[it.Name]; dup {
			return nil, fmt.Errorf("%w: дубликат предмета %q", ErrInvalidCatalog, it.Name)
		}
		maxStack := it.MaxStack
		if maxStack == 0 {
			maxStack = 64
		}
		r.items[it.ID] = &ItemDef{ID: it.ID, Name: it.Name, MaxStack: maxStack}
		r.itemNames[it.Name] = it.ID
	}

	for _, b := range blocksDoc.Blocks {
		if b.ID == Empty {
			return nil, fmt.Errorf("%w: id 0 зарезервирован под пустую клетку (%q)", ErrInvalidCatalog, b.Name)
		}
		if _, dup := r.blocks[b.ID]; dup {
			return nil, fmt.Errorf("%w: дубликат блока id %d", ErrInvalidCatalog, b.ID)
		}
		if _, dup := r.blockNames[b.Name]; dup {
			return nil, fmt.Errorf("%w: дубликат блока %q", ErrInvalidCatalog, b.Name)
		}
		drops, err := r.resolveDrops(b.Drops)
		if err != nil {
			return nil, fmt.Errorf("блок %q: %w", b.Name, err)
		}
		r.blocks[b.ID] = &BlockDef{
			ID:          b.ID,
			Name:        b.Name,
			Collidable:  b.Collidable,
			Health:      b.Health,
			Drops:       drops,
			Sprite:      b.Sprite,
			Color:       color.RGBA{R: b.Color[0], G: b.Color[1], B: b.Color[2], A: 0xff},
			Transparent: b.Transparent,
		}
		r.blockNames[b.Name] = b.ID
	}

	for _, e := range elementsDoc.Elements {
		if _, dup := r.elements[e.ID]; dup {
			return nil, fmt.Errorf("%w: дубликат объекта id %d", ErrInvalidCatalog, e.ID)
		}
		drops, err := r.resolveDrops(e.Drops)
		if err != nil {
			return nil, fmt.Errorf("объект %q: %w", e.Name, err)
		}
		w := Range{Min: e.Dimensions[0][0], Max: e.Dimensions[0][1]}
		hgt := Range{Min: e.Dimensions[1][0], Max: e.Dimensions[1][1]}
		hp := Range{Min: e.Health[0], Max: e.Health[1]}
		if w.Min > w.Max || hgt.Min > hgt.Max || hp.Min > hp.Max {
			return nil, fmt.Errorf("%w: объект %q: min больше max", ErrInvalidCatalog, e.Name)
		}
		r.elements[e.ID] = &ElementDef{
			ID:     e.ID,
			Name:   e.Name,
			Width:  w,
			Height: hgt,
			Health: hp,
			Sprite: e.Sprite,
			Color:  color.RGBA{R: e.Color[0], G: e.Color[1], B: e.Color[2], A: 0xff},
			Drops:  drops,
		}
		r.elementNames[e.Name] = e.ID
	}

	for _, it := range itemsDoc.Items {
		if it.PlaceAs == "" {
			continue
		}
		id, ok := r.blockNames[it.PlaceAs]
		if !ok {
			return nil, fmt.Errorf("предмет %q: %w: %q", it.Name, ErrUnknownBlock, it.PlaceAs)
		}
		r.items[it.ID].PlaceAs = id
	}

	return r, nil
}

// resolveDrops переводит имена предметов в идентификаторы в детерминированном порядке
func (r *Registry) resolveDrops(in map[string]int) ([]Drop, error) {
	names := make([]string, 0, len(in))
	for name := range in {
		names = append(names, name)
	}
	sort.Strings(names)

	drops := make([]Drop, 0, len(in))
	for _, name := range names {
		id, ok := r.itemNames[name]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownItem, name)
		}
		drops = append(drops, Drop{Item: id, Count: in[name]})
	}
	return drops, nil
}

// LoadDir загружает каталоги из директории на диске
func LoadDir(dir string) (*Registry, error) {
	return LoadRegistry(os.DirFS(dir))
}

// LoadDefault загружает встроенный каталог
func LoadDefault() (*Registry, error) {
	sub, err := fs.Sub(embeddedCatalog, "catalog")
	if err != nil {
		return nil, err
	}
	return LoadRegistry(sub)
}
