package storage

import (
	"context"
	"errors"
	"time"

	"github.com/annel0/survival-game/internal/vec"
	"github.com/annel0/survival-game/internal/world/block"
)

// Ошибки хранилища
var (
	ErrWorldNotFound = errors.New("world not found")
	ErrWorldExists   = errors.New("world already exists")
	ErrClosed        = errors.New("storage closed")
)

// WorldInfo описывает сохранённый мир
type WorldInfo struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Seed      int64     `json:"seed"`
	Score     int64     `json:"score"`
	CreatedAt time.Time `json:"created_at"`
}

// TileBox - включительный прямоугольник абсолютных координат тайлов
type TileBox struct {
	MinX, MinY, MaxX, MaxY int
}

// ChunkBox возвращает прямоугольник тайлов чанка
func ChunkBox(chunk vec.Vec2, chunkSize int) TileBox {
	return TileBox{
		MinX: chunk.X * chunkSize,
		MinY: chunk.Y * chunkSize,
		MaxX: chunk.X*chunkSize + chunkSize - 1,
		MaxY: chunk.Y*chunkSize + chunkSize - 1,
	}
}

// Contains проверяет, что тайл лежит внутри прямоугольника
func (b TileBox) Contains(x, y int) bool {
	return x >= b.MinX && x <= b.MaxX && y >= b.MinY && y <= b.MaxY
}

// BlockRow - сохранённый непустой блок
type BlockRow struct {
	X     int           `json:"x"`
	Y     int           `json:"y"`
	Layer uint8         `json:"layer"`
	Type  block.BlockID `json:"type"`
}

// StaticObjectRow - сохранённый статический объект. X, Y - тайл, над которым
// стоит левый нижний угол объекта; размеры в пикселях.
type StaticObjectRow struct {
	X         int             `json:"x"`
	Y         int             `json:"y"`
	Type      block.ElementID `json:"type"`
	Width     float64         `json:"width"`
	Height    float64         `json:"height"`
	Health    float64         `json:"health"`
	MaxHealth float64         `json:"max_health"`
}

// PlayerState - позиция и характеристики игрока
type PlayerState struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Health float64 `json:"health"`
}

// InventorySlot - содержимое ячейки инвентаря
type InventorySlot struct {
	Slot  int          `json:"slot"`
	Item  block.ItemID `json:"item"`
	Count int          `json:"count"`
}

// Reader загружает сохранённое состояние мира.
// Все вызовы выполняются один раз при открытии мира, не покадрово.
type Reader interface {
	// LoadChunks возвращает координаты всех сохранённых чанков мира.
	LoadChunks(ctx context.Context, worldID int64) ([]vec.Vec2, error)

	// LoadBlocks возвращает блоки внутри box.
	LoadBlocks(ctx context.Context, worldID int64, box TileBox) ([]BlockRow, error)

	// LoadStaticObjects возвращает объекты, чей опорный тайл лежит внутри box.
	LoadStaticObjects(ctx context.Context, worldID int64, box TileBox) ([]StaticObjectRow, error)
}

// Writer сохраняет состояние мира при закрытии.
type Writer interface {
	// SaveBlocks заменяет все блоки внутри box на rows.
	SaveBlocks(ctx context.Context, worldID int64, box TileBox, rows []BlockRow) error

	// SaveStaticObjects заменяет все объекты внутри box на rows.
	SaveStaticObjects(ctx context.Context, worldID int64, box TileBox, rows []StaticObjectRow) error

	// SaveChunks добавляет координаты чанков в список сохранённых.
	SaveChunks(ctx context.Context, worldID int64, coords []vec.Vec2) error
}

// Store - полный интерфейс хранилища: каталог миров, чанки, игрок, инвентарь.
type Store interface {
	Reader
	Writer

	// CreateWorld создаёт мир. Возвращает ErrWorldExists, если имя занято.
	CreateWorld(ctx context.Context, name string, seed int64) (WorldInfo, error)

	// GetWorld возвращает мир по имени или ErrWorldNotFound.
	GetWorld(ctx context.Context, name string) (WorldInfo, error)

	// ListWorlds возвращает все миры, отсортированные по ID.
	ListWorlds(ctx context.Context) ([]WorldInfo, error)

	// DeleteWorld удаляет мир и все его данные.
	DeleteWorld(ctx context.Context, name string) error

	// SetWorldScore обновляет счёт мира.
	SetWorldScore(ctx context.Context, worldID int64, score int64) error

	// LoadPlayerLocation возвращает состояние игрока; false, если игрок ещё не сохранялся.
	LoadPlayerLocation(ctx context.Context, worldID int64) (PlayerState, bool, error)

	// SavePlayerLocation сохраняет состояние игрока.
	SavePlayerLocation(ctx context.Context, worldID int64, state PlayerState) error

	// LoadInventory возвращает непустые ячейки инвентаря, отсортированные по номеру.
	LoadInventory(ctx context.Context, worldID int64) ([]InventorySlot, error)

	// SaveInventory заменяет инвентарь целиком.
	SaveInventory(ctx context.Context, worldID int64, slots []InventorySlot) error

	// Close закрывает хранилище.
	Close() error
}
