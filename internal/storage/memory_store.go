package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/annel0/survival-game/internal/vec"
)

type blockKey struct {
	X, Y  int
	Layer uint8
}

type memoryWorld struct {
	info      WorldInfo
	chunks    map[vec.Vec2]struct{}
	blocks    map[blockKey]BlockRow
	objects   []StaticObjectRow
	player    *PlayerState
	inventory []InventorySlot
}

// MemoryStore реализует Store в памяти.
// Используется в тестах и драйвером "memory".
// ВНИМАНИЕ: Данные теряются при перезапуске!
type MemoryStore struct {
	mu     sync.RWMutex
	worlds map[int64]*memoryWorld
	names  map[string]int64
	nextID int64
	closed bool
}

// NewMemoryStore создает новое хранилище в памяти.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		worlds: make(map[int64]*memoryWorld),
		names:  make(map[string]int64),
	}
}

// world возвращает данные мира; вызывается под блокировкой
func (s *MemoryStore) world(id int64) (*memoryWorld, error) {
	if s.closed {
		return nil, ErrClosed
	}
	w, ok := s.worlds[id]
	if !ok {
		return nil, fmt.Errorf("%w: id %d", ErrWorldNotFound, id)
	}
	return w, nil
}

// CreateWorld создаёт новый мир.
func (s *MemoryStore) CreateWorld(ctx context.Context, name string, seed int64) (WorldInfo, error) {
	if name == "" {
		return WorldInfo{}, fmt.Errorf("пустое имя мира")
	}
	if err := ctxErr(ctx); err != nil {
		return WorldInfo{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return WorldInfo{}, ErrClosed
	}
	if _, ok := s.names[name]; ok {
		return WorldInfo{}, fmt.Errorf("%w: %s", ErrWorldExists, name)
	}

	s.nextID++
	info := WorldInfo{ID: s.nextID, Name: name, Seed: seed, CreatedAt: time.Now().UTC().Truncate(time.Second)}
	s.worlds[info.ID] = &memoryWorld{
		info:   info,
		chunks: make(map[vec.Vec2]struct{}),
		blocks: make(map[blockKey]BlockRow),
	}
	s.names[name] = info.ID
	return info, nil
}

// GetWorld возвращает мир по имени.
func (s *MemoryStore) GetWorld(ctx context.Context, name string) (WorldInfo, error) {
	if err := ctxErr(ctx); err != nil {
		return WorldInfo{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return WorldInfo{}, ErrClosed
	}
	id, ok := s.names[name]
	if !ok {
		return WorldInfo{}, fmt.Errorf("%w: %s", ErrWorldNotFound, name)
	}
	return s.worlds[id].info, nil
}

// ListWorlds возвращает все миры.
func (s *MemoryStore) ListWorlds(ctx context.Context) ([]WorldInfo, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrClosed
	}
	out := make([]WorldInfo, 0, len(s.worlds))
	for _, w := range s.worlds {
		out = append(out, w.info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// DeleteWorld удаляет мир и все его данные.
func (s *MemoryStore) DeleteWorld(ctx context.Context, name string) error {
	if err := ctxErr(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	id, ok := s.names[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrWorldNotFound, name)
	}
	delete(s.names, name)
	delete(s.worlds, id)
	return nil
}

// SetWorldScore обновляет счёт мира.
func (s *MemoryStore) SetWorldScore(ctx context.Context, worldID int64, score int64) error {
	if err := ctxErr(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	w, err := s.world(worldID)
	if err != nil {
		return err
	}
	w.info.Score = score
	return nil
}

// LoadChunks возвращает сохранённые чанки.
func (s *MemoryStore) LoadChunks(ctx context.Context, worldID int64) ([]vec.Vec2, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	w, err := s.world(worldID)
	if err != nil {
		return nil, err
	}
	out := make([]vec.Vec2, 0, len(w.chunks))
	for c := range w.chunks {
		out = append(out, c)
	}
	sortChunks(out)
	return out, nil
}

// SaveChunks добавляет чанки в список сохранённых.
func (s *MemoryStore) SaveChunks(ctx context.Context, worldID int64, coords []vec.Vec2) error {
	if err := ctxErr(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	w, err := s.world(worldID)
	if err != nil {
		return err
	}
	for _, c := range coords {
		w.chunks[c] = struct{}{}
	}
	return nil
}

// LoadBlocks возвращает блоки внутри box.
func (s *MemoryStore) LoadBlocks(ctx context.Context, worldID int64, box TileBox) ([]BlockRow, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	w, err := s.world(worldID)
	if err != nil {
		return nil, err
	}
	var out []BlockRow
	for _, r := range w.blocks {
		if box.Contains(r.X, r.Y) {
			out = append(out, r)
		}
	}
	SortBlockRows(out)
	return out, nil
}

// SaveBlocks заменяет блоки внутри box.
func (s *MemoryStore) SaveBlocks(ctx context.Context, worldID int64, box TileBox, rows []BlockRow) error {
	if err := checkBlockRows(box, rows); err != nil {
		return err
	}
	if err := ctxErr(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	w, err := s.world(worldID)
	if err != nil {
		return err
	}
	for k := range w.blocks {
		if box.Contains(k.X, k.Y) {
			delete(w.blocks, k)
		}
	}
	for _, r := range rows {
		w.blocks[blockKey{X: r.X, Y: r.Y, Layer: r.Layer}] = r
	}
	return nil
}

// LoadStaticObjects возвращает объекты внутри box.
func (s *MemoryStore) LoadStaticObjects(ctx context.Context, worldID int64, box TileBox) ([]StaticObjectRow, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	w, err := s.world(worldID)
	if err != nil {
		return nil, err
	}
	var out []StaticObjectRow
	for _, r := range w.objects {
		if box.Contains(r.X, r.Y) {
			out = append(out, r)
		}
	}
	SortObjectRows(out)
	return out, nil
}

// SaveStaticObjects заменяет объекты внутри box.
func (s *MemoryStore) SaveStaticObjects(ctx context.Context, worldID int64, box TileBox, rows []StaticObjectRow) error {
	if err := checkObjectRows(box, rows); err != nil {
		return err
	}
	if err := ctxErr(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	w, err := s.world(worldID)
	if err != nil {
		return err
	}
	kept := w.objects[:0]
	for _, r := range w.objects {
		if !box.Contains(r.X, r.Y) {
			kept = append(kept, r)
		}
	}
	w.objects = append(kept, rows...)
	return nil
}

// LoadPlayerLocation возвращает состояние игрока.
func (s *MemoryStore) LoadPlayerLocation(ctx context.Context, worldID int64) (PlayerState, bool, error) {
	if err := ctxErr(ctx); err != nil {
		return PlayerState{}, false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	w, err := s.world(worldID)
	if err != nil {
		return PlayerState{}, false, err
	}
	if w.player == nil {
		return PlayerState{}, false, nil
	}
	return *w.player, true, nil
}

// SavePlayerLocation сохраняет состояние игрока.
func (s *MemoryStore) SavePlayerLocation(ctx context.Context, worldID int64, state PlayerState) error {
	if err := ctxErr(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	w, err := s.world(worldID)
	if err != nil {
		return err
	}
	w.player = &state
	return nil
}

// LoadInventory возвращает инвентарь.
func (s *MemoryStore) LoadInventory(ctx context.Context, worldID int64) ([]InventorySlot, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	w, err := s.world(worldID)
	if err != nil {
		return nil, err
	}
	out := append([]InventorySlot(nil), w.inventory...)
	sortSlots(out)
	return out, nil
}

// SaveInventory заменяет инвентарь.
func (s *MemoryStore) SaveInventory(ctx context.Context, worldID int64, slots []InventorySlot) error {
	if err := ctxErr(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	w, err := s.world(worldID)
	if err != nil {
		return err
	}
	w.inventory = w.inventory[:0]
	for _, sl := range slots {
		if sl.Count > 0 {
			w.inventory = append(w.inventory, sl)
		}
	}
	return nil
}

// Close закрывает хранилище.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
