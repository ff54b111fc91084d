package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v3"
	"github.com/klauspost/compress/zstd"

	"github.com/annel0/survival-game/internal/logging"
	"github.com/annel0/survival-game/internal/vec"
)

// Схема ключей:
//
//	world:<id>                             -> WorldInfo
//	worldname:<name>                       -> id
//	w:<id>:chunk:<x>:<y>                   -> пусто
//	w:<id>:blk:<minX>:<minY>:<maxX>:<maxY> -> []BlockRow
//	w:<id>:obj:<minX>:<minY>:<maxX>:<maxY> -> []StaticObjectRow
//	w:<id>:player                          -> PlayerState
//	w:<id>:inv                             -> []InventorySlot
//
// Значения - JSON, сжатый zstd.
const (
	worldKeyPrefix  = "world:"
	worldNamePrefix = "worldname:"
	worldSeqKey     = "seq:worlds"
)

// BadgerStore реализует Store поверх BadgerDB
type BadgerStore struct {
	db      *badger.DB
	seq     *badger.Sequence
	enc     *zstd.Encoder
	dec     *zstd.Decoder
	mutex   sync.RWMutex
	isReady bool
}

// NewBadgerStore открывает хранилище в каталоге dir.
// Пустой dir открывает хранилище в памяти.
func NewBadgerStore(dir string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(dir)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	opts.Logger = nil // Отключаем логирование BadgerDB

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("не удалось открыть BadgerDB: %w", err)
	}
	seq, err := db.GetSequence([]byte(worldSeqKey), 16)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ошибка создания последовательности миров: %w", err)
	}
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = seq.Release()
		_ = db.Close()
		return nil, fmt.Errorf("ошибка создания zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		_ = enc.Close()
		_ = seq.Release()
		_ = db.Close()
		return nil, fmt.Errorf("ошибка создания zstd decoder: %w", err)
	}

	if dir == "" {
		logging.GetStorageLogger().Info("Badger хранилище открыто в памяти")
	} else {
		logging.GetStorageLogger().Info("Badger хранилище открыто: %s", dir)
	}
	return &BadgerStore{db: db, seq: seq, enc: enc, dec: dec, isReady: true}, nil
}

// Close закрывает хранилище данных
func (s *BadgerStore) Close() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if !s.isReady {
		return nil
	}
	s.isReady = false

	seqErr := s.seq.Release()
	_ = s.enc.Close()
	s.dec.Close()
	if err := s.db.Close(); err != nil {
		return err
	}
	return seqErr
}

// ready захватывает блокировку чтения и проверяет, что хранилище открыто
func (s *BadgerStore) ready(ctx context.Context) (func(), error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}
	s.mutex.RLock()
	if !s.isReady {
		s.mutex.RUnlock()
		return nil, ErrClosed
	}
	return s.mutex.RUnlock, nil
}

func (s *BadgerStore) encode(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("ошибка сериализации: %w", err)
	}
	return s.enc.EncodeAll(raw, nil), nil
}

func (s *BadgerStore) decode(data []byte, v any) error {
	raw, err := s.dec.DecodeAll(data, nil)
	if err != nil {
		return fmt.Errorf("ошибка распаковки: %w", err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("ошибка десериализации: %w", err)
	}
	return nil
}

// get читает и декодирует значение; false, если ключа нет
func (s *BadgerStore) get(txn *badger.Txn, key string, v any) (bool, error) {
	item, err := txn.Get([]byte(key))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	data, err := item.ValueCopy(nil)
	if err != nil {
		return false, err
	}
	return true, s.decode(data, v)
}

func (s *BadgerStore) set(txn *badger.Txn, key string, v any) error {
	data, err := s.encode(v)
	if err != nil {
		return err
	}
	return txn.Set([]byte(key), data)
}

func worldKey(id int64) string { return worldKeyPrefix + strconv.FormatInt(id, 10) }

func worldDataPrefix(id int64) string { return "w:" + strconv.FormatInt(id, 10) + ":" }

func chunkPrefix(id int64) string { return worldDataPrefix(id) + "chunk:" }

func boxKey(prefix string, box TileBox) string {
	return fmt.Sprintf("%s%d:%d:%d:%d", prefix, box.MinX, box.MinY, box.MaxX, box.MaxY)
}

func parseBoxKey(prefix string, key []byte) (TileBox, error) {
	var b TileBox
	_, err := fmt.Sscanf(string(key[len(prefix):]), "%d:%d:%d:%d", &b.MinX, &b.MinY, &b.MaxX, &b.MaxY)
	if err != nil {
		return TileBox{}, fmt.Errorf("повреждённый ключ %q: %w", key, err)
	}
	return b, nil
}

func boxesOverlap(a, b TileBox) bool {
	return a.MinX <= b.MaxX && b.MinX <= a.MaxX && a.MinY <= b.MaxY && b.MinY <= a.MaxY
}

// requireWorld проверяет существование мира
func (s *BadgerStore) requireWorld(txn *badger.Txn, id int64) error {
	_, err := txn.Get([]byte(worldKey(id)))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return fmt.Errorf("%w: id %d", ErrWorldNotFound, id)
	}
	return err
}

func (s *BadgerStore) worldByName(txn *badger.Txn, name string) (WorldInfo, error) {
	item, err := txn.Get([]byte(worldNamePrefix + name))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return WorldInfo{}, fmt.Errorf("%w: %s", ErrWorldNotFound, name)
	}
	if err != nil {
		return WorldInfo{}, err
	}
	raw, err := item.ValueCopy(nil)
	if err != nil {
		return WorldInfo{}, err
	}
	id, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return WorldInfo{}, fmt.Errorf("повреждённый индекс мира %q: %w", name, err)
	}
	var info WorldInfo
	found, err := s.get(txn, worldKey(id), &info)
	if err != nil {
		return WorldInfo{}, err
	}
	if !found {
		return WorldInfo{}, fmt.Errorf("%w: %s", ErrWorldNotFound, name)
	}
	return info, nil
}

// CreateWorld создаёт новый мир.
func (s *BadgerStore) CreateWorld(ctx context.Context, name string, seed int64) (WorldInfo, error) {
	if name == "" {
		return WorldInfo{}, fmt.Errorf("пустое имя мира")
	}
	unlock, err := s.ready(ctx)
	if err != nil {
		return WorldInfo{}, err
	}
	defer unlock()

	var info WorldInfo
	err = s.db.Update(func(txn *badger.Txn) error {
		if _, err := s.worldByName(txn, name); err == nil {
			return fmt.Errorf("%w: %s", ErrWorldExists, name)
		} else if !errors.Is(err, ErrWorldNotFound) {
			return err
		}
		next, err := s.seq.Next()
		if err != nil {
			return fmt.Errorf("ошибка получения ID мира: %w", err)
		}
		info = WorldInfo{ID: int64(next) + 1, Name: name, Seed: seed, CreatedAt: time.Now().UTC().Truncate(time.Second)}
		if err := s.set(txn, worldKey(info.ID), info); err != nil {
			return err
		}
		return txn.Set([]byte(worldNamePrefix+name), []byte(strconv.FormatInt(info.ID, 10)))
	})
	if err != nil {
		return WorldInfo{}, err
	}
	logging.GetStorageLogger().Info("Создан мир %q (id=%d, seed=%d)", name, info.ID, seed)
	return info, nil
}

// GetWorld возвращает мир по имени.
func (s *BadgerStore) GetWorld(ctx context.Context, name string) (WorldInfo, error) {
	unlock, err := s.ready(ctx)
	if err != nil {
		return WorldInfo{}, err
	}
	defer unlock()

	var info WorldInfo
	err = s.db.View(func(txn *badger.Txn) error {
		var err error
		info, err = s.worldByName(txn, name)
		return err
	})
	return info, err
}

// ListWorlds возвращает все миры.
func (s *BadgerStore) ListWorlds(ctx context.Context) ([]WorldInfo, error) {
	unlock, err := s.ready(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var out []WorldInfo
	err = s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: []byte(worldKeyPrefix)})
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			data, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			var info WorldInfo
			if err := s.decode(data, &info); err != nil {
				return err
			}
			out = append(out, info)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения списка миров: %w", err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// DeleteWorld удаляет мир и все его данные.
func (s *BadgerStore) DeleteWorld(ctx context.Context, name string) error {
	unlock, err := s.ready(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	var info WorldInfo
	err = s.db.Update(func(txn *badger.Txn) error {
		var err error
		if info, err = s.worldByName(txn, name); err != nil {
			return err
		}
		if err := txn.Delete([]byte(worldKey(info.ID))); err != nil {
			return err
		}
		return txn.Delete([]byte(worldNamePrefix + name))
	})
	if err != nil {
		return err
	}
	if err := s.db.DropPrefix([]byte(worldDataPrefix(info.ID))); err != nil {
		return fmt.Errorf("ошибка удаления данных мира: %w", err)
	}
	return nil
}

// SetWorldScore обновляет счёт мира.
func (s *BadgerStore) SetWorldScore(ctx context.Context, worldID int64, score int64) error {
	unlock, err := s.ready(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	return s.db.Update(func(txn *badger.Txn) error {
		var info WorldInfo
		found, err := s.get(txn, worldKey(worldID), &info)
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("%w: id %d", ErrWorldNotFound, worldID)
		}
		info.Score = score
		return s.set(txn, worldKey(worldID), info)
	})
}

// LoadChunks возвращает сохранённые чанки.
func (s *BadgerStore) LoadChunks(ctx context.Context, worldID int64) ([]vec.Vec2, error) {
	unlock, err := s.ready(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var out []vec.Vec2
	prefix := chunkPrefix(worldID)
	err = s.db.View(func(txn *badger.Txn) error {
		if err := s.requireWorld(txn, worldID); err != nil {
			return err
		}
		opts := badger.IteratorOptions{Prefix: []byte(prefix)}
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			var c vec.Vec2
			key := it.Item().Key()
			if _, err := fmt.Sscanf(string(key[len(prefix):]), "%d:%d", &c.X, &c.Y); err != nil {
				return fmt.Errorf("повреждённый ключ чанка %q: %w", key, err)
			}
			out = append(out, c)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sortChunks(out)
	return out, nil
}

// SaveChunks добавляет чанки в список сохранённых.
func (s *BadgerStore) SaveChunks(ctx context.Context, worldID int64, coords []vec.Vec2) error {
	unlock, err := s.ready(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	return s.db.Update(func(txn *badger.Txn) error {
		if err := s.requireWorld(txn, worldID); err != nil {
			return err
		}
		for _, c := range coords {
			key := fmt.Sprintf("%s%d:%d", chunkPrefix(worldID), c.X, c.Y)
			if err := txn.Set([]byte(key), nil); err != nil {
				return err
			}
		}
		return nil
	})
}

type boxRecord struct {
	key  []byte
	box  TileBox
	data []byte
}

// scanBoxes возвращает все записи с префиксом, чья область пересекается с box
func scanBoxes(txn *badger.Txn, prefix string, box TileBox) ([]boxRecord, error) {
	it := txn.NewIterator(badger.IteratorOptions{Prefix: []byte(prefix), PrefetchValues: true, PrefetchSize: 64})
	defer it.Close()

	var out []boxRecord
	for it.Rewind(); it.Valid(); it.Next() {
		item := it.Item()
		b, err := parseBoxKey(prefix, item.Key())
		if err != nil {
			return nil, err
		}
		if !boxesOverlap(b, box) {
			continue
		}
		data, err := item.ValueCopy(nil)
		if err != nil {
			return nil, err
		}
		out = append(out, boxRecord{key: item.KeyCopy(nil), box: b, data: data})
	}
	return out, nil
}

// loadInBox собирает строки из всех записей, попадающие в box
func loadInBox[T any](s *BadgerStore, txn *badger.Txn, prefix string, box TileBox, pos func(T) (int, int)) ([]T, error) {
	recs, err := scanBoxes(txn, prefix, box)
	if err != nil {
		return nil, err
	}
	var out []T
	for _, rec := range recs {
		var rows []T
		if err := s.decode(rec.data, &rows); err != nil {
			return nil, err
		}
		for _, r := range rows {
			if box.Contains(pos(r)) {
				out = append(out, r)
			}
		}
	}
	return out, nil
}

// replaceInBox удаляет строки внутри box из пересекающихся записей и пишет rows новой записью
func replaceInBox[T any](s *BadgerStore, txn *badger.Txn, prefix string, box TileBox, rows []T, pos func(T) (int, int)) error {
	recs, err := scanBoxes(txn, prefix, box)
	if err != nil {
		return err
	}
	for _, rec := range recs {
		var old []T
		if err := s.decode(rec.data, &old); err != nil {
			return err
		}
		kept := old[:0]
		for _, r := range old {
			if !box.Contains(pos(r)) {
				kept = append(kept, r)
			}
		}
		switch {
		case len(kept) == 0:
			err = txn.Delete(rec.key)
		case len(kept) != len(old):
			err = s.set(txn, string(rec.key), kept)
		}
		if err != nil {
			return err
		}
	}
	if len(rows) == 0 {
		return nil
	}
	return s.set(txn, boxKey(prefix, box), rows)
}

func blockPos(r BlockRow) (int, int)         { return r.X, r.Y }
func objectPos(r StaticObjectRow) (int, int) { return r.X, r.Y }

// LoadBlocks возвращает блоки внутри box.
func (s *BadgerStore) LoadBlocks(ctx context.Context, worldID int64, box TileBox) ([]BlockRow, error) {
	unlock, err := s.ready(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var out []BlockRow
	err = s.db.View(func(txn *badger.Txn) error {
		if err := s.requireWorld(txn, worldID); err != nil {
			return err
		}
		var err error
		out, err = loadInBox(s, txn, worldDataPrefix(worldID)+"blk:", box, blockPos)
		return err
	})
	if err != nil {
		return nil, err
	}
	SortBlockRows(out)
	return out, nil
}

// SaveBlocks заменяет блоки внутри box.
func (s *BadgerStore) SaveBlocks(ctx context.Context, worldID int64, box TileBox, rows []BlockRow) error {
	if err := checkBlockRows(box, rows); err != nil {
		return err
	}
	unlock, err := s.ready(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	return s.db.Update(func(txn *badger.Txn) error {
		if err := s.requireWorld(txn, worldID); err != nil {
			return err
		}
		return replaceInBox(s, txn, worldDataPrefix(worldID)+"blk:", box, rows, blockPos)
	})
}

// LoadStaticObjects возвращает объекты внутри box.
func (s *BadgerStore) LoadStaticObjects(ctx context.Context, worldID int64, box TileBox) ([]StaticObjectRow, error) {
	unlock, err := s.ready(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var out []StaticObjectRow
	err = s.db.View(func(txn *badger.Txn) error {
		if err := s.requireWorld(txn, worldID); err != nil {
			return err
		}
		var err error
		out, err = loadInBox(s, txn, worldDataPrefix(worldID)+"obj:", box, objectPos)
		return err
	})
	if err != nil {
		return nil, err
	}
	SortObjectRows(out)
	return out, nil
}

// SaveStaticObjects заменяет объекты внутри box.
func (s *BadgerStore) SaveStaticObjects(ctx context.Context, worldID int64, box TileBox, rows []StaticObjectRow) error {
	if err := checkObjectRows(box, rows); err != nil {
		return err
	}
	unlock, err := s.ready(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	return s.db.Update(func(txn *badger.Txn) error {
		if err := s.requireWorld(txn, worldID); err != nil {
			return err
		}
		return replaceInBox(s, txn, worldDataPrefix(worldID)+"obj:", box, rows, objectPos)
	})
}

// LoadPlayerLocation возвращает состояние игрока.
func (s *BadgerStore) LoadPlayerLocation(ctx context.Context, worldID int64) (PlayerState, bool, error) {
	unlock, err := s.ready(ctx)
	if err != nil {
		return PlayerState{}, false, err
	}
	defer unlock()

	var st PlayerState
	var found bool
	err = s.db.View(func(txn *badger.Txn) error {
		if err := s.requireWorld(txn, worldID); err != nil {
			return err
		}
		var err error
		found, err = s.get(txn, worldDataPrefix(worldID)+"player", &st)
		return err
	})
	return st, found, err
}

// SavePlayerLocation сохраняет состояние игрока.
func (s *BadgerStore) SavePlayerLocation(ctx context.Context, worldID int64, state PlayerState) error {
	unlock, err := s.ready(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	return s.db.Update(func(txn *badger.Txn) error {
		if err := s.requireWorld(txn, worldID); err != nil {
			return err
		}
		return s.set(txn, worldDataPrefix(worldID)+"player", state)
	})
}

// LoadInventory возвращает инвентарь.
func (s *BadgerStore) LoadInventory(ctx context.Context, worldID int64) ([]InventorySlot, error) {
	unlock, err := s.ready(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var out []InventorySlot
	err = s.db.View(func(txn *badger.Txn) error {
		if err := s.requireWorld(txn, worldID); err != nil {
			return err
		}
		_, err := s.get(txn, worldDataPrefix(worldID)+"inv", &out)
		return err
	})
	if err != nil {
		return nil, err
	}
	sortSlots(out)
	return out, nil
}

// SaveInventory заменяет инвентарь.
func (s *BadgerStore) SaveInventory(ctx context.Context, worldID int64, slots []InventorySlot) error {
	unlock, err := s.ready(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	kept := make([]InventorySlot, 0, len(slots))
	for _, sl := range slots {
		if sl.Count > 0 {
			kept = append(kept, sl)
		}
	}
	return s.db.Update(func(txn *badger.Txn) error {
		if err := s.requireWorld(txn, worldID); err != nil {
			return err
		}
		return s.set(txn, worldDataPrefix(worldID)+"inv", kept)
	})
}
