package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/annel0/survival-game/internal/logging"
	"github.com/annel0/survival-game/internal/vec"
)

// SQLiteStore реализует Store поверх SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore открывает (или создаёт) базу по пути path.
// Путь ":memory:" открывает базу в памяти.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("пустой путь к базе")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("ошибка создания каталога базы: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("ошибка открытия SQLite: %w", err)
	}
	// Одно соединение: база в памяти живёт только внутри него
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initSQLite(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	logging.GetStorageLogger().Info("SQLite хранилище открыто: %s", path)
	return &SQLiteStore{db: db}, nil
}

func initSQLite(db *sql.DB) error {
	stmts := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
		`CREATE TABLE IF NOT EXISTS Worlds (
			world_id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL UNIQUE,
			seed INTEGER NOT NULL,
			score INTEGER NOT NULL DEFAULT 0,
			created_at INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS Chunks (
			world_id INTEGER NOT NULL REFERENCES Worlds(world_id) ON DELETE CASCADE,
			x INTEGER NOT NULL,
			y INTEGER NOT NULL,
			PRIMARY KEY (world_id, x, y)
		);`,
		`CREATE TABLE IF NOT EXISTS Blocks (
			block_id INTEGER PRIMARY KEY AUTOINCREMENT,
			world_id INTEGER NOT NULL REFERENCES Worlds(world_id) ON DELETE CASCADE,
			x INTEGER NOT NULL,
			y INTEGER NOT NULL,
			layer INTEGER NOT NULL,
			type INTEGER NOT NULL,
			UNIQUE (world_id, x, y, layer)
		);`,
		`CREATE TABLE IF NOT EXISTS StaticObjects (
			object_id INTEGER PRIMARY KEY AUTOINCREMENT,
			world_id INTEGER NOT NULL REFERENCES Worlds(world_id) ON DELETE CASCADE,
			x INTEGER NOT NULL,
			y INTEGER NOT NULL,
			type INTEGER NOT NULL,
			width REAL NOT NULL,
			height REAL NOT NULL,
			health REAL NOT NULL,
			max_health REAL NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_static_objects_world_xy ON StaticObjects(world_id, y, x);`,
		`CREATE TABLE IF NOT EXISTS PlayerLocations (
			world_id INTEGER PRIMARY KEY REFERENCES Worlds(world_id) ON DELETE CASCADE,
			x REAL NOT NULL,
			y REAL NOT NULL,
			health REAL NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS Inventory (
			world_id INTEGER NOT NULL REFERENCES Worlds(world_id) ON DELETE CASCADE,
			slot INTEGER NOT NULL,
			item_id INTEGER NOT NULL,
			item_count INTEGER NOT NULL,
			PRIMARY KEY (world_id, slot)
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return fmt.Errorf("ошибка инициализации схемы: %w", err)
		}
	}
	return nil
}

// inTx выполняет fn в транзакции
func (s *SQLiteStore) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return s.wrap("ошибка начала транзакции", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return s.wrap("ошибка фиксации транзакции", err)
	}
	return nil
}

func (s *SQLiteStore) wrap(msg string, err error) error {
	if errors.Is(err, sql.ErrConnDone) || strings.Contains(err.Error(), "database is closed") {
		return ErrClosed
	}
	return fmt.Errorf("%s: %w", msg, err)
}

type rowQuerier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// requireWorld проверяет существование мира
func (s *SQLiteStore) requireWorld(ctx context.Context, q rowQuerier, worldID int64) error {
	var one int
	err := q.QueryRowContext(ctx, `SELECT 1 FROM Worlds WHERE world_id = ?`, worldID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: id %d", ErrWorldNotFound, worldID)
	}
	if err != nil {
		return s.wrap("ошибка проверки мира", err)
	}
	return nil
}

// CreateWorld создаёт новый мир.
func (s *SQLiteStore) CreateWorld(ctx context.Context, name string, seed int64) (WorldInfo, error) {
	if name == "" {
		return WorldInfo{}, fmt.Errorf("пустое имя мира")
	}
	if _, err := s.GetWorld(ctx, name); err == nil {
		return WorldInfo{}, fmt.Errorf("%w: %s", ErrWorldExists, name)
	} else if !errors.Is(err, ErrWorldNotFound) {
		return WorldInfo{}, err
	}

	created := time.Now().UTC().Truncate(time.Second)
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO Worlds(name, seed, score, created_at) VALUES(?, ?, 0, ?)`,
		name, seed, created.Unix())
	if err != nil {
		return WorldInfo{}, s.wrap("ошибка создания мира", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return WorldInfo{}, s.wrap("ошибка получения ID мира", err)
	}
	logging.GetStorageLogger().Info("Создан мир %q (id=%d, seed=%d)", name, id, seed)
	return WorldInfo{ID: id, Name: name, Seed: seed, CreatedAt: created}, nil
}

func scanWorld(sc interface{ Scan(...any) error }) (WorldInfo, error) {
	var info WorldInfo
	var created int64
	if err := sc.Scan(&info.ID, &info.Name, &info.Seed, &info.Score, &created); err != nil {
		return WorldInfo{}, err
	}
	info.CreatedAt = time.Unix(created, 0).UTC()
	return info, nil
}

// GetWorld возвращает мир по имени.
func (s *SQLiteStore) GetWorld(ctx context.Context, name string) (WorldInfo, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT world_id, name, seed, score, created_at FROM Worlds WHERE name = ?`, name)
	info, err := scanWorld(row)
	if errors.Is(err, sql.ErrNoRows) {
		return WorldInfo{}, fmt.Errorf("%w: %s", ErrWorldNotFound, name)
	}
	if err != nil {
		return WorldInfo{}, s.wrap("ошибка чтения мира", err)
	}
	return info, nil
}

// ListWorlds возвращает все миры.
func (s *SQLiteStore) ListWorlds(ctx context.Context) ([]WorldInfo, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT world_id, name, seed, score, created_at FROM Worlds ORDER BY world_id`)
	if err != nil {
		return nil, s.wrap("ошибка чтения списка миров", err)
	}
	defer rows.Close()

	var out []WorldInfo
	for rows.Next() {
		info, err := scanWorld(rows)
		if err != nil {
			return nil, s.wrap("ошибка чтения мира", err)
		}
		out = append(out, info)
	}
	return out, rows.Err()
}

// DeleteWorld удаляет мир и все его данные.
func (s *SQLiteStore) DeleteWorld(ctx context.Context, name string) error {
	info, err := s.GetWorld(ctx, name)
	if err != nil {
		return err
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		for _, table := range []string{"Chunks", "Blocks", "StaticObjects", "PlayerLocations", "Inventory", "Worlds"} {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE world_id = ?", info.ID); err != nil {
				return s.wrap("ошибка удаления мира", err)
			}
		}
		return nil
	})
}

// SetWorldScore обновляет счёт мира.
func (s *SQLiteStore) SetWorldScore(ctx context.Context, worldID int64, score int64) error {
	res, err := s.db.ExecContext(ctx, `UPDATE Worlds SET score = ? WHERE world_id = ?`, score, worldID)
	if err != nil {
		return s.wrap("ошибка обновления счёта", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: id %d", ErrWorldNotFound, worldID)
	}
	return nil
}

// LoadChunks возвращает сохранённые чанки.
func (s *SQLiteStore) LoadChunks(ctx context.Context, worldID int64) ([]vec.Vec2, error) {
	if err := s.requireWorld(ctx, s.db, worldID); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `SELECT x, y FROM Chunks WHERE world_id = ? ORDER BY y, x`, worldID)
	if err != nil {
		return nil, s.wrap("ошибка чтения чанков", err)
	}
	defer rows.Close()

	var out []vec.Vec2
	for rows.Next() {
		var c vec.Vec2
		if err := rows.Scan(&c.X, &c.Y); err != nil {
			return nil, s.wrap("ошибка чтения чанка", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// SaveChunks добавляет чанки в список сохранённых.
func (s *SQLiteStore) SaveChunks(ctx context.Context, worldID int64, coords []vec.Vec2) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if err := s.requireWorld(ctx, tx, worldID); err != nil {
			return err
		}
		stmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO Chunks(world_id, x, y) VALUES(?, ?, ?)`)
		if err != nil {
			return s.wrap("ошибка подготовки запроса", err)
		}
		defer stmt.Close()
		for _, c := range coords {
			if _, err := stmt.ExecContext(ctx, worldID, c.X, c.Y); err != nil {
				return s.wrap("ошибка сохранения чанка", err)
			}
		}
		return nil
	})
}

// LoadBlocks возвращает блоки внутри box.
func (s *SQLiteStore) LoadBlocks(ctx context.Context, worldID int64, box TileBox) ([]BlockRow, error) {
	if err := s.requireWorld(ctx, s.db, worldID); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT x, y, layer, type FROM Blocks
		 WHERE world_id = ? AND x BETWEEN ? AND ? AND y BETWEEN ? AND ?
		 ORDER BY y, x, layer`,
		worldID, box.MinX, box.MaxX, box.MinY, box.MaxY)
	if err != nil {
		return nil, s.wrap("ошибка чтения блоков", err)
	}
	defer rows.Close()

	var out []BlockRow
	for rows.Next() {
		var r BlockRow
		if err := rows.Scan(&r.X, &r.Y, &r.Layer, &r.Type); err != nil {
			return nil, s.wrap("ошибка чтения блока", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// SaveBlocks заменяет блоки внутри box.
func (s *SQLiteStore) SaveBlocks(ctx context.Context, worldID int64, box TileBox, rows []BlockRow) error {
	if err := checkBlockRows(box, rows); err != nil {
		return err
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if err := s.requireWorld(ctx, tx, worldID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM Blocks WHERE world_id = ? AND x BETWEEN ? AND ? AND y BETWEEN ? AND ?`,
			worldID, box.MinX, box.MaxX, box.MinY, box.MaxY); err != nil {
			return s.wrap("ошибка очистки блоков", err)
		}
		stmt, err := tx.PrepareContext(ctx, `INSERT INTO Blocks(world_id, x, y, layer, type) VALUES(?, ?, ?, ?, ?)`)
		if err != nil {
			return s.wrap("ошибка подготовки запроса", err)
		}
		defer stmt.Close()
		for _, r := range rows {
			if _, err := stmt.ExecContext(ctx, worldID, r.X, r.Y, r.Layer, r.Type); err != nil {
				return s.wrap("ошибка сохранения блока", err)
			}
		}
		return nil
	})
}

// LoadStaticObjects возвращает объекты внутри box.
func (s *SQLiteStore) LoadStaticObjects(ctx context.Context, worldID int64, box TileBox) ([]StaticObjectRow, error) {
	if err := s.requireWorld(ctx, s.db, worldID); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT x, y, type, width, height, health, max_health FROM StaticObjects
		 WHERE world_id = ? AND x BETWEEN ? AND ? AND y BETWEEN ? AND ?
		 ORDER BY y, x, type`,
		worldID, box.MinX, box.MaxX, box.MinY, box.MaxY)
	if err != nil {
		return nil, s.wrap("ошибка чтения объектов", err)
	}
	defer rows.Close()

	var out []StaticObjectRow
	for rows.Next() {
		var r StaticObjectRow
		if err := rows.Scan(&r.X, &r.Y, &r.Type, &r.Width, &r.Height, &r.Health, &r.MaxHealth); err != nil {
			return nil, s.wrap("ошибка чтения объекта", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// SaveStaticObjects заменяет объекты внутри box.
func (s *SQLiteStore) SaveStaticObjects(ctx context.Context, worldID int64, box TileBox, rows []StaticObjectRow) error {
	if err := checkObjectRows(box, rows); err != nil {
		return err
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if err := s.requireWorld(ctx, tx, worldID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM StaticObjects WHERE world_id = ? AND x BETWEEN ? AND ? AND y BETWEEN ? AND ?`,
			worldID, box.MinX, box.MaxX, box.MinY, box.MaxY); err != nil {
			return s.wrap("ошибка очистки объектов", err)
		}
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO StaticObjects(world_id, x, y, type, width, height, health, max_health)
			 VALUES(?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return s.wrap("ошибка подготовки запроса", err)
		}
		defer stmt.Close()
		for _, r := range rows {
			if _, err := stmt.ExecContext(ctx, worldID, r.X, r.Y, r.Type, r.Width, r.Height, r.Health, r.MaxHealth); err != nil {
				return s.wrap("ошибка сохранения объекта", err)
			}
		}
		return nil
	})
}

// LoadPlayerLocation возвращает состояние игрока.
func (s *SQLiteStore) LoadPlayerLocation(ctx context.Context, worldID int64) (PlayerState, bool, error) {
	if err := s.requireWorld(ctx, s.db, worldID); err != nil {
		return PlayerState{}, false, err
	}
	var st PlayerState
	err := s.db.QueryRowContext(ctx,
		`SELECT x, y, health FROM PlayerLocations WHERE world_id = ?`, worldID).
		Scan(&st.X, &st.Y, &st.Health)
	if errors.Is(err, sql.ErrNoRows) {
		return PlayerState{}, false, nil
	}
	if err != nil {
		return PlayerState{}, false, s.wrap("ошибка чтения позиции игрока", err)
	}
	return st, true, nil
}

// SavePlayerLocation сохраняет состояние игрока.
func (s *SQLiteStore) SavePlayerLocation(ctx context.Context, worldID int64, state PlayerState) error {
	if err := s.requireWorld(ctx, s.db, worldID); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO PlayerLocations(world_id, x, y, health) VALUES(?, ?, ?, ?)
		 ON CONFLICT(world_id) DO UPDATE SET x = excluded.x, y = excluded.y, health = excluded.health`,
		worldID, state.X, state.Y, state.Health)
	if err != nil {
		return s.wrap("ошибка сохранения позиции игрока", err)
	}
	return nil
}

// LoadInventory возвращает инвентарь.
func (s *SQLiteStore) LoadInventory(ctx context.Context, worldID int64) ([]InventorySlot, error) {
	if err := s.requireWorld(ctx, s.db, worldID); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT slot, item_id, item_count FROM Inventory WHERE world_id = ? ORDER BY slot`, worldID)
	if err != nil {
		return nil, s.wrap("ошибка чтения инвентаря", err)
	}
	defer rows.Close()

	var out []InventorySlot
	for rows.Next() {
		var sl InventorySlot
		if err := rows.Scan(&sl.Slot, &sl.Item, &sl.Count); err != nil {
			return nil, s.wrap("ошибка чтения ячейки инвентаря", err)
		}
		out = append(out, sl)
	}
	return out, rows.Err()
}

// SaveInventory заменяет инвентарь.
func (s *SQLiteStore) SaveInventory(ctx context.Context, worldID int64, slots []InventorySlot) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if err := s.requireWorld(ctx, tx, worldID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM Inventory WHERE world_id = ?`, worldID); err != nil {
			return s.wrap("ошибка очистки инвентаря", err)
		}
		for _, sl := range slots {
			if sl.Count <= 0 {
				continue
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO Inventory(world_id, slot, item_id, item_count) VALUES(?, ?, ?, ?)`,
				worldID, sl.Slot, sl.Item, sl.Count); err != nil {
				return s.wrap("ошибка сохранения инвентаря", err)
			}
		}
		return nil
	})
}

// Close закрывает базу.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
