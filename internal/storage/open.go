package storage

import "fmt"

// Open создаёт хранилище по имени драйвера: sqlite, badger или memory.
func Open(driver, path string) (Store, error) {
	switch driver {
	case "sqlite":
		return NewSQLiteStore(path)
	case "badger":
		return NewBadgerStore(path)
	case "memory":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("неизвестный драйвер хранилища: %q", driver)
	}
}
