package block

import "errors"

// BlockID представляет идентификатор типа блока. 0 - пустая клетка.
type BlockID uint16

// ElementID представляет идентификатор типа статического объекта (дерево, камень)
type ElementID uint16

// ItemID представляет идентификатор предмета
type ItemID uint16

// Empty - пустая клетка (воздух)
const Empty BlockID = 0

// IsEmpty проверяет, что клетка пуста
func (id BlockID) IsEmpty() bool { return id == Empty }

// Ошибки конфигурации метаданных. Они не восстанавливаются: загрузка прерывается.
var (
	ErrUnknownBlock   = errors.New("unknown block")
	ErrUnknownElement = errors.New("unknown element")
	ErrUnknownItem    = errors.New("unknown item")
	ErrInvalidCatalog = errors.New("invalid catalog")
)
