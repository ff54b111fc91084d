package world

// BlockLayer определяет слой клетки внутри чанка.
//
// 0 – LayerFront: передний слой, участвует в коллизиях;
// 1 – LayerBack: задний фон, только для отрисовки.
type BlockLayer uint8

const (
	LayerFront BlockLayer = iota
	LayerBack

	LayerCount // всегда последний: количество слоев
)

// String возвращает имя слоя для логов
func (l BlockLayer) String() string {
	switch l {
	case LayerFront:
		return "front"
	case LayerBack:
		return "back"
	default:
		return "unknown"
	}
}
