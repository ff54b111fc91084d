package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Engine собирает Prometheus-метрики движка: чанки, блоки, перерисовки, кадры.
// Nil *Engine допустим: все методы становятся no-op.
type Engine struct {
	chunksResident    prometheus.Gauge
	chunksGenerated   prometheus.Counter
	chunksRestored    prometheus.Counter
	blocksDestroyed   prometheus.Counter
	blocksPlaced      prometheus.Counter
	elementsDestroyed prometheus.Counter
	repaints          *prometheus.CounterVec
	windowShifts      prometheus.Counter
	frameSeconds      prometheus.Histogram
}

// NewEngine создаёт метрики и регистрирует их в reg.
// Тесты передают prometheus.NewRegistry(), чтобы не конфликтовать с глобальным регистром.
func NewEngine(reg prometheus.Registerer) *Engine {
	e := &Engine{
		chunksResident: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "engine",
			Name:      "chunks_resident",
			Help:      "Количество загруженных в память чанков.",
		}),
		chunksGenerated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "engine",
			Name:      "chunks_generated_total",
			Help:      "Чанки, созданные генератором ландшафта.",
		}),
		chunksRestored: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "engine",
			Name:      "chunks_restored_total",
			Help:      "Чанки, восстановленные из хранилища.",
		}),
		blocksDestroyed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "engine",
			Name:      "blocks_destroyed_total",
			Help:      "Разрушенные добычей блоки.",
		}),
		blocksPlaced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "engine",
			Name:      "blocks_placed_total",
			Help:      "Поставленные блоки.",
		}),
		elementsDestroyed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "engine",
			Name:      "elements_destroyed_total",
			Help:      "Разрушенные статические объекты.",
		}),
		repaints: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "engine",
			Name:      "repaints_total",
			Help:      "Перерисовки чанков по типу (full/partial).",
		}, []string{"kind"}),
		windowShifts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "engine",
			Name:      "window_shifts_total",
			Help:      "Сдвиги окна отрисовки 3x3.",
		}),
		frameSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "engine",
			Name:      "frame_seconds",
			Help:      "Длительность обработки кадра.",
			Buckets:   []float64{0.001, 0.002, 0.004, 0.008, 0.016, 0.033, 0.066, 0.133},
		}),
	}
	reg.MustRegister(
		e.chunksResident, e.chunksGenerated, e.chunksRestored,
		e.blocksDestroyed, e.blocksPlaced, e.elementsDestroyed,
		e.repaints, e.windowShifts, e.frameSeconds,
	)
	return e
}

// ChunkGenerated учитывает сгенерированный чанк
func (e *Engine) ChunkGenerated(resident int) {
	if e == nil {
		return
	}
	e.chunksGenerated.Inc()
	e.chunksResident.Set(float64(resident))
}

// ChunkRestored учитывает чанк, восстановленный из хранилища
func (e *Engine) ChunkRestored(resident int) {
	if e == nil {
		return
	}
	e.chunksRestored.Inc()
	e.chunksResident.Set(float64(resident))
}

func (e *Engine) BlockDestroyed() {
	if e != nil {
		e.blocksDestroyed.Inc()
	}
}

func (e *Engine) BlocksPlaced(n int) {
	if e != nil && n > 0 {
		e.blocksPlaced.Add(float64(n))
	}
}

func (e *Engine) ElementDestroyed() {
	if e != nil {
		e.elementsDestroyed.Inc()
	}
}

// Repaint учитывает перерисовку чанка
func (e *Engine) Repaint(full bool) {
	if e == nil {
		return
	}
	kind := "partial"
	if full {
		kind = "full"
	}
	e.repaints.WithLabelValues(kind).Inc()
}

func (e *Engine) WindowShift() {
	if e != nil {
		e.windowShifts.Inc()
	}
}

// ObserveFrame записывает длительность кадра
func (e *Engine) ObserveFrame(d time.Duration) {
	if e != nil {
		e.frameSeconds.Observe(d.Seconds())
	}
}
