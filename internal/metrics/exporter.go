package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/annel0/survival-game/internal/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Exporter управляет HTTP-эндпоинтом Prometheus /metrics.
type Exporter struct {
	server *http.Server
}

// NewExporter создаёт экспортер для gatherer, но не запускает HTTP-сервер.
func NewExporter(addr string, gatherer prometheus.Gatherer) *Exporter {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	return &Exporter{
		server: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

// Handler возвращает HTTP-обработчик (для тестов)
func (x *Exporter) Handler() http.Handler { return x.server.Handler }

// StartHTTP запускает сервер в отдельной горутине. Метод неблокирующий.
func (x *Exporter) StartHTTP() {
	go func() {
		logging.Info("📈 Prometheus /metrics доступен по адресу %s", x.server.Addr)
		if err := x.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error("Ошибка Prometheus HTTP сервера: %v", err)
		}
	}()
}

// Shutdown останавливает HTTP-сервер
func (x *Exporter) Shutdown(ctx context.Context) error {
	return x.server.Shutdown(ctx)
}
