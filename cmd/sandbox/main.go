package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/annel0/survival-game/internal/config"
	"github.com/annel0/survival-game/internal/eventbus"
	"github.com/annel0/survival-game/internal/game"
	"github.com/annel0/survival-game/internal/logging"
	"github.com/annel0/survival-game/internal/metrics"
	"github.com/annel0/survival-game/internal/storage"
	"github.com/annel0/survival-game/internal/viewer"
	"github.com/annel0/survival-game/internal/world/block"
)

func main() {
	configPath := flag.String("config", "configs/sandbox.yaml", "путь к YAML конфигурации")
	worldName := flag.String("world", "sandbox", "имя мира")
	seed := flag.Int64("seed", time.Now().UnixNano(), "сид для нового мира")
	headless := flag.Int("headless", 0, "выполнить N кадров без терминала и выйти")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("❌ Ошибка загрузки конфигурации: %v", err)
	}

	// В режиме терминала консоль занята экраном, логи пишутся только в файлы
	if err := logging.InitDefaultLogger("sandbox", cfg.Logging.Dir); err != nil {
		log.Fatalf("❌ Ошибка инициализации логирования: %v", err)
	}
	defer logging.CloseDefaultLogger()

	consoleLevel, err := logging.ParseLevel(cfg.Logging.ConsoleLevel)
	if err != nil {
		log.Fatalf("❌ %v", err)
	}
	fileLevel, err := logging.ParseLevel(cfg.Logging.FileLevel)
	if err != nil {
		log.Fatalf("❌ %v", err)
	}
	if *headless == 0 {
		consoleLevel = logging.OFF
	}
	logging.SetDefaultLevels(consoleLevel, fileLevel)
	logging.GetLoggerManager().Enable(consoleLevel, fileLevel)
	defer logging.GetLoggerManager().CloseAll()

	logging.Info("🎮 Запуск песочницы, мир %q", *worldName)

	reg, err := loadRegistry(cfg.Catalog.Dir)
	if err != nil {
		logging.Error("❌ Ошибка загрузки каталога блоков: %v", err)
		os.Exit(1)
	}
	logging.Debug("Каталог блоков загружен, дайджест %s", reg.Digest())

	store, err := storage.Open(cfg.Storage.Driver, cfg.Storage.Path)
	if err != nil {
		logging.Error("❌ Ошибка открытия хранилища: %v", err)
		os.Exit(1)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logging.Error("❌ Ошибка закрытия хранилища: %v", err)
		}
	}()

	// === МЕТРИКИ ===
	promReg := prometheus.NewRegistry()
	promReg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	engineMetrics := metrics.NewEngine(promReg)
	exporter := metrics.NewExporter(cfg.Metrics.GetAddr(), promReg)
	exporter.StartHTTP()

	// === ШИНА СОБЫТИЙ ===
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	bus := eventbus.NewMemoryBus(1024)
	if _, err := eventbus.StartLoggingListener(ctx, bus); err != nil {
		logging.Warn("⚠️ Логирование событий недоступно: %v", err)
	}
	busMetrics := eventbus.NewMetricsExporter(bus, promReg)
	busMetrics.Start(5 * time.Second)

	session, err := game.Open(ctx, cfg, reg, store, *worldName,
		game.WithSeed(*seed),
		game.WithMetrics(engineMetrics),
		game.WithEventSink(eventbus.NewWorldSink(bus, *worldName)),
	)
	if err != nil {
		logging.Error("❌ Ошибка открытия сессии: %v", err)
		os.Exit(1)
	}

	if *headless > 0 {
		err = runHeadless(ctx, session, *headless, cfg.Viewer.FPS)
	} else {
		err = runTerminal(ctx, session, cfg.Viewer.FPS)
	}
	if err != nil {
		logging.Error("❌ Ошибка игрового цикла: %v", err)
	}

	// === GRACEFUL SHUTDOWN ===
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := session.Close(shutdownCtx); err != nil {
		logging.Error("❌ Ошибка сохранения мира: %v", err)
	}
	busMetrics.Stop()
	bus.Close()
	if err := exporter.Shutdown(shutdownCtx); err != nil {
		logging.Error("❌ Ошибка остановки экспорта метрик: %v", err)
	}
	logging.Info("👋 Песочница остановлена, счёт %d", session.Score())
}

func loadRegistry(dir string) (*block.Registry, error) {
	if dir == "" {
		return block.LoadDefault()
	}
	return block.LoadDir(dir)
}

func runTerminal(ctx context.Context, s *game.Session, fps int) error {
	screen, err := tcell.NewScreen()
	if err != nil {
		return err
	}
	return viewer.NewTerminal(screen, s, fps).Run(ctx)
}

// runHeadless выполняет frames кадров с фиксированным шагом без ввода
func runHeadless(ctx context.Context, s *game.Session, frames, fps int) error {
	dt := 1 / float64(fps)
	for i := 0; i < frames; i++ {
		select {
		case <-ctx.Done():
			logging.Info("📡 Получен сигнал, остановка на кадре %d", i)
			return nil
		default:
		}
		if err := s.Step(dt, game.Input{}); err != nil {
			return err
		}
	}
	p := s.Player()
	logging.Info("✅ Выполнено %d кадров, игрок в %.1f,%.1f", frames, p.Rect.X, p.Rect.Y)
	return nil
}
