package game

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"
	"time"

	"github.com/annel0/survival-game/internal/config"
	"github.com/annel0/survival-game/internal/eventbus"
	"github.com/annel0/survival-game/internal/logging"
	"github.com/annel0/survival-game/internal/metrics"
	"github.com/annel0/survival-game/internal/physics"
	"github.com/annel0/survival-game/internal/render"
	"github.com/annel0/survival-game/internal/storage"
	"github.com/annel0/survival-game/internal/vec"
	"github.com/annel0/survival-game/internal/world"
	"github.com/annel0/survival-game/internal/world/block"
)

// defaultHealth - здоровье нового игрока
const defaultHealth = 100

// PlayerColor - цвет игрока поверх собранного окна
var PlayerColor = color.RGBA{R: 214, G: 48, B: 49, A: 255}

// Input - намерения игрока на один кадр
type Input struct {
	Left, Right bool
	Jump        bool
	Mine        bool
	Put         bool
	// Aim - смещение целевой клетки от клетки центра игрока.
	// Нулевое значение означает клетку перед игроком.
	Aim vec.Vec2
}

type options struct {
	seed    int64
	metrics *metrics.Engine
	sinks   []world.EventSink
}

// Option настраивает Session
type Option func(*options)

// WithSeed задаёт сид для нового мира. Существующий мир хранит свой сид.
func WithSeed(seed int64) Option {
	return func(o *options) { o.seed = seed }
}

// WithMetrics подключает метрики движка
func WithMetrics(m *metrics.Engine) Option {
	return func(o *options) { o.metrics = m }
}

// WithEventSink добавляет внешний приёмник событий мира (например, шину событий)
func WithEventSink(sink world.EventSink) Option {
	return func(o *options) { o.sinks = append(o.sinks, sink) }
}

// Session связывает мир, физику игрока, инвентарь и кэш отрисовки
// и выполняет кадры в строгом порядке.
type Session struct {
	cfg   *config.Config
	store storage.Store

	world     *world.World
	mover     *physics.Mover
	cache     *render.Cache
	player    *physics.Body
	inventory *Inventory

	health    float64
	facing    int
	backLayer bool
	score     int64
	maxStep   float64

	drops       []world.ItemDropEvent
	needsReinit bool

	metrics *metrics.Engine
	logger  *logging.Logger
}

// Open открывает или создаёт мир worldName и восстанавливает игрока и инвентарь
func Open(ctx context.Context, cfg *config.Config, reg *block.Registry, store storage.Store, worldName string, opts ...Option) (*Session, error) {
	o := options{seed: time.Now().UnixNano()}
	for _, opt := range opts {
		opt(&o)
	}

	s := &Session{
		cfg:       cfg,
		store:     store,
		mover:     physics.NewMover(cfg.Engine, cfg.Physics),
		inventory: NewInventory(reg),
		health:    defaultHealth,
		facing:    1,
		maxStep:   1 / float64(cfg.Viewer.FPS),
		metrics:   o.metrics,
		logger:    logging.GetGameLogger(),
	}

	info, err := store.GetWorld(ctx, worldName)
	if errors.Is(err, storage.ErrWorldNotFound) {
		info, err = store.CreateWorld(ctx, worldName, o.seed)
		if err == nil {
			s.logger.Info("🌱 Создан мир %q с сидом %d", worldName, o.seed)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка открытия мира %q: %w", worldName, err)
	}

	gen, err := world.NewGenerator(cfg.Engine, cfg.Generator, info.Seed, reg)
	if err != nil {
		return nil, err
	}
	sinks := append(eventbus.MultiSink{world.EventSinkFunc(s.collect)}, o.sinks...)
	s.world = world.New(cfg.Engine, info, gen, reg, world.WithEventSink(sinks), world.WithMetrics(o.metrics))
	if err := s.world.Open(ctx, store); err != nil {
		return nil, err
	}

	state, ok, err := store.LoadPlayerLocation(ctx, info.ID)
	if err != nil {
		return nil, fmt.Errorf("ошибка загрузки игрока: %w", err)
	}
	s.player = &physics.Body{
		Rect:    vec.Rect{W: cfg.Player.Width, H: cfg.Player.Height},
		Gravity: true,
	}
	if ok {
		s.player.Rect.X, s.player.Rect.Y = state.X, state.Y
		s.health = state.Health
	} else {
		s.spawn(gen)
	}

	slots, err := store.LoadInventory(ctx, info.ID)
	if err != nil {
		return nil, fmt.Errorf("ошибка загрузки инвентаря: %w", err)
	}
	if err := s.inventory.Restore(slots); err != nil {
		return nil, err
	}

	// Окно строится до первого кадра, чтобы физика видела землю под игроком
	s.cache = render.NewCache(cfg.Engine, render.NewAtlas(cfg.Engine, reg), render.WithMetrics(o.metrics))
	s.cache.UpdateWindow(s.world, s.player.Center())
	s.cache.RepaintDirty()
	s.needsReinit = false

	s.logger.Info("🎮 Сессия мира %q открыта, игрок в %.1f,%.1f", info.Name, s.player.Rect.X, s.player.Rect.Y)
	return s, nil
}

// spawn ставит игрока над поверхностью в столбце 0
func (s *Session) spawn(gen *world.Generator) {
	bs := float64(s.cfg.Engine.BlockSize)
	row := gen.SurfaceRow(0)
	s.player.Rect.X = (bs - s.player.Rect.W) / 2
	s.player.SetFeet(float64(row-1) * bs)
}

// collect принимает события мира синхронно, в том же кадре
func (s *Session) collect(ev world.Event) {
	switch e := ev.(type) {
	case world.ItemDropEvent:
		s.drops = append(s.drops, e)
	case world.BlockDestroyedEvent:
		s.score++
	case world.ElementDestroyedEvent:
		s.score++
	case world.RenderReinitEvent:
		s.needsReinit = true
	}
}

// Step выполняет один кадр: ввод, состояние мира, подбор выпавших предметов,
// физика, окно отрисовки, перерисовка.
func (s *Session) Step(dt float64, in Input) error {
	start := time.Now()

	if err := s.applyInput(dt, in); err != nil {
		return err
	}
	if err := s.world.UpdateWorldState(dt); err != nil {
		return fmt.Errorf("ошибка обновления мира: %w", err)
	}
	s.pickup()

	// Смещение за шаг физики не должно превышать клетки
	steps := int(math.Ceil(dt / s.maxStep))
	for i := 0; i < steps; i++ {
		h := math.Min(s.maxStep, dt-float64(i)*s.maxStep)
		if h <= 0 {
			break
		}
		center, size := s.mover.QueryArea(s.player)
		s.mover.Step(s.player, s.world.CollisionRectsAround(center, size), h)
	}

	if s.needsReinit {
		s.cache.Reset()
		s.needsReinit = false
	}
	s.cache.UpdateWindow(s.world, s.player.Center())
	s.cache.RepaintDirty()

	s.metrics.ObserveFrame(time.Since(start))
	return nil
}

func (s *Session) applyInput(dt float64, in Input) error {
	p := s.cfg.Player
	switch {
	case in.Left && !in.Right:
		s.player.Velocity.X = -p.WalkSpeed
		s.facing = -1
	case in.Right && !in.Left:
		s.player.Velocity.X = p.WalkSpeed
		s.facing = 1
	default:
		s.player.Velocity.X = 0
	}
	if in.Jump && s.player.Grounded {
		s.player.Velocity.Y = -p.JumpSpeed
	}

	if !in.Mine && !in.Put {
		return nil
	}
	pos, ok := s.target(in.Aim)
	if !ok {
		return nil
	}
	bs := float64(s.cfg.Engine.BlockSize)
	cell := vec.Vec2Float{X: bs, Y: bs}

	if in.Mine {
		s.world.Mine(pos, cell, p.MineDPS, dt)
	}
	if in.Put {
		stack := s.inventory.Slot(s.inventory.Selected())
		if stack.Count == 0 {
			return nil
		}
		def, err := s.world.Registry().Item(stack.Item)
		if err != nil {
			return err
		}
		if def.PlaceAs == block.Empty {
			return nil
		}
		placed, err := s.world.Put(pos, cell, def.PlaceAs, 1, s.player.Rect, s.backLayer)
		if err != nil {
			return err
		}
		s.inventory.Remove(stack.Item, placed)
	}
	return nil
}

// target возвращает левый верхний угол целевой клетки и false, если она вне досягаемости
func (s *Session) target(aim vec.Vec2) (vec.Vec2Float, bool) {
	if aim == (vec.Vec2{}) {
		aim = vec.Vec2{X: s.facing}
	}
	if math.Hypot(float64(aim.X), float64(aim.Y)) > s.cfg.Player.Reach {
		return vec.Vec2Float{}, false
	}
	bs := s.cfg.Engine.BlockSize
	tile := vec.TileAt(s.player.Center(), bs).Add(aim)
	return vec.FromVec2(tile).Mul(float64(bs)), true
}

// pickup переносит выпавшие за кадр предметы в инвентарь. Не поместившееся теряется.
func (s *Session) pickup() {
	for _, d := range s.drops {
		if added := s.inventory.Add(d.Item, d.Count); added < d.Count {
			s.logger.Debug("Инвентарь полон: потеряно %d предметов %d", d.Count-added, d.Item)
		}
	}
	s.drops = s.drops[:0]
}

// Render собирает окно вокруг игрока в dst и рисует игрока
func (s *Session) Render(dst *image.RGBA) {
	viewer := s.player.Center()
	s.cache.Composite(dst, viewer)
	render.Overlay(dst, viewer, s.player.Rect, PlayerColor)
}

// ToggleBackLayer переключает слой, на который ставятся блоки
func (s *Session) ToggleBackLayer() { s.backLayer = !s.backLayer }

// BackLayer сообщает, ставятся ли блоки на задний слой
func (s *Session) BackLayer() bool { return s.backLayer }

// World возвращает мир сессии
func (s *Session) World() *world.World { return s.world }

// Player возвращает тело игрока
func (s *Session) Player() *physics.Body { return s.player }

// Inventory возвращает инвентарь игрока
func (s *Session) Inventory() *Inventory { return s.inventory }

// Cache возвращает кэш отрисовки
func (s *Session) Cache() *render.Cache { return s.cache }

// Score возвращает счёт мира с учётом текущей сессии
func (s *Session) Score() int64 { return s.world.Info().Score + s.score }

// Close сохраняет изменённые чанки, игрока, инвентарь и счёт. Хранилище не закрывается.
func (s *Session) Close(ctx context.Context) error {
	id := s.world.Info().ID
	if err := s.world.Save(ctx, s.store); err != nil {
		return err
	}
	state := storage.PlayerState{X: s.player.Rect.X, Y: s.player.Rect.Y, Health: s.health}
	if err := s.store.SavePlayerLocation(ctx, id, state); err != nil {
		return fmt.Errorf("ошибка сохранения игрока: %w", err)
	}
	if err := s.store.SaveInventory(ctx, id, s.inventory.Slots()); err != nil {
		return fmt.Errorf("ошибка сохранения инвентаря: %w", err)
	}
	if err := s.store.SetWorldScore(ctx, id, s.Score()); err != nil {
		return fmt.Errorf("ошибка сохранения счёта: %w", err)
	}
	s.logger.Info("👋 Сессия мира %q закрыта, счёт %d", s.world.Info().Name, s.Score())
	return nil
}
