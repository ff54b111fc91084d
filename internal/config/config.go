package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig возвращается Validate при недопустимых значениях
var ErrInvalidConfig = errors.New("invalid config")

// Config корневая структура конфигурации движка.
// После загрузки не изменяется: нужные секции копируются в конструкторы.
type Config struct {
	Engine    Engine        `yaml:"engine"`
	Generator Generator     `yaml:"generator"`
	Physics   Physics       `yaml:"physics"`
	Player    Player        `yaml:"player"`
	Storage   StorageConfig `yaml:"storage"`
	Catalog   CatalogConfig `yaml:"catalog"`
	Logging   LoggingConfig `yaml:"logging"`
	Metrics   MetricsConfig `yaml:"metrics"`
	Viewer    ViewerConfig  `yaml:"viewer"`
}

// Engine - неизменяемые параметры сетки и разрушения блоков
type Engine struct {
	ChunkSize           int     `yaml:"chunk_size"`            // клеток по стороне чанка
	BlockSize           int     `yaml:"block_size"`            // пикселей по стороне клетки
	RenderWindow        int     `yaml:"render_window"`         // окно отрисовки в чанках, всегда 3
	BreakingStages      int     `yaml:"breaking_stages"`       // число стадий трещин
	BlockRecoveryRate   float64 `yaml:"block_recovery_rate"`   // восстановление урона блока в секунду
	ElementRecoveryRate float64 `yaml:"element_recovery_rate"` // восстановление прочности объекта в секунду
}

// ChunkPixels возвращает размер чанка в пикселях
func (e Engine) ChunkPixels() int {
	return e.ChunkSize * e.BlockSize
}

// Generator - параметры процедурного рельефа
type Generator struct {
	ReliefFrequency   float64 `yaml:"relief_frequency"`
	ReliefAmplitude   float64 `yaml:"relief_amplitude"` // в клетках
	DetailFrequency   float64 `yaml:"detail_frequency"`
	DetailAmplitude   float64 `yaml:"detail_amplitude"` // в клетках
	CaveFrequency     float64 `yaml:"cave_frequency"`
	OreFrequency      float64 `yaml:"ore_frequency"`
	SurfaceThreshold  float64 `yaml:"surface_threshold"`
	DirtThreshold     float64 `yaml:"dirt_threshold"`
	StoneThreshold    float64 `yaml:"stone_threshold"`
	BackThreshold     float64 `yaml:"back_threshold"`
	DeepOffset        int     `yaml:"deep_offset"` // клеток от поверхности до камня
	DecorationChance  float64 `yaml:"decoration_chance"`
	DecorationElement string  `yaml:"decoration_element"`
	SurfaceBlock      string  `yaml:"surface_block"`
	SoilBlock         string  `yaml:"soil_block"`
	DeepBlock         string  `yaml:"deep_block"`
	NoiseAlpha        float64 `yaml:"noise_alpha"`
	NoiseBeta         float64 `yaml:"noise_beta"`
	NoiseOctaves      int32   `yaml:"noise_octaves"`
}

// Physics - параметры движения тел
type Physics struct {
	Gravity          float64 `yaml:"gravity"`            // пикс/с^2
	MaxFallSpeed     float64 `yaml:"max_fall_speed"`     // пикс/с
	QueryMarginTiles int     `yaml:"query_margin_tiles"` // запас вокруг тела при запросе коллизий
}

// Player - параметры управляемого тела
type Player struct {
	Width     float64 `yaml:"width"`
	Height    float64 `yaml:"height"`
	WalkSpeed float64 `yaml:"walk_speed"`
	JumpSpeed float64 `yaml:"jump_speed"`
	MineDPS   float64 `yaml:"mine_dps"`
	Reach     float64 `yaml:"reach"` // в клетках
}

// StorageConfig - выбор хранилища
type StorageConfig struct {
	Driver string `yaml:"driver"` // sqlite | badger | memory
	Path   string `yaml:"path"`
}

// CatalogConfig - каталог метаданных блоков. Пустой Dir означает встроенный каталог.
type CatalogConfig struct {
	Dir string `yaml:"dir"`
}

// LoggingConfig - параметры логирования
type LoggingConfig struct {
	Dir          string `yaml:"dir"`
	ConsoleLevel string `yaml:"console_level"`
	FileLevel    string `yaml:"file_level"`
}

// MetricsConfig - адрес экспорта Prometheus метрик
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// GetAddr возвращает адрес метрик с приоритетом config -> env -> default
func (m MetricsConfig) GetAddr() string {
	return getWithEnvFallback(m.Addr, "GAME_METRICS_ADDR", ":2112")
}

// ViewerConfig - параметры терминального просмотрщика
type ViewerConfig struct {
	FPS int `yaml:"fps"`
}

// Default возвращает полностью заполненную конфигурацию
func Default() *Config {
	const chunk = 16
	return &Config{
		Engine: Engine{
			ChunkSize:           chunk,
			BlockSize:           16,
			RenderWindow:        3,
			BreakingStages:      5,
			BlockRecoveryRate:   0.5,
			ElementRecoveryRate: 0.5,
		},
		Generator: Generator{
			ReliefFrequency:   0.0009,
			ReliefAmplitude:   chunk * 4,
			DetailFrequency:   0.05,
			DetailAmplitude:   chunk * 0.25,
			CaveFrequency:     0.09,
			OreFrequency:      0.02,
			SurfaceThreshold:  0.01,
			DirtThreshold:     0.03,
			StoneThreshold:    0.1,
			BackThreshold:     0.0009,
			DeepOffset:        chunk,
			DecorationChance:  0.05,
			DecorationElement: "large_tree",
			SurfaceBlock:      "grass",
			SoilBlock:         "dirt",
			DeepBlock:         "stone",
			NoiseAlpha:        2,
			NoiseBeta:         2,
			NoiseOctaves:      3,
		},
		Physics: Physics{
			Gravity:          1400,
			MaxFallSpeed:     900,
			QueryMarginTiles: 3,
		},
		Player: Player{
			Width:     12,
			Height:    28,
			WalkSpeed: 120,
			JumpSpeed: 420,
			MineDPS:   2,
			Reach:     4,
		},
		Storage: StorageConfig{
			Driver: "sqlite",
			Path:   "data/world.db",
		},
		Logging: LoggingConfig{
			Dir:          "logs",
			ConsoleLevel: "INFO",
			FileLevel:    "DEBUG",
		},
		Viewer: ViewerConfig{FPS: 60},
	}
}

// Validate проверяет согласованность параметров
func (c *Config) Validate() error {
	e := c.Engine
	switch {
	case e.ChunkSize <= 1:
		return fmt.Errorf("%w: engine.chunk_size должен быть > 1, получено %d", ErrInvalidConfig, e.ChunkSize)
	case e.BlockSize <= 0:
		return fmt.Errorf("%w: engine.block_size должен быть > 0", ErrInvalidConfig)
	case e.RenderWindow != 3:
		return fmt.Errorf("%w: engine.render_window поддерживается только 3, получено %d", ErrInvalidConfig, e.RenderWindow)
	case e.BreakingStages <= 0:
		return fmt.Errorf("%w: engine.breaking_stages должен быть > 0", ErrInvalidConfig)
	case e.BlockRecoveryRate < 0 || e.ElementRecoveryRate < 0:
		return fmt.Errorf("%w: скорости восстановления не могут быть отрицательными", ErrInvalidConfig)
	}
	if c.Generator.DecorationChance < 0 || c.Generator.DecorationChance > 1 {
		return fmt.Errorf("%w: generator.decoration_chance вне [0,1]", ErrInvalidConfig)
	}
	if c.Generator.DeepOffset < 0 {
		return fmt.Errorf("%w: generator.deep_offset не может быть отрицательным", ErrInvalidConfig)
	}
	if c.Physics.MaxFallSpeed <= 0 || c.Physics.Gravity < 0 {
		return fmt.Errorf("%w: physics.gravity/max_fall_speed", ErrInvalidConfig)
	}
	if c.Viewer.FPS <= 0 {
		return fmt.Errorf("%w: viewer.fps должен быть > 0", ErrInvalidConfig)
	}
	// За один кадр тело не должно пролетать больше одной клетки
	if c.Physics.MaxFallSpeed/float64(c.Viewer.FPS) > float64(e.BlockSize) {
		return fmt.Errorf("%w: max_fall_speed %.0f позволяет пролететь больше клетки за кадр", ErrInvalidConfig, c.Physics.MaxFallSpeed)
	}
	switch c.Storage.Driver {
	case "sqlite", "badger", "memory":
	default:
		return fmt.Errorf("%w: неизвестный storage.driver %q", ErrInvalidConfig, c.Storage.Driver)
	}
	return nil
}

// Load читает YAML файл конфигурации поверх значений по умолчанию.
// Если path == "", пытается прочитать путь из ENV GAME_CONFIG; без файла возвращает Default().
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		path = os.Getenv("GAME_CONFIG")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("ошибка чтения конфигурации %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("ошибка разбора конфигурации %s: %w", path, err)
		}
	}

	// Переменные окружения имеют приоритет над файлом
	if v := os.Getenv("GAME_STORAGE_PATH"); v != "" {
		cfg.Storage.Path = v
	}
	if v := os.Getenv("GAME_STORAGE_DRIVER"); v != "" {
		cfg.Storage.Driver = v
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// getWithEnvFallback возвращает значение с приоритетом: config -> env -> default
func getWithEnvFallback(value, envVar, def string) string {
	if value != "" {
		return value
	}
	if envVal := os.Getenv(envVar); envVal != "" {
		return envVal
	}
	return def
}
