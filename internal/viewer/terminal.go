package viewer

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/annel0/survival-game/internal/game"
	"github.com/annel0/survival-game/internal/logging"
	"github.com/annel0/survival-game/internal/vec"
)

const (
	// pixelsPerCell - ширина клетки терминала в пикселях растра. Высота клетки вдвое больше.
	pixelsPerCell = 4
	// holdTimeout - сколько нажатая клавиша считается удерживаемой.
	// Терминал не сообщает об отпускании клавиш.
	holdTimeout = 150 * time.Millisecond
	halfBlock   = '▀'
)

type action int

const (
	actLeft action = iota
	actRight
	actJump
	actMineAhead
	actMineBelow
	actCount
)

var hudStyle = tcell.StyleDefault.
	Foreground(tcell.NewRGBColor(240, 240, 240)).
	Background(tcell.NewRGBColor(30, 30, 30))

// Terminal показывает сессию в терминале и переводит нажатия клавиш во ввод игрока
type Terminal struct {
	screen  tcell.Screen
	session *game.Session
	fps     int

	held   [actCount]time.Time
	put    bool
	raster *image.RGBA

	logger *logging.Logger
}

// NewTerminal создаёт просмотрщик поверх экрана tcell
func NewTerminal(screen tcell.Screen, s *game.Session, fps int) *Terminal {
	if fps <= 0 {
		fps = 60
	}
	return &Terminal{
		screen:  screen,
		session: s,
		fps:     fps,
		logger:  logging.GetComponentLogger("viewer"),
	}
}

// Run инициализирует экран и крутит кадры до отмены ctx или клавиши выхода
func (t *Terminal) Run(ctx context.Context) error {
	if err := t.screen.Init(); err != nil {
		return fmt.Errorf("ошибка инициализации терминала: %w", err)
	}
	defer t.screen.Fini()
	t.screen.HideCursor()

	events := make(chan tcell.Event, 64)
	quit := make(chan struct{})
	go t.screen.ChannelEvents(events, quit)
	defer close(quit)

	ticker := time.NewTicker(time.Second / time.Duration(t.fps))
	defer ticker.Stop()

	t.logger.Info("🖥️ Просмотрщик запущен, %d кадров/с", t.fps)
	last := time.Now()
	t.Draw()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok || !t.HandleEvent(ev, time.Now()) {
				return nil
			}
		case now := <-ticker.C:
			dt := now.Sub(last).Seconds()
			last = now
			if err := t.session.Step(dt, t.Input(now)); err != nil {
				return err
			}
			t.Draw()
		}
	}
}

// HandleEvent обрабатывает событие терминала. Возвращает false, если нужно выйти.
func (t *Terminal) HandleEvent(ev tcell.Event, now time.Time) bool {
	switch e := ev.(type) {
	case *tcell.EventResize:
		t.screen.Sync()
	case *tcell.EventKey:
		return t.handleKey(e, now)
	}
	return true
}

func (t *Terminal) handleKey(e *tcell.EventKey, now time.Time) bool {
	switch e.Key() {
	case tcell.KeyEscape, tcell.KeyCtrlC:
		return false
	case tcell.KeyLeft:
		t.held[actLeft] = now
	case tcell.KeyRight:
		t.held[actRight] = now
	case tcell.KeyUp:
		t.held[actJump] = now
	case tcell.KeyDown:
		t.held[actMineBelow] = now
	case tcell.KeyRune:
		return t.handleRune(e.Rune(), now)
	}
	return true
}

func (t *Terminal) handleRune(r rune, now time.Time) bool {
	switch {
	case r == 'q':
		return false
	case r == 'a':
		t.held[actLeft] = now
	case r == 'd':
		t.held[actRight] = now
	case r == ' ' || r == 'w':
		t.held[actJump] = now
	case r == 'm':
		t.held[actMineAhead] = now
	case r == 'n':
		t.held[actMineBelow] = now
	case r == 'p':
		t.put = true
	case r == 'b':
		t.session.ToggleBackLayer()
	case r >= '1' && r <= '9':
		t.session.Inventory().Select(int(r - '1'))
	case r == '0':
		t.session.Inventory().Select(9)
	}
	return true
}

func (t *Terminal) holding(a action, now time.Time) bool {
	at := t.held[a]
	return !at.IsZero() && now.Sub(at) < holdTimeout
}

// Input собирает ввод игрока на момент now. Установка блока срабатывает один раз на нажатие.
func (t *Terminal) Input(now time.Time) game.Input {
	in := game.Input{
		Left:  t.holding(actLeft, now),
		Right: t.holding(actRight, now),
		Jump:  t.holding(actJump, now),
		Put:   t.put,
	}
	t.put = false
	switch {
	case t.holding(actMineBelow, now):
		in.Mine = true
		in.Aim = vec.Vec2{X: 0, Y: 1}
	case t.holding(actMineAhead, now):
		in.Mine = true
	}
	return in
}

// Draw рисует окно вокруг игрока. Каждая клетка терминала показывает
// две точки растра: верхнюю цветом символа, нижнюю цветом фона.
// Последняя строка занята панелью инвентаря.
func (t *Terminal) Draw() {
	w, h := t.screen.Size()
	rows := h - 1
	if w <= 0 || rows <= 0 {
		return
	}

	k := pixelsPerCell
	bounds := image.Rect(0, 0, w*k, rows*2*k)
	if t.raster == nil || t.raster.Rect != bounds {
		t.raster = image.NewRGBA(bounds)
	}
	t.session.Render(t.raster)

	for y := 0; y < rows; y++ {
		for x := 0; x < w; x++ {
			px := x*k + k/2
			top := t.raster.RGBAAt(px, 2*y*k+k/2)
			bottom := t.raster.RGBAAt(px, (2*y+1)*k+k/2)
			style := tcell.StyleDefault.Foreground(rgb(top)).Background(rgb(bottom))
			t.screen.SetContent(x, y, halfBlock, nil, style)
		}
	}
	t.drawHUD(rows, w)
	t.screen.Show()
}

func (t *Terminal) drawHUD(y, w int) {
	line := t.HUD()
	x := 0
	for _, r := range line {
		if x >= w {
			break
		}
		t.screen.SetContent(x, y, r, nil, hudStyle)
		x++
	}
	for ; x < w; x++ {
		t.screen.SetContent(x, y, ' ', nil, hudStyle)
	}
}

// HUD возвращает строку панели: ячейки инвентаря, слой установки и счёт
func (t *Terminal) HUD() string {
	inv := t.session.Inventory()
	reg := t.session.World().Registry()
	line := ""
	for i := 0; i < game.MaxSlots; i++ {
		s := inv.Slot(i)
		label := "-"
		if s.Count > 0 {
			label = fmt.Sprintf("%d", s.Item)
			if def, err := reg.Item(s.Item); err == nil {
				label = def.Name
			}
			label = fmt.Sprintf("%s×%d", label, s.Count)
		}
		if i == inv.Selected() {
			line += fmt.Sprintf("[%d:%s] ", (i+1)%10, label)
		} else {
			line += fmt.Sprintf(" %d:%s  ", (i+1)%10, label)
		}
	}
	layer := "передний"
	if t.session.BackLayer() {
		layer = "задний"
	}
	return fmt.Sprintf("%s| слой: %s | счёт: %d", line, layer, t.session.Score())
}

func rgb(c color.RGBA) tcell.Color {
	return tcell.NewRGBColor(int32(c.R), int32(c.G), int32(c.B))
}
