// Package tui draws a live view of a simulation onto a terminal screen.
package tui

import (
	"context"
	"fmt"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/mattn/go-runewidth"
	"github.com/plus3/aerosim/ecs"
	"github.com/plus3/aerosim/sim"
)

var (
	titleStyle  = tcell.StyleDefault.Foreground(tcell.ColorYellow).Bold(true)
	headerStyle = tcell.StyleDefault.Foreground(tcell.ColorWhite).Underline(true)
	rowStyle    = tcell.StyleDefault.Foreground(tcell.ColorWhite)
	mutedStyle  = tcell.StyleDefault.Foreground(tcell.ColorGray)
)

// historyFrames is how many redraw intervals the frame time average covers.
const historyFrames = 60

// Inspector is a system that redraws the entity table every few ticks.
type Inspector struct {
	screen tcell.Screen
	every  uint64
	frames int

	lastDraw time.Time
	history  [historyFrames]time.Duration
	sampled  int
}

// InspectorOption configures an Inspector.
type InspectorOption func(*Inspector)

// RedrawEvery limits drawing to one tick in n.
func RedrawEvery(n uint64) InspectorOption {
	return func(i *Inspector) {
		if n > 0 {
			i.every = n
		}
	}
}

// NewInspector draws onto screen, which must already be initialized.
func NewInspector(screen tcell.Screen, opts ...InspectorOption) *Inspector {
	i := &Inspector{screen: screen, every: 1}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

func (i *Inspector) Name() string { return "inspector" }

// Frames returns how many times the screen has been drawn.
func (i *Inspector) Frames() int { return i.frames }

func (i *Inspector) Init(*ecs.World) error {
	i.screen.Clear()
	i.screen.Show()
	return nil
}

func (i *Inspector) Run(frame *ecs.UpdateFrame) error {
	if frame.Tick%i.every != 0 {
		return nil
	}
	i.Draw(frame.World, frame.Tick)
	return nil
}

// Draw renders a title line and one row per live entity. Rows that do not
// fit the screen are summarized on the last line.
func (i *Inspector) Draw(w *ecs.World, tick uint64) {
	i.screen.Clear()
	width, height := i.screen.Size()

	stats := w.CollectStats()
	title := fmt.Sprintf("aerosim  tick %d  entities %d  components %d", tick, stats.EntityCount, stats.ComponentCount)
	i.drawText(0, 0, width, title, titleStyle)
	if avg, ok := i.sampleFrameTime(); ok {
		i.drawText(0, 1, width, fmt.Sprintf("avg redraw interval %.2f ms", float64(avg.Microseconds())/1000), mutedStyle)
	}
	i.drawText(0, height-1, width, "q/esc to quit", mutedStyle)

	infos := sim.Describe(w)
	widths := columnWidths(infos)

	i.drawRow(2, width, widths, sim.ReportHeader, headerStyle)

	// Title, blank, header and footer take four rows.
	capacity := max(height-4, 0)
	for n, info := range infos {
		if n == capacity-1 && len(infos) > capacity {
			i.drawText(0, 3+n, width, fmt.Sprintf("… %d more", len(infos)-n), mutedStyle)
			break
		}
		if n >= capacity {
			break
		}
		i.drawRow(3+n, width, widths, info.Columns(), rowStyle)
	}

	i.frames++
	i.screen.Show()
}

// sampleFrameTime records the wall time since the previous Draw and returns
// the average over the recent history.
func (i *Inspector) sampleFrameTime() (time.Duration, bool) {
	now := time.Now()
	defer func() { i.lastDraw = now }()
	if i.lastDraw.IsZero() {
		return 0, false
	}

	i.history[i.sampled%historyFrames] = now.Sub(i.lastDraw)
	i.sampled++

	n := min(i.sampled, historyFrames)
	var total time.Duration
	for _, d := range i.history[:n] {
		total += d
	}
	return total / time.Duration(n), true
}

func columnWidths(infos []sim.EntityInfo) []int {
	widths := make([]int, len(sim.ReportHeader))
	for c, cell := range sim.ReportHeader {
		widths[c] = runewidth.StringWidth(cell)
	}
	for _, info := range infos {
		for c, cell := range info.Columns() {
			widths[c] = max(widths[c], runewidth.StringWidth(cell))
		}
	}
	return widths
}

func (i *Inspector) drawRow(y, limit int, widths []int, cells []string, style tcell.Style) {
	x := 0
	for c, cell := range cells {
		i.drawText(x, y, limit, cell, style)
		x += widths[c] + 2
	}
}

// drawText writes text from (x, y), advancing by each rune's cell width and
// stopping at limit.
func (i *Inspector) drawText(x, y, limit int, text string, style tcell.Style) {
	for _, r := range text {
		rw := runewidth.RuneWidth(r)
		if rw == 0 {
			continue
		}
		if x+rw > limit {
			return
		}
		i.screen.SetContent(x, y, r, nil, style)
		x += rw
	}
}

// WatchQuit polls screen events until q, Esc or Ctrl-C is pressed, then
// calls cancel. It returns when that happens, when ctx is done or when the
// screen is finalized.
func WatchQuit(ctx context.Context, screen tcell.Screen, cancel context.CancelFunc) {
	go func() {
		<-ctx.Done()
		// Wake PollEvent so the loop below can observe cancellation.
		_ = screen.PostEvent(tcell.NewEventInterrupt(nil))
	}()

	for {
		ev := screen.PollEvent()
		if ev == nil || ctx.Err() != nil {
			return
		}
		switch ev := ev.(type) {
		case *tcell.EventKey:
			if ev.Key() == tcell.KeyEscape || ev.Key() == tcell.KeyCtrlC || (ev.Key() == tcell.KeyRune && ev.Rune() == 'q') {
				cancel()
				return
			}
		case *tcell.EventResize:
			screen.Sync()
		}
	}
}
