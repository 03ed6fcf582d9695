package sim

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"
	"github.com/pkg/errors"
	"github.com/plus3/aerosim/ecs"
)

// MaxNameWidth is the display width names are truncated to in reports.
const MaxNameWidth = 24

// EntityInfo is a printable summary of one entity.
type EntityInfo struct {
	Entity   ecs.EntityId
	Name     string
	Position string
	Velocity string
	Speed    string
}

// Columns returns the cells in report order.
func (e EntityInfo) Columns() []string {
	return []string{e.Entity.String(), e.Name, e.Position, e.Velocity, e.Speed}
}

// ReportHeader names the columns of EntityInfo.Columns.
var ReportHeader = []string{"ENTITY", "NAME", "POSITION", "VELOCITY", "SPEED"}

// Describe summarizes every live entity of w in slot order. Missing
// components are shown as "-".
func Describe(w *ecs.World) []EntityInfo {
	infos := make([]EntityInfo, 0, w.EntityCount())
	for id := range w.Entities() {
		info := EntityInfo{Entity: id, Name: "-", Position: "-", Velocity: "-", Speed: "-"}
		if name, ok := ecs.GetComponent[Name](w, id); ok {
			info.Name = runewidth.Truncate(name.Value, MaxNameWidth, "…")
		}
		if pos, ok := ecs.GetComponent[Position](w, id); ok {
			info.Position = pos.String()
		}
		if vel, ok := ecs.GetComponent[Velocity](w, id); ok {
			info.Velocity = vel.String()
			info.Speed = fmt.Sprintf("%.2f", vel.Magnitude())
		}
		infos = append(infos, info)
	}
	return infos
}

// WriteTable writes rows under header with columns padded to their widest
// cell. Widths are measured in terminal cells, so wide runes line up.
func WriteTable(out io.Writer, header []string, rows [][]string) error {
	widths := make([]int, len(header))
	for i, cell := range header {
		widths[i] = runewidth.StringWidth(cell)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) {
				widths[i] = max(widths[i], runewidth.StringWidth(cell))
			}
		}
	}

	var b strings.Builder
	writeRow := func(row []string) {
		for i, cell := range row {
			if i >= len(widths) {
				break
			}
			if i == len(row)-1 {
				b.WriteString(cell)
			} else {
				b.WriteString(runewidth.FillRight(cell, widths[i]))
				b.WriteString("  ")
			}
		}
		b.WriteByte('\n')
	}

	writeRow(header)
	for _, row := range rows {
		writeRow(row)
	}

	_, err := io.WriteString(out, b.String())
	return err
}

// DebugSystem periodically writes a table of every entity to an io.Writer.
type DebugSystem struct {
	out      io.Writer
	interval float64
	elapsed  float64
	reports  int
}

// NewDebugSystem reports to out every interval of simulated time. A zero
// interval disables reporting.
func NewDebugSystem(out io.Writer, interval time.Duration) *DebugSystem {
	return &DebugSystem{
		out:      out,
		interval: interval.Seconds(),
	}
}

func (s *DebugSystem) Name() string { return "debug" }

// Reports returns how many reports have been written.
func (s *DebugSystem) Reports() int {
	return s.reports
}

func (s *DebugSystem) Run(frame *ecs.UpdateFrame) error {
	if s.interval <= 0 {
		return nil
	}

	s.elapsed += frame.DeltaTime
	if s.elapsed < s.interval {
		return nil
	}
	s.elapsed = 0

	return s.Report(frame.World, frame.Tick)
}

// Report writes the entity table immediately.
func (s *DebugSystem) Report(w *ecs.World, tick uint64) error {
	infos := Describe(w)
	rows := make([][]string, len(infos))
	for i, info := range infos {
		rows[i] = info.Columns()
	}

	if _, err := fmt.Fprintf(s.out, "=== tick %d: %d entities ===\n", tick, len(infos)); err != nil {
		return errors.Wrap(err, "write debug report")
	}
	if err := WriteTable(s.out, ReportHeader, rows); err != nil {
		return errors.Wrap(err, "write debug report")
	}
	s.reports++
	return nil
}
