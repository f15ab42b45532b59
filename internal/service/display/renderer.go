package display

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/oshokin/tempmon/internal/logger"
)

// Renderer puts frames on a physical or virtual display.
type Renderer interface {
	Render(ctx context.Context, frame Frame) error
}

// LogRenderer writes every frame change to the log.
type LogRenderer struct {
	// last is the previously rendered frame.
	last *Frame
}

// NewLogRenderer creates a renderer that logs frame changes.
func NewLogRenderer() *LogRenderer {
	return new(LogRenderer)
}

// Render logs the frame when it differs from the previous one.
func (r *LogRenderer) Render(ctx context.Context, frame Frame) error {
	if r.last != nil && r.last.Equal(frame) {
		return nil
	}

	r.last = &frame

	logger.InfoKV(ctx, "Display updated",
		"screen", frame.Screen.String(),
		"power", frame.Power,
		"lines", strings.Join(frame.Lines, " | "),
	)

	return nil
}

//nolint:gochecknoglobals // Styles are immutable once built.
var (
	panelStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1).
			Width(36)

	activeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	ackStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("226"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("46")).Bold(true)
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

// TerminalRenderer draws frames as a bordered panel on a terminal.
type TerminalRenderer struct {
	// w receives the rendered panel.
	w io.Writer
	// last is the previously rendered frame.
	last *Frame
}

// NewTerminalRenderer creates a renderer writing to w.
func NewTerminalRenderer(w io.Writer) *TerminalRenderer {
	return &TerminalRenderer{w: w}
}

// Render draws the frame when it differs from the previous one.
func (r *TerminalRenderer) Render(_ context.Context, frame Frame) error {
	if r.last != nil && r.last.Equal(frame) {
		return nil
	}

	r.last = &frame

	if _, err := fmt.Fprintln(r.w, Panel(frame)); err != nil {
		return fmt.Errorf("render frame: %w", err)
	}

	return nil
}

// Panel renders a frame as styled text.
func Panel(frame Frame) string {
	if !frame.Power {
		return panelStyle.Render(dimStyle.Render("(display off)"))
	}

	lines := make([]string, 0, len(frame.Lines))

	for i, line := range frame.Lines {
		if i == 0 {
			line = headerStyle(frame.Screen).Render(line)
		}

		lines = append(lines, line)
	}

	return panelStyle.Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

func headerStyle(s Screen) lipgloss.Style {
	switch s {
	case ScreenActive:
		return activeStyle
	case ScreenAcknowledged:
		return ackStyle
	case ScreenOK:
		return okStyle
	default:
		return dimStyle
	}
}
