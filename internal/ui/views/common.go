package views

import (
	"context"
	"strconv"
	"strings"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	xansi "github.com/charmbracelet/x/ansi"

	"github.com/tgienger/tasktrack/internal/controller"
)

// EventMsg carries the result of a finished controller op back to the update loop
type EventMsg struct {
	Event controller.Event
}

// AppliedMsg is forwarded to the views after the app applied an event
type AppliedMsg struct {
	Outcome controller.Outcome
}

// ReloadReference asks the app to refetch users and projects
type ReloadReference struct{}

// Run turns ops into commands. Each op runs off the update loop and reports
// back with an EventMsg.
func Run(ctx context.Context, ops ...controller.Op) tea.Cmd {
	var cmds []tea.Cmd
	for _, op := range ops {
		if op == nil {
			continue
		}
		cmds = append(cmds, func() tea.Msg {
			return EventMsg{Event: op(ctx)}
		})
	}
	return tea.Batch(cmds...)
}

// clamp returns val clamped between minVal and maxVal
func clamp(val, minVal, maxVal int) int {
	if val < minVal {
		return minVal
	}
	if val > maxVal {
		return maxVal
	}
	return val
}

// fit truncates s to exactly width cells, padding with spaces
func fit(s string, width int) string {
	if width <= 0 {
		return ""
	}
	s = strings.ReplaceAll(s, "\n", " ")
	if xansi.StringWidth(s) > width {
		s = xansi.Truncate(s, width, "…")
	}
	if pad := width - xansi.StringWidth(s); pad > 0 {
		s += strings.Repeat(" ", pad)
	}
	return s
}

// clipLines keeps at most height lines of s, starting at offset
func clipLines(s string, offset, height int) string {
	lines := strings.Split(s, "\n")
	if offset > len(lines) {
		offset = len(lines)
	}
	lines = lines[max(offset, 0):]
	if height >= 0 && len(lines) > height {
		lines = lines[:height]
	}
	return strings.Join(lines, "\n")
}

// MarkdownStyle is the glamour style used for task descriptions. "notty"
// renders without colors.
var MarkdownStyle = "dark"

var (
	mdRendererMu sync.Mutex
	// renderers are cached per style and wrap width
	mdRenderers = map[string]*glamour.TermRenderer{}
)

func renderMarkdown(md string, width int) string {
	md = strings.TrimSpace(md)
	if md == "" {
		return ""
	}
	width = max(width, 10)

	mdRendererMu.Lock()
	key := MarkdownStyle + ":" + strconv.Itoa(width)
	r := mdRenderers[key]
	if r == nil {
		rr, err := glamour.NewTermRenderer(
			glamour.WithStandardStyle(MarkdownStyle),
			glamour.WithWordWrap(width),
		)
		if err != nil {
			mdRendererMu.Unlock()
			return md
		}
		mdRenderers[key] = rr
		r = rr
	}
	mdRendererMu.Unlock()

	out, err := r.Render(md)
	if err != nil {
		return md
	}
	return strings.Trim(out, "\n")
}
