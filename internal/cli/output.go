package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	xansi "github.com/charmbracelet/x/ansi"
	"golang.org/x/term"

	"github.com/tgienger/tasktrack/internal/models"
	"github.com/tgienger/tasktrack/internal/ui/styles"
	"github.com/tgienger/tasktrack/internal/ui/views"
	"github.com/tgienger/tasktrack/internal/viewmodel"
)

// maxTitle is the widest title column in table output
const maxTitle = 48

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(styles.Current.Accent)
	dimStyle    = lipgloss.NewStyle().Foreground(styles.Current.ForegroundDim)
)

// writeJSON writes v as indented JSON
func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encoding JSON: %w", err)
	}
	return nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// terminalWidth is the width of w, 0 when w is not a terminal
func terminalWidth(w io.Writer) int {
	f, ok := w.(*os.File)
	if !ok {
		return 0
	}
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil {
		return 0
	}
	return width
}

func padRight(s string, width int) string {
	if pad := width - xansi.StringWidth(s); pad > 0 {
		return s + strings.Repeat(" ", pad)
	}
	return s
}

func truncate(s string, width int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if xansi.StringWidth(s) > width {
		return xansi.Truncate(s, width, "…")
	}
	return s
}

// taskTable renders rows as an aligned table
func taskTable(w io.Writer, rows []viewmodel.Row) {
	if len(rows) == 0 {
		fmt.Fprintln(w, "No tasks found.")
		return
	}

	const pad = 2
	idW, titleW, projW, assigneeW, prioW, statusW := 2+pad, 5+pad, 7+pad, 8+pad, 8+pad, 6+pad
	for _, r := range rows {
		idW = max(idW, len(strconv.FormatInt(r.ID, 10))+pad)
		titleW = max(titleW, min(xansi.StringWidth(r.Title), maxTitle)+pad)
		projW = max(projW, xansi.StringWidth(r.Project)+pad)
		assigneeW = max(assigneeW, xansi.StringWidth(r.Assignee)+pad)
		prioW = max(prioW, len(r.PriorityLabel)+pad)
		statusW = max(statusW, len(r.StatusLabel)+pad)
	}

	header := padRight("ID", idW) + padRight("TITLE", titleW) + padRight("PROJECT", projW) +
		padRight("ASSIGNEE", assigneeW) + padRight("PRIORITY", prioW) + padRight("STATUS", statusW) + "DUE"
	fmt.Fprintln(w, headerStyle.Render(header))

	for _, r := range rows {
		due := r.Due
		switch {
		case r.Overdue:
			due = lipgloss.NewStyle().Foreground(styles.Current.Error).Render(due + " !")
		case due == viewmodel.NotSet:
			due = dimStyle.Render(due)
		}
		assignee := r.Assignee
		if assignee == viewmodel.Unassigned {
			assignee = dimStyle.Render(assignee)
		}
		fmt.Fprintln(w,
			padRight(strconv.FormatInt(r.ID, 10), idW)+
				padRight(truncate(r.Title, maxTitle), titleW)+
				padRight(r.Project, projW)+
				padRight(assignee, assigneeW)+
				padRight(lipgloss.NewStyle().Foreground(styles.PriorityColor(r.Priority)).Render(r.PriorityLabel), prioW)+
				padRight(lipgloss.NewStyle().Foreground(styles.StatusColor(r.Status)).Render(r.StatusLabel), statusW)+
				due,
		)
	}
}

// taskDetail renders one task with its comments
func taskDetail(w io.Writer, d viewmodel.Detail, width int) {
	fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("#%d %s", d.ID, d.Title)))
	for _, f := range d.Fields {
		fmt.Fprintf(w, "%s %s\n", dimStyle.Render(padRight(f.Label+":", 11)), f.Value)
	}
	fmt.Fprintln(w)
	if strings.TrimSpace(d.Description) == "" {
		fmt.Fprintln(w, dimStyle.Render("No description"))
	} else {
		fmt.Fprintln(w, renderMarkdown(d.Description, width))
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("Comments (%d)", len(d.Comments))))
	commentList(w, d.Comments)
}

func commentList(w io.Writer, comments []viewmodel.Comment) {
	for _, c := range comments {
		fmt.Fprintf(w, "[%d] %s %s\n", c.ID, c.Author, dimStyle.Render(c.Created))
		for _, line := range strings.Split(c.Content, "\n") {
			fmt.Fprintln(w, "    "+line)
		}
		for _, a := range c.Attachments {
			fmt.Fprintf(w, "    attachment %d: %s\n", a.ID, a.Filename)
		}
	}
}

func renderMarkdown(md string, width int) string {
	if width <= 0 {
		width = 80
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(views.MarkdownStyle),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return md
	}
	out, err := r.Render(md)
	if err != nil {
		return md
	}
	return strings.Trim(out, "\n")
}

// notificationTable renders journal entries newest first
func notificationTable(w io.Writer, notes []models.Notification, loc *time.Location) {
	if len(notes) == 0 {
		fmt.Fprintln(w, "No notifications.")
		return
	}
	for _, n := range notes {
		level := lipgloss.NewStyle().Foreground(styles.LevelColor(n.Level)).Render(padRight(strings.ToUpper(string(n.Level)), 6))
		fmt.Fprintf(w, "%s %s %s\n", dimStyle.Render(n.CreatedAt.In(loc).Format("2006-01-02 15:04:05")), level, n.Message)
	}
}
