// Package export writes a task list to a file as JSON or as a PDF report.
package export

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tgienger/tasktrack/internal/models"
	"github.com/tgienger/tasktrack/internal/viewmodel"
)

// Format is an export file format
type Format string

const (
	FormatJSON Format = "json"
	FormatPDF  Format = "pdf"
)

// ParseFormat validates a format name
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatJSON, FormatPDF:
		return f, nil
	}
	return "", fmt.Errorf("unknown export format %q (want json or pdf)", s)
}

// FormatFromPath guesses the format from a file extension, defaulting to JSON
func FormatFromPath(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		return FormatPDF
	}
	return FormatJSON
}

// Options control how tasks are rendered
type Options struct {
	Title    string
	Location *time.Location
	Now      time.Time
	// FontPath is a TTF used for the PDF; the built-in Helvetica is used when empty
	FontPath string
}

func (o Options) withDefaults() Options {
	if o.Title == "" {
		o.Title = "Tasks"
	}
	if o.Location == nil {
		o.Location = time.UTC
	}
	if o.Now.IsZero() {
		o.Now = time.Now()
	}
	return o
}

// Record is one exported task
type Record struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Type        string `json:"type,omitempty"`
	Status      string `json:"status"`
	Priority    string `json:"priority"`
	Severity    string `json:"severity,omitempty"`
	Project     string `json:"project"`
	Assignee    string `json:"assignee"`
	StartDate   string `json:"start_date"`
	DueDate     string `json:"due_date"`
	Overdue     bool   `json:"overdue"`
}

// Document is the JSON export envelope
type Document struct {
	Title      string   `json:"title"`
	ExportedAt string   `json:"exported_at"`
	Timezone   string   `json:"timezone"`
	Count      int      `json:"count"`
	Tasks      []Record `json:"tasks"`
}

// Records converts tasks to export records with dates rendered in loc
func Records(tasks []models.Task, loc *time.Location, now time.Time) []Record {
	out := make([]Record, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, Record{
			ID:          t.ID,
			Title:       t.Title,
			Description: t.Description,
			Type:        t.Type,
			Status:      t.Status.Label(),
			Priority:    t.Priority.Label(),
			Severity:    t.Severity.Label(),
			Project:     viewmodel.ProjectName(t),
			Assignee:    viewmodel.DisplayName(t.Assignee),
			StartDate:   viewmodel.FormatDate(t.StartDate, loc),
			DueDate:     viewmodel.FormatDate(t.DueDate, loc),
			Overdue:     viewmodel.Overdue(t, now),
		})
	}
	return out
}

// JSON writes tasks as an indented JSON document
func JSON(w io.Writer, tasks []models.Task, opts Options) error {
	opts = opts.withDefaults()
	doc := Document{
		Title:      opts.Title,
		ExportedAt: opts.Now.In(opts.Location).Format(time.RFC3339),
		Timezone:   opts.Location.String(),
		Count:      len(tasks),
		Tasks:      Records(tasks, opts.Location, opts.Now),
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode tasks: %w", err)
	}
	return nil
}

// Write renders tasks to w in the given format
func Write(w io.Writer, format Format, tasks []models.Task, opts Options) error {
	switch format {
	case FormatJSON:
		return JSON(w, tasks, opts)
	case FormatPDF:
		return PDF(w, tasks, opts)
	}
	return fmt.Errorf("unknown export format %q", format)
}

// WriteFile renders tasks to path, creating its directory. The file only
// appears once rendering succeeded.
func WriteFile(path string, format Format, tasks []models.Task, opts Options) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create export dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".export-*")
	if err != nil {
		return fmt.Errorf("create export file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if err := Write(tmp, format, tasks, opts); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write export: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("save export: %w", err)
	}
	return nil
}
