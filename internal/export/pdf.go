package export

import (
	"fmt"
	"io"

	"github.com/jung-kurt/gofpdf"

	"github.com/tgienger/tasktrack/internal/models"
)

const (
	pageMargin = 12.0
	rowHeight  = 6.0
	fontUTF8   = "DejaVu"
	fontCore   = "Helvetica"
)

type column struct {
	title string
	width float64
	value func(r Record) string
}

var columns = []column{
	{"ID", 14, func(r Record) string { return fmt.Sprintf("#%d", r.ID) }},
	{"Title", 100, func(r Record) string { return r.Title }},
	{"Project", 40, func(r Record) string { return r.Project }},
	{"Assignee", 38, func(r Record) string { return r.Assignee }},
	{"Status", 24, func(r Record) string { return r.Status }},
	{"Priority", 22, func(r Record) string { return r.Priority }},
	{"Due", 35, func(r Record) string { return r.DueDate }},
}

// report wraps a gofpdf document with the font and text translation in use
type report struct {
	pdf  *gofpdf.Fpdf
	font string
	tr   func(string) string
}

func newReport(opts Options) *report {
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetTitle(opts.Title, true)
	pdf.SetAuthor("tasktrack", false)
	pdf.SetCreationDate(opts.Now)
	pdf.SetMargins(pageMargin, pageMargin, pageMargin)
	pdf.SetAutoPageBreak(true, pageMargin+4)

	r := &report{pdf: pdf, font: fontCore, tr: func(s string) string { return s }}
	if opts.FontPath != "" {
		pdf.AddUTF8Font(fontUTF8, "", opts.FontPath)
		pdf.AddUTF8Font(fontUTF8, "B", opts.FontPath)
		r.font = fontUTF8
	} else {
		r.tr = pdf.UnicodeTranslatorFromDescriptor("")
	}
	return r
}

// PDF renders tasks as a landscape A4 table
func PDF(w io.Writer, tasks []models.Task, opts Options) error {
	opts = opts.withDefaults()
	records := Records(tasks, opts.Location, opts.Now)

	r := newReport(opts)
	pdf := r.pdf
	pdf.AliasNbPages("")
	pdf.SetHeaderFunc(func() {
		if pdf.PageNo() > 1 {
			r.tableHeader()
		}
	})
	pdf.SetFooterFunc(func() {
		pdf.SetY(-pageMargin)
		pdf.SetFont(r.font, "", 8)
		pdf.SetTextColor(120, 120, 120)
		pdf.CellFormat(0, 6, fmt.Sprintf("Page %d/{nb}", pdf.PageNo()), "", 0, "C", false, 0, "")
		pdf.SetTextColor(0, 0, 0)
	})
	pdf.AddPage()

	pdf.SetFont(r.font, "B", 16)
	pdf.CellFormat(0, 9, r.tr(opts.Title), "", 1, "L", false, 0, "")
	pdf.SetFont(r.font, "", 9)
	sub := fmt.Sprintf("%d tasks, exported %s (%s)", len(records),
		opts.Now.In(opts.Location).Format("2006-01-02 15:04"), opts.Location.String())
	pdf.CellFormat(0, 5, r.tr(sub), "", 1, "L", false, 0, "")
	pdf.Ln(3)

	r.tableHeader()
	for i, rec := range records {
		r.row(rec, i%2 == 1)
	}
	if len(records) == 0 {
		pdf.SetFont(r.font, "", 10)
		pdf.CellFormat(0, 8, "No tasks", "", 1, "C", false, 0, "")
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("render pdf: %w", err)
	}
	return nil
}

func (r *report) tableHeader() {
	pdf := r.pdf
	pdf.SetFont(r.font, "B", 9)
	pdf.SetFillColor(45, 55, 72)
	pdf.SetTextColor(255, 255, 255)
	for _, c := range columns {
		pdf.CellFormat(c.width, rowHeight+1, c.title, "1", 0, "L", true, 0, "")
	}
	pdf.Ln(-1)
	pdf.SetTextColor(0, 0, 0)
}

func (r *report) row(rec Record, shaded bool) {
	pdf := r.pdf
	pdf.SetFont(r.font, "", 8)
	if shaded {
		pdf.SetFillColor(243, 244, 246)
	} else {
		pdf.SetFillColor(255, 255, 255)
	}
	for _, c := range columns {
		text := r.fit(c.value(rec), c.width-2)
		if c.title == "Due" && rec.Overdue {
			pdf.SetTextColor(200, 30, 30)
		}
		pdf.CellFormat(c.width, rowHeight, text, "1", 0, "L", true, 0, "")
		pdf.SetTextColor(0, 0, 0)
	}
	pdf.Ln(-1)
}

// fit shortens s with an ellipsis until it fits width and returns it translated
// for the current font
func (r *report) fit(s string, width float64) string {
	pdf := r.pdf
	if t := r.tr(s); pdf.GetStringWidth(t) <= width {
		return t
	}
	runes := []rune(s)
	for len(runes) > 0 {
		runes = runes[:len(runes)-1]
		if cand := r.tr(string(runes) + "..."); pdf.GetStringWidth(cand) <= width {
			return cand
		}
	}
	return ""
}
