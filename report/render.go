package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/wippyai/sheet-probe/errors"
)

// Format selects how a result is presented after the raw Result line.
type Format string

const (
	FormatRaw      Format = "raw"      // the Result line only
	FormatText     Format = "text"     // table
	FormatJSON     Format = "json"     // indented JSON
	FormatMarkdown Format = "markdown" // markdown table, rendered for terminals
)

// Formats lists every accepted format.
var Formats = []Format{FormatRaw, FormatText, FormatJSON, FormatMarkdown}

// ParseFormat validates a format name. The empty string means raw.
func ParseFormat(s string) (Format, error) {
	if s == "" {
		return FormatRaw, nil
	}
	for _, f := range Formats {
		if string(f) == strings.ToLower(s) {
			return f, nil
		}
	}
	return "", errors.InvalidInput(errors.PhaseConfig, fmt.Sprintf("unknown format %q", s))
}

var headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
var cellStyle = lipgloss.NewStyle().Padding(0, 1)

var columns = []string{"Sheet", "Visible", "Range", "Cells", "Density", "Type", "First", "Last"}

// Render writes sheets in the given format. styled enables terminal styling
// for the markdown format.
func Render(w io.Writer, sheets []ClassifiedSheet, format Format, styled bool) error {
	switch format {
	case FormatRaw:
		return nil
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(sheets)
	case FormatText:
		_, err := fmt.Fprintln(w, Table(sheets))
		return err
	case FormatMarkdown:
		md := Markdown(sheets)
		if !styled {
			_, err := io.WriteString(w, md)
			return err
		}
		r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(120))
		if err != nil {
			return err
		}
		out, err := r.Render(md)
		if err != nil {
			return err
		}
		_, err = io.WriteString(w, out)
		return err
	default:
		return errors.InvalidInput(errors.PhaseDecode, fmt.Sprintf("unknown format %q", format))
	}
}

// Table renders sheets as a bordered table.
func Table(sheets []ClassifiedSheet) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers(columns...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
	for _, s := range sheets {
		t.Row(rowOf(s)...)
	}
	return t.String()
}

// Markdown renders sheets as a markdown table.
func Markdown(sheets []ClassifiedSheet) string {
	var b strings.Builder
	b.WriteString("| " + strings.Join(columns, " | ") + " |\n")
	b.WriteString("|" + strings.Repeat(" --- |", len(columns)) + "\n")
	for _, s := range sheets {
		cells := rowOf(s)
		for i, c := range cells {
			cells[i] = strings.ReplaceAll(c, "|", `\|`)
		}
		b.WriteString("| " + strings.Join(cells, " | ") + " |\n")
	}
	return b.String()
}

func rowOf(s ClassifiedSheet) []string {
	rng := s.Range()
	if rng == "" {
		rng = "empty"
	}
	kind := s.SheetType
	if kind == "" {
		kind = "-"
	}
	return []string{
		s.SheetName,
		s.Visible,
		rng,
		strconv.FormatUint(uint64(s.DataCells), 10) + "/" + strconv.FormatUint(uint64(s.TotalCells), 10),
		strconv.FormatFloat(s.Density, 'f', 3, 64),
		kind,
		sample(s.FirstRowFirstColContent),
		sample(s.LastRowFirstColContent),
	}
}

// sample shortens a cell preview to one line.
func sample(s *string) string {
	if s == nil {
		return "-"
	}
	v := strings.Join(strings.Fields(*s), " ")
	if r := []rune(v); len(r) > 24 {
		v = string(r[:23]) + "…"
	}
	return v
}
