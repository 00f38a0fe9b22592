package rewrite

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// Table contract violations. All of them are fatal for the document being built.
var (
	ErrRowAlreadyOpen = errors.New("row already open")
	ErrNoOpenRow      = errors.New("no open row")
	ErrRowStillOpen   = errors.New("row still open")
	ErrTableNotClosed = errors.New("table not closed")
	ErrTableClosed    = errors.New("table already closed")
	ErrEmptyTable     = errors.New("table has no rows")
	ErrRaggedTable    = errors.New("ragged table")
)

// Table accumulates rows of already flattened cell text and renders them as
// a fixed-width pipe table.
type Table struct {
	rows    [][]string
	current []string
	open    bool
	closed  bool
}

// OpenRow starts a new row.
func (t *Table) OpenRow() error {
	if t.closed {
		return ErrTableClosed
	}
	if t.open {
		return ErrRowAlreadyOpen
	}
	t.current = nil
	t.open = true
	return nil
}

// AddCell appends a cell to the open row.
func (t *Table) AddCell(text string) error {
	if !t.open {
		return ErrNoOpenRow
	}
	t.current = append(t.current, text)
	return nil
}

// CloseRow appends the open row to the table.
func (t *Table) CloseRow() error {
	if !t.open {
		return ErrNoOpenRow
	}
	t.rows = append(t.rows, t.current)
	t.current = nil
	t.open = false
	return nil
}

// CloseTable marks the table complete. No row may be open.
func (t *Table) CloseTable() error {
	if t.open {
		return ErrRowStillOpen
	}
	t.closed = true
	return nil
}

// Rows returns the completed rows.
func (t *Table) Rows() [][]string { return t.rows }

// Widths returns the maximum character count per column index.
func (t *Table) Widths() []int {
	var widths []int
	for _, row := range t.rows {
		for i, cell := range row {
			if i >= len(widths) {
				widths = append(widths, 0)
			}
			widths[i] = max(widths[i], utf8.RuneCountInString(cell))
		}
	}
	return widths
}

// Render lays the table out. The first row is the header and is followed by
// a dash separator. Every row must have the same number of cells.
func (t *Table) Render() (string, error) {
	if !t.closed {
		return "", ErrTableNotClosed
	}
	if len(t.rows) == 0 {
		return "", ErrEmptyTable
	}

	widths := t.Widths()
	for i, row := range t.rows {
		if len(row) != len(widths) {
			return "", fmt.Errorf("%w: row %d has %d cells, want %d", ErrRaggedTable, i, len(row), len(widths))
		}
	}

	lines := make([]string, 0, len(t.rows)+1)
	lines = append(lines, formatRow(t.rows[0], widths), separator(widths))
	for _, row := range t.rows[1:] {
		lines = append(lines, formatRow(row, widths))
	}
	return strings.Join(lines, "\n"), nil
}

func formatRow(row []string, widths []int) string {
	var sb strings.Builder
	sb.WriteString("|")
	for i, cell := range row {
		sb.WriteString(" ")
		sb.WriteString(cell)
		sb.WriteString(strings.Repeat(" ", widths[i]-utf8.RuneCountInString(cell)))
		sb.WriteString(" |")
	}
	return sb.String()
}

// separator joins one dash run per column (plus a two-dash run on either
// edge) with pipes, then trims the edge runs so the outer pipes line up with
// the header row.
func separator(widths []int) string {
	segments := make([]string, 0, len(widths)+2)
	segments = append(segments, "--")
	for _, w := range widths {
		segments = append(segments, strings.Repeat("-", w+2))
	}
	segments = append(segments, "--")
	line := strings.Join(segments, "|")
	return line[2 : len(line)-2]
}
