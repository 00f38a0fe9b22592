package parser

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/dgallion1/mdbuild/internal/doctree"
)

// CSVParser handles CSV files. The whole file becomes one table, the first
// record being its header row.
type CSVParser struct{}

func (p *CSVParser) Parse(r io.Reader, filename string) (*doctree.Node, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}

	doc := doctree.NewDocument()
	if len(records) == 0 {
		return doc, nil
	}
	return doc.Append(table(records)), nil
}
