package export

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"strconv"
)

// Dataset is the tabular content of one report. Rows are keyed by header. When SummaryOrder
// is set, a blank line and one "metric,value" line per name follow the body.
type Dataset struct {
	Title        string
	Headers      []string
	Rows         []map[string]string
	Summary      map[string]int
	SummaryOrder []string
}

// Renderer encodes a dataset into one file format.
type Renderer interface {
	Render(data Dataset) ([]byte, error)
	ContentType() string
	Extension() string
}

var errNoHeaders = errors.New("dataset has no headers")

// CSVExporter writes RFC 4180 CSV.
type CSVExporter struct{}

func NewCSVExporter() *CSVExporter { return &CSVExporter{} }

func (*CSVExporter) ContentType() string { return "text/csv" }

func (*CSVExporter) Extension() string { return "csv" }

func (*CSVExporter) Render(data Dataset) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("render csv: %w", errNoHeaders)
	}
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	record := make([]string, len(data.Headers))
	lines := [][]string{data.Headers}
	for _, row := range data.Rows {
		for i, h := range data.Headers {
			record[i] = row[h]
		}
		lines = append(lines, append([]string(nil), record...))
	}
	if len(data.SummaryOrder) > 0 {
		lines = append(lines, []string{})
		for _, name := range data.SummaryOrder {
			lines = append(lines, []string{name, strconv.Itoa(data.Summary[name])})
		}
	}
	if err := w.WriteAll(lines); err != nil {
		return nil, fmt.Errorf("render csv %q: %w", data.Title, err)
	}
	return buf.Bytes(), nil
}
