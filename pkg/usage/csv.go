package usage

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ReadCSV parses a CSV stream with a header row into a Table. Short or long
// records are tolerated; cells beyond the header are ignored and missing
// cells are absent from the row.
func ReadCSV(r io.Reader) (Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return Table{}, nil
		}
		return Table{}, fmt.Errorf("read csv header: %w", err)
	}

	columns := make([]string, len(header))
	for i, name := range header {
		name = strings.TrimSpace(name)
		if i == 0 {
			name = strings.TrimPrefix(name, "\ufeff")
		}
		columns[i] = name
	}

	table := Table{Columns: columns}
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Table{}, fmt.Errorf("read csv record %d: %w", len(table.Rows)+1, err)
		}

		row := make(Row, len(columns))
		for i, cell := range record {
			if i >= len(columns) {
				break
			}
			row[columns[i]] = cell
		}
		table.Rows = append(table.Rows, row)
	}

	return table, nil
}

// LoadCSV reads and cleans a CSV stream in one step.
func LoadCSV(r io.Reader, cols Columns) (Series, Report, error) {
	table, err := ReadCSV(r)
	if err != nil {
		return nil, Report{}, err
	}
	return IngestWithReport(table, cols)
}

// WriteCSV renders the series with the given column names, for use as
// context in downstream text prompts or exports.
func WriteCSV(w io.Writer, s Series, cols Columns) error {
	cols = cols.withDefaults()
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{cols.Date, cols.Usage}); err != nil {
		return err
	}
	for _, r := range s {
		if err := cw.Write([]string{r.Date.Format("2006-01-02"), strconv.FormatFloat(r.Usage, 'f', -1, 64)}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
