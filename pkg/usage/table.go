package usage

// Row is one raw tabular observation keyed by column name.
// Values may be strings (CSV), numbers (JSON, SQL) or time.Time (adapters).
// Example: {"date": "2024-01-01", "usage_kWh": "12.5", "meter": "A"}
type Row map[string]any

// Table is a lightweight raw tabular source as produced by CSV parsing or
// by a data source adapter. Columns lists the column names present.
type Table struct {
	Columns []string
	Rows    []Row
}

// HasColumn reports whether name is one of the table's columns.
func (t Table) HasColumn(name string) bool {
	for _, c := range t.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// Columns names the two required columns of a usage table.
type Columns struct {
	Date  string
	Usage string
}

// DefaultColumns returns the column names used by the sample datasets.
func DefaultColumns() Columns {
	return Columns{Date: "date", Usage: "usage_kWh"}
}

func (c Columns) withDefaults() Columns {
	d := DefaultColumns()
	if c.Date == "" {
		c.Date = d.Date
	}
	if c.Usage == "" {
		c.Usage = d.Usage
	}
	return c
}
