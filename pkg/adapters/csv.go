package adapters

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/HatiCode/ecovision/pkg/usage"
)

// CSVSource reads a CSV file with a header row. Columns pass through
// unchanged; the caller chooses which ones hold the date and usage.
type CSVSource struct {
	Path string
}

func (c *CSVSource) Name() string { return "csv" }

// Collect implements Source.
func (c *CSVSource) Collect(ctx context.Context) (usage.Table, error) {
	if c.Path == "" {
		return usage.Table{}, errors.New("csv source: Path is required")
	}
	if err := ctx.Err(); err != nil {
		return usage.Table{}, err
	}

	f, err := os.Open(c.Path)
	if err != nil {
		return usage.Table{}, fmt.Errorf("open %s: %w", c.Path, err)
	}
	defer f.Close()

	t, err := usage.ReadCSV(f)
	if err != nil {
		return usage.Table{}, fmt.Errorf("read %s: %w", c.Path, err)
	}
	return t, nil
}
