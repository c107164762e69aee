// Package csvfile reads the dataset to score: a header row followed by rows
// of arbitrary, possibly non-numeric cells. Cells are kept as text; only the
// columns selected by the feature transformer are ever parsed as numbers.
package csvfile

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"batchscore/internal/contract"
)

const bom = "\ufeff"

// Dataset is an immutable table of text cells.
type Dataset struct {
	name   string
	header []string
	rows   [][]string
}

// Open reads the dataset at path. A missing file is an ArtifactNotFound error.
func Open(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &contract.NotFoundError{What: "dataset", Searched: []string{path}}
		}
		return nil, err
	}
	defer f.Close()
	return Read(bufio.NewReader(f), path)
}

// Read parses CSV from r; name is used in error messages.
func Read(r io.Reader, name string) (*Dataset, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 0

	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("%s: empty file, header row required", name)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	header = append([]string(nil), header...)
	header[0] = strings.TrimPrefix(header[0], bom)

	seen := make(map[string]int, len(header))
	for i, h := range header {
		if j, dup := seen[h]; dup {
			return nil, fmt.Errorf("%s: duplicate column %q at positions %d and %d", name, h, j, i)
		}
		seen[h] = i
	}

	var rows [][]string
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		rows = append(rows, rec)
	}
	return &Dataset{name: name, header: header, rows: rows}, nil
}

func (d *Dataset) Name() string { return d.name }

// Header returns a copy of the column names in file order.
func (d *Dataset) Header() []string { return append([]string(nil), d.header...) }

func (d *Dataset) Len() int { return len(d.rows) }

func (d *Dataset) Cell(row, col int) string { return d.rows[row][col] }
