package feeder

import (
	"encoding/csv"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
)

func loadCSV(path, field string) ([]int64, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open CSV file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.TrimLeadingSpace = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read CSV: %w", err)
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("CSV file must have a header row and at least one data row")
	}

	col := slices.IndexFunc(rows[0], func(h string) bool {
		return strings.EqualFold(strings.TrimSpace(h), field)
	})
	if col < 0 {
		return nil, fmt.Errorf("CSV header has no %q column", field)
	}

	ids := make([]int64, 0, len(rows)-1)
	for i, row := range rows[1:] {
		if col >= len(row) {
			return nil, fmt.Errorf("row %d has %d fields, expected at least %d", i+2, len(row), col+1)
		}
		id, err := strconv.ParseInt(strings.TrimSpace(row[col]), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("row %d: %s is not an integer: %q", i+2, field, row[col])
		}
		ids = append(ids, id)
	}
	return ids, nil
}
