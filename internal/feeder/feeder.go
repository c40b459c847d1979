// Package feeder loads identifier datasets from CSV or JSON files and hands
// them to workers in round-robin order.
package feeder

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"path/filepath"
	"strings"
	"sync/atomic"
)

// DefaultField is the column or key read when none is given.
const DefaultField = "user_id"

// ErrEmpty is returned for a dataset without records.
var ErrEmpty = errors.New("feeder: dataset has no records")

// Load reads the integer field of every record in path. The format follows
// the file extension: .csv with a header row, or .json holding an array of
// objects or of bare numbers.
func Load(path, field string) ([]int64, error) {
	if field == "" {
		field = DefaultField
	}
	var (
		ids []int64
		err error
	)
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".csv":
		ids, err = loadCSV(path, field)
	case ".json":
		ids, err = loadJSON(path, field)
	default:
		return nil, fmt.Errorf("feeder %q: unsupported extension %q (use .csv or .json)", path, ext)
	}
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, ErrEmpty
	}
	return ids, nil
}

// RoundRobin hands out identifiers in file order, wrapping at the end. It is
// safe for concurrent use.
type RoundRobin struct {
	ids  []int64
	next atomic.Uint64
}

// NewRoundRobin returns a picker over ids.
func NewRoundRobin(ids []int64) (*RoundRobin, error) {
	if len(ids) == 0 {
		return nil, ErrEmpty
	}
	return &RoundRobin{ids: append([]int64(nil), ids...)}, nil
}

// Pick returns the next identifier. rnd is unused; the order is shared by
// every worker.
func (r *RoundRobin) Pick(*rand.Rand) int64 {
	n := r.next.Add(1) - 1
	return r.ids[n%uint64(len(r.ids))]
}

// Len returns the number of identifiers.
func (r *RoundRobin) Len() int {
	return len(r.ids)
}
