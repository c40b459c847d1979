package metrics

import (
	"sort"
	"strconv"
)

// StatusBucket is the number of responses observed with one status code.
type StatusBucket struct {
	Code  string `json:"code" yaml:"code"`
	Count int64  `json:"count" yaml:"count"`
}

// FlattenStatusBuckets converts a status->count map into rows sorted by
// descending count, then by code for stability.
func FlattenStatusBuckets(buckets map[int]int64) []StatusBucket {
	if len(buckets) == 0 {
		return nil
	}
	codes := make([]int, 0, len(buckets))
	for code := range buckets {
		codes = append(codes, code)
	}
	sort.Slice(codes, func(i, j int) bool {
		ci, cj := buckets[codes[i]], buckets[codes[j]]
		if ci == cj {
			return codes[i] < codes[j]
		}
		return ci > cj
	})
	rows := make([]StatusBucket, 0, len(codes))
	for _, code := range codes {
		rows = append(rows, StatusBucket{Code: strconv.Itoa(code), Count: buckets[code]})
	}
	return rows
}
