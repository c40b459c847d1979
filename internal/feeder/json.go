package feeder

import (
	"fmt"
	"os"

	"github.com/tidwall/gjson"
)

func loadJSON(path, field string) ([]int64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("open JSON file: %w", err)
	}
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("decode JSON: %s is not valid JSON", path)
	}
	root := gjson.ParseBytes(data)
	if !root.IsArray() {
		return nil, fmt.Errorf("decode JSON: expected an array")
	}

	var (
		ids     []int64
		loadErr error
	)
	root.ForEach(func(_, value gjson.Result) bool {
		if value.IsObject() {
			value = value.Get(gjson.Escape(field))
		}
		if value.Type != gjson.Number || value.Num != float64(value.Int()) {
			loadErr = fmt.Errorf("record %d: %s is not an integer: %s", len(ids), field, value.Raw)
			return false
		}
		ids = append(ids, value.Int())
		return true
	})
	if loadErr != nil {
		return nil, loadErr
	}
	return ids, nil
}
