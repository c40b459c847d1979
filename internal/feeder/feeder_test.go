package feeder

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

func TestLoadCSV(t *testing.T) {
	path := writeFile(t, "users.csv", `name,user_id
alice, 11
bob,12
charlie,13`)

	ids, err := Load(path, "")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	want := []int64{11, 12, 13}
	if len(ids) != len(want) {
		t.Fatalf("Load() = %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Errorf("ids[%d] = %d, want %d", i, ids[i], want[i])
		}
	}
}

func TestLoadCSVCustomField(t *testing.T) {
	path := writeFile(t, "coupons.csv", "COUPON_ID\n7\n8\n")
	ids, err := Load(path, "coupon_id")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(ids) != 2 || ids[1] != 8 {
		t.Errorf("Load() = %v, want [7 8]", ids)
	}
}

func TestLoadJSON(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    []int64
	}{
		{"objects", `[{"user_id": 1, "name": "a"}, {"user_id": 2}]`, []int64{1, 2}},
		{"numbers", `[5, 6, 7]`, []int64{5, 6, 7}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ids, err := Load(writeFile(t, "users.json", tt.content), "")
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if len(ids) != len(tt.want) {
				t.Fatalf("Load() = %v, want %v", ids, tt.want)
			}
			for i := range tt.want {
				if ids[i] != tt.want[i] {
					t.Errorf("ids[%d] = %d, want %d", i, ids[i], tt.want[i])
				}
			}
		})
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		wantErr string
	}{
		{"unsupported extension", "users.txt", "1", "unsupported extension"},
		{"csv header only", "users.csv", "user_id\n", "at least one data row"},
		{"csv missing column", "users.csv", "id\n1\n", `no "user_id" column`},
		{"csv not integer", "users.csv", "user_id\nabc\n", "not an integer"},
		{"json invalid", "users.json", "[1,", "not valid JSON"},
		{"json object", "users.json", `{"user_id": 1}`, "expected an array"},
		{"json missing field", "users.json", `[{"id": 1}]`, "not an integer"},
		{"json fraction", "users.json", `[1.5]`, "not an integer"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, tt.file, tt.content), "")
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Load() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}

	if _, err := Load(writeFile(t, "users.json", "[]"), ""); !errors.Is(err, ErrEmpty) {
		t.Errorf("Load(empty) error = %v, want ErrEmpty", err)
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.csv"), ""); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestRoundRobin(t *testing.T) {
	if _, err := NewRoundRobin(nil); !errors.Is(err, ErrEmpty) {
		t.Fatalf("NewRoundRobin(nil) error = %v, want ErrEmpty", err)
	}

	rr, err := NewRoundRobin([]int64{1, 2, 3})
	if err != nil {
		t.Fatalf("NewRoundRobin() error = %v", err)
	}
	want := []int64{1, 2, 3, 1, 2}
	for i, w := range want {
		if got := rr.Pick(nil); got != w {
			t.Errorf("Pick() #%d = %d, want %d", i, got, w)
		}
	}
	if rr.Len() != 3 {
		t.Errorf("Len() = %d, want 3", rr.Len())
	}
}

func TestRoundRobinConcurrent(t *testing.T) {
	rr, err := NewRoundRobin([]int64{1, 2, 3, 4})
	if err != nil {
		t.Fatalf("NewRoundRobin() error = %v", err)
	}

	const workers, picks = 8, 100
	var mu sync.Mutex
	counts := map[int64]int{}
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			local := map[int64]int{}
			for i := 0; i < picks; i++ {
				local[rr.Pick(nil)]++
			}
			mu.Lock()
			for id, n := range local {
				counts[id] += n
			}
			mu.Unlock()
		}()
	}
	wg.Wait()

	for id := int64(1); id <= 4; id++ {
		if counts[id] != workers*picks/4 {
			t.Errorf("id %d picked %d times, want %d", id, counts[id], workers*picks/4)
		}
	}
}
