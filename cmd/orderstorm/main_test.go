package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func orderServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func unsetEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"BASE_URL", "TEST_TYPE", "LOG_LEVEL", "LOG_PRETTY", "SUMMARY_FILE", "USERS_FILE"} {
		if old, ok := os.LookupEnv(key); ok {
			_ = os.Unsetenv(key)
			t.Cleanup(func() { _ = os.Setenv(key, old) })
		}
	}
}

func TestRunHelp(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if err := run([]string{"--help"}, &stdout, &stderr); err != nil {
		t.Fatalf("run(--help) = %v, want nil", err)
	}
}

func TestRunRejectsUnknownScenario(t *testing.T) {
	unsetEnv(t)
	var stdout, stderr bytes.Buffer
	err := run([]string{"--scenario", "soak"}, &stdout, &stderr)
	if err == nil || !strings.Contains(err.Error(), "unknown scenario") {
		t.Fatalf("expected unknown scenario error, got %v", err)
	}
}

func TestRunRejectsInvalidConfig(t *testing.T) {
	unsetEnv(t)
	var stdout, stderr bytes.Buffer
	err := run([]string{"--base-url", "ftp://example.com"}, &stdout, &stderr)
	if err == nil || !strings.Contains(err.Error(), "validation failed") {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestRunWritesReports(t *testing.T) {
	unsetEnv(t)
	srv := orderServer(t, http.StatusOK, `{"code":200,"message":"OK","data":{"orderId":1}}`)
	dir := t.TempDir()
	summaryPath := filepath.Join(dir, "summary.yaml")
	htmlPath := filepath.Join(dir, "report.html")

	var stdout, stderr bytes.Buffer
	err := run([]string{
		"--scenario", "concurrent-order",
		"--base-url", srv.URL,
		"--vus", "2",
		"--duration", "300ms",
		"--graceful-stop", "1s",
		"--json-output",
		"--summary-file", summaryPath,
		"--html-output", htmlPath,
	}, &stdout, &stderr)
	if err != nil {
		t.Fatalf("run() = %v\nstderr:\n%s", err, stderr.String())
	}

	var summary struct {
		Scenario string `json:"scenario"`
		Passed   bool   `json:"passed"`
		MaxVUs   int    `json:"max_vus"`
	}
	if err := json.Unmarshal(stdout.Bytes(), &summary); err != nil {
		t.Fatalf("stdout is not a JSON report: %v\n%s", err, stdout.String())
	}
	if summary.Scenario != "concurrent-order" || !summary.Passed || summary.MaxVUs != 2 {
		t.Errorf("unexpected summary: %+v", summary)
	}

	data, err := os.ReadFile(summaryPath)
	if err != nil {
		t.Fatalf("summary file: %v", err)
	}
	if !strings.Contains(string(data), "scenario: concurrent-order") {
		t.Errorf("unexpected summary file:\n%s", data)
	}
	html, err := os.ReadFile(htmlPath)
	if err != nil {
		t.Fatalf("html report: %v", err)
	}
	if !strings.Contains(string(html), "orderstorm: concurrent-order passed") {
		t.Errorf("unexpected html report")
	}
	if !strings.Contains(stderr.String(), "run finished") {
		t.Errorf("expected run log on stderr, got:\n%s", stderr.String())
	}
}

func TestRunThresholdFailure(t *testing.T) {
	unsetEnv(t)
	srv := orderServer(t, http.StatusConflict, `{"code":"OUT_OF_STOCK_PRODUCT","message":"재고 부족"}`)

	var stdout, stderr bytes.Buffer
	err := run([]string{
		"--scenario", "concurrent-order",
		"--base-url", srv.URL,
		"--vus", "1",
		"--duration", "300ms",
		"--summary-file", filepath.Join(t.TempDir(), "summary.json"),
	}, &stdout, &stderr)
	if !errors.Is(err, errThresholdsFailed) {
		t.Fatalf("run() = %v, want errThresholdsFailed", err)
	}

	out := stdout.String()
	for _, want := range []string{"--- Load Test Results ---", "stock_exhausted", "Result: FAILED"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in report:\n%s", want, out)
		}
	}
}
