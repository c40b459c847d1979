package report

import (
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/hhplus/orderstorm/internal/classify"
	"github.com/hhplus/orderstorm/internal/metrics"
	"github.com/hhplus/orderstorm/internal/threshold"
)

type htmlData struct {
	GeneratedAt string
	Summary     Summary
	Duration    metrics.MetricSummary
	Requests    int64
	Failed      float64
	HistoryJSON string
	HasHistory  bool
	Passed      int
	Failures    []threshold.Result
}

// GenerateHTMLReport writes a standalone HTML report with embedded charts.
func GenerateHTMLReport(w io.Writer, s Summary, history []Point) error {
	if history == nil {
		history = []Point{}
	}
	historyJSON, err := json.Marshal(history)
	if err != nil {
		return fmt.Errorf("failed to marshal history: %w", err)
	}

	data := htmlData{
		GeneratedAt: time.Now().Format(time.RFC3339),
		Summary:     s,
		Requests:    int64(s.Metrics.Value(classify.MetricRequests)),
		Failed:      s.Metrics.Value(classify.MetricFailed),
		HistoryJSON: string(historyJSON),
		HasHistory:  len(history) > 0,
		Failures:    s.Thresholds.Failed(),
	}
	data.Duration, _ = s.Metrics.Get(classify.MetricDuration)
	data.Passed = len(s.Thresholds.Results) - len(data.Failures)

	tmpl, err := template.New("report").Funcs(template.FuncMap{
		"ms": ms,
		"formatDuration": func(d time.Duration) string {
			return d.Round(time.Millisecond).String()
		},
		"formatFloat": func(f float64) string {
			return fmt.Sprintf("%.2f", f)
		},
		"percent": func(f float64) string {
			return fmt.Sprintf("%.1f", f*100)
		},
		"metric": FormatMetric,
	}).Parse(htmlTemplate)
	if err != nil {
		return fmt.Errorf("failed to parse template: %w", err)
	}

	if err := tmpl.Execute(w, data); err != nil {
		return fmt.Errorf("failed to execute template: %w", err)
	}
	return nil
}

const htmlTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>orderstorm report: {{.Summary.Scenario}}</title>
    <style>
        * { margin: 0; padding: 0; box-sizing: border-box; }
        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, Arial, sans-serif;
            background: #f4f6f8;
            color: #1f2933;
            line-height: 1.6;
            padding: 20px;
        }
        .container {
            max-width: 1400px;
            margin: 0 auto;
            background: white;
            border-radius: 8px;
            box-shadow: 0 2px 8px rgba(0,0,0,0.1);
            overflow: hidden;
        }
        header { background: #1e3a5f; color: white; padding: 30px 40px; }
        header.failed { background: #7f1d1d; }
        header h1 { font-size: 2rem; margin-bottom: 10px; }
        header .meta { opacity: 0.9; font-size: 0.9rem; }
        .content { padding: 40px; }
        .grid {
            display: grid;
            grid-template-columns: repeat(auto-fit, minmax(220px, 1fr));
            gap: 20px;
            margin-bottom: 40px;
        }
        .card { background: #f8f9fa; border-radius: 8px; padding: 20px; border-left: 4px solid #1e3a5f; }
        .card h3 { font-size: 0.85rem; color: #6c757d; text-transform: uppercase; margin-bottom: 10px; }
        .card .value { font-size: 1.8rem; font-weight: bold; }
        .card .subvalue { font-size: 0.85rem; color: #6c757d; margin-top: 5px; }
        .card.success { border-left-color: #10b981; }
        .card.error { border-left-color: #ef4444; }
        .card.warning { border-left-color: #f59e0b; }
        .section { margin-bottom: 40px; }
        .section h2 { font-size: 1.4rem; margin-bottom: 20px; padding-bottom: 10px; border-bottom: 2px solid #e5e7eb; }
        .chart { width: 100%; height: 300px; margin-bottom: 30px; }
        table { width: 100%; border-collapse: collapse; }
        th, td { text-align: left; padding: 10px; border-bottom: 1px solid #e5e7eb; }
        th { background: #f8f9fa; font-size: 0.85rem; text-transform: uppercase; color: #4b5563; }
        td.mono { font-family: ui-monospace, monospace; font-size: 0.9rem; }
        .badge { display: inline-block; padding: 4px 12px; border-radius: 12px; font-size: 0.85rem; font-weight: 600; }
        .badge-success { background: #d1fae5; color: #065f46; }
        .badge-error { background: #fee2e2; color: #991b1b; }
        .latency-grid { display: grid; grid-template-columns: repeat(auto-fit, minmax(140px, 1fr)); gap: 15px; }
        .latency-item { background: #f8f9fa; padding: 15px; border-radius: 6px; text-align: center; }
        .latency-item .label { font-size: 0.85rem; color: #6c757d; }
        .latency-item .value { font-size: 1.2rem; font-weight: bold; }
    </style>
    <script src="https://cdn.jsdelivr.net/npm/uplot@1.6.24/dist/uPlot.iife.min.js"></script>
    <link rel="stylesheet" href="https://cdn.jsdelivr.net/npm/uplot@1.6.24/dist/uPlot.min.css">
</head>
<body>
    <div class="container">
        <header{{if not .Summary.Passed}} class="failed"{{end}}>
            <h1>orderstorm: {{.Summary.Scenario}} {{if .Summary.Passed}}passed{{else}}failed{{end}}</h1>
            <div class="meta">Target: {{.Summary.BaseURL}} | Run: {{.Summary.RunID}}</div>
            <div class="meta">Generated: {{.GeneratedAt}} | Duration: {{formatDuration .Summary.Duration}} | Max VUs: {{.Summary.MaxVUs}}{{if .Summary.Aborted}} | aborted{{end}}</div>
        </header>

        <div class="content">
            <div class="grid">
                <div class="card">
                    <h3>Requests</h3>
                    <div class="value">{{.Requests}}</div>
                    <div class="subvalue">{{.Summary.Iterations}} iterations, {{.Summary.Interrupted}} interrupted</div>
                </div>
                {{range .Summary.Outcomes}}
                <div class="card {{if eq .Outcome "success"}}success{{else if eq .Outcome "transport_failure"}}error{{else}}warning{{end}}">
                    <h3>{{.Outcome}}</h3>
                    <div class="value">{{.Count}}</div>
                    <div class="subvalue">{{percent .Share}}%</div>
                </div>
                {{end}}
                <div class="card {{if gt .Failed 0.0}}error{{else}}success{{end}}">
                    <h3>Unexpected status</h3>
                    <div class="value">{{percent .Failed}}%</div>
                </div>
            </div>

            {{if .HasHistory}}
            <div class="section">
                <h2>Timeline</h2>
                <div id="rps-chart" class="chart"></div>
                <div id="latency-chart" class="chart"></div>
            </div>
            {{end}}

            {{if .Duration.Count}}
            <div class="section">
                <h2>Request Duration</h2>
                <div class="latency-grid">
                    <div class="latency-item"><div class="label">Min</div><div class="value">{{ms .Duration.Min}}</div></div>
                    <div class="latency-item"><div class="label">Avg</div><div class="value">{{ms .Duration.Avg}}</div></div>
                    <div class="latency-item"><div class="label">Median</div><div class="value">{{ms .Duration.Med}}</div></div>
                    <div class="latency-item"><div class="label">P90</div><div class="value">{{ms .Duration.P90}}</div></div>
                    <div class="latency-item"><div class="label">P95</div><div class="value">{{ms .Duration.P95}}</div></div>
                    <div class="latency-item"><div class="label">P99</div><div class="value">{{ms .Duration.P99}}</div></div>
                    <div class="latency-item"><div class="label">Max</div><div class="value">{{ms .Duration.Max}}</div></div>
                </div>
            </div>
            {{end}}

            {{if .Summary.Domain}}
            <div class="section">
                <h2>{{.Summary.Scenario}} summary</h2>
                <table>
                    <tbody>
                        {{range .Summary.Domain}}
                        <tr><td>{{.Label}}</td><td class="mono">{{.Value}}</td></tr>
                        {{end}}
                    </tbody>
                </table>
            </div>
            {{end}}

            {{if .Summary.Thresholds.Results}}
            <div class="section">
                <h2>Thresholds ({{.Passed}}/{{len .Summary.Thresholds.Results}} Passed)</h2>
                <table>
                    <thead>
                        <tr><th>Threshold</th><th>Expected</th><th>Actual</th><th>Status</th></tr>
                    </thead>
                    <tbody>
                        {{range .Summary.Thresholds.Results}}
                        <tr>
                            <td class="mono">{{.Threshold.Raw}}</td>
                            <td>{{.Threshold.Aggregate}} {{.Threshold.Operator}} {{formatFloat .Threshold.Value}}</td>
                            <td>{{formatFloat .Actual}}</td>
                            <td>{{if .Pass}}<span class="badge badge-success">PASS</span>{{else}}<span class="badge badge-error">FAIL</span>{{end}}</td>
                        </tr>
                        {{end}}
                    </tbody>
                </table>
            </div>
            {{end}}

            <div class="section">
                <h2>Metrics</h2>
                <table>
                    <tbody>
                        {{range $name, $m := .Summary.Metrics.Metrics}}
                        <tr><td class="mono">{{$name}}</td><td>{{$m.Kind}}</td><td class="mono">{{metric $m}}</td></tr>
                        {{end}}
                    </tbody>
                </table>
            </div>
        </div>
    </div>

    {{if .HasHistory}}
    <script>
        const history = {{.HistoryJSON}};
        const points = JSON.parse(history);
        const elapsed = points.map(d => d.elapsed_s);

        new uPlot({
            title: "Throughput and VUs",
            width: document.getElementById('rps-chart').offsetWidth,
            height: 300,
            scales: { x: { time: false } },
            series: [
                { label: "Time (s)" },
                { label: "RPS", stroke: "#1e3a5f", fill: "rgba(30, 58, 95, 0.1)", width: 2 },
                { label: "VUs", stroke: "#f59e0b", width: 2, scale: "vus" }
            ],
            axes: [
                { label: "Time (seconds)" },
                { label: "Requests/sec" },
                { side: 1, scale: "vus", label: "VUs", grid: { show: false } }
            ]
        }, [elapsed, points.map(d => d.rps), points.map(d => d.vus)], document.getElementById('rps-chart'));

        new uPlot({
            title: "P95 Request Duration",
            width: document.getElementById('latency-chart').offsetWidth,
            height: 300,
            scales: { x: { time: false } },
            series: [
                { label: "Time (s)" },
                { label: "P95 (ms)", stroke: "#ef4444", width: 2 }
            ],
            axes: [
                { label: "Time (seconds)" },
                { label: "Latency (ms)" }
            ]
        }, [elapsed, points.map(d => d.p95_ms)], document.getElementById('latency-chart'));
    </script>
    {{end}}
</body>
</html>
`
