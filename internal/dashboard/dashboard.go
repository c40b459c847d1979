// Package dashboard renders a live terminal view of a running load test.
package dashboard

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	ui "github.com/gizak/termui/v3"
	"github.com/gizak/termui/v3/widgets"

	"github.com/hhplus/orderstorm/internal/classify"
	"github.com/hhplus/orderstorm/internal/metrics"
	"github.com/hhplus/orderstorm/internal/report"
	"github.com/hhplus/orderstorm/internal/threshold"
)

const (
	refreshInterval = 500 * time.Millisecond
	historyLen      = 100
	maxListRows     = 10
)

// RunInfo holds the run parameters shown in the header.
type RunInfo struct {
	Scenario   string
	TargetURL  string
	MaxVUs     int
	Planned    time.Duration // length of the stage plan
	Timeout    time.Duration
	ConfigFile string
	Thresholds []threshold.Threshold
}

// Dashboard renders a live terminal UI for load test metrics.
type Dashboard struct {
	sink         *metrics.Sink
	sampler      *report.ProgressReporter
	ctx          context.Context
	cancel       context.CancelFunc
	shutdownFunc func()
	wg           sync.WaitGroup
	mu           sync.Mutex

	// Widgets
	grid           *ui.Grid
	summaryPara    *widgets.Paragraph
	vusGauge       *widgets.Gauge
	rpsSparkle     *widgets.SparklineGroup
	latencySparkle *widgets.SparklineGroup
	latencyPara    *widgets.Paragraph
	outcomeChart   *widgets.BarChart
	statusList     *widgets.List
	thresholdList  *widgets.List

	rpsHistory     []float64
	latencyHistory []float64
	startTime      time.Time
	info           RunInfo
}

// New initializes the terminal and builds the widgets. sampler supplies the
// per-tick RPS and p95 points and keeps them for the HTML report.
func New(sink *metrics.Sink, sampler *report.ProgressReporter, info RunInfo, shutdownFunc func()) (*Dashboard, error) {
	if err := ui.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize termui: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	d := &Dashboard{
		sink:           sink,
		sampler:        sampler,
		ctx:            ctx,
		cancel:         cancel,
		shutdownFunc:   shutdownFunc,
		rpsHistory:     make([]float64, 0, historyLen),
		latencyHistory: make([]float64, 0, historyLen),
		startTime:      time.Now(),
		info:           info,
	}

	d.initWidgets()
	d.setupGrid()

	return d, nil
}

func (d *Dashboard) initWidgets() {
	d.summaryPara = widgets.NewParagraph()
	d.summaryPara.Title = "Run"
	d.summaryPara.Text = "Initializing..."
	d.summaryPara.BorderStyle.Fg = ui.ColorCyan

	d.vusGauge = widgets.NewGauge()
	d.vusGauge.Title = "Virtual Users"
	d.vusGauge.BarColor = ui.ColorBlue
	d.vusGauge.BorderStyle.Fg = ui.ColorCyan
	d.vusGauge.LabelStyle = ui.NewStyle(ui.ColorWhite)

	rps := widgets.NewSparkline()
	rps.LineColor = ui.ColorBlue
	rps.Data = []float64{0}
	d.rpsSparkle = widgets.NewSparklineGroup(rps)
	d.rpsSparkle.Title = "Requests/sec"
	d.rpsSparkle.BorderStyle.Fg = ui.ColorCyan

	latency := widgets.NewSparkline()
	latency.LineColor = ui.ColorGreen
	latency.Data = []float64{0}
	d.latencySparkle = widgets.NewSparklineGroup(latency)
	d.latencySparkle.Title = "http_req_duration p(95)"
	d.latencySparkle.BorderStyle.Fg = ui.ColorCyan

	d.latencyPara = widgets.NewParagraph()
	d.latencyPara.Title = "http_req_duration"
	d.latencyPara.Text = "Waiting for data..."
	d.latencyPara.BorderStyle.Fg = ui.ColorCyan

	d.outcomeChart = widgets.NewBarChart()
	d.outcomeChart.Title = "Outcomes"
	d.outcomeChart.BarWidth = 9
	d.outcomeChart.BarColors = []ui.Color{ui.ColorGreen, ui.ColorYellow, ui.ColorMagenta, ui.ColorRed, ui.ColorRed}
	d.outcomeChart.LabelStyles = []ui.Style{ui.NewStyle(ui.ColorWhite)}
	d.outcomeChart.NumStyles = []ui.Style{ui.NewStyle(ui.ColorBlack)}
	d.outcomeChart.BorderStyle.Fg = ui.ColorCyan
	d.outcomeChart.Data, d.outcomeChart.Labels = outcomeBars(metrics.Snapshot{})

	d.statusList = widgets.NewList()
	d.statusList.Title = "Status / Errors"
	d.statusList.Rows = []string{"Awaiting data"}
	d.statusList.TextStyle = ui.NewStyle(ui.ColorYellow)
	d.statusList.BorderStyle.Fg = ui.ColorCyan

	d.thresholdList = widgets.NewList()
	d.thresholdList.Title = "Thresholds"
	d.thresholdList.Rows = []string{"None configured"}
	d.thresholdList.BorderStyle.Fg = ui.ColorCyan
}

func (d *Dashboard) setupGrid() {
	termWidth, termHeight := ui.TerminalDimensions()

	d.grid = ui.NewGrid()
	d.grid.SetRect(0, 0, termWidth, termHeight)

	d.grid.Set(
		ui.NewRow(0.14,
			ui.NewCol(0.6, d.summaryPara),
			ui.NewCol(0.4, d.vusGauge),
		),
		ui.NewRow(0.24,
			ui.NewCol(0.5, d.rpsSparkle),
			ui.NewCol(0.5, d.latencySparkle),
		),
		ui.NewRow(0.30,
			ui.NewCol(0.65, d.outcomeChart),
			ui.NewCol(0.35, d.latencyPara),
		),
		ui.NewRow(0.32,
			ui.NewCol(0.4, d.statusList),
			ui.NewCol(0.6, d.thresholdList),
		),
	)
}

// Start begins the dashboard update loop.
func (d *Dashboard) Start() {
	d.wg.Add(1)
	go d.run()
}

// Stop stops the dashboard and restores the terminal.
func (d *Dashboard) Stop() {
	d.cancel()
	d.wg.Wait()
	ui.Close()
	// Give terminal time to restore
	time.Sleep(100 * time.Millisecond)
}

func (d *Dashboard) run() {
	defer d.wg.Done()

	ticker := time.NewTicker(refreshInterval)
	defer ticker.Stop()

	uiEvents := ui.PollEvents()

	d.render()

	for {
		select {
		case <-d.ctx.Done():
			for len(uiEvents) > 0 {
				<-uiEvents
			}
			return
		case e := <-uiEvents:
			select {
			case <-d.ctx.Done():
				return
			default:
			}

			switch e.ID {
			case "q", "<C-c>":
				if d.shutdownFunc != nil {
					d.shutdownFunc()
				}
				// Stop() cancels the context once the run has drained.
			case "<Resize>":
				payload := e.Payload.(ui.Resize)
				d.grid.SetRect(0, 0, payload.Width, payload.Height)
				ui.Clear()
				d.render()
			}
		case now := <-ticker.C:
			d.update(now)
			d.render()
		}
	}
}

// update refreshes every widget from the sink.
func (d *Dashboard) update(now time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()

	elapsed := now.Sub(d.startTime)
	pt := d.sampler.Sample(now)
	snap := d.sink.Snapshot(elapsed)

	d.rpsHistory = appendBounded(d.rpsHistory, pt.RPS)
	d.rpsSparkle.Sparklines[0].Data = d.rpsHistory
	d.rpsSparkle.Title = fmt.Sprintf("Requests/sec | Current: %.1f", pt.RPS)

	d.latencyHistory = appendBounded(d.latencyHistory, pt.P95)
	d.latencySparkle.Sparklines[0].Data = d.latencyHistory
	d.latencySparkle.Title = fmt.Sprintf("http_req_duration p(95) | Current: %.2fms", pt.P95)

	maxVUs := d.info.MaxVUs
	if maxVUs <= 0 {
		maxVUs = int(snap.Value(report.MetricVUsMax))
	}
	d.vusGauge.Percent = percentOf(pt.VUs, maxVUs)
	d.vusGauge.Label = fmt.Sprintf("%d / %d VUs", pt.VUs, maxVUs)

	d.summaryPara.Text = fmt.Sprintf(
		"Scenario: %s | Target: %s\n%s\nElapsed: %s | Requests: %d | Failed: %.1f%%",
		d.info.Scenario,
		d.info.TargetURL,
		d.formatRunParams(),
		elapsed.Round(time.Second),
		pt.Requests,
		pt.Failed*100,
	)

	d.latencyPara.Text = latencyText(snap)
	d.outcomeChart.Data, d.outcomeChart.Labels = outcomeBars(snap)
	d.statusList.Rows = formatStatusRows(snap)
	d.thresholdList.Rows = formatThresholdRows(snap, d.info.Thresholds)
}

func (d *Dashboard) render() {
	d.mu.Lock()
	defer d.mu.Unlock()

	ui.Render(d.grid)
}

func appendBounded(history []float64, v float64) []float64 {
	history = append(history, v)
	if len(history) > historyLen {
		history = history[1:]
	}
	return history
}

func percentOf(part, total int) int {
	if total <= 0 {
		return 0
	}
	p := part * 100 / total
	if p > 100 {
		p = 100
	}
	return p
}

func latencyText(snap metrics.Snapshot) string {
	m, ok := snap.Get(classify.MetricDuration)
	if !ok || m.Count == 0 {
		return "Waiting for data..."
	}
	return fmt.Sprintf(
		"Min:  %.2fms\nAvg:  %.2fms\nMed:  %.2fms\nP90:  %.2fms\nP95:  %.2fms\nP99:  %.2fms\nMax:  %.2fms",
		m.Min, m.Avg, m.Med, m.P90, m.P95, m.P99, m.Max,
	)
}

var outcomeLabels = map[string]string{
	"success":           "success",
	"stock_exhausted":   "stock",
	"duplicate_order":   "duplicate",
	"other_failure":     "other",
	"transport_failure": "transport",
}

func outcomeBars(snap metrics.Snapshot) ([]float64, []string) {
	counts := report.OutcomeCounts(snap)
	data := make([]float64, len(counts))
	labels := make([]string, len(counts))
	for i, c := range counts {
		data[i] = float64(c.Count)
		labels[i] = outcomeLabels[c.Outcome]
	}
	return data, labels
}

func formatStatusRows(snap metrics.Snapshot) []string {
	if len(snap.Statuses) == 0 && len(snap.Errors) == 0 {
		return []string{"[No responses yet](fg:green)"}
	}
	rows := make([]string, 0, maxListRows)
	for _, b := range snap.Statuses {
		if len(rows) == maxListRows {
			return rows
		}
		color := "green"
		if !strings.HasPrefix(b.Code, "2") {
			color = "yellow"
		}
		rows = append(rows, fmt.Sprintf("[HTTP %s](fg:%s) %d", b.Code, color, b.Count))
	}
	names := make([]string, 0, len(snap.Errors))
	for name := range snap.Errors {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if len(rows) == maxListRows {
			break
		}
		rows = append(rows, fmt.Sprintf("[%s](fg:red) %d", name, snap.Errors[name]))
	}
	return rows
}

func formatThresholdRows(snap metrics.Snapshot, thresholds []threshold.Threshold) []string {
	if len(thresholds) == 0 {
		return []string{"None configured"}
	}
	verdict := threshold.Evaluate(snap, thresholds)
	rows := make([]string, 0, len(verdict.Results))
	for _, r := range verdict.Results {
		color := "green"
		if !r.Pass {
			color = "red"
		}
		rows = append(rows, fmt.Sprintf("[%s](fg:%s)", r.Message, color))
	}
	return rows
}

// formatRunParams formats the run parameters for display.
func (d *Dashboard) formatRunParams() string {
	var parts []string

	if d.info.MaxVUs > 0 {
		parts = append(parts, fmt.Sprintf("Max VUs: %d", d.info.MaxVUs))
	}
	if d.info.Planned > 0 {
		parts = append(parts, fmt.Sprintf("Planned: %s", d.info.Planned))
	}
	if d.info.Timeout > 0 {
		parts = append(parts, fmt.Sprintf("Timeout: %s", d.info.Timeout))
	}
	if d.info.ConfigFile != "" {
		parts = append(parts, fmt.Sprintf("Config: %s", d.info.ConfigFile))
	}

	return strings.Join(parts, " | ")
}
