package builtin

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/parleyhq/parley/internal/capability"
	"github.com/parleyhq/parley/internal/state"
	"github.com/parleyhq/parley/pkg/models"
)

// fakeStore serves canned points and records the queries it saw.
type fakeStore struct {
	points  map[string][]state.MetricPoint
	queries []state.MetricsQuery
	err     error
}

func (f *fakeStore) QueryMetrics(_ context.Context, q state.MetricsQuery) ([]state.MetricPoint, error) {
	f.queries = append(f.queries, q)
	if f.err != nil {
		return nil, f.err
	}
	var out []state.MetricPoint
	for _, p := range f.points[q.Metric] {
		if p.Dimension != q.Dimension {
			continue
		}
		if p.Day.Before(q.From) || p.Day.After(q.To) {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

type fixedCompleter struct {
	reply string
	err   error
}

func (f *fixedCompleter) Complete(_ context.Context, _ string) (string, error) {
	return f.reply, f.err
}

// newInvocationWith builds an invocation whose query_metrics dependency
// already produced the given series.
func newInvocationWith(series *QueryResult) *capability.Invocation {
	return &capability.Invocation{
		Results: map[string]*models.InvocationResult{
			"query_metrics": {Summary: "queried", Data: series},
		},
	}
}

func day(offset int) time.Time {
	return time.Now().UTC().Truncate(24*time.Hour).AddDate(0, 0, offset)
}

func salesWeek() []state.MetricPoint {
	var points []state.MetricPoint
	values := []float64{100, 110, 105, 40, 108, 112, 109}
	for i, v := range values {
		points = append(points, state.MetricPoint{Metric: "sales", Day: day(i - 7), Value: v})
	}
	// Prior window for comparison.
	for i := 0; i < 7; i++ {
		points = append(points, state.MetricPoint{Metric: "sales", Day: day(i - 14), Value: 100})
	}
	// Region breakdown for the same week.
	for i := 0; i < 7; i++ {
		points = append(points,
			state.MetricPoint{Metric: "sales", Day: day(i - 7), Dimension: "region", DimensionValue: "amer", Value: 60},
			state.MetricPoint{Metric: "sales", Day: day(i - 7), Dimension: "region", DimensionValue: "emea", Value: 40},
		)
	}
	return points
}

func TestQueryMetricsInvoke(t *testing.T) {
	store := &fakeStore{points: map[string][]state.MetricPoint{"sales": salesWeek()}}
	q := NewQueryMetrics(store)

	params, err := q.InputSchema().Normalize(map[string]any{"metric": "sales", "time_range": "7d"})
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	res, err := q.Invoke(context.Background(), params, nil)
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}

	result, ok := res.Data.(*QueryResult)
	if !ok {
		t.Fatalf("Data is %T, want *QueryResult", res.Data)
	}
	if result.Total != 684 {
		t.Errorf("Total = %v, want 684", result.Total)
	}
	if result.PrevTotal != 700 {
		t.Errorf("PrevTotal = %v, want 700", result.PrevTotal)
	}
	if !strings.Contains(res.Summary, "down") {
		t.Errorf("summary should note the decline: %q", res.Summary)
	}
	if res.StateUpdates["last_metric"] != "sales" {
		t.Errorf("state updates = %v", res.StateUpdates)
	}
}

func TestQueryMetricsDimensionBreakdown(t *testing.T) {
	store := &fakeStore{points: map[string][]state.MetricPoint{"sales": salesWeek()}}
	q := NewQueryMetrics(store)

	params, err := q.InputSchema().Normalize(map[string]any{
		"metric":     "sales",
		"time_range": "7d",
		"dimensions": []string{"date", "region"},
	})
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	res, err := q.Invoke(context.Background(), params, nil)
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}

	result := res.Data.(*QueryResult)
	// "date" is the row grain; "region" is the first stored breakdown.
	if result.Dimension != "region" {
		t.Errorf("Dimension = %q, want region", result.Dimension)
	}
	if result.Breakdown["amer"] != 420 || result.Breakdown["emea"] != 280 {
		t.Errorf("Breakdown = %v", result.Breakdown)
	}
	if !strings.Contains(res.Summary, "amer") {
		t.Errorf("summary should name the top region: %q", res.Summary)
	}
}

func TestQueryMetricsNoData(t *testing.T) {
	store := &fakeStore{points: map[string][]state.MetricPoint{}}
	q := NewQueryMetrics(store)

	params, _ := q.InputSchema().Normalize(map[string]any{"metric": "arpu"})
	if _, err := q.Invoke(context.Background(), params, nil); err == nil {
		t.Error("empty series should be an error")
	}
}

func TestQueryMetricsStoreError(t *testing.T) {
	store := &fakeStore{err: errors.New("disk on fire")}
	q := NewQueryMetrics(store)

	params, _ := q.InputSchema().Normalize(map[string]any{"metric": "sales"})
	_, err := q.Invoke(context.Background(), params, nil)
	if err == nil || !strings.Contains(err.Error(), "disk on fire") {
		t.Errorf("store error should propagate, got %v", err)
	}
}

func TestGenerateReportInvoke(t *testing.T) {
	points := map[string][]state.MetricPoint{}
	for _, metric := range []string{"sales", "order_count", "conversion_rate"} {
		for i := 0; i < 5; i++ {
			points[metric] = append(points[metric], state.MetricPoint{
				Metric: metric, Day: day(i - 5), Value: float64(10 + i),
			})
		}
	}
	store := &fakeStore{points: points}
	g := NewGenerateReport(store)

	params, err := g.InputSchema().Normalize(map[string]any{
		"report_type": "sales_report",
		"time_range":  "last_5d",
		"format":      "excel",
	})
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	res, err := g.Invoke(context.Background(), params, nil)
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}

	report := res.Data.(*Report)
	if len(report.Rows) != 15 {
		t.Errorf("got %d rows, want 15", len(report.Rows))
	}
	if report.FileName != "sales_report_last_5d.xlsx" {
		t.Errorf("FileName = %q", report.FileName)
	}
	if !strings.Contains(res.Summary, "15 rows") {
		t.Errorf("summary = %q", res.Summary)
	}
}

func TestGenerateReportRejectsBadRange(t *testing.T) {
	g := NewGenerateReport(&fakeStore{})
	_, err := g.InputSchema().Normalize(map[string]any{
		"report_type": "sales_report",
		"time_range":  "whenever",
	})
	if err == nil {
		t.Error("free-text time range should fail schema validation")
	}
}

func TestAnalyzeRootCauseFindsDrop(t *testing.T) {
	series := &QueryResult{
		Metric: "sales",
		Total:  684,
		Points: salesWeek()[:7],
	}
	a := NewAnalyzeRootCause(nil)

	params, err := a.InputSchema().Normalize(map[string]any{"metric": "sales", "anomaly_time": day(-4).Format("2006-01-02")})
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}

	invocation := newInvocationWith(series)
	res, err := a.Invoke(context.Background(), params, invocation)
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}

	analysis := res.Data.(*Analysis)
	if analysis.AnomalyDay != day(-4).Format("2006-01-02") {
		t.Errorf("AnomalyDay = %s", analysis.AnomalyDay)
	}
	if analysis.AnomalyValue != 40 {
		t.Errorf("AnomalyValue = %v, want 40", analysis.AnomalyValue)
	}
	if analysis.DeviationPct >= 0 {
		t.Errorf("deviation should be negative for a drop, got %.1f", analysis.DeviationPct)
	}
	if len(analysis.Findings) == 0 {
		t.Fatal("expected findings")
	}
	if !strings.Contains(res.Summary, "below") {
		t.Errorf("summary = %q", res.Summary)
	}
}

func TestAnalyzeRootCauseAutoDetectsAnomaly(t *testing.T) {
	series := &QueryResult{Metric: "sales", Total: 684, Points: salesWeek()[:7]}
	a := NewAnalyzeRootCause(nil)

	params, _ := a.InputSchema().Normalize(map[string]any{"metric": "sales", "anomaly_time": "last week"})
	res, err := a.Invoke(context.Background(), params, newInvocationWith(series))
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	analysis := res.Data.(*Analysis)
	// The 110 -> 40 move is the largest in the series.
	if analysis.AnomalyValue != 40 {
		t.Errorf("auto-detected AnomalyValue = %v, want 40", analysis.AnomalyValue)
	}
}

func TestAnalyzeRootCauseRequiresMetricSeries(t *testing.T) {
	a := NewAnalyzeRootCause(nil)
	params, _ := a.InputSchema().Normalize(map[string]any{"metric": "sales"})

	if _, err := a.Invoke(context.Background(), params, &capability.Invocation{}); err == nil {
		t.Error("missing dependency result should be an error")
	}
}

func TestAnalyzeRootCauseNarrative(t *testing.T) {
	series := &QueryResult{Metric: "sales", Total: 684, Points: salesWeek()[:7]}
	a := NewAnalyzeRootCause(&fixedCompleter{reply: "Sales dipped due to the holiday."})

	params, _ := a.InputSchema().Normalize(map[string]any{"metric": "sales"})
	res, err := a.Invoke(context.Background(), params, newInvocationWith(series))
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if res.Summary != "Sales dipped due to the holiday." {
		t.Errorf("Summary = %q", res.Summary)
	}
}

func TestResolveTimeRange(t *testing.T) {
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		token string
		from  string
		to    string
	}{
		{"today", "2026-08-29", "2026-08-29"},
		{"yesterday", "2026-08-28", "2026-08-28"},
		{"7d", "2026-08-22", "2026-08-28"},
		{"this_month", "2026-08-01", "2026-08-29"},
		{"last_month", "2026-07-01", "2026-07-31"},
		{"this_quarter", "2026-07-01", "2026-08-29"},
		{"2024-01", "2024-01-01", "2024-01-31"},
		{"2024-Q1", "2024-01-01", "2024-03-31"},
		{"last_14d", "2026-08-15", "2026-08-28"},
	}
	for _, tc := range cases {
		t.Run(tc.token, func(t *testing.T) {
			from, to, err := resolveTimeRange(tc.token, now)
			if err != nil {
				t.Fatalf("resolveTimeRange(%q): %v", tc.token, err)
			}
			if got := from.Format("2006-01-02"); got != tc.from {
				t.Errorf("from = %s, want %s", got, tc.from)
			}
			if got := to.Format("2006-01-02"); got != tc.to {
				t.Errorf("to = %s, want %s", got, tc.to)
			}
		})
	}

	if _, _, err := resolveTimeRange("fortnight", now); err == nil {
		t.Error("unknown token should error")
	}
	if _, _, err := resolveTimeRange("2024-13", now); err == nil {
		t.Error("month 13 should error")
	}
}
