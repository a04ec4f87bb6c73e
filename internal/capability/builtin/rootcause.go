package builtin

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/parleyhq/parley/internal/capability"
	"github.com/parleyhq/parley/internal/intent"
	"github.com/parleyhq/parley/internal/schema"
	"github.com/parleyhq/parley/pkg/models"
)

// Finding is one candidate explanation from root-cause analysis.
type Finding struct {
	Description string  `json:"description"`
	Weight      float64 `json:"weight"`
}

// Analysis is the structured payload root-cause analysis produces.
type Analysis struct {
	Metric       string    `json:"metric"`
	AnomalyDay   string    `json:"anomaly_day"`
	AnomalyValue float64   `json:"anomaly_value"`
	Baseline     float64   `json:"baseline"`
	DeviationPct float64   `json:"deviation_pct"`
	Findings     []Finding `json:"findings"`
}

// AnalyzeRootCause explains abnormal movements in a metric. It requires
// the metric query from the same turn and reads its series, so it always
// runs after query_metrics.
type AnalyzeRootCause struct {
	completer Completer
	params    *schema.Object
}

// NewAnalyzeRootCause creates the analysis capability. completer may be
// nil; findings are then reported as-is without a narrative.
func NewAnalyzeRootCause(completer Completer) *AnalyzeRootCause {
	params := schema.New().
		Add("metric", schema.Field{
			Type:        schema.TypeString,
			Description: "The metric to analyze",
			Required:    true,
			Enum:        intent.Metrics,
		}).
		Add("anomaly_time", schema.Field{
			Type:        schema.TypeString,
			Description: "When the anomaly occurred",
			Default:     "yesterday",
		}).
		Add("baseline", schema.Field{
			Type:        schema.TypeString,
			Description: "How the baseline is computed",
			Enum:        []string{"recent_avg", "same_period_last_year", "custom"},
			Default:     "recent_avg",
		}).
		Add("baseline_value", schema.Field{
			Type:        schema.TypeNumber,
			Description: "Custom baseline value",
		}).
		Add("depth", schema.Field{
			Type:        schema.TypeInteger,
			Description: "Analysis depth in levels",
			Minimum:     schema.Ptr(1),
			Maximum:     schema.Ptr(5),
			Default:     3,
		})

	return &AnalyzeRootCause{completer: completer, params: params}
}

func (a *AnalyzeRootCause) Name() string { return "analyze_root_cause" }

func (a *AnalyzeRootCause) Description() string {
	return "Analyze why a metric moved abnormally"
}

func (a *AnalyzeRootCause) InputSchema() *schema.Object { return a.params }

func (a *AnalyzeRootCause) DependsOn() []string { return []string{"query_metrics"} }

func (a *AnalyzeRootCause) Invoke(ctx context.Context, params map[string]any, inv *capability.Invocation) (*models.InvocationResult, error) {
	dep := inv.DependencyResult("query_metrics")
	if dep == nil {
		return nil, fmt.Errorf("metric series unavailable: query_metrics produced no result")
	}
	series, ok := dep.Data.(*QueryResult)
	if !ok || len(series.Points) == 0 {
		return nil, fmt.Errorf("metric series unavailable: unexpected query payload")
	}

	metric := params["metric"].(string)
	anomalyTime, _ := params["anomaly_time"].(string)
	baselineMode, _ := params["baseline"].(string)
	depth, _ := params["depth"].(int)

	// Daily totals in day order; the query may be a dimension breakdown.
	days, totals := dailyTotals(series)

	anomalyIdx := pickAnomalyDay(days, totals, anomalyTime)
	analysis := &Analysis{
		Metric:       metric,
		AnomalyDay:   days[anomalyIdx],
		AnomalyValue: totals[anomalyIdx],
	}

	switch baselineMode {
	case "custom":
		if v, ok := params["baseline_value"].(float64); ok {
			analysis.Baseline = v
		}
	default:
		analysis.Baseline = recentAverage(totals, anomalyIdx)
	}
	if analysis.Baseline != 0 {
		analysis.DeviationPct = (analysis.AnomalyValue - analysis.Baseline) / analysis.Baseline * 100
	}

	analysis.Findings = buildFindings(series, days, totals, anomalyIdx, depth)

	return &models.InvocationResult{
		Summary:      a.summarize(ctx, analysis),
		Data:         analysis,
		StateUpdates: map[string]any{"last_analysis_metric": metric},
	}, nil
}

// dailyTotals collapses the series to one total per day, preserving order.
func dailyTotals(series *QueryResult) ([]string, []float64) {
	var days []string
	index := make(map[string]int)
	var totals []float64
	for _, p := range series.Points {
		day := p.Day.Format("2006-01-02")
		i, seen := index[day]
		if !seen {
			i = len(days)
			index[day] = i
			days = append(days, day)
			totals = append(totals, 0)
		}
		totals[i] += p.Value
	}
	return days, totals
}

// pickAnomalyDay resolves the requested anomaly time to a series index,
// falling back to the day with the largest move from its predecessor.
func pickAnomalyDay(days []string, totals []float64, anomalyTime string) int {
	if t, err := time.Parse("2006-01-02", anomalyTime); err == nil {
		want := t.Format("2006-01-02")
		for i, d := range days {
			if d == want {
				return i
			}
		}
	}
	if anomalyTime == "yesterday" && len(days) > 0 {
		return len(days) - 1
	}

	best := len(days) - 1
	var bestMove float64
	for i := 1; i < len(totals); i++ {
		move := totals[i] - totals[i-1]
		if move < 0 {
			move = -move
		}
		if move > bestMove {
			best, bestMove = i, move
		}
	}
	return best
}

// recentAverage averages every day except the anomaly itself.
func recentAverage(totals []float64, exclude int) float64 {
	if len(totals) < 2 {
		if len(totals) == 1 {
			return totals[0]
		}
		return 0
	}
	var sum float64
	for i, v := range totals {
		if i == exclude {
			continue
		}
		sum += v
	}
	return sum / float64(len(totals)-1)
}

// buildFindings produces up to depth candidate explanations from the
// series shape and the dimension breakdown.
func buildFindings(series *QueryResult, days []string, totals []float64, anomalyIdx, depth int) []Finding {
	var findings []Finding

	if anomalyIdx > 0 {
		prev := totals[anomalyIdx-1]
		cur := totals[anomalyIdx]
		if prev != 0 {
			pct := (cur - prev) / prev * 100
			direction := "rose"
			if pct < 0 {
				direction = "fell"
			}
			findings = append(findings, Finding{
				Description: fmt.Sprintf("%s %s %.1f%% from %s to %s", displayMetric(series.Metric), direction, abs(pct), days[anomalyIdx-1], days[anomalyIdx]),
				Weight:      0.9,
			})
		}
	}

	if t, err := time.Parse("2006-01-02", days[anomalyIdx]); err == nil {
		if wd := t.Weekday(); wd == time.Saturday || wd == time.Sunday {
			findings = append(findings, Finding{
				Description: fmt.Sprintf("%s falls on a %s; weekend seasonality typically lowers weekday-driven metrics", days[anomalyIdx], wd),
				Weight:      0.6,
			})
		}
	}

	if len(series.Breakdown) > 0 && series.Total > 0 {
		top, share := topMember(series.Breakdown, series.Total)
		findings = append(findings, Finding{
			Description: fmt.Sprintf("%s accounts for %.0f%% of the total; a shift there moves the whole metric", top, share*100),
			Weight:      0.5,
		})
	}

	if len(findings) == 0 {
		findings = append(findings, Finding{
			Description: "no single day stands out; the movement looks like gradual drift rather than a discrete event",
			Weight:      0.3,
		})
	}

	if depth > 0 && len(findings) > depth {
		findings = findings[:depth]
	}
	return findings
}

// summarize writes the reply fragment, preferring an LLM narrative when a
// completer is available.
func (a *AnalyzeRootCause) summarize(ctx context.Context, analysis *Analysis) string {
	template := templateSummary(analysis)
	if a.completer == nil {
		return template
	}

	var b strings.Builder
	b.WriteString("Write one short paragraph for a business user explaining this metric anomaly. Facts:\n")
	fmt.Fprintf(&b, "- metric: %s\n- anomaly day: %s (value %.2f, baseline %.2f, deviation %.1f%%)\n",
		analysis.Metric, analysis.AnomalyDay, analysis.AnomalyValue, analysis.Baseline, analysis.DeviationPct)
	for _, f := range analysis.Findings {
		fmt.Fprintf(&b, "- %s\n", f.Description)
	}
	b.WriteString("Do not invent facts beyond these.")

	narrative, err := a.completer.Complete(ctx, b.String())
	if err != nil || strings.TrimSpace(narrative) == "" {
		return template
	}
	return strings.TrimSpace(narrative)
}

func templateSummary(analysis *Analysis) string {
	direction := "above"
	if analysis.DeviationPct < 0 {
		direction = "below"
	}
	s := fmt.Sprintf("%s on %s was %.1f%% %s its baseline.",
		displayMetric(analysis.Metric), analysis.AnomalyDay, abs(analysis.DeviationPct), direction)
	if len(analysis.Findings) > 0 {
		s += " Most likely: " + analysis.Findings[0].Description + "."
	}
	return s
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
