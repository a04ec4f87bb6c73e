package builtin

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/parleyhq/parley/internal/capability"
	"github.com/parleyhq/parley/internal/intent"
	"github.com/parleyhq/parley/internal/schema"
	"github.com/parleyhq/parley/internal/state"
	"github.com/parleyhq/parley/pkg/models"
)

// QueryResult is the structured payload a metric query produces. The
// root-cause capability reads it through the invocation's dependency
// results.
type QueryResult struct {
	Metric    string              `json:"metric"`
	TimeRange string              `json:"time_range"`
	From      time.Time           `json:"from"`
	To        time.Time           `json:"to"`
	Points    []state.MetricPoint `json:"points"`
	Total     float64             `json:"total"`
	PrevTotal float64             `json:"prev_total"`
	ChangePct float64             `json:"change_pct"`
	// Breakdown maps dimension member to its share of Total, present only
	// when a dimension was requested.
	Breakdown map[string]float64 `json:"breakdown,omitempty"`
	Dimension string             `json:"dimension,omitempty"`
}

// QueryMetrics reads a metric series from the warehouse.
type QueryMetrics struct {
	store  MetricsStore
	params *schema.Object
}

// NewQueryMetrics creates the metric query capability.
func NewQueryMetrics(store MetricsStore) *QueryMetrics {
	params := schema.New().
		Add("metric", schema.Field{
			Type:        schema.TypeString,
			Description: "The business metric to query",
			Required:    true,
			Enum:        intent.Metrics,
		}).
		Add("time_range", schema.Field{
			Type:        schema.TypeString,
			Description: "Time range for the query",
			Enum:        intent.TimeRanges,
			Default:     "7d",
		}).
		Add("dimensions", schema.Field{
			Type:        schema.TypeArray,
			Description: "Grouping dimensions",
			Enum:        intent.Dimensions,
			MaxItems:    3,
		}).
		Add("filters", schema.Field{
			Type:        schema.TypeObject,
			Description: "Filter conditions",
		}).
		Add("limit", schema.Field{
			Type:        schema.TypeInteger,
			Description: "Maximum number of result rows",
			Minimum:     schema.Ptr(1),
			Maximum:     schema.Ptr(1000),
			Default:     100,
		})

	return &QueryMetrics{store: store, params: params}
}

func (q *QueryMetrics) Name() string { return "query_metrics" }

func (q *QueryMetrics) Description() string {
	return "Query a business metric over a time range, optionally grouped by a dimension"
}

func (q *QueryMetrics) InputSchema() *schema.Object { return q.params }

func (q *QueryMetrics) DependsOn() []string { return nil }

func (q *QueryMetrics) Invoke(ctx context.Context, params map[string]any, _ *capability.Invocation) (*models.InvocationResult, error) {
	metric := params["metric"].(string)
	timeRange := params["time_range"].(string)
	limit, _ := params["limit"].(int)

	from, to, err := resolveTimeRange(timeRange, time.Now())
	if err != nil {
		return nil, err
	}

	dimension := firstStoredDimension(params["dimensions"])
	points, err := q.store.QueryMetrics(ctx, state.MetricsQuery{
		Metric:    metric,
		From:      from,
		To:        to,
		Dimension: dimension,
		Limit:     limit,
	})
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", metric, err)
	}
	if len(points) == 0 {
		return nil, fmt.Errorf("no data for %s in range %s", metric, timeRange)
	}

	result := &QueryResult{
		Metric:    metric,
		TimeRange: timeRange,
		From:      from,
		To:        to,
		Points:    points,
		Dimension: dimension,
	}
	for _, p := range points {
		result.Total += p.Value
	}
	if dimension != "" {
		result.Breakdown = make(map[string]float64)
		for _, p := range points {
			result.Breakdown[p.DimensionValue] += p.Value
		}
	}

	// Compare against the window of equal length right before this one.
	prevFrom, prevTo := previousWindow(from, to)
	prev, err := q.store.QueryMetrics(ctx, state.MetricsQuery{
		Metric:    metric,
		From:      prevFrom,
		To:        prevTo,
		Dimension: dimension,
		Limit:     limit,
	})
	if err == nil && len(prev) > 0 {
		for _, p := range prev {
			result.PrevTotal += p.Value
		}
		if result.PrevTotal != 0 {
			result.ChangePct = (result.Total - result.PrevTotal) / result.PrevTotal * 100
		}
	}

	return &models.InvocationResult{
		Summary: querySummary(result),
		Data:    result,
		StateUpdates: map[string]any{
			"last_metric":     metric,
			"last_time_range": timeRange,
		},
	}, nil
}

// querySummary writes the one-line reply fragment for a query result.
func querySummary(r *QueryResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s over %s: %s total", displayMetric(r.Metric), displayRange(r.TimeRange), formatValue(r.Metric, r.Total))
	if r.PrevTotal > 0 {
		direction := "up"
		pct := r.ChangePct
		if pct < 0 {
			direction = "down"
			pct = -pct
		}
		fmt.Fprintf(&b, ", %s %.1f%% vs the prior period", direction, pct)
	}
	b.WriteString(".")

	if len(r.Breakdown) > 0 && r.Total > 0 {
		top, share := topMember(r.Breakdown, r.Total)
		fmt.Fprintf(&b, " Top %s: %s (%.0f%%).", r.Dimension, top, share*100)
	}
	return b.String()
}

// firstStoredDimension picks the first requested dimension the warehouse
// actually stores as a breakdown. "date" is the row grain already, so it
// never selects breakdown rows.
func firstStoredDimension(raw any) string {
	dims, _ := raw.([]string)
	for _, d := range dims {
		switch d {
		case "region", "product", "channel", "user_type":
			return d
		}
	}
	return ""
}

func topMember(breakdown map[string]float64, total float64) (string, float64) {
	members := make([]string, 0, len(breakdown))
	for m := range breakdown {
		members = append(members, m)
	}
	sort.Strings(members)

	var top string
	var best float64
	for _, m := range members {
		if breakdown[m] > best {
			top, best = m, breakdown[m]
		}
	}
	return top, best / total
}

func displayMetric(metric string) string {
	name := strings.ReplaceAll(metric, "_", " ")
	return strings.ToUpper(name[:1]) + name[1:]
}

func displayRange(timeRange string) string {
	switch timeRange {
	case "7d":
		return "the last 7 days"
	case "30d":
		return "the last 30 days"
	case "90d":
		return "the last 90 days"
	case "today", "yesterday":
		return timeRange
	default:
		return strings.ReplaceAll(timeRange, "_", " ")
	}
}

func formatValue(metric string, v float64) string {
	switch metric {
	case "conversion_rate", "churn_rate":
		return fmt.Sprintf("%.2f%%", v)
	case "arpu":
		return fmt.Sprintf("$%.2f", v)
	default:
		if v == float64(int64(v)) {
			return fmt.Sprintf("%.0f", v)
		}
		return fmt.Sprintf("%.2f", v)
	}
}
