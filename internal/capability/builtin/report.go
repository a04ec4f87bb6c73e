package builtin

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/parleyhq/parley/internal/capability"
	"github.com/parleyhq/parley/internal/intent"
	"github.com/parleyhq/parley/internal/schema"
	"github.com/parleyhq/parley/internal/state"
	"github.com/parleyhq/parley/pkg/models"
)

// reportMetrics maps a report type to the warehouse metrics it covers.
var reportMetrics = map[string][]string{
	"sales_report":   {"sales", "order_count", "conversion_rate"},
	"user_report":    {"user_count", "arpu", "churn_rate"},
	"product_report": {"sales", "order_count"},
}

// ReportRow is one line of a generated report.
type ReportRow struct {
	Day    string  `json:"day"`
	Metric string  `json:"metric"`
	Value  float64 `json:"value"`
}

// Report is the structured payload report generation produces.
type Report struct {
	Type      string      `json:"type"`
	TimeRange string      `json:"time_range"`
	Format    string      `json:"format"`
	FileName  string      `json:"file_name"`
	Rows      []ReportRow `json:"rows"`
	Charts    bool        `json:"charts"`
}

// GenerateReport builds tabular exports from the warehouse.
type GenerateReport struct {
	store  MetricsStore
	params *schema.Object
}

// NewGenerateReport creates the report capability.
func NewGenerateReport(store MetricsStore) *GenerateReport {
	params := schema.New().
		Add("report_type", schema.Field{
			Type:        schema.TypeString,
			Description: "Report type",
			Required:    true,
			Enum:        []string{"sales_report", "user_report", "product_report"},
		}).
		Add("time_range", schema.Field{
			Type:        schema.TypeString,
			Description: "Time range, e.g. 2024-01, 2024-Q1, last_7d, this_month",
			Required:    true,
			Patterns:    []string{`^\d{4}-\d{2}$`, `^\d{4}-Q[1-4]$`, `^last_\d+d$`, `^this_month$`},
		}).
		Add("dimensions", schema.Field{
			Type:        schema.TypeArray,
			Description: "Dimensions to include in the report",
			Enum:        intent.Dimensions,
		}).
		Add("format", schema.Field{
			Type:        schema.TypeString,
			Description: "Export format",
			Enum:        []string{"json", "csv", "excel"},
			Default:     "csv",
		}).
		Add("include_charts", schema.Field{
			Type:        schema.TypeBoolean,
			Description: "Whether to include charts",
			Default:     false,
		})

	return &GenerateReport{store: store, params: params}
}

func (g *GenerateReport) Name() string { return "generate_report" }

func (g *GenerateReport) Description() string {
	return "Generate a business report in CSV, JSON, or Excel format"
}

func (g *GenerateReport) InputSchema() *schema.Object { return g.params }

func (g *GenerateReport) DependsOn() []string { return nil }

func (g *GenerateReport) Invoke(ctx context.Context, params map[string]any, _ *capability.Invocation) (*models.InvocationResult, error) {
	reportType := params["report_type"].(string)
	timeRange := params["time_range"].(string)
	format := params["format"].(string)
	charts, _ := params["include_charts"].(bool)

	from, to, err := resolveTimeRange(timeRange, time.Now())
	if err != nil {
		return nil, err
	}

	report := &Report{
		Type:      reportType,
		TimeRange: timeRange,
		Format:    format,
		FileName:  fmt.Sprintf("%s_%s.%s", reportType, timeRange, fileExtension(format)),
		Charts:    charts,
	}

	for _, metric := range reportMetrics[reportType] {
		points, err := g.store.QueryMetrics(ctx, state.MetricsQuery{
			Metric: metric,
			From:   from,
			To:     to,
		})
		if err != nil {
			return nil, fmt.Errorf("report %s: %w", metric, err)
		}
		for _, p := range points {
			report.Rows = append(report.Rows, ReportRow{
				Day:    p.Day.Format("2006-01-02"),
				Metric: p.Metric,
				Value:  p.Value,
			})
		}
	}
	if len(report.Rows) == 0 {
		return nil, fmt.Errorf("no data for %s in range %s", reportType, timeRange)
	}

	summary := fmt.Sprintf("Generated the %s for %s: %d rows as %s (%s).",
		strings.ReplaceAll(reportType, "_", " "), displayRange(timeRange),
		len(report.Rows), strings.ToUpper(fileExtension(format)), report.FileName)

	return &models.InvocationResult{
		Summary: summary,
		Data:    report,
		StateUpdates: map[string]any{
			"last_report_type": reportType,
			"last_report_file": report.FileName,
		},
	}, nil
}

func fileExtension(format string) string {
	if format == "excel" {
		return "xlsx"
	}
	return format
}
