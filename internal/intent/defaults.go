package intent

import "github.com/parleyhq/parley/internal/schema"

// Metric, time range, and dimension enumerations shared by the default
// intent schemas and the rule tier's pattern extraction.
var (
	Metrics    = []string{"sales", "user_count", "order_count", "conversion_rate", "arpu", "churn_rate"}
	TimeRanges = []string{"today", "yesterday", "7d", "30d", "90d", "this_month", "last_month", "this_quarter", "this_year"}
	Dimensions = []string{"region", "product", "channel", "category", "date", "user_type"}
)

// Default returns the built-in catalog: the three analytics intents plus
// the plain-conversation fallback.
func Default() *Catalog {
	c, err := NewCatalog(queryMetrics(), generateReport(), analyzeRootCause(), chat())
	if err != nil {
		// The built-in definitions are static; an error here is a
		// programming bug, not a runtime condition.
		panic(err)
	}
	return c
}

func queryMetrics() *Definition {
	params := schema.New().
		Add("metric", schema.Field{
			Type:        schema.TypeString,
			Description: "The business metric to query",
			Required:    true,
			Enum:        Metrics,
		}).
		Add("time_range", schema.Field{
			Type:        schema.TypeString,
			Description: "Time range for the query",
			Enum:        TimeRanges,
			Default:     "7d",
		}).
		Add("dimensions", schema.Field{
			Type:        schema.TypeArray,
			Description: "Grouping dimensions, e.g. by region or product",
			Enum:        Dimensions,
			MaxItems:    3,
		}).
		Add("filters", schema.Field{
			Type:        schema.TypeObject,
			Description: "Filter conditions, e.g. {\"region\": \"east\"}",
		}).
		Add("limit", schema.Field{
			Type:        schema.TypeInteger,
			Description: "Maximum number of result rows",
			Minimum:     schema.Ptr(1),
			Maximum:     schema.Ptr(1000),
			Default:     100,
		})

	return &Definition{
		Name:         "query_metrics",
		Description:  "Query a business metric (sales, user count, etc.) over a time range, optionally grouped by dimensions",
		Params:       params,
		Keywords:     []string{"query", "show", "how many", "how much", "view", "display", "total", "count"},
		Capabilities: []string{"query_metrics"},
		Examples: []Example{
			{
				UserText: "show sales for the last 7 days",
				Params:   map[string]any{"metric": "sales", "time_range": "7d", "dimensions": []string{}, "filters": map[string]any{}},
			},
			{
				UserText: "user count over the past 30 days by region",
				Params:   map[string]any{"metric": "user_count", "time_range": "30d", "dimensions": []string{"region"}, "filters": map[string]any{}},
			},
			{
				UserText: "how many orders did we get today?",
				Params:   map[string]any{"metric": "order_count", "time_range": "today", "dimensions": []string{}, "filters": map[string]any{}},
			},
			{
				UserText: "this month's conversion rate grouped by channel",
				Params:   map[string]any{"metric": "conversion_rate", "time_range": "this_month", "dimensions": []string{"channel"}, "filters": map[string]any{}},
			},
		},
	}
}

func generateReport() *Definition {
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
			Enum:        Dimensions,
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

	return &Definition{
		Name:         "generate_report",
		Description:  "Generate a business report (sales, users, products) in CSV, JSON, or Excel format",
		Params:       params,
		Keywords:     []string{"report", "export", "generate", "download", "spreadsheet"},
		Capabilities: []string{"generate_report"},
		Examples: []Example{
			{
				UserText: "generate the January 2024 sales report",
				Params:   map[string]any{"report_type": "sales_report", "time_range": "2024-01", "dimensions": []string{"date", "product"}, "format": "csv"},
			},
			{
				UserText: "export a user report for this month to excel",
				Params:   map[string]any{"report_type": "user_report", "time_range": "this_month", "dimensions": []string{"region", "user_type"}, "format": "excel"},
			},
		},
	}
}

func analyzeRootCause() *Definition {
	params := schema.New().
		Add("metric", schema.Field{
			Type:        schema.TypeString,
			Description: "The metric to analyze",
			Required:    true,
			Enum:        Metrics,
		}).
		Add("anomaly_time", schema.Field{
			Type:        schema.TypeString,
			Description: "When the anomaly occurred, e.g. yesterday or 2024-01-15",
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
			Description: "Custom baseline value, used when baseline is custom",
		}).
		Add("depth", schema.Field{
			Type:        schema.TypeInteger,
			Description: "Analysis depth in levels",
			Minimum:     schema.Ptr(1),
			Maximum:     schema.Ptr(5),
			Default:     3,
		})

	return &Definition{
		Name:        "analyze_root_cause",
		Description: "Analyze why a metric moved abnormally (holidays, campaigns, incidents)",
		Params:      params,
		Keywords:    []string{"why", "analyze", "reason", "cause", "drop", "dropped", "spike", "anomaly"},
		// Root-cause analysis reads the metric series, so the metric query
		// is re-selected in the same turn and analysis depends on it.
		Capabilities: []string{"query_metrics", "analyze_root_cause"},
		Examples: []Example{
			{
				UserText: "analyze why sales dropped yesterday",
				Params:   map[string]any{"metric": "sales", "anomaly_time": "yesterday", "baseline": "recent_avg", "depth": 3},
			},
			{
				UserText: "why did the conversion rate fall on 2024-01-15?",
				Params:   map[string]any{"metric": "conversion_rate", "anomaly_time": "2024-01-15", "baseline": "recent_avg", "depth": 3},
			},
		},
	}
}

func chat() *Definition {
	return &Definition{
		Name:         FallbackIntent,
		Description:  "Plain conversation that requires no capability",
		Params:       schema.New(),
		Capabilities: nil,
	}
}
