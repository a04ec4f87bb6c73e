package resolver

import (
	"regexp"
	"strings"

	"github.com/parleyhq/parley/internal/intent"
	"github.com/parleyhq/parley/pkg/models"
)

// rule is tier 3: deterministic keyword scoring with no external call.
// Each intent scores one point per keyword hit in the normalized text; the
// highest score wins, ties broken by catalog declaration order. No hit at
// all, or an extracted parameter object that fails its schema, terminates
// the chain at the plain-conversation fallback with confidence 0.
func (r *Resolver) rule(turnText string) models.IntentResolution {
	text := strings.ToLower(turnText)

	var best *intent.Definition
	bestScore := 0
	for _, def := range r.catalog.List() {
		score := 0
		for _, kw := range def.Keywords {
			if strings.Contains(text, strings.ToLower(kw)) {
				score++
			}
		}
		if score > bestScore {
			bestScore = score
			best = def
		}
	}

	if best == nil {
		return r.fallback(models.TierRule)
	}

	params, err := best.Params.Normalize(ruleParams(text, best.Name))
	if err != nil {
		return r.fallback(models.TierRule)
	}

	return models.IntentResolution{
		Intent:     best.Name,
		Confidence: confidenceRule,
		Params:     params,
		Tier:       models.TierRule,
	}
}

// metricPhrases maps user phrasing to metric enum values. Order matters:
// earlier entries win when several phrases appear.
var metricPhrases = []struct {
	phrase string
	metric string
}{
	{"sales", "sales"},
	{"revenue", "sales"},
	{"user", "user_count"},
	{"order", "order_count"},
	{"conversion", "conversion_rate"},
	{"arpu", "arpu"},
	{"churn", "churn_rate"},
}

// timePhrases maps relative time phrases to the enumerated ranges.
var timePhrases = []struct {
	phrase string
	rng    string
}{
	{"today", "today"},
	{"yesterday", "yesterday"},
	{"last 7 days", "7d"},
	{"past 7 days", "7d"},
	{"last week", "7d"},
	{"past week", "7d"},
	{"last 30 days", "30d"},
	{"past 30 days", "30d"},
	{"last 90 days", "90d"},
	{"past 90 days", "90d"},
	{"this month", "this_month"},
	{"last month", "last_month"},
	{"this quarter", "this_quarter"},
	{"this year", "this_year"},
}

var isoDate = regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}\b`)

// The quarter form is matched case-insensitively because ruleParams sees
// lowercased text; the canonical form is uppercase Q.
var reportRange = []*regexp.Regexp{
	regexp.MustCompile(`\b\d{4}-\d{2}\b`),
	regexp.MustCompile(`(?i)\b\d{4}-q[1-4]\b`),
}

// ruleParams extracts parameters from normalized text using simple pattern
// rules. It returns only what it can find; schema defaults fill the rest.
func ruleParams(text, intentName string) map[string]any {
	params := map[string]any{}

	switch intentName {
	case "query_metrics":
		if m, ok := findMetric(text); ok {
			params["metric"] = m
		}
		if rng, ok := findTimeRange(text); ok {
			params["time_range"] = rng
		}
		if dims := findDimensions(text); len(dims) > 0 {
			params["dimensions"] = dims
		}

	case "analyze_root_cause":
		if m, ok := findMetric(text); ok {
			params["metric"] = m
		}
		if date := isoDate.FindString(text); date != "" {
			params["anomaly_time"] = date
		} else if strings.Contains(text, "today") {
			params["anomaly_time"] = "today"
		}

	case "generate_report":
		switch {
		case strings.Contains(text, "user"):
			params["report_type"] = "user_report"
		case strings.Contains(text, "product"):
			params["report_type"] = "product_report"
		default:
			params["report_type"] = "sales_report"
		}
		if rng, ok := findReportRange(text); ok {
			params["time_range"] = rng
		}
		switch {
		case strings.Contains(text, "excel"):
			params["format"] = "excel"
		case strings.Contains(text, "json"):
			params["format"] = "json"
		}
	}

	return params
}

func findMetric(text string) (string, bool) {
	for _, mp := range metricPhrases {
		if strings.Contains(text, mp.phrase) {
			return mp.metric, true
		}
	}
	return "", false
}

func findTimeRange(text string) (string, bool) {
	for _, tp := range timePhrases {
		if strings.Contains(text, tp.phrase) {
			return tp.rng, true
		}
	}
	return "", false
}

func findDimensions(text string) []string {
	var dims []string
	for _, d := range intent.Dimensions {
		phrase := strings.ReplaceAll(d, "_", " ")
		if strings.Contains(text, "by "+phrase) || strings.Contains(text, "per "+phrase) {
			dims = append(dims, d)
		}
	}
	return dims
}

func findReportRange(text string) (string, bool) {
	for _, re := range reportRange {
		if m := re.FindString(text); m != "" {
			// Restore the canonical uppercase Q; month matches are digits only.
			return strings.ToUpper(m), true
		}
	}
	if strings.Contains(text, "this month") {
		return "this_month", true
	}
	if rng, ok := findTimeRange(text); ok {
		switch rng {
		case "7d":
			return "last_7d", true
		case "30d":
			return "last_30d", true
		case "90d":
			return "last_90d", true
		}
	}
	return "", false
}
