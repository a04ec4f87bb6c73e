package state

import (
	"context"
	"testing"
	"time"
)

func TestSeedDemoMetricsIdempotent(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.SeedDemoMetrics(ctx); err != nil {
		t.Fatalf("SeedDemoMetrics: %v", err)
	}
	if err := db.SeedDemoMetrics(ctx); err != nil {
		t.Fatalf("SeedDemoMetrics (second): %v", err)
	}

	var count int
	if err := db.conn.QueryRow("SELECT COUNT(*) FROM metrics").Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	// 7 metrics x 90 days x (1 total + 3+3+3+2 dimension rows).
	want := 7 * 90 * 12
	if count != want {
		t.Errorf("got %d rows after double seed, want %d", count, want)
	}
}

func TestQueryMetricsTotals(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	if err := db.SeedDemoMetrics(ctx); err != nil {
		t.Fatalf("SeedDemoMetrics: %v", err)
	}

	to := time.Now().UTC().AddDate(0, 0, -1)
	from := to.AddDate(0, 0, -6)
	points, err := db.QueryMetrics(ctx, MetricsQuery{Metric: "sales", From: from, To: to})
	if err != nil {
		t.Fatalf("QueryMetrics: %v", err)
	}
	if len(points) != 7 {
		t.Fatalf("got %d points for a 7-day total query, want 7", len(points))
	}
	for _, p := range points {
		if p.Dimension != "" {
			t.Errorf("total query returned dimension row: %+v", p)
		}
		if p.Value <= 0 {
			t.Errorf("non-positive value: %+v", p)
		}
	}
	if !points[0].Day.Before(points[len(points)-1].Day) {
		t.Error("points should be ordered by day ascending")
	}
}

func TestQueryMetricsDayRoundTrip(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	days := []time.Time{
		time.Date(2026, 5, 30, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 5, 31, 0, 0, 0, 0, time.UTC),
	}
	for i, day := range days {
		err := db.InsertMetric(ctx, MetricPoint{Metric: "sales", Day: day, Value: float64(100 + i)})
		if err != nil {
			t.Fatalf("InsertMetric: %v", err)
		}
	}

	points, err := db.QueryMetrics(ctx, MetricsQuery{Metric: "sales", From: days[0], To: days[1]})
	if err != nil {
		t.Fatalf("QueryMetrics: %v", err)
	}
	if len(points) != 2 {
		t.Fatalf("got %d points, want 2", len(points))
	}
	for i, p := range points {
		if p.Day.IsZero() {
			t.Fatalf("point %d has zero day", i)
		}
		if !p.Day.Equal(days[i]) {
			t.Errorf("point %d day = %s, want %s", i, p.Day, days[i])
		}
	}
}

func TestQueryMetricsByDimension(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	if err := db.SeedDemoMetrics(ctx); err != nil {
		t.Fatalf("SeedDemoMetrics: %v", err)
	}

	to := time.Now().UTC().AddDate(0, 0, -1)
	points, err := db.QueryMetrics(ctx, MetricsQuery{
		Metric:    "revenue",
		From:      to,
		To:        to,
		Dimension: "region",
	})
	if err != nil {
		t.Fatalf("QueryMetrics: %v", err)
	}
	if len(points) != 3 {
		t.Fatalf("got %d region rows for one day, want 3", len(points))
	}
	seen := map[string]bool{}
	for _, p := range points {
		seen[p.DimensionValue] = true
	}
	for _, member := range []string{"amer", "emea", "apac"} {
		if !seen[member] {
			t.Errorf("missing region %q in %v", member, seen)
		}
	}
}

func TestQueryMetricsLimitAndValidation(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	if err := db.SeedDemoMetrics(ctx); err != nil {
		t.Fatalf("SeedDemoMetrics: %v", err)
	}

	to := time.Now().UTC().AddDate(0, 0, -1)
	from := to.AddDate(0, 0, -29)
	points, err := db.QueryMetrics(ctx, MetricsQuery{Metric: "sales", From: from, To: to, Limit: 5})
	if err != nil {
		t.Fatalf("QueryMetrics: %v", err)
	}
	if len(points) != 5 {
		t.Errorf("limit not applied: got %d points", len(points))
	}

	if _, err := db.QueryMetrics(ctx, MetricsQuery{From: from, To: to}); err == nil {
		t.Error("empty metric should be rejected")
	}
}
