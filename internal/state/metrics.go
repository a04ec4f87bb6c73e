package state

import (
	"context"
	"fmt"
	"math"
	"time"
)

// MetricPoint is one row of the demo metrics warehouse.
type MetricPoint struct {
	// Metric is the metric name, e.g. "sales".
	Metric string `json:"metric"`
	// Day is the UTC day the point belongs to.
	Day time.Time `json:"day"`
	// Dimension is the breakdown dimension, empty for totals.
	Dimension string `json:"dimension,omitempty"`
	// DimensionValue is the member of the dimension, e.g. "emea".
	DimensionValue string `json:"dimension_value,omitempty"`
	// Value is the recorded measurement.
	Value float64 `json:"value"`
}

// MetricsQuery selects rows from the warehouse.
type MetricsQuery struct {
	// Metric is the metric name, required.
	Metric string
	// From and To bound the day range, inclusive.
	From time.Time
	To   time.Time
	// Dimension selects breakdown rows; empty selects totals.
	Dimension string
	// Limit caps the number of rows returned, 0 for no cap.
	Limit int
}

// QueryMetrics returns matching points ordered by day, then dimension value.
func (db *DB) QueryMetrics(ctx context.Context, q MetricsQuery) ([]MetricPoint, error) {
	if q.Metric == "" {
		return nil, fmt.Errorf("query metrics: metric is required")
	}

	query := `
		SELECT metric, day, dimension, dimension_value, value
		FROM metrics
		WHERE metric = ? AND dimension = ? AND day >= ? AND day <= ?
		ORDER BY day, dimension_value
	`
	args := []any{q.Metric, q.Dimension, q.From.UTC().Format("2006-01-02"), q.To.UTC().Format("2006-01-02")}
	if q.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, q.Limit)
	}

	db.mu.RLock()
	defer db.mu.RUnlock()

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query metrics: %w", err)
	}
	defer rows.Close()

	var points []MetricPoint
	for rows.Next() {
		var p MetricPoint
		// The day column is DATE, so the driver yields time.Time directly.
		if err := rows.Scan(&p.Metric, &p.Day, &p.Dimension, &p.DimensionValue, &p.Value); err != nil {
			return nil, fmt.Errorf("scan metric point: %w", err)
		}
		p.Day = p.Day.UTC()
		points = append(points, p)
	}
	return points, rows.Err()
}

// InsertMetric adds one point to the warehouse.
func (db *DB) InsertMetric(ctx context.Context, p MetricPoint) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO metrics (metric, day, dimension, dimension_value, value)
		VALUES (?, ?, ?, ?, ?)
	`, p.Metric, p.Day.UTC().Format("2006-01-02"), p.Dimension, p.DimensionValue, p.Value)
	if err != nil {
		return fmt.Errorf("insert metric: %w", err)
	}
	return nil
}

// demo dimension members per dimension.
var demoDimensions = map[string][]string{
	"region":    {"amer", "emea", "apac"},
	"channel":   {"web", "mobile", "partner"},
	"product":   {"starter", "pro", "enterprise"},
	"user_type": {"new", "returning"},
}

// SeedDemoMetrics populates the warehouse with 90 days of synthetic but
// deterministic data for every known metric, ending yesterday. Safe to
// call repeatedly: it is a no-op when the table already has rows.
func (db *DB) SeedDemoMetrics(ctx context.Context) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	var existing int
	if err := db.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM metrics").Scan(&existing); err != nil {
		return fmt.Errorf("count metrics: %w", err)
	}
	if existing > 0 {
		return nil
	}

	metrics := map[string]float64{
		"sales":           12000,
		"revenue":         45000,
		"user_count":      800,
		"order_count":     350,
		"conversion_rate": 4.2,
		"arpu":            56,
		"churn_rate":      2.1,
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin seed transaction: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO metrics (metric, day, dimension, dimension_value, value)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("prepare seed insert: %w", err)
	}
	defer stmt.Close()

	end := time.Now().UTC().Truncate(24*time.Hour).AddDate(0, 0, -1)
	for metric, base := range metrics {
		for i := 89; i >= 0; i-- {
			day := end.AddDate(0, 0, -i)
			total := demoValue(base, day)
			if _, err := stmt.Exec(metric, day.Format("2006-01-02"), "", "", total); err != nil {
				tx.Rollback()
				return fmt.Errorf("seed %s: %w", metric, err)
			}
			for dim, members := range demoDimensions {
				for j, member := range members {
					share := total * demoShare(j, len(members))
					if _, err := stmt.Exec(metric, day.Format("2006-01-02"), dim, member, share); err != nil {
						tx.Rollback()
						return fmt.Errorf("seed %s by %s: %w", metric, dim, err)
					}
				}
			}
		}
	}

	return tx.Commit()
}

// demoValue produces a deterministic daily value: a weekly wave plus a
// mild trend, anchored to the day so reseeding yields the same series.
func demoValue(base float64, day time.Time) float64 {
	wave := math.Sin(float64(day.YearDay()) * 2 * math.Pi / 7)
	trend := float64(day.YearDay()%30) / 100
	return math.Round(base*(1+0.15*wave+trend)*100) / 100
}

// demoShare splits a total across dimension members with a fixed skew.
func demoShare(index, count int) float64 {
	weight := float64(count - index)
	var sum float64
	for i := 1; i <= count; i++ {
		sum += float64(i)
	}
	return weight / sum
}
