package analytics

import (
	"fmt"
	"math"
	"strings"

	"github.com/emeeran/phrm-diag-sub000/internal/extract"
	"github.com/emeeran/phrm-diag-sub000/pkg/model"
	"go.uber.org/zap"
)

const (
	// StableThreshold is the absolute percent change below which a series counts as stable
	StableThreshold = 5.0
	// SignificantChangeThreshold is the consecutive-point change reported as significant
	SignificantChangeThreshold = 10.0
)

// TrendEngine turns a user's records into per-category time series
type TrendEngine struct {
	logger *zap.Logger
}

// NewTrendEngine creates a new TrendEngine
func NewTrendEngine(logger *zap.Logger) *TrendEngine {
	return &TrendEngine{logger: logger}
}

// Analyze groups records by category in the order categories are first seen,
// sorts each group by date and summarizes every series.
func (e *TrendEngine) Analyze(records []model.HealthRecord) model.TrendsPayload {
	var order []model.Category
	groups := make(map[model.Category][]model.HealthRecord)
	for _, r := range records {
		if _, ok := groups[r.Category]; !ok {
			order = append(order, r.Category)
		}
		groups[r.Category] = append(groups[r.Category], r)
	}

	payload := model.TrendsPayload{Categories: make([]model.CategoryTrend, 0, len(order))}
	sentences := make([]string, 0, len(order))
	for _, c := range order {
		trend := buildCategoryTrend(c, sortedByDate(groups[c]))
		payload.Categories = append(payload.Categories, trend)
		sentences = append(sentences, trend.Summary)
	}
	payload.Summary = strings.Join(sentences, " ")

	e.logger.Debug("trend analysis computed",
		zap.Int("records", len(records)),
		zap.Int("categories", len(order)),
	)

	return payload
}

func buildCategoryTrend(c model.Category, records []model.HealthRecord) model.CategoryTrend {
	trend := model.CategoryTrend{
		Category: c,
		Points:   make([]model.TrendPoint, 0, len(records)),
	}
	for _, r := range records {
		text := r.Text()
		point := model.TrendPoint{
			Date:     r.Date,
			Value:    extract.Value(text, c),
			Category: c,
			RecordID: r.ID,
		}
		if c == model.CategoryVitalSigns || c == model.CategoryLabResults {
			point.Measurement = extract.ClassifyMeasurement(r.Title + " " + r.Description)
		}
		trend.Points = append(trend.Points, point)
	}

	if len(trend.Points) < 2 {
		trend.Summary = fmt.Sprintf("There is not enough data to identify a trend in your %s.", c.Label())
		return trend
	}

	values := make([]float64, len(trend.Points))
	for i, p := range trend.Points {
		values[i] = p.Value
	}
	change := percentChange(values[0], values[len(values)-1])
	trend.ChangePercent = &change
	trend.Summary = trendSentence(c, change)
	trend.Stats = describe(values, change)
	trend.Changes = significantChanges(trend.Points)
	return trend
}

func trendSentence(c model.Category, change float64) string {
	if math.Abs(change) < StableThreshold {
		return fmt.Sprintf("Your %s have remained relatively stable.", c.Label())
	}
	verb := "increased"
	if change < 0 {
		verb = "decreased"
	}
	return fmt.Sprintf("Your %s have %s by approximately %.0f%%.", c.Label(), verb, math.Abs(change))
}

func describe(values []float64, change float64) *model.CategoryStats {
	stats := &model.CategoryStats{
		Min:        values[0],
		Max:        values[0],
		Mean:       mean(values),
		Median:     median(values),
		StdDev:     populationStdDev(values),
		DataPoints: len(values),
	}
	for _, v := range values[1:] {
		stats.Min = math.Min(stats.Min, v)
		stats.Max = math.Max(stats.Max, v)
	}
	switch {
	case change >= StableThreshold:
		stats.Direction = "increasing"
	case change <= -StableThreshold:
		stats.Direction = "decreasing"
	default:
		stats.Direction = "stable"
	}
	return stats
}

// significantChanges lists consecutive changes larger than SignificantChangeThreshold.
// Steps from a zero value have no meaningful percentage and are skipped.
func significantChanges(points []model.TrendPoint) []model.SignificantChange {
	var out []model.SignificantChange
	for i := 1; i < len(points); i++ {
		prev, cur := points[i-1], points[i]
		if prev.Value == 0 {
			continue
		}
		change := (cur.Value - prev.Value) / math.Abs(prev.Value) * 100
		if math.Abs(change) <= SignificantChangeThreshold {
			continue
		}
		direction := "increase"
		if change < 0 {
			direction = "decrease"
		}
		out = append(out, model.SignificantChange{
			FromDate:      prev.Date,
			ToDate:        cur.Date,
			FromValue:     prev.Value,
			ToValue:       cur.Value,
			ChangePercent: round1(change),
			Direction:     direction,
		})
	}
	return out
}
