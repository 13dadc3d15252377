package analytics

import (
	"math"
	"sort"
	"time"

	"github.com/emeeran/phrm-diag-sub000/pkg/model"
)

const day = 24 * time.Hour

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// populationStdDev divides by n, not n-1
func populationStdDev(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	m := mean(values)
	var sq float64
	for _, v := range values {
		sq += (v - m) * (v - m)
	}
	return math.Sqrt(sq / float64(len(values)))
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

// percentChange returns the change from first to last in percent. A zero
// baseline yields 0 when nothing changed and ±100 otherwise.
func percentChange(first, last float64) float64 {
	if first == 0 {
		switch {
		case last > 0:
			return 100
		case last < 0:
			return -100
		default:
			return 0
		}
	}
	return (last - first) / math.Abs(first) * 100
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// sortedByDate returns a copy of records ordered by date, keeping input order for ties
func sortedByDate(records []model.HealthRecord) []model.HealthRecord {
	out := append([]model.HealthRecord(nil), records...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Date.Before(out[j].Date)
	})
	return out
}

func filterCategory(records []model.HealthRecord, c model.Category) []model.HealthRecord {
	var out []model.HealthRecord
	for _, r := range records {
		if r.Category == c {
			out = append(out, r)
		}
	}
	return out
}
