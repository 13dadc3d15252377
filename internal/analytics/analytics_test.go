package analytics

import (
	"fmt"
	"time"

	"github.com/emeeran/phrm-diag-sub000/pkg/model"
)

var baseDate = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

// rec builds a record dated `days` after baseDate
func rec(id string, c model.Category, title, desc string, days int) model.HealthRecord {
	return model.HealthRecord{
		ID:          id,
		UserID:      "user-1",
		Category:    c,
		Title:       title,
		Description: desc,
		Date:        baseDate.AddDate(0, 0, days),
		CreatedAt:   baseDate.AddDate(0, 0, days),
	}
}

func vitals(title string, values ...float64) []model.HealthRecord {
	out := make([]model.HealthRecord, len(values))
	for i, v := range values {
		out[i] = rec(fmt.Sprintf("v%d", i), model.CategoryVitalSigns, title, fmt.Sprintf("%s %g", title, v), i)
	}
	return out
}
