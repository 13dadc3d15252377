package analytics

import (
	"fmt"
	"strings"

	"github.com/emeeran/phrm-diag-sub000/pkg/model"
)

// DefaultDigestLimit bounds how many records are sent to the generation port
const DefaultDigestLimit = 50

// Digest renders the most recent records as one line each, oldest first,
// for use as generation input.
func Digest(records []model.HealthRecord, limit int) string {
	sorted := sortedByDate(records)
	if limit > 0 && len(sorted) > limit {
		sorted = sorted[len(sorted)-limit:]
	}

	var b strings.Builder
	for _, r := range sorted {
		fmt.Fprintf(&b, "%s [%s] %s", r.Date.Format("2006-01-02"), r.Category, strings.TrimSpace(r.Title))
		if desc := strings.TrimSpace(r.Description); desc != "" {
			b.WriteString(": ")
			b.WriteString(strings.ReplaceAll(desc, "\n", " "))
		}
		b.WriteByte('\n')
	}
	return b.String()
}
