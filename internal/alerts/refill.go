package alerts

import (
	"fmt"
	"math"
	"time"

	"github.com/emeeran/phrm-diag-sub000/internal/extract"
	"github.com/emeeran/phrm-diag-sub000/pkg/model"
	"go.uber.org/zap"
)

const (
	DefaultSupplyDays    = 30
	DefaultRefillLead    = 7 * 24 * time.Hour
	DefaultRefillGrace   = 7 * 24 * time.Hour
	refillUrgentDaysLeft = 3
)

// RefillDetector warns about medications whose supply runs out soon
type RefillDetector struct {
	supplyDays int
	leadTime   time.Duration
	grace      time.Duration
	logger     *zap.Logger
}

// NewRefillDetector creates a new RefillDetector. Zero values fall back to defaults.
func NewRefillDetector(supplyDays int, leadTime, grace time.Duration, logger *zap.Logger) *RefillDetector {
	if supplyDays <= 0 {
		supplyDays = DefaultSupplyDays
	}
	if leadTime <= 0 {
		leadTime = DefaultRefillLead
	}
	if grace <= 0 {
		grace = DefaultRefillGrace
	}
	return &RefillDetector{
		supplyDays: supplyDays,
		leadTime:   leadTime,
		grace:      grace,
		logger:     logger,
	}
}

// Detect emits one finding per medication that is due within the lead time or
// overdue. Medications overdue for longer than the grace period are treated
// as discontinued.
func (d *RefillDetector) Detect(records []model.HealthRecord, now time.Time) []Finding {
	var findings []Finding
	for _, g := range groupByTitle(sortedCopy(records), model.CategoryMedications) {
		last := g.records[len(g.records)-1]

		supply, ok := extract.SupplyDays(last.Text())
		if !ok {
			supply = d.supplyDays
		}
		due := last.Date.AddDate(0, 0, supply)
		until := due.Sub(now)
		if until > d.leadTime {
			continue
		}
		expires := due.Add(d.grace)
		if !expires.After(now) {
			continue
		}

		daysRemaining := int(math.Ceil(until.Hours() / 24))
		var (
			priority model.Priority
			desc     string
		)
		switch {
		case until < 0:
			priority = model.PriorityHigh
			desc = fmt.Sprintf("Your %s supply ran out on %s. Refill it as soon as possible.", g.title, due.Format("Jan 2"))
		case daysRemaining <= refillUrgentDaysLeft:
			priority = model.PriorityMedium
			desc = fmt.Sprintf("Your %s supply runs out in %d day(s), on %s.", g.title, daysRemaining, due.Format("Jan 2"))
		default:
			priority = model.PriorityLow
			desc = fmt.Sprintf("Your %s supply runs out on %s. Plan your refill.", g.title, due.Format("Jan 2"))
		}

		findings = append(findings, Finding{
			Title:       fmt.Sprintf("Refill reminder: %s", g.title),
			Description: desc,
			Priority:    priority,
			ExpiresAt:   expires,
			Data: model.RefillData{
				MedicationName: g.title,
				LastRecordID:   last.ID,
				LastFilled:     last.Date,
				SupplyDays:     supply,
				DueDate:        due,
				DaysRemaining:  daysRemaining,
			},
		})
	}

	d.logger.Debug("refill check finished",
		zap.Int("records", len(records)),
		zap.Int("findings", len(findings)),
	)

	return findings
}
