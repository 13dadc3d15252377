package alerts

import (
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/emeeran/phrm-diag-sub000/internal/extract"
	"github.com/emeeran/phrm-diag-sub000/pkg/model"
	"go.uber.org/zap"
)

const (
	// MinVitalReadings is the group size needed before outliers are judged
	MinVitalReadings = 3
	// RecurringThreshold is the report count that makes a symptom recurring
	RecurringThreshold = 3
	// DefaultRecurringWindow is the trailing window for recurring symptoms
	DefaultRecurringWindow = 14 * 24 * time.Hour

	mediumZ = 2.0
	highZ   = 3.0
)

var abnormalLabPattern = regexp.MustCompile(`(?i)\b(abnormal|elevated|high|low|outside (?:the )?(?:normal )?range|out of range|critical|positive|borderline|deficient)\b`)

// AnomalyDetector flags vital outliers, recurring or worsening symptoms and abnormal labs
type AnomalyDetector struct {
	recurringWindow time.Duration
	logger          *zap.Logger
}

// NewAnomalyDetector creates a new AnomalyDetector
func NewAnomalyDetector(recurringWindow time.Duration, logger *zap.Logger) *AnomalyDetector {
	if recurringWindow <= 0 {
		recurringWindow = DefaultRecurringWindow
	}
	return &AnomalyDetector{
		recurringWindow: recurringWindow,
		logger:          logger,
	}
}

type titledGroup struct {
	title   string
	records []model.HealthRecord
}

// Detect runs every anomaly rule over records
func (d *AnomalyDetector) Detect(records []model.HealthRecord, now time.Time) []Finding {
	sorted := sortedCopy(records)

	var findings []Finding
	for _, g := range groupByTitle(sorted, model.CategoryVitalSigns) {
		if f, ok := vitalOutlier(g); ok {
			findings = append(findings, f)
		}
	}
	for _, g := range groupByTitle(sorted, model.CategorySymptoms) {
		if f, ok := d.recurringSymptom(g, now); ok {
			findings = append(findings, f)
		}
		if f, ok := worseningSymptom(g); ok {
			findings = append(findings, f)
		}
	}
	for _, r := range sorted {
		if r.Category != model.CategoryLabResults {
			continue
		}
		if f, ok := abnormalLab(r); ok {
			findings = append(findings, f)
		}
	}

	d.logger.Debug("anomaly detection finished",
		zap.Int("records", len(records)),
		zap.Int("findings", len(findings)),
	)

	return findings
}

func vitalOutlier(g titledGroup) (Finding, bool) {
	if len(g.records) < MinVitalReadings {
		return Finding{}, false
	}

	values := make([]float64, len(g.records))
	for i, r := range g.records {
		values[i] = extract.Value(r.Text(), model.CategoryVitalSigns)
	}
	baseline := values[:len(values)-1]
	latest := values[len(values)-1]

	mean := 0.0
	for _, v := range baseline {
		mean += v
	}
	mean /= float64(len(baseline))
	variance := 0.0
	for _, v := range baseline {
		variance += (v - mean) * (v - mean)
	}
	stdDev := math.Max(math.Sqrt(variance/float64(len(baseline))), 1)

	z := math.Abs(latest-mean) / stdDev
	var priority model.Priority
	switch {
	case z > highZ:
		priority = model.PriorityHigh
	case z > mediumZ:
		priority = model.PriorityMedium
	default:
		return Finding{}, false
	}

	direction := "high"
	if latest < mean {
		direction = "low"
	}
	last := g.records[len(g.records)-1]

	return Finding{
		Title: fmt.Sprintf("Unusual %s reading", g.title),
		Description: fmt.Sprintf("Your latest %s reading (%g) is unusually %s compared to your average of %.1f.",
			strings.ToLower(g.title), latest, direction, mean),
		Priority: priority,
		Data: model.AnomalyData{
			Kind:      model.AnomalyVitalOutlier,
			RecordID:  last.ID,
			Subject:   g.title,
			Value:     latest,
			Mean:      mean,
			StdDev:    stdDev,
			ZScore:    math.Round(z*100) / 100,
			Direction: direction,
		},
	}, true
}

func (d *AnomalyDetector) recurringSymptom(g titledGroup, now time.Time) (Finding, bool) {
	since := now.Add(-d.recurringWindow)
	count := 0
	for _, r := range g.records {
		if r.Date.After(since) && !r.Date.After(now) {
			count++
		}
	}
	if count < RecurringThreshold {
		return Finding{}, false
	}

	days := int(d.recurringWindow.Hours() / 24)
	return Finding{
		Title:       fmt.Sprintf("Recurring symptom: %s", g.title),
		Description: fmt.Sprintf("You have reported %s %d times in the last %d days. Consider discussing it with your doctor.", strings.ToLower(g.title), count, days),
		Priority:    model.PriorityMedium,
		Data: model.AnomalyData{
			Kind:        model.AnomalyRecurringSymptom,
			Subject:     g.title,
			Occurrences: count,
		},
	}, true
}

// worseningSymptom requires every severity to be at least the previous one,
// with at least one real increase, across all records of the symptom.
func worseningSymptom(g titledGroup) (Finding, bool) {
	if len(g.records) < 2 {
		return Finding{}, false
	}
	severities := make([]float64, len(g.records))
	increased := false
	for i, r := range g.records {
		severities[i] = extract.Value(r.Text(), model.CategorySymptoms)
		if i == 0 {
			continue
		}
		if severities[i] < severities[i-1] {
			return Finding{}, false
		}
		if severities[i] > severities[i-1] {
			increased = true
		}
	}
	if !increased {
		return Finding{}, false
	}

	last := g.records[len(g.records)-1]
	return Finding{
		Title:       fmt.Sprintf("Worsening symptom: %s", g.title),
		Description: fmt.Sprintf("The severity of your %s has been increasing. Please contact your doctor.", strings.ToLower(g.title)),
		Priority:    model.PriorityHigh,
		Data: model.AnomalyData{
			Kind:        model.AnomalyWorseningSymptom,
			RecordID:    last.ID,
			Subject:     g.title,
			Occurrences: len(g.records),
			Severities:  severities,
			Direction:   "increasing",
		},
	}, true
}

func abnormalLab(r model.HealthRecord) (Finding, bool) {
	m := abnormalLabPattern.FindString(r.Text())
	if m == "" {
		return Finding{}, false
	}
	return Finding{
		Title:       fmt.Sprintf("Abnormal lab result: %s", r.Title),
		Description: fmt.Sprintf("Your %s result on %s was reported as %s. Review it with your doctor.", r.Title, r.Date.Format("Jan 2, 2006"), strings.ToLower(m)),
		Priority:    model.PriorityHigh,
		Data: model.AnomalyData{
			Kind:     model.AnomalyAbnormalLab,
			RecordID: r.ID,
			Subject:  r.Title,
			Phrase:   strings.ToLower(m),
		},
	}, true
}

// groupByTitle groups one category case-insensitively, keeping the first spelling
func groupByTitle(sorted []model.HealthRecord, c model.Category) []titledGroup {
	var groups []titledGroup
	index := make(map[string]int)
	for _, r := range sorted {
		if r.Category != c {
			continue
		}
		title := strings.TrimSpace(r.Title)
		if title == "" {
			continue
		}
		key := strings.ToLower(title)
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, titledGroup{title: title})
		}
		groups[i].records = append(groups[i].records, r)
	}
	return groups
}
