package analytics

import (
	"sort"
	"strings"

	"github.com/emeeran/phrm-diag-sub000/internal/extract"
	"github.com/emeeran/phrm-diag-sub000/pkg/model"
	"go.uber.org/zap"
)

const (
	// CorrelationWindow is how far back from a symptom occurrence other records are considered
	CorrelationWindow = 3 * day
	// MinCorrelationStrength is exclusive
	MinCorrelationStrength = 0.3
	// MaxCorrelations caps the correlations kept per symptom
	MaxCorrelations = 5
)

// SymptomEngine derives per-symptom frequency, intensity, triggers and correlations
type SymptomEngine struct {
	logger *zap.Logger
}

// NewSymptomEngine creates a new SymptomEngine
func NewSymptomEngine(logger *zap.Logger) *SymptomEngine {
	return &SymptomEngine{logger: logger}
}

type symptomGroup struct {
	pattern     model.SymptomPattern
	occurrences []model.HealthRecord
	triggerSeen map[string]bool
}

// Analyze returns one pattern per distinct symptom title, most frequent first
func (e *SymptomEngine) Analyze(records []model.HealthRecord) model.SymptomsPayload {
	sorted := sortedByDate(records)

	var groups []*symptomGroup
	index := make(map[string]*symptomGroup)
	var others []model.HealthRecord

	for _, r := range sorted {
		if r.Category != model.CategorySymptoms {
			others = append(others, r)
			continue
		}
		name := strings.TrimSpace(r.Title)
		if name == "" {
			continue
		}
		key := strings.ToLower(name)
		g, ok := index[key]
		if !ok {
			g = &symptomGroup{
				pattern: model.SymptomPattern{
					Symptom:      name,
					Triggers:     []string{},
					Correlations: []model.Correlation{},
				},
				triggerSeen: make(map[string]bool),
			}
			index[key] = g
			groups = append(groups, g)
		}

		g.pattern.Frequency++
		g.occurrences = append(g.occurrences, r)

		text := r.Text()
		if v, ok := extract.Severity(text); ok {
			g.pattern.IntensityReports++
			g.pattern.Intensity += (v - g.pattern.Intensity) / float64(g.pattern.IntensityReports)
		}
		for _, t := range extract.Triggers(text) {
			if !g.triggerSeen[t] {
				g.triggerSeen[t] = true
				g.pattern.Triggers = append(g.pattern.Triggers, t)
			}
		}
	}

	patterns := make([]model.SymptomPattern, 0, len(groups))
	for _, g := range groups {
		g.pattern.Intensity = round1(g.pattern.Intensity)
		g.pattern.Correlations = correlate(g.occurrences, others)
		patterns = append(patterns, g.pattern)
	}
	sort.SliceStable(patterns, func(i, j int) bool {
		return patterns[i].Frequency > patterns[j].Frequency
	})

	e.logger.Debug("symptom analysis computed",
		zap.Int("records", len(records)),
		zap.Int("symptoms", len(patterns)),
	)

	return model.SymptomsPayload{Patterns: patterns}
}

// correlate tallies "category:title" factors seen within the lookback window of
// each occurrence, counting a factor at most once per occurrence.
func correlate(occurrences, others []model.HealthRecord) []model.Correlation {
	counts := make(map[string]int)
	for _, occ := range occurrences {
		from := occ.Date.Add(-CorrelationWindow)
		seen := make(map[string]bool)
		for _, o := range others {
			if o.Date.Before(from) || o.Date.After(occ.Date) {
				continue
			}
			factor := string(o.Category) + ":" + strings.TrimSpace(o.Title)
			if seen[factor] {
				continue
			}
			seen[factor] = true
			counts[factor]++
		}
	}

	frequency := float64(len(occurrences))
	out := []model.Correlation{}
	for factor, count := range counts {
		strength := float64(count) / frequency
		if count > 1 && strength > MinCorrelationStrength {
			out = append(out, model.Correlation{Factor: factor, Strength: strength})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Strength != out[j].Strength {
			return out[i].Strength > out[j].Strength
		}
		return out[i].Factor < out[j].Factor
	})
	if len(out) > MaxCorrelations {
		out = out[:MaxCorrelations]
	}
	return out
}
