package analytics

import (
	"fmt"
	"sort"
	"strings"

	"github.com/emeeran/phrm-diag-sub000/internal/extract"
	"github.com/emeeran/phrm-diag-sub000/pkg/model"
	"go.uber.org/zap"
)

// Risk rule weights
const (
	ChronicConditionWeight = 10
	HighBloodPressureScore = 20
	HighCholesterolScore   = 15
	DiabetesScore          = 25
	HeartIssueScore        = 25
	SmokingScore           = 15
	AgeOver65Score         = 15
	AgeOver50Score         = 10
	FamilyHistoryScore     = 10

	systolicLimit    = 140
	cholesterolLimit = 200
)

var (
	chronicKeywords = []string{
		"chronic", "hypertension", "diabetes", "asthma", "copd", "arthritis",
		"heart disease", "kidney disease", "heart failure", "epilepsy", "hypothyroidism",
	}
	diabetesKeywords      = []string{"diabetes", "diabetic"}
	heartKeywords         = []string{"heart disease", "cardiac", "coronary", "heart attack", "arrhythmia", "heart failure"}
	smokingKeywords       = []string{"smok", "tobacco", "cigarette"}
	familyHistoryKeywords = []string{"family history"}

	// a keyword preceded by one of these does not count
	negations = []string{"non-", "non ", "never ", "no ", "quit ", "ex-", "former "}
)

// RiskOptions carries facts the caller may know better than the records
type RiskOptions struct {
	// Age in years; zero means unknown and the records are searched instead
	Age int
}

// RiskEngine accumulates rule hits into a bounded score
type RiskEngine struct {
	logger *zap.Logger
}

// NewRiskEngine creates a new RiskEngine
func NewRiskEngine(logger *zap.Logger) *RiskEngine {
	return &RiskEngine{logger: logger}
}

// Score applies the risk rules in fixed order. The result only depends on the
// record set, not on the order records are passed in.
func (e *RiskEngine) Score(records []model.HealthRecord, opts RiskOptions) model.RiskScore {
	sorted := canonicalOrder(records)
	texts := make([]string, len(sorted))
	for i, r := range sorted {
		texts[i] = strings.ToLower(r.Title + " " + r.Description)
	}

	score := 0
	factors := []string{}
	recommendations := []string{}
	hit := func(points int, factor, recommendation string) {
		score += points
		factors = append(factors, factor)
		if recommendation != "" {
			recommendations = append(recommendations, recommendation)
		}
	}

	if n := countChronicConditions(sorted); n > 0 {
		hit(n*ChronicConditionWeight, fmt.Sprintf("%d chronic condition(s) on record", n), "")
	}

	if s, d, ok := highestBloodPressure(sorted); ok && s > systolicLimit {
		hit(HighBloodPressureScore,
			fmt.Sprintf("High blood pressure reading (%d/%d)", s, d),
			"Monitor your blood pressure regularly and discuss treatment options with your doctor")
	}

	if c, ok := highestCholesterol(sorted); ok && c > cholesterolLimit {
		hit(HighCholesterolScore,
			fmt.Sprintf("High cholesterol (%.0f mg/dL)", c),
			"Review your lipid panel with your doctor and consider dietary changes to lower cholesterol")
	}

	if anyKeyword(texts, diabetesKeywords) {
		hit(DiabetesScore, "Diabetes",
			"Keep your blood glucose monitored and follow your diabetes care plan")
	}

	if anyKeyword(texts, heartKeywords) {
		hit(HeartIssueScore, "Heart condition",
			"Schedule regular cardiology follow-ups")
	}

	if anyKeyword(texts, smokingKeywords) {
		hit(SmokingScore, "Smoking",
			"Consider a smoking cessation program")
	}

	age := opts.Age
	if age <= 0 {
		age = latestAge(sorted)
	}
	switch {
	case age > 65:
		hit(AgeOver65Score, "Age over 65", "")
	case age > 50:
		hit(AgeOver50Score, "Age over 50", "")
	}

	if anyKeyword(texts, familyHistoryKeywords) {
		hit(FamilyHistoryScore, "Family history of disease",
			"Share your family history with your doctor to plan preventive screenings")
	}

	score = int(clamp(float64(score), 0, 100))
	level := model.RiskLevelFor(score)
	if len(recommendations) == 0 {
		recommendations = append(recommendations, genericRecommendation(level))
	}

	e.logger.Debug("risk score computed",
		zap.Int("score", score),
		zap.String("level", string(level)),
		zap.Int("factors", len(factors)),
	)

	return model.RiskScore{
		Score:           score,
		Level:           level,
		Factors:         factors,
		Recommendations: recommendations,
	}
}

// canonicalOrder sorts by date, then id, so ties do not depend on input order
func canonicalOrder(records []model.HealthRecord) []model.HealthRecord {
	out := append([]model.HealthRecord(nil), records...)
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func genericRecommendation(level model.RiskLevel) string {
	switch level {
	case model.RiskLevelLow:
		return "Maintain regular check-ups and a healthy lifestyle"
	case model.RiskLevelModerate:
		return "Schedule a health assessment with your doctor to review your risk factors"
	default:
		return "Consult your doctor promptly about your elevated health risk"
	}
}

// countChronicConditions counts distinct diagnosis titles naming a chronic condition
func countChronicConditions(records []model.HealthRecord) int {
	seen := make(map[string]bool)
	for _, r := range records {
		if r.Category != model.CategoryDiagnosis {
			continue
		}
		title := strings.ToLower(strings.TrimSpace(r.Title))
		text := title + " " + strings.ToLower(r.Description)
		if title == "" || !containsKeyword(text, chronicKeywords) {
			continue
		}
		seen[title] = true
	}
	return len(seen)
}

func highestBloodPressure(records []model.HealthRecord) (int, int, bool) {
	var bestS, bestD int
	found := false
	for _, r := range records {
		if r.Category != model.CategoryVitalSigns && r.Category != model.CategoryLabResults {
			continue
		}
		s, d, ok := extract.BloodPressure(r.Title + " " + r.Description)
		if ok && (!found || s > bestS) {
			bestS, bestD, found = s, d, true
		}
	}
	return bestS, bestD, found
}

func highestCholesterol(records []model.HealthRecord) (float64, bool) {
	var best float64
	found := false
	for _, r := range records {
		if r.Category != model.CategoryLabResults && r.Category != model.CategoryVitalSigns {
			continue
		}
		v, ok := extract.LabeledValue(r.Title+" "+r.Description, "cholesterol")
		if ok && (!found || v > best) {
			best, found = v, true
		}
	}
	return best, found
}

// latestAge returns the most recent age mentioned in the records, 0 if none
func latestAge(records []model.HealthRecord) int {
	age := 0
	for _, r := range records {
		if a, ok := extract.Age(r.Title + " " + r.Description); ok {
			age = a
		}
	}
	return age
}

func anyKeyword(texts []string, keywords []string) bool {
	for _, t := range texts {
		if containsKeyword(t, keywords) {
			return true
		}
	}
	return false
}

// containsKeyword reports a keyword occurrence in lowercase text that is not negated
func containsKeyword(text string, keywords []string) bool {
	for _, kw := range keywords {
		offset := 0
		for {
			idx := strings.Index(text[offset:], kw)
			if idx < 0 {
				break
			}
			pos := offset + idx
			if !negated(text[:pos]) {
				return true
			}
			offset = pos + len(kw)
		}
	}
	return false
}

func negated(prefix string) bool {
	for _, n := range negations {
		if strings.HasSuffix(prefix, n) {
			return true
		}
	}
	return false
}
