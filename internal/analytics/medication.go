package analytics

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/emeeran/phrm-diag-sub000/internal/retry"
	"github.com/emeeran/phrm-diag-sub000/pkg/model"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	// NonAdherenceGapDays is the average refill gap above which adherence is flagged
	NonAdherenceGapDays = 45.0
	// DefaultEffectiveness is used when no symptoms were recorded before a medication started
	DefaultEffectiveness = 50.0
)

var sideEffectKeywords = []string{"side effect", "adverse", "reaction", "issue"}

// InteractionLookup is the external interaction source. Implementations may
// fail; the analyzer retries and then continues without their findings.
type InteractionLookup interface {
	LookupInteraction(ctx context.Context, medA, medB string) ([]string, error)
}

// MedicationAnalyzer computes per-medication effectiveness, adherence, side
// effects and pairwise interactions.
type MedicationAnalyzer struct {
	lookup      InteractionLookup
	policy      retry.Policy
	concurrency int
	logger      *zap.Logger
}

// NewMedicationAnalyzer creates a new MedicationAnalyzer. lookup may be nil, in
// which case only local sources are used.
func NewMedicationAnalyzer(lookup InteractionLookup, policy retry.Policy, concurrency int, logger *zap.Logger) *MedicationAnalyzer {
	if concurrency < 1 {
		concurrency = 1
	}
	return &MedicationAnalyzer{
		lookup:      lookup,
		policy:      policy,
		concurrency: concurrency,
		logger:      logger,
	}
}

type medicationGroup struct {
	name    string
	records []model.HealthRecord
}

// Analyze returns one entry per distinct medication name, in order of first use.
// It only fails when ctx is cancelled.
func (a *MedicationAnalyzer) Analyze(ctx context.Context, records []model.HealthRecord) (model.MedicationPayload, error) {
	sorted := sortedByDate(records)
	groups := groupMedications(sorted)
	symptoms := filterCategory(sorted, model.CategorySymptoms)

	meds := make([]model.MedicationEffectiveness, len(groups))
	for i, g := range groups {
		meds[i] = evaluateMedication(g, symptoms)
	}

	external := a.lookupExternal(ctx, groups)
	if err := ctx.Err(); err != nil {
		return model.MedicationPayload{}, fmt.Errorf("medication analysis cancelled: %w", err)
	}

	seen := make([]map[string]bool, len(meds))
	for i := range seen {
		seen[i] = make(map[string]bool)
	}
	add := func(i int, desc string) {
		if !seen[i][desc] {
			seen[i][desc] = true
			meds[i].Interactions = append(meds[i].Interactions, desc)
		}
	}

	pair := 0
	for i := 0; i < len(meds); i++ {
		for j := i + 1; j < len(meds); j++ {
			nameI, nameJ := meds[i].MedicationName, meds[j].MedicationName

			if shared := intersect(meds[i].SideEffects, meds[j].SideEffects); len(shared) > 0 {
				list := strings.Join(shared, ", ")
				add(i, fmt.Sprintf("%s: common side effects (%s)", nameJ, list))
				add(j, fmt.Sprintf("%s: common side effects (%s)", nameI, list))
			}

			for _, k := range knownInteractions(nameI, nameJ) {
				add(i, k.describe(nameJ))
				add(j, k.describe(nameI))
			}

			for _, finding := range external[pair] {
				add(i, nameJ+": "+finding)
				add(j, nameI+": "+finding)
			}
			pair++
		}
	}

	a.logger.Debug("medication analysis computed",
		zap.Int("medications", len(meds)),
		zap.Int("pairs", pair),
	)

	return model.MedicationPayload{Medications: meds}, nil
}

// lookupExternal queries the external source for every pair concurrently.
// Results are indexed by pair so merging stays deterministic.
func (a *MedicationAnalyzer) lookupExternal(ctx context.Context, groups []medicationGroup) [][]string {
	n := len(groups) * (len(groups) - 1) / 2
	results := make([][]string, n)
	if a.lookup == nil || n == 0 {
		return results
	}

	var g errgroup.Group
	g.SetLimit(a.concurrency)

	pair := 0
	for i := 0; i < len(groups); i++ {
		for j := i + 1; j < len(groups); j++ {
			idx, medA, medB := pair, groups[i].name, groups[j].name
			pair++
			g.Go(func() error {
				var findings []string
				err := retry.Do(ctx, a.policy, a.logger, "interaction lookup", func(ctx context.Context) error {
					var err error
					findings, err = a.lookup.LookupInteraction(ctx, medA, medB)
					return err
				})
				if err != nil {
					a.logger.Warn("external interaction lookup failed, continuing without it",
						zap.String("medication_a", medA),
						zap.String("medication_b", medB),
						zap.Error(err),
					)
					return nil
				}
				results[idx] = findings
				return nil
			})
		}
	}
	_ = g.Wait()

	return results
}

// groupMedications groups by case-insensitive name, keeping the first spelling
func groupMedications(sorted []model.HealthRecord) []medicationGroup {
	var groups []medicationGroup
	index := make(map[string]int)
	for _, r := range sorted {
		if r.Category != model.CategoryMedications {
			continue
		}
		name := strings.TrimSpace(r.Title)
		if name == "" {
			continue
		}
		key := strings.ToLower(name)
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, medicationGroup{name: name})
		}
		groups[i].records = append(groups[i].records, r)
	}
	return groups
}

func evaluateMedication(g medicationGroup, symptoms []model.HealthRecord) model.MedicationEffectiveness {
	start := g.records[0].Date
	gap := averageGapDays(g.records)

	return model.MedicationEffectiveness{
		MedicationName:       g.name,
		Effectiveness:        effectiveness(start, symptoms),
		Adherence:            adherence(g.records),
		SideEffects:          sideEffects(start, symptoms),
		Interactions:         []string{},
		StartDate:            start,
		RecordCount:          len(g.records),
		AverageGapDays:       round1(gap),
		PossibleNonAdherence: gap > NonAdherenceGapDays,
	}
}

// effectiveness compares symptom counts before and on/after the start date
func effectiveness(start time.Time, symptoms []model.HealthRecord) float64 {
	var before, after int
	for _, s := range symptoms {
		if s.Date.Before(start) {
			before++
		} else {
			after++
		}
	}
	if before == 0 {
		return DefaultEffectiveness
	}
	return round1(math.Max(0, float64(before-after)/float64(before)) * 100)
}

func intervalsDays(records []model.HealthRecord) []float64 {
	if len(records) < 2 {
		return nil
	}
	out := make([]float64, 0, len(records)-1)
	for i := 1; i < len(records); i++ {
		out = append(out, records[i].Date.Sub(records[i-1].Date).Hours()/24)
	}
	return out
}

func averageGapDays(records []model.HealthRecord) float64 {
	return mean(intervalsDays(records))
}

// adherence is 100 minus the mean absolute deviation of the record intervals
// as a percentage of the mean interval.
func adherence(records []model.HealthRecord) float64 {
	intervals := intervalsDays(records)
	if len(intervals) == 0 {
		return 100
	}
	m := mean(intervals)
	if m == 0 {
		return 100
	}
	var dev float64
	for _, iv := range intervals {
		dev += math.Abs(iv - m)
	}
	dev /= float64(len(intervals))
	return round1(clamp(100-dev/m*100, 0, 100))
}

func sideEffects(start time.Time, symptoms []model.HealthRecord) []string {
	out := []string{}
	seen := make(map[string]bool)
	for _, s := range symptoms {
		if s.Date.Before(start) {
			continue
		}
		desc := strings.ToLower(s.Description)
		for _, kw := range sideEffectKeywords {
			if strings.Contains(desc, kw) {
				if !seen[s.Title] {
					seen[s.Title] = true
					out = append(out, s.Title)
				}
				break
			}
		}
	}
	return out
}

func intersect(a, b []string) []string {
	set := make(map[string]bool, len(b))
	for _, v := range b {
		set[v] = true
	}
	var out []string
	for _, v := range a {
		if set[v] {
			out = append(out, v)
		}
	}
	return out
}
