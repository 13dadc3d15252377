package analytics

import "strings"

// medicationClasses maps a class key to member names. A knowledge base term
// that names a class matches any medication containing one of its members.
var medicationClasses = map[string][]string{
	"nsaids": {
		"ibuprofen", "naproxen", "diclofenac", "celecoxib", "indomethacin",
		"ketorolac", "meloxicam", "aspirin", "advil", "motrin", "aleve",
	},
	"ssris": {
		"fluoxetine", "sertraline", "paroxetine", "citalopram", "escitalopram",
		"fluvoxamine", "prozac", "zoloft", "lexapro", "paxil",
	},
	"maois": {"phenelzine", "tranylcypromine", "isocarboxazid", "selegiline"},
	"statins": {
		"atorvastatin", "simvastatin", "rosuvastatin", "pravastatin",
		"lovastatin", "lipitor", "crestor", "zocor",
	},
	"anticoagulants": {"warfarin", "coumadin", "apixaban", "rivaroxaban", "dabigatran", "heparin", "eliquis", "xarelto"},
	"ace inhibitors": {"lisinopril", "enalapril", "ramipril", "captopril", "benazepril", "quinapril"},
	"nitrates":       {"nitroglycerin", "isosorbide"},
	"macrolides":     {"clarithromycin", "erythromycin"},
}

// knownInteraction is one static knowledge base entry. A and B are medication
// names or class keys; matching is symmetric.
type knownInteraction struct {
	A, B      string
	Risk      string
	Mechanism string
}

var interactionKnowledgeBase = []knownInteraction{
	{"anticoagulants", "nsaids", "increased risk of serious bleeding", "NSAIDs inhibit platelet function and irritate the stomach lining while anticoagulants block clotting"},
	{"warfarin", "aspirin", "increased risk of serious bleeding", "combined antiplatelet and anticoagulant effect"},
	{"anticoagulants", "ssris", "increased risk of bleeding", "SSRIs reduce platelet serotonin uptake"},
	{"ssris", "nsaids", "increased risk of gastrointestinal bleeding", "both impair platelet aggregation"},
	{"ssris", "maois", "risk of serotonin syndrome", "excess serotonergic activity"},
	{"ssris", "tramadol", "risk of serotonin syndrome and seizures", "additive serotonergic effect"},
	{"statins", "macrolides", "increased risk of muscle damage (rhabdomyolysis)", "macrolides inhibit CYP3A4 and raise statin levels"},
	{"statins", "gemfibrozil", "increased risk of muscle damage", "gemfibrozil raises statin blood levels"},
	{"ace inhibitors", "potassium", "risk of high potassium levels (hyperkalemia)", "ACE inhibitors reduce potassium excretion"},
	{"ace inhibitors", "spironolactone", "risk of high potassium levels (hyperkalemia)", "both reduce potassium excretion"},
	{"ace inhibitors", "nsaids", "reduced blood pressure control and kidney strain", "NSAIDs blunt prostaglandin-mediated vasodilation"},
	{"digoxin", "amiodarone", "risk of digoxin toxicity", "amiodarone reduces digoxin clearance"},
	{"clopidogrel", "omeprazole", "reduced antiplatelet effect", "omeprazole inhibits CYP2C19 activation of clopidogrel"},
	{"sildenafil", "nitrates", "risk of severe low blood pressure", "additive vasodilation"},
	{"methotrexate", "nsaids", "risk of methotrexate toxicity", "NSAIDs reduce renal clearance of methotrexate"},
	{"lithium", "nsaids", "risk of lithium toxicity", "NSAIDs reduce renal lithium clearance"},
	{"metformin", "alcohol", "risk of lactic acidosis", "alcohol potentiates metformin's effect on lactate metabolism"},
}

// minReverseMatch is the shortest medication name allowed to match inside a longer term
const minReverseMatch = 4

// matchesTerm reports whether a lowercase medication name matches a knowledge
// base term, by class membership or by substring in either direction.
func matchesTerm(name, term string) bool {
	if members, ok := medicationClasses[term]; ok {
		for _, m := range members {
			if strings.Contains(name, m) || (len(name) >= minReverseMatch && strings.Contains(m, name)) {
				return true
			}
		}
		return false
	}
	if strings.Contains(name, term) {
		return true
	}
	return len(name) >= minReverseMatch && strings.Contains(term, name)
}

// knownInteractions returns knowledge base entries matching the pair in either order
func knownInteractions(medA, medB string) []knownInteraction {
	a, b := strings.ToLower(medA), strings.ToLower(medB)
	var out []knownInteraction
	for _, k := range interactionKnowledgeBase {
		if (matchesTerm(a, k.A) && matchesTerm(b, k.B)) || (matchesTerm(a, k.B) && matchesTerm(b, k.A)) {
			out = append(out, k)
		}
	}
	return out
}

func (k knownInteraction) describe(other string) string {
	if k.Mechanism == "" {
		return other + ": " + k.Risk
	}
	return other + ": " + k.Risk + ". Mechanism: " + k.Mechanism
}
