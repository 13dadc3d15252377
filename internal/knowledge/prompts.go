package knowledge

import (
	"fmt"
	"sort"
)

const interactionSystemPrompt = `You are a clinical pharmacology assistant. You answer only with valid JSON and never give personal medical advice.`

const generationSystemPrompt = `You are a health tracking assistant that turns a patient's health record digest into structured, encouraging and medically cautious suggestions. Return ONLY valid JSON, no additional text.`

func buildInteractionPrompt(medA, medB string) string {
	return fmt.Sprintf(`List clinically relevant interactions between these two medications.

Medication A: %s
Medication B: %s

Return JSON in this exact shape:
{
  "interactions": ["short description of each interaction, including the risk and mechanism"]
}

Rules:
- Use an empty array if there is no known interaction
- Do not repeat the medication names as the only content of a description
- Return ONLY valid JSON, no additional text`, medA, medB)
}

// generationPrompts maps a generation kind to its prompt template.
// Each template takes the record digest as its single argument.
var generationPrompts = map[string]string{
	"milestones": `Review the health record digest below and identify tracking achievements worth celebrating that are not simple record counts or daily streaks.

Records:
%s

Return JSON:
{
  "milestones": [{"title": "short title", "description": "one sentence", "key": "snake_case_identifier"}]
}

Return an empty array when nothing stands out.`,

	"wellness": `Suggest up to three achievable wellness goals based on the health record digest below.

Records:
%s

Return JSON:
{
  "goals": [{"title": "short title", "description": "one or two sentences", "category": "activity/nutrition/sleep/medication/stress", "target_days": 30, "steps": ["concrete step"]}]
}`,

	"risk": `Assess the main health risks visible in the health record digest below.

Records:
%s

Return JSON:
{
  "risks": [{"condition": "name", "likelihood": "low/moderate/high", "evidence": ["record-based evidence"], "mitigation": "one sentence"}]
}`,

	"recommendations": `Give personalised, non-prescriptive health recommendations based on the health record digest below.

Records:
%s

Return JSON:
{
  "recommendations": [{"title": "short title", "description": "one or two sentences", "priority": "low/medium/high"}]
}`,

	"appointments": `Suggest follow-up appointments the patient may want to schedule based on the health record digest below.

Records:
%s

Return JSON:
{
  "appointments": [{"specialty": "e.g. cardiology", "reason": "one sentence", "timeframe": "e.g. within 3 months"}]
}`,

	"preventive": `Suggest preventive screenings and measures appropriate for the patient described by the health record digest below.

Records:
%s

Return JSON:
{
  "preventive": [{"measure": "name", "reason": "one sentence", "frequency": "e.g. yearly"}]
}`,
}

// Kinds returns the registered generation kinds in sorted order
func Kinds() []string {
	kinds := make([]string, 0, len(generationPrompts))
	for kind := range generationPrompts {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	return kinds
}
