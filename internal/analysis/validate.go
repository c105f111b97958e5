package analysis

import (
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
)

const (
	defaultScore      = 5
	defaultConfidence = 0.5
	defaultSummary    = "Analysis completed."
	unknownRisk       = "Unknown"
)

// Report lists the fields Validate had to fill in or correct.
type Report struct {
	Defaulted []string `json:"defaulted"`
	Coerced   []string `json:"coerced"`
}

func (r *Report) defaulted(field string) { r.Defaulted = append(r.Defaulted, field) }
func (r *Report) coerced(field string)   { r.Coerced = append(r.Coerced, field) }

// Clean reports whether the model output needed no repair.
func (r Report) Clean() bool {
	return len(r.Defaulted) == 0 && len(r.Coerced) == 0
}

// Raw is the model's analysis as decoded, before validation. Every field is
// optional. A field of the wrong JSON type decodes as absent and is reported
// as coerced by Validate.
type Raw struct {
	LegitimacyScore      any                 `json:"legitimacy_score"`
	ConfidenceLevel      any                 `json:"confidence_level"`
	Recommendation       *string             `json:"recommendation"`
	ExecutiveSummary     *string             `json:"executive_summary"`
	RedFlags             []RedFlag           `json:"red_flags"`
	LegitimacyIndicators []Indicator         `json:"legitimacy_indicators"`
	RiskBreakdown        *rawRiskBreakdown   `json:"risk_breakdown"`
	BusinessIntelligence map[string]any      `json:"business_intelligence"`
	EvidenceSources      []EvidenceSource    `json:"evidence_sources"`
	KeyFindings          []string            `json:"key_findings"`
	Recommendations      *rawRecommendations `json:"recommendations"`

	mistyped []string
}

type rawRiskBreakdown struct {
	Financial  *RiskCategory `json:"financial"`
	Privacy    *RiskCategory `json:"privacy"`
	Reputation *RiskCategory `json:"reputation"`
	Legal      *RiskCategory `json:"legal"`
}

type rawRecommendations struct {
	ForUser   []string `json:"for_user"`
	NextSteps []string `json:"next_steps"`
}

// UnmarshalJSON decodes each field on its own. Only input that is not a JSON
// object is an error.
func (r *Raw) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	*r = Raw{}
	bad := &r.mistyped

	r.LegitimacyScore = decodeField[any](fields, "legitimacy_score", "legitimacy_score", bad)
	r.ConfidenceLevel = decodeField[any](fields, "confidence_level", "confidence_level", bad)
	r.Recommendation = decodeField[*string](fields, "recommendation", "recommendation", bad)
	r.ExecutiveSummary = decodeField[*string](fields, "executive_summary", "executive_summary", bad)
	r.RedFlags = decodeField[[]RedFlag](fields, "red_flags", "red_flags", bad)
	r.LegitimacyIndicators = decodeField[[]Indicator](fields, "legitimacy_indicators", "legitimacy_indicators", bad)
	r.BusinessIntelligence = decodeField[map[string]any](fields, "business_intelligence", "business_intelligence", bad)
	r.EvidenceSources = decodeField[[]EvidenceSource](fields, "evidence_sources", "evidence_sources", bad)
	r.KeyFindings = decodeField[[]string](fields, "key_findings", "key_findings", bad)

	if risk := decodeField[map[string]json.RawMessage](fields, "risk_breakdown", "risk_breakdown", bad); risk != nil {
		r.RiskBreakdown = &rawRiskBreakdown{
			Financial:  decodeField[*RiskCategory](risk, "financial", "risk_breakdown.financial", bad),
			Privacy:    decodeField[*RiskCategory](risk, "privacy", "risk_breakdown.privacy", bad),
			Reputation: decodeField[*RiskCategory](risk, "reputation", "risk_breakdown.reputation", bad),
			Legal:      decodeField[*RiskCategory](risk, "legal", "risk_breakdown.legal", bad),
		}
	}
	if recs := decodeField[map[string]json.RawMessage](fields, "recommendations", "recommendations", bad); recs != nil {
		r.Recommendations = &rawRecommendations{
			ForUser:   decodeField[[]string](recs, "for_user", "recommendations.for_user", bad),
			NextSteps: decodeField[[]string](recs, "next_steps", "recommendations.next_steps", bad),
		}
	}
	return nil
}

// decodeField decodes fields[key] into a fresh T. A type mismatch yields the
// zero value and appends path to bad.
func decodeField[T any](fields map[string]json.RawMessage, key, path string, bad *[]string) T {
	var v T
	msg, ok := fields[key]
	if !ok {
		return v
	}
	if err := json.Unmarshal(msg, &v); err != nil {
		*bad = append(*bad, path)
		var zero T
		return zero
	}
	return v
}

// Validate fills every missing field with its default and coerces values that
// are out of range or outside their enum. The report names each repair.
func Validate(raw Raw) (Result, Report) {
	var rep Report
	var out Result

	out.LegitimacyScore = validateScore(raw.LegitimacyScore, &rep)
	out.ConfidenceLevel = validateConfidence(raw.ConfidenceLevel, &rep)
	out.Recommendation = validateRecommendation(raw.Recommendation, &rep)

	if raw.ExecutiveSummary == nil || strings.TrimSpace(*raw.ExecutiveSummary) == "" {
		rep.defaulted("executive_summary")
		out.ExecutiveSummary = defaultSummary
	} else {
		out.ExecutiveSummary = *raw.ExecutiveSummary
	}

	if raw.RedFlags == nil {
		rep.defaulted("red_flags")
		out.RedFlags = []RedFlag{}
	} else {
		out.RedFlags = make([]RedFlag, len(raw.RedFlags))
		for i, f := range raw.RedFlags {
			f.Severity = normalizeLevel(f.Severity, fmt.Sprintf("red_flags[%d].severity", i), &rep)
			out.RedFlags[i] = f
		}
	}

	if raw.LegitimacyIndicators == nil {
		rep.defaulted("legitimacy_indicators")
		out.LegitimacyIndicators = []Indicator{}
	} else {
		out.LegitimacyIndicators = make([]Indicator, len(raw.LegitimacyIndicators))
		for i, ind := range raw.LegitimacyIndicators {
			s := Strength(strings.ToLower(strings.TrimSpace(string(ind.Strength))))
			if !s.Valid() {
				rep.coerced(fmt.Sprintf("legitimacy_indicators[%d].strength", i))
				s = Moderate
			}
			ind.Strength = s
			out.LegitimacyIndicators[i] = ind
		}
	}

	rb := raw.RiskBreakdown
	if rb == nil {
		rb = &rawRiskBreakdown{}
	}
	out.RiskBreakdown = RiskBreakdown{
		Financial:  validateRisk(rb.Financial, "risk_breakdown.financial", &rep),
		Privacy:    validateRisk(rb.Privacy, "risk_breakdown.privacy", &rep),
		Reputation: validateRisk(rb.Reputation, "risk_breakdown.reputation", &rep),
		Legal:      validateRisk(rb.Legal, "risk_breakdown.legal", &rep),
	}

	if raw.BusinessIntelligence == nil {
		rep.defaulted("business_intelligence")
		out.BusinessIntelligence = map[string]any{}
	} else {
		out.BusinessIntelligence = raw.BusinessIntelligence
	}

	if raw.EvidenceSources == nil {
		rep.defaulted("evidence_sources")
		out.EvidenceSources = []EvidenceSource{}
	} else {
		out.EvidenceSources = make([]EvidenceSource, len(raw.EvidenceSources))
		for i, s := range raw.EvidenceSources {
			if s.KeyFindings == nil {
				s.KeyFindings = []string{}
			}
			out.EvidenceSources[i] = s
		}
	}

	if raw.KeyFindings == nil {
		rep.defaulted("key_findings")
		out.KeyFindings = []string{}
	} else {
		out.KeyFindings = raw.KeyFindings
	}

	recs := raw.Recommendations
	if recs == nil {
		recs = &rawRecommendations{}
	}
	out.Recommendations.ForUser = recs.ForUser
	if out.Recommendations.ForUser == nil {
		rep.defaulted("recommendations.for_user")
		out.Recommendations.ForUser = []string{}
	}
	out.Recommendations.NextSteps = recs.NextSteps
	if out.Recommendations.NextSteps == nil {
		rep.defaulted("recommendations.next_steps")
		out.Recommendations.NextSteps = []string{}
	}

	for _, field := range raw.mistyped {
		rep.Defaulted = slices.DeleteFunc(rep.Defaulted, func(f string) bool { return f == field })
		rep.coerced(field)
	}
	return out, rep
}

// toFloat accepts JSON numbers and numeric strings.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	}
	return 0, false
}

func validateScore(v any, rep *Report) int {
	if v == nil {
		rep.defaulted("legitimacy_score")
		return defaultScore
	}
	f, ok := toFloat(v)
	if !ok || math.IsNaN(f) {
		rep.coerced("legitimacy_score")
		return defaultScore
	}
	if f == 0 {
		rep.defaulted("legitimacy_score")
		return defaultScore
	}
	score := clampScore(f)
	if float64(score) != f {
		rep.coerced("legitimacy_score")
	}
	return score
}

func clampScore(f float64) int {
	return int(math.Max(1, math.Min(10, math.Round(f))))
}

func validateConfidence(v any, rep *Report) float64 {
	if v == nil {
		rep.defaulted("confidence_level")
		return defaultConfidence
	}
	f, ok := toFloat(v)
	if !ok || math.IsNaN(f) {
		rep.coerced("confidence_level")
		return defaultConfidence
	}
	if f == 0 {
		rep.defaulted("confidence_level")
		return defaultConfidence
	}
	c := math.Max(0, math.Min(1, f))
	if c != f {
		rep.coerced("confidence_level")
	}
	return c
}

func validateRecommendation(v *string, rep *Report) Recommendation {
	if v == nil || strings.TrimSpace(*v) == "" {
		rep.defaulted("recommendation")
		return ProceedWithCaution
	}
	norm := strings.ToUpper(strings.TrimSpace(*v))
	norm = strings.NewReplacer(" ", "_", "-", "_").Replace(norm)
	r := Recommendation(norm)
	if !r.Valid() {
		rep.coerced("recommendation")
		return ProceedWithCaution
	}
	if string(r) != *v {
		rep.coerced("recommendation")
	}
	return r
}

func normalizeLevel(l Level, field string, rep *Report) Level {
	norm := Level(strings.ToLower(strings.TrimSpace(string(l))))
	if !norm.Valid() {
		rep.coerced(field)
		return Medium
	}
	return norm
}

func validateRisk(c *RiskCategory, field string, rep *Report) RiskCategory {
	if c == nil {
		rep.defaulted(field)
		return RiskCategory{Level: Medium, Description: unknownRisk}
	}
	out := *c
	out.Level = normalizeLevel(c.Level, field+".level", rep)
	return out
}
