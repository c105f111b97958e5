package analysis

type Recommendation string

const (
	Trust              Recommendation = "TRUST"
	ProceedWithCaution Recommendation = "PROCEED_WITH_CAUTION"
	Avoid              Recommendation = "AVOID"
	HighRiskScam       Recommendation = "HIGH_RISK_SCAM"
)

// Valid reports whether r is one of the four verdicts.
func (r Recommendation) Valid() bool {
	switch r {
	case Trust, ProceedWithCaution, Avoid, HighRiskScam:
		return true
	}
	return false
}

// Level is the shared enum of red-flag severities and risk levels.
type Level string

const (
	Critical Level = "critical"
	High     Level = "high"
	Medium   Level = "medium"
	Low      Level = "low"
)

func (l Level) Valid() bool {
	switch l {
	case Critical, High, Medium, Low:
		return true
	}
	return false
}

type Strength string

const (
	Strong   Strength = "strong"
	Moderate Strength = "moderate"
	Weak     Strength = "weak"
)

func (s Strength) Valid() bool {
	switch s {
	case Strong, Moderate, Weak:
		return true
	}
	return false
}

type TargetType string

const (
	TargetCompany    TargetType = "company"
	TargetApp        TargetType = "app"
	TargetInfluencer TargetType = "influencer"
	TargetWebsite    TargetType = "website"
	TargetOther      TargetType = "other"
)

type RedFlag struct {
	Flag     string `json:"flag"`
	Severity Level  `json:"severity"`
	Evidence string `json:"evidence"`
	Impact   string `json:"impact"`
}

type Indicator struct {
	Indicator string   `json:"indicator"`
	Strength  Strength `json:"strength"`
	Evidence  string   `json:"evidence"`
}

type RiskCategory struct {
	Level       Level  `json:"level"`
	Description string `json:"description"`
}

type RiskBreakdown struct {
	Financial  RiskCategory `json:"financial"`
	Privacy    RiskCategory `json:"privacy"`
	Reputation RiskCategory `json:"reputation"`
	Legal      RiskCategory `json:"legal"`
}

type EvidenceSource struct {
	Source      string   `json:"source"`
	URL         string   `json:"url"`
	KeyFindings []string `json:"key_findings"`
	Reliability string   `json:"reliability,omitempty"`
}

type Recommendations struct {
	ForUser   []string `json:"for_user"`
	NextSteps []string `json:"next_steps"`
}

// Result is the validated analysis written to a completed investigation.
type Result struct {
	LegitimacyScore      int              `json:"legitimacy_score"`
	ConfidenceLevel      float64          `json:"confidence_level"`
	Recommendation       Recommendation   `json:"recommendation"`
	ExecutiveSummary     string           `json:"executive_summary"`
	RedFlags             []RedFlag        `json:"red_flags"`
	LegitimacyIndicators []Indicator      `json:"legitimacy_indicators"`
	RiskBreakdown        RiskBreakdown    `json:"risk_breakdown"`
	BusinessIntelligence map[string]any   `json:"business_intelligence"`
	EvidenceSources      []EvidenceSource `json:"evidence_sources"`
	KeyFindings          []string         `json:"key_findings"`
	Recommendations      Recommendations  `json:"recommendations"`
}

// CriticalFlags counts red flags of critical severity.
func (r Result) CriticalFlags() int {
	n := 0
	for _, f := range r.RedFlags {
		if f.Severity == Critical {
			n++
		}
	}
	return n
}
