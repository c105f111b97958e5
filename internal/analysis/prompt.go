package analysis

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kalambet/legitcheck/internal/documents"
	"github.com/kalambet/legitcheck/internal/research"
)

// Input is everything known about a target when the analysis is generated.
type Input struct {
	TargetName    string
	TargetType    string
	TargetURL     string
	FormResponses map[string]any
	PastedContent string
	SubmittedURLs []string
	Research      *research.Data
	Documents     []documents.Analysis
}

// BuildPrompt assembles the analysis prompt. Sections without data are left
// out; their order is fixed.
func BuildPrompt(in Input) string {
	var b strings.Builder

	targetType := in.TargetType
	if targetType == "" {
		targetType = "Unknown"
	}
	b.WriteString("You are a senior fraud detection analyst conducting a comprehensive investigation.\n\n")
	b.WriteString("# TARGET INFORMATION\n")
	fmt.Fprintf(&b, "Name: %s\n", in.TargetName)
	fmt.Fprintf(&b, "Type: %s\n", targetType)
	if in.TargetURL != "" {
		fmt.Fprintf(&b, "URL: %s", in.TargetURL)
	}
	b.WriteString("\n\n")

	if len(in.FormResponses) > 0 {
		if pretty, err := json.MarshalIndent(in.FormResponses, "", "  "); err == nil {
			fmt.Fprintf(&b, "\n## FORM RESPONSES\n%s\n", pretty)
		}
	}

	if in.PastedContent != "" {
		fmt.Fprintf(&b, "\n## USER-PROVIDED CONTENT\n%s\n", in.PastedContent)
	}

	if len(in.SubmittedURLs) > 0 {
		fmt.Fprintf(&b, "\n## SUBMITTED URLS\n%s\n", strings.Join(in.SubmittedURLs, "\n"))
	}

	if in.Research != nil {
		b.WriteString("\n## WEB RESEARCH RESULTS\n")
		fmt.Fprintf(&b, "Summary: %s\n\n", in.Research.Summary)
		fmt.Fprintf(&b, "Key Findings:\n%s\n\n", bulletList(in.Research.KeyFindings))
		for _, s := range in.Research.Searches {
			fmt.Fprintf(&b, "### %s\n%s\n\n", s.Query, s.Results)
		}
	}

	if len(in.Documents) > 0 {
		b.WriteString("\n## DOCUMENT ANALYSIS\n")
		for i, doc := range in.Documents {
			fmt.Fprintf(&b, "\n### Document %d (%s)\n", i+1, doc.FileType)
			fmt.Fprintf(&b, "Analysis: %s\n", doc.Analysis)
			if len(doc.KeyPoints) > 0 {
				fmt.Fprintf(&b, "Key Points:\n%s\n", bulletList(doc.KeyPoints))
			}
			if len(doc.RedFlags) > 0 {
				fmt.Fprintf(&b, "Red Flags:\n%s\n", bulletList(doc.RedFlags))
			}
		}
	}

	b.WriteString(taskInstructions)
	return b.String()
}

func bulletList(items []string) string {
	lines := make([]string, len(items))
	for i, s := range items {
		lines[i] = "- " + s
	}
	return strings.Join(lines, "\n")
}

const taskInstructions = `

# YOUR TASK

Generate a comprehensive investigation report in JSON format with the following structure:

{
  "legitimacy_score": 1-10,
  "confidence_level": 0-1,
  "recommendation": "TRUST|PROCEED_WITH_CAUTION|AVOID|HIGH_RISK_SCAM",
  "executive_summary": "3-4 sentence overview of findings",
  "red_flags": [
    {
      "flag": "Description of the red flag",
      "severity": "critical|high|medium|low",
      "evidence": "Specific data supporting this flag",
      "impact": "What this means for the user"
    }
  ],
  "legitimacy_indicators": [
    {
      "indicator": "Positive sign of legitimacy",
      "strength": "strong|moderate|weak",
      "evidence": "Supporting data"
    }
  ],
  "risk_breakdown": {
    "financial": {
      "level": "critical|high|medium|low",
      "description": "Assessment of financial risk"
    },
    "privacy": {
      "level": "critical|high|medium|low",
      "description": "Assessment of privacy/data risk"
    },
    "reputation": {
      "level": "critical|high|medium|low",
      "description": "Assessment of reputational risk"
    },
    "legal": {
      "level": "critical|high|medium|low",
      "description": "Assessment of legal risk"
    }
  },
  "business_intelligence": {
    "business_model": "How they operate",
    "revenue_sources": "How they make money",
    "target_market": "Who they target",
    "competitive_position": "Market position",
    "company_size": "Size estimate",
    "funding_info": "Funding details if known"
  },
  "evidence_sources": [
    {
      "source": "Source name",
      "url": "URL",
      "key_findings": ["Finding 1", "Finding 2"],
      "reliability": "high|medium|low"
    }
  ],
  "key_findings": ["Most important discovery 1", "Discovery 2", "..."],
  "recommendations": {
    "for_user": ["Specific advice 1", "Advice 2", "..."],
    "next_steps": ["Action 1", "Action 2", "..."]
  }
}

## SCORING GUIDELINES

**Legitimacy Score (1-10):**
- 9-10: Highly legitimate, well-established, positive reputation
- 7-8: Generally legitimate with minor concerns
- 5-6: Mixed signals, requires caution
- 3-4: Multiple red flags, likely problematic
- 1-2: High risk scam, avoid completely

**Confidence Level (0-1):**
- 0.9-1.0: Very high confidence based on extensive evidence
- 0.7-0.89: High confidence with solid evidence
- 0.5-0.69: Moderate confidence, some uncertainty
- Below 0.5: Low confidence, insufficient data

**Recommendation:**
- TRUST: Safe to proceed with normal precautions
- PROCEED_WITH_CAUTION: Legitimate but has concerns worth noting
- AVOID: Multiple red flags, do not recommend
- HIGH_RISK_SCAM: Clear scam indicators, warn user strongly

## ANALYSIS REQUIREMENTS

1. **Be Evidence-Based**: Every claim must be supported by specific evidence
2. **Be Balanced**: Include both positive and negative findings
3. **Be Specific**: Avoid vague statements, provide concrete details
4. **Be Actionable**: Recommendations should be clear and practical
5. **Cite Sources**: Reference specific sources for key findings
6. **Identify Patterns**: Look for patterns across multiple data sources
7. **Consider Context**: Factor in industry norms and expectations

Provide ONLY the JSON response, no additional text.
`
