package report

import (
	"bytes"
	"fmt"
	"testing"
	"time"

	"github.com/ledongthuc/pdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kalambet/legitcheck/internal/analysis"
)

var fixedNow = func() time.Time { return time.Date(2026, 3, 9, 12, 0, 0, 0, time.UTC) }

func sampleTarget() Target {
	return Target{
		ID:   "0b6f4c1e-7d1a-4c1e-9f3a-5b2d7e9c1a00",
		Name: "Acme Corp",
		Type: "company",
		URL:  "https://acme.test",
	}
}

func sampleResult() analysis.Result {
	return analysis.Result{
		LegitimacyScore:  7,
		ConfidenceLevel:  0.8,
		Recommendation:   analysis.ProceedWithCaution,
		ExecutiveSummary: "Acme Corp appears to be a registered business with a mixed review history.",
		RedFlags: []analysis.RedFlag{
			{Flag: "Unverified address", Severity: analysis.High, Evidence: "No registry match", Impact: "Harder to seek recourse"},
		},
		LegitimacyIndicators: []analysis.Indicator{
			{Indicator: "Long domain history", Strength: analysis.Strong, Evidence: "Registered in 2009"},
		},
		RiskBreakdown: analysis.RiskBreakdown{
			Financial:  analysis.RiskCategory{Level: analysis.Medium, Description: "Card payments only"},
			Privacy:    analysis.RiskCategory{Level: analysis.Low, Description: "Standard policy"},
			Reputation: analysis.RiskCategory{Level: analysis.Medium, Description: "Mixed reviews"},
			Legal:      analysis.RiskCategory{Level: analysis.Low, Description: "No known actions"},
		},
		BusinessIntelligence: map[string]any{},
		EvidenceSources: []analysis.EvidenceSource{
			{Source: "Trustpilot", URL: "https://trustpilot.test/acme", KeyFindings: []string{"3.9 stars"}},
		},
		KeyFindings: []string{"Registered since 2009", "Mixed reviews"},
		Recommendations: analysis.Recommendations{
			ForUser:   []string{"Pay by card"},
			NextSteps: []string{"Check the registry"},
		},
	}
}

func testOptions() Options {
	opts := DefaultOptions()
	opts.Now = fixedNow
	opts.noCompress = true
	return opts
}

func pageCount(t *testing.T, data []byte) int {
	t.Helper()
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	return r.NumPage()
}

func TestRenderDeterministic(t *testing.T) {
	opts := DefaultOptions()
	opts.Now = fixedNow

	a, err := Render(sampleTarget(), sampleResult(), opts)
	require.NoError(t, err)
	b, err := Render(sampleTarget(), sampleResult(), opts)
	require.NoError(t, err)

	assert.True(t, bytes.HasPrefix(a, []byte("%PDF-")))
	assert.Equal(t, a, b)
}

func TestRenderContent(t *testing.T) {
	data, err := Render(sampleTarget(), sampleResult(), testOptions())
	require.NoError(t, err)

	for _, want := range []string{
		"(INVESTIGATION REPORT)",
		"(Report ID: 0b6f4c1e)",
		"(Generated: March 9, 2026)",
		"(Name: Acme Corp)",
		"(Legitimacy Score: 7/10)",
		"(Recommendation: PROCEED WITH CAUTION)",
		"(1. Unverified address [HIGH])",
		"(1. Long domain history \\(strong\\))",
		"(EVIDENCE SOURCES)",
		"(This report is confidential. Generated by legitcheck)",
	} {
		assert.Contains(t, string(data), want)
	}

	n := pageCount(t, data)
	assert.Contains(t, string(data), fmt.Sprintf("(Page 1 of %d)", n))
	assert.Contains(t, string(data), fmt.Sprintf("(Page %d of %d)", n, n))
}

func TestRenderSourcesOnOwnPage(t *testing.T) {
	with, err := Render(sampleTarget(), sampleResult(), testOptions())
	require.NoError(t, err)

	opts := testOptions()
	opts.IncludeSources = false
	without, err := Render(sampleTarget(), sampleResult(), opts)
	require.NoError(t, err)

	assert.Equal(t, pageCount(t, without)+1, pageCount(t, with))
	assert.NotContains(t, string(without), "EVIDENCE SOURCES")
}

func TestRenderLongReportPaginates(t *testing.T) {
	res := sampleResult()
	for i := 0; i < 40; i++ {
		res.RedFlags = append(res.RedFlags, analysis.RedFlag{
			Flag: fmt.Sprintf("Flag %d", i), Severity: analysis.Critical,
			Evidence: "Evidence text that is long enough to wrap across more than one line in the rendered report body.",
			Impact:   "Impact text",
		})
	}
	short, err := Render(sampleTarget(), sampleResult(), testOptions())
	require.NoError(t, err)
	long, err := Render(sampleTarget(), res, testOptions())
	require.NoError(t, err)

	assert.Greater(t, pageCount(t, long), pageCount(t, short)+3)
}

func TestRenderOptionalTargetFields(t *testing.T) {
	target := Target{ID: "abc", Name: "Solo"}
	data, err := Render(target, sampleResult(), testOptions())
	require.NoError(t, err)

	assert.Contains(t, string(data), "(Report ID: abc)")
	assert.NotContains(t, string(data), "(Type: ")
	assert.NotContains(t, string(data), "(URL: ")
}

func TestRenderA4(t *testing.T) {
	opts := testOptions()
	opts.Format = A4
	data, err := Render(sampleTarget(), sampleResult(), opts)
	require.NoError(t, err)
	assert.Contains(t, string(data), "595.28 841.89")
}

func TestColors(t *testing.T) {
	assert.Equal(t, rgb{34, 197, 94}, recommendationColor(analysis.Trust))
	assert.Equal(t, rgb{234, 179, 8}, recommendationColor(analysis.ProceedWithCaution))
	assert.Equal(t, rgb{249, 115, 22}, recommendationColor(analysis.Avoid))
	assert.Equal(t, rgb{220, 38, 38}, recommendationColor(analysis.HighRiskScam))
	assert.Equal(t, gray, recommendationColor("MAYBE"))

	assert.Equal(t, rgb{153, 27, 27}, severityColor(analysis.Critical))
	assert.Equal(t, orange, severityColor(analysis.Medium))
	assert.Equal(t, yellow, severityColor(analysis.Low))

	assert.Equal(t, yellow, riskColor(analysis.Medium))
	assert.Equal(t, green, riskColor(analysis.Low))
}
