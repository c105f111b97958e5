// Package report renders a completed investigation as a PDF.
package report

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"

	"github.com/kalambet/legitcheck/internal/analysis"
)

type Format string

const (
	Letter Format = "letter"
	A4     Format = "a4"
)

// Target identifies what was investigated.
type Target struct {
	ID   string
	Name string
	Type string
	URL  string
}

type Options struct {
	IncludeSources bool
	Format         Format
	// Now supplies the generation date.
	Now func() time.Time
	// Brand is the product name in the footer notice.
	Brand string

	noCompress bool
}

func DefaultOptions() Options {
	return Options{
		IncludeSources: true,
		Format:         Letter,
		Now:            time.Now,
		Brand:          "legitcheck",
	}
}

type rgb struct{ r, g, b int }

var (
	headerBlue = rgb{30, 58, 138}
	green      = rgb{34, 197, 94}
	yellow     = rgb{234, 179, 8}
	orange     = rgb{249, 115, 22}
	red        = rgb{220, 38, 38}
	darkRed    = rgb{153, 27, 27}
	gray       = rgb{107, 114, 128}
	black      = rgb{0, 0, 0}
	white      = rgb{255, 255, 255}
)

func recommendationColor(r analysis.Recommendation) rgb {
	switch r {
	case analysis.Trust:
		return green
	case analysis.ProceedWithCaution:
		return yellow
	case analysis.Avoid:
		return orange
	case analysis.HighRiskScam:
		return red
	}
	return gray
}

func severityColor(l analysis.Level) rgb {
	switch l {
	case analysis.Critical:
		return darkRed
	case analysis.High:
		return red
	case analysis.Medium:
		return orange
	case analysis.Low:
		return yellow
	}
	return gray
}

func riskColor(l analysis.Level) rgb {
	switch l {
	case analysis.Critical:
		return darkRed
	case analysis.High:
		return red
	case analysis.Medium:
		return yellow
	case analysis.Low:
		return green
	}
	return gray
}

const topMargin = 20

type doc struct {
	pdf *fpdf.Fpdf
	tr  func(string) string
	y   float64
}

// Render lays out res for target. Output depends only on its arguments.
func Render(target Target, res analysis.Result, opts Options) ([]byte, error) {
	if opts.Format == "" {
		opts.Format = Letter
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Brand == "" {
		opts.Brand = "legitcheck"
	}
	size := "Letter"
	if opts.Format == A4 {
		size = "A4"
	}

	now := opts.Now()
	pdf := fpdf.New("P", "mm", size, "")
	pdf.SetCompression(!opts.noCompress)
	pdf.SetCatalogSort(true)
	pdf.SetCreationDate(now)
	pdf.SetModificationDate(now)
	pdf.SetTitle("Investigation Report: "+target.Name, true)
	pdf.SetCreator(opts.Brand, true)
	pdf.SetAutoPageBreak(false, 0)
	pdf.AliasNbPages("")

	d := &doc{pdf: pdf, tr: pdf.UnicodeTranslatorFromDescriptor("")}
	pdf.SetFooterFunc(func() { d.footer(opts.Brand) })

	pdf.AddPage()
	d.header(target, now)
	d.target(target)
	d.verdict(res)
	d.summary(res.ExecutiveSummary)
	d.keyFindings(res.KeyFindings)
	d.redFlags(res.RedFlags)
	d.indicators(res.LegitimacyIndicators)
	d.risks(res.RiskBreakdown)
	d.recommendations(res.Recommendations)
	if opts.IncludeSources && len(res.EvidenceSources) > 0 {
		d.sources(res.EvidenceSources)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("rendering report: %w", err)
	}
	return buf.Bytes(), nil
}

func (d *doc) font(style string, size float64) { d.pdf.SetFont("Helvetica", style, size) }
func (d *doc) color(c rgb)                       { d.pdf.SetTextColor(c.r, c.g, c.b) }
func (d *doc) fill(c rgb)                        { d.pdf.SetFillColor(c.r, c.g, c.b) }

func (d *doc) text(x float64, s string) { d.pdf.Text(x, d.y, d.tr(s)) }

func (d *doc) breakAfter(limit float64) {
	if d.y > limit {
		d.pdf.AddPage()
		d.y = topMargin
	}
}

func (d *doc) wrap(s string, w float64) []string {
	split := d.pdf.SplitLines([]byte(d.tr(s)), w)
	if len(split) == 0 {
		return []string{""}
	}
	out := make([]string, len(split))
	for i, l := range split {
		out[i] = string(l)
	}
	return out
}

// para writes s wrapped to w starting at the current y and returns the line
// count. y is left unchanged.
func (d *doc) para(x, w float64, s string, lineHeight float64) int {
	lines := d.wrap(s, w)
	for i, l := range lines {
		d.pdf.Text(x, d.y+float64(i)*lineHeight, l)
	}
	return len(lines)
}

func (d *doc) heading(title string, c rgb) {
	d.font("B", 16)
	d.color(c)
	d.text(20, title)
}

func (d *doc) header(t Target, now time.Time) {
	w, _ := d.pdf.GetPageSize()
	d.fill(headerBlue)
	d.pdf.Rect(0, 0, w, 40, "F")

	d.color(white)
	d.font("B", 28)
	d.y = 20
	d.text(20, "INVESTIGATION REPORT")

	d.font("", 12)
	id := t.ID
	if len(id) > 8 {
		id = id[:8]
	}
	d.y = 30
	d.text(20, "Report ID: "+id)
	d.y = 36
	d.text(20, "Generated: "+now.Format("January 2, 2006"))
}

func (d *doc) target(t Target) {
	d.y = 55
	d.heading("TARGET INFORMATION", black)
	d.y += 10

	d.font("", 11)
	d.text(25, "Name: "+t.Name)
	d.y += 7
	if t.Type != "" {
		d.text(25, "Type: "+t.Type)
		d.y += 7
	}
	if t.URL != "" {
		d.text(25, "URL: "+t.URL)
		d.y += 7
	}
	d.y += 5
}

func (d *doc) verdict(res analysis.Result) {
	d.fill(recommendationColor(res.Recommendation))
	d.pdf.RoundedRect(20, d.y, 170, 35, 3, "1234", "F")

	top := d.y
	d.color(white)
	d.font("B", 18)
	d.y = top + 10
	d.text(25, "VERDICT")

	d.font("B", 14)
	d.y = top + 20
	d.text(25, fmt.Sprintf("Legitimacy Score: %d/10", res.LegitimacyScore))
	d.y = top + 28
	d.text(25, "Recommendation: "+strings.ReplaceAll(string(res.Recommendation), "_", " "))

	d.y = top + 45
}

func (d *doc) summary(s string) {
	d.heading("EXECUTIVE SUMMARY", black)
	d.y += 8
	d.font("", 11)
	n := d.para(20, 170, s, 5)
	d.y += float64(n)*5 + 10
	d.breakAfter(250)
}

func (d *doc) keyFindings(findings []string) {
	d.heading("KEY FINDINGS", black)
	d.y += 8
	d.font("", 11)
	for i, f := range findings {
		d.breakAfter(270)
		n := d.para(25, 165, fmt.Sprintf("%d. %s", i+1, f), 5)
		d.y += float64(n)*5 + 3
	}
	d.y += 5
}

func (d *doc) redFlags(flags []analysis.RedFlag) {
	if len(flags) == 0 {
		return
	}
	d.breakAfter(250)
	d.heading("RED FLAGS", red)
	d.y += 8

	for i, f := range flags {
		d.breakAfter(260)

		d.font("B", 12)
		d.color(severityColor(f.Severity))
		d.text(25, fmt.Sprintf("%d. %s [%s]", i+1, f.Flag, strings.ToUpper(string(f.Severity))))
		d.y += 6

		d.font("", 10)
		d.color(black)
		d.text(30, "Evidence:")
		d.y += 5
		n := d.para(30, 155, f.Evidence, 4)
		d.y += float64(n) * 4

		d.y += 2
		d.text(30, "Impact:")
		d.y += 5
		n = d.para(30, 155, f.Impact, 4)
		d.y += float64(n)*4 + 5
	}
	d.y += 5
}

func (d *doc) indicators(inds []analysis.Indicator) {
	if len(inds) == 0 {
		return
	}
	d.breakAfter(250)
	d.heading("LEGITIMACY INDICATORS", green)
	d.y += 8

	for i, ind := range inds {
		d.breakAfter(270)
		d.font("B", 11)
		d.color(black)
		d.text(25, fmt.Sprintf("%d. %s (%s)", i+1, ind.Indicator, ind.Strength))
		d.y += 5

		d.font("", 10)
		n := d.para(30, 160, ind.Evidence, 4)
		d.y += float64(n)*4 + 5
	}
	d.y += 5
}

func (d *doc) risks(rb analysis.RiskBreakdown) {
	d.breakAfter(230)
	d.heading("RISK ASSESSMENT", black)
	d.y += 10

	rows := []struct {
		name string
		cat  analysis.RiskCategory
	}{
		{"Financial Risk", rb.Financial},
		{"Privacy Risk", rb.Privacy},
		{"Reputation Risk", rb.Reputation},
		{"Legal Risk", rb.Legal},
	}
	for _, row := range rows {
		d.breakAfter(270)

		d.fill(riskColor(row.cat.Level))
		d.pdf.RoundedRect(25, d.y-4, 40, 7, 1, "1234", "F")
		d.color(white)
		d.font("B", 10)
		d.text(27, strings.ToUpper(string(row.cat.Level)))

		d.color(black)
		d.font("B", 12)
		d.text(70, row.name)
		d.y += 6

		d.font("", 10)
		n := d.para(25, 160, row.cat.Description, 4)
		d.y += float64(n)*4 + 6
	}
}

func (d *doc) recommendations(recs analysis.Recommendations) {
	d.breakAfter(230)
	d.heading("RECOMMENDATIONS", black)
	d.y += 10

	list := func(title string, items []string) {
		d.font("B", 12)
		d.text(25, title)
		d.y += 6
		d.font("", 10)
		for i, item := range items {
			d.breakAfter(275)
			n := d.para(30, 160, fmt.Sprintf("%d. %s", i+1, item), 4)
			d.y += float64(n)*4 + 3
		}
	}
	list("For User:", recs.ForUser)
	d.y += 5
	list("Next Steps:", recs.NextSteps)
}

func (d *doc) sources(sources []analysis.EvidenceSource) {
	d.pdf.AddPage()
	d.y = topMargin
	d.heading("EVIDENCE SOURCES", black)
	d.y += 10

	for i, s := range sources {
		d.breakAfter(260)

		d.font("B", 11)
		d.color(black)
		d.text(25, fmt.Sprintf("%d. %s", i+1, s.Source))
		d.y += 5

		d.font("", 9)
		d.pdf.SetTextColor(100, 100, 100)
		d.text(30, s.URL)
		d.y += 5

		d.color(black)
		for _, f := range s.KeyFindings {
			n := d.para(30, 155, "• "+f, 4)
			d.y += float64(n)*4 + 2
		}
		d.y += 4
	}
}

func (d *doc) footer(brand string) {
	w, h := d.pdf.GetPageSize()
	d.pdf.SetDrawColor(200, 200, 200)
	d.pdf.Line(20, h-15, 190, h-15)

	d.font("", 8)
	d.pdf.SetTextColor(120, 120, 120)
	d.pdf.Text(20, h-10, d.tr("This report is confidential. Generated by "+brand))

	page := fmt.Sprintf("Page %d of {nb}", d.pdf.PageNo())
	d.pdf.Text(w-30-d.pdf.GetStringWidth(page), h-10, page)
}
