package notify

import (
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"
)

// ReportReady is the data of the report-complete email.
type ReportReady struct {
	Recipient        string
	RecipientName    string
	TargetName       string
	LegitimacyScore  int
	Recommendation   string
	ReportURL        string
	ExecutiveSummary string
}

func (r ReportReady) RecommendationLabel() string {
	return strings.ReplaceAll(r.Recommendation, "_", " ")
}

var reportText = texttemplate.Must(texttemplate.New("text").Parse(
	`{{if .RecipientName}}Hi {{.RecipientName}},{{else}}Hello,{{end}}

Your investigation of {{.TargetName}} is complete.

Legitimacy Score: {{.LegitimacyScore}}/10
Recommendation: {{.RecommendationLabel}}

{{.ExecutiveSummary}}
{{if .ReportURL}}
Download the full report: {{.ReportURL}}
{{end}}`))

var reportHTML = htmltemplate.Must(htmltemplate.New("html").Parse(
	`<p>{{if .RecipientName}}Hi {{.RecipientName}},{{else}}Hello,{{end}}</p>
<p>Your investigation of <strong>{{.TargetName}}</strong> is complete.</p>
<table>
<tr><td>Legitimacy Score</td><td><strong>{{.LegitimacyScore}}/10</strong></td></tr>
<tr><td>Recommendation</td><td><strong>{{.RecommendationLabel}}</strong></td></tr>
</table>
<p>{{.ExecutiveSummary}}</p>
{{if .ReportURL}}<p><a href="{{.ReportURL}}">Download the full report (PDF)</a></p>{{end}}`))

// BuildReportEmail renders the report-complete message.
func BuildReportEmail(r ReportReady) (Message, error) {
	var text, html strings.Builder
	if err := reportText.Execute(&text, r); err != nil {
		return Message{}, err
	}
	if err := reportHTML.Execute(&html, r); err != nil {
		return Message{}, err
	}
	return Message{
		To:      r.Recipient,
		ToName:  r.RecipientName,
		Subject: "Your investigation report for " + r.TargetName + " is ready",
		Text:    text.String(),
		HTML:    html.String(),
	}, nil
}
