package main

import (
	"fmt"
	"io"
	"os"
	"strings"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorBold   = "\033[1m"
)

func colorize(color, text string) string {
	if noColor {
		return text
	}
	return color + text + colorReset
}

func printSuccess(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorGreen, "✓ "+msg))
}

func printError(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorRed, "✗ "+msg))
}

func printWarning(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorYellow, "⚠ "+msg))
}

func printStatus(label string, format string, args ...any) {
	val := fmt.Sprintf(format, args...)
	l := colorize(colorBold, label+":")
	fmt.Fprintf(os.Stderr, "  %s %s\n", l, val)
}

func printStep(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorCyan, "→ "+msg))
}

// statusColor picks the color of an investigation status label.
func statusColor(status string) string {
	switch status {
	case "completed":
		return colorGreen
	case "failed":
		return colorRed
	case "processing":
		return colorCyan
	default:
		return colorYellow
	}
}

// recommendationLabel renders HIGH_RISK_SCAM as "HIGH RISK SCAM".
func recommendationLabel(rec string) string {
	return strings.ReplaceAll(rec, "_", " ")
}

// investigationRow is the subset of an investigation the CLI prints.
type investigationRow struct {
	ID                string   `json:"id"`
	TargetName        string   `json:"target_name"`
	TargetType        string   `json:"target_type"`
	TargetURL         string   `json:"target_url"`
	InvestigationMode string   `json:"investigation_mode"`
	Status            string   `json:"status"`
	LegitimacyScore   int      `json:"legitimacy_score"`
	ConfidenceLevel   float64  `json:"confidence_level"`
	Recommendation    string   `json:"recommendation"`
	ExecutiveSummary  string   `json:"executive_summary"`
	KeyFindings       []string `json:"key_findings"`
	ReportURL         string   `json:"report_url"`
	Attempts          int      `json:"attempts"`
	LastError         string   `json:"last_error"`
	CreatedAt         string   `json:"created_at"`
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// writeInvestigationLine prints one list row: id, status, score and target.
func writeInvestigationLine(w io.Writer, inv investigationRow) {
	score := "  -  "
	if inv.Status == "completed" {
		score = fmt.Sprintf("%2d/10", inv.LegitimacyScore)
	}
	fmt.Fprintf(w, "%s  %-10s  %s  %s\n",
		colorize(colorCyan, shortID(inv.ID)),
		colorize(statusColor(inv.Status), inv.Status),
		score,
		inv.TargetName,
	)
}

// writeInvestigation prints the detail view of one investigation.
func writeInvestigation(w io.Writer, inv investigationRow) {
	fmt.Fprintf(w, "%s %s\n", colorize(colorBold, "Investigation"), inv.ID)
	fmt.Fprintf(w, "  Target:   %s\n", inv.TargetName)
	if inv.TargetType != "" {
		fmt.Fprintf(w, "  Type:     %s\n", inv.TargetType)
	}
	if inv.TargetURL != "" {
		fmt.Fprintf(w, "  URL:      %s\n", inv.TargetURL)
	}
	fmt.Fprintf(w, "  Mode:     %s\n", inv.InvestigationMode)
	fmt.Fprintf(w, "  Status:   %s\n", colorize(statusColor(inv.Status), inv.Status))
	if inv.Attempts > 0 {
		fmt.Fprintf(w, "  Attempts: %d\n", inv.Attempts)
	}
	if inv.LastError != "" {
		fmt.Fprintf(w, "  Error:    %s\n", colorize(colorRed, inv.LastError))
	}
	if inv.Status != "completed" {
		return
	}

	fmt.Fprintf(w, "\n  %s %d/10 (confidence %.0f%%)\n", colorize(colorBold, "Score:"), inv.LegitimacyScore, inv.ConfidenceLevel*100)
	fmt.Fprintf(w, "  %s %s\n", colorize(colorBold, "Verdict:"), recommendationLabel(inv.Recommendation))
	if inv.ExecutiveSummary != "" {
		fmt.Fprintf(w, "\n  %s\n", inv.ExecutiveSummary)
	}
	if len(inv.KeyFindings) > 0 {
		fmt.Fprintf(w, "\n  %s\n", colorize(colorBold, "Key findings:"))
		for i, f := range inv.KeyFindings {
			fmt.Fprintf(w, "  %d. %s\n", i+1, f)
		}
	}
	if inv.ReportURL != "" {
		fmt.Fprintf(w, "\n  Report: %s\n", inv.ReportURL)
	}
}
