// Package observability provides formatted output utilities for verbose CLI mode.
package observability

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/apply-app/apply-api/internal/pipeline"
	"github.com/apply-app/apply-api/internal/tasks"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 5
	// barWidth is the number of cells in a progress bar
	barWidth = 20
)

// Printer handles formatted output for verbose mode
type Printer struct {
	out io.Writer
	now func() time.Time
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out, now: time.Now}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	lines := strings.Split(content, "\n")
	for _, line := range lines {
		// Truncate long lines on rune boundaries; fmt pads by runes too
		if runes := []rune(line); len(runes) > boxWidth-4 {
			line = string(runes[:boxWidth-7]) + "..."
		}
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, line)
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// PrintProgress prints one progress line with a bar, e.g.
// "[██████░░░░░░░░░░░░░░]  30% Analyse avec IA...".
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) PrintProgress(pr pipeline.Progress) {
	pct := min(max(pr.Progress, 0), 100)
	filled := pct * barWidth / 100
	bar := strings.Repeat("█", filled) + strings.Repeat("░", barWidth-filled)
	fmt.Fprintf(p.out, "[%s] %3d%% %s\n", bar, pct, pr.Step)
}

// PrintResult outputs the outcome of an analysis and, for a new offer, its
// extracted fields.
func (p *Printer) PrintResult(result *pipeline.Result) {
	if result == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Outcome:  %s\n", result.Status))
	sb.WriteString(fmt.Sprintf("Offer ID: %s\n", result.JobOfferID))
	if result.Message != "" {
		sb.WriteString(fmt.Sprintf("Message:  %s\n", result.Message))
	}

	if o := result.JobOffer; o != nil {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("Title:    %s\n", o.Title))
		sb.WriteString(fmt.Sprintf("Company:  %s\n", o.CompanyName))
		sb.WriteString(fmt.Sprintf("Category: %s\n", o.Category))
		writeOptional(&sb, "Location", o.Location)
		writeOptional(&sb, "Contract", o.ContractType)
		writeOptional(&sb, "Remote", o.RemotePolicy)
		writeOptional(&sb, "Duration", o.Duration)
		writeOptional(&sb, "Start", o.StartDate)
		writeOptional(&sb, "Education", o.EducationLevel)
		if s := formatSalary(o.SalaryMin, o.SalaryMax); s != "" {
			sb.WriteString(fmt.Sprintf("Salary:   %s\n", s))
		}
		if o.ExperienceYears != nil {
			sb.WriteString(fmt.Sprintf("Experience: %d+ years\n", *o.ExperienceYears))
		}

		if len(o.RequiredSkills) > 0 {
			sb.WriteString("\nRequired Skills:\n")
			count := min(len(o.RequiredSkills), maxItemsToShow)
			for i := 0; i < count; i++ {
				sb.WriteString(fmt.Sprintf("  • %s\n", o.RequiredSkills[i]))
			}
			if len(o.RequiredSkills) > maxItemsToShow {
				sb.WriteString(fmt.Sprintf("  ... and %d more\n", len(o.RequiredSkills)-maxItemsToShow))
			}
		}
	}

	title := "JOB OFFER CREATED"
	if result.Status == pipeline.ResultExisting {
		title = "JOB OFFER ALREADY KNOWN"
	}
	p.printBox(title, strings.TrimSuffix(sb.String(), "\n"))
}

// PrintRun outputs the stored state of a run.
func (p *Printer) PrintRun(run *tasks.Run) {
	if run == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Run:      %s\n", run.ID))
	sb.WriteString(fmt.Sprintf("Task:     %s\n", run.Task))
	sb.WriteString(fmt.Sprintf("Status:   %s\n", run.Status))
	sb.WriteString(fmt.Sprintf("Attempt:  %d/%d\n", run.Attempt, run.MaxAttempts))
	sb.WriteString(fmt.Sprintf("Created:  %s\n", humanize.RelTime(run.CreatedAt, p.now(), "ago", "from now")))
	if run.StartedAt != nil && run.FinishedAt != nil {
		sb.WriteString(fmt.Sprintf("Duration: %s\n", run.FinishedAt.Sub(*run.StartedAt).Round(time.Millisecond)))
	}
	if len(run.Tags) > 0 {
		sb.WriteString(fmt.Sprintf("Tags:     %s\n", strings.Join(run.Tags, ", ")))
	}
	if run.Error != "" {
		sb.WriteString(fmt.Sprintf("\nError: %s\n", run.Error))
	}

	p.printBox("ANALYSIS RUN", strings.TrimSuffix(sb.String(), "\n"))
}

func writeOptional(sb *strings.Builder, label string, v *string) {
	if v == nil || *v == "" {
		return
	}
	sb.WriteString(fmt.Sprintf("%-9s %s\n", label+":", *v))
}

// formatSalary renders a salary range with thousands separators.
func formatSalary(lo, hi *int) string {
	switch {
	case lo != nil && hi != nil:
		return fmt.Sprintf("%s - %s", humanize.Comma(int64(*lo)), humanize.Comma(int64(*hi)))
	case lo != nil:
		return fmt.Sprintf("from %s", humanize.Comma(int64(*lo)))
	case hi != nil:
		return fmt.Sprintf("up to %s", humanize.Comma(int64(*hi)))
	}
	return ""
}
