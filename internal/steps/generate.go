// Package steps derives the post-acceptance obligation schedule of a binding
// offer and tracks progress against it.
package steps

import (
	"strings"
	"time"

	"dealroom/api/internal/document"
	"dealroom/api/internal/store"
)

const (
	StepEarnest    = "earnest"
	StepInspection = "inspection"
	StepFinancing  = "financing"
	StepAppraisal  = "appraisal"
	StepHomeSale   = "home_sale"
	StepClosing    = "closing"

	earnestDays           = 5
	defaultInspectionDays = 10
	defaultFinancingDays  = 30
	standaloneAppraisal   = 21
	defaultClosingDays    = 30
)

// Build returns the ordered steps for a document accepted at acceptedAt.
// Calendar dates are read in acceptedAt's location. The result depends only
// on its inputs.
func Build(doc document.Document, acceptedAt time.Time) []store.Step {
	contingencies := doc.Contingencies()
	steps := make([]store.Step, 0, 6)

	steps = append(steps, newStep(StepEarnest, "Earnest money deposit", addDays(acceptedAt, earnestDays)))

	if contingencies.Inspection.Included {
		due := addDays(acceptedAt, daysOr(contingencies.Inspection.Days, defaultInspectionDays))
		steps = append(steps, newStep(StepInspection, "Inspection contingency deadline", due))
	}

	financingDue := addDays(acceptedAt, daysOr(contingencies.Financing.Days, defaultFinancingDays))
	if contingencies.Financing.Included {
		steps = append(steps, newStep(StepFinancing, "Financing contingency deadline", financingDue))
	}

	closingDue := closingDate(doc.ProposedClosingDate(), acceptedAt)

	if contingencies.Appraisal.Included {
		due := addDays(acceptedAt, standaloneAppraisal)
		if contingencies.Financing.Included {
			due = financingDue
		}
		steps = append(steps, newStep(StepAppraisal, "Appraisal contingency deadline", due))
	}

	if contingencies.HomeSale.Included {
		steps = append(steps, newStep(StepHomeSale, "Sale of buyer's home", closingDue))
	}

	steps = append(steps, newStep(StepClosing, "Closing", closingDue))
	return steps
}

func newStep(id, title string, due time.Time) store.Step {
	return store.Step{
		ID:       id,
		Title:    title,
		DueAt:    &due,
		Required: true,
	}
}

func addDays(t time.Time, days int) time.Time {
	return t.AddDate(0, 0, days)
}

func daysOr(days *int, fallback int) int {
	if days == nil {
		return fallback
	}
	return *days
}

// closingDate reads the proposed YYYY-MM-DD closing date as midnight in
// acceptedAt's location, or falls back to thirty days after acceptance.
func closingDate(proposed string, acceptedAt time.Time) time.Time {
	trimmed := strings.TrimSpace(proposed)
	if trimmed != "" {
		if parsed, err := time.ParseInLocation("2006-01-02", trimmed, acceptedAt.Location()); err == nil {
			return parsed
		}
	}
	return addDays(acceptedAt, defaultClosingDays)
}
