package steps

import (
	"time"

	"dealroom/api/internal/store"
)

type DueStatus string

const (
	DueNone    DueStatus = ""
	DueOverdue DueStatus = "overdue"
	DueSoon    DueStatus = "due_soon"
	DueOK      DueStatus = "ok"

	dueSoonWindow = 7 * 24 * time.Hour
)

// StatusOf classifies an open step against now. Completed steps and steps
// without a due date have no status.
func StatusOf(step store.Step, now time.Time) DueStatus {
	if step.Completed || step.DueAt == nil {
		return DueNone
	}
	due := *step.DueAt
	switch {
	case due.Before(now):
		return DueOverdue
	case due.Sub(now) <= dueSoonWindow:
		return DueSoon
	default:
		return DueOK
	}
}

// SetComplete returns a copy of steps with stepID marked completed or
// reopened. found is false when no step has that id.
func SetComplete(steps []store.Step, stepID string, completed bool, now time.Time) ([]store.Step, bool) {
	out := make([]store.Step, len(steps))
	copy(out, steps)
	found := false
	for i := range out {
		if out[i].ID != stepID {
			continue
		}
		found = true
		out[i].Completed = completed
		if completed {
			at := now
			out[i].CompletedAt = &at
		} else {
			out[i].CompletedAt = nil
		}
	}
	return out, found
}

// AssignVendor returns a copy of vendors with role bound to vendorID, or
// with role removed when vendorID is empty. Each role appears at most once.
func AssignVendor(vendors []store.VendorAssignment, role, vendorID string) []store.VendorAssignment {
	out := make([]store.VendorAssignment, 0, len(vendors)+1)
	replaced := false
	for _, item := range vendors {
		if item.Role != role {
			out = append(out, item)
			continue
		}
		if vendorID == "" || replaced {
			continue
		}
		out = append(out, store.VendorAssignment{Role: role, VendorID: vendorID})
		replaced = true
	}
	if vendorID != "" && !replaced {
		out = append(out, store.VendorAssignment{Role: role, VendorID: vendorID})
	}
	return out
}
