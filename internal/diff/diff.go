// Package diff reports the negotiated terms that changed between two offer
// documents, one row per field in negotiation-significance order.
package diff

import "dealroom/api/internal/document"

type Row struct {
	Label    string `json:"label"`
	Original string `json:"original"`
	Current  string `json:"current"`
}

type field[T any] struct {
	label string
	value func(T) string
}

type crossField struct {
	label string
	loi   func(document.LOI) string
	psa   func(document.PSA) string
}

// Diff compares original against current. Identical documents yield an
// empty, non-nil slice.
func Diff(original, current document.Document) []Row {
	switch {
	case original.Kind == document.KindLOI && current.Kind == document.KindLOI:
		return compare(loiFields, deref(original.LOI), deref(current.LOI))
	case original.Kind == document.KindPSA && current.Kind == document.KindPSA:
		return compare(psaFields, deref(original.PSA), deref(current.PSA))
	case original.Kind == document.KindLegacy && current.Kind == document.KindLegacy:
		return compare(legacyFields, deref(original.Legacy), deref(current.Legacy))
	case original.Kind == document.KindLOI && current.Kind == document.KindPSA:
		return compareCross(deref(original.LOI), deref(current.PSA), false)
	case original.Kind == document.KindPSA && current.Kind == document.KindLOI:
		return compareCross(deref(current.LOI), deref(original.PSA), true)
	default:
		return compare(termFields, original.Terms(), current.Terms())
	}
}

func compare[T any](fields []field[T], original, current T) []Row {
	rows := make([]Row, 0)
	for _, f := range fields {
		before := f.value(original)
		after := f.value(current)
		if before == after {
			continue
		}
		rows = append(rows, Row{Label: f.label, Original: before, Current: after})
	}
	return rows
}

// compareCross diffs an LOI against a PSA. When psaIsOriginal is set the PSA
// side fills the Original column.
func compareCross(loi document.LOI, psa document.PSA, psaIsOriginal bool) []Row {
	rows := make([]Row, 0)
	for _, f := range crossFields {
		left := f.loi(loi)
		right := f.psa(psa)
		if left == right {
			continue
		}
		if psaIsOriginal {
			left, right = right, left
		}
		rows = append(rows, Row{Label: f.label, Original: left, Current: right})
	}
	return rows
}

func deref[T any](value *T) T {
	if value == nil {
		var zero T
		return zero
	}
	return *value
}
