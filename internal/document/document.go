// Package document defines the negotiable offer documents: the non-binding
// letter of intent, the structured purchase and sale agreement, and the flat
// legacy offer shape still carried by older PSA offers.
package document

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

type Kind string

const (
	KindLOI    Kind = "loi"
	KindPSA    Kind = "psa"
	KindLegacy Kind = "legacy"
)

var ErrKindMismatch = errors.New("document kind does not match payload")

// Document is a tagged union. Exactly one payload matches Kind.
type Document struct {
	Kind   Kind         `json:"kind"`
	LOI    *LOI         `json:"loi,omitempty"`
	PSA    *PSA         `json:"psa,omitempty"`
	Legacy *LegacyOffer `json:"legacy,omitempty"`
}

func FromLOI(loi LOI) Document {
	return Document{Kind: KindLOI, LOI: &loi}
}

func FromPSA(psa PSA) Document {
	return Document{Kind: KindPSA, PSA: &psa}
}

func FromLegacy(offer LegacyOffer) Document {
	return Document{Kind: KindLegacy, Legacy: &offer}
}

// UnmarshalJSON decodes the payload on top of the kind's defaults so a
// partially filled form still yields a complete document.
func (d *Document) UnmarshalJSON(data []byte) error {
	var envelope struct {
		Kind   Kind            `json:"kind"`
		LOI    json.RawMessage `json:"loi"`
		PSA    json.RawMessage `json:"psa"`
		Legacy json.RawMessage `json:"legacy"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return fmt.Errorf("decode document envelope: %w", err)
	}

	out := Document{Kind: envelope.Kind}
	switch envelope.Kind {
	case KindLOI:
		loi, err := DecodeLOI(envelope.LOI)
		if err != nil {
			return err
		}
		out.LOI = &loi
	case KindPSA:
		psa, err := DecodePSA(envelope.PSA)
		if err != nil {
			return err
		}
		out.PSA = &psa
	case KindLegacy:
		legacy, err := DecodeLegacyOffer(envelope.Legacy)
		if err != nil {
			return err
		}
		out.Legacy = &legacy
	case "":
		return fmt.Errorf("document kind is required")
	default:
		return fmt.Errorf("unknown document kind %q", envelope.Kind)
	}
	*d = out
	return nil
}

// Validate checks the tag against the payload and the payload's own terms.
func (d Document) Validate() error {
	switch d.Kind {
	case KindLOI:
		if d.LOI == nil || d.PSA != nil || d.Legacy != nil {
			return ErrKindMismatch
		}
		return d.LOI.Validate()
	case KindPSA:
		if d.PSA == nil || d.LOI != nil || d.Legacy != nil {
			return ErrKindMismatch
		}
		return d.PSA.Validate()
	case KindLegacy:
		if d.Legacy == nil || d.LOI != nil || d.PSA != nil {
			return ErrKindMismatch
		}
		return d.Legacy.Validate()
	default:
		return fmt.Errorf("unknown document kind %q", d.Kind)
	}
}

// Contingencies returns the contingency block. LOIs express contingencies as
// conditions of sale, so they are projected onto the same shape.
func (d Document) Contingencies() Contingencies {
	switch d.Kind {
	case KindPSA:
		if d.PSA != nil {
			return d.PSA.Contingencies
		}
	case KindLegacy:
		if d.Legacy != nil {
			return d.Legacy.Contingencies
		}
	case KindLOI:
		if d.LOI != nil {
			return ConvertLOIToPSA(*d.LOI).Contingencies
		}
	}
	return Contingencies{}
}

// ProposedClosingDate returns the YYYY-MM-DD closing date, or "" when unset.
func (d Document) ProposedClosingDate() string {
	switch d.Kind {
	case KindPSA:
		if d.PSA != nil {
			return d.PSA.Closing.ProposedClosingDate
		}
	case KindLegacy:
		if d.Legacy != nil {
			return d.Legacy.ProposedClosingDate
		}
	case KindLOI:
		if d.LOI != nil {
			return d.LOI.Timeline.TargetClosingDate
		}
	}
	return ""
}

func (d Document) PurchasePrice() decimal.NullDecimal {
	switch d.Kind {
	case KindPSA:
		if d.PSA != nil {
			return d.PSA.PurchasePrice
		}
	case KindLegacy:
		if d.Legacy != nil {
			return d.Legacy.Amount
		}
	case KindLOI:
		if d.LOI != nil {
			return d.LOI.Economics.PurchasePrice
		}
	}
	return decimal.NullDecimal{}
}

// Terms is the projection shared by every kind.
type Terms struct {
	PurchasePrice       decimal.NullDecimal
	EarnestMoney        decimal.NullDecimal
	FinancingType       string
	Contingencies       Contingencies
	ProposedClosingDate string
}

func (d Document) Terms() Terms {
	terms := Terms{
		PurchasePrice:       d.PurchasePrice(),
		Contingencies:       d.Contingencies(),
		ProposedClosingDate: d.ProposedClosingDate(),
	}
	switch d.Kind {
	case KindPSA:
		if d.PSA != nil {
			terms.EarnestMoney = d.PSA.EarnestMoney.Amount
			terms.FinancingType = d.PSA.Financing.Type
		}
	case KindLegacy:
		if d.Legacy != nil {
			terms.EarnestMoney = d.Legacy.EarnestMoney
			terms.FinancingType = d.Legacy.FinancingType
		}
	case KindLOI:
		if d.LOI != nil {
			terms.EarnestMoney = d.LOI.Economics.EarnestMoney
			terms.FinancingType = d.LOI.Financing.Type
		}
	}
	return terms
}

// Clone returns a deep copy safe to mutate.
func (d Document) Clone() Document {
	out := Document{Kind: d.Kind}
	if d.LOI != nil {
		loi := d.LOI.clone()
		out.LOI = &loi
	}
	if d.PSA != nil {
		psa := d.PSA.clone()
		out.PSA = &psa
	}
	if d.Legacy != nil {
		legacy := d.Legacy.clone()
		out.Legacy = &legacy
	}
	return out
}
