package document

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// LegacyOffer is the flat offer shape of PSA offers created before the
// structured agreement existed.
type LegacyOffer struct {
	Amount              decimal.NullDecimal `json:"amount"`
	EarnestMoney        decimal.NullDecimal `json:"earnestMoney"`
	FinancingType       string              `json:"financingType"`
	DownPayment         decimal.NullDecimal `json:"downPayment"`
	Contingencies       Contingencies       `json:"contingencies"`
	ProposedClosingDate string              `json:"proposedClosingDate"`
	Message             string              `json:"message"`
}

func DefaultLegacyOffer() LegacyOffer {
	return LegacyOffer{
		FinancingType: "conventional",
		Contingencies: DefaultContingencies(),
	}
}

func DecodeLegacyOffer(raw json.RawMessage) (LegacyOffer, error) {
	offer := DefaultLegacyOffer()
	if isEmptyJSON(raw) {
		return offer, nil
	}
	if err := json.Unmarshal(raw, &offer); err != nil {
		return LegacyOffer{}, fmt.Errorf("decode legacy offer: %w", err)
	}
	return offer, nil
}

func (o LegacyOffer) Validate() error {
	if err := validateMoney("amount", o.Amount); err != nil {
		return err
	}
	if err := validateMoney("earnest money", o.EarnestMoney); err != nil {
		return err
	}
	if err := validateMoney("down payment", o.DownPayment); err != nil {
		return err
	}
	return o.Contingencies.validate()
}

func (o LegacyOffer) clone() LegacyOffer {
	out := o
	out.Contingencies = o.Contingencies.Clone()
	return out
}

// LegacyPatch is the legacy counter form. Nil fields were not submitted and
// keep the original's value.
type LegacyPatch struct {
	Amount              *decimal.Decimal `json:"amount"`
	EarnestMoney        *decimal.Decimal `json:"earnestMoney"`
	FinancingType       *string          `json:"financingType"`
	DownPayment         *decimal.Decimal `json:"downPayment"`
	Contingencies       *Contingencies   `json:"contingencies"`
	ProposedClosingDate *string          `json:"proposedClosingDate"`
	Message             *string          `json:"message"`
}

// Apply returns a copy of base with the submitted fields overridden.
func (p LegacyPatch) Apply(base LegacyOffer) LegacyOffer {
	out := base.clone()
	if p.Amount != nil {
		out.Amount = decimal.NewNullDecimal(*p.Amount)
	}
	if p.EarnestMoney != nil {
		out.EarnestMoney = decimal.NewNullDecimal(*p.EarnestMoney)
	}
	if p.FinancingType != nil {
		out.FinancingType = *p.FinancingType
	}
	if p.DownPayment != nil {
		out.DownPayment = decimal.NewNullDecimal(*p.DownPayment)
	}
	if p.Contingencies != nil {
		out.Contingencies = p.Contingencies.Clone()
	}
	if p.ProposedClosingDate != nil {
		out.ProposedClosingDate = *p.ProposedClosingDate
	}
	if p.Message != nil {
		out.Message = *p.Message
	}
	return out
}
