package document

import (
	"fmt"

	"github.com/shopspring/decimal"
)

type ConcessionType string

const (
	ConcessionNone    ConcessionType = "none"
	ConcessionAmount  ConcessionType = "amount"
	ConcessionPercent ConcessionType = "percent"
)

type SellerConcession struct {
	Type  ConcessionType  `json:"type"`
	Value decimal.Decimal `json:"value"`
}

type Contingency struct {
	Included bool `json:"included"`
	Days     *int `json:"days"`
}

type Contingencies struct {
	Inspection Contingency `json:"inspection"`
	Financing  Contingency `json:"financing"`
	Appraisal  Contingency `json:"appraisal"`
	HomeSale   Contingency `json:"homeSale"`
}

type PropertyInfo struct {
	Address          string `json:"address"`
	LegalDescription string `json:"legalDescription"`
	ParcelNumber     string `json:"parcelNumber"`
}

func (c Contingency) clone() Contingency {
	return Contingency{Included: c.Included, Days: cloneInt(c.Days)}
}

func (c Contingencies) Clone() Contingencies {
	return Contingencies{
		Inspection: c.Inspection.clone(),
		Financing:  c.Financing.clone(),
		Appraisal:  c.Appraisal.clone(),
		HomeSale:   c.HomeSale.clone(),
	}
}

func (c Contingencies) validate() error {
	checks := []struct {
		name string
		item Contingency
	}{
		{"inspection", c.Inspection},
		{"financing", c.Financing},
		{"appraisal", c.Appraisal},
		{"homeSale", c.HomeSale},
	}
	for _, check := range checks {
		if err := validateDays(check.name+" contingency days", check.item.Days); err != nil {
			return err
		}
	}
	return nil
}

func (c SellerConcession) validate() error {
	switch c.Type {
	case "", ConcessionNone:
		return nil
	case ConcessionAmount, ConcessionPercent:
		if c.Value.IsNegative() {
			return fmt.Errorf("seller concession must not be negative")
		}
		if c.Type == ConcessionPercent && c.Value.GreaterThan(decimal.NewFromInt(100)) {
			return fmt.Errorf("seller concession percent must not exceed 100")
		}
		return nil
	default:
		return fmt.Errorf("unknown seller concession type %q", c.Type)
	}
}

func validateMoney(name string, value decimal.NullDecimal) error {
	if value.Valid && value.Decimal.IsNegative() {
		return fmt.Errorf("%s must not be negative", name)
	}
	return nil
}

func validateDays(name string, days *int) error {
	if days != nil && *days < 0 {
		return fmt.Errorf("%s must not be negative", name)
	}
	return nil
}

func cloneInt(value *int) *int {
	if value == nil {
		return nil
	}
	out := *value
	return &out
}

func intPtr(value int) *int {
	return &value
}

// Money builds a present currency value.
func Money(value string) decimal.NullDecimal {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(d)
}
