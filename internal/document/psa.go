package document

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// PSA is the structured, binding purchase and sale agreement.
type PSA struct {
	Parties          PSAParties          `json:"parties"`
	Property         PropertyInfo        `json:"property"`
	PurchasePrice    decimal.NullDecimal `json:"purchasePrice"`
	EarnestMoney     PSAEarnestMoney     `json:"earnestMoney"`
	Financing        PSAFinancing        `json:"financing"`
	Contingencies    Contingencies       `json:"contingencies"`
	SellerConcession SellerConcession    `json:"sellerConcession"`
	Closing          PSAClosing          `json:"closing"`
	Inclusions       string              `json:"inclusions"`
	Exclusions       string              `json:"exclusions"`
	AdditionalTerms  string              `json:"additionalTerms"`
	Attachments      []string            `json:"attachments"`
}

type PSAParties struct {
	BuyerName   string `json:"buyerName"`
	SellerName  string `json:"sellerName"`
	BuyerAgent  string `json:"buyerAgent"`
	SellerAgent string `json:"sellerAgent"`
}

type PSAEarnestMoney struct {
	Amount  decimal.NullDecimal `json:"amount"`
	DueDays *int                `json:"dueDays"`
	Holder  string              `json:"holder"`
}

type PSAFinancing struct {
	Type        string              `json:"type"`
	LoanAmount  decimal.NullDecimal `json:"loanAmount"`
	DownPayment decimal.NullDecimal `json:"downPayment"`
}

type PSAClosing struct {
	ProposedClosingDate string `json:"proposedClosingDate"`
	Possession          string `json:"possession"`
	TitleCompany        string `json:"titleCompany"`
}

func DefaultContingencies() Contingencies {
	return Contingencies{
		Inspection: Contingency{Included: true, Days: intPtr(10)},
		Financing:  Contingency{Included: true, Days: intPtr(30)},
		Appraisal:  Contingency{Included: true},
		HomeSale:   Contingency{Included: false},
	}
}

func DefaultPSA() PSA {
	return PSA{
		EarnestMoney:     PSAEarnestMoney{DueDays: intPtr(5)},
		Financing:        PSAFinancing{Type: "conventional"},
		Contingencies:    DefaultContingencies(),
		SellerConcession: SellerConcession{Type: ConcessionNone},
		Closing:          PSAClosing{Possession: "at_closing"},
		Attachments:      []string{},
	}
}

// DecodePSA decodes a submitted PSA form over DefaultPSA.
func DecodePSA(raw json.RawMessage) (PSA, error) {
	psa := DefaultPSA()
	if isEmptyJSON(raw) {
		return psa, nil
	}
	if err := json.Unmarshal(raw, &psa); err != nil {
		return PSA{}, fmt.Errorf("decode psa: %w", err)
	}
	return psa, nil
}

func (p PSA) Validate() error {
	if err := validateMoney("purchase price", p.PurchasePrice); err != nil {
		return err
	}
	if err := validateMoney("earnest money", p.EarnestMoney.Amount); err != nil {
		return err
	}
	if err := validateDays("earnest money due days", p.EarnestMoney.DueDays); err != nil {
		return err
	}
	if err := validateMoney("loan amount", p.Financing.LoanAmount); err != nil {
		return err
	}
	if err := validateMoney("down payment", p.Financing.DownPayment); err != nil {
		return err
	}
	if err := p.SellerConcession.validate(); err != nil {
		return err
	}
	return p.Contingencies.validate()
}

func (p PSA) clone() PSA {
	out := p
	out.EarnestMoney.DueDays = cloneInt(p.EarnestMoney.DueDays)
	out.Contingencies = p.Contingencies.Clone()
	if p.Attachments != nil {
		out.Attachments = append([]string(nil), p.Attachments...)
	}
	return out
}
