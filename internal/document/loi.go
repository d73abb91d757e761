package document

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// LOI is a non-binding letter of intent.
type LOI struct {
	Parties         LOIParties         `json:"parties"`
	Property        PropertyInfo       `json:"property"`
	Economics       LOIEconomics       `json:"economics"`
	Timeline        LOITimeline        `json:"timeline"`
	Financing       LOIFinancing       `json:"financing"`
	ConditionOfSale LOIConditionOfSale `json:"conditionOfSale"`
	Assignment      LOIAssignment      `json:"assignment"`
	Exclusivity     LOIExclusivity     `json:"exclusivity"`
	Legal           LOILegal           `json:"legal"`
}

type LOIParties struct {
	BuyerName    string `json:"buyerName"`
	BuyerEntity  string `json:"buyerEntity"`
	SellerName   string `json:"sellerName"`
	BuyerBroker  string `json:"buyerBroker"`
	SellerBroker string `json:"sellerBroker"`
}

type LOIEconomics struct {
	PurchasePrice      decimal.NullDecimal `json:"purchasePrice"`
	EarnestMoney       decimal.NullDecimal `json:"earnestMoney"`
	EarnestMoneyHolder string              `json:"earnestMoneyHolder"`
	SellerConcession   SellerConcession    `json:"sellerConcession"`
}

type LOITimeline struct {
	DueDiligenceDays  *int   `json:"dueDiligenceDays"`
	ClosingDays       *int   `json:"closingDays"`
	TargetClosingDate string `json:"targetClosingDate"`
}

type LOIFinancing struct {
	Type        string              `json:"type"`
	LoanAmount  decimal.NullDecimal `json:"loanAmount"`
	PreApproved bool                `json:"preApproved"`
}

type LOIConditionOfSale struct {
	AsIs               bool `json:"asIs"`
	InspectionRequired bool `json:"inspectionRequired"`
	AppraisalRequired  bool `json:"appraisalRequired"`
	SaleOfBuyerHome    bool `json:"saleOfBuyerHome"`
}

type LOIAssignment struct {
	Assignable   bool   `json:"assignable"`
	Restrictions string `json:"restrictions"`
}

type LOIExclusivity struct {
	Exclusive bool `json:"exclusive"`
	Days      *int `json:"days"`
}

type LOILegal struct {
	NonBinding      bool   `json:"nonBinding"`
	Confidential    bool   `json:"confidential"`
	GoverningLaw    string `json:"governingLaw"`
	AdditionalTerms string `json:"additionalTerms"`
}

func DefaultLOI() LOI {
	return LOI{
		Economics: LOIEconomics{
			SellerConcession: SellerConcession{Type: ConcessionNone},
		},
		Timeline: LOITimeline{
			DueDiligenceDays: intPtr(30),
			ClosingDays:      intPtr(30),
		},
		Financing: LOIFinancing{Type: "conventional"},
		ConditionOfSale: LOIConditionOfSale{
			InspectionRequired: true,
			AppraisalRequired:  true,
		},
		Exclusivity: LOIExclusivity{Days: intPtr(30)},
		Legal: LOILegal{
			NonBinding:   true,
			Confidential: true,
		},
	}
}

// DecodeLOI decodes a submitted LOI form over DefaultLOI. Empty input yields
// the defaults.
func DecodeLOI(raw json.RawMessage) (LOI, error) {
	loi := DefaultLOI()
	if isEmptyJSON(raw) {
		return loi, nil
	}
	if err := json.Unmarshal(raw, &loi); err != nil {
		return LOI{}, fmt.Errorf("decode loi: %w", err)
	}
	return loi, nil
}

func (l LOI) Validate() error {
	if err := validateMoney("purchase price", l.Economics.PurchasePrice); err != nil {
		return err
	}
	if err := validateMoney("earnest money", l.Economics.EarnestMoney); err != nil {
		return err
	}
	if err := validateMoney("loan amount", l.Financing.LoanAmount); err != nil {
		return err
	}
	if err := l.Economics.SellerConcession.validate(); err != nil {
		return err
	}
	if err := validateDays("due diligence days", l.Timeline.DueDiligenceDays); err != nil {
		return err
	}
	if err := validateDays("closing days", l.Timeline.ClosingDays); err != nil {
		return err
	}
	return validateDays("exclusivity days", l.Exclusivity.Days)
}

func (l LOI) clone() LOI {
	out := l
	out.Timeline.DueDiligenceDays = cloneInt(l.Timeline.DueDiligenceDays)
	out.Timeline.ClosingDays = cloneInt(l.Timeline.ClosingDays)
	out.Exclusivity.Days = cloneInt(l.Exclusivity.Days)
	return out
}

func isEmptyJSON(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
