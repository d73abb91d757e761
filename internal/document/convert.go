package document

import "strings"

// ConvertLOIToPSA drafts the agreement implied by an LOI. Terms the LOI does
// not speak to keep their PSA defaults.
func ConvertLOIToPSA(loi LOI) PSA {
	psa := DefaultPSA()
	psa.Parties = PSAParties{
		BuyerName:   firstNonBlank(loi.Parties.BuyerEntity, loi.Parties.BuyerName),
		SellerName:  loi.Parties.SellerName,
		BuyerAgent:  loi.Parties.BuyerBroker,
		SellerAgent: loi.Parties.SellerBroker,
	}
	psa.Property = loi.Property
	psa.PurchasePrice = loi.Economics.PurchasePrice
	psa.EarnestMoney.Amount = loi.Economics.EarnestMoney
	psa.EarnestMoney.Holder = loi.Economics.EarnestMoneyHolder
	psa.SellerConcession = loi.Economics.SellerConcession
	psa.Financing.Type = loi.Financing.Type
	psa.Financing.LoanAmount = loi.Financing.LoanAmount

	psa.Contingencies.Inspection = Contingency{
		Included: loi.ConditionOfSale.InspectionRequired,
		Days:     cloneInt(loi.Timeline.DueDiligenceDays),
	}
	psa.Contingencies.Financing.Included = !isCash(loi.Financing.Type)
	psa.Contingencies.Appraisal = Contingency{Included: loi.ConditionOfSale.AppraisalRequired}
	psa.Contingencies.HomeSale = Contingency{Included: loi.ConditionOfSale.SaleOfBuyerHome}

	psa.Closing.ProposedClosingDate = loi.Timeline.TargetClosingDate
	psa.AdditionalTerms = loi.Legal.AdditionalTerms
	return psa
}

func isCash(financingType string) bool {
	return strings.EqualFold(strings.TrimSpace(financingType), "cash")
}

func firstNonBlank(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}
