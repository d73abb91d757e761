package diff

import "dealroom/api/internal/document"

var loiFields = []field[document.LOI]{
	{"Purchase price", func(d document.LOI) string { return money(d.Economics.PurchasePrice) }},
	{"Earnest money", func(d document.LOI) string { return money(d.Economics.EarnestMoney) }},
	{"Earnest money holder", func(d document.LOI) string { return text(d.Economics.EarnestMoneyHolder) }},
	{"Seller concession", func(d document.LOI) string { return concession(d.Economics.SellerConcession) }},
	{"Financing type", func(d document.LOI) string { return text(d.Financing.Type) }},
	{"Loan amount", func(d document.LOI) string { return money(d.Financing.LoanAmount) }},
	{"Pre-approved", func(d document.LOI) string { return yesNo(d.Financing.PreApproved) }},
	{"Due diligence period", func(d document.LOI) string { return days(d.Timeline.DueDiligenceDays) }},
	{"Closing period", func(d document.LOI) string { return days(d.Timeline.ClosingDays) }},
	{"Target closing date", func(d document.LOI) string { return date(d.Timeline.TargetClosingDate) }},
	{"As-is sale", func(d document.LOI) string { return yesNo(d.ConditionOfSale.AsIs) }},
	{"Inspection required", func(d document.LOI) string { return yesNo(d.ConditionOfSale.InspectionRequired) }},
	{"Appraisal required", func(d document.LOI) string { return yesNo(d.ConditionOfSale.AppraisalRequired) }},
	{"Subject to sale of buyer's home", func(d document.LOI) string { return yesNo(d.ConditionOfSale.SaleOfBuyerHome) }},
	{"Assignable", func(d document.LOI) string { return yesNo(d.Assignment.Assignable) }},
	{"Assignment restrictions", func(d document.LOI) string { return text(d.Assignment.Restrictions) }},
	{"Exclusivity", func(d document.LOI) string { return yesNo(d.Exclusivity.Exclusive) }},
	{"Exclusivity period", func(d document.LOI) string { return days(d.Exclusivity.Days) }},
	{"Non-binding", func(d document.LOI) string { return yesNo(d.Legal.NonBinding) }},
	{"Confidential", func(d document.LOI) string { return yesNo(d.Legal.Confidential) }},
	{"Governing law", func(d document.LOI) string { return text(d.Legal.GoverningLaw) }},
	{"Additional terms", func(d document.LOI) string { return text(d.Legal.AdditionalTerms) }},
	{"Buyer", func(d document.LOI) string { return text(d.Parties.BuyerName) }},
	{"Buyer entity", func(d document.LOI) string { return text(d.Parties.BuyerEntity) }},
	{"Seller", func(d document.LOI) string { return text(d.Parties.SellerName) }},
	{"Buyer broker", func(d document.LOI) string { return text(d.Parties.BuyerBroker) }},
	{"Seller broker", func(d document.LOI) string { return text(d.Parties.SellerBroker) }},
	{"Property address", func(d document.LOI) string { return text(d.Property.Address) }},
	{"Legal description", func(d document.LOI) string { return text(d.Property.LegalDescription) }},
	{"Parcel number", func(d document.LOI) string { return text(d.Property.ParcelNumber) }},
}

var psaFields = []field[document.PSA]{
	{"Purchase price", func(d document.PSA) string { return money(d.PurchasePrice) }},
	{"Earnest money", func(d document.PSA) string { return money(d.EarnestMoney.Amount) }},
	{"Earnest money due", func(d document.PSA) string { return days(d.EarnestMoney.DueDays) }},
	{"Earnest money holder", func(d document.PSA) string { return text(d.EarnestMoney.Holder) }},
	{"Seller concession", func(d document.PSA) string { return concession(d.SellerConcession) }},
	{"Financing type", func(d document.PSA) string { return text(d.Financing.Type) }},
	{"Loan amount", func(d document.PSA) string { return money(d.Financing.LoanAmount) }},
	{"Down payment", func(d document.PSA) string { return money(d.Financing.DownPayment) }},
	{"Inspection contingency", func(d document.PSA) string { return contingency(d.Contingencies.Inspection) }},
	{"Financing contingency", func(d document.PSA) string { return contingency(d.Contingencies.Financing) }},
	{"Appraisal contingency", func(d document.PSA) string { return contingency(d.Contingencies.Appraisal) }},
	{"Home sale contingency", func(d document.PSA) string { return contingency(d.Contingencies.HomeSale) }},
	{"Closing date", func(d document.PSA) string { return date(d.Closing.ProposedClosingDate) }},
	{"Possession", func(d document.PSA) string { return text(d.Closing.Possession) }},
	{"Title company", func(d document.PSA) string { return text(d.Closing.TitleCompany) }},
	{"Inclusions", func(d document.PSA) string { return text(d.Inclusions) }},
	{"Exclusions", func(d document.PSA) string { return text(d.Exclusions) }},
	{"Additional terms", func(d document.PSA) string { return text(d.AdditionalTerms) }},
	{"Attachments", func(d document.PSA) string { return list(d.Attachments) }},
	{"Buyer", func(d document.PSA) string { return text(d.Parties.BuyerName) }},
	{"Seller", func(d document.PSA) string { return text(d.Parties.SellerName) }},
	{"Buyer agent", func(d document.PSA) string { return text(d.Parties.BuyerAgent) }},
	{"Seller agent", func(d document.PSA) string { return text(d.Parties.SellerAgent) }},
	{"Property address", func(d document.PSA) string { return text(d.Property.Address) }},
	{"Legal description", func(d document.PSA) string { return text(d.Property.LegalDescription) }},
	{"Parcel number", func(d document.PSA) string { return text(d.Property.ParcelNumber) }},
}

var legacyFields = []field[document.LegacyOffer]{
	{"Offer amount", func(d document.LegacyOffer) string { return money(d.Amount) }},
	{"Earnest money", func(d document.LegacyOffer) string { return money(d.EarnestMoney) }},
	{"Financing type", func(d document.LegacyOffer) string { return text(d.FinancingType) }},
	{"Down payment", func(d document.LegacyOffer) string { return money(d.DownPayment) }},
	{"Inspection contingency", func(d document.LegacyOffer) string { return contingency(d.Contingencies.Inspection) }},
	{"Financing contingency", func(d document.LegacyOffer) string { return contingency(d.Contingencies.Financing) }},
	{"Appraisal contingency", func(d document.LegacyOffer) string { return contingency(d.Contingencies.Appraisal) }},
	{"Home sale contingency", func(d document.LegacyOffer) string { return contingency(d.Contingencies.HomeSale) }},
	{"Closing date", func(d document.LegacyOffer) string { return date(d.ProposedClosingDate) }},
	{"Message", func(d document.LegacyOffer) string { return text(d.Message) }},
}

// crossFields pairs LOI terms with the PSA clauses they become.
var crossFields = []crossField{
	{
		label: "Purchase price",
		loi:   func(d document.LOI) string { return money(d.Economics.PurchasePrice) },
		psa:   func(d document.PSA) string { return money(d.PurchasePrice) },
	},
	{
		label: "Earnest money",
		loi:   func(d document.LOI) string { return money(d.Economics.EarnestMoney) },
		psa:   func(d document.PSA) string { return money(d.EarnestMoney.Amount) },
	},
	{
		label: "Earnest money holder",
		loi:   func(d document.LOI) string { return text(d.Economics.EarnestMoneyHolder) },
		psa:   func(d document.PSA) string { return text(d.EarnestMoney.Holder) },
	},
	{
		label: "Seller concession",
		loi:   func(d document.LOI) string { return concession(d.Economics.SellerConcession) },
		psa:   func(d document.PSA) string { return concession(d.SellerConcession) },
	},
	{
		label: "Financing type",
		loi:   func(d document.LOI) string { return text(d.Financing.Type) },
		psa:   func(d document.PSA) string { return text(d.Financing.Type) },
	},
	{
		label: "Loan amount",
		loi:   func(d document.LOI) string { return money(d.Financing.LoanAmount) },
		psa:   func(d document.PSA) string { return money(d.Financing.LoanAmount) },
	},
	{
		label: "Inspection",
		loi: func(d document.LOI) string {
			return contingency(document.Contingency{Included: d.ConditionOfSale.InspectionRequired, Days: d.Timeline.DueDiligenceDays})
		},
		psa: func(d document.PSA) string { return contingency(d.Contingencies.Inspection) },
	},
	{
		label: "Appraisal contingency",
		loi:   func(d document.LOI) string { return yesNo(d.ConditionOfSale.AppraisalRequired) },
		psa:   func(d document.PSA) string { return yesNo(d.Contingencies.Appraisal.Included) },
	},
	{
		label: "Home sale contingency",
		loi:   func(d document.LOI) string { return yesNo(d.ConditionOfSale.SaleOfBuyerHome) },
		psa:   func(d document.PSA) string { return yesNo(d.Contingencies.HomeSale.Included) },
	},
	{
		label: "Closing date",
		loi:   func(d document.LOI) string { return date(d.Timeline.TargetClosingDate) },
		psa:   func(d document.PSA) string { return date(d.Closing.ProposedClosingDate) },
	},
	{
		label: "Buyer",
		loi:   func(d document.LOI) string { return text(firstText(d.Parties.BuyerEntity, d.Parties.BuyerName)) },
		psa:   func(d document.PSA) string { return text(d.Parties.BuyerName) },
	},
	{
		label: "Seller",
		loi:   func(d document.LOI) string { return text(d.Parties.SellerName) },
		psa:   func(d document.PSA) string { return text(d.Parties.SellerName) },
	},
	{
		label: "Property address",
		loi:   func(d document.LOI) string { return text(d.Property.Address) },
		psa:   func(d document.PSA) string { return text(d.Property.Address) },
	},
	{
		label: "Additional terms",
		loi:   func(d document.LOI) string { return text(d.Legal.AdditionalTerms) },
		psa:   func(d document.PSA) string { return text(d.AdditionalTerms) },
	},
}

var termFields = []field[document.Terms]{
	{"Purchase price", func(t document.Terms) string { return money(t.PurchasePrice) }},
	{"Earnest money", func(t document.Terms) string { return money(t.EarnestMoney) }},
	{"Financing type", func(t document.Terms) string { return text(t.FinancingType) }},
	{"Inspection contingency", func(t document.Terms) string { return contingency(t.Contingencies.Inspection) }},
	{"Financing contingency", func(t document.Terms) string { return contingency(t.Contingencies.Financing) }},
	{"Appraisal contingency", func(t document.Terms) string { return contingency(t.Contingencies.Appraisal) }},
	{"Home sale contingency", func(t document.Terms) string { return contingency(t.Contingencies.HomeSale) }},
	{"Closing date", func(t document.Terms) string { return date(t.ProposedClosingDate) }},
}

func firstText(values ...string) string {
	for _, value := range values {
		if text(value) != Placeholder {
			return value
		}
	}
	return ""
}
