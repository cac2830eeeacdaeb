package catalog

// Tier names referenced across services and tests.
const (
	TierStandard = "Standard"
	TierExpress  = "Express"
	TierPremium  = "Premium"
)

// Default returns the deploy-time catalog. Prices are INR minor units (paise).
func Default() *Catalog {
	return New("INR",
		[]DocumentType{
			{ID: "cert-income", Name: "Income Certificate", Category: "certification", BasePrice: 10000, RequiresUDIN: true, ProcessingDays: 3},
			{ID: "cert-networth", Name: "Net Worth Certificate", Category: "certification", BasePrice: 25000, RequiresUDIN: true, ProcessingDays: 4},
			{ID: "cert-turnover", Name: "Turnover Certificate", Category: "certification", BasePrice: 20000, RequiresUDIN: true, ProcessingDays: 3},
			{ID: "itr-filing", Name: "ITR Filing", Category: "taxation", BasePrice: 50000, RequiresUDIN: false, ProcessingDays: 5},
			{ID: "gst-return", Name: "GST Return", Category: "taxation", BasePrice: 30000, RequiresUDIN: false, ProcessingDays: 2},
			{ID: "audit-report", Name: "Audit Report", Category: "attestation", BasePrice: 150000, RequiresUDIN: true, ProcessingDays: 7},
			{ID: "balance-sheet", Name: "Balance Sheet Attestation", Category: "attestation", BasePrice: 75000, RequiresUDIN: true, ProcessingDays: 5},
			{ID: "misc-notarized", Name: "Notarized Copy", Category: "general", BasePrice: 5000, RequiresUDIN: false, ProcessingDays: 1},
		},
		[]Tier{
			{Name: TierStandard, MultiplierPercent: 100},
			{Name: TierExpress, MultiplierPercent: 150},
			{Name: TierPremium, MultiplierPercent: 200},
		},
	)
}
