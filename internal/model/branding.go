package model

// Branding holds the pharmacy identity shown in the header and printed
// on receipts. Persisted in the bookkeeping store.
type Branding struct {
	PharmacyName  string `json:"pharmacy_name"`
	Tagline       string `json:"tagline,omitempty"`
	LogoPath      string `json:"logo_path,omitempty"`
	ReceiptFooter string `json:"receipt_footer,omitempty"`
}

// DefaultBranding returns the branding used before any customization.
func DefaultBranding() Branding {
	return Branding{
		PharmacyName:  "PharmOS",
		ReceiptFooter: "Thank you for your purchase",
	}
}
