package bundle

import (
	"encoding/json"
	"strings"
)

// Bundle is the top-level identification result. A bundle returned by the
// pipeline has passed full validation and attribute normalization.
type Bundle struct {
	Products []Product `json:"products" validate:"required,min=1,dive"`
}

// Product is one identified physical product.
type Product struct {
	Identification Identification `json:"identification" validate:"required"`
	Details        Details        `json:"details" validate:"required"`
	Ops            Ops            `json:"ops" validate:"required"`
	Notes          Notes          `json:"notes"`
}

// Identification captures how the product was recognized and how confident
// the run is.
type Identification struct {
	Method     string   `json:"method" validate:"required,oneof=barcode visual hybrid manual"`
	Barcodes   []string `json:"barcodes"`
	Name       string   `json:"name" validate:"required"`
	Brand      string   `json:"brand"`
	Category   string   `json:"category"`
	Confidence float64  `json:"confidence" validate:"gte=0,lte=1"`
}

// Details holds the descriptive payload of a product.
type Details struct {
	ShortDescription string      `json:"short_description" validate:"required"`
	KeyFeatures      []string    `json:"key_features" validate:"required,min=3,dive,required"`
	Attributes       Attributes  `json:"attributes"`
	Identifiers      Identifiers `json:"identifiers"`
	Images           []Image     `json:"images" validate:"dive"`
	Pricing          Pricing     `json:"pricing"`
}

// Identifiers collects the standard product codes; all optional.
type Identifiers struct {
	EAN  string `json:"ean"`
	GTIN string `json:"gtin"`
	UPC  string `json:"upc"`
	MPN  string `json:"mpn"`
	SKU  string `json:"sku"`
}

// Image is one product image reference.
type Image struct {
	Source      string `json:"source" validate:"required,oneof=upload web generated"`
	Variant     string `json:"variant" validate:"required,oneof=original marketing detail packaging"`
	URLOrBase64 string `json:"url_or_base64" validate:"required"`
	Notes       string `json:"notes"`
}

// Pricing carries the lowest sourced price and the run's confidence in it.
type Pricing struct {
	LowestPrice     *LowestPrice `json:"lowest_price" validate:"omitempty"`
	PriceConfidence float64      `json:"price_confidence" validate:"gte=0,lte=1"`
}

// LowestPrice is the best offer found across price sources.
type LowestPrice struct {
	Amount         float64       `json:"amount" validate:"gte=0"`
	Currency       string        `json:"currency" validate:"required,len=3"`
	Sources        []PriceSource `json:"sources" validate:"required,min=1,dive"`
	LastCheckedISO string        `json:"last_checked_iso" validate:"required"`
}

// PriceSource is one offer backing a lowest price.
type PriceSource struct {
	Name      string  `json:"name" validate:"required"`
	URL       string  `json:"url"`
	Price     float64 `json:"price" validate:"gte=0"`
	Shipping  float64 `json:"shipping"`
	CheckedAt string  `json:"checked_at"`
}

// Ops tracks downstream persistence state for the product record.
type Ops struct {
	SyncStatus    string `json:"sync_status" validate:"required,oneof=new saved synced sync_failed"`
	LastSavedISO  string `json:"last_saved_iso"`
	LastSyncedISO string `json:"last_synced_iso"`
	Revision      int    `json:"revision" validate:"gte=0"`
}

// Notes carries the model's uncertainty flags and warnings.
type Notes struct {
	Unsure   []string `json:"unsure"`
	Warnings []string `json:"warnings"`
}

// Normalize converts every product's attribute list into its mapping form.
// Safe to call repeatedly.
func (b *Bundle) Normalize() {
	for i := range b.Products {
		b.Products[i].Details.Attributes.normalize()
	}
}

// MarshalJSONString renders the bundle for storage on the job row.
func (b *Bundle) MarshalJSONString() (string, error) {
	data, err := json.Marshal(b)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// HasSourcedPrice reports whether the product already carries a positive
// lowest price backed by at least one source.
func (p *Product) HasSourcedPrice() bool {
	lp := p.Details.Pricing.LowestPrice
	return lp != nil && lp.Amount > 0 && len(lp.Sources) > 0
}

// Keywords derives up to four search tokens (name, brand, sku/ean/gtin) used
// by the price backfill to match trace candidates.
func (p *Product) Keywords() []string {
	keywords := make([]string, 0, 4)
	add := func(value string) {
		value = strings.TrimSpace(value)
		if value == "" || len(keywords) >= 4 {
			return
		}
		for _, existing := range keywords {
			if strings.EqualFold(existing, value) {
				return
			}
		}
		keywords = append(keywords, value)
	}
	add(p.Identification.Name)
	add(p.Identification.Brand)
	add(p.Details.Identifiers.SKU)
	add(p.Details.Identifiers.EAN)
	add(p.Details.Identifiers.GTIN)
	return keywords
}
