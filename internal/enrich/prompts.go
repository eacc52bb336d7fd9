package enrich

import (
	"fmt"
	"strings"

	"scanbay/internal/config"
)

// systemInstruction is the fixed ruleset sent as the first message of every
// run.
const systemInstruction = `You identify physical products from photos and barcodes and produce a structured product record.

Rules:
- Use ONLY the provided evidence (barcodes, hosted photos) and the results of your search-tool calls.
- NEVER fabricate product data, prices, identifiers, or image URLs. If something cannot be verified, leave it empty and note it under notes.unsure.
- Note any uncertainty or conflicting evidence in notes.unsure or notes.warnings.
- Respond ONLY in the required output schema. No prose outside the structure.`

// finalizeInstruction is injected one iteration before the ceiling; tools are
// disabled for all subsequent calls.
const finalizeInstruction = `Stop searching. Make NO further tool calls. Produce your final answer now using only the evidence already gathered, in the required output schema.`

// buildUserInstruction enumerates the evidence and the numbered task list for
// this run.
func buildUserInstruction(barcodes, imageURLs []string, locale string, cfg config.Enrichment) string {
	var b strings.Builder

	b.WriteString("Identify the product(s) shown in the evidence below.\n\n")

	if len(barcodes) > 0 {
		b.WriteString("Barcodes:\n")
		for _, code := range barcodes {
			b.WriteString("- " + code + "\n")
		}
		b.WriteString("\n")
	}
	if len(imageURLs) > 0 {
		b.WriteString("Product photos (publicly hosted, usable with google_lens):\n")
		for _, url := range imageURLs {
			b.WriteString("- " + url + "\n")
		}
		b.WriteString("\n")
	}
	if locale != "" {
		b.WriteString("Target locale: " + locale + "\n\n")
	}

	b.WriteString("Tasks:\n")
	b.WriteString("1. Determine name, brand, and category for every distinct product in the evidence.\n")
	b.WriteString("2. Search for current prices using google_shopping or marketplace. This search is mandatory.\n")
	b.WriteString("3. Search for product images using google_images, bing_images, or google_lens. This search is mandatory.\n")
	fmt.Fprintf(&b, "4. Provide at least %d key features per product.\n", cfg.MinFeaturesPerItem)
	fmt.Fprintf(&b, "5. Provide at least %d images per product when available.\n", cfg.MinImagesPerItem)
	b.WriteString("6. If the evidence contains multiple distinct products, return one entry per product, keyed by its barcode or another stable identifier.\n")

	return b.String()
}
