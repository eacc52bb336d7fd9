package enrich

import (
	"context"
	"strconv"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/currency"

	"scanbay/internal/bundle"
	"scanbay/internal/logging"
	"scanbay/internal/serp"
)

// priceCandidate is one trace item whose price text parsed cleanly.
type priceCandidate struct {
	amount   float64
	currency string
	item     serp.Item
}

// backfillPrices fills in a lowest price for every product that lacks a
// positive, sourced one. Existing search evidence is scanned first; only if
// nothing matches is a single fallback price search issued. Never fatal.
func (o *Orchestrator) backfillPrices(ctx context.Context, b *bundle.Bundle, r *run) {
	for i := range b.Products {
		product := &b.Products[i]
		if product.HasSourcedPrice() {
			continue
		}
		keywords := product.Keywords()
		if len(keywords) == 0 {
			continue
		}

		candidates := o.matchPriceCandidates(r.records, keywords)
		if len(candidates) == 0 {
			candidates = o.fallbackPriceSearch(ctx, r, keywords)
		}
		if len(candidates) == 0 {
			o.logger.Info("price backfill found no candidates",
				logging.String("product", product.Identification.Name))
			continue
		}

		best := candidates[0]
		for _, candidate := range candidates[1:] {
			if candidate.amount < best.amount {
				best = candidate
			}
		}

		now := o.now().UTC().Format(time.RFC3339)
		product.Details.Pricing.LowestPrice = &bundle.LowestPrice{
			Amount:   best.amount,
			Currency: best.currency,
			Sources: []bundle.PriceSource{{
				Name:      best.item.Source,
				URL:       best.item.URL,
				Price:     best.amount,
				CheckedAt: now,
			}},
			LastCheckedISO: now,
		}
		product.Details.Pricing.PriceConfidence = priceConfidence(len(candidates))
	}
}

// matchPriceCandidates scans prior search records for priced items whose
// title, snippet, or originating query matches one of the keywords.
func (o *Orchestrator) matchPriceCandidates(records []searchRecord, keywords []string) []priceCandidate {
	var candidates []priceCandidate
	for _, record := range records {
		if !record.engine.PriceCapable() {
			continue
		}
		queryMatches := matchesKeyword(record.query, keywords)
		for _, item := range record.items {
			amount, code, ok := ParsePrice(item.Price, o.cfg.DefaultCurrency)
			if !ok {
				continue
			}
			if !queryMatches && !matchesKeyword(item.Title, keywords) && !matchesKeyword(item.Snippet, keywords) {
				continue
			}
			candidates = append(candidates, priceCandidate{amount: amount, currency: code, item: item})
		}
	}
	return candidates
}

// fallbackPriceSearch issues the single extra price query permitted per
// product and records it on the trace.
func (o *Orchestrator) fallbackPriceSearch(ctx context.Context, r *run, keywords []string) []priceCandidate {
	query := strings.Join(keywords, " ")
	items, _ := r.search(ctx, serp.EngineGoogleShopping, query, 0)
	if items == nil {
		return nil
	}
	r.records = append(r.records, searchRecord{engine: serp.EngineGoogleShopping, query: query, items: items})

	var candidates []priceCandidate
	for _, item := range items {
		amount, code, ok := ParsePrice(item.Price, o.cfg.DefaultCurrency)
		if !ok {
			continue
		}
		candidates = append(candidates, priceCandidate{amount: amount, currency: code, item: item})
	}
	return candidates
}

// priceConfidence grows with candidate count and caps well below certainty:
// a synthesized price is never as trustworthy as a model-sourced one.
func priceConfidence(count int) float64 {
	confidence := 0.3 + 0.1*float64(count)
	if confidence > 0.7 {
		confidence = 0.7
	}
	return confidence
}

func matchesKeyword(text string, keywords []string) bool {
	if strings.TrimSpace(text) == "" {
		return false
	}
	lower := strings.ToLower(text)
	for _, keyword := range keywords {
		if strings.Contains(lower, strings.ToLower(keyword)) {
			return true
		}
	}
	return false
}

// symbolCurrencies maps common price symbols to ISO codes.
var symbolCurrencies = map[rune]string{
	'€': "EUR",
	'$': "USD",
	'£': "GBP",
	'¥': "JPY",
}

// ParsePrice extracts an amount and ISO currency from free-form price text.
// Both decimal conventions are handled: "12,99 €" and "$9.50" as well as
// thousand-separated forms like "1.299,00 EUR". When no currency can be
// recognized the supplied default applies; without a default the text is
// rejected.
func ParsePrice(text, defaultCurrency string) (float64, string, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0, "", false
	}

	code := detectCurrency(text, defaultCurrency)
	if code == "" {
		return 0, "", false
	}

	amount, ok := parseAmount(text)
	if !ok || amount < 0 {
		return 0, "", false
	}
	return amount, code, true
}

// detectCurrency finds a symbol or ISO code in the text, validated through
// the currency registry, falling back to the configured default.
func detectCurrency(text, defaultCurrency string) string {
	for _, r := range text {
		if code, ok := symbolCurrencies[r]; ok {
			return code
		}
	}
	for _, token := range strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r)
	}) {
		if len(token) != 3 {
			continue
		}
		if unit, err := currency.ParseISO(token); err == nil {
			return unit.String()
		}
	}
	defaultCurrency = strings.ToUpper(strings.TrimSpace(defaultCurrency))
	if defaultCurrency != "" {
		if unit, err := currency.ParseISO(defaultCurrency); err == nil {
			return unit.String()
		}
	}
	return ""
}

// parseAmount extracts the first numeric run and resolves the decimal
// separator: the last separator in the run is decimal unless it is followed
// by exactly three digits, which marks a thousand separator.
func parseAmount(text string) (float64, bool) {
	var digits []rune
	started := false
	for _, r := range text {
		if unicode.IsDigit(r) || r == '.' || r == ',' {
			digits = append(digits, r)
			started = true
			continue
		}
		if started {
			break
		}
	}
	raw := strings.Trim(string(digits), ".,")
	if raw == "" {
		return 0, false
	}

	stripSeparators := func(s string) string {
		s = strings.ReplaceAll(s, ",", "")
		return strings.ReplaceAll(s, ".", "")
	}

	last := strings.LastIndexAny(raw, ".,")
	var normalized string
	switch {
	case last < 0:
		normalized = raw
	case len(raw)-last-1 == 3:
		normalized = stripSeparators(raw)
	default:
		normalized = stripSeparators(raw[:last]) + "." + stripSeparators(raw[last+1:])
	}

	amount, err := strconv.ParseFloat(normalized, 64)
	if err != nil {
		return 0, false
	}
	return amount, true
}
