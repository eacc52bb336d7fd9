package serp

import (
	"fmt"
	"strings"
)

// Engine identifies one search backend exposed through the tool contract.
type Engine string

const (
	EngineGoogleShopping Engine = "google_shopping"
	EngineGoogleImages   Engine = "google_images"
	EngineGoogleLens     Engine = "google_lens"
	EngineBingImages     Engine = "bing_images"
	EngineMarketplace    Engine = "marketplace"
)

// Engines lists every engine the tool contract accepts, in the order they are
// advertised to the model.
func Engines() []Engine {
	return []Engine{
		EngineGoogleShopping,
		EngineGoogleImages,
		EngineGoogleLens,
		EngineBingImages,
		EngineMarketplace,
	}
}

// ParseEngine validates a raw engine string from a tool call.
func ParseEngine(raw string) (Engine, error) {
	engine := Engine(strings.ToLower(strings.TrimSpace(raw)))
	for _, known := range Engines() {
		if engine == known {
			return engine, nil
		}
	}
	return "", fmt.Errorf("unknown search engine %q", raw)
}

// PriceCapable reports whether the engine returns priced offers, making it
// usable for the mandatory price search and the price backfill.
func (e Engine) PriceCapable() bool {
	return e == EngineGoogleShopping || e == EngineMarketplace
}

// ImageCapable reports whether the engine returns image results usable for
// the image-coverage backfill.
func (e Engine) ImageCapable() bool {
	return e == EngineGoogleImages || e == EngineGoogleLens || e == EngineBingImages
}

// apiName maps the tool-facing engine onto the aggregation API's engine
// parameter. The marketplace engine rides on google_shopping with a
// site-scoped query (see scopeQuery).
func (e Engine) apiName() string {
	if e == EngineMarketplace {
		return string(EngineGoogleShopping)
	}
	return string(e)
}

// marketplaceSite scopes marketplace-engine queries to a large retail site so
// results carry offer pages rather than aggregator listings.
const marketplaceSite = "amazon"

func (e Engine) scopeQuery(query string) string {
	if e == EngineMarketplace {
		return query + " site:" + marketplaceSite + ".*"
	}
	return query
}
