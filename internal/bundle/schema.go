package bundle

// SchemaName labels the structured-output format in model requests.
const SchemaName = "product_bundle"

// Schema returns the JSON-schema description of the bundle contract in the
// wire form the model must emit (attributes as a list of entries). It mirrors
// the validate tags on the Go types; Decode remains the authority.
func Schema() map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []string{"products"},
		"properties": map[string]any{
			"products": map[string]any{
				"type":     "array",
				"minItems": 1,
				"items":    productSchema(),
			},
		},
	}
}

func productSchema() map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []string{"identification", "details", "ops", "notes"},
		"properties": map[string]any{
			"identification": map[string]any{
				"type":                 "object",
				"additionalProperties": false,
				"required":             []string{"method", "barcodes", "name", "brand", "category", "confidence"},
				"properties": map[string]any{
					"method":     map[string]any{"type": "string", "enum": []string{"barcode", "visual", "hybrid", "manual"}},
					"barcodes":   stringArraySchema(),
					"name":       map[string]any{"type": "string"},
					"brand":      map[string]any{"type": "string"},
					"category":   map[string]any{"type": "string"},
					"confidence": map[string]any{"type": "number", "minimum": 0, "maximum": 1},
				},
			},
			"details": detailsSchema(),
			"ops": map[string]any{
				"type":                 "object",
				"additionalProperties": false,
				"required":             []string{"sync_status", "last_saved_iso", "last_synced_iso", "revision"},
				"properties": map[string]any{
					"sync_status":     map[string]any{"type": "string", "enum": []string{"new", "saved", "synced", "sync_failed"}},
					"last_saved_iso":  map[string]any{"type": "string"},
					"last_synced_iso": map[string]any{"type": "string"},
					"revision":        map[string]any{"type": "integer", "minimum": 0},
				},
			},
			"notes": map[string]any{
				"type":                 "object",
				"additionalProperties": false,
				"required":             []string{"unsure", "warnings"},
				"properties": map[string]any{
					"unsure":   stringArraySchema(),
					"warnings": stringArraySchema(),
				},
			},
		},
	}
}

func detailsSchema() map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []string{"short_description", "key_features", "attributes", "identifiers", "images", "pricing"},
		"properties": map[string]any{
			"short_description": map[string]any{"type": "string"},
			"key_features": map[string]any{
				"type":     "array",
				"minItems": 3,
				"items":    map[string]any{"type": "string"},
			},
			"attributes": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type":                 "object",
					"additionalProperties": false,
					"required":             []string{"key", "value", "value_type"},
					"properties": map[string]any{
						"key":        map[string]any{"type": "string"},
						"value":      map[string]any{"type": "string"},
						"value_type": map[string]any{"type": "string", "enum": []string{"string", "number", "boolean"}},
					},
				},
			},
			"identifiers": map[string]any{
				"type":                 "object",
				"additionalProperties": false,
				"required":             []string{"ean", "gtin", "upc", "mpn", "sku"},
				"properties": map[string]any{
					"ean":  map[string]any{"type": "string"},
					"gtin": map[string]any{"type": "string"},
					"upc":  map[string]any{"type": "string"},
					"mpn":  map[string]any{"type": "string"},
					"sku":  map[string]any{"type": "string"},
				},
			},
			"images": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type":                 "object",
					"additionalProperties": false,
					"required":             []string{"source", "variant", "url_or_base64", "notes"},
					"properties": map[string]any{
						"source":        map[string]any{"type": "string", "enum": []string{"upload", "web", "generated"}},
						"variant":       map[string]any{"type": "string", "enum": []string{"original", "marketing", "detail", "packaging"}},
						"url_or_base64": map[string]any{"type": "string"},
						"notes":         map[string]any{"type": "string"},
					},
				},
			},
			"pricing": map[string]any{
				"type":                 "object",
				"additionalProperties": false,
				"required":             []string{"lowest_price", "price_confidence"},
				"properties": map[string]any{
					"lowest_price": map[string]any{
						"anyOf": []map[string]any{
							{"type": "null"},
							lowestPriceSchema(),
						},
					},
					"price_confidence": map[string]any{"type": "number", "minimum": 0, "maximum": 1},
				},
			},
		},
	}
}

func lowestPriceSchema() map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []string{"amount", "currency", "sources", "last_checked_iso"},
		"properties": map[string]any{
			"amount":   map[string]any{"type": "number", "minimum": 0},
			"currency": map[string]any{"type": "string", "minLength": 3, "maxLength": 3},
			"sources": map[string]any{
				"type":     "array",
				"minItems": 1,
				"items": map[string]any{
					"type":                 "object",
					"additionalProperties": false,
					"required":             []string{"name", "url", "price", "shipping", "checked_at"},
					"properties": map[string]any{
						"name":       map[string]any{"type": "string"},
						"url":        map[string]any{"type": "string"},
						"price":      map[string]any{"type": "number", "minimum": 0},
						"shipping":   map[string]any{"type": "number"},
						"checked_at": map[string]any{"type": "string"},
					},
				},
			},
			"last_checked_iso": map[string]any{"type": "string"},
		},
	}
}

func stringArraySchema() map[string]any {
	return map[string]any{
		"type":  "array",
		"items": map[string]any{"type": "string"},
	}
}
