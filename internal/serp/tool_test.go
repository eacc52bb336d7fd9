package serp_test

import (
	"strings"
	"testing"

	"scanbay/internal/serp"
)

func TestParseEngine(t *testing.T) {
	engine, err := serp.ParseEngine(" Google_Shopping ")
	if err != nil {
		t.Fatalf("ParseEngine failed: %v", err)
	}
	if engine != serp.EngineGoogleShopping {
		t.Fatalf("unexpected engine %q", engine)
	}
	if _, err := serp.ParseEngine("yahoo"); err == nil {
		t.Fatal("expected unknown engine to be rejected")
	}
}

func TestEngineCapabilities(t *testing.T) {
	if !serp.EngineGoogleShopping.PriceCapable() || !serp.EngineMarketplace.PriceCapable() {
		t.Fatal("expected shopping engines to be price capable")
	}
	if serp.EngineGoogleImages.PriceCapable() {
		t.Fatal("image engine must not be price capable")
	}
	if !serp.EngineGoogleImages.ImageCapable() || !serp.EngineGoogleLens.ImageCapable() || !serp.EngineBingImages.ImageCapable() {
		t.Fatal("expected image engines to be image capable")
	}
}

func TestParseToolArgs(t *testing.T) {
	args, err := serp.ParseToolArgs(`{"engine": "google_images", "query": "Makita DHP484 photo", "count": 5}`)
	if err != nil {
		t.Fatalf("ParseToolArgs failed: %v", err)
	}
	if args.Engine != serp.EngineGoogleImages || args.Query != "Makita DHP484 photo" || args.Count != 5 {
		t.Fatalf("unexpected args: %#v", args)
	}

	if _, err := serp.ParseToolArgs(`{"engine": "google_images"}`); err == nil {
		t.Fatal("expected missing query to be rejected")
	}
	if _, err := serp.ParseToolArgs(`{"engine": "askjeeves", "query": "x"}`); err == nil {
		t.Fatal("expected unknown engine to be rejected")
	}
	if _, err := serp.ParseToolArgs(`not json`); err == nil {
		t.Fatal("expected malformed arguments to be rejected")
	}
}

func TestToolParametersEnumerateEngines(t *testing.T) {
	params := serp.ToolParameters()
	props, ok := params["properties"].(map[string]any)
	if !ok {
		t.Fatalf("missing properties: %#v", params)
	}
	engineProp, ok := props["engine"].(map[string]any)
	if !ok {
		t.Fatalf("missing engine property: %#v", props)
	}
	enum, ok := engineProp["enum"].([]string)
	if !ok || len(enum) != len(serp.Engines()) {
		t.Fatalf("expected every engine enumerated, got %#v", engineProp["enum"])
	}
}

func TestSummaries(t *testing.T) {
	items := []serp.Item{
		{Title: "Makita DHP484", Price: "129,00 €", Source: "toolshop", URL: "https://toolshop.example/p/1"},
		{Title: "No price result", URL: "https://example.com"},
		{},
	}
	summaries := serp.Summaries(items)
	if len(summaries) != 2 {
		t.Fatalf("expected empty items dropped, got %d summaries", len(summaries))
	}
	if !strings.HasPrefix(summaries[0], "1. Makita DHP484 | 129,00 €") {
		t.Fatalf("unexpected summary: %q", summaries[0])
	}
}

func TestTraceMarshal(t *testing.T) {
	var trace serp.Trace
	out, err := trace.MarshalJSONString()
	if err != nil {
		t.Fatalf("marshal empty trace: %v", err)
	}
	if out != "[]" {
		t.Fatalf("expected empty array, got %q", out)
	}

	trace = trace.Append(serp.TraceEntry{
		Engine:  serp.EngineGoogleShopping,
		Query:   "Makita DHP484",
		Summary: []string{"1. Makita DHP484 | 129,00 €"},
	})
	out, err = trace.MarshalJSONString()
	if err != nil {
		t.Fatalf("marshal trace: %v", err)
	}
	if !strings.Contains(out, `"engine":"google_shopping"`) {
		t.Fatalf("unexpected trace json: %s", out)
	}
}
