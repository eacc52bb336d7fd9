package enrich_test

import (
	"context"
	"fmt"
	"testing"

	"scanbay/internal/bundle"
	"scanbay/internal/model"
	"scanbay/internal/serp"
	"scanbay/internal/storage"
)

// fakeCompleter replays scripted responses and records every call.
type fakeCompleter struct {
	script []*model.Response
	repeat *model.Response
	err    error

	calls []model.Options
	convs [][]model.Message
}

func (f *fakeCompleter) Complete(_ context.Context, conv *model.Conversation, opts model.Options) (*model.Response, error) {
	f.calls = append(f.calls, opts)
	f.convs = append(f.convs, append([]model.Message(nil), conv.Messages()...))
	if f.err != nil {
		return nil, f.err
	}
	if len(f.script) > 0 {
		resp := f.script[0]
		f.script = f.script[1:]
		return resp, nil
	}
	if f.repeat != nil {
		return f.repeat, nil
	}
	return nil, fmt.Errorf("fake completer script exhausted")
}

type searchCall struct {
	engine serp.Engine
	query  string
}

// fakeSearcher serves canned items per engine and records every call.
type fakeSearcher struct {
	items map[serp.Engine][]serp.Item
	err   error
	calls []searchCall
}

func (f *fakeSearcher) Search(_ context.Context, engine serp.Engine, query string, _ int) ([]serp.Item, error) {
	f.calls = append(f.calls, searchCall{engine: engine, query: query})
	if f.err != nil {
		return nil, f.err
	}
	return f.items[engine], nil
}

// fakeStore hosts uploads in memory, optionally failing specific variants.
type fakeStore struct {
	uploads     []string
	failVariant string
}

func (f *fakeStore) Upload(_ context.Context, data []byte, mimeType, scope, variant string) (*storage.StoredObject, error) {
	if variant == f.failVariant {
		return nil, fmt.Errorf("upload refused for %s", variant)
	}
	path := scope + "/" + variant + ".jpg"
	f.uploads = append(f.uploads, path)
	return &storage.StoredObject{
		URL:      "http://files.test/files/" + path,
		Path:     path,
		MimeType: mimeType,
	}, nil
}

func (f *fakeStore) Download(context.Context, string) (*storage.Object, error) {
	return nil, fmt.Errorf("not supported in tests")
}

func toolCallResponse(id, engine, query string) *model.Response {
	call := model.ToolCall{
		ID:        id,
		Name:      serp.ToolName,
		Arguments: fmt.Sprintf(`{"engine": %q, "query": %q}`, engine, query),
	}
	return &model.Response{
		Message:   model.Message{Role: model.RoleAssistant, ToolCalls: []model.ToolCall{call}},
		ToolCalls: []model.ToolCall{call},
		Model:     "gpt-4o-test",
	}
}

func finalResponse(content string) *model.Response {
	return &model.Response{
		Message: model.Message{Role: model.RoleAssistant, Content: content},
		Content: content,
		Model:   "gpt-4o-test",
	}
}

// testBundleJSON builds a valid bundle in the wire form the model emits.
func testBundleJSON(t *testing.T, imageCount int, withPrice bool) string {
	t.Helper()
	product := bundle.Product{
		Identification: bundle.Identification{
			Method:     "barcode",
			Barcodes:   []string{"4006381333931"},
			Name:       "Makita DHP484",
			Brand:      "Makita",
			Category:   "power tools",
			Confidence: 0.9,
		},
		Details: bundle.Details{
			ShortDescription: "18V brushless combi drill",
			KeyFeatures:      []string{"brushless motor", "2-speed gearbox", "LED work light"},
			Identifiers:      bundle.Identifiers{EAN: "4006381333931"},
		},
		Ops:   bundle.Ops{SyncStatus: "new"},
		Notes: bundle.Notes{},
	}
	for i := 0; i < imageCount; i++ {
		product.Details.Images = append(product.Details.Images, bundle.Image{
			Source:      "upload",
			Variant:     "original",
			URLOrBase64: fmt.Sprintf("https://img.example/known-%d.jpg", i),
		})
	}
	if withPrice {
		product.Details.Pricing = bundle.Pricing{
			LowestPrice: &bundle.LowestPrice{
				Amount:   129,
				Currency: "EUR",
				Sources: []bundle.PriceSource{{
					Name:  "toolshop",
					URL:   "https://toolshop.example/p/1",
					Price: 129,
				}},
				LastCheckedISO: "2026-08-28T10:00:00Z",
			},
			PriceConfidence: 0.8,
		}
	}
	b := bundle.Bundle{Products: []bundle.Product{product}}
	raw, err := b.MarshalJSONString()
	if err != nil {
		t.Fatalf("marshal test bundle: %v", err)
	}
	return raw
}
