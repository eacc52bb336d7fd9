package serp

import (
	"fmt"
	"strings"
)

// apiResponse covers every result shape the supported engines return. Each
// engine fills a different slice; normalize reduces whichever one is present.
type apiResponse struct {
	Error           string           `json:"error"`
	ShoppingResults []shoppingResult `json:"shopping_results"`
	ImagesResults   []imageResult    `json:"images_results"`
	VisualMatches   []visualMatch    `json:"visual_matches"`
}

type shoppingResult struct {
	Title     string `json:"title"`
	Price     string `json:"price"`
	Source    string `json:"source"`
	Link      string `json:"link"`
	Thumbnail string `json:"thumbnail"`
	Snippet   string `json:"snippet"`
}

type imageResult struct {
	Title          string `json:"title"`
	Original       string `json:"original"`
	OriginalWidth  int    `json:"original_width"`
	OriginalHeight int    `json:"original_height"`
	Link           string `json:"link"`
	Source         string `json:"source"`
	Thumbnail      string `json:"thumbnail"`
	Snippet        string `json:"snippet"`
}

type visualMatch struct {
	Title     string `json:"title"`
	Link      string `json:"link"`
	Source    string `json:"source"`
	Thumbnail string `json:"thumbnail"`
	Price     struct {
		Value    string `json:"value"`
		Currency string `json:"currency"`
	} `json:"price"`
}

func (r apiResponse) normalize(limit int) []Item {
	var items []Item
	switch {
	case len(r.ShoppingResults) > 0:
		for _, s := range r.ShoppingResults {
			items = append(items, Item{
				Title:     s.Title,
				Price:     s.Price,
				Source:    s.Source,
				URL:       s.Link,
				Thumbnail: s.Thumbnail,
				Snippet:   s.Snippet,
			})
		}
	case len(r.VisualMatches) > 0:
		for _, v := range r.VisualMatches {
			items = append(items, Item{
				Title:     v.Title,
				Price:     strings.TrimSpace(v.Price.Value),
				Source:    v.Source,
				URL:       v.Link,
				Thumbnail: v.Thumbnail,
			})
		}
	case len(r.ImagesResults) > 0:
		for _, img := range r.ImagesResults {
			url := img.Original
			if url == "" {
				url = img.Link
			}
			items = append(items, Item{
				Title:     img.Title,
				Source:    img.Source,
				URL:       url,
				Thumbnail: img.Thumbnail,
				Snippet:   img.Snippet,
				Width:     img.OriginalWidth,
				Height:    img.OriginalHeight,
			})
		}
	}
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}

// Summaries renders items as compact ranked lines for tool result messages.
// The model sees these instead of raw engine payloads to keep context small.
func Summaries(items []Item) []string {
	summaries := make([]string, 0, len(items))
	for i, item := range items {
		parts := make([]string, 0, 4)
		if title := strings.TrimSpace(item.Title); title != "" {
			parts = append(parts, title)
		}
		if price := strings.TrimSpace(item.Price); price != "" {
			parts = append(parts, price)
		}
		if source := strings.TrimSpace(item.Source); source != "" {
			parts = append(parts, source)
		}
		if url := strings.TrimSpace(item.URL); url != "" {
			parts = append(parts, url)
		}
		if len(parts) == 0 {
			continue
		}
		summaries = append(summaries, fmt.Sprintf("%d. %s", i+1, strings.Join(parts, " | ")))
	}
	return summaries
}
