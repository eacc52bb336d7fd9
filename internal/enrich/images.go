package enrich

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"scanbay/internal/bundle"
	"scanbay/internal/logging"
	"scanbay/internal/serp"
)

// backfillImages tops up products below the configured minimum image count.
// Discovery runs in ordered attempts (generalized image search, then a
// marketplace-scoped query), excluding known URLs by host+path, filtering by
// minimum resolution, and optionally probing each candidate URL. Never fatal.
func (o *Orchestrator) backfillImages(ctx context.Context, b *bundle.Bundle, r *run) {
	if o.cfg.MinImagesPerItem <= 0 {
		return
	}
	for i := range b.Products {
		product := &b.Products[i]
		missing := o.cfg.MinImagesPerItem - len(product.Details.Images)
		if missing <= 0 {
			continue
		}

		name := strings.TrimSpace(product.Identification.Brand + " " + product.Identification.Name)
		if name == "" {
			continue
		}
		known := knownImageKeys(product.Details.Images)

		attempts := []struct {
			engine serp.Engine
			query  string
		}{
			{serp.EngineGoogleImages, name + " product photo"},
			{serp.EngineMarketplace, name},
		}
		for _, attempt := range attempts {
			if missing <= 0 {
				break
			}
			items, _ := r.search(ctx, attempt.engine, attempt.query, 0)
			if items == nil {
				continue
			}
			r.records = append(r.records, searchRecord{engine: attempt.engine, query: attempt.query, items: items})

			for _, item := range items {
				if missing <= 0 {
					break
				}
				candidate := item.URL
				if attempt.engine == serp.EngineMarketplace {
					candidate = item.Thumbnail
				}
				key, ok := imageKey(candidate)
				if !ok || known[key] {
					continue
				}
				if tooSmall(item, o.cfg.MinImageEdge) {
					continue
				}
				if o.cfg.VerifyImageURLs && !o.probeImageURL(ctx, candidate) {
					o.logger.Debug("image candidate failed probe", logging.String("url", candidate))
					continue
				}
				known[key] = true
				product.Details.Images = append(product.Details.Images, bundle.Image{
					Source:      "web",
					Variant:     "marketing",
					URLOrBase64: candidate,
				})
				missing--
			}
		}
	}
}

// tooSmall rejects candidates whose known dimensions fall under the minimum
// edge. Unknown dimensions pass; the optional URL probe is the second gate.
func tooSmall(item serp.Item, minEdge int) bool {
	if minEdge <= 0 || item.Width == 0 || item.Height == 0 {
		return false
	}
	return item.Width < minEdge || item.Height < minEdge
}

// knownImageKeys indexes a product's current images by normalized host+path.
func knownImageKeys(images []bundle.Image) map[string]bool {
	known := make(map[string]bool, len(images))
	for _, img := range images {
		if key, ok := imageKey(img.URLOrBase64); ok {
			known[key] = true
		}
	}
	return known
}

// imageKey normalizes a URL to lowercase host plus path, dropping query and
// fragment so the same asset served with different parameters dedupes.
func imageKey(raw string) (string, bool) {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || parsed.Host == "" {
		return "", false
	}
	return strings.ToLower(parsed.Host) + parsed.Path, true
}

// probeImageURL verifies a candidate is reachable and actually an image.
// HEAD first; servers that reject it get a ranged GET instead.
func (o *Orchestrator) probeImageURL(ctx context.Context, candidate string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, candidate, nil)
	if err != nil {
		return false
	}
	resp, err := o.httpClient.Do(req)
	if err == nil {
		resp.Body.Close()
		if resp.StatusCode == http.StatusOK && isImageContentType(resp.Header.Get("Content-Type")) {
			return true
		}
		if resp.StatusCode != http.StatusMethodNotAllowed && resp.StatusCode != http.StatusNotImplemented {
			return false
		}
	}

	req, err = http.NewRequestWithContext(ctx, http.MethodGet, candidate, nil)
	if err != nil {
		return false
	}
	req.Header.Set("Range", "bytes=0-511")
	resp, err = o.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		return false
	}
	return isImageContentType(resp.Header.Get("Content-Type"))
}

func isImageContentType(contentType string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(contentType)), "image/")
}
