// Package media converts media references into the inline parts accepted by
// the job submission boundary.
package media

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"

	"nodeflow/internal/graph"
	"nodeflow/internal/job"
)

// DefaultMIMEType is assumed for fetched content of unknown type.
const DefaultMIMEType = "image/jpeg"

var ErrInvalidMedia = errors.New("media: invalid reference")

const (
	defaultConcurrency = 4
	defaultCacheSize   = 256
)

// Normalizer turns MediaRefs into canonical inline parts.
type Normalizer struct {
	fetcher     Fetcher
	cache       *lru.Cache[string, job.Part]
	concurrency int
}

// NewNormalizer builds a normalizer. cacheEntries <= 0 disables caching of
// fetched remote content.
func NewNormalizer(f Fetcher, cacheEntries, concurrency int) (*Normalizer, error) {
	if f == nil {
		return nil, fmt.Errorf("fetcher is required")
	}
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	n := &Normalizer{fetcher: f, concurrency: concurrency}
	if cacheEntries > 0 {
		cache, err := lru.New[string, job.Part](cacheEntries)
		if err != nil {
			return nil, fmt.Errorf("init media cache: %w", err)
		}
		n.cache = cache
	}
	return n, nil
}

// Normalize returns the canonical part for ref. Inline refs pass through
// untouched; remote refs are fetched and base64 encoded.
func (n *Normalizer) Normalize(ctx context.Context, ref graph.MediaRef) (job.Part, error) {
	if err := ref.Validate(); err != nil {
		return job.Part{}, fmt.Errorf("%w: %v", ErrInvalidMedia, err)
	}
	if data, mimeType, ok := ref.InlineData(); ok {
		return job.InlinePart(data, mimeType), nil
	}
	url, _ := ref.URL()
	if n.cache != nil {
		if part, ok := n.cache.Get(url); ok {
			return part, nil
		}
	}
	raw, contentType, err := n.fetcher.Fetch(ctx, url)
	if err != nil {
		var fe *FetchError
		if errors.As(err, &fe) {
			return job.Part{}, err
		}
		return job.Part{}, &FetchError{URL: url, Err: err}
	}
	part := job.InlinePart(base64.StdEncoding.EncodeToString(raw), mediaType(contentType))
	if n.cache != nil {
		n.cache.Add(url, part)
	}
	return part, nil
}

// NormalizeAll normalizes refs concurrently and returns the parts that
// succeeded in the order of refs. Failed elements are logged and dropped.
func (n *Normalizer) NormalizeAll(ctx context.Context, refs []graph.MediaRef) []job.Part {
	if len(refs) == 0 {
		return nil
	}
	slots := make([]*job.Part, len(refs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(n.concurrency)
	for i, ref := range refs {
		i, ref := i, ref
		g.Go(func() error {
			part, err := n.Normalize(gctx, ref)
			if err != nil {
				log.Printf("media: dropping element %d (%s): %v", i, ref, err)
				return nil
			}
			slots[i] = &part
			return nil
		})
	}
	_ = g.Wait()

	out := make([]job.Part, 0, len(refs))
	for _, p := range slots {
		if p != nil {
			out = append(out, *p)
		}
	}
	return out
}

// ParseDataURL splits a "data:<mime>;base64,<payload>" string into an inline
// reference without decoding the payload.
func ParseDataURL(s string) (graph.MediaRef, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "data:") {
		return graph.MediaRef{}, fmt.Errorf("%w: not a data url", ErrInvalidMedia)
	}
	meta, payload, ok := strings.Cut(strings.TrimPrefix(s, "data:"), ",")
	if !ok {
		return graph.MediaRef{}, fmt.Errorf("%w: data url has no payload", ErrInvalidMedia)
	}
	mimeType, params, _ := strings.Cut(meta, ";")
	if !strings.Contains(params, "base64") {
		return graph.MediaRef{}, fmt.Errorf("%w: data url is not base64 encoded", ErrInvalidMedia)
	}
	ref := graph.Inline(payload, mimeType)
	if err := ref.Validate(); err != nil {
		return graph.MediaRef{}, fmt.Errorf("%w: %v", ErrInvalidMedia, err)
	}
	return ref, nil
}

// ParseRef accepts either a data URL or a remote URL.
func ParseRef(s string) (graph.MediaRef, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "data:") {
		return ParseDataURL(s)
	}
	ref := graph.Remote(s)
	if err := ref.Validate(); err != nil {
		return graph.MediaRef{}, fmt.Errorf("%w: %v", ErrInvalidMedia, err)
	}
	return ref, nil
}

// InlineFromBytes encodes raw content as an inline reference. An empty
// mimeType is sniffed from the content.
func InlineFromBytes(data []byte, mimeType string) graph.MediaRef {
	if strings.TrimSpace(mimeType) == "" {
		mimeType = mediaType(http.DetectContentType(data))
	}
	return graph.Inline(base64.StdEncoding.EncodeToString(data), mimeType)
}
