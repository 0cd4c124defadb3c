package media

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nodeflow/internal/graph"
	"nodeflow/internal/job"
)

type fakeFetcher struct {
	mu    sync.Mutex
	data  map[string][]byte
	types map[string]string
	calls map[string]int
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{data: map[string][]byte{}, types: map[string]string{}, calls: map[string]int{}}
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) ([]byte, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[url]++
	raw, ok := f.data[url]
	if !ok {
		return nil, "", &FetchError{URL: url, StatusCode: http.StatusNotFound}
	}
	return raw, f.types[url], nil
}

func newTestNormalizer(t *testing.T, f Fetcher, cache int) *Normalizer {
	t.Helper()
	n, err := NewNormalizer(f, cache, 2)
	require.NoError(t, err)
	return n
}

func TestNormalizeInlinePassesThrough(t *testing.T) {
	n := newTestNormalizer(t, newFakeFetcher(), 0)
	ref := graph.Inline("iVBORw0KGgo=", "image/png")

	part, err := n.Normalize(context.Background(), ref)
	require.NoError(t, err)
	require.NotNil(t, part.InlineData)
	assert.Equal(t, "iVBORw0KGgo=", part.InlineData.Data)
	assert.Equal(t, "image/png", part.InlineData.MIMEType)
}

func TestNormalizeRemoteEncodesAndDefaultsMime(t *testing.T) {
	f := newFakeFetcher()
	f.data["https://cdn.test/a"] = []byte("jpeg-bytes")
	f.data["https://cdn.test/b.webp"] = []byte("webp-bytes")
	f.types["https://cdn.test/b.webp"] = "image/webp; charset=binary"
	n := newTestNormalizer(t, f, 0)

	part, err := n.Normalize(context.Background(), graph.Remote("https://cdn.test/a"))
	require.NoError(t, err)
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("jpeg-bytes")), part.InlineData.Data)
	assert.Equal(t, "image/jpeg", part.InlineData.MIMEType)

	part, err = n.Normalize(context.Background(), graph.Remote("https://cdn.test/b.webp"))
	require.NoError(t, err)
	assert.Equal(t, "image/webp", part.InlineData.MIMEType)
}

func TestNormalizeRemoteFailure(t *testing.T) {
	n := newTestNormalizer(t, newFakeFetcher(), 0)
	_, err := n.Normalize(context.Background(), graph.Remote("https://cdn.test/missing"))
	assert.ErrorIs(t, err, ErrFetch)
}

func TestNormalizeRejectsInvalidRef(t *testing.T) {
	n := newTestNormalizer(t, newFakeFetcher(), 0)
	_, err := n.Normalize(context.Background(), graph.Inline("aGk=", ""))
	assert.ErrorIs(t, err, ErrInvalidMedia)
}

func TestNormalizeAllDropsFailuresKeepsOrder(t *testing.T) {
	f := newFakeFetcher()
	f.data["https://cdn.test/1"] = []byte("one")
	f.data["https://cdn.test/3"] = []byte("three")
	n := newTestNormalizer(t, f, 0)

	refs := []graph.MediaRef{
		graph.Remote("https://cdn.test/1"),
		graph.Remote("https://cdn.test/broken"),
		graph.Inline("aW5saW5l", "image/gif"),
		graph.Remote("https://cdn.test/3"),
	}
	parts := n.NormalizeAll(context.Background(), refs)

	require.Len(t, parts, 3)
	want := []job.Part{
		job.InlinePart(base64.StdEncoding.EncodeToString([]byte("one")), "image/jpeg"),
		job.InlinePart("aW5saW5l", "image/gif"),
		job.InlinePart(base64.StdEncoding.EncodeToString([]byte("three")), "image/jpeg"),
	}
	assert.Equal(t, want, parts)
}

func TestNormalizeCachesFetchedContent(t *testing.T) {
	f := newFakeFetcher()
	f.data["https://cdn.test/1"] = []byte("one")
	n := newTestNormalizer(t, f, 8)

	for i := 0; i < 3; i++ {
		_, err := n.Normalize(context.Background(), graph.Remote("https://cdn.test/1"))
		require.NoError(t, err)
	}
	assert.Equal(t, 1, f.calls["https://cdn.test/1"])
}

func TestHTTPFetcher(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/ok.png" {
			assert.Empty(t, r.Header.Get("Authorization"))
			w.Header().Set("Content-Type", "image/png")
			_, _ = w.Write([]byte("png"))
			return
		}
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	f := NewHTTPFetcher(0)
	raw, ct, err := f.Fetch(context.Background(), srv.URL+"/ok.png")
	require.NoError(t, err)
	assert.Equal(t, []byte("png"), raw)
	assert.Equal(t, "image/png", ct)

	_, _, err = f.Fetch(context.Background(), srv.URL+"/denied.png")
	var fe *FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, http.StatusForbidden, fe.StatusCode)
}

func TestHTTPFetcherSizeCap(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(make([]byte, 64))
	}))
	defer srv.Close()

	f := &HTTPFetcher{Client: srv.Client(), MaxBytes: 16}
	_, _, err := f.Fetch(context.Background(), srv.URL)
	assert.ErrorIs(t, err, ErrFetch)
}

func TestParseDataURL(t *testing.T) {
	ref, err := ParseDataURL("data:image/png;base64,iVBORw0KGgo=")
	require.NoError(t, err)
	data, mimeType, ok := ref.InlineData()
	require.True(t, ok)
	assert.Equal(t, "iVBORw0KGgo=", data)
	assert.Equal(t, "image/png", mimeType)

	_, err = ParseDataURL("data:;base64,AAAA")
	assert.ErrorIs(t, err, ErrInvalidMedia)
	_, err = ParseDataURL("data:text/plain,hello")
	assert.ErrorIs(t, err, ErrInvalidMedia)

	remote, err := ParseRef("https://cdn.test/x.jpg")
	require.NoError(t, err)
	assert.True(t, remote.IsRemote())
}

func TestInlineFromBytesSniffsType(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	ref := InlineFromBytes(png, "")
	data, mime, ok := ref.InlineData()
	require.True(t, ok)
	assert.Equal(t, "image/png", mime)
	assert.Equal(t, base64.StdEncoding.EncodeToString(png), data)

	_, mime, _ = InlineFromBytes([]byte("plain words"), "").InlineData()
	assert.Equal(t, DefaultMIMEType, mime)
}
