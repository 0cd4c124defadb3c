// Package upload moves user-supplied media to hosted storage and returns a
// URL a remote media ref can point at.
package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"sort"
)

var ErrNoOutputURL = errors.New("upload: no output file returned")

// Uploader stores one file and returns its public URL.
type Uploader interface {
	Upload(ctx context.Context, name string, r io.Reader) (string, error)
}

// AssemblyFile is one file entry in an assembly response.
type AssemblyFile struct {
	Name   string `json:"name,omitempty"`
	SSLURL string `json:"ssl_url,omitempty"`
	Mime   string `json:"mime,omitempty"`
}

// AssemblyResult is the subset of an assembly status response we read.
type AssemblyResult struct {
	OK      string                    `json:"ok,omitempty"`
	Error   string                    `json:"error,omitempty"`
	Message string                    `json:"message,omitempty"`
	Uploads []AssemblyFile            `json:"uploads"`
	Results map[string][]AssemblyFile `json:"results"`

	// resultOrder holds the result step names as they appeared in the response.
	resultOrder []string
}

func (r *AssemblyResult) UnmarshalJSON(data []byte) error {
	type plain AssemblyResult
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	var raw struct {
		Results json.RawMessage `json:"results"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	order, err := objectKeys(raw.Results)
	if err != nil {
		return err
	}
	*r = AssemblyResult(p)
	r.resultOrder = order
	return nil
}

// objectKeys lists the keys of a JSON object in document order. Anything
// other than an object yields no keys.
func objectKeys(raw json.RawMessage) ([]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, nil
	}
	var keys []string
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, _ := tok.(string)
		keys = append(keys, key)
		var skip json.RawMessage
		if err := dec.Decode(&skip); err != nil {
			return nil, err
		}
	}
	return keys, nil
}

// steps returns the result step names in response order. Steps the decoder
// did not see, as in a hand-built value, follow in key order.
func (r AssemblyResult) steps() []string {
	out := make([]string, 0, len(r.Results))
	seen := make(map[string]bool, len(r.Results))
	for _, step := range r.resultOrder {
		if _, ok := r.Results[step]; ok && !seen[step] {
			seen[step] = true
			out = append(out, step)
		}
	}
	var rest []string
	for step := range r.Results {
		if !seen[step] {
			rest = append(rest, step)
		}
	}
	sort.Strings(rest)
	return append(out, rest...)
}

// ExtractURL picks the output URL of an assembly: the first upload if it has
// one, otherwise the first result file with a URL, scanning steps in the
// order the service listed them.
func ExtractURL(res AssemblyResult) (string, error) {
	if len(res.Uploads) > 0 && res.Uploads[0].SSLURL != "" {
		return res.Uploads[0].SSLURL, nil
	}
	for _, step := range res.steps() {
		for _, f := range res.Results[step] {
			if f.SSLURL != "" {
				return f.SSLURL, nil
			}
		}
	}
	return "", ErrNoOutputURL
}
