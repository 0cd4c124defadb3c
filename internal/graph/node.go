package graph

import (
	"fmt"
	"strings"
)

// Kind is the closed set of node types a workflow can hold.
type Kind string

const (
	KindText   Kind = "text"
	KindImage  Kind = "image"
	KindVideo  Kind = "video"
	KindWorker Kind = "worker"
)

// ParseKind accepts the canonical names plus the editor's legacy node type ids.
func ParseKind(raw string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "text", "textnode", "prompt":
		return KindText, nil
	case "image", "imagenode":
		return KindImage, nil
	case "video", "videonode":
		return KindVideo, nil
	case "worker", "llm", "llmnode":
		return KindWorker, nil
	default:
		return "", fmt.Errorf("%w: unknown node kind %q", ErrInvalid, raw)
	}
}

// Value is a node's produced output. Implementations are Text and MediaRef.
type Value interface {
	isValue()
}

// Text is a plain text output (typed prompt or a worker's generated text).
type Text string

func (Text) isValue() {}

type mediaVariant uint8

const (
	mediaUnset mediaVariant = iota
	mediaInline
	mediaRemote
)

// MediaRef points at image or video content, either carried inline as a
// base64 payload or held remotely behind a URL.
type MediaRef struct {
	variant  mediaVariant
	data     string
	mimeType string
	url      string
}

func (MediaRef) isValue() {}

// Inline builds an inline reference. data must already be base64 encoded.
func Inline(data, mimeType string) MediaRef {
	return MediaRef{variant: mediaInline, data: data, mimeType: strings.TrimSpace(mimeType)}
}

// Remote builds a reference to content behind url.
func Remote(url string) MediaRef {
	return MediaRef{variant: mediaRemote, url: strings.TrimSpace(url)}
}

func (m MediaRef) IsInline() bool { return m.variant == mediaInline }
func (m MediaRef) IsRemote() bool { return m.variant == mediaRemote }

// InlineData returns the base64 payload and MIME type of an inline reference.
func (m MediaRef) InlineData() (data, mimeType string, ok bool) {
	if m.variant != mediaInline {
		return "", "", false
	}
	return m.data, m.mimeType, true
}

// URL returns the location of a remote reference.
func (m MediaRef) URL() (string, bool) {
	if m.variant != mediaRemote {
		return "", false
	}
	return m.url, true
}

// Validate checks that exactly one variant is populated.
func (m MediaRef) Validate() error {
	switch m.variant {
	case mediaInline:
		if m.mimeType == "" {
			return fmt.Errorf("%w: inline media requires a mime type", ErrInvalid)
		}
		if m.data == "" {
			return fmt.Errorf("%w: inline media has no data", ErrInvalid)
		}
		return nil
	case mediaRemote:
		if m.url == "" {
			return fmt.Errorf("%w: remote media requires a url", ErrInvalid)
		}
		return nil
	default:
		return fmt.Errorf("%w: media reference is empty", ErrInvalid)
	}
}

func (m MediaRef) String() string {
	switch m.variant {
	case mediaInline:
		return fmt.Sprintf("inline(%s, %d bytes b64)", m.mimeType, len(m.data))
	case mediaRemote:
		return "remote(" + m.url + ")"
	default:
		return "media(unset)"
	}
}

// Node is a vertex of the workflow graph.
type Node struct {
	ID    string
	Kind  Kind
	Model string
	Value Value
}

// HasValue reports whether the node has produced anything yet.
func (n Node) HasValue() bool { return n.Value != nil }

// Edge feeds Source's produced value into Target's TargetSlot input.
type Edge struct {
	Source     string
	Target     string
	TargetSlot string
}
