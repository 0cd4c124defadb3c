package llm

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log"
	"strings"

	"golang.org/x/time/rate"
	genai "google.golang.org/genai"

	"nodeflow/internal/job"
)

var ErrEmptyResponse = errors.New("llm: model returned no text")

// DefaultModel is used when a worker node does not name one.
const DefaultModel = "gemini-2.5-flash"

// GeminiClient is a thin wrapper around the official genai client.
type GeminiClient struct {
	cli   *genai.Client
	model string
	rl    *rate.Limiter
}

// NewGeminiClient creates a client. rps <= 0 disables request throttling.
func NewGeminiClient(ctx context.Context, apiKey, model string, rps float64, burst int) (*GeminiClient, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	cli, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey, Backend: genai.BackendGeminiAPI})
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(model) == "" {
		model = DefaultModel
	}
	var rl *rate.Limiter
	if rps > 0 {
		if burst <= 0 {
			burst = 1
		}
		rl = rate.NewLimiter(rate.Limit(rps), burst)
	}
	return &GeminiClient{cli: cli, model: model, rl: rl}, nil
}

func (g *GeminiClient) Name() string { return "Gemini:" + g.model }
func (g *GeminiClient) Close() error { return nil }

// Generate sends the parts as a single user turn and returns the
// concatenated text of the first candidate.
func (g *GeminiClient) Generate(ctx context.Context, model string, parts []job.Part) (string, error) {
	if strings.TrimSpace(model) == "" {
		model = g.model
	}
	content, err := toContent(parts)
	if err != nil {
		return "", err
	}
	if g.rl != nil {
		if err := g.rl.Wait(ctx); err != nil {
			return "", err
		}
	}
	log.Printf("llm: gemini request model=%s parts=%d", model, len(content.Parts))

	resp, err := g.cli.Models.GenerateContent(ctx, model, []*genai.Content{content}, nil)
	if err != nil {
		return "", err
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", ErrEmptyResponse
	}
	var b strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if p != nil && p.Text != "" {
			b.WriteString(p.Text)
		}
	}
	if b.Len() == 0 {
		return "", ErrEmptyResponse
	}
	return b.String(), nil
}

func toContent(parts []job.Part) (*genai.Content, error) {
	out := make([]*genai.Part, 0, len(parts))
	for i, p := range parts {
		if p.InlineData != nil {
			raw, err := base64.StdEncoding.DecodeString(p.InlineData.Data)
			if err != nil {
				return nil, fmt.Errorf("part %d: decode inline data: %w", i, err)
			}
			out = append(out, &genai.Part{InlineData: &genai.Blob{Data: raw, MIMEType: p.InlineData.MIMEType}})
			continue
		}
		if p.Text != "" {
			out = append(out, &genai.Part{Text: p.Text})
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no content to send")
	}
	return &genai.Content{Role: "user", Parts: out}, nil
}
