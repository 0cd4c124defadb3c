package llm

import (
	"context"
	"fmt"
	"strings"

	"nodeflow/internal/job"
)

// FakeClient echoes a deterministic summary of its input for offline runs and tests.
type FakeClient struct{}

func NewFakeClient() *FakeClient { return &FakeClient{} }

func (f *FakeClient) Name() string { return "FakeLLM" }
func (f *FakeClient) Close() error { return nil }

func (f *FakeClient) Generate(_ context.Context, model string, parts []job.Part) (string, error) {
	var texts []string
	images := 0
	for _, p := range parts {
		if p.InlineData != nil {
			images++
			continue
		}
		if t := strings.TrimSpace(p.Text); t != "" {
			texts = append(texts, t)
		}
	}
	return fmt.Sprintf("[%s] %s (images: %d)", model, strings.Join(texts, " | "), images), nil
}
