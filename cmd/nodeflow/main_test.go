package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nodeflow/internal/graph"
	"nodeflow/internal/runner"
)

const sampleGraph = `
nodes:
  - id: sys
    kind: text
    text: answer in one word
  - id: prompt
    kind: textNode
    text: what animal is this
  - id: photo
    kind: image
    media: data:image/png;base64,aGk=
  - id: w
    kind: llm
    model: fake-model
edges:
  - {source: sys, target: w, slot: system}
  - {source: prompt, target: w, slot: user}
  - {source: photo, target: w, slot: images}
`

func TestDecodeGraph(t *testing.T) {
	g, err := decodeGraph(strings.NewReader(sampleGraph))
	require.NoError(t, err)
	n, err := g.Node("w")
	require.NoError(t, err)
	assert.Equal(t, graph.KindWorker, n.Kind)
	assert.Len(t, g.FindEdges("w", "images"), 1)

	_, err = decodeGraph(strings.NewReader("nodes:\n  - id: a\n    kind: text\n    colour: red\n"))
	assert.Error(t, err)

	_, err = decodeGraph(strings.NewReader("nodes:\n  - id: a\n    kind: text\nedges:\n  - {source: a, target: b, slot: user}\n"))
	assert.ErrorIs(t, err, graph.ErrNotFound)
}

func TestRunCommandWithFakeBackend(t *testing.T) {
	t.Setenv("RUN_POLL_INTERVAL", "5ms")
	t.Setenv("RUN_POLL_MAX_ATTEMPTS", "400")
	path := filepath.Join(t.TempDir(), "graph.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleGraph), 0o644))

	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"run", "--graph", path, "--node", "w", "--fake"})
	require.NoError(t, cmd.Execute())

	var res runner.Result
	require.NoError(t, json.Unmarshal(out.Bytes(), &res))
	assert.True(t, res.Success)
	assert.Equal(t, "[fake-model] System: answer in one word\nUser: what animal is this (images: 1)", res.Output)
}

func TestSlotsCommand(t *testing.T) {
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"slots"})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "images   collection")
	assert.Contains(t, out.String(), "user     single")
}
