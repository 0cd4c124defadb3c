package main

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"nodeflow/internal/graph"
	"nodeflow/internal/media"
)

type graphFile struct {
	Nodes []nodeSpec `yaml:"nodes"`
	Edges []edgeSpec `yaml:"edges"`
}

type nodeSpec struct {
	ID    string `yaml:"id"`
	Kind  string `yaml:"kind"`
	Model string `yaml:"model,omitempty"`
	Text  string `yaml:"text,omitempty"`
	// Media is a data URL, a remote URL, or a local file path prefixed with "file:".
	Media string `yaml:"media,omitempty"`
}

type edgeSpec struct {
	Source string `yaml:"source"`
	Target string `yaml:"target"`
	Slot   string `yaml:"slot"`
}

func loadGraphFile(path string) (*graph.Store, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return decodeGraph(f)
}

func decodeGraph(r io.Reader) (*graph.Store, error) {
	var gf graphFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&gf); err != nil {
		return nil, fmt.Errorf("decode graph: %w", err)
	}
	g := graph.NewStore()
	for _, n := range gf.Nodes {
		node := graph.Node{ID: n.ID, Kind: graph.Kind(n.Kind), Model: n.Model}
		switch {
		case n.Media != "":
			ref, err := loadMedia(n.Media)
			if err != nil {
				return nil, fmt.Errorf("node %s: %w", n.ID, err)
			}
			node.Value = ref
		case n.Text != "":
			node.Value = graph.Text(n.Text)
		}
		if err := g.AddNode(node); err != nil {
			return nil, fmt.Errorf("node %s: %w", n.ID, err)
		}
	}
	for i, e := range gf.Edges {
		if err := g.AddEdge(graph.Edge{Source: e.Source, Target: e.Target, TargetSlot: e.Slot}); err != nil {
			return nil, fmt.Errorf("edge %d: %w", i, err)
		}
	}
	return g, nil
}

func loadMedia(raw string) (graph.MediaRef, error) {
	if len(raw) > 5 && raw[:5] == "file:" {
		data, err := os.ReadFile(raw[5:])
		if err != nil {
			return graph.MediaRef{}, err
		}
		return media.InlineFromBytes(data, ""), nil
	}
	return media.ParseRef(raw)
}
