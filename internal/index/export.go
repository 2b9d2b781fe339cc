package index

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"archcheck/internal/graph"
)

// ExportJSON writes the graph summary as indented JSON.
func ExportJSON(g *graph.Graph, w io.Writer) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(g.Summarize()); err != nil {
		return fmt.Errorf("failed to encode graph: %w", err)
	}
	return nil
}

// ExportFile writes the graph summary to a JSON file.
func ExportFile(g *graph.Graph, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create graph file: %w", err)
	}
	defer f.Close()
	return ExportJSON(g, f)
}

// ImportFile reads a summary written by ExportFile.
func ImportFile(path string) (*graph.Summary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open graph file: %w", err)
	}
	defer f.Close()

	var s graph.Summary
	if err := json.NewDecoder(f).Decode(&s); err != nil {
		return nil, fmt.Errorf("failed to decode graph: %w", err)
	}
	return &s, nil
}
