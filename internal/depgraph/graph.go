// Package depgraph consumes the externally produced dependency graph.
// The tool does not run the package manager itself; callers feed it the
// resolved graph as JSON, typically generated from a metadata query.
package depgraph

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Source classifies where a dependency comes from. Only registry
// packages can be audited for ownership.
type Source string

const (
	SourceRegistry Source = "registry"
	SourceLocal    Source = "local"
	SourceForeign  Source = "foreign"
)

// Package is one resolved dependency. Extra metadata in the input is
// ignored.
type Package struct {
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`
	Source  Source `json:"source,omitempty"`
}

// Graph is the parsed dependency graph.
type Graph struct {
	Packages []Package `json:"packages"`
}

// inputSchema validates the dependency-graph document before decoding.
// additionalProperties stays open so producers can attach metadata we
// do not consume.
const inputSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "title": "dependency graph input",
  "type": "object",
  "required": ["packages"],
  "properties": {
    "packages": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["name"],
        "properties": {
          "name": {"type": "string", "minLength": 1},
          "version": {"type": "string"},
          "source": {"enum": ["registry", "local", "foreign"]}
        }
      }
    }
  }
}`

var compiledSchema = jsonschema.MustCompileString("depgraph.schema.json", inputSchema)

// Parse reads and validates a dependency-graph document. A name
// appearing at several resolved versions is normal and collapses to one
// request-set entry; entries without a source are treated as registry
// packages.
func Parse(r io.Reader) (*Graph, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading dependency graph: %w", err)
	}

	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("dependency graph is not valid JSON: %w", err)
	}
	if err := compiledSchema.Validate(raw); err != nil {
		return nil, fmt.Errorf("dependency graph failed validation: %w", err)
	}

	var g Graph
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&g); err != nil {
		return nil, fmt.Errorf("decoding dependency graph: %w", err)
	}

	for i := range g.Packages {
		if g.Packages[i].Source == "" {
			g.Packages[i].Source = SourceRegistry
		}
	}
	return &g, nil
}

// RegistryNames returns the sorted, deduplicated names of the registry
// packages, the request set for ownership reconciliation.
func (g *Graph) RegistryNames() []string { return g.namesFrom(SourceRegistry) }

// LocalNames returns the sorted names of local-filesystem packages,
// which are reported but never audited.
func (g *Graph) LocalNames() []string { return g.namesFrom(SourceLocal) }

// ForeignNames returns the sorted names of packages from other sources.
func (g *Graph) ForeignNames() []string { return g.namesFrom(SourceForeign) }

func (g *Graph) namesFrom(src Source) []string {
	seen := make(map[string]bool)
	names := make([]string, 0, len(g.Packages))
	for _, p := range g.Packages {
		if p.Source != src || seen[p.Name] {
			continue
		}
		seen[p.Name] = true
		names = append(names, p.Name)
	}
	sort.Strings(names)
	return names
}
