package report

import (
	"github.com/secure-deps/depowners/internal/depgraph"
	"github.com/secure-deps/depowners/internal/reconcile"
	"github.com/secure-deps/depowners/internal/registry"
)

const invitationWarning = "Note: there may be outstanding publisher invitations. " +
	"crates.io provides no way to list them. " +
	"See https://github.com/rust-lang/crates.io/issues/2868 for more info."

// Document is the structured JSON output: every registry package with
// its publishers, plus the names that were not audited and the ones
// that could not be resolved. Owner lists are sorted by login so the
// document is diffable.
type Document struct {
	Description string                      `json:"description"`
	Warning     string                      `json:"warning"`
	NotAudited  NotAudited                  `json:"not_audited"`
	Packages    map[string][]registry.Owner `json:"packages"`
	Unresolved  []string                    `json:"unresolved,omitempty"`
}

// NotAudited names the dependencies ownership data cannot cover.
type NotAudited struct {
	// LocalPackages come from the local filesystem, not a registry.
	LocalPackages []string `json:"local_packages"`
	// ForeignPackages come from somewhere other than the audited registry.
	ForeignPackages []string `json:"foreign_packages"`
}

// BuildDocument assembles the JSON document from a reconciled mapping
// and the dependency graph it was built for.
func BuildDocument(m *reconcile.Mapping, g *depgraph.Graph) *Document {
	doc := &Document{
		Description: "Dependency packages with the people and teams that can publish them",
		Warning:     invitationWarning,
		NotAudited: NotAudited{
			LocalPackages:   g.LocalNames(),
			ForeignPackages: g.ForeignNames(),
		},
		Packages:   make(map[string][]registry.Owner, m.Len()),
		Unresolved: m.Unresolved(),
	}
	for _, name := range m.Packages() {
		owners, resolved := m.Owners(name)
		if !resolved {
			continue
		}
		registry.SortByLogin(owners)
		doc.Packages[name] = owners
	}
	return doc
}

// Schema is the JSON schema of Document, served by `json --print-schema`.
const Schema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "title": "depowners report",
  "type": "object",
  "required": ["description", "warning", "not_audited", "packages"],
  "properties": {
    "description": {"type": "string"},
    "warning": {"type": "string"},
    "not_audited": {
      "type": "object",
      "required": ["local_packages", "foreign_packages"],
      "properties": {
        "local_packages": {"type": "array", "items": {"type": "string"}},
        "foreign_packages": {"type": "array", "items": {"type": "string"}}
      }
    },
    "packages": {
      "type": "object",
      "additionalProperties": {
        "type": "array",
        "items": {"$ref": "#/$defs/owner"}
      }
    },
    "unresolved": {"type": "array", "items": {"type": "string"}}
  },
  "$defs": {
    "owner": {
      "type": "object",
      "required": ["id", "kind", "login"],
      "properties": {
        "id": {"type": "integer"},
        "kind": {"enum": ["user", "team"]},
        "login": {"type": "string"},
        "name": {"type": "string"},
        "url": {"type": "string"},
        "avatar": {"type": "string"}
      }
    }
  }
}`
