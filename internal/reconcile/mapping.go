// Package reconcile merges cached snapshot data and live registry
// lookups into one consistent ownership mapping.
package reconcile

import (
	"sort"

	"github.com/secure-deps/depowners/internal/registry"
)

// Mapping is the reconciliation result: for every requested package,
// either a resolved owner set (possibly empty) or the error that left it
// unresolved. It is built per invocation and never persisted.
//
// Owners are interned by identity: the same owner appearing for
// multiple packages is the same Owner value, not a copy, so report
// projections can group by identity safely. A user and a team sharing
// a numeric id stay distinct owners.
type Mapping struct {
	entries    map[string]entry
	identities map[registry.OwnerKey]registry.Owner
}

type entry struct {
	owners []registry.OwnerKey
	err    error
}

// NewMapping returns an empty mapping.
func NewMapping() *Mapping {
	return &Mapping{
		entries:    make(map[string]entry),
		identities: make(map[registry.OwnerKey]registry.Owner),
	}
}

// Add records a resolved owner set for one package, interning owners
// by identity.
func (m *Mapping) Add(name string, owners []registry.Owner) {
	keys := make([]registry.OwnerKey, 0, len(owners))
	for _, o := range owners {
		if _, ok := m.identities[o.Key()]; !ok {
			m.identities[o.Key()] = o
		}
		keys = append(keys, o.Key())
	}
	m.entries[name] = entry{owners: keys}
}

// MarkUnresolved records that every lookup for the package failed.
func (m *Mapping) MarkUnresolved(name string, err error) {
	m.entries[name] = entry{err: err}
}

// Len returns the number of requested packages in the mapping.
func (m *Mapping) Len() int { return len(m.entries) }

// Packages returns all requested package names, sorted.
func (m *Mapping) Packages() []string {
	names := make([]string, 0, len(m.entries))
	for name := range m.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Owners returns the resolved owner set of one package. resolved is
// false when every lookup for the package failed; an empty slice with
// resolved=true means the registry reports no owners, which is a
// different fact.
func (m *Mapping) Owners(name string) ([]registry.Owner, bool) {
	e, ok := m.entries[name]
	if !ok || e.err != nil {
		return nil, false
	}
	owners := make([]registry.Owner, 0, len(e.owners))
	for _, key := range e.owners {
		owners = append(owners, m.identities[key])
	}
	return owners, true
}

// Unresolved returns the packages whose lookups all failed, sorted.
func (m *Mapping) Unresolved() []string {
	var names []string
	for name, e := range m.entries {
		if e.err != nil {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// UnresolvedCause returns the error recorded for an unresolved package.
func (m *Mapping) UnresolvedCause(name string) error {
	return m.entries[name].err
}
