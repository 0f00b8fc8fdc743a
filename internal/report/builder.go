// Package report projects a reconciled ownership mapping into the two
// output shapes: packages with their owners, and owners with their
// packages. Both orderings are deterministic so repeated runs produce
// byte-identical output for diff-based tooling.
package report

import (
	"sort"

	"github.com/secure-deps/depowners/internal/reconcile"
	"github.com/secure-deps/depowners/internal/registry"
)

// PackageOwners is one row of the package-centric report.
type PackageOwners struct {
	Name       string
	Owners     []registry.Owner
	Unresolved bool
}

// OwnerPackages is one row of the owner-centric report.
type OwnerPackages struct {
	Owner    registry.Owner
	Packages []string
}

// ByPackage lists packages sorted by name, each with its owners sorted
// teams first, then by login. Unresolved packages keep their place in
// the list with the flag set, so the report shows what was not audited.
func ByPackage(m *reconcile.Mapping) []PackageOwners {
	out := make([]PackageOwners, 0, m.Len())
	for _, name := range m.Packages() {
		owners, resolved := m.Owners(name)
		row := PackageOwners{Name: name, Unresolved: !resolved}
		if resolved {
			registry.SortForDisplay(owners)
			row.Owners = owners
		}
		out = append(out, row)
	}
	return out
}

// ByOwner transposes the mapping into owner rows. Owners are sorted for
// display: the ones controlling the most packages first, ties broken by
// login. Each package list is sorted. Owners are already deduplicated
// by identity in the mapping, so an owner shared by several packages
// appears exactly once.
func ByOwner(m *reconcile.Mapping) []OwnerPackages {
	rows := transpose(m)
	sort.Slice(rows, func(i, j int) bool {
		if len(rows[i].Packages) != len(rows[j].Packages) {
			return len(rows[i].Packages) > len(rows[j].Packages)
		}
		return ownerLess(rows[i].Owner, rows[j].Owner)
	})
	return rows
}

// ByOwnerDiffable is ByOwner with rows sorted purely by login, the
// stable ordering for diff-friendly output.
func ByOwnerDiffable(m *reconcile.Mapping) []OwnerPackages {
	rows := transpose(m)
	sort.Slice(rows, func(i, j int) bool {
		return ownerLess(rows[i].Owner, rows[j].Owner)
	})
	return rows
}

func transpose(m *reconcile.Mapping) []OwnerPackages {
	byKey := make(map[registry.OwnerKey]*OwnerPackages)
	for _, name := range m.Packages() {
		owners, resolved := m.Owners(name)
		if !resolved {
			continue
		}
		for _, o := range owners {
			row, ok := byKey[o.Key()]
			if !ok {
				row = &OwnerPackages{Owner: o}
				byKey[o.Key()] = row
			}
			row.Packages = append(row.Packages, name)
		}
	}
	out := make([]OwnerPackages, 0, len(byKey))
	for _, row := range byKey {
		sort.Strings(row.Packages)
		out = append(out, *row)
	}
	return out
}

func ownerLess(a, b registry.Owner) bool {
	if a.Login != b.Login {
		return a.Login < b.Login
	}
	return a.ID < b.ID
}
