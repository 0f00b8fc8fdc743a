// Package registry holds the domain types for registry ownership facts
// and the live per-package ownership client.
package registry

import "sort"

// OwnerKind distinguishes individual accounts from teams.
type OwnerKind string

const (
	KindUser OwnerKind = "user"
	KindTeam OwnerKind = "team"
)

// Owner is an account or team with publish rights over a package, as
// reported by the registry. Owners are immutable facts identified by
// Key; user ids and team ids are independent sequences, so the numeric
// id alone does not name an owner.
type Owner struct {
	ID     int64     `json:"id"`
	Kind   OwnerKind `json:"kind"`
	Login  string    `json:"login"`
	Name   string    `json:"name,omitempty"`
	URL    string    `json:"url,omitempty"`
	Avatar string    `json:"avatar,omitempty"`
}

// OwnerKey identifies an owner across packages. The registry assigns
// user and team ids from separate sequences, so a user and a team can
// share a numeric id without being the same owner.
type OwnerKey struct {
	ID   int64
	Kind OwnerKind
}

// Key returns the owner's identity.
func (o Owner) Key() OwnerKey {
	return OwnerKey{ID: o.ID, Kind: o.Kind}
}

// SortByLogin orders owners by login, breaking ties by id. This is the
// ordering contract for diff-friendly output.
func SortByLogin(owners []Owner) {
	sort.Slice(owners, func(i, j int) bool {
		if owners[i].Login != owners[j].Login {
			return owners[i].Login < owners[j].Login
		}
		return owners[i].ID < owners[j].ID
	})
}

// SortForDisplay orders owners with teams first, then by login. The
// package-centric report puts teams ahead of individuals because a team
// grants publish rights to an unknown number of people.
func SortForDisplay(owners []Owner) {
	sort.Slice(owners, func(i, j int) bool {
		if owners[i].Kind != owners[j].Kind {
			return owners[i].Kind == KindTeam
		}
		if owners[i].Login != owners[j].Login {
			return owners[i].Login < owners[j].Login
		}
		return owners[i].ID < owners[j].ID
	})
}

// Dedupe removes owners that share an identity, keeping the first
// occurrence. The input order is preserved.
func Dedupe(owners []Owner) []Owner {
	seen := make(map[OwnerKey]bool, len(owners))
	out := owners[:0]
	for _, o := range owners {
		if seen[o.Key()] {
			continue
		}
		seen[o.Key()] = true
		out = append(out, o)
	}
	return out
}
