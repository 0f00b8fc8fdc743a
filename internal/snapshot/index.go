// Package snapshot retrieves the registry's bulk ownership dump and
// parses it into fast in-memory indices.
package snapshot

import (
	"archive/tar"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"strconv"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/ulikunitz/xz"

	"github.com/secure-deps/depowners/internal/registry"
)

// Table names inside the dump archive. The archive nests them under a
// dated directory, so matching is by base name.
const (
	cratesTable      = "crates.csv"
	crateOwnersTable = "crate_owners.csv"
	usersTable       = "users.csv"
	teamsTable       = "teams.csv"
	metadataEntry    = "metadata.json"
)

// Owner-kind codes used by the crate_owners table.
const (
	ownerKindUser = 0
	ownerKindTeam = 1
)

// Index is the parsed snapshot: package name to owner links plus the
// owner identity tables. It is immutable once built.
type Index struct {
	// CreatedAt is the dump's own creation time, when the archive
	// carries one. The cache freshness decision uses the retrieval
	// timestamp instead; this is informational.
	CreatedAt time.Time

	crateIDs map[string]int64
	links    map[int64][]ownerLink
	users    map[int64]registry.Owner
	teams    map[int64]registry.Owner
}

type ownerLink struct {
	ownerID int64
	kind    int
}

// BuildIndex decompresses and parses a dump archive. A missing required
// table or column fails the whole build; unknown tables and extra
// columns are ignored for forward compatibility.
func BuildIndex(data []byte) (*Index, error) {
	ix := &Index{
		crateIDs: make(map[string]int64),
		links:    make(map[int64][]ownerLink),
		users:    make(map[int64]registry.Owner),
		teams:    make(map[int64]registry.Owner),
	}

	decomp, err := newDecompressor(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	required := []string{cratesTable, crateOwnersTable, usersTable, teamsTable}

	tr := tar.NewReader(decomp)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading snapshot archive: %w", err)
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}

		name := path.Base(hdr.Name)
		switch name {
		case cratesTable:
			err = ix.parseCrates(tr)
		case crateOwnersTable:
			err = ix.parseCrateOwners(tr)
		case usersTable:
			err = ix.parseUsers(tr)
		case teamsTable:
			err = ix.parseTeams(tr)
		case metadataEntry:
			err = ix.parseMetadata(tr)
		default:
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", name, err)
		}
		seen[name] = true

		// The dump contains many more tables than we use. Once every
		// required one has been captured, stop reading.
		if allSeen(seen, required) && seen[metadataEntry] {
			break
		}
	}

	for _, table := range required {
		if !seen[table] {
			return nil, fmt.Errorf("snapshot archive is missing required table %s", table)
		}
	}
	return ix, nil
}

// OwnersOf returns the owner set of a package by exact name. found is
// false only when the package has no record in the snapshot at all; a
// known package with zero owner links yields an empty set with
// found=true, which is a valid registry state.
func (ix *Index) OwnersOf(name string) ([]registry.Owner, bool) {
	id, ok := ix.crateIDs[name]
	if !ok {
		return nil, false
	}
	links := ix.links[id]
	owners := make([]registry.Owner, 0, len(links))
	for _, l := range links {
		switch l.kind {
		case ownerKindUser:
			if u, ok := ix.users[l.ownerID]; ok {
				owners = append(owners, u)
			}
		case ownerKindTeam:
			if t, ok := ix.teams[l.ownerID]; ok {
				owners = append(owners, t)
			}
		}
	}
	return registry.Dedupe(owners), true
}

// Packages returns the number of packages covered by the snapshot.
func (ix *Index) Packages() int { return len(ix.crateIDs) }

func (ix *Index) parseCrates(r io.Reader) error {
	return forEachRow(r, []string{"id", "name"}, func(get func(string) string) error {
		id, err := strconv.ParseInt(get("id"), 10, 64)
		if err != nil {
			return fmt.Errorf("bad crate id %q: %w", get("id"), err)
		}
		ix.crateIDs[get("name")] = id
		return nil
	})
}

func (ix *Index) parseCrateOwners(r io.Reader) error {
	cols := []string{"crate_id", "owner_id", "owner_kind"}
	return forEachRow(r, cols, func(get func(string) string) error {
		crateID, err := strconv.ParseInt(get("crate_id"), 10, 64)
		if err != nil {
			return fmt.Errorf("bad crate_id %q: %w", get("crate_id"), err)
		}
		ownerID, err := strconv.ParseInt(get("owner_id"), 10, 64)
		if err != nil {
			return fmt.Errorf("bad owner_id %q: %w", get("owner_id"), err)
		}
		kind, err := strconv.Atoi(get("owner_kind"))
		if err != nil {
			return fmt.Errorf("bad owner_kind %q: %w", get("owner_kind"), err)
		}
		ix.links[crateID] = append(ix.links[crateID], ownerLink{ownerID: ownerID, kind: kind})
		return nil
	})
}

func (ix *Index) parseUsers(r io.Reader) error {
	return forEachRow(r, []string{"id", "gh_login"}, func(get func(string) string) error {
		id, err := strconv.ParseInt(get("id"), 10, 64)
		if err != nil {
			return fmt.Errorf("bad user id %q: %w", get("id"), err)
		}
		ix.users[id] = registry.Owner{
			ID:     id,
			Kind:   registry.KindUser,
			Login:  get("gh_login"),
			Name:   get("name"),
			Avatar: get("gh_avatar"),
		}
		return nil
	})
}

func (ix *Index) parseTeams(r io.Reader) error {
	return forEachRow(r, []string{"id", "login"}, func(get func(string) string) error {
		id, err := strconv.ParseInt(get("id"), 10, 64)
		if err != nil {
			return fmt.Errorf("bad team id %q: %w", get("id"), err)
		}
		ix.teams[id] = registry.Owner{
			ID:     id,
			Kind:   registry.KindTeam,
			Login:  get("login"),
			Name:   get("name"),
			Avatar: get("avatar"),
		}
		return nil
	})
}

func (ix *Index) parseMetadata(r io.Reader) error {
	var meta struct {
		Timestamp time.Time `json:"timestamp"`
	}
	// The dump's own metadata is informational; a malformed record does
	// not invalidate the tables.
	if err := json.NewDecoder(r).Decode(&meta); err == nil {
		ix.CreatedAt = meta.Timestamp
	}
	return nil
}

// forEachRow reads one csv table with a header row. Columns are accessed
// by name so table layout changes do not break parsing; only a missing
// required column is a structural failure.
func forEachRow(r io.Reader, required []string, row func(get func(string) string) error) error {
	cr := csv.NewReader(r)
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		return fmt.Errorf("reading table header: %w", err)
	}
	colIdx := make(map[string]int, len(header))
	for i, col := range header {
		colIdx[col] = i
	}
	for _, col := range required {
		if _, ok := colIdx[col]; !ok {
			return fmt.Errorf("missing required column %q", col)
		}
	}

	for {
		rec, err := cr.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading table row: %w", err)
		}
		get := func(col string) string {
			i, ok := colIdx[col]
			if !ok || i >= len(rec) {
				return ""
			}
			return rec[i]
		}
		if err := row(get); err != nil {
			return err
		}
	}
}

// newDecompressor sniffs the archive's compression from its magic bytes.
// The registry publishes gzip today; xz is accepted as well since dump
// mirrors have used it.
func newDecompressor(r *bytes.Reader) (io.Reader, error) {
	magic := make([]byte, 6)
	n, _ := r.Read(magic)
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	switch {
	case n >= 2 && magic[0] == 0x1f && magic[1] == 0x8b:
		gz, err := gzip.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("opening gzip stream: %w", err)
		}
		return gz, nil
	case n >= 6 && bytes.Equal(magic, []byte{0xfd, '7', 'z', 'X', 'Z', 0x00}):
		xr, err := xz.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("opening xz stream: %w", err)
		}
		return xr, nil
	default:
		return nil, fmt.Errorf("snapshot archive is neither gzip nor xz compressed")
	}
}

func allSeen(seen map[string]bool, names []string) bool {
	for _, n := range names {
		if !seen[n] {
			return false
		}
	}
	return true
}
