// Package snaptest builds small dump archives for tests.
package snaptest

import (
	"archive/tar"
	"bytes"

	"github.com/klauspost/compress/gzip"
)

// Entry is one file inside a test dump archive.
type Entry struct {
	Name string
	Body string
}

// Dump builds a gzip-compressed tar archive with the given entries, in
// order, mimicking the registry's bulk dump layout.
func Dump(entries ...Entry) []byte {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	for _, e := range entries {
		hdr := &tar.Header{
			Name: e.Name,
			Mode: 0644,
			Size: int64(len(e.Body)),
		}
		if err := tw.WriteHeader(hdr); err != nil {
			panic(err)
		}
		if _, err := tw.Write([]byte(e.Body)); err != nil {
			panic(err)
		}
	}
	if err := tw.Close(); err != nil {
		panic(err)
	}
	if err := gz.Close(); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

// Standard returns a minimal valid dump: left-pad owned by user alice
// (id 7), quiet-pkg known with zero owners, shared-lib owned by alice
// and team github:acme:publishers (id 42).
func Standard() []byte {
	return Dump(
		Entry{Name: "2024-06-01/data/crates.csv", Body: "id,name,repository\n" +
			"1,left-pad,\n" +
			"2,quiet-pkg,\n" +
			"3,shared-lib,\n"},
		Entry{Name: "2024-06-01/data/crate_owners.csv", Body: "crate_id,owner_id,owner_kind\n" +
			"1,7,0\n" +
			"3,7,0\n" +
			"3,42,1\n"},
		Entry{Name: "2024-06-01/data/users.csv", Body: "id,gh_login,name,gh_avatar\n" +
			"7,alice,Alice Example,\n"},
		Entry{Name: "2024-06-01/data/teams.csv", Body: "id,login,name,avatar\n" +
			"42,github:acme:publishers,Acme Publishers,\n"},
		Entry{Name: "2024-06-01/metadata.json", Body: `{"timestamp":"2024-06-01T00:00:00Z"}`},
	)
}
