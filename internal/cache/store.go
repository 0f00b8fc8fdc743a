// Package cache owns the on-disk snapshot and its age metadata. The
// store never reports corruption as an error: a damaged or half-present
// cache is simply absent, and the caller falls back to fetching.
package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	snapshotFile = "snapshot.tar.gz"
	metadataFile = "metadata.json"
	partSuffix   = ".part"
)

// Store holds one snapshot archive plus one metadata record in a
// caller-supplied directory. Replace is the only writer; concurrent
// readers in other invocations rely on the atomic-rename discipline, not
// on locking.
type Store struct {
	dir string
}

// metadata is written next to the snapshot bytes. Size lets readers
// detect a snapshot/metadata mismatch left by an unrelated writer.
type metadata struct {
	Timestamp time.Time `json:"timestamp"`
	ETag      string    `json:"etag,omitempty"`
	Size      int64     `json:"size"`
}

// New opens a store rooted at dir, creating the directory if needed.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating cache directory %s: %w", dir, err)
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("cache path %s is not a directory", dir)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the store's directory.
func (s *Store) Dir() string { return s.dir }

// Age returns how old the cached snapshot is. ok is false when the cache
// is absent, corrupt, or the metadata does not match the snapshot bytes.
func (s *Store) Age() (time.Duration, bool) {
	meta, ok := s.loadMetadata()
	if !ok {
		return 0, false
	}
	age := time.Since(meta.Timestamp)
	if age < 0 {
		// Clock went backwards since the write. Treat as brand new.
		age = 0
	}
	return age, true
}

// Fresh reports whether the cache is present and no older than maxAge.
func (s *Store) Fresh(maxAge time.Duration) bool {
	age, ok := s.Age()
	return ok && age <= maxAge
}

// ETag returns the entity tag recorded with the snapshot, if any.
func (s *Store) ETag() string {
	meta, ok := s.loadMetadata()
	if !ok {
		return ""
	}
	return meta.ETag
}

// Read returns the cached snapshot bytes. ok is false when the cache is
// absent or does not match its metadata.
func (s *Store) Read() ([]byte, bool) {
	meta, ok := s.loadMetadata()
	if !ok {
		return nil, false
	}
	data, err := os.ReadFile(filepath.Join(s.dir, snapshotFile))
	if err != nil || int64(len(data)) != meta.Size {
		return nil, false
	}
	return data, true
}

// Replace installs a new snapshot. Both files are written to temp names
// first and renamed into place, snapshot bytes before metadata, so that
// a reader can never observe fresh metadata paired with absent or
// partial snapshot bytes. On any failure the previous cache contents are
// left untouched.
func (s *Store) Replace(data []byte, fetchedAt time.Time, etag string) (err error) {
	snapPart := filepath.Join(s.dir, snapshotFile+partSuffix)
	metaPart := filepath.Join(s.dir, metadataFile+partSuffix)
	defer func() {
		if err != nil {
			os.Remove(snapPart)
			os.Remove(metaPart)
		}
	}()

	if err = writeFileSync(snapPart, data); err != nil {
		return fmt.Errorf("staging snapshot: %w", err)
	}

	metaBytes, err := json.Marshal(metadata{
		Timestamp: fetchedAt,
		ETag:      etag,
		Size:      int64(len(data)),
	})
	if err != nil {
		return err
	}
	if err = writeFileSync(metaPart, metaBytes); err != nil {
		return fmt.Errorf("staging metadata: %w", err)
	}

	// Commit order matters: metadata last, so an interruption between
	// the two renames leaves old metadata that disagrees with the new
	// bytes on size, which readers treat as cache-absent rather than as
	// a silently wrong snapshot.
	if err = os.Rename(snapPart, filepath.Join(s.dir, snapshotFile)); err != nil {
		return fmt.Errorf("committing snapshot: %w", err)
	}
	if err = os.Rename(metaPart, filepath.Join(s.dir, metadataFile)); err != nil {
		return fmt.Errorf("committing metadata: %w", err)
	}
	return nil
}

func (s *Store) loadMetadata() (metadata, bool) {
	var meta metadata
	data, err := os.ReadFile(filepath.Join(s.dir, metadataFile))
	if err != nil {
		return meta, false
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return meta, false
	}
	if meta.Timestamp.IsZero() {
		return meta, false
	}
	info, err := os.Stat(filepath.Join(s.dir, snapshotFile))
	if err != nil || info.Size() != meta.Size {
		return meta, false
	}
	return meta, true
}

func writeFileSync(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
