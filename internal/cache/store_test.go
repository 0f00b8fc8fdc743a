package cache

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func TestAbsentCache(t *testing.T) {
	s := newStore(t)

	if _, ok := s.Age(); ok {
		t.Error("Age should report absent for an empty cache")
	}
	if _, ok := s.Read(); ok {
		t.Error("Read should report absent for an empty cache")
	}
	if s.Fresh(time.Hour) {
		t.Error("an empty cache must not be fresh")
	}
	if etag := s.ETag(); etag != "" {
		t.Errorf("unexpected etag %q", etag)
	}
}

func TestReplaceThenRead(t *testing.T) {
	s := newStore(t)
	data := []byte("snapshot bytes")

	if err := s.Replace(data, time.Now(), `"etag-1"`); err != nil {
		t.Fatalf("Replace: %v", err)
	}

	got, ok := s.Read()
	if !ok {
		t.Fatal("Read failed after Replace")
	}
	if string(got) != string(data) {
		t.Errorf("Read = %q, want %q", got, data)
	}
	if etag := s.ETag(); etag != `"etag-1"` {
		t.Errorf("ETag = %q, want %q", etag, `"etag-1"`)
	}
	if !s.Fresh(time.Hour) {
		t.Error("cache should be fresh right after Replace")
	}
	if s.Fresh(0) {
		t.Error("cache cannot be fresh against a zero threshold")
	}
}

func TestAgeMonotonic(t *testing.T) {
	s := newStore(t)
	if err := s.Replace([]byte("x"), time.Now().Add(-time.Minute), ""); err != nil {
		t.Fatalf("Replace: %v", err)
	}

	age1, ok := s.Age()
	if !ok {
		t.Fatal("Age not ok")
	}
	age2, ok := s.Age()
	if !ok {
		t.Fatal("Age not ok")
	}
	if age2 < age1 {
		t.Errorf("age went backwards: %v then %v", age1, age2)
	}
	if age1 < time.Minute {
		t.Errorf("age %v should be at least a minute", age1)
	}
}

func TestCorruptMetadataIsAbsent(t *testing.T) {
	s := newStore(t)
	if err := os.WriteFile(filepath.Join(s.Dir(), metadataFile), []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, ok := s.Age(); ok {
		t.Error("corrupt metadata must read as absent, not as an error or a hit")
	}
}

func TestMetadataWithoutSnapshotIsAbsent(t *testing.T) {
	s := newStore(t)
	if err := s.Replace([]byte("data"), time.Now(), ""); err != nil {
		t.Fatal(err)
	}
	if err := os.Remove(filepath.Join(s.Dir(), snapshotFile)); err != nil {
		t.Fatal(err)
	}
	if _, ok := s.Age(); ok {
		t.Error("metadata without snapshot bytes must read as absent")
	}
}

func TestTruncatedSnapshotIsAbsent(t *testing.T) {
	s := newStore(t)
	if err := s.Replace([]byte("full snapshot contents"), time.Now(), ""); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(s.Dir(), snapshotFile), []byte("short"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, ok := s.Read(); ok {
		t.Error("snapshot bytes that disagree with metadata size must read as absent")
	}
}

func TestStagedPartFilesAreInvisible(t *testing.T) {
	s := newStore(t)
	old := []byte("previous snapshot")
	if err := s.Replace(old, time.Now(), `"old"`); err != nil {
		t.Fatal(err)
	}

	// Simulate a replace interrupted before commit: staged temp files
	// exist but neither rename happened.
	if err := os.WriteFile(filepath.Join(s.Dir(), snapshotFile+partSuffix), []byte("half-written"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(s.Dir(), metadataFile+partSuffix), []byte("{}"), 0644); err != nil {
		t.Fatal(err)
	}

	got, ok := s.Read()
	if !ok {
		t.Fatal("previous snapshot should still be readable")
	}
	if string(got) != string(old) {
		t.Errorf("Read = %q, want the previous snapshot", got)
	}
	if s.ETag() != `"old"` {
		t.Errorf("ETag = %q, want the previous etag", s.ETag())
	}
}

func TestReplaceOverwrites(t *testing.T) {
	s := newStore(t)
	if err := s.Replace([]byte("one"), time.Now().Add(-2*time.Hour), `"one"`); err != nil {
		t.Fatal(err)
	}
	if err := s.Replace([]byte("two"), time.Now(), `"two"`); err != nil {
		t.Fatal(err)
	}

	got, ok := s.Read()
	if !ok || string(got) != "two" {
		t.Fatalf("Read = %q, %v; want \"two\"", got, ok)
	}
	age, ok := s.Age()
	if !ok || age > time.Hour {
		t.Errorf("age = %v, %v; the new timestamp should have replaced the old one", age, ok)
	}

	// No stray temp files after a successful commit.
	for _, name := range []string{snapshotFile + partSuffix, metadataFile + partSuffix} {
		if _, err := os.Stat(filepath.Join(s.Dir(), name)); !os.IsNotExist(err) {
			t.Errorf("staging file %s left behind", name)
		}
	}
}

func TestNewRejectsFilePath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "occupied")
	if err := os.WriteFile(path, []byte("file"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := New(path); err == nil {
		t.Error("New should fail when the cache path is a regular file")
	}
}
