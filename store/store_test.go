package store

import (
	"context"
	"path/filepath"
	"testing"
)

func newSQLiteStorage(t *testing.T) SQLiteStorage {
	s, err := NewSQLiteStorage(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatalf("Could not open sqlite storage: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func storages(t *testing.T) map[string]Storage {
	return map[string]Storage{
		"memory": NewMemStorage(),
		"sqlite": newSQLiteStorage(t),
	}
}

func TestPutAndMatch(t *testing.T) {
	ctx := context.Background()
	for name, storage := range storages(t) {
		t.Run(name, func(t *testing.T) {
			s, err := storage.Open(ctx, "v1")
			if err != nil {
				t.Fatal(err)
			}
			if _, ok, _ := s.Match(ctx, "GET:/"); ok {
				t.Fatal("Empty store should not match")
			}
			if err := s.Put(ctx, "GET:/", []byte("first")); err != nil {
				t.Fatal(err)
			}
			if err := s.Put(ctx, "GET:/", []byte("second")); err != nil {
				t.Fatal(err)
			}
			bytes, ok, err := s.Match(ctx, "GET:/")
			if err != nil || !ok || string(bytes) != "second" {
				t.Fatalf("Match returned %q %v %v", bytes, ok, err)
			}
			if s.Name() != "v1" {
				t.Fatalf("Name is %s", s.Name())
			}
		})
	}
}

func TestStoresAreIsolated(t *testing.T) {
	ctx := context.Background()
	for name, storage := range storages(t) {
		t.Run(name, func(t *testing.T) {
			v1, _ := storage.Open(ctx, "v1")
			v2, _ := storage.Open(ctx, "v2")
			v1.Put(ctx, "GET:/page", []byte("v1"))
			if _, ok, _ := v2.Match(ctx, "GET:/page"); ok {
				t.Fatal("Entry leaked into other store")
			}
			keys, err := storage.Keys(ctx)
			if err != nil {
				t.Fatal(err)
			}
			if len(keys) != 2 || keys[0] != "v1" || keys[1] != "v2" {
				t.Fatalf("Keys are %v", keys)
			}
		})
	}
}

func TestDeleteStore(t *testing.T) {
	ctx := context.Background()
	for name, storage := range storages(t) {
		t.Run(name, func(t *testing.T) {
			s, _ := storage.Open(ctx, "v1")
			s.Put(ctx, "GET:/a", []byte("a"))
			s.Put(ctx, "GET:/b", []byte("b"))

			if deleted, err := storage.Delete(ctx, "v1"); err != nil || !deleted {
				t.Fatalf("Delete returned %v %v", deleted, err)
			}
			if deleted, err := storage.Delete(ctx, "v1"); err != nil || deleted {
				t.Fatalf("Second delete returned %v %v", deleted, err)
			}
			if keys, _ := storage.Keys(ctx); len(keys) != 0 {
				t.Fatalf("Keys after delete are %v", keys)
			}
			// the old handle misses, and writing recreates the store empty
			if _, ok, _ := s.Match(ctx, "GET:/a"); ok {
				t.Fatal("Deleted store still matches")
			}
			if err := s.Put(ctx, "GET:/c", []byte("c")); err != nil {
				t.Fatal(err)
			}
			if keys, _ := s.Keys(ctx); len(keys) != 1 || keys[0] != "GET:/c" {
				t.Fatalf("Entries after recreate are %v", keys)
			}
			if keys, _ := storage.Keys(ctx); len(keys) != 1 {
				t.Fatalf("Stores after recreate are %v", keys)
			}
		})
	}
}

func TestDeleteEntry(t *testing.T) {
	ctx := context.Background()
	for name, storage := range storages(t) {
		t.Run(name, func(t *testing.T) {
			s, _ := storage.Open(ctx, "v1")
			s.Put(ctx, "GET:/a", []byte("a"))
			if deleted, err := s.Delete(ctx, "GET:/a"); err != nil || !deleted {
				t.Fatalf("Delete returned %v %v", deleted, err)
			}
			if deleted, _ := s.Delete(ctx, "GET:/a"); deleted {
				t.Fatal("Deleted twice")
			}
		})
	}
}

func TestHandleCreatesOnWrite(t *testing.T) {
	ctx := context.Background()
	for name, storage := range storages(t) {
		t.Run(name, func(t *testing.T) {
			s := storage.Handle("v1")
			if _, ok, err := s.Match(ctx, "GET:/a"); ok || err != nil {
				t.Fatalf("Match returned %v %v", ok, err)
			}
			if keys, _ := storage.Keys(ctx); len(keys) != 0 {
				t.Fatalf("Reading created stores %v", keys)
			}
			if err := s.Put(ctx, "GET:/a", []byte("a")); err != nil {
				t.Fatal(err)
			}
			if keys, _ := storage.Keys(ctx); len(keys) != 1 || keys[0] != "v1" {
				t.Fatalf("Stores are %v", keys)
			}
			if bytes, ok, _ := s.Match(ctx, "GET:/a"); !ok || string(bytes) != "a" {
				t.Fatalf("Match returned %s %v", bytes, ok)
			}
		})
	}
}
