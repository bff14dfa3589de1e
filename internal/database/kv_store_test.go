package database

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/kdimtricp/humetube/internal/storage"
)

func TestKVStore_SQLite(t *testing.T) {
	db, cleanup := setupSQLiteDB(t)
	defer cleanup()

	runKVStoreTests(t, NewKVStore(db))
}

func TestKVStore_Postgres(t *testing.T) {
	db, cleanup := setupPostgresDB(t)
	defer cleanup()

	runKVStoreTests(t, NewKVStore(db))
}

func runKVStoreTests(t *testing.T, store *KVStore) {
	ctx := context.Background()

	t.Run("SetGetOverwrite", func(t *testing.T) {
		if err := store.Set(ctx, "analyses/abc", []byte("first")); err != nil {
			t.Fatalf("Failed to set: %v", err)
		}
		if err := store.Set(ctx, "analyses/abc", []byte("second")); err != nil {
			t.Fatalf("Failed to overwrite: %v", err)
		}

		value, err := store.Get(ctx, "analyses/abc")
		if err != nil {
			t.Fatalf("Failed to get: %v", err)
		}
		if string(value) != "second" {
			t.Errorf("Expected overwritten value, got %s", value)
		}
	})

	t.Run("GetMissing", func(t *testing.T) {
		_, err := store.Get(ctx, "analyses/nope")
		if !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("Expected storage.ErrNotFound, got %v", err)
		}
	})

	t.Run("ListByPrefixInKeyOrder", func(t *testing.T) {
		for _, ts := range []int{30, 4, 15} {
			key := fmt.Sprintf("predictions/vid/%012d/job/0000", ts)
			if err := store.Set(ctx, key, []byte(key)); err != nil {
				t.Fatalf("Failed to set %s: %v", key, err)
			}
		}
		// Same leading characters, different video.
		if err := store.Set(ctx, "predictions/vid2/000000000001/job/0000", []byte("x")); err != nil {
			t.Fatalf("Failed to set: %v", err)
		}

		entries, err := store.List(ctx, "predictions/vid/")
		if err != nil {
			t.Fatalf("Failed to list: %v", err)
		}
		if len(entries) != 3 {
			t.Fatalf("Expected 3 entries, got %d", len(entries))
		}
		for i, ts := range []int{4, 15, 30} {
			expected := fmt.Sprintf("predictions/vid/%012d/job/0000", ts)
			if entries[i].Key != expected {
				t.Errorf("Expected %s at index %d, got %s", expected, i, entries[i].Key)
			}
		}
	})

	t.Run("ListPrefixWithLikeWildcards", func(t *testing.T) {
		if err := store.Set(ctx, "odd/a%b", []byte("1")); err != nil {
			t.Fatalf("Failed to set: %v", err)
		}
		if err := store.Set(ctx, "odd/axb", []byte("2")); err != nil {
			t.Fatalf("Failed to set: %v", err)
		}

		entries, err := store.List(ctx, "odd/a%")
		if err != nil {
			t.Fatalf("Failed to list: %v", err)
		}
		if len(entries) != 1 || entries[0].Key != "odd/a%b" {
			t.Errorf("Expected only odd/a%%b, got %+v", entries)
		}
	})

	t.Run("SetAllAndDelete", func(t *testing.T) {
		err := store.SetAll(ctx, []storage.Entry{
			{Key: "snapshots/j1", Value: []byte("a")},
			{Key: "snapshots/j2", Value: []byte("b")},
		})
		if err != nil {
			t.Fatalf("Failed to set all: %v", err)
		}

		if err := store.Delete(ctx, "snapshots/j1"); err != nil {
			t.Fatalf("Failed to delete: %v", err)
		}

		entries, err := store.List(ctx, "snapshots/")
		if err != nil {
			t.Fatalf("Failed to list: %v", err)
		}
		if len(entries) != 1 || entries[0].Key != "snapshots/j2" {
			t.Errorf("Expected only snapshots/j2, got %+v", entries)
		}
	})

	t.Run("SetAllRollsBack", func(t *testing.T) {
		err := store.SetAll(ctx, []storage.Entry{
			{Key: "batch/a", Value: []byte("x")},
			{Key: "batch/b", Value: nil},
		})
		if err == nil {
			t.Fatal("Expected error for nil value")
		}

		entries, err := store.List(ctx, "batch/")
		if err != nil {
			t.Fatalf("Failed to list: %v", err)
		}
		if len(entries) != 0 {
			t.Errorf("Expected rolled back batch to leave no entries, got %+v", entries)
		}
	})

	t.Run("ListEmpty", func(t *testing.T) {
		entries, err := store.List(ctx, "nothing-here/")
		if err != nil {
			t.Fatalf("Failed to list: %v", err)
		}
		if len(entries) != 0 {
			t.Errorf("Expected no entries, got %d", len(entries))
		}
	})
}
