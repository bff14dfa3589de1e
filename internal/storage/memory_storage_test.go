package storage

import (
	"context"
	"errors"
	"testing"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	t.Run("SetAndGet", func(t *testing.T) {
		if err := store.Set(ctx, "analyses/abc", []byte(`{"a":1}`)); err != nil {
			t.Fatalf("Failed to set key: %v", err)
		}

		value, err := store.Get(ctx, "analyses/abc")
		if err != nil {
			t.Fatalf("Failed to get key: %v", err)
		}
		if string(value) != `{"a":1}` {
			t.Errorf("Expected stored value, got %s", value)
		}
	})

	t.Run("GetMissing", func(t *testing.T) {
		_, err := store.Get(ctx, "analyses/missing")
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("Expected ErrNotFound, got %v", err)
		}
	})

	t.Run("ListOrderedByKey", func(t *testing.T) {
		keys := []string{
			"predictions/v1/000000000010/j/0000",
			"predictions/v1/000000000002/j/0000",
			"predictions/v10/000000000001/j/0000",
			"predictions/v1/000000000005/j/0000",
		}
		for _, k := range keys {
			if err := store.Set(ctx, k, []byte(k)); err != nil {
				t.Fatalf("Failed to set %s: %v", k, err)
			}
		}

		entries, err := store.List(ctx, "predictions/v1/")
		if err != nil {
			t.Fatalf("Failed to list: %v", err)
		}
		if len(entries) != 3 {
			t.Fatalf("Expected 3 entries, got %d", len(entries))
		}

		expected := []string{
			"predictions/v1/000000000002/j/0000",
			"predictions/v1/000000000005/j/0000",
			"predictions/v1/000000000010/j/0000",
		}
		for i, e := range entries {
			if e.Key != expected[i] {
				t.Errorf("Expected key %s at %d, got %s", expected[i], i, e.Key)
			}
		}
	})

	t.Run("SetAll", func(t *testing.T) {
		err := store.SetAll(ctx, []Entry{
			{Key: "batch/a", Value: []byte("1")},
			{Key: "batch/b", Value: []byte("2")},
		})
		if err != nil {
			t.Fatalf("Failed to set all: %v", err)
		}

		entries, err := store.List(ctx, "batch/")
		if err != nil {
			t.Fatalf("Failed to list: %v", err)
		}
		if len(entries) != 2 {
			t.Errorf("Expected 2 entries, got %d", len(entries))
		}
	})

	t.Run("Delete", func(t *testing.T) {
		if err := store.Delete(ctx, "analyses/abc"); err != nil {
			t.Fatalf("Failed to delete: %v", err)
		}
		if _, err := store.Get(ctx, "analyses/abc"); !errors.Is(err, ErrNotFound) {
			t.Errorf("Expected key to be deleted, got %v", err)
		}
	})

	t.Run("ReturnedValuesAreCopies", func(t *testing.T) {
		if err := store.Set(ctx, "copy", []byte("abc")); err != nil {
			t.Fatalf("Failed to set: %v", err)
		}
		value, _ := store.Get(ctx, "copy")
		value[0] = 'x'

		again, _ := store.Get(ctx, "copy")
		if string(again) != "abc" {
			t.Errorf("Stored value was mutated through returned slice: %s", again)
		}
	})
}

func TestPrefixEnd(t *testing.T) {
	tests := []struct {
		prefix   string
		expected string
	}{
		{"predictions/abc/", "predictions/abc0"},
		{"a", "b"},
		{"", ""},
		{"a\xff", "b"},
		{"\xff\xff", ""},
	}

	for _, tt := range tests {
		if got := PrefixEnd(tt.prefix); got != tt.expected {
			t.Errorf("PrefixEnd(%q) = %q, expected %q", tt.prefix, got, tt.expected)
		}
	}
}
