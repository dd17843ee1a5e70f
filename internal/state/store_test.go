package state

import (
	"path/filepath"
	"sort"
	"testing"
)

func storeImplementations(t *testing.T) map[string]Store {
	t.Helper()

	sqliteStore, err := NewSQLiteStore(filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	t.Cleanup(func() { sqliteStore.Close() })

	return map[string]Store{
		"memory": NewMemoryStore(),
		"sqlite": sqliteStore,
	}
}

func TestStoreRoundTrip(t *testing.T) {
	for name, store := range storeImplementations(t) {
		t.Run(name, func(t *testing.T) {
			if _, ok, err := store.Get("missing"); err != nil || ok {
				t.Errorf("Get(missing) = ok %v, err %v", ok, err)
			}

			if err := store.Set("k1", []byte(`"v1"`)); err != nil {
				t.Fatalf("Set() error = %v", err)
			}
			raw, ok, err := store.Get("k1")
			if err != nil || !ok {
				t.Fatalf("Get(k1) = ok %v, err %v", ok, err)
			}
			if string(raw) != `"v1"` {
				t.Errorf("Get(k1) = %q, want %q", raw, `"v1"`)
			}

			// Set replaces.
			if err := store.Set("k1", []byte(`"v2"`)); err != nil {
				t.Fatalf("Set() error = %v", err)
			}
			raw, _, _ = store.Get("k1")
			if string(raw) != `"v2"` {
				t.Errorf("Get(k1) after overwrite = %q, want %q", raw, `"v2"`)
			}

			if err := store.Delete("k1"); err != nil {
				t.Fatalf("Delete() error = %v", err)
			}
			if _, ok, _ := store.Get("k1"); ok {
				t.Error("Get(k1) = present after delete")
			}

			// Deleting an absent key is not an error.
			if err := store.Delete("k1"); err != nil {
				t.Errorf("Delete(absent) error = %v", err)
			}
		})
	}
}

func TestStoreKeysPrefix(t *testing.T) {
	for name, store := range storeImplementations(t) {
		t.Run(name, func(t *testing.T) {
			store.Set("cache_a", []byte("1"))
			store.Set("cache_b", []byte("2"))
			store.Set("session_x", []byte("3"))

			keys, err := store.Keys("cache_")
			if err != nil {
				t.Fatalf("Keys() error = %v", err)
			}
			sort.Strings(keys)
			want := []string{"cache_a", "cache_b"}
			if len(keys) != len(want) {
				t.Fatalf("Keys() = %v, want %v", keys, want)
			}
			for i := range want {
				if keys[i] != want[i] {
					t.Errorf("Keys()[%d] = %q, want %q", i, keys[i], want[i])
				}
			}
		})
	}
}

func TestGetJSONDropsCorruptEntries(t *testing.T) {
	store := NewMemoryStore()
	store.Set("bad", []byte(`{"id":`))

	if _, ok := GetJSON[map[string]any](store, "bad"); ok {
		t.Error("GetJSON(corrupt) = ok, want absent")
	}
	if _, ok, _ := store.Get("bad"); ok {
		t.Error("corrupt entry survived GetJSON")
	}
}

func TestSetGetJSON(t *testing.T) {
	type doc struct {
		Name  string  `json:"name"`
		Value float64 `json:"value"`
	}

	store := NewMemoryStore()
	if err := SetJSON(store, "doc", doc{Name: "x", Value: 1.5}); err != nil {
		t.Fatalf("SetJSON() error = %v", err)
	}

	got, ok := GetJSON[doc](store, "doc")
	if !ok {
		t.Fatal("GetJSON() = absent")
	}
	if got.Name != "x" || got.Value != 1.5 {
		t.Errorf("GetJSON() = %+v", got)
	}
}

func TestSQLiteStorePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")

	store, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	if err := store.Set("k", []byte("v")); err != nil {
		t.Fatal(err)
	}
	if err := store.Close(); err != nil {
		t.Fatal(err)
	}

	reopened, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("NewSQLiteStore() reopen error = %v", err)
	}
	defer reopened.Close()

	raw, ok, err := reopened.Get("k")
	if err != nil || !ok || string(raw) != "v" {
		t.Errorf("Get(k) after reopen = %q, ok %v, err %v", raw, ok, err)
	}
}

func TestBackendFactory(t *testing.T) {
	tests := []struct {
		backend BackendType
		valid   bool
	}{
		{MemoryBackend, true},
		{SQLiteBackend, true},
		{BackendType("redis"), false},
	}

	for _, tt := range tests {
		if got := tt.backend.IsValid(); got != tt.valid {
			t.Errorf("%s.IsValid() = %v, want %v", tt.backend, got, tt.valid)
		}
	}

	store, err := Open(MemoryBackend, "")
	if err != nil {
		t.Fatalf("Open(memory) error = %v", err)
	}
	defer store.Close()
	if _, ok := store.(*MemoryStore); !ok {
		t.Errorf("Open(memory) = %T, want *MemoryStore", store)
	}

	if _, err := Open(BackendType("redis"), ""); err == nil {
		t.Error("Open(redis) succeeded, want error")
	}
}
