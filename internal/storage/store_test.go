package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func backends(t *testing.T) map[string]Store {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "data", "bilant.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository() error = %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return map[string]Store{
		"memory": NewMemoryStore(),
		"sqlite": repo,
	}
}

func TestStore_GetPut(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			if _, ok, err := s.Get(ctx, "cash"); err != nil || ok {
				t.Fatalf("Get(missing) = ok %v, err %v; want false, nil", ok, err)
			}

			if err := s.Put(ctx, "cash", []byte(`{"2025-08-01":[]}`)); err != nil {
				t.Fatalf("Put() error = %v", err)
			}
			if err := s.Put(ctx, "cash", []byte(`{"2025-08-02":[]}`)); err != nil {
				t.Fatalf("Put() overwrite error = %v", err)
			}

			got, ok, err := s.Get(ctx, "cash")
			if err != nil || !ok {
				t.Fatalf("Get() = ok %v, err %v", ok, err)
			}
			if string(got) != `{"2025-08-02":[]}` {
				t.Errorf("Get() = %s, want overwritten value", got)
			}
		})
	}
}

func TestStore_PutAllAndKeys(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			keys, err := s.Keys(ctx)
			if err != nil {
				t.Fatalf("Keys() error = %v", err)
			}
			if len(keys) != 0 {
				t.Errorf("Keys() on empty store = %v", keys)
			}

			err = s.PutAll(ctx, map[string][]byte{
				"recv":           []byte(`{}`),
				"config":         []byte(`{"minWage":4050}`),
				"lastBackupDate": []byte(`"2025-08-10"`),
			})
			if err != nil {
				t.Fatalf("PutAll() error = %v", err)
			}

			keys, err = s.Keys(ctx)
			if err != nil {
				t.Fatalf("Keys() error = %v", err)
			}
			want := []string{"config", "lastBackupDate", "recv"}
			if diff := cmp.Diff(want, keys); diff != "" {
				t.Errorf("Keys() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestMemoryStore_CopiesValues(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	v := []byte("abc")
	_ = s.Put(ctx, "k", v)
	v[0] = 'x'

	got, _, _ := s.Get(ctx, "k")
	if string(got) != "abc" {
		t.Errorf("Get() = %s, want abc", got)
	}
	got[1] = 'y'
	again, _, _ := s.Get(ctx, "k")
	if string(again) != "abc" {
		t.Errorf("Get() after caller mutation = %s, want abc", again)
	}
}

func TestSQLiteRepository_Reopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "bilant.db")

	repo, err := NewSQLiteRepository(path)
	if err != nil {
		t.Fatalf("NewSQLiteRepository() error = %v", err)
	}
	if err := repo.Put(ctx, "installments", []byte(`{"2025":[]}`)); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	repo.Close()

	repo, err = NewSQLiteRepository(path)
	if err != nil {
		t.Fatalf("NewSQLiteRepository() reopen error = %v", err)
	}
	defer repo.Close()

	got, ok, err := repo.Get(ctx, "installments")
	if err != nil || !ok {
		t.Fatalf("Get() after reopen = ok %v, err %v", ok, err)
	}
	if string(got) != `{"2025":[]}` {
		t.Errorf("Get() after reopen = %s", got)
	}
}
