// manager_test.go - Tests for storage layer
package storage

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/medallion-map/backend/internal/models"
)

func createTestStore(t *testing.T) *LocalStore {
	store, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	return store
}

func TestNewLocalStore(t *testing.T) {
	t.Run("creates upload directory", func(t *testing.T) {
		uploadDir := filepath.Join(t.TempDir(), "uploads")

		if _, err := NewLocalStore(uploadDir); err != nil {
			t.Fatalf("Failed to create store: %v", err)
		}
		if _, err := os.Stat(uploadDir); os.IsNotExist(err) {
			t.Error("Expected upload directory to be created")
		}
	})

	t.Run("reloads index", func(t *testing.T) {
		dir := t.TempDir()
		store, err := NewLocalStore(dir)
		if err != nil {
			t.Fatalf("Failed to create store: %v", err)
		}
		info, err := store.SaveBytes("cities.csv", []byte("longitude,latitude\n1,2\n"))
		if err != nil {
			t.Fatalf("SaveBytes failed: %v", err)
		}

		reopened, err := NewLocalStore(dir)
		if err != nil {
			t.Fatalf("Failed to reopen store: %v", err)
		}
		got, err := reopened.Get(info.ID)
		if err != nil {
			t.Fatalf("Get after reopen failed: %v", err)
		}
		if got.Name != "cities.csv" {
			t.Errorf("Expected name cities.csv, got %s", got.Name)
		}
	})

	t.Run("skips index entries without content", func(t *testing.T) {
		dir := t.TempDir()
		store, _ := NewLocalStore(dir)
		info, _ := store.SaveBytes("gone.csv", []byte("x"))
		os.Remove(filepath.Join(dir, info.ID))

		reopened, err := NewLocalStore(dir)
		if err != nil {
			t.Fatalf("Failed to reopen store: %v", err)
		}
		if _, err := reopened.Get(info.ID); err == nil {
			t.Error("Expected missing file to be dropped from index")
		}
	})
}

func TestLocalStore_Save(t *testing.T) {
	store := createTestStore(t)

	content := "location,longitude,latitude\nParis,2.35,48.85\n"
	info, err := store.Save("trip.csv", strings.NewReader(content))
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if info.ID == "" {
		t.Error("Expected ID to be set")
	}
	if info.Size != int64(len(content)) {
		t.Errorf("Expected size %d, got %d", len(content), info.Size)
	}
	if info.Status != models.FileStatusUploaded {
		t.Errorf("Expected status %s, got %s", models.FileStatusUploaded, info.Status)
	}

	data, err := store.Read(info.ID)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if string(data) != content {
		t.Errorf("Expected content %q, got %q", content, string(data))
	}
}

func TestLocalStore_Get(t *testing.T) {
	store := createTestStore(t)

	t.Run("unknown id", func(t *testing.T) {
		_, err := store.Get("missing")
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("Expected ErrNotFound, got %v", err)
		}
	})

	t.Run("returns copy", func(t *testing.T) {
		info, _ := store.SaveBytes("a.csv", []byte("a"))
		got, _ := store.Get(info.ID)
		got.Name = "changed"

		again, _ := store.Get(info.ID)
		if again.Name != "a.csv" {
			t.Errorf("Expected stored name to be unchanged, got %s", again.Name)
		}
	})
}

func TestLocalStore_List(t *testing.T) {
	store := createTestStore(t)

	for _, name := range []string{"first.csv", "second.csv", "third.csv"} {
		if _, err := store.SaveBytes(name, []byte(name)); err != nil {
			t.Fatalf("SaveBytes failed: %v", err)
		}
		time.Sleep(2 * time.Millisecond)
	}

	t.Run("newest first", func(t *testing.T) {
		list, err := store.List(0)
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if len(list) != 3 {
			t.Fatalf("Expected 3 files, got %d", len(list))
		}
		if list[0].Name != "third.csv" {
			t.Errorf("Expected third.csv first, got %s", list[0].Name)
		}
	})

	t.Run("respects limit", func(t *testing.T) {
		list, _ := store.List(2)
		if len(list) != 2 {
			t.Errorf("Expected 2 files, got %d", len(list))
		}
	})
}

func TestLocalStore_Delete(t *testing.T) {
	store := createTestStore(t)

	info, _ := store.SaveBytes("delete.csv", []byte("x"))
	if err := store.Delete(info.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := store.Get(info.ID); err == nil {
		t.Error("Expected file to be gone")
	}
	if _, err := os.Stat(filepath.Join(store.uploadDir, info.ID)); !os.IsNotExist(err) {
		t.Error("Expected content to be removed")
	}
	if err := store.Delete(info.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound on second delete, got %v", err)
	}
}

func TestLocalStore_SetStatus(t *testing.T) {
	store := createTestStore(t)

	info, _ := store.SaveBytes("s.csv", []byte("x"))
	if err := store.SetStatus(info.ID, models.FileStatusParsed, 4); err != nil {
		t.Fatalf("SetStatus failed: %v", err)
	}
	got, _ := store.Get(info.ID)
	if got.Status != models.FileStatusParsed || got.RecordCount != 4 {
		t.Errorf("Unexpected info after SetStatus: %+v", got)
	}
	if err := store.SetStatus("missing", models.FileStatusError, 0); err == nil {
		t.Error("Expected error for unknown id")
	}
}
