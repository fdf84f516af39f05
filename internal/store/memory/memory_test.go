package memory

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"rwa/internal/store"
	"rwa/internal/store/storetest"
)

func TestMemoryStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store { return New(nil) })
}

func TestNewFromFilesSeedsAndDedupe(t *testing.T) {
	dir := t.TempDir()
	// No file -> empty directory
	s := NewFromFiles(dir)
	list, _ := s.ListResidents(context.Background())
	if len(list) != 0 {
		t.Fatalf("expected no residents, got %v", list)
	}

	content := "# name,house\nZoya, B-2\nAsha,A-12\nZoya,B-2\nbroken line\n,C-1\n\n"
	if err := os.WriteFile(filepath.Join(dir, "seed_residents.txt"), []byte(content), 0o644); err != nil {
		t.Fatalf("write seed: %v", err)
	}
	s = NewFromFiles(dir)
	list, _ = s.ListResidents(context.Background())
	if len(list) != 2 || list[0].Name != "Asha" || list[1].HouseNo != "B-2" {
		t.Fatalf("unexpected residents: %+v", list)
	}
	if list[0].ID == "" {
		t.Fatal("seeded residents need ids")
	}
}
