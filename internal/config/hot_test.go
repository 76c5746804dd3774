package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
)

func TestHotReload_KeepsPriorOnInvalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "thresholds.yaml")

	if err := os.WriteFile(path, []byte("wbi:\n  confirm_ticks: 3\n"), 0644); err != nil {
		t.Fatal(err)
	}

	h, err := NewHot(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewHot: %v", err)
	}
	if h.Get().WBI.ConfirmTicks != 3 {
		t.Fatalf("expected confirm_ticks=3, got %d", h.Get().WBI.ConfirmTicks)
	}

	// Write an invalid override (confirm_ticks <= 0).
	if err := os.WriteFile(path, []byte("wbi:\n  confirm_ticks: 0\n"), 0644); err != nil {
		t.Fatal(err)
	}
	h.Reload()

	if h.Get().WBI.ConfirmTicks != 3 {
		t.Fatalf("expected prior snapshot kept after invalid reload, got %d", h.Get().WBI.ConfirmTicks)
	}
}

func TestHotReload_AppliesValidChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "thresholds.yaml")
	if err := os.WriteFile(path, []byte("wbi:\n  confirm_ticks: 3\n"), 0644); err != nil {
		t.Fatal(err)
	}
	h, err := NewHot(path, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}

	var seen int
	h.OnChange(func(th Thresholds) { seen = th.WBI.ConfirmTicks })

	if err := os.WriteFile(path, []byte("wbi:\n  confirm_ticks: 5\n"), 0644); err != nil {
		t.Fatal(err)
	}
	h.Reload()

	if h.Get().WBI.ConfirmTicks != 5 {
		t.Fatalf("expected confirm_ticks=5, got %d", h.Get().WBI.ConfirmTicks)
	}
	if seen != 5 {
		t.Fatalf("expected OnChange callback to observe 5, got %d", seen)
	}
}
