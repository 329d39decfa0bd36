package cache

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestKeyFromURL(t *testing.T) {
	key := KeyFromURL("https://www.njc-cnm.gc.ca/directive/d10/v238/s658/en")
	if len(key) != 40 {
		t.Fatalf("expected sha1 hex key, got %q", key)
	}
	if key == KeyFromURL("https://www.njc-cnm.gc.ca/directive/d10/v238/s659/en") {
		t.Fatal("different URLs must not share a key")
	}
}

func TestDiskCache_FreshnessBoundary(t *testing.T) {
	dc, err := NewDiskCache(filepath.Join(t.TempDir(), "nested", "cache"))
	if err != nil {
		t.Fatal(err)
	}
	if err := dc.Set("k", []byte("<html>cached</html>")); err != nil {
		t.Fatal(err)
	}

	written := time.Date(2024, 4, 1, 12, 0, 0, 0, time.UTC)
	if err := os.Chtimes(dc.path("k"), written, written); err != nil {
		t.Fatal(err)
	}
	maxAge := 12 * time.Hour

	dc.SetClock(func() time.Time { return written.Add(maxAge - time.Millisecond) })
	body, ok, err := dc.Get("k", maxAge)
	if err != nil || !ok {
		t.Fatalf("expected hit just inside max age, ok=%v err=%v", ok, err)
	}
	if string(body) != "<html>cached</html>" {
		t.Errorf("unexpected body %q", body)
	}

	dc.SetClock(func() time.Time { return written.Add(maxAge + time.Millisecond) })
	if _, ok, _ := dc.Get("k", maxAge); ok {
		t.Fatal("expected miss just past max age")
	}
}

func TestDiskCache_MissingAndClear(t *testing.T) {
	dir := t.TempDir()
	dc, err := NewDiskCache(dir)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok, err := dc.Get("absent", time.Hour); ok || err != nil {
		t.Fatalf("expected clean miss, ok=%v err=%v", ok, err)
	}

	_ = dc.Set("a", []byte("a"))
	_ = dc.Set("b", []byte("b"))
	if err := os.WriteFile(filepath.Join(dir, "keep.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := dc.Clear(); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := dc.Get("a", time.Hour); ok {
		t.Error("expected entry a to be cleared")
	}
	if _, err := os.Stat(filepath.Join(dir, "keep.txt")); err != nil {
		t.Error("Clear must leave unrelated files alone")
	}
}

func TestMemoryCache_AgeAndEviction(t *testing.T) {
	now := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)
	mc := NewMemoryCache(10)
	mc.SetClock(func() time.Time { return now })

	_ = mc.Set("a", []byte("12345"))
	_ = mc.Set("b", []byte("67890"))
	if _, ok, _ := mc.Get("a", time.Minute); !ok {
		t.Fatal("expected hit for a")
	}

	// a was used most recently, so b is evicted.
	_ = mc.Set("c", []byte("abcde"))
	if _, ok, _ := mc.Get("b", time.Minute); ok {
		t.Error("expected b to be evicted")
	}

	now = now.Add(2 * time.Minute)
	if _, ok, _ := mc.Get("a", time.Minute); ok {
		t.Error("expected a to be stale")
	}

	stats := mc.Stats()
	if stats["entries"].(int) != 2 {
		t.Errorf("expected 2 entries, got %v", stats["entries"])
	}
}
