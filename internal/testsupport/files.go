package testsupport

import (
	"os"
	"path/filepath"
	"testing"
)

// Pattern returns size deterministic bytes. Offsets produce distinct values
// so misplaced ranges are detectable.
func Pattern(size int) []byte {
	out := make([]byte, size)
	for i := range out {
		out[i] = byte(i % 251)
	}
	return out
}

// WriteFile fills the target path with the first size bytes of Pattern.
// A size <= 0 writes a single byte.
func WriteFile(t testing.TB, path string, size int64) {
	t.Helper()

	if size <= 0 {
		size = 1
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, Pattern(int(size)), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
