package checksum

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestSumDeterministic(t *testing.T) {
	a := Sum([]byte("hello world"))
	b := Sum([]byte("hello world"))
	if a != b {
		t.Fatalf("same input produced different sums: %s vs %s", a, b)
	}
	if a == Sum([]byte("hello worlD")) {
		t.Fatal("different inputs produced the same sum")
	}
	if len(a) != 64 {
		t.Fatalf("sum length = %d, want 64 hex chars", len(a))
	}
}

func TestSumFileMatchesSum(t *testing.T) {
	data := []byte("file contents for fingerprinting")
	path := writeFile(t, "a.txt", data)

	got, err := SumFile(path, DefaultCap)
	if err != nil {
		t.Fatal(err)
	}
	if got != Sum(data) {
		t.Fatalf("SumFile = %s, want %s", got, Sum(data))
	}
}

func TestSumFileCapsLargeFiles(t *testing.T) {
	prefix := bytes.Repeat([]byte("x"), 1024)
	full := append(append([]byte{}, prefix...), []byte("trailing difference")...)
	path := writeFile(t, "big.bin", full)

	capped, err := SumFile(path, 1024)
	if err != nil {
		t.Fatal(err)
	}
	if capped != Sum(prefix) {
		t.Fatal("capped fingerprint should cover only the leading bytes")
	}
	if capped == Sum(full) {
		t.Fatal("capped fingerprint unexpectedly covered the whole file")
	}
}

func TestSumFileMissing(t *testing.T) {
	if _, err := SumFile(filepath.Join(t.TempDir(), "absent"), DefaultCap); err == nil {
		t.Fatal("expected error for missing file")
	}
}
