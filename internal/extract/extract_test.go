package extract

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestPlainTextExtractsKnownExtensions(t *testing.T) {
	path := writeFile(t, "note.txt", "searchable body text")

	text, ok, meta := PlainText{}.ExtractContent(path)
	if !ok {
		t.Fatal("expected extraction to succeed")
	}
	if text != "searchable body text" {
		t.Fatalf("text = %q", text)
	}
	if meta["extension"] != ".txt" {
		t.Fatalf("meta extension = %v", meta["extension"])
	}
}

func TestPlainTextSkipsUnknownExtensions(t *testing.T) {
	path := writeFile(t, "image.jpg", "\xff\xd8\xff")

	text, ok, _ := PlainText{}.ExtractContent(path)
	if ok || text != "" {
		t.Fatalf("binary extension should not extract, got ok=%t text=%q", ok, text)
	}
}

func TestPlainTextTruncates(t *testing.T) {
	body := strings.Repeat("a", 100)
	path := writeFile(t, "long.md", body)

	text, ok, meta := PlainText{MaxBytes: 10}.ExtractContent(path)
	if !ok {
		t.Fatal("expected extraction to succeed")
	}
	if len(text) != 10 {
		t.Fatalf("text length = %d, want 10", len(text))
	}
	if truncated, _ := meta["truncated"].(bool); !truncated {
		t.Fatal("expected truncated metadata flag")
	}
}

func TestPlainTextRejectsInvalidUTF8(t *testing.T) {
	path := writeFile(t, "junk.txt", string([]byte{0xff, 0xfe, 0x00, 0x80}))

	if _, ok, _ := (PlainText{}).ExtractContent(path); ok {
		t.Fatal("invalid utf-8 should not extract")
	}
}
