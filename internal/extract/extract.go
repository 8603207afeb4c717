// Package extract defines the narrow interface to the content-extraction
// collaborator. The engine never inspects content semantically; it hashes,
// stores, and indexes whatever text an Extractor hands back.
package extract

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// Extractor turns a file into indexable text. ok=false means "no content,
// index metadata only" and is never treated as a hard failure by callers.
type Extractor interface {
	ExtractContent(path string) (text string, ok bool, meta map[string]any)
}

// PlainText extracts UTF-8 text from plain-text files. Binary formats
// (PDF, HWP, images, audio, video) belong to external collaborators and
// always come back ok=false here.
type PlainText struct {
	// MaxBytes bounds how much of a file is read. Zero means 4 MiB.
	MaxBytes int64
}

const defaultMaxBytes = 4 << 20

var plainTextExts = map[string]struct{}{
	".txt": {}, ".md": {}, ".csv": {}, ".json": {}, ".xml": {}, ".log": {},
	".py": {}, ".js": {}, ".java": {}, ".cpp": {}, ".c": {}, ".go": {},
	".php": {}, ".rb": {}, ".sh": {}, ".sql": {}, ".html": {}, ".css": {},
	".yml": {}, ".yaml": {}, ".toml": {}, ".ini": {}, ".conf": {},
}

// ExtractContent reads the file when its extension marks it as plain text
// and the bytes decode as UTF-8.
func (p PlainText) ExtractContent(path string) (string, bool, map[string]any) {
	ext := strings.ToLower(filepath.Ext(path))
	meta := map[string]any{"extractor": "plaintext", "extension": ext}

	if _, ok := plainTextExts[ext]; !ok {
		meta["reason"] = "unsupported extension"
		return "", false, meta
	}

	limit := p.MaxBytes
	if limit <= 0 {
		limit = defaultMaxBytes
	}

	f, err := os.Open(path)
	if err != nil {
		meta["reason"] = fmt.Sprintf("open: %v", err)
		return "", false, meta
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, limit))
	if err != nil {
		meta["reason"] = fmt.Sprintf("read: %v", err)
		return "", false, meta
	}
	if !utf8.Valid(data) {
		meta["reason"] = "not valid utf-8"
		return "", false, meta
	}

	meta["bytes"] = len(data)
	meta["truncated"] = int64(len(data)) == limit
	return string(data), true, meta
}
