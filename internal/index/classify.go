package index

import "strings"

// Media types group categories by extraction strategy.
const (
	MediaText       = "text"
	MediaMultimedia = "multimedia"
	MediaArchive    = "archive"
	MediaOther      = "other"
)

// categoryTable maps a category to its extensions and media type. Unknown
// extensions fall back to ("other", "other").
var categoryTable = []struct {
	category  string
	mediaType string
	exts      []string
}{
	{"text", MediaText, []string{
		".txt", ".md", ".csv", ".json", ".xml", ".log", ".py", ".js", ".java",
		".cpp", ".c", ".go", ".php", ".rb", ".sh", ".sql", ".html", ".css",
		".yml", ".yaml", ".toml", ".ini", ".conf",
	}},
	{"document", MediaText, []string{".pdf", ".doc", ".docx", ".rtf", ".odt"}},
	{"korean_document", MediaText, []string{".hwp", ".hwpx"}},
	{"image", MediaMultimedia, []string{
		".jpg", ".jpeg", ".png", ".gif", ".bmp", ".svg", ".webp", ".tiff", ".heic",
	}},
	{"video", MediaMultimedia, []string{
		".mp4", ".avi", ".mkv", ".mov", ".wmv", ".flv", ".webm", ".m4v", ".mpg", ".mpeg",
	}},
	{"audio", MediaMultimedia, []string{
		".mp3", ".wav", ".flac", ".aac", ".ogg", ".wma", ".m4a", ".opus", ".aiff",
	}},
	{"archive", MediaArchive, []string{".zip", ".tar", ".gz", ".rar", ".7z", ".bz2"}},
}

var extToCategory = func() map[string][2]string {
	m := make(map[string][2]string)
	for _, row := range categoryTable {
		for _, ext := range row.exts {
			m[ext] = [2]string{row.category, row.mediaType}
		}
	}
	return m
}()

// Classify maps a file extension to its (category, mediaType) pair.
func Classify(ext string) (category, mediaType string) {
	if pair, ok := extToCategory[strings.ToLower(ext)]; ok {
		return pair[0], pair[1]
	}
	return "other", MediaOther
}
