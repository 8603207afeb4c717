package index

import "encoding/json"

// FileRecord is one row of the files table. Fields are populated
// positionally from prepared statements; there is no dynamic row access.
type FileRecord struct {
	ID               int64
	Path             string
	Name             string
	Extension        string
	Size             int64
	ModifiedTime     float64
	ContentHash      string
	TextContent      string
	Category         string
	MediaType        string
	ProcessingStatus ProcessingStatus
	IndexedAt        float64
	LastAnalyzed     float64
}

// ProcessingStatus records which extraction steps ran for a file and how
// they ended. Stored as a JSON blob in the files table.
type ProcessingStatus struct {
	Status      string   `json:"status"`
	Steps       []string `json:"steps"`
	CompletedAt float64  `json:"completed_at,omitempty"`
}

func (p ProcessingStatus) marshal() string {
	b, err := json.Marshal(p)
	if err != nil {
		return "{}"
	}
	return string(b)
}

func unmarshalStatus(raw string) ProcessingStatus {
	var p ProcessingStatus
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return ProcessingStatus{Status: "unknown"}
	}
	return p
}

// SearchResult is a single ranked search hit.
type SearchResult struct {
	Path            string  `json:"path"`
	Name            string  `json:"name"`
	Extension       string  `json:"extension"`
	Size            int64   `json:"size"`
	ModifiedTime    float64 `json:"modified_time"`
	Category        string  `json:"category"`
	MediaType       string  `json:"media_type"`
	Score           float64 `json:"score"`
	HighlightedName string  `json:"highlighted_name,omitempty"`
	HighlightedPath string  `json:"highlighted_path,omitempty"`
	Snippet         string  `json:"snippet,omitempty"`
}
