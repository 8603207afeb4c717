package api

import (
	"github.com/starford/raido/internal/engine"
	"github.com/starford/raido/internal/index"
	"github.com/starford/raido/internal/tracker"
)

// IndexRequest is the request body for an on-demand index pass. Exactly
// one of Path or Directory must be set.
type IndexRequest struct {
	Path      string `json:"path,omitempty"`
	Directory string `json:"directory,omitempty"`
}

// IndexResponse reports the outcome of an on-demand index pass.
type IndexResponse struct {
	Indexed bool             `json:"indexed,omitempty"`
	Stats   *index.WalkStats `json:"stats,omitempty"`
}

// TrackDeletionRequest records a deletion observed outside the watcher.
type TrackDeletionRequest struct {
	Path   string `json:"path"`
	Reason string `json:"reason,omitempty"`
}

// TrackMovementRequest records a move observed outside the watcher.
type TrackMovementRequest struct {
	OriginalPath string `json:"original_path"`
	NewPath      string `json:"new_path"`
	MovementType string `json:"movement_type,omitempty"`
	Reason       string `json:"reason,omitempty"`
}

// SearchResponse wraps search results. Results is always present, even
// on failure, so clients can iterate it unconditionally.
type SearchResponse struct {
	Results []index.SearchResult `json:"results"`
	Error   string               `json:"error,omitempty"`
}

// DeletionsResponse wraps the deletion history listing.
type DeletionsResponse struct {
	Deletions []tracker.DeletionRecord `json:"deletions"`
}

// MovementsResponse wraps the movement history listing.
type MovementsResponse struct {
	Movements []tracker.MovementRecord `json:"movements"`
}

// DuplicatesResponse wraps the duplicate-group report.
type DuplicatesResponse struct {
	Duplicates []index.DuplicateGroup `json:"duplicates"`
}

// FilesResponse wraps the large-file and old-file reports.
type FilesResponse struct {
	Files []index.FileSummary `json:"files"`
}

// StatsResponse is the combined observability snapshot.
type StatsResponse = engine.StatsReport
