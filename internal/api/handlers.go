package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/starford/raido/internal/apperr"
	"github.com/starford/raido/internal/engine"
	"github.com/starford/raido/internal/index"
)

// Handler holds API route handlers.
type Handler struct {
	eng          *engine.Engine
	defaultLimit int
}

// NewHandler creates a new Handler.
func NewHandler(eng *engine.Engine, defaultLimit int) *Handler {
	if defaultLimit <= 0 {
		defaultLimit = 10
	}
	return &Handler{eng: eng, defaultLimit: defaultLimit}
}

func (h *Handler) limit(r *http.Request) int {
	n, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || n <= 0 {
		return h.defaultLimit
	}
	return n
}

// Search handles GET /api/search.
//
// Query parameters: q (query text, empty browses newest files), dir
// (repeatable directory filter), limit. Failures are reported in-band
// with an empty results array so clients never branch on shape.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	results, err := h.eng.Search(r.Context(), q.Get("q"), q["dir"], h.limit(r))
	if err != nil {
		slog.Error("search failed", slog.String("query", q.Get("q")), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, SearchResponse{
			Results: []index.SearchResult{},
			Error:   "search failed",
		})
		return
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: results})
}

// Index handles POST /api/index: indexes one file or walks a directory.
func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	var req IndexRequest
	if err := decodeBody(r.Body, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid request body"))
		return
	}
	switch {
	case req.Path != "" && req.Directory != "":
		writeJSON(w, http.StatusBadRequest, errorBody("path and directory are mutually exclusive"))
	case req.Path != "":
		if !filepath.IsAbs(req.Path) {
			writeJSON(w, http.StatusBadRequest, errorBody("path must be absolute"))
			return
		}
		indexed, err := h.eng.IndexFile(r.Context(), req.Path)
		if err != nil {
			slog.Error("index file failed", slog.String("path", req.Path), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("index failed"))
			return
		}
		writeJSON(w, http.StatusOK, IndexResponse{Indexed: indexed})
	case req.Directory != "":
		stats, err := h.eng.IndexDirectory(r.Context(), req.Directory)
		if err != nil {
			slog.Error("index directory failed", slog.String("directory", req.Directory), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("index failed"))
			return
		}
		writeJSON(w, http.StatusOK, IndexResponse{Indexed: true, Stats: &stats})
	default:
		writeJSON(w, http.StatusBadRequest, errorBody("path or directory is required"))
	}
}

// Deletions handles GET /api/deletions.
func (h *Handler) Deletions(w http.ResponseWriter, r *http.Request) {
	records, err := h.eng.RecentDeletions(r.Context(), h.limit(r))
	if err != nil {
		slog.Error("list deletions failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, DeletionsResponse{Deletions: records})
}

// Movements handles GET /api/movements.
func (h *Handler) Movements(w http.ResponseWriter, r *http.Request) {
	records, err := h.eng.RecentMovements(r.Context(), h.limit(r))
	if err != nil {
		slog.Error("list movements failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, MovementsResponse{Movements: records})
}

// Duplicates handles GET /api/duplicates.
func (h *Handler) Duplicates(w http.ResponseWriter, r *http.Request) {
	groups, err := h.eng.FindDuplicates(r.Context(), h.limit(r))
	if err != nil {
		slog.Error("find duplicates failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, DuplicatesResponse{Duplicates: groups})
}

// LargeFiles handles GET /api/large-files.
//
// Query parameters: min_size (bytes, default 100 MiB), limit.
func (h *Handler) LargeFiles(w http.ResponseWriter, r *http.Request) {
	minSize, _ := strconv.ParseInt(r.URL.Query().Get("min_size"), 10, 64)
	files, err := h.eng.LargeFiles(r.Context(), minSize, h.limit(r))
	if err != nil {
		slog.Error("list large files failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, FilesResponse{Files: files})
}

// OldFiles handles GET /api/old-files.
//
// Query parameters: days (age floor, default 365), limit.
func (h *Handler) OldFiles(w http.ResponseWriter, r *http.Request) {
	days, _ := strconv.Atoi(r.URL.Query().Get("days"))
	files, err := h.eng.OldFiles(r.Context(), time.Duration(days)*24*time.Hour, h.limit(r))
	if err != nil {
		slog.Error("list old files failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, FilesResponse{Files: files})
}

// Stats handles GET /api/stats.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	report, err := h.eng.Stats(r.Context())
	if err != nil {
		slog.Error("stats failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// TrackDeletion handles POST /api/track/deletion.
func (h *Handler) TrackDeletion(w http.ResponseWriter, r *http.Request) {
	var req TrackDeletionRequest
	if err := decodeBody(r.Body, &req); err != nil || req.Path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	if req.Reason == "" {
		req.Reason = "user_deletion"
	}
	if err := h.eng.TrackDeletion(r.Context(), req.Path, req.Reason); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
			return
		}
		slog.Error("track deletion failed", slog.String("path", req.Path), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"status": "recorded"})
}

// TrackMovement handles POST /api/track/movement.
func (h *Handler) TrackMovement(w http.ResponseWriter, r *http.Request) {
	var req TrackMovementRequest
	if err := decodeBody(r.Body, &req); err != nil || req.OriginalPath == "" || req.NewPath == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("original_path and new_path are required"))
		return
	}
	if err := h.eng.TrackMovement(r.Context(), req.OriginalPath, req.NewPath, req.MovementType, req.Reason); err != nil {
		slog.Error("track movement failed",
			slog.String("from", req.OriginalPath), slog.String("to", req.NewPath),
			slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"status": "recorded"})
}

func decodeBody(body io.Reader, v any) error {
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
