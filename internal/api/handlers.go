package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/screenshotos/screenshotos/internal/config"
	"github.com/screenshotos/screenshotos/internal/overlay"
	"github.com/screenshotos/screenshotos/internal/sidecar"
)

func (s *Server) handleCaptureFullScreen(w http.ResponseWriter, r *http.Request) {
	captured, err := s.orch.CaptureFullScreen(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeData(w, captured)
}

func (s *Server) handleCaptureArea(w http.ResponseWriter, r *http.Request) {
	captured, err := s.orch.CaptureArea(r.Context())
	if errors.Is(err, overlay.ErrSelectionInProgress) {
		writeError(w, http.StatusConflict, err)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	// A cancelled gesture is a successful non-capture.
	writeData(w, captured)
}

func (s *Server) handleGetDisplays(w http.ResponseWriter, r *http.Request) {
	displays, err := s.displayMgr.ListDisplays()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeData(w, displays)
}

func (s *Server) handleSearchImages(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid limit %q", raw))
			return
		}
		limit = n
	}
	writeData(w, s.idx.Search(query, limit))
}

func (s *Server) handleImagesByTags(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("tags")
	if raw == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("tags parameter required"))
		return
	}
	writeData(w, s.idx.ImagesByTags(strings.Split(raw, ",")))
}

func (s *Server) handleImagesByDateRange(w http.ResponseWriter, r *http.Request) {
	start, err := parseTimeParam(r, "start")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	end, err := parseTimeParam(r, "end")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeData(w, s.idx.ImagesByDateRange(start, end))
}

func parseTimeParam(r *http.Request, key string) (time.Time, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid %s time %q: %w", key, raw, err)
	}
	return t, nil
}

func (s *Server) handleFindSimilar(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("path parameter required"))
		return
	}
	writeData(w, s.idx.FindSimilar(path))
}

func (s *Server) handleAllTags(w http.ResponseWriter, r *http.Request) {
	writeData(w, s.idx.AllTags())
}

func (s *Server) handleGetMetadata(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("path parameter required"))
		return
	}
	rec, err := s.sidecars.Load(path)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if rec == nil {
		writeError(w, http.StatusNotFound, fmt.Errorf("no metadata for %s", path))
		return
	}
	writeData(w, rec)
}

func (s *Server) handleUpdateMetadata(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Path         string    `json:"path"`
		Tags         *[]string `json:"tags,omitempty"`
		Notes        *string   `json:"notes,omitempty"`
		OCRText      *string   `json:"ocrText,omitempty"`
		OCRCompleted *bool     `json:"ocrCompleted,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Path == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("path required"))
		return
	}

	fields := sidecar.UpdateFields{
		Tags:         req.Tags,
		Notes:        req.Notes,
		OCRText:      req.OCRText,
		OCRCompleted: req.OCRCompleted,
	}
	if err := s.sidecars.Update(req.Path, fields); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.idx.AddImage(req.Path)
	writeData(w, map[string]string{"status": "updated"})
}

func (s *Server) handleAddAnnotation(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Path       string             `json:"path"`
		Annotation sidecar.Annotation `json:"annotation"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Path == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("path required"))
		return
	}

	if err := s.sidecars.AddAnnotation(req.Path, req.Annotation); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeData(w, map[string]string{"status": "added"})
}

func (s *Server) handleRemoveAnnotation(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	path := r.URL.Query().Get("path")
	if path == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("path parameter required"))
		return
	}

	if err := s.sidecars.RemoveAnnotation(path, id); err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeData(w, map[string]string{"status": "removed"})
}

// libraryRequest is the body shared by archive, restore, and trash.
type libraryRequest struct {
	Path string `json:"path"`
}

func (s *Server) libraryOp(w http.ResponseWriter, r *http.Request, op func(string) (string, error)) {
	var req libraryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Path == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("path required"))
		return
	}

	dst, err := op(req.Path)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.idx.RemoveImage(req.Path)
	s.idx.AddImage(dst)
	writeData(w, map[string]string{"path": dst})
}

func (s *Server) handleArchive(w http.ResponseWriter, r *http.Request) {
	s.libraryOp(w, r, s.library.Archive)
}

func (s *Server) handleRestore(w http.ResponseWriter, r *http.Request) {
	s.libraryOp(w, r, s.library.Restore)
}

func (s *Server) handleTrash(w http.ResponseWriter, r *http.Request) {
	s.libraryOp(w, r, s.library.Trash)
}

func (s *Server) handleIndexStatus(w http.ResponseWriter, r *http.Request) {
	writeData(w, map[string]any{
		"scanning": s.idx.IsCurrentlyScanning(),
		"entries":  s.idx.Len(),
	})
}

func (s *Server) handleRescan(w http.ResponseWriter, r *http.Request) {
	s.idx.StartIndexing(s.configMgr.Get().SaveDirectory)
	writeData(w, map[string]string{"status": "scanning"})
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	writeData(w, s.configMgr.Get())
}

func (s *Server) handleUpdateConfig(w http.ResponseWriter, r *http.Request) {
	var cfg config.Config
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.configMgr.Update(&cfg); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeData(w, map[string]string{"status": "updated"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeData(w, map[string]string{"status": "healthy"})
}
