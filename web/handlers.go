package web

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"markestedt/pastemd/storage"
)

// maxHistoryPage caps the page size of /api/history.
const maxHistoryPage = 500

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("Failed to write response", "error", err)
	}
}

func queryInt(r *http.Request, name string, def, floor int) int {
	if v := r.URL.Query().Get(name); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= floor {
			return n
		}
	}
	return def
}

// configView is the part of the configuration the dashboard shows
type configView struct {
	Hotkey          string   `json:"hotkey"`
	Language        string   `json:"language"`
	NoAppAction     string   `json:"noAppAction"`
	SaveDir         string   `json:"saveDir"`
	KeepFile        bool     `json:"keepFile"`
	ExcelEnabled    bool     `json:"excelEnabled"`
	KeepTableFormat bool     `json:"keepTableFormat"`
	MoveCursorToEnd bool     `json:"moveCursorToEnd"`
	PandocPath      string   `json:"pandocPath"`
	HasReference    bool     `json:"hasReferenceDocx"`
	Filters         int      `json:"filters"`
	FilePatterns    []string `json:"filePatterns"`
	Notifications   bool     `json:"notifications"`
	HistoryEnabled  bool     `json:"historyEnabled"`
	WebPort         int      `json:"webPort"`
	ConfigPath      string   `json:"configPath"`
}

// handleConfig returns the active configuration. Edits go through the file,
// which the store watches.
func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	cfg := s.store.Snapshot()
	writeJSON(w, configView{
		Hotkey:          cfg.Hotkey.Combo,
		Language:        cfg.Notify.Language,
		NoAppAction:     cfg.Output.NoAppAction,
		SaveDir:         cfg.ExpandedSaveDir(),
		KeepFile:        cfg.Output.KeepFile,
		ExcelEnabled:    cfg.Excel.Enable,
		KeepTableFormat: cfg.Excel.KeepFormat,
		MoveCursorToEnd: cfg.Document.MoveCursorToEnd,
		PandocPath:      cfg.Pandoc.Path,
		HasReference:    cfg.Pandoc.ReferenceDocx != "",
		Filters:         len(cfg.Pandoc.Filters),
		FilePatterns:    cfg.Files.Patterns,
		Notifications:   cfg.Notify.Enabled,
		HistoryEnabled:  cfg.History.Enabled,
		WebPort:         cfg.Web.Port,
		ConfigPath:      s.store.Path(),
	})
}

// handleReload re-reads the configuration file
func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := s.store.Reload(); err != nil {
		slog.Warn("Config reload rejected", "error", err)
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}
	writeJSON(w, map[string]string{"status": "success"})
}

// handleStats returns statistics for the specified time range
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.db == nil {
		http.Error(w, "History is disabled", http.StatusServiceUnavailable)
		return
	}

	days := queryInt(r, "days", 7, 1)
	now := s.now()

	overall, err := s.db.GetOverallStats(now, days)
	if err != nil {
		slog.Error("Failed to get overall stats", "error", err)
		http.Error(w, "Failed to get statistics", http.StatusInternalServerError)
		return
	}

	daily, err := s.db.GetDailyStats(now, days)
	if err != nil {
		slog.Error("Failed to get daily stats", "error", err)
		http.Error(w, "Failed to get statistics", http.StatusInternalServerError)
		return
	}

	targets, err := s.db.GetTargetStats(now, days)
	if err != nil {
		slog.Error("Failed to get target stats", "error", err)
		http.Error(w, "Failed to get statistics", http.StatusInternalServerError)
		return
	}

	writeJSON(w, map[string]any{
		"overall": overall,
		"daily":   daily,
		"targets": targets,
	})
}

// handleHistory handles GET and DELETE requests for paste history
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.db == nil {
		http.Error(w, "History is disabled", http.StatusServiceUnavailable)
		return
	}

	switch r.Method {
	case http.MethodGet:
		s.handleGetHistory(w, r)
	case http.MethodDelete:
		s.handleDeleteHistory(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	limit := min(queryInt(r, "limit", 50, 1), maxHistoryPage)
	offset := queryInt(r, "offset", 0, 0)

	pastes, err := s.db.GetPastes(limit, offset)
	if err != nil {
		slog.Error("Failed to get pastes", "error", err)
		http.Error(w, "Failed to get history", http.StatusInternalServerError)
		return
	}

	total, err := s.db.GetPasteCount()
	if err != nil {
		slog.Error("Failed to get paste count", "error", err)
		http.Error(w, "Failed to get history", http.StatusInternalServerError)
		return
	}

	if pastes == nil {
		pastes = []storage.Paste{}
	}
	writeJSON(w, map[string]any{
		"pastes": pastes,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}

// handleDeleteHistory deletes a paste by ID (/api/history/123)
func (s *Server) handleDeleteHistory(w http.ResponseWriter, r *http.Request) {
	idStr := strings.TrimPrefix(r.URL.Path, "/api/history/")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil || idStr == r.URL.Path {
		http.Error(w, "Invalid ID", http.StatusBadRequest)
		return
	}

	if err := s.db.DeletePaste(id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			http.Error(w, "Paste not found", http.StatusNotFound)
			return
		}
		slog.Error("Failed to delete paste", "error", err, "id", id)
		http.Error(w, "Failed to delete paste", http.StatusInternalServerError)
		return
	}

	writeJSON(w, map[string]string{"status": "success"})
}

// handleStatus returns the current agent status
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, map[string]any{
		"status":  s.Status(),
		"clients": s.hub.ClientCount(),
	})
}
