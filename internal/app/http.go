package app

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"atelier/api/internal/export"
	"atelier/api/internal/notion"
	"atelier/api/internal/search"
)

type HTTPServer struct {
	service    *Service
	corsOrigin string
}

func NewHTTPServer(service *Service, corsOrigin string) *HTTPServer {
	return &HTTPServer{service: service, corsOrigin: corsOrigin}
}

func (s *HTTPServer) Handler() http.Handler {
	return s.withMiddleware(http.HandlerFunc(s.handle))
}

func (s *HTTPServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		writeJSON(w, http.StatusNoContent, map[string]any{})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/health" {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/ready" {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		status := "ready"
		statusCode := http.StatusOK
		checks := map[string]any{
			"database": map[string]any{"status": "ok"},
		}

		if err := s.service.Ping(ctx); err != nil {
			status = "not_ready"
			statusCode = http.StatusServiceUnavailable
			checks["database"] = map[string]any{
				"status": "error",
				"error":  err.Error(),
			}
		}

		writeJSON(w, statusCode, map[string]any{
			"ok":     status == "ready",
			"status": status,
			"checks": checks,
		})
		return
	}

	if r.URL.Path == "/api/sync" {
		if r.Method == http.MethodGet {
			payload, err := s.service.FullData(r.Context())
			if err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			writeRawJSON(w, http.StatusOK, payload)
			return
		}
		if r.Method == http.MethodPost {
			s.handleSaveSnapshot(w, r)
			return
		}
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/search" {
		q := search.Query{
			Text:       strings.TrimSpace(r.URL.Query().Get("q")),
			FilterType: search.ResultType(strings.TrimSpace(r.URL.Query().Get("type"))),
			Limit:      20,
		}
		if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil {
				writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "limit must be an integer", nil)
				return
			}
			q.Limit = parsed
		}
		if raw := strings.TrimSpace(r.URL.Query().Get("offset")); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil {
				writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "offset must be an integer", nil)
				return
			}
			q.Offset = parsed
		}
		writeJSON(w, http.StatusOK, s.service.Search(r.Context(), q))
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/debug" {
		writeJSON(w, http.StatusOK, s.service.Debug(r.Context()))
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/debug/data" {
		payload, err := s.service.DebugData(r.Context())
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, payload)
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/reset" {
		cleared, err := s.service.Reset(r.Context())
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "cleared": cleared})
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/notion/sync" {
		payload, err := s.service.NotionSync(r.Context())
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"success":  true,
			"projects": payload.Projects,
			"tasks":    payload.Tasks,
			"syncedAt": time.Now().UTC().Format(time.RFC3339),
		})
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/export/projects.pdf" {
		result, err := s.service.CapacityReport(r.Context())
		if err != nil {
			if errors.Is(err, export.ErrPDFDependencyMissing) {
				writeError(w, http.StatusServiceUnavailable, "EXPORT_UNAVAILABLE", "PDF renderer is not installed", nil)
				return
			}
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		w.Header().Set("Content-Disposition", "attachment; filename=\""+result.Filename+"\"")
		w.Header().Set("Content-Type", result.MimeType)
		w.Write(result.Data)
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/backups" {
		items, err := s.service.ListBackups(r.Context())
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"backups": items})
		return
	}

	parts := splitPath(r.URL.Path)

	if len(parts) >= 2 && parts[0] == "api" {
		switch parts[1] {
		case "team":
			s.handleTeam(w, r, parts)
			return
		case "clients":
			s.handleClients(w, r, parts)
			return
		case "projects":
			s.handleProjects(w, r, parts)
			return
		case "archive":
			s.handleArchive(w, r, parts)
			return
		case "notion":
			s.handleNotion(w, r, parts)
			return
		}
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func (s *HTTPServer) handleSaveSnapshot(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "could not read body", nil)
		return
	}
	defer r.Body.Close()

	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "invalid JSON body", nil)
		return
	}

	result, err := s.service.SaveSnapshot(r.Context(), snap, raw)
	if err != nil {
		if errors.Is(err, ErrNotConfigured) {
			writeJSON(w, http.StatusInternalServerError, map[string]any{
				"success": false,
				"error":   "database not configured",
			})
			return
		}
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *HTTPServer) handleTeam(w http.ResponseWriter, r *http.Request, parts []string) {
	if len(parts) == 2 && r.Method == http.MethodGet {
		items, err := s.service.ListTeam(r.Context())
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"team": items})
		return
	}

	if len(parts) == 2 && r.Method == http.MethodPost {
		var body TeamMemberInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		saved, err := s.service.SaveTeamMember(r.Context(), body)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, saved)
		return
	}

	if len(parts) == 3 && r.Method == http.MethodDelete {
		id, ok := pathID(w, parts[2])
		if !ok {
			return
		}
		if err := s.service.DeleteTeamMember(r.Context(), id); err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
}

func (s *HTTPServer) handleClients(w http.ResponseWriter, r *http.Request, parts []string) {
	if len(parts) == 2 && r.Method == http.MethodGet {
		items, err := s.service.ListClientViews(r.Context())
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"clients": items})
		return
	}

	if len(parts) == 2 && r.Method == http.MethodPost {
		var body ClientInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		saved, err := s.service.SaveClient(r.Context(), body)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, saved)
		return
	}

	if len(parts) == 3 && r.Method == http.MethodDelete {
		id, ok := pathID(w, parts[2])
		if !ok {
			return
		}
		if err := s.service.DeleteClient(r.Context(), id); err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
}

func (s *HTTPServer) handleProjects(w http.ResponseWriter, r *http.Request, parts []string) {
	if len(parts) == 2 && r.Method == http.MethodGet {
		items, err := s.service.ListProjectViews(r.Context())
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"projects": items})
		return
	}

	if len(parts) == 2 && r.Method == http.MethodPost {
		raw, err := io.ReadAll(r.Body)
		if err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", "could not read body", nil)
			return
		}
		defer r.Body.Close()

		// The body is either a bare project or an action envelope.
		var envelope struct {
			Action    string        `json:"action"`
			ProjectID int64         `json:"projectId"`
			Note      NoteInput     `json:"note"`
			Project   *ProjectInput `json:"project"`
		}
		if err := json.Unmarshal(raw, &envelope); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", "invalid JSON body", nil)
			return
		}

		switch envelope.Action {
		case "addNote":
			note, err := s.service.AddProjectNote(r.Context(), envelope.ProjectID, envelope.Note.Content, envelope.Note.Author)
			if err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			writeJSON(w, http.StatusOK, note)
			return
		case "archive":
			if envelope.Project == nil || envelope.Project.ID == 0 {
				writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "project with id is required", nil)
				return
			}
			archived, err := s.service.ArchiveProject(r.Context(), envelope.Project.ID)
			if err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			writeJSON(w, http.StatusOK, archived)
			return
		case "":
		default:
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "unknown action", nil)
			return
		}

		var body ProjectInput
		if err := json.Unmarshal(raw, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", "invalid JSON body", nil)
			return
		}
		saved, err := s.service.SaveProject(r.Context(), body)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, saved)
		return
	}

	if len(parts) == 3 && r.Method == http.MethodDelete {
		id, ok := pathID(w, parts[2])
		if !ok {
			return
		}
		if err := s.service.DeleteProject(r.Context(), id); err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if len(parts) == 4 && parts[3] == "notes" && r.Method == http.MethodPost {
		id, ok := pathID(w, parts[2])
		if !ok {
			return
		}
		var body struct {
			Content string `json:"content"`
			Author  string `json:"author"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		note, err := s.service.AddProjectNote(r.Context(), id, body.Content, body.Author)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, note)
		return
	}

	if len(parts) == 4 && parts[3] == "archive" && r.Method == http.MethodPost {
		id, ok := pathID(w, parts[2])
		if !ok {
			return
		}
		archived, err := s.service.ArchiveProject(r.Context(), id)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, archived)
		return
	}

	writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
}

func (s *HTTPServer) handleArchive(w http.ResponseWriter, r *http.Request, parts []string) {
	if len(parts) == 2 && r.Method == http.MethodGet {
		items, err := s.service.ListArchive(r.Context())
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"archivedProjects": items})
		return
	}

	if len(parts) == 2 && r.Method == http.MethodPost {
		var body struct {
			Action  string `json:"action"`
			Project struct {
				ID int64 `json:"id"`
			} `json:"project"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		if body.Project.ID == 0 {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "project with id is required", nil)
			return
		}
		switch body.Action {
		case "archive":
			archived, err := s.service.ArchiveProject(r.Context(), body.Project.ID)
			if err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			writeJSON(w, http.StatusOK, archived)
		case "restore":
			project, err := s.service.RestoreProject(r.Context(), body.Project.ID)
			if err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			writeJSON(w, http.StatusOK, project)
		default:
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "action must be archive or restore", nil)
		}
		return
	}

	if len(parts) == 4 && parts[3] == "restore" && r.Method == http.MethodPost {
		id, ok := pathID(w, parts[2])
		if !ok {
			return
		}
		project, err := s.service.RestoreProject(r.Context(), id)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, project)
		return
	}

	if len(parts) == 3 && r.Method == http.MethodDelete {
		id, ok := pathID(w, parts[2])
		if !ok {
			return
		}
		if err := s.service.DeleteArchived(r.Context(), id); err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
}

func (s *HTTPServer) handleNotion(w http.ResponseWriter, r *http.Request, parts []string) {
	if len(parts) == 4 && parts[2] == "tasks" && r.Method == http.MethodPatch {
		pageID := strings.TrimSpace(parts[3])
		if pageID == "" {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "task id is required", nil)
			return
		}
		var body notion.TaskPatch
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		task, err := s.service.NotionUpdateTask(r.Context(), pageID, body)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, task)
		return
	}

	writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
}

func pathID(w http.ResponseWriter, raw string) (int64, bool) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "id must be a positive integer", nil)
		return 0, false
	}
	return id, true
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = randomRequestID()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		setCORSHeaders(writer.Header(), s.corsOrigin)
		writer.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(writer, r)

		log.Printf(`{"request_id":"%s","method":"%s","path":"%s","status":%d,"duration_ms":%d}`,
			requestID,
			r.Method,
			r.URL.Path,
			writer.status,
			time.Since(started).Milliseconds(),
		)
	})
}

type requestIDKey struct{}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func randomRequestID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

func setCORSHeaders(header http.Header, corsOrigin string) {
	header.Set("Access-Control-Allow-Origin", corsOrigin)
	header.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
	header.Set("Access-Control-Allow-Methods", "GET,POST,PUT,PATCH,DELETE,OPTIONS")
	header.Set("Cache-Control", "no-store")
	header.Set("Content-Type", "application/json")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeRawJSON(w http.ResponseWriter, status int, payload []byte) {
	w.WriteHeader(status)
	_, _ = w.Write(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	response := map[string]any{
		"success": false,
		"code":    code,
		"error":   message,
	}
	if details != nil {
		response["details"] = details
	}
	writeJSON(w, status, response)
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, http.ErrBodyReadAfterClose) {
			return nil
		}
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}
	if errors.Is(err, ErrNotConfigured) {
		return http.StatusInternalServerError, "NOT_CONFIGURED", "database not configured", nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return http.StatusNotFound, "NOT_FOUND", "Not found", nil
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}
