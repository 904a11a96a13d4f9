package app

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"atelier/api/internal/store"
)

func newTestServer(fs *fakeStore) *HTTPServer {
	return NewHTTPServer(newTestService(fs), "*")
}

func doRequest(t *testing.T, server *HTTPServer, method, path string, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)
	return rr
}

func TestHealthEndpoint(t *testing.T) {
	rr := doRequest(t, newTestServer(&fakeStore{}), http.MethodGet, "/api/health", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	var response map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if ok, exists := response["ok"]; !exists || ok != true {
		t.Errorf("expected ok=true, got %v", ok)
	}
}

func TestReadyEndpointReportsDatabaseDown(t *testing.T) {
	fs := &fakeStore{
		pingFn: func(context.Context) error {
			return errors.New("connection refused")
		},
	}
	rr := doRequest(t, newTestServer(fs), http.MethodGet, "/api/ready", "")
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d", rr.Code)
	}
	var response map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if response["status"] != "not_ready" {
		t.Errorf("expected not_ready, got %v", response["status"])
	}
}

func TestOptionsRequestShortCircuits(t *testing.T) {
	rr := doRequest(t, newTestServer(&fakeStore{}), http.MethodOptions, "/api/sync", "")
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected status 204, got %d", rr.Code)
	}
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("expected CORS origin header, got %q", got)
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Errorf("expected request id header")
	}
}

func TestSyncPostRunsReconcile(t *testing.T) {
	fs := &fakeStore{}
	rr := doRequest(t, newTestServer(fs), http.MethodPost, "/api/sync",
		`{"team":[{"id":1,"name":"Maren"}],"clients":[],"projects":[{"name":"Brand Refresh"}]}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var result SyncResult
	if err := json.Unmarshal(rr.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if !result.Success {
		t.Errorf("expected success, errors: %v", result.Errors)
	}
	if result.ProjectsSaved != 1 {
		t.Errorf("expected 1 project saved, got %d", result.ProjectsSaved)
	}
	if result.SavedAt == "" {
		t.Errorf("expected savedAt timestamp")
	}
	if fs.callIndex("DeleteTeamMembersExcept") == -1 || fs.callIndex("DeleteClientsExcept") == -1 {
		t.Errorf("expected prune calls, got %v", fs.calls)
	}
}

func TestSyncPostWithoutDatabase(t *testing.T) {
	server := NewHTTPServer(New(testConfig(), Options{}), "*")
	rr := doRequest(t, server, http.MethodPost, "/api/sync", `{"team":[]}`)
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d", rr.Code)
	}
	var response map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if response["success"] != false {
		t.Errorf("expected success=false, got %v", response["success"])
	}
	if response["error"] != "database not configured" {
		t.Errorf("expected database not configured, got %v", response["error"])
	}
}

func TestSyncPostRejectsMalformedBody(t *testing.T) {
	rr := doRequest(t, newTestServer(&fakeStore{}), http.MethodPost, "/api/sync", `{"team": nope}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestSyncGetServesFullData(t *testing.T) {
	fs := &fakeStore{
		listProjectsFn: func(context.Context) ([]store.Project, error) {
			return []store.Project{{ProjectRecord: store.ProjectRecord{ID: 3, Name: "Brand Refresh"}}}, nil
		},
	}
	rr := doRequest(t, newTestServer(fs), http.MethodGet, "/api/sync", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	var envelope FullDataEnvelope
	if err := json.Unmarshal(rr.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if !envelope.Success {
		t.Errorf("expected success envelope")
	}
	if len(envelope.Data.Projects) != 1 || envelope.Data.Projects[0].Name != "Brand Refresh" {
		t.Errorf("unexpected projects: %+v", envelope.Data.Projects)
	}
	if envelope.SyncedAt == "" {
		t.Errorf("expected syncedAt timestamp")
	}
}

func TestTeamRoutes(t *testing.T) {
	fs := &fakeStore{
		listTeamMembersFn: func(context.Context) ([]store.TeamMember, error) {
			return []store.TeamMember{{ID: 1, Name: "Maren", Capacity: 40}}, nil
		},
	}
	server := newTestServer(fs)

	rr := doRequest(t, server, http.MethodGet, "/api/team", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "Maren") {
		t.Errorf("expected team listing, got %s", rr.Body.String())
	}

	rr = doRequest(t, server, http.MethodPost, "/api/team", `{"name":"Olu","role":"Designer"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var member TeamMemberView
	if err := json.Unmarshal(rr.Body.Bytes(), &member); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if member.Capacity != 40 {
		t.Errorf("expected default capacity 40, got %v", member.Capacity)
	}

	rr = doRequest(t, server, http.MethodDelete, "/api/team/1", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	rr = doRequest(t, server, http.MethodDelete, "/api/team/abc", "")
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected status 422 for bad id, got %d", rr.Code)
	}
}

func TestProjectNoteRoute(t *testing.T) {
	fs := &fakeStore{}
	rr := doRequest(t, newTestServer(fs), http.MethodPost, "/api/projects/3/notes",
		`{"content":"Client approved the moodboard"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var note NoteView
	if err := json.Unmarshal(rr.Body.Bytes(), &note); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if note.Author != "Unknown" {
		t.Errorf("expected default author, got %q", note.Author)
	}

	rr = doRequest(t, newTestServer(fs), http.MethodPost, "/api/projects/3/notes", `{"content":""}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 for empty note, got %d", rr.Code)
	}
}

func TestArchiveRoutes(t *testing.T) {
	fs := &fakeStore{
		listProjectsFn: func(context.Context) ([]store.Project, error) {
			return []store.Project{{ProjectRecord: store.ProjectRecord{ID: 3, Name: "Brand Refresh"}}}, nil
		},
	}
	server := newTestServer(fs)

	rr := doRequest(t, server, http.MethodPost, "/api/projects/3/archive", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	rr = doRequest(t, server, http.MethodGet, "/api/archive", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	rr = doRequest(t, server, http.MethodDelete, "/api/archive/9", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
}

func TestSearchWithoutBackendReturnsEmpty(t *testing.T) {
	rr := doRequest(t, newTestServer(&fakeStore{}), http.MethodGet, "/api/search?q=brand", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	var response map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	results, ok := response["results"].([]any)
	if !ok || len(results) != 0 {
		t.Errorf("expected empty results array, got %v", response["results"])
	}
}

func TestSearchAcceptsTypeFilter(t *testing.T) {
	rr := doRequest(t, newTestServer(&fakeStore{}), http.MethodGet, "/api/search?q=brand&type=project", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	var response map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if response["query"] != "brand" {
		t.Errorf("expected query echoed back, got %v", response["query"])
	}
}

func TestSearchRejectsBadLimit(t *testing.T) {
	rr := doRequest(t, newTestServer(&fakeStore{}), http.MethodGet, "/api/search?q=brand&limit=lots", "")
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected status 422, got %d", rr.Code)
	}
}

func TestNotionRoutesUnavailableWhenUnconfigured(t *testing.T) {
	server := newTestServer(&fakeStore{})

	rr := doRequest(t, server, http.MethodGet, "/api/notion/sync", "")
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d", rr.Code)
	}
	var response map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if response["success"] != false || response["error"] != "notion not configured" {
		t.Errorf("unexpected body: %v", response)
	}

	rr = doRequest(t, server, http.MethodPatch, "/api/notion/tasks/abc123", `{"status":"Done"}`)
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d", rr.Code)
	}
}

func TestBackupsUnavailableWhenUnconfigured(t *testing.T) {
	rr := doRequest(t, newTestServer(&fakeStore{}), http.MethodGet, "/api/backups", "")
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d", rr.Code)
	}
}

func TestUnknownRouteReturns404(t *testing.T) {
	rr := doRequest(t, newTestServer(&fakeStore{}), http.MethodGet, "/api/nope", "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rr.Code)
	}
	var response map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if response["code"] != "NOT_FOUND" {
		t.Errorf("expected NOT_FOUND code, got %v", response["code"])
	}
}

func TestResetRoute(t *testing.T) {
	fs := &fakeStore{}
	rr := doRequest(t, newTestServer(fs), http.MethodPost, "/api/reset", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if fs.callIndex("ClearTable:projects") == -1 {
		t.Errorf("expected projects table cleared, calls: %v", fs.calls)
	}
}

func TestProjectsPostActionEnvelope(t *testing.T) {
	fs := &fakeStore{
		listProjectsFn: func(context.Context) ([]store.Project, error) {
			return []store.Project{{ProjectRecord: store.ProjectRecord{ID: 3, Name: "Brand Refresh"}}}, nil
		},
	}
	server := newTestServer(fs)

	rr := doRequest(t, server, http.MethodPost, "/api/projects",
		`{"action":"addNote","projectId":3,"note":{"content":"Kickoff booked","author":"Maren"}}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var note NoteView
	if err := json.Unmarshal(rr.Body.Bytes(), &note); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if note.Author != "Maren" {
		t.Errorf("expected author Maren, got %q", note.Author)
	}

	rr = doRequest(t, server, http.MethodPost, "/api/projects",
		`{"action":"archive","project":{"id":3}}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if fs.callIndex("InsertArchivedProject") == -1 {
		t.Errorf("expected archive insert, calls: %v", fs.calls)
	}

	rr = doRequest(t, server, http.MethodPost, "/api/projects",
		`{"action":"selfDestruct"}`)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected status 422 for unknown action, got %d", rr.Code)
	}
}

func TestArchivePostRestores(t *testing.T) {
	blob, _ := json.Marshal(ProjectView{ID: 3, Name: "Brand Refresh"})
	fs := &fakeStore{
		getArchivedProjectFn: func(_ context.Context, id int64) (store.ArchivedProject, error) {
			return store.ArchivedProject{ID: 9, OriginalID: 3, Data: blob}, nil
		},
		listProjectsFn: func(context.Context) ([]store.Project, error) {
			return []store.Project{{ProjectRecord: store.ProjectRecord{ID: 12, Name: "Brand Refresh"}}}, nil
		},
		upsertProjectRecordFn: func(context.Context, store.ProjectRecord) (int64, error) {
			return 12, nil
		},
	}
	rr := doRequest(t, newTestServer(fs), http.MethodPost, "/api/archive",
		`{"action":"restore","project":{"id":9}}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var project ProjectView
	if err := json.Unmarshal(rr.Body.Bytes(), &project); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if project.ID != 12 {
		t.Errorf("expected restored project id 12, got %d", project.ID)
	}
	if fs.callIndex("DeleteArchivedProject") == -1 {
		t.Errorf("expected archive entry removed, calls: %v", fs.calls)
	}
}
