package notion

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func testClient(serverURL string) *Client {
	return NewClient(ClientOptions{
		BaseURL:   serverURL,
		Token:     "secret-token",
		BaseDelay: time.Millisecond,
		MaxDelay:  5 * time.Millisecond,
	})
}

func TestQueryDatabaseMapsProjects(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/databases/db-1/query" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret-token" {
			t.Errorf("unexpected authorization header: %s", got)
		}
		if got := r.Header.Get("Notion-Version"); got != "2022-06-28" {
			t.Errorf("unexpected notion version: %s", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"results": [{
				"id": "page-1",
				"last_edited_time": "2026-08-30T10:00:00.000Z",
				"properties": {
					"Project name": {"title": [{"plain_text": "Brand Refresh"}]},
					"Status": {"status": {"name": "In Progress"}},
					"Type": {"select": {"name": "Branding"}},
					"Account Owner": {"people": [{"name": "Maya"}]},
					"Rate $": {"number": 140},
					"Dates": {"date": {"start": "2026-09-01", "end": null}}
				}
			}],
			"has_more": false,
			"next_cursor": null
		}`))
	}))
	defer server.Close()

	pages, err := testClient(server.URL).QueryDatabase(context.Background(), "db-1")
	if err != nil {
		t.Fatalf("QueryDatabase failed: %v", err)
	}
	if len(pages) != 1 {
		t.Fatalf("expected 1 page, got %d", len(pages))
	}

	p := mapProject(pages[0])
	if p.Name != "Brand Refresh" {
		t.Errorf("unexpected name: %s", p.Name)
	}
	if p.Status != "in progress" {
		t.Errorf("status should be lowercased: %s", p.Status)
	}
	if p.Type != "branding" {
		t.Errorf("type should be lowercased: %s", p.Type)
	}
	if len(p.AccountOwner) != 1 || p.AccountOwner[0] != "Maya" {
		t.Errorf("unexpected account owner: %v", p.AccountOwner)
	}
	if p.Rate != 140 {
		t.Errorf("unexpected rate: %v", p.Rate)
	}
	if p.StartDate == nil || *p.StartDate != "2026-09-01" {
		t.Errorf("unexpected start date: %v", p.StartDate)
	}
	// A missing end date collapses to the start date.
	if p.EndDate == nil || *p.EndDate != "2026-09-01" {
		t.Errorf("unexpected end date: %v", p.EndDate)
	}
}

func TestQueryDatabaseFollowsPagination(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.Header().Set("Content-Type", "application/json")
		if calls.Add(1) == 1 {
			if _, ok := body["start_cursor"]; ok {
				t.Error("first request must not carry a cursor")
			}
			_, _ = w.Write([]byte(`{"results":[{"id":"page-1","properties":{}}],"has_more":true,"next_cursor":"cur-2"}`))
			return
		}
		if body["start_cursor"] != "cur-2" {
			t.Errorf("expected cursor cur-2, got %v", body["start_cursor"])
		}
		_, _ = w.Write([]byte(`{"results":[{"id":"page-2","properties":{}}],"has_more":false,"next_cursor":null}`))
	}))
	defer server.Close()

	pages, err := testClient(server.URL).QueryDatabase(context.Background(), "db-1")
	if err != nil {
		t.Fatalf("QueryDatabase failed: %v", err)
	}
	if len(pages) != 2 {
		t.Fatalf("expected 2 pages, got %d", len(pages))
	}
	if pages[1].ID != "page-2" {
		t.Errorf("unexpected second page: %s", pages[1].ID)
	}
}

func TestClientRetriesOnRateLimit(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{"results":[],"has_more":false,"next_cursor":null}`))
	}))
	defer server.Close()

	if _, err := testClient(server.URL).QueryDatabase(context.Background(), "db-1"); err != nil {
		t.Fatalf("expected retry to succeed: %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected 2 calls, got %d", calls.Load())
	}
}

func TestClientSurfacesNotionErrorCode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":"validation_error","message":"body failed validation"}`))
	}))
	defer server.Close()

	_, err := testClient(server.URL).QueryDatabase(context.Background(), "db-1")
	if err == nil {
		t.Fatal("expected error")
	}
	want := "notion request failed: status=400 code=validation_error message=body failed validation"
	if err.Error() != want {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestUpdateTaskBuildsPatchProperties(t *testing.T) {
	var captured map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch {
			t.Errorf("expected PATCH, got %s", r.Method)
		}
		_ = json.NewDecoder(r.Body).Decode(&captured)
		_, _ = w.Write([]byte(`{
			"id": "task-1",
			"last_edited_time": "2026-08-30T10:00:00.000Z",
			"properties": {
				"Name": {"title": [{"plain_text": "Kickoff deck"}]},
				"Status": {"status": {"name": "Done"}}
			}
		}`))
	}))
	defer server.Close()

	svc := NewService(testClient(server.URL), "db-projects", "db-tasks")
	task, err := svc.UpdateTask(context.Background(), "task-1", TaskPatch{
		Status:    "Done",
		StartDate: "2026-09-02",
	})
	if err != nil {
		t.Fatalf("UpdateTask failed: %v", err)
	}
	if task.Status != "Done" {
		t.Errorf("unexpected status: %s", task.Status)
	}

	props, _ := captured["properties"].(map[string]any)
	if _, ok := props["Name"]; ok {
		t.Error("empty name must not be patched")
	}
	if _, ok := props["Status"]; !ok {
		t.Error("status patch missing")
	}
	date, _ := props["Date"].(map[string]any)
	inner, _ := date["date"].(map[string]any)
	if inner["end"] != "2026-09-02" {
		t.Errorf("end date should default to start date, got %v", inner["end"])
	}
}
