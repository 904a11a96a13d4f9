package app

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"atelier/api/internal/config"
	"atelier/api/internal/store"
)

func testConfig() config.Config {
	return config.Config{}
}

func TestNewWithoutStoreLeavesServiceUnconfigured(t *testing.T) {
	svc := New(testConfig(), Options{})
	if svc.Configured() {
		t.Fatalf("expected unconfigured service")
	}
	if err := svc.Ping(context.Background()); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("expected ErrNotConfigured from Ping, got %v", err)
	}
	if _, err := svc.FullData(context.Background()); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("expected ErrNotConfigured from FullData, got %v", err)
	}
	if _, err := svc.Reset(context.Background()); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("expected ErrNotConfigured from Reset, got %v", err)
	}
}

func TestFullDataAssemblesAllSections(t *testing.T) {
	start := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	fs := &fakeStore{
		listTeamMembersFn: func(context.Context) ([]store.TeamMember, error) {
			return []store.TeamMember{{ID: 1, Name: "Maren", Capacity: 40, Color: "#7d7259"}}, nil
		},
		listClientsFn: func(context.Context) ([]store.Client, error) {
			return []store.Client{{ID: 7, Name: "Studio North"}}, nil
		},
		listProjectsFn: func(context.Context) ([]store.Project, error) {
			clientID := int64(7)
			return []store.Project{{
				ProjectRecord: store.ProjectRecord{
					ID:             3,
					Name:           "Brand Refresh",
					ClientID:       &clientID,
					Status:         "active",
					Type:           "branding",
					HoursPerWeek:   20,
					StartDate:      &start,
					BudgetTotal:    42000,
					BudgetCurrency: "USD",
				},
				ClientName: "Studio North",
				Phases: []store.Phase{
					{ID: 11, ProjectID: 3, PhaseIndex: 1, Name: "Discovery", Status: "done", StartDate: &start},
				},
				TeamMemberIDs: []int64{1},
			}}, nil
		},
		listProjectTypesFn: func(context.Context) ([]store.ProjectType, error) {
			return []store.ProjectType{{Key: "branding", Name: "Branding", Color: "#b65d3f", Phases: json.RawMessage(`["Discovery"]`)}}, nil
		},
	}
	svc := newTestService(fs)

	payload, err := svc.FullData(context.Background())
	if err != nil {
		t.Fatalf("full data: %v", err)
	}

	var envelope FullDataEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if !envelope.Success {
		t.Errorf("expected success envelope")
	}
	if envelope.SyncedAt == "" {
		t.Errorf("expected syncedAt timestamp")
	}
	resp := envelope.Data
	if len(resp.Team) != 1 || resp.Team[0].Name != "Maren" {
		t.Errorf("unexpected team: %+v", resp.Team)
	}
	if len(resp.Projects) != 1 {
		t.Fatalf("expected 1 project, got %d", len(resp.Projects))
	}
	p := resp.Projects[0]
	if p.StartDate != "2026-03-02" {
		t.Errorf("expected start date 2026-03-02, got %q", p.StartDate)
	}
	// Null dates materialize as today instead of breaking the planner grid.
	if p.EndDate == "" {
		t.Errorf("expected a concrete end date for a null column")
	}
	if len(p.Phases) != 1 || p.Phases[0].ID != 1 || p.Phases[0].DBID != 11 {
		t.Errorf("unexpected phases: %+v", p.Phases)
	}
	if p.Budget.Total != 42000 || p.Budget.Currency != "USD" {
		t.Errorf("unexpected budget: %+v", p.Budget)
	}
	if len(p.Team) != 1 || p.Team[0] != 1 {
		t.Errorf("unexpected team links: %v", p.Team)
	}
	if pt, ok := resp.ProjectTypes["branding"]; !ok || pt.Name != "Branding" {
		t.Errorf("unexpected project types: %+v", resp.ProjectTypes)
	}
	if resp.ArchivedProjects == nil {
		t.Errorf("expected archivedProjects to encode as an array")
	}
}

func TestArchiveProjectSnapshotsAndRemoves(t *testing.T) {
	fs := &fakeStore{
		listProjectsFn: func(context.Context) ([]store.Project, error) {
			return []store.Project{{ProjectRecord: store.ProjectRecord{ID: 3, Name: "Brand Refresh", Type: "branding", BudgetTotal: 42000}, ClientName: "Studio North"}}, nil
		},
	}
	var inserted store.ArchivedProject
	fs.insertArchivedProjectFn = func(_ context.Context, a store.ArchivedProject) (store.ArchivedProject, error) {
		inserted = a
		a.ID = 9
		a.ArchivedAt = time.Now()
		return a, nil
	}
	var deletedID int64
	fs.deleteProjectFn = func(_ context.Context, id int64) error {
		deletedID = id
		return nil
	}
	svc := newTestService(fs)

	archived, err := svc.ArchiveProject(context.Background(), 3)
	if err != nil {
		t.Fatalf("archive: %v", err)
	}
	if archived.ID != 9 || archived.OriginalID != 3 {
		t.Errorf("unexpected archive row: %+v", archived)
	}
	if inserted.Name != "Brand Refresh" || inserted.BudgetTotal != 42000 {
		t.Errorf("unexpected listing columns: %+v", inserted)
	}
	if deletedID != 3 {
		t.Errorf("expected project 3 deleted, got %d", deletedID)
	}

	var data ProjectInput
	if err := json.Unmarshal(inserted.Data, &data); err != nil {
		t.Fatalf("archived data should round-trip as a project: %v", err)
	}
	if data.Name != "Brand Refresh" {
		t.Errorf("unexpected archived payload: %+v", data)
	}
}

func TestArchiveProjectNotFound(t *testing.T) {
	fs := &fakeStore{}
	svc := newTestService(fs)

	_, err := svc.ArchiveProject(context.Background(), 99)
	var domainErr *DomainError
	if !errors.As(err, &domainErr) || domainErr.Status != 404 {
		t.Fatalf("expected 404 domain error, got %v", err)
	}
}

func TestRestoreProjectCreatesFreshRow(t *testing.T) {
	blob, _ := json.Marshal(ProjectView{ID: 3, Name: "Brand Refresh", Status: "active"})
	fs := &fakeStore{
		getArchivedProjectFn: func(_ context.Context, id int64) (store.ArchivedProject, error) {
			return store.ArchivedProject{ID: 9, OriginalID: 3, Data: blob}, nil
		},
		listProjectsFn: func(context.Context) ([]store.Project, error) {
			return []store.Project{{ProjectRecord: store.ProjectRecord{ID: 57, Name: "Brand Refresh", Status: "active"}}}, nil
		},
	}
	var upserted store.ProjectRecord
	fs.upsertProjectRecordFn = func(_ context.Context, rec store.ProjectRecord) (int64, error) {
		upserted = rec
		return 57, nil
	}
	var droppedArchive int64
	fs.deleteArchivedProjectFn = func(_ context.Context, id int64) error {
		droppedArchive = id
		return nil
	}
	svc := newTestService(fs)

	restored, err := svc.RestoreProject(context.Background(), 9)
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if upserted.ID != 0 {
		t.Errorf("expected restore to insert a fresh row, got id %d", upserted.ID)
	}
	if upserted.Archived {
		t.Errorf("expected restored project to be active")
	}
	if restored.ID != 57 {
		t.Errorf("expected restored view id 57, got %d", restored.ID)
	}
	if droppedArchive != 9 {
		t.Errorf("expected archive entry 9 removed, got %d", droppedArchive)
	}
}

func TestAddProjectNoteDefaults(t *testing.T) {
	fs := &fakeStore{}
	var inserted store.Note
	fs.insertProjectNoteFn = func(_ context.Context, note store.Note) (store.Note, error) {
		inserted = note
		note.ID = 5
		note.CreatedAt = time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
		return note, nil
	}
	svc := newTestService(fs)

	note, err := svc.AddProjectNote(context.Background(), 3, "Client approved the moodboard", "")
	if err != nil {
		t.Fatalf("add note: %v", err)
	}
	if inserted.Author != "Unknown" {
		t.Errorf("expected default author, got %q", inserted.Author)
	}
	if note.Date != "2026-08-31" {
		t.Errorf("unexpected note date %q", note.Date)
	}

	_, err = svc.AddProjectNote(context.Background(), 3, "", "Maren")
	var domainErr *DomainError
	if !errors.As(err, &domainErr) || domainErr.Status != 400 {
		t.Errorf("expected 400 for empty content, got %v", err)
	}
}

func TestResetClearsChildTablesFirst(t *testing.T) {
	fs := &fakeStore{}
	var order []string
	fs.clearTableFn = func(_ context.Context, table string) (int64, error) {
		order = append(order, table)
		return 1, nil
	}
	svc := newTestService(fs)

	cleared, err := svc.Reset(context.Background())
	if err != nil {
		t.Fatalf("reset: %v", err)
	}
	want := store.ClearableTables()
	if len(order) != len(want) {
		t.Fatalf("expected %d tables cleared, got %d", len(want), len(order))
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("table %d: expected %s, got %s", i, want[i], order[i])
		}
	}
	if cleared["projects"] != 1 {
		t.Errorf("expected cleared counts per table, got %v", cleared)
	}
}

func TestDebugReportsConfiguredIntegrations(t *testing.T) {
	svc := New(testConfig(), Options{})
	info := svc.Debug(context.Background())
	if info["database"] != "not configured" {
		t.Errorf("expected database not configured, got %v", info["database"])
	}
	if info["redis"] != false || info["notion"] != false {
		t.Errorf("expected optional integrations off, got %v", info)
	}
}
