package store

import (
	"context"
	"os"
	"testing"
)

// TestReconcileStoreRoundTrip exercises the batched upsert, prune and
// relation rewrite paths against a real database.
func TestReconcileStoreRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	db, err := Open(ctx, getTestDatabaseURL(t))
	if err != nil {
		t.Skipf("test database unavailable: %v", err)
	}
	defer db.Close()

	if err := ApplyMigrations(ctx, db, "../../db/migrations"); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}

	s := NewPostgresStore(db)
	for _, table := range ClearableTables() {
		if _, err := s.ClearTable(ctx, table); err != nil {
			t.Fatalf("clear %s: %v", table, err)
		}
	}

	// Seed members and clients, some keyed and some fresh.
	if err := s.UpsertTeamMembers(ctx, []TeamMember{
		{ID: 11, Name: "Ada", Role: "Designer", Capacity: 40, Rate: 120, Color: "#7d7259"},
		{Name: "Bo", Role: "Strategist", Capacity: 32, Rate: 95, Color: "#334455"},
	}); err != nil {
		t.Fatalf("upsert team members: %v", err)
	}
	if err := s.UpsertClients(ctx, []Client{{ID: 5, Name: "Studio North"}}); err != nil {
		t.Fatalf("upsert clients: %v", err)
	}

	clientID := int64(5)
	ids, err := s.UpsertProjects(ctx, []ProjectRecord{
		{ID: 100, Name: "Brand Refresh", ClientID: &clientID, Status: "active", Type: "branding", HoursPerWeek: 20, BudgetCurrency: "USD"},
		{Name: "Site Build", Status: "planning", Type: "web", HoursPerWeek: 20, BudgetCurrency: "USD"},
	})
	if err != nil {
		t.Fatalf("upsert projects: %v", err)
	}
	if len(ids) != 2 || ids[0] != 100 || ids[1] == 0 {
		t.Fatalf("unexpected returned ids: %v", ids)
	}

	// Relation rewrite: delete then insert for the touched projects.
	if err := s.DeleteProjectPhases(ctx, ids); err != nil {
		t.Fatalf("delete phases: %v", err)
	}
	if err := s.InsertProjectPhases(ctx, []Phase{
		{ProjectID: ids[0], PhaseIndex: 1, Name: "Discovery", Status: "completed"},
		{ProjectID: ids[0], PhaseIndex: 2, Name: "Design", Status: "in-progress"},
	}); err != nil {
		t.Fatalf("insert phases: %v", err)
	}
	if err := s.InsertProjectTeamLinks(ctx, []TeamLink{
		{ProjectID: ids[0], TeamMemberID: 11},
		{ProjectID: ids[0], TeamMemberID: 11},
	}); err != nil {
		t.Fatalf("insert duplicate team links should be ignored: %v", err)
	}

	projects, err := s.ListProjects(ctx)
	if err != nil {
		t.Fatalf("list projects: %v", err)
	}
	if len(projects) != 2 {
		t.Fatalf("expected 2 projects, got %d", len(projects))
	}
	if projects[0].ClientName != "Studio North" {
		t.Fatalf("expected client name join, got %q", projects[0].ClientName)
	}
	if len(projects[0].Phases) != 2 || projects[0].Phases[0].Name != "Discovery" {
		t.Fatalf("phases not ordered by phase_index: %+v", projects[0].Phases)
	}
	if len(projects[0].TeamMemberIDs) != 1 {
		t.Fatalf("duplicate team link not collapsed: %v", projects[0].TeamMemberIDs)
	}

	// Prune keeps only the listed ids.
	pruned, err := s.DeleteProjectsExcept(ctx, []int64{ids[0]})
	if err != nil {
		t.Fatalf("prune projects: %v", err)
	}
	if pruned != 1 {
		t.Fatalf("expected 1 pruned project, got %d", pruned)
	}

	// A project pointing at a missing client must surface a detectable
	// foreign key violation.
	missing := int64(99999)
	_, err = s.UpsertProjectRecord(ctx, ProjectRecord{Name: "Orphan", ClientID: &missing, Status: "active", Type: "web", HoursPerWeek: 20, BudgetCurrency: "USD"})
	if err == nil {
		t.Fatal("expected foreign key violation")
	}
	if !IsClientLinkViolation(err) {
		t.Fatalf("expected client link violation, got: %v", err)
	}
}

func TestClearTableRejectsUnknownTable(t *testing.T) {
	s := NewPostgresStore(nil)
	if _, err := s.ClearTable(context.Background(), "pg_catalog.pg_tables"); err == nil {
		t.Fatal("expected unknown table to be rejected")
	}
}

func getTestDatabaseURL(t *testing.T) string {
	t.Helper()

	if url := getenv("TEST_DATABASE_URL", ""); url != "" {
		return url
	}

	host := getenv("POSTGRES_HOST", "localhost")
	port := getenv("POSTGRES_PORT", "5432")
	user := getenv("POSTGRES_USER", "atelier")
	pass := getenv("POSTGRES_PASSWORD", "atelier")
	dbname := getenv("POSTGRES_DB", "atelier_test")

	return "postgres://" + user + ":" + pass + "@" + host + ":" + port + "/" + dbname + "?sslmode=disable"
}

func getenv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}
