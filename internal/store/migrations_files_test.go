package store

import (
	"os"
	"path/filepath"
	"regexp"
	"testing"
)

func TestMigrationsHaveMatchingUpAndDownFiles(t *testing.T) {
	migrationsDir := filepath.Join("..", "..", "db", "migrations")
	entries, err := os.ReadDir(migrationsDir)
	if err != nil {
		t.Fatalf("read migrations dir: %v", err)
	}

	pattern := regexp.MustCompile(`^(\d+)_.*\.(up|down)\.sql$`)
	byVersion := map[string]map[string]bool{}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		match := pattern.FindStringSubmatch(name)
		if match == nil {
			continue
		}
		version := match[1]
		direction := match[2]
		if byVersion[version] == nil {
			byVersion[version] = map[string]bool{}
		}
		if byVersion[version][direction] {
			t.Fatalf("duplicate %s migration file for version %s", direction, version)
		}
		byVersion[version][direction] = true
	}

	if len(byVersion) == 0 {
		t.Fatal("no migrations discovered")
	}

	for version, dirs := range byVersion {
		if !dirs["up"] || !dirs["down"] {
			t.Fatalf("version %s must include both up and down files", version)
		}
	}
}

func TestClearableTablesCoversSchema(t *testing.T) {
	tables := ClearableTables()
	if len(tables) == 0 {
		t.Fatal("no clearable tables")
	}
	// Child tables must come before the tables they reference so a full
	// reset never trips a foreign key.
	position := map[string]int{}
	for i, name := range tables {
		position[name] = i
	}
	deps := map[string]string{
		"project_phases":   "projects",
		"project_team":     "projects",
		"project_invoices": "projects",
		"project_notes":    "projects",
		"projects":         "clients",
	}
	for child, parent := range deps {
		ci, ok := position[child]
		if !ok {
			t.Fatalf("table %s missing from clearable list", child)
		}
		pi, ok := position[parent]
		if !ok {
			t.Fatalf("table %s missing from clearable list", parent)
		}
		if ci >= pi {
			t.Fatalf("%s must be cleared before %s", child, parent)
		}
	}
}
