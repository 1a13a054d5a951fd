package db

import (
	"context"
	"strings"
	"testing"
)

func TestMigrationsEmbedded(t *testing.T) {
	names, err := MigrationNames()
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	want := []string{"create_users", "create_documents", "create_signature_requests"}
	if len(names) != len(want) {
		t.Fatalf("expected %d migrations, got %v", len(want), names)
	}
	for i, name := range names {
		if !strings.Contains(name, want[i]) {
			t.Fatalf("migration %d = %s, want *%s*", i, name, want[i])
		}
		data, err := migrationFiles.ReadFile(name)
		if err != nil {
			t.Fatalf("read %s: %v", name, err)
		}
		if !strings.Contains(string(data), "-- +goose Up") || !strings.Contains(string(data), "-- +goose Down") {
			t.Fatalf("%s missing goose annotations", name)
		}
	}
}

func TestRunMigrationsNilDatabase(t *testing.T) {
	if err := RunMigrations(context.Background(), nil); err != nil {
		t.Fatalf("expected nil database to be skipped, got %v", err)
	}
}
