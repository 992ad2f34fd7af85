package persistence

import (
	"context"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/danilaloko/eco-bot/internal/config"
)

func TestMigrationNames_Embedded(t *testing.T) {
	names, err := MigrationNames()
	if err != nil {
		t.Fatalf("MigrationNames: %v", err)
	}
	if len(names) == 0 || names[0] != "0001_init.sql" {
		t.Fatalf("unexpected migrations: %v", names)
	}
	content, err := migrationFiles.ReadFile("migrations/" + names[0])
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	for _, fragment := range []string{
		"ON submissions (user_id, task_id) WHERE status <> 'rejected'",
		"ON tasks (LOWER(title))",
		"ON DELETE RESTRICT",
	} {
		if !strings.Contains(string(content), fragment) {
			t.Fatalf("schema is missing %q", fragment)
		}
	}

	if names[len(names)-1] != "0002_task_opens_at.sql" {
		t.Fatalf("expected the opening date migration last, got %v", names)
	}
	scheduled, err := migrationFiles.ReadFile("migrations/0002_task_opens_at.sql")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(scheduled), "ADD COLUMN IF NOT EXISTS opens_at") {
		t.Fatalf("opening date migration must be idempotent")
	}
}

func TestNewPostgres_WithoutDSN(t *testing.T) {
	pg, err := NewPostgres(context.Background(), config.PostgresConfig{}, zap.NewNop())
	if err != nil {
		t.Fatalf("NewPostgres: %v", err)
	}
	if pg.PoolHandle() != nil {
		t.Fatalf("expected nil pool without DSN")
	}
	if err := pg.Ping(context.Background()); err == nil {
		t.Fatalf("expected ping error without pool")
	}
	pg.Close()
}

func TestRedis_NilPing(t *testing.T) {
	var r *Redis
	if err := r.Ping(context.Background()); err == nil {
		t.Fatalf("expected error for unconfigured redis")
	}
}
