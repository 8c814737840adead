package database

import (
	"io/fs"
	"strings"
	"testing"
)

// Каждой up-миграции соответствует down-миграция
func TestMigrationsArePaired(t *testing.T) {
	entries, err := fs.ReadDir(migrationsFS, "migrations")
	if err != nil {
		t.Fatalf("read embedded migrations: %v", err)
	}
	if len(entries) == 0 {
		t.Fatal("no embedded migrations")
	}

	ups := map[string]bool{}
	downs := map[string]bool{}
	for _, e := range entries {
		name := e.Name()
		switch {
		case strings.HasSuffix(name, ".up.sql"):
			ups[strings.TrimSuffix(name, ".up.sql")] = true
		case strings.HasSuffix(name, ".down.sql"):
			downs[strings.TrimSuffix(name, ".down.sql")] = true
		default:
			t.Errorf("unexpected file in migrations: %s", name)
		}
	}

	for base := range ups {
		if !downs[base] {
			t.Errorf("migration %s has no down file", base)
		}
	}
	for base := range downs {
		if !ups[base] {
			t.Errorf("migration %s has no up file", base)
		}
	}
}

func TestMigrationsCreateCoreTables(t *testing.T) {
	var all strings.Builder
	_ = fs.WalkDir(migrationsFS, "migrations", func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !strings.HasSuffix(path, ".up.sql") {
			return err
		}
		data, rerr := migrationsFS.ReadFile(path)
		if rerr != nil {
			return rerr
		}
		all.Write(data)
		return nil
	})

	sql := all.String()
	for _, table := range []string{"account_integrations", "sync_history", "trader_credentials", "trader_performance"} {
		if !strings.Contains(sql, "CREATE TABLE IF NOT EXISTS "+table) {
			t.Errorf("table %s is not created by migrations", table)
		}
	}
	if !strings.Contains(sql, "uq_active_integration") {
		t.Error("partial unique index for active integrations is missing")
	}
}
