package database

import (
	"strings"
	"testing"

	"biolink/internal/config"
)

func TestDSN(t *testing.T) {
	cfg := &config.Config{
		DBHost: "db", DBPort: "5432", DBUser: "app", DBPassword: "secret", DBName: "biolink", DBSSLMode: "disable",
	}

	got := DSN(cfg)
	want := "host=db user=app password=secret dbname=biolink port=5432 sslmode=disable"
	if got != want {
		t.Errorf("DSN = %q, want %q", got, want)
	}

	cfg.DatabaseURL = "postgres://app:secret@db:5432/biolink"
	if got := DSN(cfg); got != cfg.DatabaseURL {
		t.Errorf("DSN = %q, want DATABASE_URL", got)
	}
}

func TestSchemaIsEmbedded(t *testing.T) {
	for _, table := range []string{"profiles", "view_counters", "site_counter", "profiles_shareable_slug_key"} {
		if !strings.Contains(schema, table) {
			t.Errorf("schema is missing %s", table)
		}
	}
}
