package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 8080
database:
  driver: postgres
  host: db.local
  port: 5432
  user: binsight
  password: secret
  name: scans
analyzer:
  staticImage: binsight/static-analyzer:latest
  dynamicImage: binsight/sandbox:latest
  phaseTimeout: 45s
threatBands:
  low: 0.5
  medium: 0.7
  high: 0.85
apiKeys:
  owner1: key-one
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("port = %d", cfg.Server.Port)
	}
	if cfg.Database.Driver != "postgres" {
		t.Errorf("driver = %q", cfg.Database.Driver)
	}
	if cfg.PhaseTimeout() != 45*time.Second {
		t.Errorf("phase timeout = %s", cfg.PhaseTimeout())
	}
	if cfg.ThreatBands.High != 0.85 {
		t.Errorf("high band = %v", cfg.ThreatBands.High)
	}
	if cfg.APIKeys["owner1"] != "key-one" {
		t.Errorf("api keys = %v", cfg.APIKeys)
	}

	wantDSN := "host=db.local port=5432 user=binsight password=secret dbname=scans sslmode=disable"
	if got := cfg.PostgresDSN(); got != wantDSN {
		t.Errorf("PostgresDSN = %q", got)
	}
}

func TestPhaseTimeoutDefaults(t *testing.T) {
	var cfg Config
	if cfg.PhaseTimeout() != 90*time.Second {
		t.Errorf("unset timeout = %s, want 90s", cfg.PhaseTimeout())
	}
	cfg.Analyzer.PhaseTimeout = "garbage"
	if cfg.PhaseTimeout() != 90*time.Second {
		t.Errorf("invalid timeout = %s, want 90s", cfg.PhaseTimeout())
	}
}

func TestMySQLDSN(t *testing.T) {
	var cfg Config
	cfg.Database.User = "u"
	cfg.Database.Password = "p"
	cfg.Database.Host = "h"
	cfg.Database.Port = 3306
	cfg.Database.Name = "scans"

	want := "u:p@tcp(h:3306)/scans?parseTime=true&charset=utf8mb4&loc=UTC"
	if got := cfg.MySQLDSN(); got != want {
		t.Errorf("MySQLDSN = %q", got)
	}
}
