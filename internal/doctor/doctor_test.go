package doctor

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fluxlab/curator/internal/config"
)

func validConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Defaults()
	cfg.Watch.Directory = t.TempDir()
	cfg.Ledger.Path = filepath.Join(t.TempDir(), "processed.json")
	cfg.Catalog.Endpoint = "https://catalog.example.org/api"
	cfg.Catalog.Repository = "repo-main"
	return cfg
}

func hasIssue(issues []Issue, field string) bool {
	for _, i := range issues {
		if i.Field == field {
			return true
		}
	}
	return false
}

func TestValidate_ValidConfig(t *testing.T) {
	r := New(validConfig(t)).Validate()
	if !r.Valid {
		t.Fatalf("expected valid, got errors: %v", r.Errors)
	}
}

func TestValidate_MissingWatchDirectory(t *testing.T) {
	cfg := validConfig(t)
	cfg.Watch.Directory = ""
	r := New(cfg).Validate()
	if r.Valid || !hasIssue(r.Errors, "watch.directory") {
		t.Fatalf("expected watch.directory error, got %v", r.Errors)
	}
}

func TestValidate_NonexistentWatchDirectory(t *testing.T) {
	cfg := validConfig(t)
	cfg.Watch.Directory = filepath.Join(cfg.Watch.Directory, "gone")
	r := New(cfg).Validate()
	if r.Valid || !hasIssue(r.Errors, "watch.directory") {
		t.Fatalf("expected watch.directory error, got %v", r.Errors)
	}
}

func TestValidate_WatchRootIsFile(t *testing.T) {
	cfg := validConfig(t)
	file := filepath.Join(t.TempDir(), "notadir")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg.Watch.Directory = file
	r := New(cfg).Validate()
	if r.Valid {
		t.Fatalf("expected invalid for file watch root")
	}
}

func TestValidate_PrefixInFilesModeWarns(t *testing.T) {
	cfg := validConfig(t)
	cfg.Watch.Mode = config.WatchFiles
	cfg.Watch.Prefix = "GC"
	r := New(cfg).Validate()
	if !r.Valid {
		t.Fatalf("prefix misuse should be a warning, got errors: %v", r.Errors)
	}
	if !hasIssue(r.Warnings, "watch.prefix") {
		t.Fatalf("expected watch.prefix warning, got %v", r.Warnings)
	}
}

func TestValidate_LedgerDirectoryMissingIsWarning(t *testing.T) {
	cfg := validConfig(t)
	cfg.Ledger.Path = filepath.Join(t.TempDir(), "state", "processed.json")
	r := New(cfg).Validate()
	if !r.Valid {
		t.Fatalf("missing ledger dir should warn, got errors: %v", r.Errors)
	}
	if !hasIssue(r.Warnings, "ledger.path") {
		t.Fatalf("expected ledger.path warning, got %v", r.Warnings)
	}
}

func TestValidate_LedgerPathIsDirectory(t *testing.T) {
	cfg := validConfig(t)
	cfg.Ledger.Path = t.TempDir()
	r := New(cfg).Validate()
	if r.Valid || !hasIssue(r.Errors, "ledger.path") {
		t.Fatalf("expected ledger.path error, got %v", r.Errors)
	}
}

func TestValidate_MissingCatalogSettings(t *testing.T) {
	cfg := validConfig(t)
	cfg.Catalog.Endpoint = ""
	cfg.Catalog.Repository = ""
	r := New(cfg).Validate()
	if r.Valid {
		t.Fatal("expected invalid")
	}
	if !hasIssue(r.Errors, "catalog.endpoint") || !hasIssue(r.Errors, "catalog.repository") {
		t.Fatalf("expected catalog errors, got %v", r.Errors)
	}
}

func TestValidate_BadDailySchedule(t *testing.T) {
	cfg := validConfig(t)
	cfg.Service.Mode = config.ModeDaily
	cfg.Service.DailyAt = "midnight"
	r := New(cfg).Validate()
	if r.Valid || !hasIssue(r.Errors, "service.daily_at") {
		t.Fatalf("expected daily_at error, got %v", r.Errors)
	}
}

func TestValidate_UnknownMode(t *testing.T) {
	cfg := validConfig(t)
	cfg.Service.Mode = "hourly"
	r := New(cfg).Validate()
	if r.Valid {
		t.Fatal("expected invalid")
	}
	found := false
	for _, i := range r.Errors {
		if i.Field == "service.mode" && strings.Contains(i.Message, "hourly") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected service.mode error naming the bad mode, got %v", r.Errors)
	}
}

func TestValidate_APIEnabledWithoutAuthWarns(t *testing.T) {
	cfg := validConfig(t)
	cfg.API.Enabled = true
	r := New(cfg).Validate()
	if !r.Valid {
		t.Fatalf("missing API auth should warn, got errors: %v", r.Errors)
	}
	if !hasIssue(r.Warnings, "api.auth") {
		t.Fatalf("expected api.auth warning, got %v", r.Warnings)
	}
}
