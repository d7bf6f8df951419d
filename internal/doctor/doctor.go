// Package doctor validates curator configuration and runtime prerequisites
// before the pipeline starts: watch root, ledger writability, catalog
// settings, schedule and API auth.
package doctor

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fluxlab/curator/internal/config"
)

// Result holds the outcome of a validation run.
type Result struct {
	Valid    bool    `json:"valid"`
	Errors   []Issue `json:"errors,omitempty"`
	Warnings []Issue `json:"warnings,omitempty"`
}

// Issue describes a single validation error or warning.
type Issue struct {
	Category string `json:"category"`
	Message  string `json:"message"`
	Field    string `json:"field,omitempty"`
}

// Doctor validates a loaded configuration against the filesystem.
type Doctor struct {
	cfg *config.Config
}

// New creates a Doctor from a loaded config.
func New(cfg *config.Config) *Doctor {
	return &Doctor{cfg: cfg}
}

// Validate runs all checks and returns a result.
func (d *Doctor) Validate() *Result {
	r := &Result{Valid: true}

	d.validateWatchRoot(r)
	d.validateLedger(r)
	d.validateCatalog(r)
	d.validateSchedule(r)
	d.validateAPIConfig(r)
	d.warnHistory(r)

	r.Valid = len(r.Errors) == 0
	return r
}

func (d *Doctor) addError(r *Result, category, field, msg string) {
	r.Errors = append(r.Errors, Issue{Category: category, Field: field, Message: msg})
}

func (d *Doctor) addWarning(r *Result, category, field, msg string) {
	r.Warnings = append(r.Warnings, Issue{Category: category, Field: field, Message: msg})
}

// validateWatchRoot checks the watch directory exists and is a directory.
// A missing watch root is a fatal startup condition, never a warning.
func (d *Doctor) validateWatchRoot(r *Result) {
	dir := d.cfg.Watch.Directory
	if dir == "" {
		d.addError(r, "watch", "watch.directory", "watch.directory is required")
		return
	}
	info, err := os.Stat(dir)
	if err != nil {
		d.addError(r, "watch", "watch.directory", fmt.Sprintf("watch directory %q: %v", dir, err))
		return
	}
	if !info.IsDir() {
		d.addError(r, "watch", "watch.directory", fmt.Sprintf("%q is not a directory", dir))
	}

	if d.cfg.Watch.Prefix != "" && d.cfg.Watch.Mode != config.WatchDirectories {
		d.addWarning(r, "watch", "watch.prefix",
			"prefix is only applied in directories mode and will be ignored")
	}
}

// validateLedger checks the ledger's parent directory is usable.
func (d *Doctor) validateLedger(r *Result) {
	path := d.cfg.Ledger.Path
	if path == "" {
		d.addError(r, "ledger", "ledger.path", "ledger.path is required")
		return
	}

	dir := filepath.Dir(path)
	info, err := os.Stat(dir)
	switch {
	case os.IsNotExist(err):
		d.addWarning(r, "ledger", "ledger.path",
			fmt.Sprintf("ledger directory %q does not exist yet (created on first run)", dir))
	case err != nil:
		d.addError(r, "ledger", "ledger.path", fmt.Sprintf("ledger directory %q: %v", dir, err))
	case !info.IsDir():
		d.addError(r, "ledger", "ledger.path", fmt.Sprintf("%q is not a directory", dir))
	default:
		probe := filepath.Join(dir, ".curator-doctor-probe")
		if f, err := os.Create(probe); err != nil {
			d.addError(r, "ledger", "ledger.path",
				fmt.Sprintf("ledger directory %q is not writable: %v", dir, err))
		} else {
			_ = f.Close()
			_ = os.Remove(probe)
		}
	}

	if info, err := os.Stat(path); err == nil && info.IsDir() {
		d.addError(r, "ledger", "ledger.path", fmt.Sprintf("%q is a directory, expected a file", path))
	}
}

func (d *Doctor) validateCatalog(r *Result) {
	if d.cfg.Catalog.Endpoint == "" {
		d.addError(r, "catalog", "catalog.endpoint", "catalog.endpoint is required")
	}
	if d.cfg.Catalog.Repository == "" {
		d.addError(r, "catalog", "catalog.repository", "catalog.repository is required")
	}
	if d.cfg.Catalog.Collection == "" {
		d.addWarning(r, "catalog", "catalog.collection",
			"no collection configured, records will be created under root")
	}
	if d.cfg.Catalog.Username != "" && d.cfg.Catalog.Password == "" {
		d.addWarning(r, "catalog", "catalog.password",
			"username set without password, unattended login will fail")
	}
}

func (d *Doctor) validateSchedule(r *Result) {
	switch d.cfg.Service.Mode {
	case config.ModeContinuous:
		if d.cfg.Service.CycleInterval <= 0 {
			d.addError(r, "schedule", "service.cycle_interval", "cycle_interval must be positive")
		}
	case config.ModeDaily:
		if _, _, err := config.ParseTimeOfDay(d.cfg.Service.DailyAt); err != nil {
			d.addError(r, "schedule", "service.daily_at", err.Error())
		}
	default:
		d.addError(r, "schedule", "service.mode",
			fmt.Sprintf("unknown mode %q (expected %q or %q)", d.cfg.Service.Mode,
				config.ModeContinuous, config.ModeDaily))
	}
	if d.cfg.Service.EntryDelay < 0 {
		d.addError(r, "schedule", "service.entry_delay", "entry_delay must not be negative")
	}
}

func (d *Doctor) validateAPIConfig(r *Result) {
	if !d.cfg.API.Enabled {
		return
	}
	if d.cfg.API.Listen == "" {
		d.addError(r, "api", "api.listen", "api.listen is required when API is enabled")
	}
	if d.cfg.API.Auth.APIKey == "" && len(d.cfg.API.Auth.Tokens) == 0 {
		d.addWarning(r, "api", "api.auth", "API enabled but no authentication configured")
	}
}

func (d *Doctor) warnHistory(r *Result) {
	if d.cfg.History.Path == "" {
		d.addWarning(r, "history", "history.path",
			"history disabled, past cycles will not be queryable")
	}
}
