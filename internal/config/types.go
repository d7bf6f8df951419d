package config

import "time"

// Config represents the complete curator configuration.
type Config struct {
	Service Service `yaml:"service"`
	Watch   Watch   `yaml:"watch"`
	Ledger  Ledger  `yaml:"ledger"`
	History History `yaml:"history"`
	Catalog Catalog `yaml:"catalog"`
	API     API     `yaml:"api,omitempty"`
}

// Service defines core service settings.
type Service struct {
	Name          string        `yaml:"name"`
	LogLevel      string        `yaml:"log_level"`
	Mode          string        `yaml:"mode"`           // "continuous" or "daily"
	CycleInterval time.Duration `yaml:"cycle_interval"` // sleep between scan cycles
	EntryDelay    time.Duration `yaml:"entry_delay"`    // pause between candidates
	DailyAt       string        `yaml:"daily_at"`       // "HH:MM", daily mode only
}

// Watch defines the directory the pipeline watches and how it is scanned.
type Watch struct {
	Directory string   `yaml:"directory"`
	Mode      string   `yaml:"mode"`             // "files" or "directories"
	Prefix    string   `yaml:"prefix,omitempty"` // directory basename filter, e.g. "GC"
	Exclude   []string `yaml:"exclude,omitempty"`
}

// Ledger defines where the processed-entry ledger is persisted.
type Ledger struct {
	Path     string `yaml:"path"`
	LockPath string `yaml:"lock_path,omitempty"`
}

// History defines the sqlite processing-history store.
type History struct {
	Path      string        `yaml:"path"`
	Retention time.Duration `yaml:"retention"`
}

// Catalog defines the remote data-catalog connection and record placement.
type Catalog struct {
	Endpoint   string   `yaml:"endpoint"`
	Repository string   `yaml:"repository"`
	Context    string   `yaml:"context,omitempty"`
	Collection string   `yaml:"collection"`
	Username   string   `yaml:"username,omitempty"`
	Password   string   `yaml:"password,omitempty"`
	Tags       []string `yaml:"tags,omitempty"`
}

// API defines HTTP control/observation server settings.
type API struct {
	Enabled bool    `yaml:"enabled"`
	Listen  string  `yaml:"listen"`
	Auth    APIAuth `yaml:"auth"`
}

// APIAuth defines API authentication settings.
type APIAuth struct {
	// APIKey is a single bearer token with full access.
	// Prefer Tokens for scoped access.
	APIKey string     `yaml:"api_key"`
	Tokens []APIToken `yaml:"tokens,omitempty"`
}

// APIToken defines a bearer token and its scopes.
type APIToken struct {
	Token  string   `yaml:"token"`
	Scopes []string `yaml:"scopes"`
}

// Modes accepted by Service.Mode.
const (
	ModeContinuous = "continuous"
	ModeDaily      = "daily"
)

// Modes accepted by Watch.Mode.
const (
	WatchFiles       = "files"
	WatchDirectories = "directories"
)

// Defaults returns a Config with sensible defaults.
func Defaults() *Config {
	return &Config{
		Service: Service{
			Name:          "curator",
			LogLevel:      "info",
			Mode:          ModeContinuous,
			CycleInterval: 5 * time.Second,
			EntryDelay:    1 * time.Second,
			DailyAt:       "00:00",
		},
		Watch: Watch{
			Mode: WatchFiles,
			Exclude: []string{
				"$RECYCLE.BIN",
				"System Volume Information",
				".curator",
			},
		},
		Ledger: Ledger{
			Path: "./data/processed.json",
		},
		History: History{
			Path:      "./data/history.db",
			Retention: 30 * 24 * time.Hour,
		},
		Catalog: Catalog{
			Collection: "root",
		},
		API: API{
			Enabled: false,
			Listen:  "127.0.0.1:8484",
		},
	}
}
