// Package config loads CLI configuration.
//
// Values are layered (lowest to highest): built-in defaults, mclineage.yaml,
// MCLINEAGE_* environment variables, then explicitly set flags.
package config

import "time"

// Default configuration values.
const (
	DefaultSnapshot  = "snapshot.yaml"
	DefaultOutDir    = "lineage"
	DefaultStateFile = ".mclineage/state.db"
	DefaultOutput    = "auto" // Auto-detect: TTY=text, non-TTY=markdown
	DefaultLogLevel  = "warn"
	DefaultLogFormat = "text"
	DefaultUIPort    = 8765
)

// ConfigFileNames are searched, in order, in the project root.
var ConfigFileNames = []string{"mclineage.yaml", "mclineage.yml"}

// Config holds all CLI configuration options.
type Config struct {
	// Snapshot is a local path or afs URL of the platform snapshot
	Snapshot string `koanf:"snapshot"`
	// OutDir receives graph.json, nodes.csv and edges.csv; empty skips export
	OutDir    string `koanf:"out_dir"`
	StatePath string `koanf:"state_path"`
	// Persist records each scan in the state store
	Persist bool `koanf:"persist"`
	// AsOf is the reference date for risk aging (YYYY-MM-DD or RFC3339)
	AsOf         string          `koanf:"as_of"`
	Verbose      bool            `koanf:"verbose"`
	OutputFormat string          `koanf:"output"`
	LogLevel     string          `koanf:"log_level"`
	LogFormat    string          `koanf:"log_format"`
	Telemetry    TelemetryConfig `koanf:"telemetry"`
	UI           UIConfig        `koanf:"ui"`

	// ProjectRoot anchors relative paths; set by the loader.
	ProjectRoot string `koanf:"-"`
	// ConfigFile is the file that was loaded, if any.
	ConfigFile string `koanf:"-"`

	asOf time.Time
}

// TelemetryConfig controls OpenTelemetry tracing.
type TelemetryConfig struct {
	Enabled  bool   `koanf:"enabled"`
	Endpoint string `koanf:"endpoint"`
}

// UIConfig holds configuration for the UI server.
type UIConfig struct {
	Port  int  `koanf:"port"`
	Watch bool `koanf:"watch"`
}

// AsOfTime returns the parsed as_of date, zero when unset.
// Valid after Validate.
func (c *Config) AsOfTime() time.Time {
	return c.asOf
}

// Default returns the configuration used when nothing is loaded.
func Default() *Config {
	return &Config{
		Snapshot:     DefaultSnapshot,
		OutDir:       DefaultOutDir,
		StatePath:    DefaultStateFile,
		Persist:      true,
		OutputFormat: DefaultOutput,
		LogLevel:     DefaultLogLevel,
		LogFormat:    DefaultLogFormat,
		UI:           UIConfig{Port: DefaultUIPort, Watch: true},
	}
}
