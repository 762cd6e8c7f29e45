package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "MCLINEAGE_"

// maxUpwardSearchLevels limits how far up the directory tree to search for config files.
const maxUpwardSearchLevels = 10

// flagKeys maps flag names to config keys. Flags not listed here are
// command options and never reach the config.
var flagKeys = map[string]string{
	"snapshot":           "snapshot",
	"out-dir":            "out_dir",
	"state":              "state_path",
	"persist":            "persist",
	"as-of":              "as_of",
	"verbose":            "verbose",
	"output":             "output",
	"log-level":          "log_level",
	"log-format":         "log_format",
	"telemetry":          "telemetry.enabled",
	"telemetry-endpoint": "telemetry.endpoint",
	"port":               "ui.port",
	"watch":              "ui.watch",
}

// pathFlags are resolved against the working directory when set on the command line.
var pathFlags = map[string]bool{"snapshot": true, "out-dir": true, "state": true}

// configExistsIn returns the config file in dir, or "".
func configExistsIn(dir string) string {
	for _, name := range ConfigFileNames {
		candidate := filepath.Join(dir, name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}

// findProjectRootUpward searches upward from startDir for a config file.
func findProjectRootUpward(startDir string) string {
	dir := startDir
	for range maxUpwardSearchLevels {
		if configExistsIn(dir) != "" {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}

// isURL reports whether location carries a scheme and must not be treated as a path.
func isURL(location string) bool {
	return strings.Contains(location, "://")
}

// resolvePathRelativeTo resolves a path relative to baseDir if it's not absolute.
func resolvePathRelativeTo(path, baseDir string) string {
	if path == "" || path == ":memory:" || isURL(path) || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}

// envKey turns MCLINEAGE_TELEMETRY_ENDPOINT into telemetry.endpoint.
func envKey(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	for _, section := range []string{"telemetry", "ui"} {
		if rest, ok := strings.CutPrefix(key, section+"_"); ok {
			return section + "." + rest
		}
	}
	return key
}

// Load reads configuration from defaults, file, environment and flags.
// An explicit cfgFile must exist; otherwise mclineage.yaml is searched upward
// from the working directory and its directory becomes the project root.
func Load(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}

	projectRoot := cwd
	if cfgFile != "" {
		abs, err := filepath.Abs(cfgFile)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve config path: %w", err)
		}
		cfgFile = abs
		projectRoot = filepath.Dir(abs)
	} else if root := findProjectRootUpward(cwd); root != "" {
		projectRoot = root
		cfgFile = configExistsIn(root)
	}

	// 1. Defaults
	d := Default()
	if err := k.Load(confmap.Provider(map[string]any{
		"snapshot":           d.Snapshot,
		"out_dir":            d.OutDir,
		"state_path":         d.StatePath,
		"persist":            d.Persist,
		"as_of":              "",
		"verbose":            false,
		"output":             d.OutputFormat,
		"log_level":          d.LogLevel,
		"log_format":         d.LogFormat,
		"telemetry.enabled":  false,
		"telemetry.endpoint": "",
		"ui.port":            d.UI.Port,
		"ui.watch":           d.UI.Watch,
	}, "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Config file
	if cfgFile != "" {
		if err := k.Load(file.Provider(cfgFile), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", cfgFile, err)
		}
	}

	// 3. Environment (MCLINEAGE_ prefix)
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Flags that were explicitly set
	flagPaths := map[string]string{}
	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			key, ok := flagKeys[f.Name]
			if !ok || !f.Changed {
				return "", nil
			}
			if pathFlags[f.Name] {
				flagPaths[key] = f.Value.String()
			}
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	cfg.ProjectRoot = projectRoot
	cfg.ConfigFile = cfgFile

	// Paths typed on the command line are relative to the working directory,
	// everything else to the project root.
	resolve := func(key, value string) string {
		if _, fromFlag := flagPaths[key]; fromFlag {
			return resolvePathRelativeTo(value, cwd)
		}
		return resolvePathRelativeTo(value, projectRoot)
	}
	cfg.Snapshot = resolve("snapshot", cfg.Snapshot)
	cfg.OutDir = resolve("out_dir", cfg.OutDir)
	cfg.StatePath = resolve("state_path", cfg.StatePath)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
