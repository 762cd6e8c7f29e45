// Package commands implements the mclineage subcommands.
package commands

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/leapstack-labs/mclineage/internal/cli/config"
	"github.com/leapstack-labs/mclineage/internal/cli/output"
	"github.com/leapstack-labs/mclineage/internal/collect"
	"github.com/leapstack-labs/mclineage/internal/engine"
	"github.com/leapstack-labs/mclineage/internal/state"
	"github.com/spf13/cobra"
)

// errNoRuns explains an empty history in CLI terms.
var errNoRuns = errors.New("no runs recorded yet; run 'mclineage scan' first")

// CommandContext holds common dependencies for command execution.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Renderer *output.Renderer
}

// NewCommandContext collects the config, logger and renderer set up by the root command.
func NewCommandContext(cmd *cobra.Command) *CommandContext {
	cfg := config.GetConfig(cmd.Context())
	return &CommandContext{
		Cfg:      cfg,
		Logger:   config.GetLogger(cmd.Context()),
		Renderer: output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.OutputMode(cfg.OutputFormat)),
	}
}

// isRemote reports whether location is a URL rather than a local path.
func isRemote(location string) bool {
	return strings.Contains(location, "://")
}

// ensureStateDir creates the directory holding the state database.
func ensureStateDir(statePath string) error {
	if statePath == ":memory:" {
		return nil
	}
	dir := filepath.Dir(statePath)
	if dir == "." || dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}
	return nil
}

// newEngine builds an engine over the configured snapshot.
// The state store is opened when persist is set.
func (c *CommandContext) newEngine(persist bool) (*engine.Engine, error) {
	engineCfg := engine.Config{
		Source: collect.NewFileSource(c.Cfg.Snapshot),
		AsOf:   c.Cfg.AsOfTime(),
		Logger: c.Logger,
	}
	if persist {
		if err := ensureStateDir(c.Cfg.StatePath); err != nil {
			return nil, err
		}
		engineCfg.StatePath = c.Cfg.StatePath
	}
	return engine.New(engineCfg)
}

// openStore opens the run history for read commands.
func (c *CommandContext) openStore() (*state.SQLiteStore, error) {
	if c.Cfg.StatePath != ":memory:" {
		if _, err := os.Stat(c.Cfg.StatePath); errors.Is(err, os.ErrNotExist) {
			return nil, errNoRuns
		}
	}
	store := state.NewSQLiteStore(c.Logger)
	if err := store.Open(c.Cfg.StatePath); err != nil {
		return nil, err
	}
	return store, nil
}
