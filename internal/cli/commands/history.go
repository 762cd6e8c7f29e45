package commands

import (
	"strconv"
	"time"

	"github.com/leapstack-labs/mclineage/internal/cli/output"
	"github.com/leapstack-labs/mclineage/internal/state"
	"github.com/spf13/cobra"
)

// NewHistoryCommand creates the history command.
func NewHistoryCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded scans",
		Long:  `List scans recorded in the state database, newest first.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runHistory(cmd, limit)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of runs to show (0 for all)")
	return cmd
}

func runHistory(cmd *cobra.Command, limit int) error {
	c := NewCommandContext(cmd)
	store, err := c.openStore()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	runs, err := store.ListRuns(cmd.Context(), limit)
	if err != nil {
		return err
	}
	if runs == nil {
		runs = []*state.Run{}
	}

	r := c.Renderer
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(runs)
	}

	r.Header(1, "Scan history")
	if len(runs) == 0 {
		r.Println("No runs recorded.")
		return nil
	}

	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		fp := run.Fingerprint
		if len(fp) > 12 {
			fp = fp[:12]
		}
		rows = append(rows, []string{
			run.ID,
			run.StartedAt.Format(time.RFC3339),
			strconv.Itoa(run.NodeCount),
			strconv.Itoa(run.EdgeCount),
			strconv.Itoa(run.UnresolvedRefs),
			strconv.Itoa(len(run.Degraded)),
			fp,
		})
	}
	r.Table([]string{"Run", "Started", "Nodes", "Edges", "Unresolved", "Degraded", "Fingerprint"}, rows)
	return nil
}
