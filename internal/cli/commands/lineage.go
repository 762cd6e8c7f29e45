package commands

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/leapstack-labs/mclineage/internal/cli/output"
	"github.com/leapstack-labs/mclineage/internal/dag"
	"github.com/leapstack-labs/mclineage/internal/state"
	"github.com/leapstack-labs/mclineage/pkg/core"
	"github.com/spf13/cobra"
)

// LineageOutput is the JSON shape of a lineage query.
type LineageOutput struct {
	Run        string      `json:"run"`
	Root       core.Node   `json:"root"`
	Direction  string      `json:"direction"`
	Upstream   []core.Node `json:"upstream"`
	Downstream []core.Node `json:"downstream"`
}

// NewLineageCommand creates the lineage command.
func NewLineageCommand() *cobra.Command {
	var (
		direction string
		runID     string
	)

	cmd := &cobra.Command{
		Use:   "lineage <node>",
		Short: "Show where a node's data comes from and goes to",
		Long: `Walk the recorded lineage graph from one node.

The node may be given by id (storage::DE_Orders), key or label. Data flows
from storage into the queries that read it, and from queries and automations
into the storage they write.`,
		Example: `  # Everything fed by a data extension
  mclineage lineage DE_Subscribers

  # Everything a query depends on, from a specific run
  mclineage lineage Q_JoinOrders --direction upstream --run <id>`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLineage(cmd, args[0], direction, runID)
		},
	}

	cmd.Flags().StringVar(&direction, "direction", "both", "upstream, downstream or both")
	cmd.Flags().StringVar(&runID, "run", "", "Run id (default: latest)")
	_ = cmd.RegisterFlagCompletionFunc("direction", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"upstream", "downstream", "both"}, cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

// loadRunPayload loads the payload of runID, or of the latest run.
func loadRunPayload(ctx context.Context, store state.Store, runID string) (string, core.Payload, error) {
	if runID == "" {
		latest, err := store.LatestRun(ctx)
		if errors.Is(err, state.ErrRunNotFound) {
			return "", core.Payload{}, errNoRuns
		}
		if err != nil {
			return "", core.Payload{}, err
		}
		runID = latest.ID
	}
	p, err := store.LoadPayload(ctx, runID)
	return runID, p, err
}

func runLineage(cmd *cobra.Command, ref, direction, runID string) error {
	if !slices.Contains([]string{"upstream", "downstream", "both"}, direction) {
		return fmt.Errorf("invalid direction %q: expected upstream, downstream or both", direction)
	}

	c := NewCommandContext(cmd)
	store, err := c.openStore()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	runID, p, err := loadRunPayload(cmd.Context(), store, runID)
	if err != nil {
		return err
	}

	g := dag.FromPayload(p)
	id, ok := g.Find(ref)
	if !ok {
		return fmt.Errorf("node %q not found in run %s", ref, runID)
	}
	root, _ := g.Node(id)

	nodes := func(ids []string) []core.Node {
		out := make([]core.Node, 0, len(ids))
		for _, n := range ids {
			if node, ok := g.Node(n); ok {
				out = append(out, node)
			}
		}
		return out
	}

	result := LineageOutput{
		Run:        runID,
		Root:       root,
		Direction:  direction,
		Upstream:   []core.Node{},
		Downstream: []core.Node{},
	}
	if direction != "downstream" {
		result.Upstream = nodes(g.Upstream(id))
	}
	if direction != "upstream" {
		result.Downstream = nodes(g.Downstream(id))
	}

	r := c.Renderer
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(result)
	}

	r.Header(1, fmt.Sprintf("Lineage of %s", root.Label))
	r.KeyValue("Node", root.ID)
	r.KeyValue("Run", runID)
	if direction != "downstream" {
		r.Println("")
		r.Header(2, "Upstream")
		renderNodeTable(r, result.Upstream)
	}
	if direction != "upstream" {
		r.Println("")
		r.Header(2, "Downstream")
		renderNodeTable(r, result.Downstream)
	}
	return nil
}

func renderNodeTable(r *output.Renderer, nodes []core.Node) {
	if len(nodes) == 0 {
		r.Println("(none)")
		return
	}
	rows := make([][]string, 0, len(nodes))
	for _, n := range nodes {
		rows = append(rows, []string{n.ID, string(n.Category), n.Label})
	}
	r.Table([]string{"ID", "Category", "Label"}, rows)
}
