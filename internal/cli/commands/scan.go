package commands

import (
	"fmt"
	"slices"
	"strconv"

	"github.com/leapstack-labs/mclineage/internal/cli/output"
	"github.com/leapstack-labs/mclineage/internal/engine"
	"github.com/leapstack-labs/mclineage/internal/export"
	"github.com/leapstack-labs/mclineage/pkg/core"
	"github.com/spf13/cobra"
)

// ScanOutput is the JSON shape of a scan.
type ScanOutput struct {
	*engine.Result
	Files []string `json:"files"`
}

// NewScanCommand creates the scan command.
func NewScanCommand() *cobra.Command {
	var noExport bool

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Build the lineage graph from a snapshot",
		Long: `Collect every category from the snapshot, assemble the lineage graph,
score storage risk and write graph.json, nodes.csv and edges.csv.

The run is recorded in the state database unless --persist=false.`,
		Example: `  # Scan ./snapshot.yaml into ./lineage
  mclineage scan

  # Scan a snapshot from object storage, export to a local directory
  mclineage scan --snapshot s3://bucket/sfmc/snapshot.json --out-dir ./out

  # Machine-readable report
  mclineage scan -o json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runScan(cmd, noExport)
		},
	}

	cmd.Flags().String("out-dir", "", "Directory or URL receiving the exported graph")
	cmd.Flags().Bool("persist", true, "Record the run in the state database")
	cmd.Flags().String("as-of", "", "Reference date for risk aging (YYYY-MM-DD)")
	cmd.Flags().BoolVar(&noExport, "no-export", false, "Skip writing graph files")

	return cmd
}

func runScan(cmd *cobra.Command, noExport bool) error {
	c := NewCommandContext(cmd)

	eng, err := c.newEngine(c.Cfg.Persist)
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()

	res, err := eng.Run(cmd.Context())
	if err != nil {
		return err
	}

	files := []string{}
	if !noExport && c.Cfg.OutDir != "" {
		files, err = export.NewExporter().WriteAll(cmd.Context(), c.Cfg.OutDir, res.Payload)
		if err != nil {
			return err
		}
	}

	r := c.Renderer
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(ScanOutput{Result: res, Files: files})
	}

	renderScanReport(r, res, files)
	for _, cat := range sortedCategories(res.Degraded) {
		r.Warning(fmt.Sprintf("%s degraded: %s", cat, res.Degraded[cat]))
	}
	return nil
}

func renderScanReport(r *output.Renderer, res *engine.Result, files []string) {
	r.Header(1, "Lineage scan")
	r.KeyValue("Source", res.Source)
	if res.RunID != "" {
		r.KeyValue("Run", res.RunID)
	}
	r.KeyValue("Nodes", strconv.Itoa(res.Stats.Nodes))
	r.KeyValue("Edges", strconv.Itoa(res.Stats.Edges))
	r.KeyValue("Unresolved references", strconv.Itoa(res.Stats.UnresolvedRefs))
	r.KeyValue("Skipped records", strconv.Itoa(res.Skipped))
	r.KeyValue("Degraded categories", strconv.Itoa(len(res.Degraded)))
	r.KeyValue("Fingerprint", res.Fingerprint)
	r.Println("")

	r.Header(2, "Collection")
	rows := make([][]string, 0, len(res.Collection))
	for _, cr := range res.Collection {
		status := "ok"
		if cr.Degraded() {
			status = "degraded"
		}
		rows = append(rows, []string{
			string(cr.Category),
			strconv.Itoa(cr.Count),
			strconv.Itoa(cr.Skipped),
			strconv.Itoa(res.Stats.ByCategory[cr.Category]),
			status,
		})
	}
	r.Table([]string{"Category", "Records", "Skipped", "Nodes", "Status"}, rows)

	if len(files) > 0 {
		r.Println("")
		r.Header(2, "Files")
		for _, f := range files {
			r.Println("- " + f)
		}
	}
}

func sortedCategories(m map[core.Category]string) []core.Category {
	cats := make([]core.Category, 0, len(m))
	for c := range m {
		cats = append(cats, c)
	}
	slices.Sort(cats)
	return cats
}
