package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"schemamap/internal/ddl"
	"schemamap/internal/diagnostic"
	"schemamap/internal/ecschema"
	"schemamap/internal/engine"
)

var scriptPath string

const schemaSetHelp = `The stored layout does not keep the schemas it was built from. Pass every
schema imported so far together with the new ones: a class missing from the
arguments is treated as removed and the import fails.`

var planCmd = &cobra.Command{
	Use:   "plan <schema.yaml>...",
	Short: "Show the DDL an import would run",
	Long:  "Show the DDL an import would run, without touching the database.\n\n" + schemaSetHelp,
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runImport(cmd, args, true)
	},
}

var importCmd = &cobra.Command{
	Use:   "import <schema.yaml>...",
	Short: "Import schemas and apply the resulting DDL",
	Long:  "Import schemas, apply the resulting DDL and store the new layout.\n\n" + schemaSetHelp,
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runImport(cmd, args, false)
	},
}

func init() {
	planCmd.Flags().StringVarP(&scriptPath, "output", "o", "", "write the DDL script to this file")
}

func runImport(cmd *cobra.Command, paths []string, dryRun bool) error {
	ctx := cmd.Context()

	graph, err := ecschema.LoadGraph(paths...)
	if err != nil {
		return err
	}

	s, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore(s)

	rec := newRecorder()
	defer flushMetrics(rec)

	im := engine.NewImporter(s, cfg.EngineOptions(), rec)

	var p *engine.Plan
	if dryRun {
		p, err = im.DryRun(ctx, graph)
	} else {
		p, err = im.Import(ctx, graph)
	}

	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	printWarnings(out, p.Diagnostics)

	if p.Delta.IsEmpty() {
		fmt.Fprintln(out, "layout unchanged")
		return nil
	}

	if dryRun && scriptPath != "" {
		if err := ddl.WriteScriptFile(scriptPath, p.Statements); err != nil {
			return err
		}

		fmt.Fprintf(out, "wrote %d statements to %s\n", len(p.Statements), scriptPath)

		return nil
	}

	if err := ddl.WriteScript(out, p.Statements); err != nil {
		return err
	}

	verb := "planned"
	if !dryRun {
		verb = "applied"
	}

	fmt.Fprintf(out, "-- import %s %s: %d tables, %d columns, %d indexes\n",
		p.ImportID, verb, len(p.Delta.NewTables), len(p.Delta.NewColumns),
		len(p.Delta.NewIndexes)+len(p.Delta.ChangedIndexes))

	return nil
}

func printWarnings(w io.Writer, diags diagnostic.Diagnostics) {
	for _, d := range diags.Warnings {
		fmt.Fprintf(w, "-- %s\n", d)
	}
}
