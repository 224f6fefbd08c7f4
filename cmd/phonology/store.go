package main

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/nowemoore/phonology-app/pkg/db"
	"github.com/nowemoore/phonology-app/pkg/ingest"
	"github.com/nowemoore/phonology-app/pkg/table"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

func newImportCmd(a *app) *cobra.Command {
	var noProgress bool
	cmd := &cobra.Command{
		Use:   "import NAME [TABLE]",
		Short: "Import a feature table into the database as a named inventory",
		Long: `Import a feature table into the database as a named inventory. TABLE
defaults to --table, or the built-in table. Re-importing the same table
resumes an interrupted import; a changed table replaces the inventory.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := a.database()
			if err != nil {
				return err
			}

			var src table.Source = table.Default()
			switch {
			case len(args) == 2:
				src = table.NewFileSource(args[1])
			case a.v.GetString("table") != "":
				src = table.NewFileSource(a.v.GetString("table"))
			}
			tbl, err := src.Load(cmd.Context())
			if err != nil {
				return err
			}

			im := ingest.NewImporter(conn)
			im.Workers = a.v.GetInt("workers")
			im.BatchSize = a.v.GetInt("batch_size")
			if !noProgress {
				bar := progressbar.NewOptions(len(tbl.Records),
					progressbar.OptionSetWriter(cmd.ErrOrStderr()),
					progressbar.OptionSetDescription("importing "+args[0]),
					progressbar.OptionShowCount(),
					progressbar.OptionClearOnFinish(),
				)
				defer bar.Close()
				im.OnProgress = func(current, total int) { _ = bar.Set(current) }
			}

			rep, err := im.Import(cmd.Context(), args[0], tbl)
			if err != nil {
				return err
			}
			switch {
			case rep.Unchanged:
				a.printf("Inventory %s is up to date (%s rows from %s).\n", args[0], humanize.Comma(int64(rep.Inventory.RowCount)), src.Name())
			case rep.Resumed:
				a.printf("Resumed import of %s: %s more rows, %s in total.\n", args[0], humanize.Comma(int64(rep.Imported)), humanize.Comma(int64(rep.Inventory.RowCount)))
			default:
				a.printf("Imported %s rows from %s into inventory %s.\n", humanize.Comma(int64(rep.Imported)), src.Name(), args[0])
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&noProgress, "no-progress", false, "do not show a progress bar")
	return cmd
}

func newInventoriesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "inventories",
		Short: "List the inventories imported into the database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := a.database()
			if err != nil {
				return err
			}
			invs, err := db.ListInventories(conn)
			if err != nil {
				return err
			}
			if len(invs) == 0 {
				a.printf("No inventories imported yet.\n")
				return nil
			}
			t := newTable([]string{"name", "rows", "status", "updated"}, lipgloss.Left, lipgloss.Right, lipgloss.Left)
			for _, inv := range invs {
				status := "complete"
				if !inv.Complete() {
					status = "partial (" + humanize.Comma(int64(inv.LastImportedRow+1)) + ")"
				}
				t.Row(inv.Name, humanize.Comma(int64(inv.RowCount)), status, humanize.Time(inv.UpdatedAt))
			}
			a.printf("%s\n", t.Render())
			return nil
		},
	}
}

func newHistoryCmd(a *app) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded queries, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := a.database()
			if err != nil {
				return err
			}
			recs, err := db.ListAnalyses(conn, limit)
			if err != nil {
				return err
			}
			if len(recs) == 0 {
				a.printf("No queries recorded yet.\n")
				return nil
			}
			t := newTable([]string{"id", "when", "source", "query", "result"})
			for _, r := range recs {
				t.Row(shortID(r.ID), humanize.Time(r.CreatedAt), r.Inventory, describeQuery(r), describeResult(r))
			}
			a.printf("%s\n", t.Render())
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of queries to show (0 for all)")
	return cmd
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func describeQuery(r db.AnalysisRecord) string {
	alphabet := "{" + strings.Join(r.Alphabet, " ") + "}"
	if r.Kind == db.KindFind {
		return "find " + strings.Join(r.Specs, " ") + " in " + alphabet
	}
	return "analyze {" + strings.Join(r.Targets, " ") + "} in " + alphabet
}

func describeResult(r db.AnalysisRecord) string {
	if r.Kind == db.KindFind {
		if len(r.Result) == 0 {
			return ""
		}
		return "{" + strings.Join(r.Result[0], " ") + "}"
	}
	if len(r.Result) == 0 {
		return r.Message
	}
	sols := make([]string, len(r.Result))
	for i, s := range r.Result {
		sols[i] = "[" + strings.Join(s, ", ") + "]"
	}
	return strings.Join(sols, " ")
}
