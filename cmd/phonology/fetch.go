package main

import (
	"os"

	"github.com/dustin/go-humanize"
	"github.com/nowemoore/phonology-app/pkg/table"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func newFetchCmd(a *app) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "fetch URL",
		Short: "Download a feature table to --table",
		Long: `Download a feature table to the path given by --table (features.csv when
unset). Gzip-compressed tables are decompressed. An existing file is kept
unless --force is given.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := a.v.GetString("table")
			if path == "" {
				path = "features.csv"
			}
			if force {
				if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
					return errors.Wrapf(err, "removing %s", path)
				}
			}
			if err := table.EnsureTable(cmd.Context(), path, args[0]); err != nil {
				return err
			}

			tbl, err := table.NewFileSource(path).Load(cmd.Context())
			if err != nil {
				return err
			}
			info, err := os.Stat(path)
			if err != nil {
				return err
			}
			a.printf("%s: %s phonemes, %s columns, %s\n", path,
				humanize.Comma(int64(len(tbl.Records))),
				humanize.Comma(int64(len(tbl.Header))),
				humanize.Bytes(uint64(info.Size())))
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "replace an existing table file")
	return cmd
}
