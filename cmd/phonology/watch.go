package main

import (
	"os"
	"time"

	"github.com/nowemoore/phonology-app/pkg/table"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"k8s.io/klog/v2"
)

func newWatchCmd(a *app) *cobra.Command {
	var alphabet, targets []string
	var debounce time.Duration
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Re-run an analysis every time the table file changes",
		Long: `Re-run an analysis every time the table file changes. Requires --table;
runs until interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := a.v.GetString("table")
			if path == "" {
				return errors.New("watch needs a table file, pass --table")
			}
			if a.v.GetString("inventory") != "" {
				return errors.New("watch reads the table file, not an imported inventory")
			}
			ctx := cmd.Context()
			svc, err := a.service(ctx)
			if err != nil {
				return err
			}

			changes := make(chan struct{}, 1)
			w, err := table.NewWatcher(path, debounce, func() {
				svc.Invalidate()
				select {
				case changes <- struct{}{}:
				default:
				}
			})
			if err != nil {
				return err
			}
			w.Start(ctx)
			defer w.Close()

			analyze := func() {
				ids, err := alphabetOrAll(ctx, svc, splitIDs(alphabet))
				if err != nil {
					// A half-written or broken table is reported and waited out.
					a.printf("%s\n", errorStyle.Render(err.Error()))
					return
				}
				res, err := svc.Analyze(ctx, ids, splitIDs(targets))
				if err != nil {
					a.printf("%s\n", errorStyle.Render(err.Error()))
					return
				}
				a.printResult(res)
			}

			a.printf("Watching %s. Press Ctrl+C to stop.\n", path)
			analyze()
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-changes:
					if _, err := os.Stat(path); err != nil {
						klog.Warningf("table %s: %v", path, err)
						continue
					}
					a.printf("\n%s changed at %s\n", path, time.Now().Format(time.Kitchen))
					analyze()
				}
			}
		},
	}
	cmd.Flags().StringSliceVarP(&alphabet, "alphabet", "a", nil, "phonemes of the alphabet (default: the whole table)")
	cmd.Flags().StringSliceVarP(&targets, "targets", "t", nil, "phonemes to single out")
	cmd.Flags().DurationVar(&debounce, "debounce", table.DefaultDebounce, "wait this long for writes to settle")
	_ = cmd.MarkFlagRequired("targets")
	return cmd
}
