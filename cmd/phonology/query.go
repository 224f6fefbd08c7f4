package main

import (
	"context"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/nowemoore/phonology-app/pkg/analysis"
	"github.com/nowemoore/phonology-app/pkg/phonology"
	"github.com/nowemoore/phonology-app/pkg/service"
	"github.com/pkg/errors"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// splitIDs accepts phonemes given as repeated flags, comma lists or space
// separated strings.
func splitIDs(values []string) []string {
	var out []string
	for _, v := range values {
		out = append(out, strings.FieldsFunc(v, func(r rune) bool {
			return r == ',' || r == ' ' || r == '\t'
		})...)
	}
	return out
}

// alphabetOrAll returns the given alphabet, or every phoneme of the table when empty.
func alphabetOrAll(ctx context.Context, svc *service.Service, alphabet []string) ([]string, error) {
	if len(alphabet) > 0 {
		return alphabet, nil
	}
	return svc.ListPhonemes(ctx)
}

func newFindCmd(a *app) *cobra.Command {
	var alphabet, features []string
	cmd := &cobra.Command{
		Use:   "find",
		Short: "List the phonemes matching every feature specification",
		Example: `  phonology find --feature nasal=+
  phonology find --alphabet p,b,t,d,m,n --feature voice=+ --feature nasal=-`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			specs := make([]phonology.FeatureSpec, 0, len(features))
			for _, f := range features {
				fs, err := phonology.ParseFeatureSpec(f)
				if err != nil {
					return err
				}
				specs = append(specs, fs)
			}

			svc, err := a.service(cmd.Context())
			if err != nil {
				return err
			}
			ids, err := alphabetOrAll(cmd.Context(), svc, splitIDs(alphabet))
			if err != nil {
				return err
			}
			found, err := svc.FindByFeatures(cmd.Context(), ids, specs)
			if err != nil {
				return err
			}
			a.printf("%s\n", strings.Join(found, " "))
			return nil
		},
	}
	cmd.Flags().StringSliceVarP(&alphabet, "alphabet", "a", nil, "phonemes to search (default: the whole table)")
	cmd.Flags().StringArrayVarP(&features, "feature", "f", nil, "feature specification such as nasal=+ (repeatable)")
	return cmd
}

func newAnalyzeCmd(a *app) *cobra.Command {
	var alphabet, targets []string
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Find the minimal feature sets that single out the targets",
		Example: `  phonology analyze --alphabet p,b,t,d,k,g --targets p,t,k`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.service(cmd.Context())
			if err != nil {
				return err
			}
			ids, err := alphabetOrAll(cmd.Context(), svc, splitIDs(alphabet))
			if err != nil {
				return err
			}
			res, err := svc.Analyze(cmd.Context(), ids, splitIDs(targets))
			if err != nil {
				return err
			}
			a.printResult(res)
			return nil
		},
	}
	cmd.Flags().StringSliceVarP(&alphabet, "alphabet", "a", nil, "phonemes of the alphabet (default: the whole table)")
	cmd.Flags().StringSliceVarP(&targets, "targets", "t", nil, "phonemes to single out")
	_ = cmd.MarkFlagRequired("targets")
	return cmd
}

func (a *app) printResult(res *analysis.Result) {
	if res == nil {
		a.printf("%s\n", messageStyle.Render(service.NoSolutionMessage))
		return
	}
	a.printf("%s\n", messageStyle.Render(res.Message))
	a.printf("%s\n", solutionsTable(res).Render())
	a.printf("%s combinations examined\n", humanize.Comma(int64(res.Examined)))
}

// batchFile is the YAML layout read by the batch command.
type batchFile struct {
	// Alphabet is used by queries that do not give their own.
	Alphabet []string        `yaml:"alphabet"`
	Queries  []service.Query `yaml:"queries"`
}

func loadBatchFile(path string) ([]service.Query, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading batch file %s", path)
	}
	var bf batchFile
	if err := yaml.Unmarshal(data, &bf); err != nil {
		return nil, errors.Wrapf(err, "parsing batch file %s", path)
	}
	if len(bf.Queries) == 0 {
		return nil, errors.Errorf("batch file %s has no queries", path)
	}
	for i := range bf.Queries {
		q := &bf.Queries[i]
		if len(q.Alphabet) == 0 {
			q.Alphabet = bf.Alphabet
		}
		q.Alphabet = splitIDs(q.Alphabet)
		q.Targets = splitIDs(q.Targets)
		if q.Name == "" {
			q.Name = "query " + humanize.Ordinal(i+1)
		}
	}
	return bf.Queries, nil
}

func newBatchCmd(a *app) *cobra.Command {
	var noProgress bool
	cmd := &cobra.Command{
		Use:   "batch FILE.yaml",
		Short: "Run the analyses listed in a YAML file concurrently",
		Long: `Run the analyses listed in a YAML file concurrently. The file holds an
optional shared alphabet and a list of queries:

  alphabet: [p, b, t, d, k, g]
  queries:
    - name: voiceless
      targets: [p, t, k]
    - name: labials
      targets: [p, b]`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			queries, err := loadBatchFile(args[0])
			if err != nil {
				return err
			}
			svc, err := a.service(cmd.Context())
			if err != nil {
				return err
			}
			all, err := svc.ListPhonemes(cmd.Context())
			if err != nil {
				return err
			}
			for i := range queries {
				if len(queries[i].Alphabet) == 0 {
					queries[i].Alphabet = all
				}
			}

			var onDone func(service.BatchResult)
			if !noProgress {
				bar := progressbar.NewOptions(len(queries),
					progressbar.OptionSetWriter(cmd.ErrOrStderr()),
					progressbar.OptionSetDescription("analyzing"),
					progressbar.OptionShowCount(),
					progressbar.OptionClearOnFinish(),
				)
				defer bar.Close()
				onDone = func(service.BatchResult) { _ = bar.Add(1) }
			}
			results := svc.AnalyzeBatch(cmd.Context(), queries, onDone)

			t := newTable([]string{"query", "size", "solutions"}, lipgloss.Left, lipgloss.Right, lipgloss.Left)
			failed := 0
			for _, r := range results {
				switch {
				case r.Err != nil:
					failed++
					t.Row(r.Query.Name, "", errorStyle.Render(r.Err.Error()))
				case r.Result == nil:
					t.Row(r.Query.Name, "", service.NoSolutionMessage)
				default:
					sols := make([]string, len(r.Result.Solutions))
					for i, s := range r.Result.Solutions {
						sols[i] = s.String()
					}
					t.Row(r.Query.Name, humanize.Comma(int64(r.Result.Size)), strings.Join(sols, " "))
				}
			}
			a.printf("%s\n", t.Render())
			if failed > 0 {
				return errors.Errorf("%d of %d queries failed", failed, len(results))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&noProgress, "no-progress", false, "do not show a progress bar")
	return cmd
}
