package main

import (
	"context"
	"database/sql"
	goflag "flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/nowemoore/phonology-app/pkg/db"
	"github.com/nowemoore/phonology-app/pkg/service"
	"github.com/nowemoore/phonology-app/pkg/table"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"k8s.io/klog/v2"
)

// app carries the configuration and lazily opened resources of one invocation.
type app struct {
	v       *viper.Viper
	cfgFile string
	out     io.Writer

	conn *sql.DB
}

// run executes one command line and releases what it opened.
func run(ctx context.Context, args []string, out io.Writer) error {
	a := &app{v: viper.New(), out: out}
	defer a.close()

	root := newRootCmd(a)
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "phonology",
		Short: "Query distinctive feature tables",
		Long: `phonology answers questions about a phoneme × distinctive-feature table:
which phonemes and features it has, which phonemes match a feature
specification, and which minimal sets of features single out a group of
phonemes within an alphabet.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.initConfig()
		},
	}
	root.SetOut(a.out)
	root.SetErr(a.out)

	pf := root.PersistentFlags()
	pf.StringVar(&a.cfgFile, "config", "", "config file (default is $HOME/.phonology.yaml)")
	pf.String("table", "", "feature table CSV/TSV (default: built-in table)")
	pf.String("table-url", "", "download the table from this URL when the file is missing")
	pf.String("db", "", "sqlite database for imported inventories and history (empty disables)")
	pf.String("inventory", "", "read the table from this imported inventory instead of a file")
	pf.Int("workers", 4, "concurrent workers for batch analyses and imports")
	pf.Int("batch-size", 50, "rows per transaction when importing")
	pf.Bool("history", true, "record queries in the database when --db is set")

	for key, flag := range map[string]string{
		"table":      "table",
		"table_url":  "table-url",
		"db":         "db",
		"inventory":  "inventory",
		"workers":    "workers",
		"batch_size": "batch-size",
		"history":    "history",
	} {
		_ = a.v.BindPFlag(key, pf.Lookup(flag))
	}

	klogFlags := goflag.NewFlagSet("klog", goflag.ContinueOnError)
	klog.InitFlags(klogFlags)
	pf.AddGoFlagSet(klogFlags)

	root.AddCommand(
		newPhonemesCmd(a),
		newFeaturesCmd(a),
		newFindCmd(a),
		newAnalyzeCmd(a),
		newBatchCmd(a),
		newImportCmd(a),
		newInventoriesCmd(a),
		newHistoryCmd(a),
		newWatchCmd(a),
		newFetchCmd(a),
	)
	return root
}

// initConfig reads in config file and ENV variables if set.
func (a *app) initConfig() error {
	if a.cfgFile != "" {
		a.v.SetConfigFile(a.cfgFile)
	} else if home, err := os.UserHomeDir(); err == nil {
		a.v.AddConfigPath(home)
		a.v.SetConfigType("yaml")
		a.v.SetConfigName(".phonology")
	}

	a.v.SetEnvPrefix("phonology")
	a.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	a.v.AutomaticEnv()

	if err := a.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if a.cfgFile != "" || !errors.As(err, &notFound) {
			return errors.Wrap(err, "reading config")
		}
	} else {
		klog.V(1).Infof("using config file %s", a.v.ConfigFileUsed())
	}
	return nil
}

// database opens the configured sqlite database once per invocation.
func (a *app) database() (*sql.DB, error) {
	if a.conn != nil {
		return a.conn, nil
	}
	path := a.v.GetString("db")
	if path == "" {
		return nil, errors.New("no database configured, pass --db or set db in the config file")
	}
	conn, err := db.Open(path)
	if err != nil {
		return nil, err
	}
	a.conn = conn
	return conn, nil
}

func (a *app) close() {
	if a.conn != nil {
		a.conn.Close()
		a.conn = nil
	}
}

// source resolves where the feature table comes from: an imported inventory,
// a file (downloaded first if a URL is configured), or the built-in table.
func (a *app) source(ctx context.Context) (table.Source, error) {
	if inv := a.v.GetString("inventory"); inv != "" {
		conn, err := a.database()
		if err != nil {
			return nil, err
		}
		return &db.Source{DB: conn, Inventory: inv}, nil
	}
	if path := a.v.GetString("table"); path != "" {
		if err := table.EnsureTable(ctx, path, a.v.GetString("table_url")); err != nil {
			return nil, err
		}
		return table.NewFileSource(path), nil
	}
	return table.Default(), nil
}

func (a *app) service(ctx context.Context) (*service.Service, error) {
	src, err := a.source(ctx)
	if err != nil {
		return nil, err
	}
	opts := []service.Option{service.WithWorkers(a.v.GetInt("workers"))}
	if a.v.GetString("db") != "" && a.v.GetBool("history") {
		conn, err := a.database()
		if err != nil {
			return nil, err
		}
		opts = append(opts, service.WithRecorder(&db.History{DB: conn, Inventory: src.Name()}))
	}
	return service.New(src, opts...), nil
}

func (a *app) printf(format string, args ...interface{}) {
	fmt.Fprintf(a.out, format, args...)
}
