package table

import (
	"bytes"
	"context"
	"crypto/sha256"
	_ "embed"
	"encoding/csv"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/nowemoore/phonology-app/pkg/phonology"
	"github.com/pkg/errors"
)

//go:embed default_features.csv
var defaultCSV []byte

// Table is a parsed, not yet validated, feature table snapshot.
type Table struct {
	Header  []string
	Records [][]string
}

// Source provides table snapshots. Each Load returns a fresh snapshot.
type Source interface {
	Load(ctx context.Context) (*Table, error)
	Name() string
}

// Rows returns the header followed by the records.
func (t *Table) Rows() [][]string {
	rows := make([][]string, 0, len(t.Records)+1)
	rows = append(rows, t.Header)
	return append(rows, t.Records...)
}

// Matrix validates the table and builds the feature matrix.
func (t *Table) Matrix() (*phonology.Matrix, error) {
	return phonology.BuildTable(t.Header, t.Records)
}

// Checksum identifies the table content, independent of file formatting.
func (t *Table) Checksum() string {
	h := sha256.New()
	for _, row := range t.Rows() {
		for i, cell := range row {
			if i > 0 {
				h.Write([]byte{0x1f})
			}
			h.Write([]byte(strings.TrimSpace(cell)))
		}
		h.Write([]byte{0x1e})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// ParseOption configures Parse.
type ParseOption func(*parseConfig)

type parseConfig struct {
	delimiter rune
}

// WithDelimiter sets the field separator (default ',').
func WithDelimiter(r rune) ParseOption {
	return func(c *parseConfig) { c.delimiter = r }
}

// Parse reads a UTF-8 CSV table. All cells are kept as text; numeric
// validation happens when the matrix is built.
func Parse(r io.Reader, opts ...ParseOption) (*Table, error) {
	cfg := parseConfig{delimiter: ','}
	for _, o := range opts {
		o(&cfg)
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "reading table")
	}
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, errors.New("table is empty")
	}

	df := dataframe.ReadCSV(bytes.NewReader(data),
		dataframe.HasHeader(true),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
		dataframe.NaNValues([]string{}),
		dataframe.WithDelimiter(cfg.delimiter),
	)
	if df.Err != nil {
		return nil, errors.Wrap(df.Err, "parsing table")
	}

	records := df.Records()
	if len(records) == 0 {
		return nil, errors.New("table has no header")
	}
	header, err := readHeader(data, cfg.delimiter)
	if err != nil {
		return nil, err
	}
	return &Table{Header: header, Records: records[1:]}, nil
}

// readHeader returns the first line as written. The data frame renames
// duplicate and empty column names, which the matrix must see to reject.
func readHeader(data []byte, delimiter rune) ([]string, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = delimiter
	header, err := r.Read()
	if err != nil {
		return nil, errors.Wrap(err, "reading table header")
	}
	return header, nil
}

// Default returns the embedded reference inventory.
func Default() Source { return embedded{} }

type embedded struct{}

func (embedded) Name() string { return "default" }

func (embedded) Load(ctx context.Context) (*Table, error) {
	return Parse(bytes.NewReader(defaultCSV))
}

// FileSource reads a table from disk on every Load.
type FileSource struct {
	Path string
}

// NewFileSource returns a Source reading path. Files ending in .tsv are tab separated.
func NewFileSource(path string) *FileSource {
	return &FileSource{Path: path}
}

func (f *FileSource) Name() string { return f.Path }

func (f *FileSource) Load(ctx context.Context) (*Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	fh, err := os.Open(f.Path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening table %s", f.Path)
	}
	defer fh.Close()

	var opts []ParseOption
	if strings.EqualFold(filepath.Ext(f.Path), ".tsv") {
		opts = append(opts, WithDelimiter('\t'))
	}
	t, err := Parse(fh, opts...)
	if err != nil {
		return nil, errors.Wrapf(err, "table %s", f.Path)
	}
	return t, nil
}

// Static serves a fixed snapshot, mostly for tests and imported inventories.
type Static struct {
	Label string
	Table *Table
}

func (s *Static) Name() string { return s.Label }

func (s *Static) Load(ctx context.Context) (*Table, error) {
	if s.Table == nil {
		return nil, errors.Errorf("source %s has no table", s.Label)
	}
	return s.Table, nil
}
