package table

import (
	"bytes"
	"compress/gzip"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nowemoore/phonology-app/pkg/phonology"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const smallCSV = "phoneme,type,voice,nasal\np,consonant,0,0\nm,consonant,1,1\na,vowel,1,0\n"

func TestParseKeepsCellsAsText(t *testing.T) {
	tbl, err := Parse(strings.NewReader(smallCSV))
	require.NoError(t, err)
	assert.Equal(t, []string{"phoneme", "type", "voice", "nasal"}, tbl.Header)
	assert.Equal(t, [][]string{
		{"p", "consonant", "0", "0"},
		{"m", "consonant", "1", "1"},
		{"a", "vowel", "1", "0"},
	}, tbl.Records)
	assert.Equal(t, tbl.Header, tbl.Rows()[0])
	assert.Len(t, tbl.Rows(), 4)
}

func TestParseStripsBOMAndEmptyInput(t *testing.T) {
	tbl, err := Parse(strings.NewReader("\xef\xbb\xbf" + smallCSV))
	require.NoError(t, err)
	assert.Equal(t, "phoneme", tbl.Header[0])

	_, err = Parse(strings.NewReader("  \n"))
	assert.Error(t, err)
}

func TestDefaultTableBuilds(t *testing.T) {
	src := Default()
	assert.Equal(t, "default", src.Name())
	tbl, err := src.Load(context.Background())
	require.NoError(t, err)
	m, err := tbl.Matrix()
	require.NoError(t, err)

	assert.Equal(t, 16, m.Len())
	assert.Equal(t, "vowel", m.Type("a"))
	for _, f := range []string{"voice", "nasal", "labial", "round"} {
		assert.True(t, m.HasFeature(f), f)
	}
	assert.False(t, m.HasFeature("type"))
}

func TestFileSourceTSV(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "features.tsv")
	tsv := strings.ReplaceAll(smallCSV, ",", "\t")
	require.NoError(t, os.WriteFile(path, []byte(tsv), 0o644))

	src := NewFileSource(path)
	assert.Equal(t, path, src.Name())
	tbl, err := src.Load(context.Background())
	require.NoError(t, err)
	csvTbl, err := Parse(strings.NewReader(smallCSV))
	require.NoError(t, err)
	assert.Equal(t, csvTbl, tbl)
	assert.Equal(t, csvTbl.Checksum(), tbl.Checksum())
}

func TestFileSourceMissingFile(t *testing.T) {
	_, err := NewFileSource(filepath.Join(t.TempDir(), "nope.csv")).Load(context.Background())
	assert.Error(t, err)
}

func TestChecksumIgnoresWhitespace(t *testing.T) {
	a := &Table{Header: []string{"phoneme", "voice"}, Records: [][]string{{"p", "0"}}}
	b := &Table{Header: []string{"phoneme ", " voice"}, Records: [][]string{{" p", "0 "}}}
	c := &Table{Header: []string{"phoneme", "voice"}, Records: [][]string{{"p", "1"}}}
	assert.Equal(t, a.Checksum(), b.Checksum())
	assert.NotEqual(t, a.Checksum(), c.Checksum())

	// Cell boundaries matter.
	d := &Table{Header: []string{"ab", "c"}}
	e := &Table{Header: []string{"a", "bc"}}
	assert.NotEqual(t, d.Checksum(), e.Checksum())
}

func TestMalformedTableIsDataError(t *testing.T) {
	tbl, err := Parse(strings.NewReader("phoneme,voice\np,maybe\n"))
	require.NoError(t, err)
	_, err = tbl.Matrix()
	assert.True(t, phonology.IsDataError(err))
}

func TestParseKeepsDuplicateColumns(t *testing.T) {
	tbl, err := Parse(strings.NewReader("phoneme,voice,voice\np,0,1\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"phoneme", "voice", "voice"}, tbl.Header)
	_, err = tbl.Matrix()
	de, ok := phonology.AsDataError(err)
	require.True(t, ok, err)
	assert.Equal(t, phonology.KindMalformedTable, de.Kind)
}

func TestStaticSource(t *testing.T) {
	tbl := &Table{Header: []string{"phoneme"}}
	s := &Static{Label: "fixed", Table: tbl}
	got, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Same(t, tbl, got)

	_, err = (&Static{Label: "empty"}).Load(context.Background())
	assert.Error(t, err)
}

func TestWatcherFiresOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "features.csv")
	require.NoError(t, os.WriteFile(path, []byte(smallCSV), 0o644))

	changed := make(chan struct{}, 8)
	w, err := NewWatcher(path, 20*time.Millisecond, func() { changed <- struct{}{} })
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w.Start(ctx)
	defer w.Close()

	// Unrelated files in the same directory are ignored.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.csv"), []byte("x"), 0o644))
	select {
	case <-changed:
		t.Fatal("change reported for another file")
	case <-time.After(100 * time.Millisecond):
	}

	require.NoError(t, os.WriteFile(path, []byte(smallCSV+"i,vowel,1,0\n"), 0o644))
	select {
	case <-changed:
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for change notification")
	}
}

func TestWatcherCloseWithoutStart(t *testing.T) {
	w, err := NewWatcher(filepath.Join(t.TempDir(), "features.csv"), 0, nil)
	require.NoError(t, err)
	assert.NoError(t, w.Close())
}

func TestEnsureTableKeepsExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "features.csv")
	require.NoError(t, os.WriteFile(path, []byte(smallCSV), 0o644))
	// No URL needed when the file exists.
	require.NoError(t, EnsureTable(context.Background(), path, ""))
}

func TestEnsureTableWithoutURL(t *testing.T) {
	err := EnsureTable(context.Background(), filepath.Join(t.TempDir(), "features.csv"), "")
	assert.Error(t, err)
}

func TestEnsureTableDownloads(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		switch r.URL.Path {
		case "/features.csv":
			_, _ = w.Write([]byte(smallCSV))
		case "/features.csv.gz":
			var buf bytes.Buffer
			gz := gzip.NewWriter(&buf)
			_, _ = gz.Write([]byte(smallCSV))
			_ = gz.Close()
			_, _ = w.Write(buf.Bytes())
		case "/empty.csv":
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	for _, name := range []string{"features.csv", "features.csv.gz"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "nested", "features.csv")
			require.NoError(t, EnsureTable(context.Background(), path, srv.URL+"/"+name))
			tbl, err := NewFileSource(path).Load(context.Background())
			require.NoError(t, err)
			assert.Len(t, tbl.Records, 3)
		})
	}

	t.Run("not found", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "features.csv")
		assert.Error(t, EnsureTable(context.Background(), path, srv.URL+"/missing.csv"))
		_, err := os.Stat(path)
		assert.True(t, os.IsNotExist(err))
	})

	t.Run("invalid body", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "features.csv")
		assert.Error(t, EnsureTable(context.Background(), path, srv.URL+"/empty.csv"))
		_, err := os.Stat(path)
		assert.True(t, os.IsNotExist(err))
	})

	assert.Equal(t, int32(4), hits.Load())
}
