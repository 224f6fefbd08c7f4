package table

import (
	"compress/gzip"
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// maxTableSize bounds downloads; feature tables are a few kilobytes.
const maxTableSize = 8 * 1024 * 1024

// EnsureTable makes sure a table exists at path, downloading it from url if it
// does not. Gzip-compressed tables (".gz" or a gzip Content-Type) are decompressed.
func EnsureTable(ctx context.Context, path, url string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return err
	}
	if url == "" {
		return errors.Errorf("table %s not found and no download URL configured", path)
	}

	klog.Infof("table not found at %s, downloading %s", path, url)
	return download(ctx, url, path)
}

func download(ctx context.Context, url, destPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", "phonology-cli")

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return errors.Wrap(err, "downloading table")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("download failed: %s", resp.Status)
	}

	var body io.Reader = io.LimitReader(resp.Body, maxTableSize+1)
	if strings.HasSuffix(url, ".gz") || strings.Contains(resp.Header.Get("Content-Type"), "gzip") {
		gz, err := gzip.NewReader(body)
		if err != nil {
			return errors.Wrap(err, "opening gzip stream")
		}
		defer gz.Close()
		body = io.LimitReader(gz, maxTableSize+1)
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return errors.Wrap(err, "creating table directory")
	}
	// Write next to the destination and rename, so a watcher never sees a partial file.
	tmp, err := os.CreateTemp(filepath.Dir(destPath), ".table-*.part")
	if err != nil {
		return errors.Wrap(err, "creating temp file")
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, body)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return errors.Wrap(err, "writing table")
	}
	if n > maxTableSize {
		return errors.Errorf("table exceeds %d bytes", maxTableSize)
	}

	// Validate before publishing.
	f, err := os.Open(tmp.Name())
	if err != nil {
		return err
	}
	_, perr := Parse(f)
	f.Close()
	if perr != nil {
		return errors.Wrap(perr, "downloaded table is not valid")
	}
	return os.Rename(tmp.Name(), destPath)
}
