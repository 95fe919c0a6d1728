package storage

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	domain "github.com/bryanwahyu/hdfs-analysis-sim/internal/domain/analysis"
)

// CSVHeader is the first row of every results file
var CSVHeader = []string{"block_id", "anomaly_score", "reason"}

// LocalStore keeps CSV artifacts in a directory on disk
type LocalStore struct {
	dir string
}

// NewLocalStore makes sure dir exists
func NewLocalStore(dir string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create results dir %q: %w", dir, err)
	}
	return &LocalStore{dir: dir}, nil
}

func (s *LocalStore) Dir() string { return s.dir }

// Create opens a new results file and writes the header row.
// It returns the writer and the file's path.
func (s *LocalStore) Create(filename string) (domain.ResultWriter, string, error) {
	if !isPlainName(filename) {
		return nil, "", fmt.Errorf("invalid results file name %q", filename)
	}
	path := filepath.Join(s.dir, filename)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, "", err
	}
	w := &csvWriter{f: f, w: csv.NewWriter(f)}
	if err := w.w.Write(CSVHeader); err != nil {
		f.Close()
		return nil, "", err
	}
	w.w.Flush()
	if err := w.w.Error(); err != nil {
		f.Close()
		return nil, "", err
	}
	return w, path, nil
}

// Open returns domain.ErrResultNotFound for unknown or non-plain names
func (s *LocalStore) Open(_ context.Context, filename string) (io.ReadCloser, error) {
	if !isPlainName(filename) {
		return nil, domain.ErrResultNotFound
	}
	f, err := os.Open(filepath.Join(s.dir, filename))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, domain.ErrResultNotFound
	}
	if err != nil {
		return nil, err
	}
	if st, err := f.Stat(); err == nil && st.IsDir() {
		f.Close()
		return nil, domain.ErrResultNotFound
	}
	return f, nil
}

// csvWriter flushes after every row so partial results are readable mid-batch
type csvWriter struct {
	f *os.File
	w *csv.Writer
}

func (c *csvWriter) Write(r domain.AnalysisResult) error {
	if err := c.w.Write([]string{
		r.BlockID,
		strconv.FormatFloat(r.AnomalyScore, 'f', -1, 64),
		r.Reason,
	}); err != nil {
		return err
	}
	c.w.Flush()
	return c.w.Error()
}

func (c *csvWriter) Close() error {
	c.w.Flush()
	if err := c.w.Error(); err != nil {
		c.f.Close()
		return err
	}
	return c.f.Close()
}

func isPlainName(name string) bool {
	return name != "" && name != "." && name != ".." && filepath.Base(name) == name
}
