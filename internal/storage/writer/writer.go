// Package writer implements the rotating storage writer: an append-only,
// day-partitioned CSV log with at most one file open at a time.
//
// Layout:
//
//	<root>/<YYYY>/<MM>/<DD>/<kind>.csv
//
// A kind holding a '.' is used verbatim as the file name.
package writer

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/xtxerr/saga/internal/errors"
	"github.com/xtxerr/saga/internal/logging"
	"github.com/xtxerr/saga/internal/metrics"
)

var log = logging.Component("writer")

// Writer appends rows to the file selected by (kind, calendar day).
// Only one file is open at a time; switching kind or day closes it first.
// Flush must be called after each batch of related appends.
//
// Writer is not safe for concurrent use. Its owner serializes access.
type Writer struct {
	root     string
	location *time.Location

	current     *os.File
	currentBuf  *bufio.Writer
	currentPath string
	kind        string
	bucket      int // (year*100+month)*100+day, 0 = none

	// Statistics
	stats WriterStats
}

// WriterStats holds storage writer statistics.
type WriterStats struct {
	FilesOpened  int64
	RowsWritten  int64
	BytesWritten int64
	Errors       int64
}

// Option configures a Writer.
type Option func(*Writer)

// WithLocation selects the time zone used to compute calendar days.
// Default: time.Local
func WithLocation(loc *time.Location) Option {
	return func(w *Writer) {
		if loc != nil {
			w.location = loc
		}
	}
}

// New creates a Writer rooted at root. Directories are created on demand.
func New(root string, opts ...Option) *Writer {
	w := &Writer{
		root:     root,
		location: time.Local,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Path returns the file a row of kind stamped at timestampMs belongs to.
func (w *Writer) Path(kind string, timestampMs int64) string {
	year, month, day := time.UnixMilli(timestampMs).In(w.location).Date()
	return w.path(kind, year, int(month), day)
}

func (w *Writer) path(kind string, year, month, day int) string {
	name := kind
	if !strings.Contains(kind, ".") {
		name = kind + ".csv"
	}
	return filepath.Join(w.root,
		fmt.Sprintf("%04d", year), fmt.Sprintf("%02d", month), fmt.Sprintf("%02d", day),
		name)
}

// Append writes row as one line of the kind file for the day of timestampMs.
// If the file is new and header is not empty, header is written first.
//
// Failures are logged and counted; the row is dropped. The returned error
// is informational: callers are not expected to retry.
func (w *Writer) Append(kind string, timestampMs int64, header, row string) error {
	year, month, day := time.UnixMilli(timestampMs).In(w.location).Date()
	bucket := (year*100+int(month))*100 + day

	if bucket != w.bucket || kind != w.kind {
		// Never mix two days or two kinds in the same file.
		w.Flush()
	}
	w.bucket = bucket
	w.kind = kind

	if w.current == nil {
		if err := w.open(kind, year, int(month), day, header); err != nil {
			w.stats.Errors++
			metrics.StorageFailures.WithLabelValues(kind).Inc()
			log.Warn("storage write dropped", "kind", kind, "error", err)
			return err
		}
	}

	n, err := w.currentBuf.WriteString(row + "\n")
	if err != nil {
		w.stats.Errors++
		metrics.StorageFailures.WithLabelValues(kind).Inc()
		log.Warn("storage write dropped", "path", w.currentPath, "error", err)
		return fmt.Errorf("%w: %s: %v", errors.ErrStorageWrite, w.currentPath, err)
	}

	w.stats.RowsWritten++
	w.stats.BytesWritten += int64(n)
	metrics.StorageRows.WithLabelValues(kind).Inc()
	return nil
}

func (w *Writer) open(kind string, year, month, day int, header string) error {
	path := w.path(kind, year, month, day)

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("%w: %s: %v", errors.ErrStorageOpen, path, err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", errors.ErrStorageOpen, path, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("%w: %s: %v", errors.ErrStorageOpen, path, err)
	}

	w.current = f
	w.currentBuf = bufio.NewWriter(f)
	w.currentPath = path
	w.stats.FilesOpened++

	if header != "" && info.Size() == 0 {
		n, _ := w.currentBuf.WriteString(header + "\n")
		w.stats.BytesWritten += int64(n)
	}
	return nil
}

// Flush closes the open file, if any, and forgets the current kind and day
// so that the next Append re-evaluates which file to use.
func (w *Writer) Flush() error {
	var err error
	if w.current != nil {
		if ferr := w.currentBuf.Flush(); ferr != nil {
			err = fmt.Errorf("%w: %s: %v", errors.ErrStorageWrite, w.currentPath, ferr)
		}
		if cerr := w.current.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("%w: %s: %v", errors.ErrStorageWrite, w.currentPath, cerr)
		}
		if err != nil {
			w.stats.Errors++
			metrics.StorageFailures.WithLabelValues(w.kind).Inc()
			log.Warn("storage flush failed", "path", w.currentPath, "error", err)
		}
	}
	w.current = nil
	w.currentBuf = nil
	w.currentPath = ""
	w.kind = ""
	w.bucket = 0
	return err
}

// IsOpen reports whether a file is currently open.
func (w *Writer) IsOpen() bool {
	return w.current != nil
}

// Stats returns writer statistics.
func (w *Writer) Stats() WriterStats {
	return w.stats
}
