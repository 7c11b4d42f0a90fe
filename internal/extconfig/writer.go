package extconfig

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// backupDateLayout names at most one backup per calendar day.
const backupDateLayout = "2006-01-02"

// BackupPath returns the backup file used for path on the (UTC) day of t:
// <dir>/config.backup.<YYYY-MM-DD>.json.
func BackupPath(path string, t time.Time) string {
	name := fmt.Sprintf("config.backup.%s.json", t.UTC().Format(backupDateLayout))
	return filepath.Join(filepath.Dir(path), name)
}

// Writer persists projected documents to the external file.
type Writer struct {
	now func() time.Time
}

// NewWriter returns a Writer using the wall clock.
func NewWriter() *Writer {
	return &Writer{now: time.Now}
}

// NewWriterWithClock returns a Writer whose backup date comes from now.
func NewWriterWithClock(now func() time.Time) *Writer {
	return &Writer{now: now}
}

// WriteResult describes what Write did on success.
type WriteResult struct {
	Path       string
	BackupPath string // empty when no backup was taken
}

// Write replaces the file at path with doc.
//
// The parent directory is created when missing. When backup is set and a file
// already exists at path, it is first copied to BackupPath(path, now); a
// second save on the same day overwrites that day's backup.
func (w *Writer) Write(path string, doc Document, backup bool) (WriteResult, error) {
	res := WriteResult{Path: path}
	if path == "" {
		return res, fmt.Errorf("config path is empty")
	}

	data, err := doc.Indented()
	if err != nil {
		return res, fmt.Errorf("marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return res, fmt.Errorf("create config dir: %w", err)
	}

	if backup {
		bp := BackupPath(path, w.now())
		copied, err := copyIfExists(path, bp)
		if err != nil {
			return res, fmt.Errorf("backup config to %s: %w", bp, err)
		}
		if copied {
			res.BackupPath = bp
			slog.Debug("extconfig: backup written", "path", bp)
		}
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return res, fmt.Errorf("write config %s: %w", path, err)
	}
	slog.Info("extconfig: config saved", "path", path, "servers", len(doc.MCPServers))
	return res, nil
}

// copyIfExists copies src over dst, reporting false when src does not exist.
func copyIfExists(src, dst string) (bool, error) {
	in, err := os.Open(src)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return false, err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return false, err
	}
	return true, out.Close()
}
