package fixture

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/icse/api-cache/pkg/logging"
	"github.com/rs/zerolog"
)

// ErrInvalidEntry indicates an entry that cannot be written.
var ErrInvalidEntry = errors.New("invalid fixture entry")

// Writer writes fixtures into one directory.
type Writer struct {
	dir    string
	logger zerolog.Logger
}

// NewWriter creates a writer for dir. An empty dir means the working directory.
func NewWriter(dir string) *Writer {
	if dir == "" {
		dir = "."
	}
	return &Writer{
		dir:    dir,
		logger: logging.NewLogger("fixture"),
	}
}

// Dir returns the target directory.
func (w *Writer) Dir() string {
	return w.dir
}

// Path returns the file path for resource name.
func (w *Writer) Path(name string) string {
	return filepath.Join(w.dir, FileName(name))
}

// Write renders entry and replaces its fixture file. It reports the path
// written and whether the contents differ from the previous file.
func (w *Writer) Write(entry *Entry) (string, bool, error) {
	if entry == nil || entry.Name == "" {
		return "", false, ErrInvalidEntry
	}

	contents, err := Render(entry.Name, entry.Data)
	if err != nil {
		return "", false, fmt.Errorf("render %s: %w", entry.Name, err)
	}

	path := w.Path(entry.Name)
	previous, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return "", false, fmt.Errorf("read existing %s: %w", path, err)
	}
	changed := !bytes.Equal(previous, contents)

	if err := writeFileAtomic(path, contents, 0o644); err != nil {
		return "", false, err
	}

	FixturesWritten.WithLabelValues(entry.Name).Inc()
	FixtureSize.WithLabelValues(entry.Name).Set(float64(len(contents)))
	if !changed {
		FixturesUnchanged.WithLabelValues(entry.Name).Inc()
	}

	w.logger.Info().
		Str("resource", entry.Name).
		Str("path", path).
		Int("bytes", len(contents)).
		Int("pages", entry.Pages).
		Bool("changed", changed).
		Msg("Wrote fixture")

	return path, changed, nil
}

// writeFileAtomic writes data to a temporary file next to path and renames
// it over path.
func writeFileAtomic(path string, data []byte, perm os.FileMode) (err error) {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file in %s: %w", dir, err)
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			os.Remove(tmpName)
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", tmpName, err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmpName, err)
	}
	if err = os.Chmod(tmpName, perm); err != nil {
		return fmt.Errorf("chmod %s: %w", tmpName, err)
	}
	if err = os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename %s: %w", tmpName, err)
	}
	return nil
}
