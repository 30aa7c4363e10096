package persist

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"peerlab-bird/pkg/logging"
)

// TempSuffix is appended to the target path for the in-progress write.
const TempSuffix = ".tmp"

// Writer persists generated config only when its digest differs from the file on disk.
type Writer struct {
	Algorithm Algorithm
	// Normalize, when set, is applied to both the new and the existing content before digesting.
	Normalize func([]byte) []byte
	Perm      fs.FileMode
	Logger    *slog.Logger
}

// Result describes one WriteIfChanged call.
type Result struct {
	Changed bool
	// Digest is the digest of the (normalized) new content.
	Digest string
	// PreviousDigest is the digest of the (normalized) file on disk, or of "" if it was absent.
	PreviousDigest string
	// Previous holds the raw bytes that were on disk before the call; nil if the file was absent.
	Previous []byte
}

// NewWriter returns a Writer with SHA-256 digests and 0644 files.
func NewWriter(logger *slog.Logger) *Writer {
	return &Writer{Algorithm: SHA256, Perm: 0o644, Logger: logger}
}

func (w *Writer) log() *slog.Logger {
	if w.Logger == nil {
		return logging.Discard()
	}
	return w.Logger
}

func (w *Writer) digest(b []byte) string {
	if w.Normalize != nil {
		b = w.Normalize(b)
	}
	return w.Algorithm.Sum(b)
}

// WriteIfChanged writes content to path unless the existing file has the same digest.
// It returns true when the file was replaced.
func (w *Writer) WriteIfChanged(path, content string) (bool, error) {
	res, err := w.Write(path, []byte(content))
	return res.Changed, err
}

// Write is WriteIfChanged with the full Result.
func (w *Writer) Write(path string, content []byte) (Result, error) {
	res := Result{Digest: w.digest(content)}

	existing, err := os.ReadFile(path)
	switch {
	case err == nil:
		res.Previous = existing
		res.PreviousDigest = w.digest(existing)
	case errors.Is(err, fs.ErrNotExist):
		res.PreviousDigest = w.digest(nil)
	default:
		return res, fmt.Errorf("read existing config %s: %w", path, err)
	}

	if res.Digest == res.PreviousDigest {
		w.log().Debug("configuration unchanged", "path", path, "digest", res.Digest)
		return res, nil
	}

	w.log().Debug("configuration changed", "path", path, "old", res.PreviousDigest, "new", res.Digest)
	if err := w.replace(path, content); err != nil {
		return res, err
	}
	res.Changed = true
	return res, nil
}

// replace writes content to a sibling temp file and renames it over path.
// The temp file is removed when any step fails.
func (w *Writer) replace(path string, content []byte) (err error) {
	perm := w.Perm
	if perm == 0 {
		perm = 0o644
	}
	tmpPath := path + TempSuffix
	f, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return fmt.Errorf("create temporary config %s: %w", tmpPath, err)
	}
	defer func() {
		if err != nil {
			_ = f.Close()
			if rmErr := os.Remove(tmpPath); rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) {
				w.log().Warn("remove temporary config failed", "path", tmpPath, "err", rmErr)
			}
		}
	}()

	if _, err = f.Write(content); err != nil {
		return fmt.Errorf("write temporary config %s: %w", tmpPath, err)
	}
	if err = f.Sync(); err != nil {
		return fmt.Errorf("sync temporary config %s: %w", tmpPath, err)
	}
	if err = f.Close(); err != nil {
		return fmt.Errorf("close temporary config %s: %w", tmpPath, err)
	}
	// OpenFile honours the umask; set the final mode explicitly.
	if err = os.Chmod(tmpPath, perm); err != nil {
		return fmt.Errorf("chmod temporary config %s: %w", tmpPath, err)
	}
	if err = os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename temporary config onto %s: %w", path, err)
	}
	return nil
}
