package session

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/google/renameio/v2"

	"github.com/m4xw311/tgpt/errors"
)

const dateLayout = "02.01.2006"

// Save writes the transcript to path. The content goes to a temporary file
// in the same directory first and is renamed over path, so an interrupted
// save never leaves a half-written session behind. A new file is created
// 0644 minus the umask; an existing file keeps its mode.
func Save(path string, t Transcript) error {
	pending, err := renameio.NewPendingFile(path,
		renameio.WithTempDir(filepath.Dir(path)),
		renameio.WithPermissions(0o644),
		renameio.WithExistingPermissions(),
	)
	if err != nil {
		return errors.Wrapf(err, "could not create temporary file for %s", path)
	}
	defer pending.Cleanup()

	if err := Write(pending, t); err != nil {
		return errors.Wrapf(err, "failed to serialize session %s", path)
	}
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return errors.Wrapf(err, "failed to write session file %s", path)
	}
	return nil
}

// Load reads a transcript from path. A missing file yields an error matching
// fs.ErrNotExist; a malformed line yields a *ParseError.
func Load(path string) (Transcript, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "could not read session file %s", path)
	}
	defer f.Close()

	return Read(f, path)
}

// DefaultFilename returns the first "<DD.MM.YYYY>_<n>.txt" in dir, counting n
// up from zero, that does not exist yet.
func DefaultFilename(dir string, now time.Time) (string, error) {
	date := now.Format(dateLayout)
	for n := 0; ; n++ {
		candidate := filepath.Join(dir, fmt.Sprintf("%s_%d.txt", date, n))
		_, err := os.Stat(candidate)
		if errors.Is(err, fs.ErrNotExist) {
			return candidate, nil
		}
		if err != nil {
			return "", errors.Wrapf(err, "could not stat %s", candidate)
		}
	}
}

// Resolve places a relative session name inside dir. Absolute names are
// returned unchanged.
func Resolve(dir, name string) string {
	if filepath.IsAbs(name) || dir == "" {
		return name
	}
	return filepath.Join(dir, name)
}
