package session

import (
	"os"
	"path"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/m4xw311/tgpt/errors"
)

// DefaultListPattern matches every session file directly inside the history
// directory.
const DefaultListPattern = "*.txt"

// List returns the session files under dir matching the glob pattern,
// relative to dir and sorted. "**" matches across directories. Hidden files,
// including in-flight temporary saves, are skipped.
func List(dir, pattern string) ([]string, error) {
	if pattern == "" {
		pattern = DefaultListPattern
	}
	if !doublestar.ValidatePattern(pattern) {
		return nil, errors.New("invalid glob pattern '%s'", pattern)
	}
	if dir == "" {
		dir = "."
	}

	matches, err := doublestar.Glob(os.DirFS(dir), pattern)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list sessions in %s", dir)
	}

	var files []string
	for _, m := range matches {
		if strings.HasPrefix(path.Base(m), ".") {
			continue
		}
		if info, err := os.Stat(Resolve(dir, m)); err != nil || info.IsDir() {
			continue
		}
		files = append(files, m)
	}
	sort.Strings(files)
	return files, nil
}
