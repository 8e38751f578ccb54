package sync

import (
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/brandstaetter/brandybox/internal/utils"
)

// Scanner enumerates regular files under the sync root.
type Scanner struct {
	rootDir string
	ignore  *IgnoreList
}

func NewScanner(rootDir string, ignore *IgnoreList) *Scanner {
	return &Scanner{rootDir: rootDir, ignore: ignore}
}

// Scan returns relative forward-slash paths mapped to mtime (unix seconds)
// plus the number of entries skipped due to races with concurrent deletion.
// A single vanished file never fails the scan as a whole.
func (s *Scanner) Scan() (map[string]float64, int, error) {
	listing := make(map[string]float64)
	skipped := 0

	if !utils.DirExists(s.rootDir) {
		slog.Warn("sync root does not exist, treating as empty", "root", s.rootDir)
		return listing, 0, nil
	}

	err := filepath.WalkDir(s.rootDir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			// entry vanished mid-walk or a subdir became unreadable
			if os.IsNotExist(walkErr) || os.IsPermission(walkErr) {
				skipped++
				if d != nil && d.IsDir() {
					return fs.SkipDir
				}
				return nil
			}
			return walkErr
		}

		if d.IsDir() {
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		relPath, err := filepath.Rel(s.rootDir, path)
		if err != nil {
			skipped++
			return nil
		}
		relPath = utils.NormPath(relPath)

		if s.ignore.ShouldIgnore(relPath) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			// stat race with a concurrent delete
			skipped++
			return nil
		}

		listing[relPath] = unixSeconds(info.ModTime())
		return nil
	})
	if err != nil {
		return nil, skipped, err
	}

	return listing, skipped, nil
}
