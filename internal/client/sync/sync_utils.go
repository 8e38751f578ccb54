package sync

import (
	"path/filepath"
	"sort"
	"time"

	"github.com/brandstaetter/brandybox/internal/utils"
)

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

func floatToTime(seconds float64) time.Time {
	return time.Unix(0, int64(seconds*1e9))
}

// localPath converts a normalized relative path into an absolute path under
// the sync root.
func localPath(rootDir, relPath string) string {
	return filepath.Join(rootDir, filepath.FromSlash(relPath))
}

// sortDeepestFirst orders paths so that the deepest entries come first and
// ties break lexicographically. Deleting in this order empties directories
// bottom-up so parents can be pruned.
func sortDeepestFirst(paths []string) {
	sort.Slice(paths, func(i, j int) bool {
		di, dj := utils.PathDepth(paths[i]), utils.PathDepth(paths[j])
		if di != dj {
			return di > dj
		}
		return paths[i] < paths[j]
	})
}

// samplePaths returns up to n sorted paths for warning summaries.
func samplePaths(paths []string, n int) []string {
	sorted := make([]string, len(paths))
	copy(sorted, paths)
	sort.Strings(sorted)
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}
