package sync

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/brandstaetter/brandybox/internal/utils"
)

// Deleter applies the delete work sets. Deletions run sequentially in
// deepest-first order so empty parent directories can be removed as their
// contents go.
type Deleter struct {
	rootDir string
	remote  RemoteStore
}

func NewDeleter(rootDir string, remote RemoteStore) *Deleter {
	return &Deleter{rootDir: rootDir, remote: remote}
}

// DeleteRemote removes paths from the server in the given order. The SDK
// treats a 404 as already deleted; any other error aborts immediately with
// the offending path named.
func (d *Deleter) DeleteRemote(ctx context.Context, paths []string, each func(path string)) error {
	for _, path := range paths {
		if each != nil {
			each(path)
		}
		if err := d.remote.Delete(ctx, path); err != nil {
			return fmt.Errorf("delete on server %s: %w", path, err)
		}
		slog.Debug("deleted on server", "path", path)
	}
	return nil
}

// DeleteLocal removes paths under the sync root in the given order, pruning
// now-empty parent directories bottom-up after each file.
func (d *Deleter) DeleteLocal(paths []string, each func(path string)) error {
	for _, path := range paths {
		if each != nil {
			each(path)
		}

		target := localPath(d.rootDir, path)
		if !utils.FileExists(target) {
			continue // already gone
		}

		if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("delete locally %s: %w", path, err)
		}
		slog.Debug("deleted locally", "path", path)

		d.pruneEmptyParents(filepath.Dir(target))
	}
	return nil
}

// pruneEmptyParents removes empty directories from dir up towards the sync
// root, stopping at the first non-empty ancestor or the root itself.
func (d *Deleter) pruneEmptyParents(dir string) {
	root := filepath.Clean(d.rootDir)
	for dir != root && dir != string(filepath.Separator) {
		entries, err := os.ReadDir(dir)
		if err != nil || len(entries) > 0 {
			return
		}
		if err := os.Remove(dir); err != nil {
			return
		}
		dir = filepath.Dir(dir)
	}
}
