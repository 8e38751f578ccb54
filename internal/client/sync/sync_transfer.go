package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/brandstaetter/brandybox/internal/boxsdk"
	"github.com/brandstaetter/brandybox/internal/utils"
)

// Transferrer executes the download and upload work sets on a bounded worker
// pool. Every transfer start acquires a slot from one shared rate limiter
// capped to the backend's request budget, regardless of pool width.
type Transferrer struct {
	rootDir string
	remote  RemoteStore
	limiter *rate.Limiter
	workers int
}

func NewTransferrer(rootDir string, remote RemoteStore, limiter *rate.Limiter, workers int) *Transferrer {
	return &Transferrer{
		rootDir: rootDir,
		remote:  remote,
		limiter: limiter,
		workers: workers,
	}
}

// phaseResult accumulates the outcome of one transfer phase.
type phaseResult struct {
	Completed []string
	Skipped   []string
	Bytes     int64
}

// DownloadAll drains the download set. onSuccess runs once per completed file
// with its verified content hash, before the file counts as done, so each
// success is persisted immediately. A hard error cancels not-yet-started
// transfers; in-flight ones complete independently.
func (t *Transferrer) DownloadAll(ctx context.Context, files []*boxsdk.RemoteFile, onSuccess func(path, hash string) error, each func(path string)) (*phaseResult, error) {
	res := &phaseResult{}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(t.workers)

	for _, file := range files {
		g.Go(func() error {
			// gctx only gates new starts; the transfer itself runs on the
			// outer ctx so in-flight work is not preempted by a sibling's
			// failure.
			if err := t.limiter.Wait(gctx); err != nil {
				return err
			}

			hash, size, skipped, err := t.downloadOne(ctx, file)
			if err != nil {
				return fmt.Errorf("download %s: %w", file.Path, err)
			}

			mu.Lock()
			defer mu.Unlock()
			if skipped {
				res.Skipped = append(res.Skipped, file.Path)
			} else {
				if err := onSuccess(file.Path, hash); err != nil {
					return fmt.Errorf("download %s: persist state: %w", file.Path, err)
				}
				res.Completed = append(res.Completed, file.Path)
				res.Bytes += size
			}
			if each != nil {
				each(file.Path)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return res, err
	}
	return res, nil
}

// UploadAll drains the upload set the same way. A source file that vanished
// since listing is a skip, recorded for the warnings summary.
func (t *Transferrer) UploadAll(ctx context.Context, paths []string, onSuccess func(path string) error, each func(path string)) (*phaseResult, error) {
	res := &phaseResult{}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(t.workers)

	for _, path := range paths {
		g.Go(func() error {
			if err := t.limiter.Wait(gctx); err != nil {
				return err
			}

			size, skipped, err := t.uploadOne(ctx, path)
			if err != nil {
				return fmt.Errorf("upload %s: %w", path, err)
			}

			mu.Lock()
			defer mu.Unlock()
			if skipped {
				res.Skipped = append(res.Skipped, path)
			} else {
				if err := onSuccess(path); err != nil {
					return fmt.Errorf("upload %s: persist state: %w", path, err)
				}
				res.Completed = append(res.Completed, path)
				res.Bytes += size
			}
			if each != nil {
				each(path)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return res, err
	}
	return res, nil
}

func (t *Transferrer) downloadOne(ctx context.Context, file *boxsdk.RemoteFile) (hash string, size int64, skipped bool, err error) {
	body, err := t.remote.Download(ctx, file.Path)
	if errors.Is(err, boxsdk.ErrFileNotFound) {
		// Object vanished since listing. Remote wins: drop any stale copy.
		target := localPath(t.rootDir, file.Path)
		if utils.FileExists(target) {
			os.Remove(target)
		}
		slog.Debug("download skipped: no longer on server", "path", file.Path)
		return "", 0, true, nil
	}
	if err != nil {
		return "", 0, false, err
	}

	hash = utils.BytesHash(body)
	target := localPath(t.rootDir, file.Path)
	if err := utils.EnsureParent(target); err != nil {
		return "", 0, false, err
	}

	if err := os.WriteFile(target, body, 0o644); err != nil {
		if !errors.Is(err, os.ErrPermission) {
			return "", 0, false, err
		}
		// One recovery attempt: relax the write bit and retry.
		if retryErr := t.relaxAndRewrite(target, body); retryErr != nil {
			slog.Warn("download skipped: permission denied", "path", file.Path, "error", retryErr)
			return "", 0, true, nil
		}
	}

	// Stamp the server's mtime so the next diff sees the file as unchanged
	// instead of freshly modified.
	mtime := floatToTime(file.Mtime)
	if err := os.Chtimes(target, mtime, mtime); err != nil {
		slog.Debug("could not set mtime on downloaded file", "path", file.Path, "error", err)
	}

	return hash, int64(len(body)), false, nil
}

func (t *Transferrer) relaxAndRewrite(target string, body []byte) error {
	info, err := os.Stat(target)
	if err != nil {
		return err
	}
	if err := os.Chmod(target, info.Mode().Perm()|0o200); err != nil {
		return err
	}
	return os.WriteFile(target, body, 0o644)
}

func (t *Transferrer) uploadOne(ctx context.Context, path string) (size int64, skipped bool, err error) {
	body, err := os.ReadFile(localPath(t.rootDir, path))
	if os.IsNotExist(err) {
		// Removed between listing and now, e.g. by the user or another
		// process. Non-fatal, but surfaced in the warnings summary.
		slog.Debug("upload skipped: file no longer present", "path", path)
		return 0, true, nil
	}
	if err != nil {
		return 0, false, err
	}

	if err := t.remote.Upload(ctx, path, body); err != nil {
		return 0, false, err
	}
	return int64(len(body)), false, nil
}
