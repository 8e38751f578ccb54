package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/dustin/go-humanize"
	"golang.org/x/time/rate"

	"github.com/brandstaetter/brandybox/internal/boxsdk"
)

const (
	defaultWorkers          = 8
	defaultRequestsPerSec   = 10.0
	defaultMaxRemoteDeletes = 50

	// warningSampleSize bounds the path sample passed to OnWarnings.
	warningSampleSize = 5
)

var ErrCycleAlreadyRunning = errors.New("sync cycle already running")

// Options configures an Engine. Zero tunables fall back to defaults.
type Options struct {
	RootDir          string
	Remote           RemoteStore
	Store            *StateStore
	Callbacks        Callbacks
	Workers          int
	RequestsPerSec   float64
	MaxRemoteDeletes int
}

// Engine runs sync cycles: list both sides, diff, propagate deletions,
// download, upload, persist. All collaborators are constructed once and
// passed in; there is no package-level state.
type Engine struct {
	rootDir  string
	remote   RemoteStore
	store    *StateStore
	ignore   *IgnoreList
	scanner  *Scanner
	differ   *Differ
	deleter  *Deleter
	transfer *Transferrer
	cb       Callbacks
	muCycle  sync.Mutex
}

func NewEngine(opts Options) *Engine {
	if opts.Workers <= 0 {
		opts.Workers = defaultWorkers
	}
	if opts.RequestsPerSec <= 0 {
		opts.RequestsPerSec = defaultRequestsPerSec
	}
	if opts.MaxRemoteDeletes <= 0 {
		opts.MaxRemoteDeletes = defaultMaxRemoteDeletes
	}

	ignore := NewIgnoreList()
	limiter := rate.NewLimiter(rate.Limit(opts.RequestsPerSec), 1)

	return &Engine{
		rootDir:  opts.RootDir,
		remote:   opts.Remote,
		store:    opts.Store,
		ignore:   ignore,
		scanner:  NewScanner(opts.RootDir, ignore),
		differ:   NewDiffer(opts.RootDir, ignore, opts.MaxRemoteDeletes),
		deleter:  NewDeleter(opts.RootDir, opts.Remote),
		transfer: NewTransferrer(opts.RootDir, opts.Remote, limiter, opts.Workers),
		cb:       opts.Callbacks,
	}
}

// Run performs one sync cycle. It returns nil on success or one descriptive
// error naming the failed operation and path. State persisted by completed
// phases survives a failure, so the next cycle resumes instead of regressing.
// Only one cycle may run at a time.
func (e *Engine) Run(ctx context.Context) error {
	if !e.muCycle.TryLock() {
		return ErrCycleAlreadyRunning
	}
	defer e.muCycle.Unlock()

	tStart := time.Now()
	slog.Info("sync cycle started", "root", e.rootDir)

	// Phase 1: list both sides (authoritative snapshot).
	e.cb.status("Listing…")
	e.cb.progress(PhaseListing, 0, 0)

	local, skippedEntries, err := e.scanner.Scan()
	if err != nil {
		return fmt.Errorf("scan local files: %w", err)
	}
	if skippedEntries > 0 {
		slog.Warn("local scan skipped entries", "count", skippedEntries)
	}

	remoteList, err := e.remote.List(ctx)
	if err != nil {
		return fmt.Errorf("list remote files: %w", err)
	}
	remote := make(map[string]*boxsdk.RemoteFile, len(remoteList))
	for _, f := range remoteList {
		remote[f.Path] = f
	}

	state := e.store.Load()
	slog.Info("listed", "local", len(local), "remote", len(remote), "lastSynced", state.Paths.Cardinality())

	// Phase 2: compute the work sets.
	diff := e.differ.Compute(&DiffInput{Local: local, Remote: remote, State: state})
	if len(diff.VerifiedHashes) > 0 {
		// Local content already matches the server for these; only the hash
		// cache needs refreshing.
		if err := e.store.MergeFileHashes(diff.VerifiedHashes); err != nil {
			return fmt.Errorf("persist verified hashes: %w", err)
		}
		slog.Info("skipped transfers, content already matches server hash", "count", len(diff.VerifiedHashes))
	}

	totalWork := len(diff.DeleteRemote) + len(diff.DeleteLocal) + len(diff.Downloads) + len(diff.Uploads)
	done := 0
	var muProgress sync.Mutex
	advance := func(phase Phase) func(string) {
		return func(path string) {
			muProgress.Lock()
			done++
			completed := done
			muProgress.Unlock()
			e.cb.progress(phase, completed, totalWork)
		}
	}

	// Phase 3: propagate deletions, server first, then local.
	if len(diff.DeleteRemote) > 0 {
		e.cb.status(fmt.Sprintf("Deleting %d files on server…", len(diff.DeleteRemote)))
	}
	if err := e.deleter.DeleteRemote(ctx, diff.DeleteRemote, advance(PhaseDeleteRemote)); err != nil {
		return err
	}

	if len(diff.DeleteLocal) > 0 {
		e.cb.status(fmt.Sprintf("Deleting %d files locally…", len(diff.DeleteLocal)))
	}
	if err := e.deleter.DeleteLocal(diff.DeleteLocal, advance(PhaseDeleteLocal)); err != nil {
		return err
	}

	// Persist an intermediate synced set so a mid-cycle interruption does not
	// regress. Only paths present on both sides count: recording remote-only
	// paths here would make a fresh client treat them as locally deleted on
	// its next run and wipe the server.
	baseSynced := e.intermediateSyncedSet(local, remote, diff)
	if err := e.store.SetSyncedPaths(baseSynced); err != nil {
		return fmt.Errorf("persist state after deletions: %w", err)
	}

	// Phase 4: downloads, each success persisted immediately so an
	// interrupted cycle resumes without re-transferring.
	if len(diff.Downloads) > 0 {
		e.cb.status(fmt.Sprintf("Downloading %d files…", len(diff.Downloads)))
		slog.Info("downloading", "files", len(diff.Downloads))
	}
	downloadFiles := make([]*boxsdk.RemoteFile, 0, len(diff.Downloads))
	for _, path := range diff.Downloads {
		downloadFiles = append(downloadFiles, remote[path])
	}
	downloads, err := e.transfer.DownloadAll(ctx, downloadFiles,
		func(path, hash string) error {
			if err := e.store.AddDownloadedPath(path); err != nil {
				return err
			}
			return e.store.SetFileHash(path, hash)
		},
		advance(PhaseDownload),
	)
	if err != nil {
		return err
	}

	// Phase 5: uploads, persisted the same way.
	if len(diff.Uploads) > 0 {
		e.cb.status(fmt.Sprintf("Uploading %d files…", len(diff.Uploads)))
		slog.Info("uploading", "files", len(diff.Uploads))
	}
	uploads, err := e.transfer.UploadAll(ctx, diff.Uploads,
		e.store.AddSyncedPath,
		advance(PhaseUpload),
	)
	if err != nil {
		return err
	}

	// Phase 6: persist the verified synced set. Skipped transfers never make
	// it in: a path only counts when this cycle verified it on both sides.
	e.cb.progress(PhasePersisting, totalWork, totalWork)
	newSynced := baseSynced.
		Union(mapset.NewSet(downloads.Completed...)).
		Union(mapset.NewSet(uploads.Completed...)).
		Difference(mapset.NewSet(downloads.Skipped...)).
		Difference(mapset.NewSet(uploads.Skipped...))
	if err := e.store.FinalizeCycle(newSynced); err != nil {
		return fmt.Errorf("persist final state: %w", err)
	}

	e.reportWarnings(downloads.Skipped, uploads.Skipped)

	slog.Info("sync cycle completed",
		"synced", newSynced.Cardinality(),
		"downloaded", len(downloads.Completed),
		"uploaded", len(uploads.Completed),
		"deletedRemote", len(diff.DeleteRemote),
		"deletedLocal", len(diff.DeleteLocal),
		"transferred", humanize.Bytes(uint64(downloads.Bytes+uploads.Bytes)),
		"took", time.Since(tStart),
	)
	e.cb.status("Up to date")

	if len(downloads.Completed) > 0 || len(uploads.Completed) > 0 {
		e.cb.complete(len(downloads.Completed), len(uploads.Completed))
	}
	return nil
}

// intermediateSyncedSet is the synced set persisted right after the delete
// phase: paths present on both sides once this cycle's deletions are applied,
// ignored paths excluded.
func (e *Engine) intermediateSyncedSet(local map[string]float64, remote map[string]*boxsdk.RemoteFile, diff *Diff) mapset.Set[string] {
	deletedRemote := mapset.NewSet(diff.DeleteRemote...)
	deletedLocal := mapset.NewSet(diff.DeleteLocal...)

	base := mapset.NewSet[string]()
	for path := range local {
		if deletedLocal.Contains(path) {
			continue
		}
		if _, onRemote := remote[path]; !onRemote {
			continue
		}
		if deletedRemote.Contains(path) || e.ignore.ShouldIgnore(path) {
			continue
		}
		base.Add(path)
	}
	return base
}

func (e *Engine) reportWarnings(skippedDownloads, skippedUploads []string) {
	if len(skippedDownloads) > 0 {
		slog.Warn("skipped downloads (gone from server or permission denied)",
			"count", len(skippedDownloads),
			"sample", samplePaths(skippedDownloads, warningSampleSize),
		)
	}
	if len(skippedUploads) > 0 {
		slog.Warn("skipped uploads (file no longer present during sync)",
			"count", len(skippedUploads),
			"sample", samplePaths(skippedUploads, warningSampleSize),
		)
	}

	total := len(skippedDownloads) + len(skippedUploads)
	if total > 0 {
		sample := samplePaths(append(skippedDownloads, skippedUploads...), warningSampleSize)
		e.cb.warnings(total, sample)
	}
}
