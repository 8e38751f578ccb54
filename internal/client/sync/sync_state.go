package sync

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/brandstaetter/brandybox/internal/utils"
)

// stateVersion is bumped when the document layout changes incompatibly.
// Unknown fields from newer versions are preserved-by-ignoring; missing
// fields default to empty.
const stateVersion = 1

// stateDoc is the on-disk layout of the sync state file.
type stateDoc struct {
	Version         int               `json:"version"`
	SyncDir         string            `json:"sync_dir,omitempty"`
	Paths           []string          `json:"paths"`
	DownloadedPaths []string          `json:"downloaded_paths"`
	FileHashes      map[string]string `json:"file_hashes"`
}

func emptyDoc() *stateDoc {
	return &stateDoc{
		Version:         stateVersion,
		Paths:           []string{},
		DownloadedPaths: []string{},
		FileHashes:      map[string]string{},
	}
}

// SyncState is an in-memory snapshot of the persisted state.
type SyncState struct {
	// Paths verified present and content-equal on both sides as of the last
	// successful cycle.
	Paths mapset.Set[string]
	// Paths downloaded this or a previous cycle, not yet folded into Paths.
	// Lets an interrupted cycle resume without re-transferring.
	DownloadedPaths mapset.Set[string]
	// Content hash cache used to skip redundant transfers.
	FileHashes map[string]string
}

// StateStore persists the sync state as a single JSON document. Every
// mutation is read-modify-write under one mutex since transfer workers
// persist their successes concurrently; every write goes through a temp file
// and rename so an interrupted write never corrupts the next read.
type StateStore struct {
	path string
	mu   sync.Mutex
}

func NewStateStore(path string) *StateStore {
	return &StateStore{path: path}
}

// Load parses the persisted document. A missing or unparsable file is a cold
// start, never an error.
func (s *StateStore) Load() *SyncState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return docToState(s.read())
}

func (s *StateStore) read() *stateDoc {
	doc := emptyDoc()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("read sync state, starting empty", "path", s.path, "error", err)
		}
		return doc
	}

	if err := json.Unmarshal(data, doc); err != nil {
		slog.Warn("parse sync state, starting empty", "path", s.path, "error", err)
		return emptyDoc()
	}

	if doc.Paths == nil {
		doc.Paths = []string{}
	}
	if doc.DownloadedPaths == nil {
		doc.DownloadedPaths = []string{}
	}
	if doc.FileHashes == nil {
		doc.FileHashes = map[string]string{}
	}
	doc.Version = stateVersion
	return doc
}

func (s *StateStore) write(doc *stateDoc) error {
	if err := utils.EnsureParent(s.path); err != nil {
		return err
	}

	sort.Strings(doc.Paths)
	sort.Strings(doc.DownloadedPaths)

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".tmp.*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}

	return os.Rename(tmpPath, s.path)
}

// update applies fn to the current document and rewrites it atomically.
func (s *StateStore) update(fn func(doc *stateDoc)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc := s.read()
	fn(doc)
	return s.write(doc)
}

// EnsureRoot resets the state when the configured sync root changed, so the
// next cycle treats the server as source of truth instead of mass-deleting.
func (s *StateStore) EnsureRoot(syncDir string) error {
	return s.update(func(doc *stateDoc) {
		if doc.SyncDir != syncDir {
			if doc.SyncDir != "" {
				slog.Warn("sync root changed, clearing sync state", "old", doc.SyncDir, "new", syncDir)
			}
			*doc = *emptyDoc()
			doc.SyncDir = syncDir
		}
	})
}

// SetSyncedPaths replaces the synced-path set, keeping all other fields.
func (s *StateStore) SetSyncedPaths(paths mapset.Set[string]) error {
	return s.update(func(doc *stateDoc) {
		doc.Paths = paths.ToSlice()
	})
}

// AddSyncedPath records one verified path, typically right after a successful
// upload so a mid-cycle interruption keeps the progress.
func (s *StateStore) AddSyncedPath(path string) error {
	return s.update(func(doc *stateDoc) {
		doc.Paths = appendUnique(doc.Paths, path)
	})
}

// AddDownloadedPath marks a path as downloaded-but-not-yet-verified so the
// next cycle can skip re-downloading it after a crash.
func (s *StateStore) AddDownloadedPath(path string) error {
	return s.update(func(doc *stateDoc) {
		doc.DownloadedPaths = appendUnique(doc.DownloadedPaths, path)
	})
}

// SetFileHash records the verified content hash for a path.
func (s *StateStore) SetFileHash(path, hash string) error {
	return s.update(func(doc *stateDoc) {
		doc.FileHashes[path] = hash
	})
}

// MergeFileHashes records several verified content hashes at once.
func (s *StateStore) MergeFileHashes(hashes map[string]string) error {
	if len(hashes) == 0 {
		return nil
	}
	return s.update(func(doc *stateDoc) {
		for path, hash := range hashes {
			doc.FileHashes[path] = hash
		}
	})
}

// FinalizeCycle persists the verified synced-path set of a successful cycle
// and clears the pending-download markers.
func (s *StateStore) FinalizeCycle(paths mapset.Set[string]) error {
	return s.update(func(doc *stateDoc) {
		doc.Paths = paths.ToSlice()
		doc.DownloadedPaths = []string{}
	})
}

func docToState(doc *stateDoc) *SyncState {
	hashes := make(map[string]string, len(doc.FileHashes))
	for k, v := range doc.FileHashes {
		hashes[k] = v
	}
	return &SyncState{
		Paths:           mapset.NewSet(doc.Paths...),
		DownloadedPaths: mapset.NewSet(doc.DownloadedPaths...),
		FileHashes:      hashes,
	}
}

func appendUnique(slice []string, value string) []string {
	for _, v := range slice {
		if v == value {
			return slice
		}
	}
	return append(slice, value)
}
