package sync

import (
	"log/slog"
	"sort"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/brandstaetter/brandybox/internal/boxsdk"
	"github.com/brandstaetter/brandybox/internal/utils"
)

// DiffInput is the authoritative snapshot a diff is computed from.
type DiffInput struct {
	Local  map[string]float64            // relative path -> mtime (unix seconds)
	Remote map[string]*boxsdk.RemoteFile // relative path -> listing entry
	State  *SyncState                    // last successful cycle's persisted state
}

// Diff holds the four work sets for one cycle. Delete sets are ordered
// deepest-first; transfer sets are sorted for deterministic scheduling.
type Diff struct {
	DeleteRemote []string
	DeleteLocal  []string
	Downloads    []string
	Uploads      []string

	// VerifiedHashes are local files whose content already matches the
	// remote hash despite a differing mtime; they skip transfer and only
	// refresh the hash cache.
	VerifiedHashes map[string]string

	// DeletesSuppressed is set when the mass-deletion safety valve fired.
	DeletesSuppressed bool
}

// Differ computes the work sets for one cycle.
type Differ struct {
	rootDir string
	ignore  *IgnoreList
	// maxRemoteDeletes is the safety-valve threshold: suppress remote
	// deletions when more than this many are pending and they outnumber the
	// local file count.
	maxRemoteDeletes int
}

func NewDiffer(rootDir string, ignore *IgnoreList, maxRemoteDeletes int) *Differ {
	return &Differ{
		rootDir:          rootDir,
		ignore:           ignore,
		maxRemoteDeletes: maxRemoteDeletes,
	}
}

// Compute derives the work sets from the local and remote listings and the
// prior synced state. Content-hash equality always overrides the mtime
// comparison; mtime is the fallback signal only when no hash is available.
func (d *Differ) Compute(in *DiffInput) *Diff {
	diff := &Diff{
		VerifiedHashes: make(map[string]string),
	}

	// Same set flavor as SyncState.Paths throughout; golang-set panics when
	// set operations mix thread-safe and thread-unsafe operands.
	localPaths := mapset.NewSet[string]()
	for path := range in.Local {
		localPaths.Add(path)
	}
	remotePaths := mapset.NewSet[string]()
	for path := range in.Remote {
		remotePaths.Add(path)
	}

	// A path we previously had in sync and no longer have locally should be
	// removed remotely. The other direction mirrors another client's delete.
	deleteRemote := mapset.NewSet[string]()
	for path := range in.State.Paths.Difference(localPaths).Iter() {
		if !d.ignore.ShouldIgnore(path) {
			deleteRemote.Add(path)
		}
	}
	deleteLocal := in.State.Paths.Difference(remotePaths)

	// Safety valve: a large remote-delete set that exceeds the local file
	// count points at wrong local state (fresh machine, relocated folder,
	// corrupted state file), not at a genuine mass deletion. Suppress the
	// deletions and let the files re-download instead.
	if deleteRemote.Cardinality() > d.maxRemoteDeletes && deleteRemote.Cardinality() > len(in.Local) {
		slog.Warn("suppressing remote deletions: pending deletes exceed local file count, local state looks wrong",
			"pendingDeletes", deleteRemote.Cardinality(),
			"localFiles", len(in.Local),
			"threshold", d.maxRemoteDeletes,
		)
		deleteRemote = mapset.NewSet[string]()
		diff.DeletesSuppressed = true
	}

	diff.DeleteRemote = deleteRemote.ToSlice()
	diff.DeleteLocal = deleteLocal.ToSlice()
	sortDeepestFirst(diff.DeleteRemote)
	sortDeepestFirst(diff.DeleteLocal)

	diff.Downloads = d.computeDownloads(in, diff.VerifiedHashes, deleteRemote)
	diff.Uploads = d.computeUploads(in, diff.VerifiedHashes)

	return diff
}

func (d *Differ) computeDownloads(in *DiffInput, verified map[string]string, deleteRemote mapset.Set[string]) []string {
	downloads := make([]string, 0)

	for path, remote := range in.Remote {
		if d.ignore.ShouldIgnore(path) {
			continue
		}
		// Still listed remotely but slated for remote deletion this cycle.
		// Re-downloading it would only race the delete and 404.
		if deleteRemote.Contains(path) {
			continue
		}

		localMtime, localExists := in.Local[path]

		// Confirmed present and unchanged: previously downloaded and still
		// here, or the cached content hash matches the remote one.
		if localExists && in.State.DownloadedPaths.Contains(path) {
			continue
		}
		if localExists && remote.Hash != "" && in.State.FileHashes[path] == remote.Hash {
			continue
		}

		if !localExists {
			downloads = append(downloads, path)
			continue
		}

		if remote.Mtime > localMtime {
			// Clock skew check: before re-downloading purely on mtime,
			// compare content when the remote advertises a hash.
			if remote.Hash != "" {
				localHash, err := utils.FileHash(localPath(d.rootDir, path))
				if err == nil && localHash == remote.Hash {
					verified[path] = remote.Hash
					continue
				}
			}
			downloads = append(downloads, path)
		}
	}

	sort.Strings(downloads)
	return downloads
}

func (d *Differ) computeUploads(in *DiffInput, verified map[string]string) []string {
	uploads := make([]string, 0)

	for path, localMtime := range in.Local {
		if d.ignore.ShouldIgnore(path) {
			continue
		}

		remote, remoteExists := in.Remote[path]
		if !remoteExists {
			uploads = append(uploads, path)
			continue
		}

		// Hash available: content equality wins over any mtime difference,
		// avoiding spurious uploads from machine clock skew.
		if remote.Hash != "" {
			localHash, err := utils.FileHash(localPath(d.rootDir, path))
			if err == nil && localHash == remote.Hash {
				verified[path] = remote.Hash
				continue
			}
		}

		if localMtime > remote.Mtime {
			uploads = append(uploads, path)
		}
	}

	sort.Strings(uploads)
	return uploads
}
