package sync

import (
	"context"

	"github.com/brandstaetter/brandybox/internal/boxsdk"
)

// Phase identifies where a running cycle currently is. Phases run strictly in
// this order; a cycle never overlaps two phases.
type Phase string

const (
	PhaseIdle         Phase = "idle"
	PhaseListing      Phase = "listing"
	PhaseDeleteRemote Phase = "delete_remote"
	PhaseDeleteLocal  Phase = "delete_local"
	PhaseDownload     Phase = "download"
	PhaseUpload       Phase = "upload"
	PhasePersisting   Phase = "persisting"
	PhaseFailed       Phase = "failed"
)

// RemoteStore is the subset of the backend API the engine needs. The
// boxsdk.FilesAPI satisfies it; tests substitute an in-memory store.
// Error contract: Download returns boxsdk.ErrFileNotFound for missing files,
// Delete treats missing files as already deleted.
type RemoteStore interface {
	List(ctx context.Context) ([]*boxsdk.RemoteFile, error)
	Download(ctx context.Context, path string) ([]byte, error)
	Upload(ctx context.Context, path string, body []byte) error
	Delete(ctx context.Context, path string) error
}

var _ RemoteStore = (*boxsdk.FilesAPI)(nil)

// Callbacks let the embedding application observe a cycle. All fields are
// optional. Invocations are serialized; progress during a transfer phase is
// reported under the phase's result lock.
type Callbacks struct {
	// OnStatus receives a single human-readable line per state change.
	OnStatus func(msg string)
	// OnProgress reports completed work units out of the precomputed total
	// across all phases, so callers can render one continuous bar.
	// Total is 0 while listing (unknown).
	OnProgress func(phase Phase, completed, total int)
	// OnComplete fires after a successful cycle that performed at least one
	// transfer.
	OnComplete func(downloaded, uploaded int)
	// OnWarnings fires when any transfer was skipped, with a bounded sample
	// of the affected paths.
	OnWarnings func(skipped int, samplePaths []string)
}

func (c *Callbacks) status(msg string) {
	if c.OnStatus != nil {
		c.OnStatus(msg)
	}
}

func (c *Callbacks) progress(phase Phase, completed, total int) {
	if c.OnProgress != nil {
		c.OnProgress(phase, completed, total)
	}
}

func (c *Callbacks) complete(downloaded, uploaded int) {
	if c.OnComplete != nil {
		c.OnComplete(downloaded, uploaded)
	}
}

func (c *Callbacks) warnings(skipped int, samplePaths []string) {
	if c.OnWarnings != nil {
		c.OnWarnings(skipped, samplePaths)
	}
}
