package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/gofrs/flock"
	"golang.org/x/sync/errgroup"

	"github.com/brandstaetter/brandybox/internal/boxsdk"
	"github.com/brandstaetter/brandybox/internal/client/config"
	"github.com/brandstaetter/brandybox/internal/client/sync"
)

// eventBufferSize bounds the event channel. Events beyond it are dropped
// rather than stalling a transfer worker on a slow consumer.
const eventBufferSize = 256

var ErrAlreadyRunning = errors.New("another instance is already running")

// Daemon owns a sync loop: one engine, one SDK client, a periodic cycle
// trigger and the token refresh plumbing around it.
type Daemon struct {
	cfg     *config.Config
	sdk     *boxsdk.BoxSDK
	store   *sync.StateStore
	engine  *sync.Engine
	lock    *flock.Flock
	syncNow chan struct{}
	events  chan Event
}

func NewDaemon(cfg *config.Config) (*Daemon, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.RefreshToken == "" {
		return nil, errors.New("not logged in, run `brandybox login` first")
	}

	sdk, err := boxsdk.New(ResolveBaseURL(context.Background(), cfg))
	if err != nil {
		return nil, err
	}

	d := &Daemon{
		cfg:     cfg,
		sdk:     sdk,
		store:   sync.NewStateStore(config.StatePath(cfg.Path)),
		lock:    flock.New(config.LockPath(cfg.Path)),
		syncNow: make(chan struct{}, 1),
		events:  make(chan Event, eventBufferSize),
	}

	d.engine = sync.NewEngine(sync.Options{
		RootDir:          cfg.SyncDir,
		Remote:           sdk.Files,
		Store:            d.store,
		Workers:          cfg.Sync.Workers,
		RequestsPerSec:   cfg.Sync.RequestsPerSec,
		MaxRemoteDeletes: cfg.Sync.MaxRemoteDeletes,
		Callbacks: sync.Callbacks{
			OnStatus: func(msg string) {
				d.publish(Event{Type: EventStatus, Status: msg})
			},
			OnProgress: func(phase sync.Phase, completed, total int) {
				d.publish(Event{Type: EventProgress, Phase: phase, Completed: completed, Total: total})
			},
			OnComplete: func(downloaded, uploaded int) {
				d.publish(Event{Type: EventComplete, Downloaded: downloaded, Uploaded: uploaded})
			},
			OnWarnings: func(skipped int, samplePaths []string) {
				d.publish(Event{Type: EventWarnings, Skipped: skipped, SamplePaths: samplePaths})
			},
		},
	})
	return d, nil
}

// Events returns the daemon's event stream. Reading it is optional; events
// are dropped when nobody keeps up.
func (d *Daemon) Events() <-chan Event {
	return d.events
}

// SyncNow wakes the loop for an immediate cycle. No-op when a wake is
// already pending or a cycle is running.
func (d *Daemon) SyncNow() {
	select {
	case d.syncNow <- struct{}{}:
	default:
	}
}

// Start runs the sync loop until ctx is cancelled. It refuses to start when
// another instance holds the lock file.
func (d *Daemon) Start(ctx context.Context) error {
	locked, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire instance lock: %w", err)
	}
	if !locked {
		return ErrAlreadyRunning
	}
	defer d.lock.Unlock()
	defer d.sdk.Close()

	if err := os.MkdirAll(d.cfg.SyncDir, 0o755); err != nil {
		return fmt.Errorf("create sync dir: %w", err)
	}
	if err := d.store.EnsureRoot(d.cfg.SyncDir); err != nil {
		return fmt.Errorf("prepare sync state: %w", err)
	}

	if err := d.authenticate(ctx); err != nil {
		return err
	}

	slog.Info("daemon started",
		"email", d.cfg.Email,
		"dir", d.cfg.SyncDir,
		"server", d.sdk.BaseURL(),
		"interval", time.Duration(d.cfg.Sync.IntervalSecs)*time.Second,
	)

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		return d.runLoop(egCtx)
	})
	eg.Go(func() error {
		<-egCtx.Done()
		slog.Info("shutting down, waiting for current cycle")
		return nil
	})

	if err := eg.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("daemon failure", "error", err)
		return err
	}
	slog.Info("daemon stopped")
	return nil
}

// authenticate exchanges the stored refresh token for an access token and
// persists the rotated refresh token.
func (d *Daemon) authenticate(ctx context.Context) error {
	tokens, err := d.sdk.Auth.Refresh(ctx, d.cfg.RefreshToken)
	if err != nil {
		return fmt.Errorf("authenticate: %w", err)
	}

	d.sdk.SetAccessToken(tokens.AccessToken)
	d.cfg.RefreshToken = tokens.RefreshToken
	if err := d.cfg.Save(d.cfg.Path); err != nil {
		return fmt.Errorf("persist rotated refresh token: %w", err)
	}

	slog.Debug("access token refreshed", "email", d.cfg.Email)
	return nil
}

func (d *Daemon) runLoop(ctx context.Context) error {
	for {
		wait := d.runCycleOnce(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-d.syncNow:
			timer.Stop()
			slog.Info("sync requested, starting cycle")
		case <-timer.C:
		}
	}
}

// runCycleOnce executes one cycle and returns how long to wait before the
// next one. Cycle failures are reported, never fatal to the loop.
func (d *Daemon) runCycleOnce(ctx context.Context) time.Duration {
	interval := time.Duration(d.cfg.Sync.IntervalSecs) * time.Second
	retry := time.Duration(d.cfg.Sync.RetrySecs) * time.Second

	// In automatic mode the URL is re-resolved every cycle so the LAN
	// endpoint is picked up when the machine moves networks.
	if d.cfg.ServerURL == "" {
		d.sdk.SetBaseURL(ResolveBaseURL(ctx, d.cfg))
	}

	err := d.engine.Run(ctx)
	if errors.Is(err, boxsdk.ErrUnauthorized) {
		// Access token expired mid-run. Refresh once and redo the cycle.
		slog.Warn("cycle got 401, refreshing access token")
		if authErr := d.authenticate(ctx); authErr != nil {
			d.publish(Event{Type: EventError, Err: authErr})
			slog.Error("token refresh failed", "error", authErr)
			return retry
		}
		err = d.engine.Run(ctx)
	}

	if err != nil && ctx.Err() == nil {
		d.publish(Event{Type: EventError, Err: err})
		slog.Error("sync cycle failed", "error", err)
		if boxsdk.IsConnectivityError(err) {
			slog.Debug("server unreachable, retrying sooner", "wait", retry)
			return retry
		}
		return interval
	}

	d.logStorageUsage(ctx)
	return interval
}

// logStorageUsage reports quota usage after a successful cycle. Failures are
// harmless, the next cycle tries again.
func (d *Daemon) logStorageUsage(ctx context.Context) {
	info, err := d.sdk.Files.Storage(ctx)
	if err != nil {
		slog.Debug("storage usage unavailable", "error", err)
		return
	}
	slog.Debug("storage usage", "used", info.UsedBytes, "limit", info.LimitBytes)
}

// publish never blocks; a full buffer drops the event.
func (d *Daemon) publish(e Event) {
	select {
	case d.events <- e:
	default:
	}
}
