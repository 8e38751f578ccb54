package client

import (
	"context"
	"log/slog"
	"time"

	"github.com/imroc/req/v3"

	"github.com/brandstaetter/brandybox/internal/client/config"
)

// lanProbeTimeout keeps the reachability check from stalling a sync cycle
// when the LAN endpoint is not on this network.
const lanProbeTimeout = 2 * time.Second

// ResolveBaseURL picks the server URL for the next cycle. A manual ServerURL
// in the config always wins. Otherwise the LAN endpoint is probed with a
// short timeout and used when reachable, falling back to the public default.
func ResolveBaseURL(ctx context.Context, cfg *config.Config) string {
	if cfg.ServerURL != "" {
		return cfg.ServerURL
	}

	if cfg.LanURL != "" && probeServer(ctx, cfg.LanURL) {
		slog.Debug("using LAN server", "url", cfg.LanURL)
		return cfg.LanURL
	}

	return config.DefaultServerURL
}

// probeServer reports whether a BrandyBox backend answers at url. Any HTTP
// response counts, including auth errors; only transport failures do not.
func probeServer(ctx context.Context, url string) bool {
	probeCtx, cancel := context.WithTimeout(ctx, lanProbeTimeout)
	defer cancel()

	client := req.C().SetBaseURL(url).SetTimeout(lanProbeTimeout)
	defer client.CloseIdleConnections()

	resp, err := client.R().SetContext(probeCtx).Get("/api/users/me")
	if err != nil {
		slog.Debug("LAN probe failed", "url", url, "error", err)
		return false
	}
	return resp.StatusCode > 0
}
