package dashboard

import (
	"context"
	"log/slog"
	"time"

	"github.com/voxdash/voxctl/internal/client"
	"github.com/voxdash/voxctl/internal/observability"
)

// SystemSource fetches system info.
type SystemSource interface {
	SystemInfo(ctx context.Context) (client.SystemInfo, error)
}

// Poller refreshes the system snapshot on a fixed period.
type Poller struct {
	store    *Store
	source   SystemSource
	interval time.Duration
}

// NewPoller creates a poller. A non-positive interval uses five seconds.
func NewPoller(store *Store, source SystemSource, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = 5 * time.Second
	}

	return &Poller{store: store, source: source, interval: interval}
}

// Run polls once immediately and then every interval until ctx is done.
// Polls run on this goroutine, so they never overlap.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		_ = p.PollOnce(ctx)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// PollOnce performs a single fetch. A failure leaves the previous snapshot
// untouched and is reported only to the operator log.
func (p *Poller) PollOnce(ctx context.Context) error {
	info, err := p.source.SystemInfo(ctx)
	if err != nil {
		if ctx.Err() == nil {
			observability.FromContext(ctx).Warn("system info poll failed", slog.String("error", err.Error()))
		}

		return err
	}

	if ctx.Err() != nil {
		return ctx.Err()
	}

	p.store.Apply(SystemFetched{Snapshot: SnapshotFromInfo(info)})

	return nil
}
