package watcher

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/terra-clan/bounty-board/internal/events"
	"github.com/terra-clan/bounty-board/internal/metrics"
	"github.com/terra-clan/bounty-board/internal/models"
)

// Source lists bounties with their derived status
type Source interface {
	ListBounties(ctx context.Context, filter models.BountyFilter) ([]*models.BountyView, error)
}

// Publisher receives bounty.ended events
type Publisher interface {
	Publish(e events.Event)
}

// Watcher periodically looks for bounties that crossed their deadline and
// announces each one once per process. Bounties already ended when the
// watcher starts are recorded without an event.
type Watcher struct {
	source   Source
	events   Publisher
	interval time.Duration

	mu     sync.Mutex
	seen   map[string]struct{}
	primed bool
}

// New creates a new deadline watcher
func New(source Source, publisher Publisher, interval time.Duration) *Watcher {
	if interval <= 0 {
		interval = time.Minute
	}

	return &Watcher{
		source:   source,
		events:   publisher,
		interval: interval,
		seen:     make(map[string]struct{}),
	}
}

// Start begins the watcher in a goroutine
func (w *Watcher) Start(ctx context.Context) {
	go w.run(ctx)
}

func (w *Watcher) run(ctx context.Context) {
	slog.Info("deadline watcher started", "interval", w.interval)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.scan(ctx)

	for {
		select {
		case <-ctx.Done():
			slog.Info("deadline watcher stopped")
			return
		case <-ticker.C:
			w.scan(ctx)
		}
	}
}

// scan emits bounty.ended for bounties not seen ended before and returns how
// many were emitted
func (w *Watcher) scan(ctx context.Context) int {
	slog.Debug("running deadline scan")

	ended, err := w.source.ListBounties(ctx, models.BountyFilter{Status: models.StatusEnded})
	if err != nil {
		slog.Error("failed to list ended bounties", "error", err)
		return 0
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	current := make(map[string]struct{}, len(ended))
	emitted := 0
	for _, b := range ended {
		current[b.ID] = struct{}{}
		if _, ok := w.seen[b.ID]; ok {
			continue
		}
		w.seen[b.ID] = struct{}{}

		if !w.primed {
			continue
		}

		slog.Info("bounty ended",
			"bounty_id", b.ID,
			"end_date", b.EndDate,
			"submissions", b.SubmissionsTotal,
		)
		metrics.BountiesEnded.Inc()
		w.events.Publish(events.Event{Type: events.TypeBountyEnded, BountyID: b.ID, Data: b})
		emitted++
	}

	// deleted bounties drop out of the seen set
	for id := range w.seen {
		if _, ok := current[id]; !ok {
			delete(w.seen, id)
		}
	}

	if !w.primed {
		slog.Debug("deadline watcher primed", "already_ended", len(ended))
		w.primed = true
	}

	return emitted
}
