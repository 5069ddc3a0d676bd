package ingest

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/clintrovert/sarek/pkg/types"
)

// FetchFunc retrieves the current set of work items from a source.
type FetchFunc func(ctx context.Context) ([]types.WorkItem, error)

// Poller periodically re-fetches a source and forwards items that have
// not been seen before.
type Poller struct {
	fetch    FetchFunc
	logger   *zap.Logger
	interval time.Duration

	mu   sync.RWMutex
	seen map[string]bool
}

// NewPoller creates a poller over the given fetch function.
func NewPoller(fetch FetchFunc, interval time.Duration, logger *zap.Logger) *Poller {
	return &Poller{
		fetch:    fetch,
		logger:   logger,
		interval: interval,
		seen:     make(map[string]bool),
	}
}

// Start polls until the context is cancelled, sending new items to
// itemChan. The first poll happens immediately.
func (p *Poller) Start(ctx context.Context, itemChan chan<- types.WorkItem) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.poll(ctx, itemChan)

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("stopping poller")
			return
		case <-ticker.C:
			p.poll(ctx, itemChan)
		}
	}
}

func (p *Poller) poll(ctx context.Context, itemChan chan<- types.WorkItem) {
	items, err := p.fetch(ctx)
	if err != nil {
		p.logger.Error("poll failed", zap.Error(err))
		return
	}

	for _, item := range items {
		if p.isSeen(item.ID) {
			continue
		}
		p.markSeen(item.ID)

		select {
		case itemChan <- item:
			p.logger.Info("found new item", zap.String("item_id", item.ID))
		case <-ctx.Done():
			return
		}
	}
}

func (p *Poller) isSeen(id string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.seen[id]
}

func (p *Poller) markSeen(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seen[id] = true
}

// Reset clears the seen set so the next poll forwards everything again.
func (p *Poller) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seen = make(map[string]bool)
}
