package process

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/ragforge/corerag/internal/watcher"
)

// batchEvent pairs a watcher's event batch with its resolved root, so the
// pump goroutine can turn a relative Path back into an absolute one.
type batchEvent struct {
	root   string
	events []watcher.FileEvent
}

// Pump drains a watcher.Watcher's event batches and applies them against a
// Processor, bounded by Config.MaxQueuedRequests so a burst of filesystem
// activity can't pile up unbounded work ahead of the embedding pipeline.
type Pump struct {
	proc   *Processor
	logger *slog.Logger
	queue  chan batchEvent
}

// NewPump builds a pump that applies event batches to p, queuing at most
// p's Config.MaxQueuedRequests pending batches before the watcher's own
// buffer absorbs the backlog. The watcher is supplied later, to Run.
func NewPump(p *Processor, logger *slog.Logger) *Pump {
	if logger == nil {
		logger = slog.Default()
	}
	queueLen := p.cfg.MaxQueuedRequests
	if queueLen <= 0 {
		queueLen = DefaultConfig().MaxQueuedRequests
	}
	return &Pump{proc: p, logger: logger, queue: make(chan batchEvent, queueLen)}
}

// Run watches root via w until ctx is canceled, applying each debounced
// batch of events to the processor in order. Errors from individual
// operations are logged, not returned, so one bad file doesn't stop the
// pump from draining the rest of the queue.
func (pm *Pump) Run(ctx context.Context, w watcher.Watcher, root string) error {
	go pm.drain(ctx)

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case events, ok := <-w.Events():
				if !ok {
					close(pm.queue)
					return
				}
				select {
				case pm.queue <- batchEvent{root: root, events: events}:
				case <-ctx.Done():
					return
				}
			case err, ok := <-w.Errors():
				if !ok {
					continue
				}
				pm.logger.Warn("watcher error", slog.String("error", err.Error()))
			}
		}
	}()

	return w.Start(ctx, root)
}

func (pm *Pump) drain(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case be, ok := <-pm.queue:
			if !ok {
				return
			}
			pm.applyBatch(ctx, be)
		}
	}
}

func (pm *Pump) applyBatch(ctx context.Context, be batchEvent) {
	for _, ev := range be.events {
		if ev.IsDir {
			continue
		}
		absPath := filepath.Join(be.root, ev.Path)

		var err error
		switch ev.Operation {
		case watcher.OpDelete:
			err = pm.proc.Remove(ctx, absPath)
		default: // Create, Modify, Rename all resolve to a reprocess.
			err = pm.proc.Process(ctx, absPath, false)
		}
		if err != nil {
			pm.logger.Warn("watch event processing failed",
				slog.String("path", absPath),
				slog.String("op", ev.Operation.String()),
				slog.String("error", err.Error()))
		}
	}
}
