package worker

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/fleetops/maintenance-service/internal/events"
)

type job struct {
	ctx   context.Context
	event events.Event
}

// NotificationWorker moves notification handling off the request path.
// Events are queued and processed by a fixed pool of goroutines.
type NotificationWorker struct {
	handler events.EventHandler
	queue   chan job
	workers int
	logger  *zap.Logger

	mu      sync.RWMutex
	started bool
	stopped bool
	wg      sync.WaitGroup
}

// NewNotificationWorker builds a worker around handler.
func NewNotificationWorker(handler events.EventHandler, workers, buffer int, logger *zap.Logger) *NotificationWorker {
	if workers <= 0 {
		workers = 1
	}
	if buffer < 0 {
		buffer = 0
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationWorker{
		handler: handler,
		queue:   make(chan job, buffer),
		workers: workers,
		logger:  logger,
	}
}

// Subscribe routes the given event types through the worker.
func (w *NotificationWorker) Subscribe(dispatcher events.Dispatcher, types ...events.EventType) {
	for _, t := range types {
		dispatcher.Subscribe(t, w.Enqueue)
	}
}

// Start launches the worker goroutines.
func (w *NotificationWorker) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started || w.stopped {
		return
	}
	w.started = true
	for i := 0; i < w.workers; i++ {
		w.wg.Add(1)
		go w.loop()
	}
	w.logger.Info("notification worker started", zap.Int("workers", w.workers))
}

// Stop drains the queue and waits for in-flight events.
func (w *NotificationWorker) Stop() {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	w.stopped = true
	close(w.queue)
	started := w.started
	w.mu.Unlock()

	if !started {
		for j := range w.queue {
			w.process(j)
		}
		return
	}
	w.wg.Wait()
	w.logger.Info("notification worker stopped")
}

// Enqueue queues an event. The request context's cancellation is detached so
// handling outlives the request. A full queue or a stopped worker handles the
// event inline.
func (w *NotificationWorker) Enqueue(ctx context.Context, event events.Event) error {
	j := job{ctx: context.WithoutCancel(ctx), event: event}

	w.mu.RLock()
	if !w.stopped {
		select {
		case w.queue <- j:
			w.mu.RUnlock()
			return nil
		default:
		}
	}
	w.mu.RUnlock()

	w.logger.Warn("notification queue unavailable, handling inline",
		zap.String("event_type", string(event.Type)),
		zap.Int64("ticket_id", event.TicketID))
	return w.handler(j.ctx, event)
}

func (w *NotificationWorker) loop() {
	defer w.wg.Done()
	for j := range w.queue {
		w.process(j)
	}
}

func (w *NotificationWorker) process(j job) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("notification handler panicked",
				zap.String("event_type", string(j.event.Type)),
				zap.Any("panic", r))
		}
	}()
	if err := w.handler(j.ctx, j.event); err != nil {
		w.logger.Warn("notification handler failed",
			zap.String("event_id", j.event.ID),
			zap.String("event_type", string(j.event.Type)),
			zap.Int64("ticket_id", j.event.TicketID),
			zap.Error(err))
	}
}
