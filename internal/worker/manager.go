package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"warbler/internal/queue"
)

const (
	DefaultWorkerCount  = 2
	DefaultBatchSize    = 10
	DefaultBlockTimeout = 5 * time.Second

	readRetryDelay = time.Second
)

// EventHandler applies one timeline event. *Handler is the production implementation.
type EventHandler interface {
	HandleEvent(ctx context.Context, event queue.TimelineEvent) error
}

type ManagerConfig struct {
	WorkerCount  int
	BatchSize    int64
	BlockTimeout time.Duration
}

func (c ManagerConfig) withDefaults() ManagerConfig {
	if c.WorkerCount <= 0 {
		c.WorkerCount = DefaultWorkerCount
	}
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.BlockTimeout <= 0 {
		c.BlockTimeout = DefaultBlockTimeout
	}
	return c
}

// Manager runs a fixed pool of goroutines sharing the timeline consumer group.
// Each goroutine is a distinct consumer, so Redis hands every event to exactly one of them.
type Manager struct {
	consumer queue.Consumer
	handler  EventHandler
	cfg      ManagerConfig

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewManager(consumer queue.Consumer, handler EventHandler, cfg ManagerConfig) *Manager {
	return &Manager{
		consumer: consumer,
		handler:  handler,
		cfg:      cfg.withDefaults(),
	}
}

// Start creates the consumer group when missing and launches the workers.
// They run until Stop is called or ctx is cancelled.
func (m *Manager) Start(ctx context.Context) error {
	if err := m.consumer.EnsureGroup(ctx, queue.StreamTimeline, queue.ConsumerGroupTimeline); err != nil {
		return err
	}

	ctx, m.cancel = context.WithCancel(ctx)
	for i := 1; i <= m.cfg.WorkerCount; i++ {
		w := &streamWorker{
			name:    fmt.Sprintf("worker-%d", i),
			manager: m,
		}
		w.log = log.WithField("consumer", w.name)

		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			w.run(ctx)
		}()
	}

	log.WithFields(log.Fields{
		"workers": m.cfg.WorkerCount,
		"stream":  queue.StreamTimeline,
		"group":   queue.ConsumerGroupTimeline,
	}).Info("[Manager] Timeline workers started")
	return nil
}

// Stop cancels the workers and waits for the batch in flight to finish.
func (m *Manager) Stop() {
	if m.cancel == nil {
		return
	}
	m.cancel()
	m.wg.Wait()
	log.Info("[Manager] Timeline workers stopped")
}

type streamWorker struct {
	name    string
	manager *Manager
	log     *log.Entry
}

func (w *streamWorker) run(ctx context.Context) {
	w.log.Debug("[Worker] Started")

	// Events delivered to this consumer name before a crash are still pending.
	w.drainPending(ctx)

	for ctx.Err() == nil {
		batch, err := w.manager.consumer.Read(ctx, queue.StreamTimeline, queue.ConsumerGroupTimeline,
			w.name, w.manager.cfg.BatchSize, w.manager.cfg.BlockTimeout)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			w.log.WithError(err).Warn("[Worker] Read failed")
			select {
			case <-ctx.Done():
			case <-time.After(readRetryDelay):
			}
			continue
		}
		w.apply(ctx, batch)
	}

	w.log.Debug("[Worker] Shutting down")
}

func (w *streamWorker) drainPending(ctx context.Context) {
	for ctx.Err() == nil {
		batch, err := w.manager.consumer.ReadPending(ctx, queue.StreamTimeline, queue.ConsumerGroupTimeline,
			w.name, w.manager.cfg.BatchSize)
		if err != nil {
			w.log.WithError(err).Warn("[Worker] Reading pending events failed")
			return
		}
		if len(batch) == 0 {
			return
		}
		w.log.WithField("count", len(batch)).Info("[Worker] Replaying pending events")
		w.apply(ctx, batch)
	}
}

// apply handles each event and acknowledges it whether or not the handler succeeded.
// A failed event leaves a stale cached timeline, which the next cache miss rebuilds.
// Malformed entries are acknowledged without reaching the handler.
func (w *streamWorker) apply(ctx context.Context, batch []queue.Message) {
	for _, msg := range batch {
		entry := w.log.WithFields(log.Fields{"stream_id": msg.ID, "event": msg.Event.Type})

		if msg.Err != nil {
			entry.WithError(msg.Err).Warn("[Worker] Dropping malformed entry")
		} else if err := w.manager.handler.HandleEvent(ctx, msg.Event); err != nil {
			entry.WithError(err).Error("[Worker] Event failed")
		}
		if err := w.manager.consumer.Ack(ctx, queue.StreamTimeline, queue.ConsumerGroupTimeline, msg.ID); err != nil {
			entry.WithError(err).Error("[Worker] Ack failed")
		}
	}
}
