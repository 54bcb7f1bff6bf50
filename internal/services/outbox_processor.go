package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"wealthwatch/internal/core"
	"wealthwatch/internal/log"
	"wealthwatch/internal/storage"
)

// EventPublisher delivers ledger events to subscribers.
type EventPublisher interface {
	PublishEvent(ctx context.Context, e core.LedgerEvent) error
}

// OutboxProcessorConfig holds configuration for the outbox processor
type OutboxProcessorConfig struct {
	// PollInterval is how often to check for pending events (default: 5s)
	PollInterval time.Duration

	// BatchSize is the max number of events published per poll cycle (default: 50)
	BatchSize int

	// MaxRetries is the number of attempts before an event is marked failed (default: 5)
	MaxRetries int

	// CleanupInterval is how often published events are purged (default: 1h)
	CleanupInterval time.Duration

	// Retention is how long published events are kept (default: 168h)
	Retention time.Duration
}

// DefaultOutboxProcessorConfig returns sensible defaults
func DefaultOutboxProcessorConfig() OutboxProcessorConfig {
	return OutboxProcessorConfig{
		PollInterval:    5 * time.Second,
		BatchSize:       50,
		MaxRetries:      5,
		CleanupInterval: 1 * time.Hour,
		Retention:       7 * 24 * time.Hour,
	}
}

// OutboxProcessor publishes pending ledger events. Events are delivered at
// least once: a crash between publish and mark sends the event again.
type OutboxProcessor struct {
	outbox    storage.Outbox
	publisher EventPublisher
	config    OutboxProcessorConfig
	logger    *log.Logger

	// Lifecycle management
	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewOutboxProcessor(outbox storage.Outbox, publisher EventPublisher, config OutboxProcessorConfig, logger *log.Logger) *OutboxProcessor {
	defaults := DefaultOutboxProcessorConfig()
	if config.PollInterval <= 0 {
		config.PollInterval = defaults.PollInterval
	}
	if config.BatchSize <= 0 {
		config.BatchSize = defaults.BatchSize
	}
	if config.MaxRetries <= 0 {
		config.MaxRetries = defaults.MaxRetries
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = defaults.CleanupInterval
	}
	if config.Retention <= 0 {
		config.Retention = defaults.Retention
	}
	if logger == nil {
		logger = log.Default()
	}
	return &OutboxProcessor{
		outbox:    outbox,
		publisher: publisher,
		config:    config,
		logger:    logger.WithComponent(log.ComponentOutbox),
	}
}

// Start begins the processing loop. Returns an error if already running.
func (p *OutboxProcessor) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return errors.New("outbox processor is already running")
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	p.mu.Unlock()

	go p.runLoop(ctx)

	p.logger.InfoContext(ctx, "Outbox processor started",
		"poll_interval", p.config.PollInterval,
		"batch_size", p.config.BatchSize,
		"max_retries", p.config.MaxRetries)
	return nil
}

// Stop signals the loop and waits for the current batch to finish.
func (p *OutboxProcessor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	stopCh, doneCh := p.stopCh, p.doneCh
	p.running = false
	p.mu.Unlock()

	close(stopCh)

	select {
	case <-doneCh:
		p.logger.InfoContext(ctx, "Outbox processor stopped gracefully")
		return nil
	case <-ctx.Done():
		p.logger.WarnContext(ctx, "Outbox processor stop timed out")
		return ctx.Err()
	}
}

func (p *OutboxProcessor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *OutboxProcessor) runLoop(ctx context.Context) {
	defer close(p.doneCh)

	pollTicker := time.NewTicker(p.config.PollInterval)
	defer pollTicker.Stop()

	cleanupTicker := time.NewTicker(p.config.CleanupInterval)
	defer cleanupTicker.Stop()

	// Process immediately on startup
	p.processBatch(ctx, p.stopCh)

	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case <-pollTicker.C:
			p.processBatch(ctx, p.stopCh)
		case <-cleanupTicker.C:
			p.cleanupPublished(ctx)
		}
	}
}

// ProcessOnce publishes one batch and returns how many events were published.
func (p *OutboxProcessor) ProcessOnce(ctx context.Context) (int, error) {
	entries, err := p.outbox.PendingEvents(ctx, p.config.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("load pending events: %w", err)
	}
	published := 0
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return published, err
		}
		if p.publish(ctx, entry) {
			published++
		}
	}
	return published, nil
}

func (p *OutboxProcessor) processBatch(ctx context.Context, stopCh <-chan struct{}) {
	entries, err := p.outbox.PendingEvents(ctx, p.config.BatchSize)
	if err != nil {
		p.logger.ErrorContext(ctx, "Failed to load pending events", log.FieldError, err)
		return
	}
	if len(entries) == 0 {
		return
	}

	p.logger.DebugContext(ctx, "Publishing outbox batch", "count", len(entries))

	for _, entry := range entries {
		select {
		case <-stopCh:
			return
		case <-ctx.Done():
			return
		default:
		}
		p.publish(ctx, entry)
	}
}

// publish sends one entry and records the outcome. It reports whether the
// event was delivered.
func (p *OutboxProcessor) publish(ctx context.Context, entry storage.OutboxEntry) bool {
	if err := p.publisher.PublishEvent(ctx, entry.Event); err != nil {
		p.handleFailure(ctx, entry, err)
		return false
	}
	if err := p.outbox.MarkEventPublished(ctx, entry.ID); err != nil {
		p.logger.ErrorContext(ctx, "Failed to mark event published",
			append(log.NewFields().WithEvent(entry.Event).WithError(err).ToSlice(), "id", entry.ID)...)
		return false
	}
	return true
}

func (p *OutboxProcessor) handleFailure(ctx context.Context, entry storage.OutboxEntry, publishErr error) {
	attempt := entry.Attempts + 1
	fields := log.NewFields().WithEvent(entry.Event).WithError(publishErr)
	fields[log.FieldAttempts] = attempt

	if attempt >= int64(p.config.MaxRetries) {
		if err := p.outbox.MarkEventFailed(ctx, entry.ID, publishErr.Error()); err != nil {
			p.logger.ErrorContext(ctx, "Failed to mark event failed", "id", entry.ID, log.FieldError, err)
		}
		p.logger.ErrorContext(ctx, "Event failed permanently after max retries", fields.ToSlice()...)
		return
	}

	if err := p.outbox.RecordEventAttempt(ctx, entry.ID, publishErr.Error()); err != nil {
		p.logger.ErrorContext(ctx, "Failed to record event attempt", "id", entry.ID, log.FieldError, err)
	}
	p.logger.WarnContext(ctx, "Event publish failed", fields.ToSlice()...)
}

func (p *OutboxProcessor) cleanupPublished(ctx context.Context) {
	n, err := p.outbox.CleanupPublishedEvents(ctx, time.Now().Add(-p.config.Retention))
	if err != nil {
		p.logger.ErrorContext(ctx, "Failed to clean up published events", log.FieldError, err)
		return
	}
	if n > 0 {
		p.logger.InfoContext(ctx, "Cleaned up published events", "count", n)
	}
}

func (p *OutboxProcessor) Stats(ctx context.Context) (storage.OutboxStats, error) {
	return p.outbox.OutboxStats(ctx)
}

// RetryFailed moves every failed event back to pending with a fresh attempt count.
func (p *OutboxProcessor) RetryFailed(ctx context.Context) (int64, error) {
	n, err := p.outbox.RetryFailedEvents(ctx)
	if err != nil {
		return 0, fmt.Errorf("retry failed events: %w", err)
	}
	p.logger.InfoContext(ctx, "Failed events scheduled for retry", "count", n)
	return n, nil
}
