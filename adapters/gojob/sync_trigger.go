package gojob

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-costhook/core"
	glog "github.com/goliatone/go-logger/glog"

	"github.com/goliatone/go-job/queue/worker"
)

// JobIDSyncRun carries one provider instance id to the sync scheduler.
const JobIDSyncRun = "costhook.sync.run"

const (
	paramProviderID     = "provider_id"
	defaultDedupPolicy  = "drop"
	defaultPollInterval = time.Second
	defaultRetryDelay   = 5 * time.Second
)

// SyncTriggerMessage builds the queue message that asks for one instance sync.
func SyncTriggerMessage(providerID string) *core.JobExecutionMessage {
	id := strings.TrimSpace(providerID)
	return &core.JobExecutionMessage{
		JobID:          JobIDSyncRun,
		ScriptPath:     JobIDSyncRun,
		Parameters:     map[string]any{paramProviderID: id},
		IdempotencyKey: JobIDSyncRun + ":" + id,
		DedupPolicy:    defaultDedupPolicy,
	}
}

// ProviderIDFromMessage extracts the instance id from a sync trigger message.
func ProviderIDFromMessage(msg *core.JobExecutionMessage) (string, error) {
	if msg == nil {
		return "", fmt.Errorf("gojob: execution message is required")
	}
	if msg.JobID != JobIDSyncRun {
		return "", fmt.Errorf("gojob: unsupported job %q", msg.JobID)
	}
	raw, _ := msg.Parameters[paramProviderID].(string)
	id := strings.TrimSpace(raw)
	if id == "" {
		return "", fmt.Errorf("gojob: %s parameter is required", paramProviderID)
	}
	return id, nil
}

// SyncTrigger hands manual sync requests to a job queue so they survive
// request cancellation and are deduplicated per instance.
type SyncTrigger struct {
	enqueuer core.JobEnqueuer
}

func NewSyncTrigger(enqueuer core.JobEnqueuer) *SyncTrigger {
	return &SyncTrigger{enqueuer: enqueuer}
}

func (t *SyncTrigger) Trigger(ctx context.Context, providerID string) error {
	if t == nil || t.enqueuer == nil {
		return fmt.Errorf("gojob: sync trigger enqueuer is not configured")
	}
	if strings.TrimSpace(providerID) == "" {
		return fmt.Errorf("gojob: provider id is required")
	}
	return t.enqueuer.Enqueue(ctx, SyncTriggerMessage(providerID))
}

type ConsumerOption func(*SyncTriggerConsumer)

func WithConsumerLogger(logger glog.Logger) ConsumerOption {
	return func(c *SyncTriggerConsumer) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithConsumerHook observes deliveries using the go-job worker hook contract.
func WithConsumerHook(hook worker.Hook) ConsumerOption {
	return func(c *SyncTriggerConsumer) {
		c.hook = hook
	}
}

func WithRetryDelay(delay time.Duration) ConsumerOption {
	return func(c *SyncTriggerConsumer) {
		if delay >= 0 {
			c.retryDelay = delay
		}
	}
}

func WithPollInterval(interval time.Duration) ConsumerOption {
	return func(c *SyncTriggerConsumer) {
		if interval > 0 {
			c.pollInterval = interval
		}
	}
}

func WithConsumerClock(now func() time.Time) ConsumerOption {
	return func(c *SyncTriggerConsumer) {
		if now != nil {
			c.now = now
		}
	}
}

// SyncTriggerConsumer drains sync trigger messages into the scheduler.
type SyncTriggerConsumer struct {
	dequeuer     core.JobDequeuer
	target       core.SyncTrigger
	logger       glog.Logger
	hook         worker.Hook
	retryDelay   time.Duration
	pollInterval time.Duration
	now          func() time.Time

	mu       sync.Mutex
	attempts map[string]int
}

func NewSyncTriggerConsumer(dequeuer core.JobDequeuer, target core.SyncTrigger, opts ...ConsumerOption) *SyncTriggerConsumer {
	consumer := &SyncTriggerConsumer{
		dequeuer:     dequeuer,
		target:       target,
		logger:       glog.Nop(),
		retryDelay:   defaultRetryDelay,
		pollInterval: defaultPollInterval,
		now:          time.Now,
		attempts:     map[string]int{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(consumer)
		}
	}
	return consumer
}

// Run consumes deliveries until ctx is done.
func (c *SyncTriggerConsumer) Run(ctx context.Context) error {
	if c == nil || c.dequeuer == nil || c.target == nil {
		return fmt.Errorf("gojob: consumer is not configured")
	}
	for {
		delivery, err := c.dequeuer.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.logger.Warn("sync trigger dequeue failed", "error", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(c.pollInterval):
			}
			continue
		}
		if delivery == nil {
			continue
		}
		if err := c.Process(ctx, delivery); err != nil {
			c.logger.Error("sync trigger delivery settle failed", "error", err)
		}
	}
}

// Process handles one delivery. The returned error reports ack or nack
// failures; a failed trigger is settled through a retry nack.
func (c *SyncTriggerConsumer) Process(ctx context.Context, delivery core.JobDelivery) error {
	msg := delivery.Message()
	started := c.now()
	event := worker.Event{Message: ToExecutionMessage(msg), StartedAt: started}

	providerID, err := ProviderIDFromMessage(msg)
	if err != nil {
		event.Err = err
		c.onFailure(ctx, event)
		c.logger.Warn("sync trigger message rejected", "error", err)
		return delivery.Nack(ctx, core.JobNackOptions{DeadLetter: true, Reason: err.Error()})
	}

	key := msg.IdempotencyKey
	attempt := c.nextAttempt(key)
	event.Attempt = attempt
	c.onStart(ctx, event)

	triggerErr := c.target.Trigger(ctx, providerID)
	event.Duration = c.now().Sub(started)
	if triggerErr == nil || errors.Is(triggerErr, core.ErrProviderNotFound) {
		c.resetAttempts(key)
		if triggerErr != nil {
			c.logger.Info("sync trigger dropped for removed instance", "provider_id", providerID)
		}
		c.onSuccess(ctx, event)
		return delivery.Ack(ctx)
	}

	event.Err = triggerErr
	event.Delay = c.retryDelay
	opts := core.JobNackOptions{Delay: c.retryDelay, Requeue: true, Reason: triggerErr.Error()}
	c.logger.Warn("sync trigger failed", "provider_id", providerID, "attempt", attempt, "error", triggerErr)
	if adapter, ok := delivery.(*DeliveryAdapter); ok {
		normalized := adapter.policy.NormalizeAttempt(opts, attempt)
		if normalized.Requeue {
			c.onRetry(ctx, event)
		} else {
			c.resetAttempts(key)
			c.onFailure(ctx, event)
		}
		return adapter.NackForAttempt(ctx, opts, attempt)
	}
	c.onRetry(ctx, event)
	return delivery.Nack(ctx, opts)
}

func (c *SyncTriggerConsumer) nextAttempt(key string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.attempts[key]++
	return c.attempts[key]
}

func (c *SyncTriggerConsumer) resetAttempts(key string) {
	c.mu.Lock()
	delete(c.attempts, key)
	c.mu.Unlock()
}

func (c *SyncTriggerConsumer) onStart(ctx context.Context, event worker.Event) {
	if c.hook != nil {
		c.hook.OnStart(ctx, event)
	}
}

func (c *SyncTriggerConsumer) onSuccess(ctx context.Context, event worker.Event) {
	if c.hook != nil {
		c.hook.OnSuccess(ctx, event)
	}
}

func (c *SyncTriggerConsumer) onFailure(ctx context.Context, event worker.Event) {
	if c.hook != nil {
		c.hook.OnFailure(ctx, event)
	}
}

func (c *SyncTriggerConsumer) onRetry(ctx context.Context, event worker.Event) {
	if c.hook != nil {
		c.hook.OnRetry(ctx, event)
	}
}

var _ core.SyncTrigger = (*SyncTrigger)(nil)
