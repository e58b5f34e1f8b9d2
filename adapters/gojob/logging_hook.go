package gojob

import (
	"context"

	"github.com/goliatone/go-costhook/core"
	glog "github.com/goliatone/go-logger/glog"
)

// LoggingHook reports job worker events through glog.
type LoggingHook struct {
	logger glog.Logger
}

func NewLoggingHook(logger glog.Logger) *LoggingHook {
	return &LoggingHook{logger: glog.Ensure(logger)}
}

func (h *LoggingHook) OnStart(_ context.Context, event core.JobWorkerEvent) {
	h.logger.Info("job started", eventFields(event)...)
}

func (h *LoggingHook) OnSuccess(_ context.Context, event core.JobWorkerEvent) {
	h.logger.Info("job succeeded", append(eventFields(event), "duration", event.Duration)...)
}

func (h *LoggingHook) OnFailure(_ context.Context, event core.JobWorkerEvent) {
	h.logger.Error("job failed", append(eventFields(event), "error", event.Err)...)
}

func (h *LoggingHook) OnRetry(_ context.Context, event core.JobWorkerEvent) {
	h.logger.Warn("job retry scheduled", append(eventFields(event), "delay", event.Delay, "error", event.Err)...)
}

func eventFields(event core.JobWorkerEvent) []any {
	fields := []any{"attempt", event.Attempt}
	if event.ProviderID != "" {
		fields = append(fields, "provider_id", event.ProviderID)
	}
	if event.Message != nil {
		fields = append(fields, "job_id", event.Message.JobID, "idempotency_key", event.Message.IdempotencyKey)
	}
	return fields
}

var _ core.JobWorkerHook = (*LoggingHook)(nil)
