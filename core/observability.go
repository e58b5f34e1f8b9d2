package core

import (
	"context"
	"maps"
	"slices"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// operation tracks one service call. It ends with one counter, one duration
// histogram and one structured log line.
type operation struct {
	service   *Service
	ctx       context.Context
	name      string
	startedAt time.Time
	fields    map[string]any
}

func (s *Service) startOperation(ctx context.Context, name string, fields map[string]any) *operation {
	if fields == nil {
		fields = map[string]any{}
	}
	name = normalizeOperation(name)
	if name == "" {
		name = "unknown"
	}
	return &operation{service: s, ctx: ctx, name: name, startedAt: time.Now(), fields: fields}
}

func (op *operation) set(key string, value any) {
	op.fields[key] = value
}

// end records the outcome. Vendor-side failures log at warn since a
// misbehaving vendor is routine for a sync service; everything else logs at
// error.
func (op *operation) end(err error) {
	s := op.service
	if s == nil {
		return
	}
	elapsed := time.Since(op.startedAt)
	status := "success"
	if err != nil {
		status = "failure"
	}

	fields := RedactSensitiveMap(op.fields)
	fields["event_type"] = op.name
	fields["status"] = status
	fields["duration_ms"] = elapsed.Milliseconds()

	// provider_id stays out of the tags to keep metric cardinality bounded.
	tags := map[string]string{"operation": op.name, "status": status}
	for _, key := range []string{"provider_type", "outcome"} {
		if value, ok := op.fields[key].(string); ok && value != "" {
			tags[key] = value
		}
	}
	s.recordCounter(op.ctx, "costhook."+op.name+".total", 1, tags)
	s.recordHistogram(op.ctx, "costhook."+op.name+".duration_ms", float64(elapsed.Milliseconds()), tags)

	if err == nil {
		s.logInfo(op.ctx, op.name+" succeeded", fields)
		return
	}
	fields["error"] = err.Error()
	rich := enrichErrorFields(fields, err)
	if rich != nil && (rich.Category == goerrors.CategoryExternal || rich.Category == goerrors.CategoryRateLimit) {
		s.logWarn(op.ctx, op.name+" failed", fields)
		return
	}
	s.logError(op.ctx, op.name+" failed", fields)
}

func enrichErrorFields(fields map[string]any, err error) *goerrors.Error {
	rich := MapError(err)
	if rich == nil {
		return nil
	}
	fields["error_category"] = string(rich.Category)
	fields["error_text_code"] = rich.TextCode
	fields["error_severity"] = rich.Severity.String()
	if len(rich.Metadata) == 0 {
		return rich
	}
	for _, key := range []string{"request_id", "trace_id"} {
		if value, ok := rich.Metadata[key]; ok {
			if _, exists := fields[key]; !exists {
				fields[key] = value
			}
		}
	}
	fields["error_metadata"] = RedactSensitiveMap(rich.Metadata)
	return rich
}

func (s *Service) logInfo(ctx context.Context, message string, fields map[string]any) {
	s.logAt(ctx, "info", message, fields)
}

func (s *Service) logWarn(ctx context.Context, message string, fields map[string]any) {
	s.logAt(ctx, "warn", message, fields)
}

func (s *Service) logError(ctx context.Context, message string, fields map[string]any) {
	s.logAt(ctx, "error", message, fields)
}

func (s *Service) logAt(ctx context.Context, level string, message string, fields map[string]any) {
	if s == nil || s.logger == nil {
		return
	}
	logger := s.logger
	if ctx != nil {
		logger = logger.WithContext(ctx)
	}
	if fieldsLogger, ok := logger.(FieldsLogger); ok {
		logger = fieldsLogger.WithFields(maps.Clone(fields))
	}
	args := flattenFields(fields)
	switch level {
	case "error":
		logger.Error(message, args...)
	case "warn":
		logger.Warn(message, args...)
	default:
		logger.Info(message, args...)
	}
}

func (s *Service) recordCounter(ctx context.Context, name string, value int64, tags map[string]string) {
	if s == nil || s.metricsRecorder == nil {
		return
	}
	s.metricsRecorder.IncCounter(ctx, name, value, maps.Clone(tags))
}

func (s *Service) recordHistogram(ctx context.Context, name string, value float64, tags map[string]string) {
	if s == nil || s.metricsRecorder == nil {
		return
	}
	s.metricsRecorder.ObserveHistogram(ctx, name, value, maps.Clone(tags))
}

func flattenFields(fields map[string]any) []any {
	keys := slices.Sorted(maps.Keys(fields))
	args := make([]any, 0, len(keys)*2)
	for _, key := range keys {
		args = append(args, key, fields[key])
	}
	return args
}

func normalizeOperation(operation string) string {
	return strings.NewReplacer(" ", "_", "-", "_").Replace(strings.ToLower(strings.TrimSpace(operation)))
}
