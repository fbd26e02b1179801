package observability

import (
	"context"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/Stelujin-Datacraft/topsqill-itsm-12-sub005/internal/config"
	"github.com/Stelujin-Datacraft/topsqill-itsm-12-sub005/model"
)

type loggerKey struct{}

// NewLogger builds the service's JSON logger on stdout. Every entry carries
// the service name and build version. An unknown level falls back to info.
//
// Levels:
//   - error: store failures, panics, 5xx responses
//   - warn:  4xx responses, rejected stage changes, definition warnings
//   - info:  rule edits, stage changes, records created, startup, reload
//   - debug: record values and preview inputs, redacted
func NewLogger(cfg config.ObservabilityConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zapcore.InfoLevel
	}

	enc := zap.NewProductionEncoderConfig()
	enc.TimeKey = "timestamp"
	enc.EncodeTime = zapcore.ISO8601TimeEncoder
	enc.EncodeDuration = zapcore.MillisDurationEncoder

	zapCfg := zap.Config{
		Level:            zap.NewAtomicLevelAt(level),
		Encoding:         "json",
		EncoderConfig:    enc,
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
		InitialFields: map[string]any{
			"service": cfg.ServiceName,
			"version": Version,
		},
	}
	return zapCfg.Build()
}

// WithLogger stores a logger in the context.
func WithLogger(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// LoggerFrom returns the context's logger, or fallback.
func LoggerFrom(ctx context.Context, fallback *zap.Logger) *zap.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*zap.Logger); ok && l != nil {
		return l
	}
	return fallback
}

// RequestLogger returns the context's logger with the request's actor,
// correlation and trace ids attached. Empty values are left out.
func RequestLogger(ctx context.Context, fallback *zap.Logger) *zap.Logger {
	logger := LoggerFrom(ctx, fallback)
	rctx := model.RequestContextFrom(ctx)
	if rctx == nil {
		return logger
	}

	var fields []zap.Field
	for _, f := range []struct{ key, value string }{
		{"actor_id", rctx.ActorID},
		{"correlation_id", rctx.CorrelationID},
		{"trace_id", rctx.TraceID},
		{"span_id", rctx.SpanID},
		{"timezone", rctx.Timezone},
	} {
		if f.value != "" {
			fields = append(fields, zap.String(f.key, f.value))
		}
	}
	return logger.With(fields...)
}

// Redacted replaces a masked value in debug output.
const Redacted = "[REDACTED]"

// personalTypes hold personal data and are masked in record values.
var personalTypes = map[model.FieldType]bool{
	model.FieldEmail:     true,
	model.FieldPhone:     true,
	model.FieldAddress:   true,
	model.FieldSignature: true,
}

var secretKeys = []string{"password", "secret", "token", "api_key", "ssn"}

// RedactValues returns a copy of record values, keyed by field id, that is
// safe for debug logs. Values of personal field types of form are masked,
// as are keys that look like credentials. Nested objects are walked.
func RedactValues(values map[string]any, form *model.FormDefinition) map[string]any {
	if values == nil {
		return nil
	}
	out := make(map[string]any, len(values))
	for k, v := range values {
		switch {
		case isSecretKey(k):
			out[k] = Redacted
		case form != nil && isPersonal(form, k):
			out[k] = Redacted
		default:
			if nested, ok := v.(map[string]any); ok {
				out[k] = RedactValues(nested, nil)
			} else {
				out[k] = v
			}
		}
	}
	return out
}

func isPersonal(form *model.FormDefinition, fieldID string) bool {
	f, ok := form.Field(fieldID)
	return ok && personalTypes[f.Type]
}

func isSecretKey(k string) bool {
	k = strings.ToLower(k)
	for _, s := range secretKeys {
		if strings.Contains(k, s) {
			return true
		}
	}
	return false
}
