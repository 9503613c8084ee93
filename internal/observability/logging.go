package observability

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the structured logger handed to every gateway component.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	Fatal(msg string, fields ...Field)
	With(fields ...Field) Logger
	// WithContext attaches the request id and trace ids found in ctx.
	WithContext(ctx context.Context) Logger
	Sync() error
}

// Field is a typed log field.
type Field = zap.Field

var (
	String   = zap.String
	Int      = zap.Int
	Int64    = zap.Int64
	Bool     = zap.Bool
	Duration = zap.Duration
	Error    = zap.Error
)

// Log formats.
const (
	FormatJSON    = "json"
	FormatConsole = "console"
)

// LogConfig selects the level and encoding of the process logger. Empty
// values mean info and JSON.
type LogConfig struct {
	Level  string
	Format string
}

// NewLogger builds the process logger. Entries go to stdout.
func NewLogger(cfg LogConfig) (Logger, error) {
	level := zapcore.InfoLevel
	if cfg.Level != "" {
		if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
			return nil, err
		}
	}

	enc := zap.NewProductionEncoderConfig()
	enc.TimeKey = "timestamp"
	enc.MessageKey = "message"
	enc.EncodeTime = zapcore.ISO8601TimeEncoder
	enc.EncodeDuration = zapcore.MillisDurationEncoder

	var encoder zapcore.Encoder
	switch cfg.Format {
	case "", FormatJSON:
		encoder = zapcore.NewJSONEncoder(enc)
	case FormatConsole:
		enc.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoder = zapcore.NewConsoleEncoder(enc)
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}

	core := zapcore.NewCore(encoder, zapcore.Lock(os.Stdout), level)
	return NewZapLogger(zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1))), nil
}

// NewZapLogger adapts logger. A nil logger discards everything.
func NewZapLogger(logger *zap.Logger) Logger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &zapAdapter{z: logger}
}

// NopLogger returns a logger that discards all output.
func NopLogger() Logger {
	return NewZapLogger(nil)
}

// ZapLogger returns the zap logger behind logger, for packages that log
// through zap directly. Loggers of other kinds yield a no-op logger.
func ZapLogger(logger Logger) *zap.Logger {
	if a, ok := logger.(*zapAdapter); ok {
		return a.z
	}
	return zap.NewNop()
}

type zapAdapter struct {
	z *zap.Logger
}

func (a *zapAdapter) Debug(msg string, fields ...Field) { a.z.Debug(msg, fields...) }
func (a *zapAdapter) Info(msg string, fields ...Field)  { a.z.Info(msg, fields...) }
func (a *zapAdapter) Warn(msg string, fields ...Field)  { a.z.Warn(msg, fields...) }
func (a *zapAdapter) Error(msg string, fields ...Field) { a.z.Error(msg, fields...) }
func (a *zapAdapter) Fatal(msg string, fields ...Field) { a.z.Fatal(msg, fields...) }
func (a *zapAdapter) Sync() error                       { return a.z.Sync() }

func (a *zapAdapter) With(fields ...Field) Logger {
	return &zapAdapter{z: a.z.With(fields...)}
}

func (a *zapAdapter) WithContext(ctx context.Context) Logger {
	var fields []Field
	for _, k := range loggedContextKeys {
		if v, ok := ctx.Value(k).(string); ok && v != "" {
			fields = append(fields, String(string(k), v))
		}
	}
	if len(fields) == 0 {
		return a
	}
	return a.With(fields...)
}

type logContextKey string

const (
	requestIDKey logContextKey = "request_id"
	traceIDKey   logContextKey = "trace_id"
	spanIDKey    logContextKey = "span_id"
)

// loggedContextKeys are copied onto request-scoped loggers, in this order.
var loggedContextKeys = []logContextKey{requestIDKey, traceIDKey, spanIDKey}

func ContextWithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

func ContextWithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey, traceID)
}

func TraceIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(traceIDKey).(string)
	return id
}

func ContextWithSpanID(ctx context.Context, spanID string) context.Context {
	return context.WithValue(ctx, spanIDKey, spanID)
}
