// Package dtlog is a thin, context-first structured logging facade
// over go.uber.org/zap, shaped after the call sites in
// pkg/storage/concurrency/concurrency_manager.go and
// pkg/kv/kvserver/concurrency/concurrency_manager.go
// (log.Event(ctx, "..."), log.Fatal(ctx, err)). The teacher's own
// util/log package is wired deeply into the rest of the monorepo
// (audit trails, redaction, file rotation) and isn't meant to be
// imported standalone, so this package reproduces its call shape over
// an independently importable logger instead.
package dtlog

import (
	"context"

	"go.uber.org/zap"
)

type ctxKey struct{}

// WithTags returns a context carrying additional structured fields
// that every subsequent Infof/Event/Fatal call against it will
// include, mirroring util/log's logtags-on-context convention.
func WithTags(ctx context.Context, fields ...zap.Field) context.Context {
	existing, _ := ctx.Value(ctxKey{}).([]zap.Field)
	merged := append(append([]zap.Field(nil), existing...), fields...)
	return context.WithValue(ctx, ctxKey{}, merged)
}

func tagsFrom(ctx context.Context) []zap.Field {
	fields, _ := ctx.Value(ctxKey{}).([]zap.Field)
	return fields
}

var base = zap.NewNop()

// SetOutput installs the zap.Logger backing every dtlog call.
// cmd/dtqueue-sim calls this once at startup when --verbose is set;
// otherwise the default no-op logger stays in place.
func SetOutput(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	base = l
}

// Infof logs an informational message with the context's tags
// attached.
func Infof(ctx context.Context, format string, args ...interface{}) {
	base.With(tagsFrom(ctx)...).Sugar().Infof(format, args...)
}

// Event records a single labeled milestone within an operation, the
// way log.Event(ctx, "acquiring latches") marks phases of
// sequenceReqWithGuard in the teacher.
func Event(ctx context.Context, msg string) {
	base.With(tagsFrom(ctx)...).Debug(msg)
}

// Fatal logs err at fatal severity and then panics with it. There is
// no recovery path: spec §7 makes every internal consistency-check
// failure fatal to the process, and dtqueue calls Fatal only for
// invariant violations it cannot proceed past.
func Fatal(ctx context.Context, err error) {
	base.With(tagsFrom(ctx)...).Error("fatal", zap.Error(err))
	panic(err)
}
