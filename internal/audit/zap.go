package audit

import (
	"context"

	"go.uber.org/zap"
)

// ZapSink writes each event as one structured log line at info level, or
// warn level for failures.
type ZapSink struct {
	log *zap.Logger
}

func NewZapSink(l *zap.Logger) *ZapSink {
	if l == nil {
		l = zap.NewNop()
	}
	return &ZapSink{log: l.With(zap.String("component", "audit"))}
}

func (s *ZapSink) Emit(_ context.Context, e Event) {
	fields := []zap.Field{
		zap.Time("event_ts", e.Timestamp),
		zap.String("event_type", e.EventType),
		zap.Bool("success", e.Success),
	}
	if e.Subject != "" {
		fields = append(fields, zap.String("subject", e.Subject))
	}
	if e.TokenID != "" {
		fields = append(fields, zap.String("token_id", e.TokenID))
	}
	if e.IP != "" {
		fields = append(fields, zap.String("ip", e.IP))
	}
	if e.RequestID != "" {
		fields = append(fields, zap.String("request_id", e.RequestID))
	}
	if e.Error != "" {
		fields = append(fields, zap.String("error_code", e.Error))
	}
	for k, v := range e.Metadata {
		fields = append(fields, zap.String("meta."+k, v))
	}

	if e.Success {
		s.log.Info("audit", fields...)
		return
	}
	s.log.Warn("audit", fields...)
}
