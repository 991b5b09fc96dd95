// Package audit delivers security events (logins, reissues, logouts, signups)
// to pluggable sinks.
//
// Engine code emits into a [Dispatcher], which buffers events and forwards
// them to a [Sink] on its own goroutine, so a slow sink never holds up an
// authentication request. Sinks shipped here write to a channel, a JSON
// stream, a zap logger, or a Kafka topic.
//
// Events never carry passwords or token strings.
package audit
