// Package dbg provides the compile-time gated diagnostic output used by
// every allocator engine. Building with -tags alloc_debug wires a real
// logger; the default build wires a nil sink so Printf costs one nil check.
package dbg

// sink is the minimal logging surface a *zap.SugaredLogger satisfies.
type sink interface {
	Debugf(template string, args ...interface{})
}

var logSink = newSink()

// Printf emits a formatted diagnostic line when built with -tags alloc_debug.
// It is a no-op otherwise.
func Printf(format string, args ...interface{}) {
	if logSink == nil {
		return
	}
	logSink.Debugf(format, args...)
}

// Enabled reports whether debug logging is compiled in.
func Enabled() bool { return logSink != nil }
