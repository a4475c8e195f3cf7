// Package monitoring provides the package-level diagnostic logger used by
// the imputation engines and the CLI. Engines never write to stdout
// directly; all progress and warning output funnels through Logf so tests
// and library consumers can redirect or mute it.
package monitoring

import "log"

// Logf is the module-wide diagnostic logger. It defaults to log.Printf but
// may be replaced by SetLogger.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil installs a no-op
// logger, which is the usual setting for tests.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// Warnf logs a recoverable condition, such as a per-column skip or a
// per-row fallback, with a uniform prefix so session logs are greppable.
func Warnf(format string, v ...interface{}) {
	Logf("warn: "+format, v...)
}
