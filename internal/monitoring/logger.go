// Package monitoring holds the process-wide diagnostic logger used by the
// simulation, video and chart pipelines.
package monitoring

import "log"

// Logf is the package-level diagnostic logger. It defaults to log.Printf but may
// be replaced by SetLogger. Tests or production code can redirect or mute it.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// Infof logs a progress message with an [INFO] prefix.
func Infof(format string, v ...interface{}) {
	Logf("[INFO] "+format, v...)
}

// Warnf logs a recoverable problem with a [WARNING] prefix. Skipped frames and
// boxes are reported through here as well as in the run report.
func Warnf(format string, v ...interface{}) {
	Logf("[WARNING] "+format, v...)
}

// Errorf logs a failure that ends the current operation.
func Errorf(format string, v ...interface{}) {
	Logf("[ERROR] "+format, v...)
}
