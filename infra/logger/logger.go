package logger

import corelogger "github.com/kilianp07/battsim/core/logger"

// Logger mirrors the core logger interface.
type Logger = corelogger.Logger

// NopLogger implements Logger with no-op methods.
type NopLogger = corelogger.Nop

// New returns a Logger for the given component using the options set by
// Configure. Without Configure the format follows the APP_ENV variable.
func New(component string) Logger {
	return NewZerologLogger(component)
}
