// Package config loads tasktrack settings from config.yaml, .env and the
// environment, in that order of increasing precedence.
package config

const (
	// DefaultBaseURL is the backend the original deployment listens on.
	DefaultBaseURL = "http://localhost:5000"
	// DefaultRequestTimeout bounds a single REST call.
	DefaultRequestTimeout = "15s"
	// DefaultSearchDebounce delays free-text search after the last keystroke.
	DefaultSearchDebounce = "300ms"
	// DefaultDisplayTimezone is the fixed offset dates are shown in.
	DefaultDisplayTimezone = "+08:00"
	// DefaultLogLevel is the minimum level written to the log file.
	DefaultLogLevel = "info"

	// ConfigFileName is the name of the config file in the config directory.
	ConfigFileName = "config.yaml"
	// AppDir names the per-application XDG subdirectory.
	AppDir = "tasktrack"

	// EnvPrefix prefixes every environment override.
	EnvPrefix = "TASKTRACK_"
)
