package domain

import "time"

// Settings is the configuration threaded through constructors. It is
// populated once at startup from flags, BUNDLE_* environment variables and
// settings files.
type Settings struct {
	// Gemfile is an explicit manifest path. Empty means search upward from
	// the working directory.
	Gemfile string

	// Path is the bundle path. Empty means DefaultBundlePath.
	Path string

	// Engine and ABI name the runtime the default bundle path is keyed by.
	Engine string
	ABI    string

	// Jobs bounds install parallelism.
	Jobs int

	// Frozen forbids changing the lock file.
	Frozen bool

	// Without lists groups excluded from installation and activation.
	Without []string

	// DisableSharedGems isolates the activated environment from ambient gems.
	DisableSharedGems bool

	// CacheTTL bounds how long fetched index data is reused in memory.
	CacheTTL time.Duration

	// Retry is the number of extra attempts for network requests.
	Retry int

	// Verbose enables debug output.
	Verbose bool

	// JSON switches logs to JSON.
	JSON bool
}

// DefaultSettings returns the settings used when nothing is configured.
func DefaultSettings() Settings {
	return Settings{
		Engine:   "ruby",
		ABI:      "3.3.0",
		Jobs:     4,
		CacheTTL: 10 * time.Minute,
		Retry:    2,
	}
}

// Layout returns the on-disk layout the settings select.
func (s Settings) Layout() Layout {
	path := s.Path
	if path == "" {
		path = DefaultBundlePath(s.Engine, s.ABI)
	}
	return NewLayout(path)
}
