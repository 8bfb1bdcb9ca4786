// Package config loads puttle's settings from CLI flags and an optional
// key=value config file, merging the two into one effective configuration.
package config

import "github.com/puttle-proxy/puttle/internal/puttleproxy"

// Config is the effective, merged configuration for one puttle process.
type Config struct {
	NumThreads int
	ListenPort int
	Proxies    []string
	Verbosity  string
	DialTTL    int
}

// Defaults returns the baseline configuration applied before the config
// file and CLI flags are layered on top.
func Defaults() *Config {
	return &Config{
		NumThreads: 2,
		ListenPort: 8888,
		Verbosity:  "INFO",
		DialTTL:    puttleproxy.DefaultDialTTL,
	}
}
