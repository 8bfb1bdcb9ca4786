package config

import (
	"fmt"
	"strings"

	"github.com/puttle-proxy/puttle/internal/puttleproxy"
)

// validVerbosity is the set of -v/--verbosity values accepted by the
// config file and CLI flag, matching clog's nine-level vocabulary.
var validVerbosity = map[string]bool{
	"EMERG": true, "FATAL": true, "ALERT": true, "CRIT": true,
	"ERROR": true, "WARN": true, "NOTICE": true, "INFO": true, "DEBUG": true,
}

// Validate checks that cfg is complete and internally consistent, checking:
//   - NumThreads is positive
//   - ListenPort is in the valid TCP port range
//   - at least one upstream proxy is configured
//   - every upstream proxy URL parses
//   - Verbosity names a recognized log level
//   - DialTTL is a valid IP TTL
//
// Returns nil if cfg is valid, or an error naming the first invalid field.
func Validate(cfg *Config) error {
	if cfg.NumThreads < 1 {
		return fmt.Errorf("config: num-threads must be >= 1, got %d", cfg.NumThreads)
	}
	if cfg.ListenPort < 1 || cfg.ListenPort > 65535 {
		return fmt.Errorf("config: listen-port out of range: %d", cfg.ListenPort)
	}
	if cfg.DialTTL < 1 || cfg.DialTTL > 255 {
		return fmt.Errorf("config: dial-ttl out of range: %d", cfg.DialTTL)
	}
	if len(cfg.Proxies) == 0 {
		return fmt.Errorf("config: at least one -p/--proxy upstream is required")
	}
	for _, raw := range cfg.Proxies {
		if _, err := puttleproxy.ParseUpstream(raw); err != nil {
			return fmt.Errorf("config: proxy %q: %w", raw, err)
		}
	}
	if cfg.Verbosity != "" && !validVerbosity[strings.ToUpper(cfg.Verbosity)] {
		return fmt.Errorf("config: unrecognized verbosity %q", cfg.Verbosity)
	}
	return nil
}
