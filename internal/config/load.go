package config

import (
	"fmt"
	"os"

	"github.com/puttle-proxy/puttle/internal/pathutil"
)

// LoadFile reads and parses the config file at path. Unlike the layered
// defaults, a config file named explicitly via -c/--config-file must exist;
// a missing file is a hard error rather than something to fall back from.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(pathutil.ExpandHome(path))
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	cfg, err := ParseFile(data)
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// Merge layers file on top of base, then flags on top of that. Zero-value
// scalar fields in an overlay leave the underlying value untouched;
// Proxies accumulates across all three layers instead of replacing.
func Merge(base, file, flags *Config) *Config {
	out := *base
	for _, layer := range []*Config{file, flags} {
		if layer == nil {
			continue
		}
		if layer.NumThreads != 0 {
			out.NumThreads = layer.NumThreads
		}
		if layer.ListenPort != 0 {
			out.ListenPort = layer.ListenPort
		}
		if layer.Verbosity != "" {
			out.Verbosity = layer.Verbosity
		}
		if layer.DialTTL != 0 {
			out.DialTTL = layer.DialTTL
		}
		out.Proxies = append(out.Proxies, layer.Proxies...)
	}
	return &out
}
