package config

import (
	"bufio"
	"bytes"
	"fmt"
	"strconv"
	"strings"
)

// knownKeys is the set of recognized config-file keys, named after the
// long form of their corresponding CLI flag.
var knownKeys = map[string]bool{
	"num-threads": true,
	"listen-port": true,
	"proxy":       true,
	"verbosity":   true,
	"dial-ttl":    true,
}

// ParseFile parses the key=value config-file format: one `key=value` pair
// per line, blank lines and lines starting with `#` ignored, surrounding
// whitespace around both key and value trimmed. The `proxy` key may repeat;
// every other key's last occurrence wins. Unknown keys are a hard error,
// matching the strict-fields discipline applied to the rest of the config
// surface.
func ParseFile(data []byte) (*Config, error) {
	cfg := &Config{}
	scanner := bufio.NewScanner(bytes.NewReader(data))
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		idx := strings.IndexByte(line, '=')
		if idx < 0 {
			return nil, fmt.Errorf("config: line %d: missing '=': %q", lineNo, line)
		}
		key := strings.TrimSpace(line[:idx])
		value := strings.TrimSpace(line[idx+1:])
		if !knownKeys[key] {
			return nil, fmt.Errorf("config: line %d: unknown key %q", lineNo, key)
		}

		switch key {
		case "num-threads":
			n, err := strconv.Atoi(value)
			if err != nil {
				return nil, fmt.Errorf("config: line %d: num-threads: %w", lineNo, err)
			}
			cfg.NumThreads = n
		case "listen-port":
			n, err := strconv.Atoi(value)
			if err != nil {
				return nil, fmt.Errorf("config: line %d: listen-port: %w", lineNo, err)
			}
			cfg.ListenPort = n
		case "proxy":
			cfg.Proxies = append(cfg.Proxies, value)
		case "verbosity":
			cfg.Verbosity = value
		case "dial-ttl":
			n, err := strconv.Atoi(value)
			if err != nil {
				return nil, fmt.Errorf("config: line %d: dial-ttl: %w", lineNo, err)
			}
			cfg.DialTTL = n
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("config: scan: %w", err)
	}
	return cfg, nil
}
