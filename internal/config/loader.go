package config

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const maxConfigFileSize = 1024 * 1024 // 1MB

// sections are the known top-level config keys, used to map env vars.
var sections = []string{
	"server", "logging", "fetcher", "chunker", "embedding",
	"vectorstore", "cache", "ratelimit", "search",
}

// subsections are nested keys that need a second dot when mapping env vars.
var subsections = map[string][]string{
	"vectorstore": {"chromem", "qdrant"},
}

// Load loads configuration from an optional YAML file, then overrides with
// environment variables.
//
// Precedence (highest to lowest):
//  1. Environment variables (SERVER_PORT, CACHE_TTL, VECTORSTORE_QDRANT_HOST, ...)
//  2. YAML config file
//  3. Defaults
//
// Environment variables use underscore separators and are uppercased:
//
//	SERVER_PORT                      -> server.port
//	FETCHER_MAX_REDIRECTS            -> fetcher.max_redirects
//	VECTORSTORE_QDRANT_COLLECTION_NAME -> vectorstore.qdrant.collection_name
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if configPath != "" {
		content, err := readConfigFile(configPath)
		if err != nil {
			return nil, err
		}
		if content != nil {
			if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("failed to parse config file %s: %w", configPath, err)
			}
		}
	}

	if err := k.Load(env.Provider("", ".", transformEnvKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// readConfigFile reads the file if it exists. A missing file is not an error;
// defaults and environment variables still apply.
func readConfigFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if info.Size() > maxConfigFileSize {
		return nil, fmt.Errorf("config file %s exceeds %d bytes", path, maxConfigFileSize)
	}

	content, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return content, nil
}

// transformEnvKey maps an environment variable name to a koanf key path.
// Unrecognized variables map to "" and are discarded by koanf.
func transformEnvKey(s string) string {
	lower := strings.ToLower(s)

	for _, section := range sections {
		prefix := section + "_"
		if !strings.HasPrefix(lower, prefix) {
			continue
		}
		rest := strings.TrimPrefix(lower, prefix)
		if rest == "" {
			return ""
		}
		for _, sub := range subsections[section] {
			subPrefix := sub + "_"
			if strings.HasPrefix(rest, subPrefix) {
				return section + "." + sub + "." + strings.TrimPrefix(rest, subPrefix)
			}
		}
		return section + "." + rest
	}
	return ""
}
