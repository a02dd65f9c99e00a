package main

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"

	"gopkg.in/yaml.v2"
)

const ConfigVersion = 1

func isJSONFile(filepath string) bool {
	return len(filepath) >= 5 && filepath[len(filepath)-5:] == ".json"
}

func isYAMLFile(filepath string) bool {
	return (len(filepath) >= 5 && filepath[len(filepath)-5:] == ".yaml") ||
		(len(filepath) >= 4 && filepath[len(filepath)-4:] == ".yml")
}

func loadFromJSON(configFilepath string, dst any) error {
	file, err := os.Open(configFilepath)
	if err != nil {
		return fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()
	return json.NewDecoder(file).Decode(dst)
}

func loadFromYAML(configFilepath string, dst any) error {
	file, err := os.Open(configFilepath)
	if err != nil {
		return fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	return yaml.NewDecoder(file).Decode(dst)
}

func hashFileSha256(filePath string) (string, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return fmt.Sprintf("%x", h.Sum(nil)), nil
}

// CacheConfig configures a whole-object caching wrapper around a store.
type CacheConfig struct {
	MaxSizeBytes int64 `json:"max_size_bytes" yaml:"max_size_bytes"`
}

// SplitConfig configures a splitting wrapper around a store.
type SplitConfig struct {
	RequestSizeBytes      int64 `json:"request_size_bytes" yaml:"request_size_bytes"`
	MaxConcurrentRequests int   `json:"max_concurrent_requests" yaml:"max_concurrent_requests"`
}

// StoreConfig describes one registry entry: a URL prefix, the backend kind
// to construct for it, and which wrappers (cache, split, trace) to layer on
// top, innermost-out: the backend is built first, then cache, then split,
// then trace, so a traced call sees the effect of splitting and caching.
type StoreConfig struct {
	Prefix  string            `json:"prefix" yaml:"prefix"`
	Kind    string            `json:"kind" yaml:"kind"` // "memory", "fs", "http"
	Options map[string]string `json:"options" yaml:"options"`
	Cache   *CacheConfig      `json:"cache" yaml:"cache"`
	Split   *SplitConfig      `json:"split" yaml:"split"`
	Trace   bool              `json:"trace" yaml:"trace"`
}

// Config is the top-level registry configuration loaded by the serve, cat,
// range, ls, and trace-summary commands: a listen address (serve only) and
// the set of stores to register.
type Config struct {
	originalFilepath string
	hashOfConfigFile string
	Version          *uint64       `json:"version" yaml:"version"`
	Listen           string        `json:"listen" yaml:"listen"`
	Stores           []StoreConfig `json:"stores" yaml:"stores"`
}

func LoadConfig(configFilepath string) (*Config, error) {
	var config Config
	if isJSONFile(configFilepath) {
		if err := loadFromJSON(configFilepath, &config); err != nil {
			return nil, err
		}
	} else if isYAMLFile(configFilepath) {
		if err := loadFromYAML(configFilepath, &config); err != nil {
			return nil, err
		}
	} else {
		return nil, fmt.Errorf("config file %q must be JSON or YAML", configFilepath)
	}
	config.originalFilepath = configFilepath
	sum, err := hashFileSha256(configFilepath)
	if err != nil {
		return nil, fmt.Errorf("config file %q: %s", configFilepath, err.Error())
	}
	config.hashOfConfigFile = sum
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config file %q: %w", configFilepath, err)
	}
	return &config, nil
}

func (c *Config) ConfigFilepath() string {
	return c.originalFilepath
}

func (c *Config) HashOfConfigFile() string {
	return c.hashOfConfigFile
}

func (c *Config) IsSameHash(other *Config) bool {
	return c.hashOfConfigFile == other.hashOfConfigFile
}

func (c *Config) IsSameHashAsFile(filepath string) bool {
	sum, err := hashFileSha256(filepath)
	if err != nil {
		return false
	}
	return c.hashOfConfigFile == sum
}

var supportedKinds = map[string]bool{
	"memory": true,
	"fs":     true,
	"http":   true,
}

// Validate checks the config for errors.
func (c *Config) Validate() error {
	if c.Version == nil {
		return fmt.Errorf("version must be set")
	}
	if *c.Version != ConfigVersion {
		return fmt.Errorf("version must be %d", ConfigVersion)
	}
	if len(c.Stores) == 0 {
		return fmt.Errorf("stores must not be empty")
	}
	seenPrefixes := make(map[string][]int)
	for i, s := range c.Stores {
		if s.Prefix == "" {
			return fmt.Errorf("stores[%d].prefix must be set", i)
		}
		seenPrefixes[s.Prefix] = append(seenPrefixes[s.Prefix], i)
		if !supportedKinds[s.Kind] {
			return fmt.Errorf("stores[%d].kind %q is not one of memory, fs, http", i, s.Kind)
		}
		switch s.Kind {
		case "fs":
			if s.Options["root"] == "" {
				return fmt.Errorf("stores[%d]: kind fs requires options.root", i)
			}
		case "http":
			if s.Options["base_url"] == "" {
				return fmt.Errorf("stores[%d]: kind http requires options.base_url", i)
			}
		}
		if s.Cache != nil && s.Cache.MaxSizeBytes < 0 {
			return fmt.Errorf("stores[%d].cache.max_size_bytes must be >= 0", i)
		}
		if s.Split != nil && s.Split.RequestSizeBytes < 0 {
			return fmt.Errorf("stores[%d].split.request_size_bytes must be >= 0", i)
		}
	}
	duplicates := make([]string, 0)
	for prefix, idxs := range seenPrefixes {
		if len(idxs) > 1 {
			duplicates = append(duplicates, fmt.Sprintf("%q (stores%v)", prefix, idxs))
		}
	}
	if len(duplicates) > 0 {
		sort.Strings(duplicates)
		return fmt.Errorf("duplicate store prefixes: %v", duplicates)
	}
	return nil
}
