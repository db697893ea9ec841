package reddit

import (
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

var defaultCommunities = []string{"ucla", "uclabruins", "uclahousing"}

var validListings = map[string]bool{
	"new":    true,
	"hot":    true,
	"rising": true,
	"top":    true,
}

// DefaultSources is used when no sources file exists
func DefaultSources() *SourcesConfig {
	config := &SourcesConfig{}
	for _, name := range defaultCommunities {
		config.Communities = append(config.Communities, Community{Name: name})
	}
	applyDefaults(config)
	return config
}

// LoadSources reads the sources YAML file. A missing file yields the defaults.
func LoadSources(path string) (*SourcesConfig, error) {
	if path == "" {
		return DefaultSources(), nil
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		slog.Debug("Sources file not found, using defaults", "path", path)
		return DefaultSources(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var config SourcesConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if len(config.Communities) == 0 {
		for _, name := range defaultCommunities {
			config.Communities = append(config.Communities, Community{Name: name})
		}
	}
	applyDefaults(&config)

	if err := validateSources(&config); err != nil {
		return nil, fmt.Errorf("invalid sources %s: %w", path, err)
	}

	slog.Debug("Sources loaded", "path", path, "communities", len(config.EnabledCommunities()))
	return &config, nil
}

func applyDefaults(config *SourcesConfig) {
	for i := range config.Communities {
		if len(config.Communities[i].Listings) == 0 {
			config.Communities[i].Listings = []string{"new", "hot", "rising"}
		}
	}

	if config.Settings.CommentsPerPost == 0 {
		config.Settings.CommentsPerPost = 5
	}
	if config.Settings.ExtractTimeout == 0 {
		config.Settings.ExtractTimeout = 10
	}
	if config.Settings.ExtractMaxChars == 0 {
		config.Settings.ExtractMaxChars = 4000
	}
}

func validateSources(config *SourcesConfig) error {
	for i, community := range config.Communities {
		if community.Name == "" {
			return fmt.Errorf("community name is required at index %d", i)
		}
		for _, l := range community.Listings {
			if !validListings[l] {
				return fmt.Errorf("invalid listing %q for community %s", l, community.Name)
			}
		}
	}

	if len(config.EnabledCommunities()) == 0 {
		return fmt.Errorf("at least one enabled community is required")
	}

	nonNegativeFields := map[string]int{
		"comments per post": config.Settings.CommentsPerPost,
		"extract timeout":   config.Settings.ExtractTimeout,
		"extract max chars": config.Settings.ExtractMaxChars,
	}

	for fieldName, fieldValue := range nonNegativeFields {
		if fieldValue < 0 {
			return fmt.Errorf("%s must be non-negative", fieldName)
		}
	}

	return nil
}

func (c *SourcesConfig) EnabledCommunities() []Community {
	enabled := make([]Community, 0, len(c.Communities))
	for _, community := range c.Communities {
		if !community.Disabled {
			enabled = append(enabled, community)
		}
	}
	return enabled
}
