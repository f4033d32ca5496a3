// Package config loads the YAML project configuration that tells the
// build-map subsystem where to look for source, how to invoke the
// external build tool, and which paths to ignore.
package config

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// SearchRoot names one directory module discovery crawls or probes,
// in priority order: lower Index wins when two roots resolve the same
// qualifier (see modpath.Compare).
type SearchRoot struct {
	Path  string `yaml:"path"`
	Index int    `yaml:"-"`
}

// BuildTool describes how to invoke the external build tool.
type BuildTool struct {
	Command         string `yaml:"command"`
	Mode            string `yaml:"mode,omitempty"`
	IsolationPrefix string `yaml:"isolation_prefix,omitempty"`
}

// Config is the root project configuration.
type Config struct {
	SearchRoots  []SearchRoot `yaml:"search_roots"`
	ArtifactRoot string       `yaml:"artifact_root"`
	BuildTool    BuildTool    `yaml:"build_tool"`
	Excludes     []string     `yaml:"excludes,omitempty"`
	LogTailLines int          `yaml:"log_tail_lines,omitempty"`
}

// Load reads and validates a project configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	for i := range cfg.SearchRoots {
		cfg.SearchRoots[i].Index = i
	}

	if cfg.LogTailLines == 0 {
		cfg.LogTailLines = 200
	}

	return &cfg, nil
}

// CompiledExcludes compiles the Excludes patterns for use by the
// modpath/overlay/watch packages, which work with *regexp.Regexp rather
// than raw strings.
func (c *Config) CompiledExcludes() ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(c.Excludes))
	for _, pattern := range c.Excludes {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid exclude pattern %q: %w", pattern, err)
		}
		out = append(out, re)
	}
	return out, nil
}

func (c *Config) validate() error {
	if len(c.SearchRoots) == 0 {
		return fmt.Errorf("config missing required field: search_roots")
	}
	if c.ArtifactRoot == "" {
		return fmt.Errorf("config missing required field: artifact_root")
	}
	if c.BuildTool.Command == "" {
		return fmt.Errorf("config missing required field: build_tool.command")
	}
	for i, root := range c.SearchRoots {
		if root.Path == "" {
			return fmt.Errorf("config search_roots[%d] has an empty path", i)
		}
	}
	return nil
}
