package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/vibesense/phmwatch/internal/errors"
	"gopkg.in/yaml.v3"
)

// durationKeys are the config keys holding a time.Duration. yaml.v3 writes
// durations as nanosecond integers; they are rewritten as "10s" style strings.
var durationKeys = map[string]bool{
	"handshake_timeout": true,
	"base_delay":        true,
	"max_delay":         true,
	"timeout":           true,
	"interval":          true,
}

const fileHeader = "# phmwatch configuration\n# Durations use Go syntax: 500ms, 10s, 1m.\n\n"

// Marshal renders cfg as YAML with readable durations.
func Marshal(cfg *Config) ([]byte, error) {
	var root yaml.Node
	if err := root.Encode(cfg); err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	humanizeDurations(&root)

	var buf strings.Builder
	buf.WriteString(fileHeader)
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)
	if err := encoder.Encode(&root); err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	encoder.Close()

	return []byte(buf.String()), nil
}

// Save writes cfg to path, creating parent directories. An existing file is
// only replaced when overwrite is set.
func Save(path string, cfg *Config, overwrite bool) error {
	if _, err := os.Stat(path); err == nil && !overwrite {
		return errors.New(errors.ErrConfig,
			"Config file already exists: "+path,
			"Use --force to overwrite it")
	}

	data, err := Marshal(cfg)
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig, "Failed to render config", "")
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return errors.WrapWithCode(err, errors.ErrConfig,
				"Cannot create config directory "+dir,
				"Check directory permissions")
		}
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			"Failed to write config file "+path,
			"Check file permissions")
	}
	return nil
}

// humanizeDurations walks mapping nodes and rewrites duration values.
func humanizeDurations(node *yaml.Node) {
	switch node.Kind {
	case yaml.DocumentNode, yaml.SequenceNode:
		for _, child := range node.Content {
			humanizeDurations(child)
		}
	case yaml.MappingNode:
		for i := 0; i < len(node.Content)-1; i += 2 {
			keyNode := node.Content[i]
			valueNode := node.Content[i+1]

			if valueNode.Kind == yaml.ScalarNode && durationKeys[keyNode.Value] {
				if ns, err := strconv.ParseInt(valueNode.Value, 10, 64); err == nil {
					valueNode.Value = time.Duration(ns).String()
					valueNode.Tag = "!!str"
				}
				continue
			}
			humanizeDurations(valueNode)
		}
	}
}
