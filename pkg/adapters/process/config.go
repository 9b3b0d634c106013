package process

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ProcessConfig is the command that delivers notifications of one channel.
type ProcessConfig struct {
	Channel     string            `yaml:"channel" json:"channel"`
	Command     string            `yaml:"command" json:"command"`
	Args        []string          `yaml:"args" json:"args"`
	Environment map[string]string `yaml:"env" json:"env"`
	Description string            `yaml:"description" json:"description"`
}

// ConfigFile represents the structure of a channels file.
type ConfigFile struct {
	Channels []ProcessConfig `yaml:"channels" json:"channels"`
}

// LoadChannels reads a configuration file (YAML or JSON) and returns the commands keyed by channel.
func LoadChannels(path string) (map[string]ProcessConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read channels config: %w", err)
	}

	var cfg ConfigFile
	ext := strings.ToLower(filepath.Ext(path))

	if ext == ".json" {
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	} else {
		// Default to YAML
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	}

	channels := make(map[string]ProcessConfig)
	for _, c := range cfg.Channels {
		if c.Channel == "" || c.Command == "" {
			return nil, fmt.Errorf("%s: every channel needs a channel name and a command", path)
		}
		channels[c.Channel] = c
	}

	return channels, nil
}
