package process

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// JobConfig is one allow-listed command in the jobs registry.
// Args may carry {{.var}} placeholders rendered at instantiation.
type JobConfig struct {
	Name        string            `yaml:"name" json:"name" mapstructure:"name"`
	Command     string            `yaml:"command" json:"command" mapstructure:"command"`
	Args        []string          `yaml:"args" json:"args" mapstructure:"args"`
	Environment map[string]string `yaml:"env" json:"env" mapstructure:"env"`
	Description string            `yaml:"description" json:"description" mapstructure:"description"`
}

// ConfigFile represents the structure of jobs.yaml.
type ConfigFile struct {
	Jobs []JobConfig `yaml:"jobs" json:"jobs" mapstructure:"jobs"`
}

// LoadJobs reads a registry file (YAML or JSON) and returns the jobs by name.
// A missing file is an empty registry.
func LoadJobs(path string) (map[string]JobConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]JobConfig{}, nil
		}
		return nil, fmt.Errorf("failed to read jobs config: %w", err)
	}
	return ParseJobs(data, strings.ToLower(filepath.Ext(path)) == ".json")
}

// ParseJobs decodes a registry document. Scalars are weakly typed so that
// `args: [--retries, 3]` yields string arguments.
func ParseJobs(data []byte, isJSON bool) (map[string]JobConfig, error) {
	var raw map[string]any
	if isJSON {
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("failed to parse jobs.json: %w", err)
		}
	} else if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse jobs.yaml: %w", err)
	}

	var cfg ConfigFile
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &cfg,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(raw); err != nil {
		return nil, fmt.Errorf("invalid jobs config: %w", err)
	}

	jobs := make(map[string]JobConfig)
	for _, job := range cfg.Jobs {
		if job.Name == "" {
			continue
		}
		if job.Command == "" {
			return nil, fmt.Errorf("job '%s' has no command", job.Name)
		}
		jobs[job.Name] = job
	}
	return jobs, nil
}
