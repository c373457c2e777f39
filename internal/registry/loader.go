package registry

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// registryFile is the top-level structure of the services YAML file.
type registryFile struct {
	Services []serviceSpec `yaml:"services"`
}

type serviceSpec struct {
	Name       string      `yaml:"name"`
	BaseURL    string      `yaml:"base_url"`
	HealthPath string      `yaml:"health_path"`
	Timeout    string      `yaml:"timeout,omitempty"` // Go duration string, ex: "10s"
	Routes     []RouteRule `yaml:"routes"`
}

// Loader reads service entries from the registry YAML file.
type Loader struct {
	filePath       string
	defaultTimeout time.Duration
}

// NewLoader creates a registry loader. defaultTimeout is applied to
// services that declare none.
func NewLoader(filePath string, defaultTimeout time.Duration) *Loader {
	return &Loader{
		filePath:       filePath,
		defaultTimeout: defaultTimeout,
	}
}

// Load reads and parses the registry file into entries. Validation of
// routes and URLs happens when the entries are swapped into a Registry.
func (l *Loader) Load() ([]Entry, error) {
	data, err := os.ReadFile(l.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read registry file: %w", err)
	}
	return l.Parse(data)
}

// Parse decodes raw YAML into entries.
func (l *Loader) Parse(data []byte) ([]Entry, error) {
	var file registryFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse registry yaml: %w", err)
	}
	if len(file.Services) == 0 {
		return nil, fmt.Errorf("registry file declares no services")
	}

	entries := make([]Entry, 0, len(file.Services))
	for _, spec := range file.Services {
		timeout := l.defaultTimeout
		if spec.Timeout != "" {
			d, err := time.ParseDuration(spec.Timeout)
			if err != nil {
				return nil, fmt.Errorf("service %q has invalid timeout %q: %w", spec.Name, spec.Timeout, err)
			}
			timeout = d
		}
		entries = append(entries, Entry{
			Name:       spec.Name,
			BaseURL:    spec.BaseURL,
			Routes:     spec.Routes,
			Timeout:    timeout,
			HealthPath: spec.HealthPath,
		})
	}
	return entries, nil
}
