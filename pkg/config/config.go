// Package config holds the settings of a fixture refresh run.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/icse/api-cache/pkg/client"
	"github.com/icse/api-cache/pkg/iam"
	"github.com/icse/api-cache/pkg/resources"
	"gopkg.in/yaml.v3"
)

// APIKeyEnv is the environment variable holding the IBM Cloud API key.
const APIKeyEnv = "IBMCLOUD_API_KEY"

// DefaultUserAgent identifies the tool to IBM Cloud.
const DefaultUserAgent = "cache-api-calls/1.0"

// Config holds all configuration (defaults, config file, CLI flags).
// The API key is deliberately not part of it: it is resolved once at
// startup and never written anywhere.
type Config struct {
	TokenURL    string            `yaml:"token_url"`
	OutputDir   string            `yaml:"output_dir"`
	Region      string            `yaml:"region"`
	Zone        string            `yaml:"zone"`
	UserAgent   string            `yaml:"user_agent"`
	Timeout     time.Duration     `yaml:"timeout"`
	LogLevel    string            `yaml:"log_level"`
	Pretty      bool              `yaml:"pretty"`
	MetricsFile string            `yaml:"metrics_file"`
	KeepGoing   bool              `yaml:"keep_going"`
	Resources   map[string]string `yaml:"resources"`
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() Config {
	return Config{
		TokenURL:  iam.DefaultTokenURL,
		OutputDir: ".",
		Region:    resources.DefaultRegion,
		Zone:      resources.DefaultZone,
		UserAgent: DefaultUserAgent,
		LogLevel:  "info",
	}
}

// LoadFile overlays the YAML file at path onto c. Only keys present in the
// file change c.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	var file Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parsing %s: %w", path, err)
	}

	c.merge(file)
	return c.Validate()
}

func (c *Config) merge(file Config) {
	if file.TokenURL != "" {
		c.TokenURL = file.TokenURL
	}
	if file.OutputDir != "" {
		c.OutputDir = file.OutputDir
	}
	if file.Region != "" {
		c.Region = file.Region
	}
	if file.Zone != "" {
		c.Zone = file.Zone
	}
	if file.UserAgent != "" {
		c.UserAgent = file.UserAgent
	}
	if file.Timeout != 0 {
		c.Timeout = file.Timeout
	}
	if file.LogLevel != "" {
		c.LogLevel = file.LogLevel
	}
	if file.MetricsFile != "" {
		c.MetricsFile = file.MetricsFile
	}
	c.Pretty = c.Pretty || file.Pretty
	c.KeepGoing = c.KeepGoing || file.KeepGoing

	if len(file.Resources) > 0 && c.Resources == nil {
		c.Resources = make(map[string]string, len(file.Resources))
	}
	for name, u := range file.Resources {
		c.Resources[name] = u
	}
}

// Validate checks the configuration for values no run can succeed with.
func (c *Config) Validate() error {
	if c.TokenURL == "" {
		return fmt.Errorf("token_url is required")
	}
	if c.UserAgent == "" {
		return fmt.Errorf("user_agent is required")
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must be >= 0 (got %s)", c.Timeout)
	}
	for name := range c.Resources {
		if !resources.IsKnown(name) {
			return fmt.Errorf("unknown resource %q (known: %s)", name, strings.Join(resources.Names(), ", "))
		}
	}
	return nil
}

// Catalog returns the resource catalog with configured URL overrides applied.
func (c *Config) Catalog() ([]resources.Resource, error) {
	return resources.WithOverrides(c.Resources)
}

// ResolveAPIKey returns the API key from the environment, falling back to
// the first positional argument.
func ResolveAPIKey(getenv func(string) string, args []string) (string, error) {
	if getenv != nil {
		if key := getenv(APIKeyEnv); key != "" {
			return key, nil
		}
	}
	if len(args) > 0 && args[0] != "" {
		return args[0], nil
	}
	return "", client.ErrMissingAPIKey
}
