package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const (
	// JSONConfigFileName is the primary configuration file.
	JSONConfigFileName = "vorma.json"

	// YAMLConfigFileName is the alternative configuration file, used when
	// no vorma.json is present.
	YAMLConfigFileName = "vorma.yml"

	// DefaultPort is the default development server port.
	DefaultPort = 3000

	// DefaultHost is the default development server host.
	DefaultHost = "localhost"

	// DefaultOutput is the default build output directory.
	DefaultOutput = "dist"

	// DefaultPublicPathPrefix is where built assets are served from.
	DefaultPublicPathPrefix = "/public/"
)

// Config is the project configuration loaded from vorma.json or vorma.yml.
type Config struct {
	// Name is the project name.
	Name string `json:"name,omitempty" yaml:"name,omitempty"`

	// Version is the project version.
	Version string `json:"version,omitempty" yaml:"version,omitempty"`

	// Dev contains development server configuration.
	Dev DevConfig `json:"dev,omitempty" yaml:"dev,omitempty"`

	// Build contains production build configuration.
	Build BuildConfig `json:"build,omitempty" yaml:"build,omitempty"`

	// Deploy contains asset deployment configuration.
	Deploy DeployConfig `json:"deploy,omitempty" yaml:"deploy,omitempty"`

	// configPath stores where the config was loaded from.
	configPath string
}

// DevConfig configures the development server.
type DevConfig struct {
	// Host to bind, default localhost.
	Host string `json:"host,omitempty" yaml:"host,omitempty"`

	// Port to listen on, default 3000.
	Port int `json:"port,omitempty" yaml:"port,omitempty"`

	// WatchDirs are the directories the watcher monitors. Default: app.
	WatchDirs []string `json:"watchDirs,omitempty" yaml:"watchDirs,omitempty"`

	// PayloadDir holds the JSON route payload fixtures the dev server
	// serves to the navigation runtime.
	PayloadDir string `json:"payloadDir,omitempty" yaml:"payloadDir,omitempty"`

	// AssetDir holds the static assets served under the dev origin.
	AssetDir string `json:"assetDir,omitempty" yaml:"assetDir,omitempty"`
}

// BuildConfig configures the production build output.
type BuildConfig struct {
	// Output is the build output directory, default dist.
	Output string `json:"output,omitempty" yaml:"output,omitempty"`

	// PublicPathPrefix is where built assets are served from in
	// production, default /public/.
	PublicPathPrefix string `json:"publicPathPrefix,omitempty" yaml:"publicPathPrefix,omitempty"`
}

// DeployConfig configures the S3 asset sync.
type DeployConfig struct {
	// Bucket is the target S3 bucket.
	Bucket string `json:"bucket,omitempty" yaml:"bucket,omitempty"`

	// Prefix is the key prefix within the bucket.
	Prefix string `json:"prefix,omitempty" yaml:"prefix,omitempty"`

	// Region overrides the SDK's resolved region.
	Region string `json:"region,omitempty" yaml:"region,omitempty"`
}

// Default returns a configuration with all defaults applied.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Dev.Host == "" {
		c.Dev.Host = DefaultHost
	}
	if c.Dev.Port == 0 {
		c.Dev.Port = DefaultPort
	}
	if len(c.Dev.WatchDirs) == 0 {
		c.Dev.WatchDirs = []string{"app"}
	}
	if c.Dev.PayloadDir == "" {
		c.Dev.PayloadDir = "app/payloads"
	}
	if c.Dev.AssetDir == "" {
		c.Dev.AssetDir = "app/assets"
	}
	if c.Build.Output == "" {
		c.Build.Output = DefaultOutput
	}
	if c.Build.PublicPathPrefix == "" {
		c.Build.PublicPathPrefix = DefaultPublicPathPrefix
	}
}

// Path returns where the config was loaded from, empty for defaults.
func (c *Config) Path() string {
	return c.configPath
}

// LoadFromWorkingDir loads vorma.json (or vorma.yml) from the current
// directory, falling back to defaults when neither exists.
func LoadFromWorkingDir() (*Config, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	return LoadFromDir(wd)
}

// LoadFromDir loads the configuration from a specific directory.
func LoadFromDir(dir string) (*Config, error) {
	jsonPath := filepath.Join(dir, JSONConfigFileName)
	if _, err := os.Stat(jsonPath); err == nil {
		return loadFile(jsonPath, json.Unmarshal)
	}
	yamlPath := filepath.Join(dir, YAMLConfigFileName)
	if _, err := os.Stat(yamlPath); err == nil {
		return loadFile(yamlPath, yaml.Unmarshal)
	}
	return Default(), nil
}

func loadFile(path string, unmarshal func([]byte, any) error) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	cfg := &Config{}
	if err := unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.applyDefaults()
	cfg.configPath = path
	return cfg, nil
}
