// Package config provides file-based configuration for the journal monitor.
// Both XML and YAML files are accepted; the format follows the file extension.
package config

import (
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/journal-monitor/backend/internal/errors"
	"github.com/journal-monitor/backend/internal/parser"
	"github.com/journal-monitor/backend/internal/status"
)

// AppConfig represents the root configuration structure
type AppConfig struct {
	XMLName xml.Name `xml:"JournalMonitor" yaml:"-"`

	// Server configuration
	Server ServerConfig `xml:"Server" yaml:"server"`

	// Storage configuration
	Storage StorageConfig `xml:"Storage" yaml:"storage"`

	// Journal monitor tunables
	Monitor MonitorConfig `xml:"Monitor" yaml:"monitor"`

	// Advanced options
	Advanced AdvancedConfig `xml:"Advanced" yaml:"advanced"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Port         int    `xml:"Port" yaml:"port"`
	BindAddress  string `xml:"BindAddress" yaml:"bindAddress"`
	EnableCORS   bool   `xml:"EnableCORS" yaml:"enableCORS"`
	AllowOrigins string `xml:"AllowOrigins" yaml:"allowOrigins"`
	ReadTimeout  int    `xml:"ReadTimeoutSeconds" yaml:"readTimeoutSeconds"`
	WriteTimeout int    `xml:"WriteTimeoutSeconds" yaml:"writeTimeoutSeconds"`
	IdleTimeout  int    `xml:"IdleTimeoutSeconds" yaml:"idleTimeoutSeconds"`
	BodyLimit    string `xml:"BodyLimit" yaml:"bodyLimit"`
}

// StorageConfig contains file storage settings
type StorageConfig struct {
	DataDirectory     string `xml:"DataDirectory" yaml:"dataDirectory"`
	ArchiveDirectory  string `xml:"ArchiveDirectory" yaml:"archiveDirectory"`
	TempDirectory     string `xml:"TempDirectory" yaml:"tempDirectory"`
	JournalDirectory  string `xml:"JournalDirectory" yaml:"journalDirectory"`
	EnablePersistence bool   `xml:"EnablePersistence" yaml:"enablePersistence"`
}

// MonitorConfig contains the journal and status polling tunables
type MonitorConfig struct {
	PollIntervalMs         int     `xml:"PollIntervalMs" yaml:"pollIntervalMs"`
	MaxSessions            int     `xml:"MaxSessions" yaml:"maxSessions"`
	SessionTimeoutMinutes  int     `xml:"SessionTimeoutMinutes" yaml:"sessionTimeoutMinutes"`
	CleanupIntervalMinutes int     `xml:"CleanupIntervalMinutes" yaml:"cleanupIntervalMinutes"`
	FuelEpsilon            float64 `xml:"FuelEpsilon" yaml:"fuelEpsilon"`
	ReservoirEpsilon       float64 `xml:"ReservoirEpsilon" yaml:"reservoirEpsilon"`
	AssociatedRetryWaitMs  int     `xml:"AssociatedRetryWaitMs" yaml:"associatedRetryWaitMs"`
	AssociatedRetryCount   int     `xml:"AssociatedRetryCount" yaml:"associatedRetryCount"`
	SkipOverallStatus      bool    `xml:"SkipOverallStatus" yaml:"skipOverallStatus"`
}

// AdvancedConfig contains advanced/tuning options
type AdvancedConfig struct {
	LogLevel             string `xml:"LogLevel" yaml:"logLevel"`
	LogFormat            string `xml:"LogFormat" yaml:"logFormat"`
	EnableRequestLogging bool   `xml:"EnableRequestLogging" yaml:"enableRequestLogging"`
	RequestTimeout       int    `xml:"RequestTimeoutSeconds" yaml:"requestTimeoutSeconds"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *AppConfig {
	th := status.DefaultThresholds()
	assoc := parser.DefaultAssociatedFileOptions()
	return &AppConfig{
		Server: ServerConfig{
			Port:         8089,
			BindAddress:  "127.0.0.1",
			EnableCORS:   true,
			AllowOrigins: "*",
			ReadTimeout:  30,
			WriteTimeout: 30,
			IdleTimeout:  120,
			BodyLimit:    "256M",
		},
		Storage: StorageConfig{
			DataDirectory:     "./data",
			ArchiveDirectory:  "./data/archive",
			TempDirectory:     "./data/temp",
			JournalDirectory:  "./data/journals",
			EnablePersistence: true,
		},
		Monitor: MonitorConfig{
			PollIntervalMs:         1000,
			MaxSessions:            10,
			SessionTimeoutMinutes:  30,
			CleanupIntervalMinutes: 5,
			FuelEpsilon:            th.Fuel,
			ReservoirEpsilon:       th.Reservoir,
			AssociatedRetryWaitMs:  int(assoc.RetryWait / time.Millisecond),
			AssociatedRetryCount:   assoc.RetryCount,
		},
		Advanced: AdvancedConfig{
			LogLevel:             "info",
			LogFormat:            "console",
			EnableRequestLogging: true,
			RequestTimeout:       30,
		},
	}
}

// isYAML reports whether the path names a YAML file.
func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// LoadConfig loads configuration from an XML or YAML file. A missing file
// is created with the defaults.
func LoadConfig(configPath string) (*AppConfig, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		config := DefaultConfig()
		if err := config.Save(configPath); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
		config.applyEnvironmentOverrides()
		config.resolvePaths(filepath.Dir(configPath))
		return config, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, errors.WrapIO("read", configPath, err)
	}

	// Fields the file omits keep their defaults.
	config := DefaultConfig()
	if isYAML(configPath) {
		err = yaml.Unmarshal(data, config)
	} else {
		err = xml.Unmarshal(data, config)
	}
	if err != nil {
		format := "xml"
		if isYAML(configPath) {
			format = "yaml"
		}
		return nil, errors.WrapParse(format, configPath, err)
	}

	config.applyEnvironmentOverrides()
	config.resolvePaths(filepath.Dir(configPath))

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Save saves the configuration in the format named by the file extension.
func (c *AppConfig) Save(configPath string) error {
	var content []byte
	if isYAML(configPath) {
		out, err := yaml.Marshal(c)
		if err != nil {
			return fmt.Errorf("failed to marshal config: %w", err)
		}
		content = append([]byte("# Journal Monitor configuration\n"), out...)
	} else {
		out, err := xml.MarshalIndent(c, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal config: %w", err)
		}
		header := []byte(xml.Header + "<!-- Journal Monitor configuration -->\n")
		content = append(header, out...)
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return errors.WrapIO("mkdir", filepath.Dir(configPath), err)
	}
	if err := os.WriteFile(configPath, content, 0644); err != nil {
		return errors.WrapIO("write", configPath, err)
	}
	return nil
}

// Validate checks the values a running server depends on.
func (c *AppConfig) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return errors.NewValidationError("Server.Port", c.Server.Port, "must be between 1 and 65535")
	}
	if c.Monitor.PollIntervalMs <= 0 {
		return errors.NewValidationError("Monitor.PollIntervalMs", c.Monitor.PollIntervalMs, "must be positive")
	}
	if c.Monitor.MaxSessions <= 0 {
		return errors.NewValidationError("Monitor.MaxSessions", c.Monitor.MaxSessions, "must be positive")
	}
	if c.Monitor.FuelEpsilon < 0 {
		return errors.NewValidationError("Monitor.FuelEpsilon", c.Monitor.FuelEpsilon, "must not be negative")
	}
	if c.Monitor.ReservoirEpsilon < 0 {
		return errors.NewValidationError("Monitor.ReservoirEpsilon", c.Monitor.ReservoirEpsilon, "must not be negative")
	}
	if c.Monitor.AssociatedRetryCount < 0 {
		return errors.NewValidationError("Monitor.AssociatedRetryCount", c.Monitor.AssociatedRetryCount, "must not be negative")
	}
	switch strings.ToLower(c.Advanced.LogFormat) {
	case "", "console", "json":
	default:
		return errors.NewValidationError("Advanced.LogFormat", c.Advanced.LogFormat, "must be console or json")
	}
	return nil
}

// applyEnvironmentOverrides allows environment variables to override config values
func (c *AppConfig) applyEnvironmentOverrides() {
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Server.Port = p
		}
	}
	if dataDir := os.Getenv("DATA_DIR"); dataDir != "" {
		c.Storage.DataDirectory = dataDir
	}
	if tempDir := os.Getenv("DUCKDB_TEMP_DIR"); tempDir != "" {
		c.Storage.TempDirectory = tempDir
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		c.Advanced.LogLevel = level
	}
}

// resolvePaths converts relative paths to absolute based on config file location
func (c *AppConfig) resolvePaths(configDir string) {
	for _, p := range []*string{
		&c.Storage.DataDirectory,
		&c.Storage.ArchiveDirectory,
		&c.Storage.TempDirectory,
		&c.Storage.JournalDirectory,
	} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(configDir, *p)
		}
	}
}

// GetServerAddr returns the server bind address
func (c *AppConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.BindAddress, c.Server.Port)
}

// AllowedOrigins splits the CORS origin list. It is empty when CORS is disabled.
func (c *AppConfig) AllowedOrigins() []string {
	if !c.Server.EnableCORS {
		return nil
	}
	var origins []string
	for _, o := range strings.Split(c.Server.AllowOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return origins
}

// PollInterval returns the journal poll period.
func (c *AppConfig) PollInterval() time.Duration {
	return time.Duration(c.Monitor.PollIntervalMs) * time.Millisecond
}

// SessionTimeout returns the idle time after which a session is stopped.
func (c *AppConfig) SessionTimeout() time.Duration {
	return time.Duration(c.Monitor.SessionTimeoutMinutes) * time.Minute
}

// CleanupInterval returns the period of the idle session sweep.
func (c *AppConfig) CleanupInterval() time.Duration {
	return time.Duration(c.Monitor.CleanupIntervalMinutes) * time.Minute
}

// Thresholds returns the status differ epsilons.
func (c *AppConfig) Thresholds() status.Thresholds {
	return status.Thresholds{Fuel: c.Monitor.FuelEpsilon, Reservoir: c.Monitor.ReservoirEpsilon}
}

// AssociatedFileOptions returns the side file retry settings.
func (c *AppConfig) AssociatedFileOptions() parser.AssociatedFileOptions {
	return parser.AssociatedFileOptions{
		RetryWait:  time.Duration(c.Monitor.AssociatedRetryWaitMs) * time.Millisecond,
		RetryCount: c.Monitor.AssociatedRetryCount,
	}
}

// MergeConfig returns the timeline merge settings.
func (c *AppConfig) MergeConfig() parser.MergeConfig {
	return parser.MergeConfig{SkipOverall: c.Monitor.SkipOverallStatus}
}

// EnsureDirectories creates all necessary directories
func (c *AppConfig) EnsureDirectories() error {
	dirs := []string{
		c.Storage.DataDirectory,
		c.Storage.ArchiveDirectory,
		c.Storage.TempDirectory,
	}
	if c.Storage.EnablePersistence {
		dirs = append(dirs, c.Storage.JournalDirectory)
	}

	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}
