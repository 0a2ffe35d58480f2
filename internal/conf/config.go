// config.go: settings struct and functions to load, read and update the
// single live RansomWatch configuration record.
package conf

import (
	"embed"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/sentinelfs/ransomwatch/internal/errors"
)

//go:embed config.yaml
var configFiles embed.FS

// RotationType defines the log rotation strategy
type RotationType string

const (
	RotationDaily  RotationType = "daily"
	RotationWeekly RotationType = "weekly"
	RotationSize   RotationType = "size"
)

// LogConfig contains settings for application logging
type LogConfig struct {
	Enabled  bool         // true to enable file logging
	Path     string       // path to log file
	Rotation RotationType // rotation type
	MaxSize  int64        // max size in bytes for RotationSize
}

// MainSettings contains general application settings
type MainSettings struct {
	Name string    // name of this node, can be used to identify the source of events
	Log  LogConfig // main log configuration
}

// DetectionSettings is the single live decision-policy record. EntropyThreshold
// and event entropy scores share one 0-100 scale; the classifier compares them
// directly with strict greater-than.
type DetectionSettings struct {
	EntropyThreshold float64 `yaml:"entropythreshold"` // entropy score above which a file looks encrypted, 0-100
	RenameThreshold  int     `yaml:"renamethreshold"`  // rename burst count above which a process looks suspicious
	AutoBlock        bool    `yaml:"autoblock"`        // true to block the originating process on threat severity
	Monitoring       bool    `yaml:"monitoring"`       // gates whether new telemetry is accepted
	WebhookURL       string  `yaml:"webhookurl"`       // optional destination for threat notifications
}

// SQLiteSettings contains SQLite database settings
type SQLiteSettings struct {
	Enabled bool   // true to enable SQLite output
	Path    string // path to SQLite database file
}

// MySQLSettings contains MySQL database settings
type MySQLSettings struct {
	Enabled  bool   // true to enable MySQL output
	Username string // username for MySQL database
	Password string // password for MySQL database
	Database string // database name for MySQL database
	Host     string // host for MySQL database
	Port     string // port for MySQL database
}

// OutputSettings contains settings for event persistence
type OutputSettings struct {
	SQLite SQLiteSettings // SQLite database settings
	MySQL  MySQLSettings  // MySQL database settings
}

// WebServerSettings contains settings for the HTTP API
type WebServerSettings struct {
	Enabled bool   // true to enable web server
	Port    string // port for web server
	Debug   bool   // true to enable debug mode
}

// Settings contains all application settings
type Settings struct {
	Debug bool // true to enable debug mode

	Main      MainSettings
	Detection DetectionSettings
	Output    OutputSettings
	WebServer WebServerSettings
}

// DetectionPatch is a partial update to DetectionSettings. Nil fields are
// left unchanged.
type DetectionPatch struct {
	EntropyThreshold *float64 `json:"entropy_threshold"`
	RenameThreshold  *int     `json:"rename_threshold"`
	AutoBlock        *bool    `json:"auto_block_enabled"`
	Monitoring       *bool    `json:"monitoring_enabled"`
	WebhookURL       *string  `json:"webhook_url"`
}

// ErrNotInitialized is returned when settings are read before Load has run.
var ErrNotInitialized = errors.NewStd("settings not initialized")

// settingsInstance is the current settings instance
var (
	settingsInstance *Settings
	once             sync.Once
	settingsMutex    sync.RWMutex
)

// Load reads the configuration file and environment variables into the
// settings singleton.
func Load() (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	settings := &Settings{}

	// Initialize viper and read config
	if err := initViper(); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	// Unmarshal the config into settings
	if err := viper.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	// Validate settings
	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	settingsInstance = settings
	return settingsInstance, nil
}

// initViper initializes viper with default values and reads the configuration file.
func initViper() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	// Get OS specific config paths
	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}

	// Assign config paths to Viper
	for _, path := range configPaths {
		viper.AddConfigPath(path)
	}

	// Set default values for each configuration parameter
	// function defined in defaults.go
	setDefaultConfig()

	// Read configuration file
	err = viper.ReadInConfig()
	if err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			// Config file not found, create config with defaults
			return createDefaultConfig()
		}
		return fmt.Errorf("fatal error reading config file: %w", err)
	}

	return nil
}

// createDefaultConfig creates a default config file and writes it to the default config path
func createDefaultConfig() error {
	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}
	configPath := filepath.Join(configPaths[0], "config.yaml")
	defaultConfig := getDefaultConfig()

	// Create directories for config file
	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return fmt.Errorf("error creating directories for config file: %w", err)
	}

	// Write default config file
	if err := os.WriteFile(configPath, []byte(defaultConfig), 0o644); err != nil {
		return fmt.Errorf("error writing default config file: %w", err)
	}

	fmt.Println("Created default config file at:", configPath)
	return viper.ReadInConfig()
}

// getDefaultConfig reads the default configuration from the embedded config.yaml file.
func getDefaultConfig() string {
	data, err := fs.ReadFile(configFiles, "config.yaml")
	if err != nil {
		log.Fatalf("Error reading config file: %v", err)
	}
	return string(data)
}

// GetSettings returns the current settings instance, or nil before Load.
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// Current returns the current settings instance, failing with
// ErrNotInitialized before the first Load.
func Current() (*Settings, error) {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	if settingsInstance == nil {
		return nil, ErrNotInitialized
	}
	return settingsInstance, nil
}

// Setting returns the current settings instance, initializing it if necessary
func Setting() *Settings {
	once.Do(func() {
		if settingsInstance == nil {
			_, err := Load()
			if err != nil {
				log.Fatalf("Error loading settings: %v", err)
			}
		}
	})
	return GetSettings()
}

// UpdateDetection applies a partial update to the detection settings. The
// record is replaced atomically: readers holding the previous snapshot keep a
// fully committed value, and no reader observes a half-applied patch.
// Concurrent updates are serialized, last writer wins. Callers that want the
// result on disk follow up with SaveSettings.
func UpdateDetection(patch *DetectionPatch) (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	if settingsInstance == nil {
		return nil, ErrNotInitialized
	}

	// Build the replacement record from a copy of the current one
	updated := *settingsInstance
	if patch.EntropyThreshold != nil {
		updated.Detection.EntropyThreshold = *patch.EntropyThreshold
	}
	if patch.RenameThreshold != nil {
		updated.Detection.RenameThreshold = *patch.RenameThreshold
	}
	if patch.AutoBlock != nil {
		updated.Detection.AutoBlock = *patch.AutoBlock
	}
	if patch.Monitoring != nil {
		updated.Detection.Monitoring = *patch.Monitoring
	}
	if patch.WebhookURL != nil {
		updated.Detection.WebhookURL = *patch.WebhookURL
	}

	if err := ValidateSettings(&updated); err != nil {
		return nil, errors.New(err).
			Category(errors.CategoryValidation).
			Component("conf").
			Build()
	}

	settingsInstance = &updated
	return settingsInstance, nil
}

// SaveSettings saves the current settings to the configuration file.
func SaveSettings() error {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	if settingsInstance == nil {
		return ErrNotInitialized
	}
	return saveLocked(settingsInstance)
}

// saveLocked writes settings to the config file. Callers must hold settingsMutex.
func saveLocked(settings *Settings) error {
	settingsCopy := *settings

	// Find the path of the current config file
	configPath, err := FindConfigFile()
	if err != nil {
		return fmt.Errorf("error finding config file: %w", err)
	}

	// Save the settings to the config file
	if err := SaveYAMLConfig(configPath, &settingsCopy); err != nil {
		return fmt.Errorf("error saving config: %w", err)
	}

	return nil
}

// SaveYAMLConfig updates the YAML configuration file with new settings.
// It overwrites the existing file, not preserving comments or structure.
func SaveYAMLConfig(configPath string, settings *Settings) error {
	// Marshal the settings struct to YAML
	yamlData, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("error marshaling settings to YAML: %w", err)
	}

	// Write the YAML data to a temporary file
	// This is done to ensure atomic write operation
	tempFile, err := os.CreateTemp(filepath.Dir(configPath), "config-*.yaml")
	if err != nil {
		return fmt.Errorf("error creating temporary file: %w", err)
	}
	tempFileName := tempFile.Name()

	if _, err := tempFile.Write(yamlData); err != nil {
		tempFile.Close()
		os.Remove(tempFileName)
		return fmt.Errorf("error writing to temporary file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		os.Remove(tempFileName)
		return fmt.Errorf("error closing temporary file: %w", err)
	}

	// Rename the temporary file to replace the original config file
	if err := os.Rename(tempFileName, configPath); err != nil {
		os.Remove(tempFileName)
		return fmt.Errorf("error replacing config file: %w", err)
	}

	return nil
}

// SetTestSettings replaces the settings singleton. Intended for tests.
func SetTestSettings(s *Settings) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()
	settingsInstance = s
}
