package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Loader handles configuration loading and management
type Loader struct {
	configPath string
	viper      *viper.Viper
}

// NewLoader creates a new configuration loader
func NewLoader(configPath string) *Loader {
	v := viper.New()

	// Set up environment variable handling
	v.SetEnvPrefix("SEGSCRIBE")
	v.AutomaticEnv()

	// Set up configuration file search paths
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// Search in multiple locations
		home, _ := os.UserHomeDir()
		v.AddConfigPath(home)
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/segscribe")
		v.SetConfigName(".segscribe")
		v.SetConfigType("yaml")
	}

	return &Loader{
		configPath: configPath,
		viper:      v,
	}
}

// Load reads and returns the configuration
func (l *Loader) Load() (*Config, error) {
	// Set defaults
	l.setDefaults()

	// Try to read config file
	if err := l.viper.ReadInConfig(); err != nil {
		// Config file not found is not an error - we'll use defaults and env vars
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Unmarshal configuration
	var cfg Config
	if err := l.viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Validate configuration
	if err := l.validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// LoadWithOverrides loads configuration with command-line overrides
func (l *Loader) LoadWithOverrides(overrides map[string]interface{}) (*Config, error) {
	// Load base configuration
	cfg, err := l.Load()
	if err != nil {
		return nil, err
	}

	// Apply overrides
	for key, value := range overrides {
		l.viper.Set(key, value)
	}

	// Re-unmarshal with overrides
	if err := l.viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config with overrides: %w", err)
	}

	return cfg, nil
}

// Save writes the current configuration to file
func (l *Loader) Save(cfg *Config) error {
	// Determine config file path
	configFile := l.configPath
	if configFile == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}
		configFile = filepath.Join(home, ".segscribe.yaml")
	}

	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(configFile), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Marshal configuration to viper
	l.viper.Set("backends", cfg.Backends)
	l.viper.Set("audio", cfg.Audio)
	l.viper.Set("pipeline", cfg.Pipeline)

	// Write to file
	if err := l.viper.WriteConfigAs(configFile); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// GetConfigFile returns the path to the config file being used
func (l *Loader) GetConfigFile() string {
	return l.viper.ConfigFileUsed()
}

// setDefaults sets default configuration values
func (l *Loader) setDefaults() {
	// Backend defaults
	l.viper.SetDefault("backends.order", []string{"whisper-cli", "whisper-api"})
	l.viper.SetDefault("backends.whisper_cli.binary", "whisper-cli")
	l.viper.SetDefault("backends.whisper_cli.language", "auto")
	l.viper.SetDefault("backends.whisper_api.model", "whisper-1")
	l.viper.SetDefault("backends.whisper_api.timeout", "300s")
	l.viper.SetDefault("backends.whisper_api.retries", 3)

	// Audio processing defaults
	l.viper.SetDefault("audio.temp_dir", filepath.Join(os.TempDir(), "segscribe"))
	l.viper.SetDefault("audio.keep_temp_files", false)
	l.viper.SetDefault("audio.skip_preprocess", false)

	// Pipeline defaults
	l.viper.SetDefault("pipeline.source_dir", ".")
	l.viper.SetDefault("pipeline.source_base", "source")
	l.viper.SetDefault("pipeline.extensions", []string{".aac", ".mp3", ".wav", ".m4a", ".flac"})
	l.viper.SetDefault("pipeline.results_dir", "轉錄結果")
	l.viper.SetDefault("pipeline.index_db", ".segscribe-resume.db")
	l.viper.SetDefault("pipeline.segment_seconds", 0)
	l.viper.SetDefault("pipeline.progress_interval", "30s")
}

// validateConfig validates the loaded configuration
func (l *Loader) validateConfig(cfg *Config) error {
	if len(cfg.Backends.Order) == 0 {
		return fmt.Errorf("at least one backend must be configured in backends.order")
	}

	for _, name := range cfg.Backends.Order {
		switch name {
		case "whisper-cli", "whisper-api":
		default:
			return fmt.Errorf("unknown backend %q in backends.order", name)
		}
	}

	if cfg.Pipeline.SegmentSeconds < 0 {
		return fmt.Errorf("segment_seconds cannot be negative")
	}

	if cfg.Pipeline.ProgressInterval <= 0 {
		return fmt.Errorf("progress_interval must be positive")
	}

	return nil
}

// CreateSampleConfig creates a sample configuration file
func CreateSampleConfig(path string) error {
	cfg := DefaultConfig()

	// Remove sensitive information for sample
	cfg.Backends.WhisperAPI.APIKey = "your-api-key-here"

	loader := NewLoader(path)
	return loader.Save(cfg)
}

// GetFromEnv gets configuration values from environment variables
func GetFromEnv() map[string]interface{} {
	overrides := make(map[string]interface{})

	// Check for environment variables
	if apiKey := os.Getenv("SEGSCRIBE_API_KEY"); apiKey != "" {
		overrides["backends.whisper_api.api_key"] = apiKey
	}

	if modelPath := os.Getenv("SEGSCRIBE_MODEL_PATH"); modelPath != "" {
		overrides["backends.whisper_cli.model_path"] = modelPath
	}

	if tempDir := os.Getenv("SEGSCRIBE_TEMP_DIR"); tempDir != "" {
		overrides["audio.temp_dir"] = tempDir
	}

	return overrides
}
