package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/cwhuang/segscribe/pkg/logger"
)

// Config represents the application configuration
type Config struct {
	// Transcription Backend Configuration
	Backends BackendsConfig `yaml:"backends" mapstructure:"backends"`

	// Audio Processing Configuration
	Audio AudioConfig `yaml:"audio" mapstructure:"audio"`

	// Pipeline Configuration
	Pipeline PipelineConfig `yaml:"pipeline" mapstructure:"pipeline"`

	// Logging Configuration
	Logging logger.Config `yaml:"logging" mapstructure:"logging"`
}

// BackendsConfig selects and configures the transcription backends. The
// order lists backend names; the first entry is the primary and the rest
// are fallbacks tried when output is degenerate.
type BackendsConfig struct {
	Order []string `yaml:"order" mapstructure:"order"`

	WhisperCLI WhisperCLIConfig `yaml:"whisper_cli" mapstructure:"whisper_cli"`
	WhisperAPI WhisperAPIConfig `yaml:"whisper_api" mapstructure:"whisper_api"`
}

// PrimaryModel returns the model identifier of the first backend in the
// configured order, the one that actually transcribes unless its output is
// degenerate.
func (b BackendsConfig) PrimaryModel() string {
	if len(b.Order) > 0 && b.Order[0] == "whisper-api" {
		return b.WhisperAPI.Model
	}
	return b.WhisperCLI.ModelPath
}

// WhisperCLIConfig configures the local whisper.cpp backend.
type WhisperCLIConfig struct {
	Binary    string `yaml:"binary" mapstructure:"binary"`
	ModelPath string `yaml:"model_path" mapstructure:"model_path"`
	Language  string `yaml:"language" mapstructure:"language"`
	Threads   int    `yaml:"threads" mapstructure:"threads"`
}

// WhisperAPIConfig configures the hosted transcription backend.
type WhisperAPIConfig struct {
	APIKey  string        `yaml:"api_key" mapstructure:"api_key"`
	BaseURL string        `yaml:"base_url" mapstructure:"base_url"`
	Model   string        `yaml:"model" mapstructure:"model"`
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
	Retries int           `yaml:"retries" mapstructure:"retries"`
}

// AudioConfig contains audio processing settings
type AudioConfig struct {
	// Processing Configuration
	TempDir       string `yaml:"temp_dir" mapstructure:"temp_dir"`
	KeepTempFiles bool   `yaml:"keep_temp_files" mapstructure:"keep_temp_files"`

	// Skips volume analysis, silence removal, and enhancement when set
	SkipPreprocess bool `yaml:"skip_preprocess" mapstructure:"skip_preprocess"`
}

// PipelineConfig contains segmentation and checkpoint settings
type PipelineConfig struct {
	// Directory scanned for source audio files
	SourceDir string `yaml:"source_dir" mapstructure:"source_dir"`

	// Base name (without extension) of the source files to look for
	SourceBase string `yaml:"source_base" mapstructure:"source_base"`

	// Extensions tried in order when discovering source files
	Extensions []string `yaml:"extensions" mapstructure:"extensions"`

	// Directory where checkpoint result files are written
	ResultsDir string `yaml:"results_dir" mapstructure:"results_dir"`

	// Path to the BoltDB resume index
	IndexDB string `yaml:"index_db" mapstructure:"index_db"`

	// Override for the hardware-derived segment length; 0 means auto
	SegmentSeconds int `yaml:"segment_seconds" mapstructure:"segment_seconds"`

	// How often the progress reporter logs
	ProgressInterval time.Duration `yaml:"progress_interval" mapstructure:"progress_interval"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Backends: BackendsConfig{
			Order: []string{"whisper-cli", "whisper-api"},
			WhisperCLI: WhisperCLIConfig{
				Binary:   "whisper-cli",
				Language: "auto",
			},
			WhisperAPI: WhisperAPIConfig{
				Model:   "whisper-1",
				Timeout: 300 * time.Second,
				Retries: 3,
			},
		},
		Audio: AudioConfig{
			TempDir: filepath.Join(os.TempDir(), "segscribe"),
		},
		Pipeline: PipelineConfig{
			SourceDir:        ".",
			SourceBase:       "source",
			Extensions:       []string{".aac", ".mp3", ".wav", ".m4a", ".flac"},
			ResultsDir:       "轉錄結果",
			IndexDB:          ".segscribe-resume.db",
			ProgressInterval: 30 * time.Second,
		},
		Logging: *logger.DefaultConfig(),
	}
}
