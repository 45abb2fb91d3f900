package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/cwhuang/segscribe/pkg/audio"
	"github.com/cwhuang/segscribe/pkg/backends"
	"github.com/cwhuang/segscribe/pkg/backends/whisperapi"
	"github.com/cwhuang/segscribe/pkg/backends/whispercli"
	"github.com/cwhuang/segscribe/pkg/config"
	"github.com/cwhuang/segscribe/pkg/hardware"
	"github.com/cwhuang/segscribe/pkg/logger"
	"github.com/cwhuang/segscribe/pkg/pipeline"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "segscribe",
	Short: "Resumable segmented audio transcription",
	Long: `segscribe transcribes long audio recordings by cutting them into
hardware-sized segments, running each through a chain of transcription
backends, and appending every result to a durable checkpoint file.

Interrupted runs resume from the checkpoint: the file header carries a
size/duration fingerprint of the audio, and a resume index remembers the
last completed segment.

Features:
- Automatic segment sizing from available memory and accelerator
- Audio preprocessing (volume normalization, silence removal, denoising)
- Local whisper.cpp and hosted API backends with degenerate-output fallback
- Hallucination filtering of repetitive or filler-only output
- Crash-safe append-only checkpoint files with fingerprint-matched resume`,
	RunE: runPipeline,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.segscribe.yaml)")
	rootCmd.PersistentFlags().String("api-key", "", "hosted backend API key")
	rootCmd.PersistentFlags().String("model", "", "path to the whisper.cpp model file")
	rootCmd.PersistentFlags().String("source-dir", "", "directory containing the source audio")
	rootCmd.PersistentFlags().String("temp-dir", "", "temporary directory for processing")
	rootCmd.PersistentFlags().Int("segment-seconds", 0, "override the hardware-derived segment length")

	// Logging flags
	rootCmd.PersistentFlags().String("log-level", "info", "log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "console", "log format (console, json)")
	rootCmd.PersistentFlags().String("log-output", "stdout", "log output (stdout, stderr, file path)")
	rootCmd.PersistentFlags().Bool("log-no-color", false, "disable colored log output")
	rootCmd.PersistentFlags().Bool("log-caller", false, "include caller information in logs")

	// Bind flags to viper
	_ = viper.BindPFlag("backends.whisper_api.api_key", rootCmd.PersistentFlags().Lookup("api-key"))
	_ = viper.BindPFlag("backends.whisper_cli.model_path", rootCmd.PersistentFlags().Lookup("model"))
	_ = viper.BindPFlag("pipeline.source_dir", rootCmd.PersistentFlags().Lookup("source-dir"))
	_ = viper.BindPFlag("audio.temp_dir", rootCmd.PersistentFlags().Lookup("temp-dir"))
	_ = viper.BindPFlag("pipeline.segment_seconds", rootCmd.PersistentFlags().Lookup("segment-seconds"))

	// Bind logging flags to viper
	_ = viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("logging.format", rootCmd.PersistentFlags().Lookup("log-format"))
	_ = viper.BindPFlag("logging.output", rootCmd.PersistentFlags().Lookup("log-output"))
	_ = viper.BindPFlag("logging.caller", rootCmd.PersistentFlags().Lookup("log-caller"))
	_ = viper.BindPFlag("logging.no_color", rootCmd.PersistentFlags().Lookup("log-no-color"))

	// Environment variable bindings
	viper.SetEnvPrefix("SEGSCRIBE")
	viper.AutomaticEnv()
}

// initConfig reads in config file and ENV variables.
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory.
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		// Search config in home directory with name ".segscribe" (without extension).
		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".segscribe")
	}

	// If a config file is found, read it in.
	configFileUsed := ""
	if err := viper.ReadInConfig(); err == nil {
		configFileUsed = viper.ConfigFileUsed()
	}

	// Initialize logger
	initLogger()

	// Log config file usage after logger is initialized
	if configFileUsed != "" {
		logger.Info().Str("config_file", configFileUsed).Msg("Loaded configuration file")
	}
}

// initLogger initializes the logger based on configuration
func initLogger() {
	cfg := config.DefaultConfig()

	// Update logging config from viper
	cfg.Logging.Level = viper.GetString("logging.level")
	cfg.Logging.Format = viper.GetString("logging.format")
	cfg.Logging.Output = viper.GetString("logging.output")
	cfg.Logging.Caller = viper.GetBool("logging.caller")

	// Handle no-color flag
	if viper.GetBool("logging.no_color") {
		cfg.Logging.PrettyMode = false
	}

	// Initialize the logger
	if err := logger.Initialize(&cfg.Logging); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig merges file, environment, and flag settings.
func loadConfig() (*config.Config, error) {
	loader := config.NewLoader(cfgFile)

	overrides := config.GetFromEnv()
	for _, key := range []string{
		"backends.whisper_api.api_key",
		"backends.whisper_cli.model_path",
		"pipeline.source_dir",
		"audio.temp_dir",
	} {
		if viper.GetString(key) != "" {
			overrides[key] = viper.Get(key)
		}
	}
	if viper.GetInt("pipeline.segment_seconds") > 0 {
		overrides["pipeline.segment_seconds"] = viper.GetInt("pipeline.segment_seconds")
	}

	return loader.LoadWithOverrides(overrides)
}

// buildBackend assembles the fallback chain from the configured order.
func buildBackend(cfg *config.Config) (backends.Backend, error) {
	var chain []backends.Backend
	for _, name := range cfg.Backends.Order {
		switch name {
		case "whisper-cli":
			cli := cfg.Backends.WhisperCLI
			chain = append(chain, whispercli.New(name, cli.ModelPath,
				whispercli.WithBinary(cli.Binary),
				whispercli.WithLanguage(cli.Language),
				whispercli.WithThreads(cli.Threads),
				whispercli.WithTempDir(cfg.Audio.TempDir),
			))
		case "whisper-api":
			api := cfg.Backends.WhisperAPI
			options := []whisperapi.Option{
				whisperapi.WithModel(api.Model),
				whisperapi.WithTimeout(api.Timeout),
				whisperapi.WithRetries(api.Retries),
			}
			if api.BaseURL != "" {
				options = append(options, whisperapi.WithBaseURL(api.BaseURL))
			}
			chain = append(chain, whisperapi.New(api.APIKey, options...))
		default:
			return nil, fmt.Errorf("unknown backend %q", name)
		}
	}

	if len(chain) == 0 {
		return nil, fmt.Errorf("no backends configured")
	}
	return backends.NewChain(chain[0], chain[1:]...)
}

// buildController wires the full pipeline from configuration and the
// detected hardware profile.
func buildController(cfg *config.Config) (*pipeline.Controller, error) {
	profile := hardware.Detect()
	logger.Info().
		Str("hardware", profile.Description).
		Str("accelerator", string(profile.Accelerator)).
		Float64("total_memory_gb", profile.TotalMemoryGB).
		Float64("available_memory_gb", profile.AvailableMemoryGB).
		Msg("Hardware detected")

	backend, err := buildBackend(cfg)
	if err != nil {
		return nil, err
	}

	processor := audio.NewProcessor(cfg.Audio.TempDir)
	ctrl := pipeline.NewController(cfg, processor, backend, profile)

	params := ctrl.Parameters()
	logger.Info().
		Int("segment_seconds", params.SegmentSeconds).
		Int("stride_seconds", params.StrideSeconds).
		Int("batch_size", params.BatchSize).
		Str("precision", string(params.Precision)).
		Float64("max_volume_boost_db", params.MaxVolumeBoostDB).
		Msg("Run parameters derived")

	return ctrl, nil
}

func runPipeline(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	ctrl, err := buildController(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return ctrl.Run(ctx)
}
