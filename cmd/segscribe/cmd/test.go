package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/cwhuang/segscribe/pkg/audio"
	"github.com/cwhuang/segscribe/pkg/logger"
)

// testCmd transcribes one short sample so backend and model problems show
// up before a multi-hour run is started.
var testCmd = &cobra.Command{
	Use:   "test",
	Short: "Transcribe a short sample to verify the setup",
	Long: `Extract a short slice from the discovered source audio, run it
through the configured backend chain once, and print the result.

Examples:
  # Default: 10 seconds starting at offset 12
  segscribe test

  # A longer sample from later in the recording
  segscribe test --offset 300 --duration 30`,
	RunE: runTest,
}

func init() {
	rootCmd.AddCommand(testCmd)

	testCmd.Flags().Float64("offset", 12, "sample start offset in seconds")
	testCmd.Flags().Float64("duration", 10, "sample length in seconds")
}

func runTest(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("test")

	offset, _ := cmd.Flags().GetFloat64("offset")
	duration, _ := cmd.Flags().GetFloat64("duration")

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	ctrl, err := buildController(cfg)
	if err != nil {
		return err
	}

	sources := ctrl.DiscoverSources()
	if len(sources) == 0 {
		return fmt.Errorf("no source audio found in %s", cfg.Pipeline.SourceDir)
	}
	source := sources[0]

	processor := audio.NewProcessor(cfg.Audio.TempDir)
	if err := os.MkdirAll(cfg.Audio.TempDir, 0o755); err != nil {
		return fmt.Errorf("failed to create temp directory: %w", err)
	}

	info, err := processor.Probe(source)
	if err != nil {
		return fmt.Errorf("failed to probe audio: %w", err)
	}
	if offset >= info.DurationSec {
		return fmt.Errorf("offset %.1fs is past the end of the audio (%.1fs)", offset, info.DurationSec)
	}
	if offset+duration > info.DurationSec {
		duration = info.DurationSec - offset
	}

	samplePath := filepath.Join(cfg.Audio.TempDir, "sample_test.wav")
	log.Info().
		Str("file", filepath.Base(source)).
		Float64("offset_sec", offset).
		Float64("duration_sec", duration).
		Msg("Extracting test sample")
	if err := processor.ExtractSegment(source, offset, duration, samplePath); err != nil {
		return fmt.Errorf("failed to extract sample: %w", err)
	}
	defer func() { _ = os.Remove(samplePath) }()

	backend, err := buildBackend(cfg)
	if err != nil {
		return err
	}

	result, err := backend.Transcribe(cmd.Context(), samplePath)
	if err != nil {
		return fmt.Errorf("test transcription failed: %w", err)
	}

	log.Info().
		Int("spans", len(result.Segments)).
		Msg("Test transcription succeeded")
	fmt.Println(result.Text)
	return nil
}
