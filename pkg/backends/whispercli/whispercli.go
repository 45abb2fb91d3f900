// Package whispercli runs a local whisper.cpp binary as a transcription
// backend. The binary is invoked once per audio slice with JSON output
// enabled, and the JSON sidecar is parsed into timed spans.
package whispercli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/cwhuang/segscribe/pkg/backends"
	"github.com/cwhuang/segscribe/pkg/logger"
)

const defaultBinary = "whisper-cli"

// Backend implements backends.Backend for the whisper.cpp CLI.
type Backend struct {
	name      string
	binary    string
	modelPath string
	language  string
	threads   int
	tempDir   string
}

// Option customizes the backend.
type Option func(*Backend)

// WithBinary sets the whisper.cpp executable path.
func WithBinary(binary string) Option {
	return func(b *Backend) { b.binary = binary }
}

// WithLanguage sets the transcription language hint.
func WithLanguage(language string) Option {
	return func(b *Backend) { b.language = language }
}

// WithThreads sets the worker thread count passed to the binary.
func WithThreads(threads int) Option {
	return func(b *Backend) { b.threads = threads }
}

// WithTempDir sets the directory for JSON output sidecars.
func WithTempDir(dir string) Option {
	return func(b *Backend) { b.tempDir = dir }
}

// New creates a whisper.cpp backend. The name distinguishes chain members
// that share the binary but load different model files.
func New(name, modelPath string, options ...Option) *Backend {
	b := &Backend{
		name:      name,
		binary:    defaultBinary,
		modelPath: modelPath,
		tempDir:   os.TempDir(),
	}
	for _, opt := range options {
		opt(b)
	}
	return b
}

// Name returns the backend name.
func (b *Backend) Name() string {
	return b.name
}

// transcriptionOutput mirrors the whisper.cpp -oj JSON sidecar.
type transcriptionOutput struct {
	Transcription []struct {
		Offsets struct {
			From int64 `json:"from"`
			To   int64 `json:"to"`
		} `json:"offsets"`
		Text string `json:"text"`
	} `json:"transcription"`
}

// Transcribe runs the binary on the audio file and parses its JSON output.
func (b *Backend) Transcribe(ctx context.Context, path string) (*backends.Result, error) {
	log := logger.WithComponent("whispercli").WithField("backend", b.name)

	if _, err := os.Stat(b.modelPath); err != nil {
		return nil, fmt.Errorf("model file not available: %w", err)
	}

	outBase, err := os.CreateTemp(b.tempDir, "whisper_out_*")
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}
	outPath := outBase.Name()
	_ = outBase.Close()
	jsonPath := outPath + ".json"
	defer func() {
		_ = os.Remove(outPath)
		_ = os.Remove(jsonPath)
	}()

	args := []string{
		"-m", b.modelPath,
		"-f", path,
		"-oj",
		"-of", outPath,
		"-np",
	}
	if b.language != "" {
		args = append(args, "-l", b.language)
	}
	if b.threads > 0 {
		args = append(args, "-t", strconv.Itoa(b.threads))
	}

	log.Debug().
		Str("binary", b.binary).
		Str("model", filepath.Base(b.modelPath)).
		Str("file", filepath.Base(path)).
		Msg("Running whisper.cpp")

	cmd := exec.CommandContext(ctx, b.binary, args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("whisper.cpp failed: %w: %s", err, strings.TrimSpace(string(out)))
	}

	data, err := os.ReadFile(jsonPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read whisper.cpp output: %w", err)
	}

	return parseOutput(data)
}

// parseOutput converts the whisper.cpp JSON sidecar into a Result.
// Offsets are milliseconds from the start of the input file.
func parseOutput(data []byte) (*backends.Result, error) {
	var out transcriptionOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to parse whisper.cpp JSON: %w", err)
	}

	result := &backends.Result{}
	var text strings.Builder
	for _, span := range out.Transcription {
		start := float64(span.Offsets.From) / 1000
		end := float64(span.Offsets.To) / 1000
		result.Segments = append(result.Segments, backends.Segment{
			Text:  strings.TrimSpace(span.Text),
			Start: &start,
			End:   &end,
		})
		text.WriteString(span.Text)
	}
	result.Text = strings.TrimSpace(text.String())

	return result, nil
}
