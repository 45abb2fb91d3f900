package audio

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	ffmpeg "github.com/u2takey/ffmpeg-go"

	"github.com/cwhuang/segscribe/pkg/logger"
)

// Canonical format every working file is converted to before transcription.
const (
	canonicalSampleRate = 16000
	canonicalChannels   = 1
	canonicalCodec      = "pcm_s16le"
)

// ProcessorImpl implements the Processor interface using ffmpeg/ffprobe.
type ProcessorImpl struct {
	tempDir string
}

// NewProcessor creates an audio processor. Temporary working files are
// written under tempDir.
func NewProcessor(tempDir string) *ProcessorImpl {
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	return &ProcessorImpl{tempDir: tempDir}
}

// Probe extracts measured properties from an audio file.
func (p *ProcessorImpl) Probe(path string) (*FileInfo, error) {
	log := logger.WithComponent("audio-processor").WithField("file", filepath.Base(path))

	stat, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("file does not exist: %w", err)
	}

	info := &FileInfo{
		FilePath: path,
		SizeMB:   float64(stat.Size()) / (1024 * 1024),
	}

	probeData, err := ffmpeg.Probe(path)
	if err != nil {
		// Duration estimated from size keeps the pipeline going when the
		// probe fails; roughly 1 MB per minute for compressed speech.
		log.Warn().Err(err).Msg("Probe failed, estimating duration from file size")
		info.DurationMin = info.SizeMB
		info.DurationSec = info.DurationMin * 60
		return info, nil
	}

	if err := parseProbeData(probeData, info); err != nil {
		log.Warn().Err(err).Msg("Probe output unparsable, estimating duration from file size")
		info.DurationMin = info.SizeMB
		info.DurationSec = info.DurationMin * 60
		return info, nil
	}

	log.Debug().
		Float64("size_mb", info.SizeMB).
		Float64("duration_min", info.DurationMin).
		Int("sample_rate", info.SampleRate).
		Int("channels", info.Channels).
		Str("codec", info.Codec).
		Msg("Audio information extracted")

	return info, nil
}

// parseProbeData fills info from ffprobe JSON output.
func parseProbeData(probeData string, info *FileInfo) error {
	var probe struct {
		Format struct {
			Duration string `json:"duration"`
		} `json:"format"`
		Streams []struct {
			CodecType  string `json:"codec_type"`
			CodecName  string `json:"codec_name"`
			SampleRate string `json:"sample_rate"`
			Channels   int    `json:"channels"`
		} `json:"streams"`
	}

	if err := json.Unmarshal([]byte(probeData), &probe); err != nil {
		return fmt.Errorf("failed to parse probe JSON: %w", err)
	}

	duration, err := strconv.ParseFloat(probe.Format.Duration, 64)
	if err != nil {
		return fmt.Errorf("failed to parse duration %q: %w", probe.Format.Duration, err)
	}
	info.DurationSec = duration
	info.DurationMin = duration / 60

	for _, stream := range probe.Streams {
		if stream.CodecType == "audio" {
			info.Codec = stream.CodecName
			info.Channels = stream.Channels
			if rate, err := strconv.Atoi(stream.SampleRate); err == nil {
				info.SampleRate = rate
			}
			break
		}
	}

	return nil
}

// ExtractSegment cuts a bounded slice into outPath in canonical format.
// A nonzero ffmpeg exit is a soft failure: the caller logs it and skips
// the span.
func (p *ProcessorImpl) ExtractSegment(path string, startSec, durationSec float64, outPath string) error {
	err := ffmpeg.Input(path, ffmpeg.KwArgs{
		"ss": fmt.Sprintf("%.3f", startSec),
		"t":  fmt.Sprintf("%.3f", durationSec),
	}).Output(outPath, ffmpeg.KwArgs{
		"ar":     canonicalSampleRate,
		"ac":     canonicalChannels,
		"acodec": canonicalCodec,
	}).OverWriteOutput().Silent(true).Run()
	if err != nil {
		return fmt.Errorf("segment extraction failed at %.1fs: %w", startSec, err)
	}
	return nil
}

// CleanupTemp removes the processor's temporary working files.
func (p *ProcessorImpl) CleanupTemp() {
	log := logger.WithComponent("audio-processor")

	entries, err := os.ReadDir(p.tempDir)
	if err != nil {
		return
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		_ = os.Remove(filepath.Join(p.tempDir, entry.Name()))
	}
	log.Debug().Str("temp_dir", p.tempDir).Msg("Temporary files cleaned up")
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}
