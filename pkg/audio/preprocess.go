package audio

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	ffmpeg "github.com/u2takey/ffmpeg-go"

	"github.com/cwhuang/segscribe/pkg/logger"
)

const (
	// Target loudness the gain adjustment aims for.
	targetVolumeDB = -12

	// Assumed mean loudness when the analysis pass fails.
	defaultVolumeDB = -20

	// Silence detection settings tuned for conversational recordings.
	silenceThresholdDB  = -30
	silenceMinDuration  = 1.0
	silenceRemoveFilter = "silenceremove=start_periods=1:start_duration=1:start_threshold=-30dB:detection=peak," +
		"aformat=dblp,areverse," +
		"silenceremove=start_periods=1:start_duration=1:start_threshold=-30dB:detection=peak," +
		"aformat=dblp,areverse"

	// Band-pass plus spectral denoise applied with the gain stage.
	enhanceFilters = "highpass=f=100,lowpass=f=7000,afftdn=nf=-20"
)

// Preprocess converts the source to the canonical format, strips silence,
// and applies gain and noise filtering. Every enhancement stage is
// cosmetic: a stage failure falls back to the previous stage's file and the
// pipeline continues. Intermediate files are deleted as they are
// superseded.
func (p *ProcessorImpl) Preprocess(path string, maxBoostDB float64) (string, *FileInfo, float64, error) {
	log := logger.WithComponent("preprocess").WithField("file", filepath.Base(path))

	measuredDB := float64(defaultVolumeDB)
	if vol, err := p.AnalyzeVolume(path); err != nil {
		log.Warn().Err(err).Float64("assumed_db", measuredDB).Msg("Volume analysis failed, using default")
	} else {
		measuredDB = vol.MeanDB
		log.Info().
			Float64("mean_db", vol.MeanDB).
			Float64("max_db", vol.MaxDB).
			Msg("Volume measured")
	}

	boostDB := clamp(targetVolumeDB-measuredDB, 0, maxBoostDB)

	if err := os.MkdirAll(p.tempDir, 0o755); err != nil {
		return path, nil, boostDB, fmt.Errorf("failed to create temp directory: %w", err)
	}

	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	convertedPath := filepath.Join(p.tempDir, base+"_temp.wav")

	// Stage 1: decode to WAV. This is the only stage whose failure keeps
	// the original file as the working path.
	if err := ffmpeg.Input(path).
		Output(convertedPath).
		OverWriteOutput().Silent(true).Run(); err != nil {
		log.Warn().Err(err).Msg("WAV conversion failed, continuing with original file")
		info, probeErr := p.Probe(path)
		return path, info, boostDB, probeErr
	}

	working := convertedPath

	// Stage 2: silence excision.
	if stripped, ok := p.removeSilence(convertedPath, base); ok {
		p.removeIfTemp(working, path)
		working = stripped
	}

	// Stage 3: gain, band-pass, denoise, canonical resample.
	optimizedPath := filepath.Join(p.tempDir, base+"_optimized.wav")
	filterChain := fmt.Sprintf("volume=%.1fdB,%s", boostDB, enhanceFilters)
	err := ffmpeg.Input(working).
		Output(optimizedPath, ffmpeg.KwArgs{
			"af":     filterChain,
			"ar":     canonicalSampleRate,
			"ac":     canonicalChannels,
			"acodec": canonicalCodec,
		}).
		OverWriteOutput().Silent(true).Run()
	if err != nil {
		log.Warn().Err(err).Msg("Audio enhancement failed, using unfiltered conversion")
	} else {
		p.removeIfTemp(working, path)
		working = optimizedPath
	}

	log.Info().
		Str("working_file", filepath.Base(working)).
		Float64("boost_db", boostDB).
		Msg("Preprocessing completed")

	info, probeErr := p.Probe(working)
	return working, info, boostDB, probeErr
}

// removeSilence detects silence spans and excises them. Returns the
// stripped file and true only when detection found spans and the excision
// produced a usable file.
func (p *ProcessorImpl) removeSilence(path, base string) (string, bool) {
	log := logger.WithComponent("preprocess").WithField("file", filepath.Base(path))

	spans, err := p.DetectSilence(path, silenceThresholdDB, silenceMinDuration)
	if err != nil {
		log.Warn().Err(err).Msg("Silence detection failed, keeping file unmodified")
		return "", false
	}
	if len(spans) == 0 {
		log.Debug().Msg("No silence spans detected")
		return "", false
	}

	log.Info().Int("spans", len(spans)).Msg("Removing silence spans")

	outPath := filepath.Join(p.tempDir, base+"_no_silence.wav")
	err = ffmpeg.Input(path).
		Output(outPath, ffmpeg.KwArgs{"af": silenceRemoveFilter}).
		OverWriteOutput().Silent(true).Run()
	if err != nil {
		log.Warn().Err(err).Msg("Silence removal failed, keeping file unmodified")
		return "", false
	}

	stat, err := os.Stat(outPath)
	if err != nil || stat.Size() == 0 {
		log.Warn().Msg("Silence removal produced no output, keeping file unmodified")
		_ = os.Remove(outPath)
		return "", false
	}

	if orig, err := os.Stat(path); err == nil && orig.Size() > 0 {
		reduction := (1 - float64(stat.Size())/float64(orig.Size())) * 100
		log.Info().Float64("size_reduction_pct", reduction).Msg("Silence spans removed")
	}

	return outPath, true
}

// removeIfTemp deletes a superseded intermediate file, never the source.
func (p *ProcessorImpl) removeIfTemp(path, sourcePath string) {
	if path == sourcePath || path == "" {
		return
	}
	if fileExists(path) {
		_ = os.Remove(path)
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
