package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cwhuang/segscribe/pkg/audio"
	"github.com/cwhuang/segscribe/pkg/backends"
	"github.com/cwhuang/segscribe/pkg/checkpoint"
	"github.com/cwhuang/segscribe/pkg/config"
	"github.com/cwhuang/segscribe/pkg/filter"
	"github.com/cwhuang/segscribe/pkg/hardware"
	"github.com/cwhuang/segscribe/pkg/logger"
)

// estimatedMinutesPerSegment feeds the startup time estimate only.
const estimatedMinutesPerSegment = 2.0

// Controller owns one transcription run end to end.
type Controller struct {
	cfg       *config.Config
	processor audio.Processor
	backend   backends.Backend
	filter    *filter.Filter
	profile   *hardware.Profile
	params    hardware.Parameters
	reporter  *Reporter
}

// NewController wires the pipeline from its parts. The hardware-derived
// parameters are computed here; a configured segment length overrides the
// derived one.
func NewController(cfg *config.Config, processor audio.Processor, backend backends.Backend, profile *hardware.Profile) *Controller {
	params := hardware.DeriveParameters(profile)
	if cfg.Pipeline.SegmentSeconds > 0 {
		params.SegmentSeconds = cfg.Pipeline.SegmentSeconds
	}

	return &Controller{
		cfg:       cfg,
		processor: processor,
		backend:   backend,
		filter:    filter.New(),
		profile:   profile,
		params:    params,
		reporter:  NewReporter(cfg.Pipeline.ProgressInterval),
	}
}

// Parameters returns the effective run parameters.
func (c *Controller) Parameters() hardware.Parameters {
	return c.params
}

// DiscoverSources returns the source audio files present in the configured
// directory, trying each extension in order.
func (c *Controller) DiscoverSources() []string {
	var found []string
	for _, ext := range c.cfg.Pipeline.Extensions {
		path := filepath.Join(c.cfg.Pipeline.SourceDir, c.cfg.Pipeline.SourceBase+ext)
		if _, err := os.Stat(path); err == nil {
			found = append(found, path)
		}
	}
	return found
}

// Run discovers source files and processes each one. A failure on one file
// is logged and does not stop the others.
func (c *Controller) Run(ctx context.Context) error {
	log := logger.WithComponent("pipeline")

	sources := c.DiscoverSources()
	if len(sources) == 0 {
		return fmt.Errorf("no source audio found: %s{%s} in %s",
			c.cfg.Pipeline.SourceBase,
			strings.Join(c.cfg.Pipeline.Extensions, ","),
			c.cfg.Pipeline.SourceDir)
	}

	defer func() {
		if !c.cfg.Audio.KeepTempFiles {
			c.processor.CleanupTemp()
		}
	}()

	var lastErr error
	for _, src := range sources {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := c.ProcessFile(ctx, src); err != nil {
			log.Error().Err(err).Str("file", filepath.Base(src)).Msg("Transcription failed")
			lastErr = err
		}
	}
	return lastErr
}

// ProcessFile runs the full segmented transcription of one audio file.
func (c *Controller) ProcessFile(ctx context.Context, sourcePath string) error {
	log := logger.WithComponent("pipeline").WithField("file", filepath.Base(sourcePath))
	startTime := time.Now()
	c.reporter = NewReporter(c.cfg.Pipeline.ProgressInterval)

	log.Info().
		Str("accelerator", string(c.profile.Accelerator)).
		Msg("Starting transcription")

	if err := os.MkdirAll(c.cfg.Audio.TempDir, 0o755); err != nil {
		return fmt.Errorf("failed to create temp directory: %w", err)
	}

	// Probe the source
	info, err := c.processor.Probe(sourcePath)
	if err != nil {
		return fmt.Errorf("failed to probe audio: %w", err)
	}
	log.Info().
		Float64("size_mb", info.SizeMB).
		Float64("duration_min", info.DurationMin).
		Msg("Audio information retrieved")

	// Preprocess; any failure falls back to the original file
	workPath, workInfo := sourcePath, info
	if !c.cfg.Audio.SkipPreprocess {
		processed, processedInfo, boost, err := c.processor.Preprocess(sourcePath, c.params.MaxVolumeBoostDB)
		if err != nil {
			log.Warn().Err(err).Msg("Preprocessing failed, using original audio")
		} else {
			workPath, workInfo = processed, processedInfo
			log.Info().
				Str("path", filepath.Base(processed)).
				Float64("volume_boost_db", boost).
				Msg("Audio preprocessed")
		}
	}

	fp := checkpoint.Fingerprint{SizeMB: workInfo.SizeMB, DurationMin: workInfo.DurationMin}

	// Resume decision: index record first, directory scan second
	ix := c.openIndex()
	if ix != nil {
		defer ix.Close()
	}

	resumePath, lastEnd, indexed := c.resumeState(ix, fp)

	if checkpoint.IsComplete(lastEnd, workInfo.DurationSec) {
		log.Info().
			Float64("last_end_sec", *lastEnd).
			Msg("Transcription already complete, nothing to do")
		return nil
	}

	// Plan the segment timeline. The plan depends on the current run's
	// segment length, so recorded progress is mapped onto it by end offset
	// rather than by segment count.
	spans := PlanSegments(workInfo.DurationSec, c.params.SegmentSeconds)
	startIndex := 0
	if indexed && lastEnd != nil {
		startIndex = StartIndexAfter(spans, *lastEnd)
	}

	// Open or create the checkpoint file
	base := strings.TrimSuffix(filepath.Base(sourcePath), filepath.Ext(sourcePath))
	var cf *checkpoint.File
	if resumePath != "" {
		cf, err = checkpoint.Open(resumePath)
		if err != nil {
			log.Warn().Err(err).Msg("Cannot reopen checkpoint, starting a new one")
			startIndex = 0
		} else if err := cf.AppendResumeMarker(); err != nil {
			return err
		}
	}
	if cf == nil {
		cf, err = checkpoint.Create(c.cfg.Pipeline.ResultsDir, base, c.buildHeader(sourcePath, fp))
		if err != nil {
			return fmt.Errorf("failed to create checkpoint: %w", err)
		}
	}
	defer func() { _ = cf.Close() }()

	log.Info().
		Int("segments", len(spans)).
		Int("segment_seconds", c.params.SegmentSeconds).
		Int("start_index", startIndex).
		Float64("estimated_minutes", float64(len(spans)-startIndex)*estimatedMinutesPerSegment).
		Msg("Segment plan ready")

	c.reporter.SetTotal(len(spans))
	for i := 0; i < startIndex; i++ {
		c.reporter.SegmentDone()
	}
	c.reporter.Start(ctx)
	defer c.reporter.Stop()

	WarnIfMemoryTight(80)

	combined := &backends.Result{}
	for _, span := range spans[startIndex:] {
		if err := ctx.Err(); err != nil {
			return err
		}

		result, err := c.processSegment(ctx, workPath, span)
		if err != nil {
			if errors.Is(err, backends.ErrAllBackendsFailed) {
				return fmt.Errorf("segment %d: %w", span.Index, err)
			}
			log.Warn().Err(err).
				Int("segment", span.Index).
				Float64("start_sec", span.StartSec).
				Msg("Segment failed, skipping")
			c.reporter.SegmentFailed()
			continue
		}

		if err := cf.AppendResult(result); err != nil {
			return fmt.Errorf("failed to persist segment %d: %w", span.Index, err)
		}
		c.reporter.SegmentDone()

		combined.Merge(result)

		if ix != nil {
			record := &checkpoint.Record{
				Path:         cf.Path,
				LastEndSec:   span.EndSec(),
				SegmentsDone: span.Index + 1,
				Completed:    span.Index == len(spans)-1,
			}
			if err := ix.Put(fp, record); err != nil {
				log.Warn().Err(err).Msg("Failed to update resume index")
			}
		}

		WarnIfMemoryTight(90)
	}

	done, failed, total := c.reporter.Progress()
	log.Info().
		Int64("segments_done", done).
		Int64("segments_failed", failed).
		Int64("segments_total", total).
		Int("text_length", len(combined.Text)).
		Dur("elapsed", time.Since(startTime).Round(time.Second)).
		Msg("Transcription finished")

	for _, seg := range combined.Segments {
		if seg.Start != nil && seg.End != nil {
			log.Debug().Str("span", fmt.Sprintf("[%.1fs - %.1fs]", *seg.Start, *seg.End)).Str("text", seg.Text).Msg("Span")
		}
	}

	return nil
}

// processSegment extracts one slice, transcribes it, and normalizes the
// result onto the global timeline.
func (c *Controller) processSegment(ctx context.Context, workPath string, span Span) (*backends.Result, error) {
	outPath := filepath.Join(c.cfg.Audio.TempDir, fmt.Sprintf("segment_%03d.wav", span.Index))
	if err := c.processor.ExtractSegment(workPath, span.StartSec, span.DurationSec, outPath); err != nil {
		return nil, fmt.Errorf("extraction failed: %w", err)
	}
	defer func() {
		if !c.cfg.Audio.KeepTempFiles {
			_ = os.Remove(outPath)
		}
	}()

	raw, err := c.backend.Transcribe(ctx, outPath)
	if err != nil {
		return nil, fmt.Errorf("transcription failed: %w", err)
	}

	return c.normalizeResult(raw, span), nil
}

// normalizeResult shifts segment timestamps onto the global timeline,
// substitutes the span bounds when a backend returned none, and drops
// spans the content filter rejects.
func (c *Controller) normalizeResult(raw *backends.Result, span Span) *backends.Result {
	out := &backends.Result{}

	source := raw.Segments
	if len(source) == 0 && strings.TrimSpace(raw.Text) != "" {
		source = []backends.Segment{{Text: raw.Text}}
	}

	var texts []string
	for _, seg := range source {
		text := c.filter.Apply(strings.TrimSpace(seg.Text))
		if text == "" {
			continue
		}

		var start, end float64
		if seg.Start != nil && seg.End != nil {
			start = span.StartSec + *seg.Start
			end = span.StartSec + *seg.End
		} else {
			start = span.StartSec
			end = span.EndSec()
		}

		out.Segments = append(out.Segments, backends.Segment{
			Text:  text,
			Start: &start,
			End:   &end,
		})
		texts = append(texts, text)
	}

	out.Text = strings.Join(texts, " ")
	return out
}

// openIndex opens the resume index; failures degrade to scan-only resume.
func (c *Controller) openIndex() *checkpoint.Index {
	ix, err := checkpoint.OpenIndex(c.cfg.Pipeline.IndexDB)
	if err != nil {
		logger.WithComponent("pipeline").Warn().Err(err).Msg("Resume index unavailable, falling back to file scan")
		return nil
	}
	return ix
}

// resumeState determines where processing continues: an index record gives
// segment-level resume from its recorded end offset, a matching checkpoint
// file found by scan restarts from segment zero but short-circuits completed
// runs. The indexed return tells the caller the end offset is trustworthy
// enough to skip covered spans.
func (c *Controller) resumeState(ix *checkpoint.Index, fp checkpoint.Fingerprint) (resumePath string, lastEnd *float64, indexed bool) {
	log := logger.WithComponent("pipeline")

	if ix != nil {
		record, err := ix.Get(fp)
		if err != nil {
			log.Warn().Err(err).Msg("Resume index read failed")
		} else if record != nil {
			end := record.LastEndSec
			log.Info().
				Str("checkpoint", filepath.Base(record.Path)).
				Int("segments_done", record.SegmentsDone).
				Float64("last_end_sec", record.LastEndSec).
				Msg("Resuming from index record")
			return record.Path, &end, true
		}
	}

	candidate, err := checkpoint.FindResumable(c.cfg.Pipeline.ResultsDir, fp)
	if err != nil {
		log.Warn().Err(err).Msg("Checkpoint scan failed")
		return "", nil, false
	}
	if candidate == nil {
		return "", nil, false
	}

	if candidate.FirstContent != "" {
		log.Info().Str("first_content", candidate.FirstContent).Msg("Previous transcript found")
	}
	return candidate.Path, candidate.LastEndSec, false
}

func (c *Controller) buildHeader(sourcePath string, fp checkpoint.Fingerprint) checkpoint.Header {
	return checkpoint.Header{
		SourcePath:     sourcePath,
		Model:          c.cfg.Backends.PrimaryModel(),
		HardwareDesc:   c.profile.Description,
		Acceleration:   string(c.profile.Accelerator),
		MemoryGB:       c.profile.TotalMemoryGB,
		Fingerprint:    fp,
		SegmentSeconds: c.params.SegmentSeconds,
		StrideSeconds:  c.params.StrideSeconds,
		BatchSize:      c.params.BatchSize,
		Precision:      string(c.params.Precision),
	}
}
