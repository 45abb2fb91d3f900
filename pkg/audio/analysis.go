package audio

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	ffmpeg "github.com/u2takey/ffmpeg-go"
)

// The media tool reports loudness and silence spans only as free text on
// its diagnostic stream. These parsers are the single boundary around that
// format; nothing else in the codebase touches the raw output.

// AnalyzeVolume runs a volumedetect pass and parses the measured levels.
func (p *ProcessorImpl) AnalyzeVolume(path string) (*VolumeInfo, error) {
	stderr, err := p.runAnalysisFilter(path, "volumedetect")
	if err != nil {
		return nil, fmt.Errorf("volume analysis failed: %w", err)
	}

	info, ok := parseVolumeOutput(stderr)
	if !ok {
		return nil, fmt.Errorf("no volume measurements in tool output")
	}
	return info, nil
}

// DetectSilence runs a silencedetect pass with the given noise threshold
// (dB) and minimum span duration (seconds).
func (p *ProcessorImpl) DetectSilence(path string, thresholdDB float64, minDurationSec float64) ([]SilenceSpan, error) {
	filter := fmt.Sprintf("silencedetect=noise=%.0fdB:duration=%g", thresholdDB, minDurationSec)
	stderr, err := p.runAnalysisFilter(path, filter)
	if err != nil {
		return nil, fmt.Errorf("silence detection failed: %w", err)
	}
	return parseSilenceOutput(stderr), nil
}

// runAnalysisFilter executes an analysis-only filter pass with a null
// output and returns the tool's diagnostic stream.
func (p *ProcessorImpl) runAnalysisFilter(path, filter string) (string, error) {
	var stderr bytes.Buffer

	cmd := ffmpeg.Input(path).
		Output("-", ffmpeg.KwArgs{"af": filter, "f": "null"}).
		Silent(true).
		Compile()
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("%w: %s", err, lastLine(stderr.String()))
	}
	return stderr.String(), nil
}

// parseVolumeOutput scans diagnostic text for mean_volume and max_volume
// lines. Malformed lines are skipped.
func parseVolumeOutput(output string) (*VolumeInfo, bool) {
	info := &VolumeInfo{}
	found := false

	for _, line := range strings.Split(output, "\n") {
		if v, ok := parseDBField(line, "mean_volume:"); ok {
			info.MeanDB = v
			found = true
		} else if v, ok := parseDBField(line, "max_volume:"); ok {
			info.MaxDB = v
			found = true
		}
	}

	return info, found
}

// parseDBField extracts the value from a "<key> <value> dB" fragment.
func parseDBField(line, key string) (float64, bool) {
	idx := strings.Index(line, key)
	if idx < 0 {
		return 0, false
	}
	rest := line[idx+len(key):]
	if dbIdx := strings.Index(rest, "dB"); dbIdx >= 0 {
		rest = rest[:dbIdx]
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(rest), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// parseSilenceOutput scans diagnostic text for silence_start/silence_end
// pairs. An end without a preceding start is dropped, as is a trailing
// unmatched start.
func parseSilenceOutput(output string) []SilenceSpan {
	var spans []SilenceSpan
	var currentStart *float64

	for _, line := range strings.Split(output, "\n") {
		if v, ok := parseTimeField(line, "silence_start:"); ok {
			currentStart = &v
		} else if v, ok := parseTimeField(line, "silence_end:"); ok && currentStart != nil {
			spans = append(spans, SilenceSpan{StartSec: *currentStart, EndSec: v})
			currentStart = nil
		}
	}

	return spans
}

// parseTimeField extracts the leading float after key, tolerating trailing
// fields such as "silence_end: 4.1 | silence_duration: 0.9".
func parseTimeField(line, key string) (float64, bool) {
	idx := strings.Index(line, key)
	if idx < 0 {
		return 0, false
	}
	rest := strings.TrimSpace(line[idx+len(key):])
	if pipeIdx := strings.Index(rest, "|"); pipeIdx >= 0 {
		rest = rest[:pipeIdx]
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(rest), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) == 0 {
		return ""
	}
	return strings.TrimSpace(lines[len(lines)-1])
}
