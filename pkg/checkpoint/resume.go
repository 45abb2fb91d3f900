package checkpoint

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/cwhuang/segscribe/pkg/logger"
)

// completionToleranceSec absorbs trailing-segment rounding: a checkpoint
// whose last span ends within this many seconds of the total duration is
// treated as complete.
const completionToleranceSec = 30

// minContentLineRunes is the content-detection heuristic: a body line this
// long that is neither header decoration nor a timestamp line counts as
// real transcript content.
const minContentLineRunes = 20

// headerPrefixes mark lines that belong to the metadata block or section
// decoration, never to transcript content.
var headerPrefixes = []string{
	"=",
	"檔案:",
	"模型:",
	"處理",
	"語音轉錄結果",
	"智能語音轉錄結果",
	"分段轉錄結果",
	"智能分段轉錄結果",
	"分段時間戳",
	"硬體配置:",
	"加速方式:",
	"記憶體",
	"檔案大小:",
	"音訊長度:",
	"智能分段大小:",
	"重疊時間:",
	"批次大小:",
	"精度:",
	"轉錄時間:",
	"分塊大小:",
	"--- 續轉結果",
}

// Candidate is a checkpoint file whose fingerprint matches the current
// processed audio.
type Candidate struct {
	Path         string
	FirstContent string
	LastEndSec   *float64
}

// FindResumable scans dir for the newest checkpoint file whose header
// fingerprint matches. Files are ordered by the timestamp embedded in
// their name, newest first; names without a parsable timestamp sort last.
// Returns nil when nothing matches.
func FindResumable(dir string, fp Fingerprint) (*Candidate, error) {
	log := logger.WithComponent("checkpoint")

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list results directory: %w", err)
	}

	var names []string
	for _, entry := range entries {
		name := entry.Name()
		if !entry.IsDir() && strings.HasPrefix(name, "result-") && strings.HasSuffix(name, ".txt") {
			names = append(names, name)
		}
	}

	sort.SliceStable(names, func(i, j int) bool {
		ti, okI := parseNameTimestamp(names[i])
		tj, okJ := parseNameTimestamp(names[j])
		if okI != okJ {
			return okI // parsable timestamps before unparsable ones
		}
		return ti.After(tj)
	})

	for _, name := range names {
		path := filepath.Join(dir, name)
		content, err := os.ReadFile(path)
		if err != nil {
			log.Warn().Err(err).Str("file", name).Msg("Skipping unreadable result file")
			continue
		}

		text := string(content)
		if !strings.Contains(text, fp.SizeLine()) || !strings.Contains(text, fp.DurationLine()) {
			log.Debug().Str("file", name).Msg("Fingerprint mismatch")
			continue
		}

		lastEnd, firstContent := scanProgress(text)
		log.Info().
			Str("file", name).
			Str("size", fp.SizeLine()).
			Str("duration", fp.DurationLine()).
			Msg("Found matching transcription result")

		return &Candidate{Path: path, FirstContent: firstContent, LastEndSec: lastEnd}, nil
	}

	return nil, nil
}

// LastProgress re-reads a checkpoint file and reports the end timestamp of
// its last well-formed span plus the first transcript content line.
func LastProgress(path string) (*float64, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to open checkpoint file: %w", err)
	}
	defer func() { _ = f.Close() }()

	var sb strings.Builder
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		sb.WriteString(scanner.Text())
		sb.WriteByte('\n')
	}
	if err := scanner.Err(); err != nil {
		return nil, "", fmt.Errorf("failed to read checkpoint file: %w", err)
	}

	lastEnd, firstContent := scanProgress(sb.String())
	return lastEnd, firstContent, nil
}

// IsComplete reports whether a checkpoint covers the whole audio, within
// the trailing-segment tolerance.
func IsComplete(lastEndSec *float64, totalDurationSec float64) bool {
	if lastEndSec == nil {
		return false
	}
	return *lastEndSec >= totalDurationSec-completionToleranceSec
}

// scanProgress scans body lines in reverse for the last well-formed
// timestamp and forward for the first content line.
func scanProgress(content string) (lastEnd *float64, firstContent string) {
	lines := strings.Split(content, "\n")

	for i := len(lines) - 1; i >= 0; i-- {
		if _, end, ok := ParseTimestampLine(strings.TrimSpace(lines[i])); ok {
			lastEnd = &end
			break
		}
	}

	for _, raw := range lines {
		line := strings.TrimSpace(raw)
		if line == "" || isHeaderLine(line) {
			continue
		}
		if strings.HasPrefix(line, "[") && strings.Contains(line, "]") {
			continue
		}
		if len([]rune(line)) > minContentLineRunes {
			firstContent = line
			break
		}
	}

	return lastEnd, firstContent
}

// ParseTimestampLine parses a "[<start>s - <end>s] text" body line.
func ParseTimestampLine(line string) (startSec, endSec float64, ok bool) {
	if !strings.HasPrefix(line, "[") {
		return 0, 0, false
	}
	closeIdx := strings.Index(line, "]")
	if closeIdx < 0 {
		return 0, 0, false
	}

	inner := line[1:closeIdx]
	parts := strings.Split(inner, " - ")
	if len(parts) != 2 {
		return 0, 0, false
	}

	start, err1 := parseSecondsValue(parts[0])
	end, err2 := parseSecondsValue(parts[1])
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	return start, end, true
}

func parseSecondsValue(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if !strings.HasSuffix(s, "s") {
		return 0, fmt.Errorf("missing seconds suffix: %q", s)
	}
	return strconv.ParseFloat(strings.TrimSuffix(s, "s"), 64)
}

// parseNameTimestamp extracts the timestamp from a result file name such
// as "result-source-20250903_220356.txt".
func parseNameTimestamp(name string) (time.Time, bool) {
	base := strings.TrimSuffix(name, ".txt")
	idx := strings.LastIndex(base, "-")
	if idx < 0 {
		return time.Time{}, false
	}
	t, err := time.Parse(fileTimestampLayout, base[idx+1:])
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func isHeaderLine(line string) bool {
	for _, prefix := range headerPrefixes {
		if strings.HasPrefix(line, prefix) {
			return true
		}
	}
	return false
}
