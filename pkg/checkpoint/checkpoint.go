// Package checkpoint persists transcription results as append-only text
// files that double as the resume source of truth. The file header carries
// a size/duration fingerprint of the processed audio; a body line exists
// for every retained transcript span. A BoltDB index sits alongside the
// files so resume decisions do not depend on re-parsing prose.
package checkpoint

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cwhuang/segscribe/pkg/backends"
	"github.com/cwhuang/segscribe/pkg/logger"
)

const (
	headerRule    = "============================================================"
	sectionLabel  = "智能分段轉錄結果:"
	unknownMarker = "[時間戳未知]"

	// Layout of the timestamp embedded in result file names.
	fileTimestampLayout = "20060102_150405"
)

// Fingerprint identifies the processed audio a checkpoint belongs to.
// Matching happens on the rendered lines at one-decimal precision, so any
// formatting drift here breaks resumability. Known limitation carried over
// from the file format.
type Fingerprint struct {
	SizeMB      float64
	DurationMin float64
}

// SizeLine renders the size fingerprint line exactly as stored in headers.
func (f Fingerprint) SizeLine() string {
	return fmt.Sprintf("檔案大小: %.1f MB", f.SizeMB)
}

// DurationLine renders the duration fingerprint line exactly as stored.
func (f Fingerprint) DurationLine() string {
	return fmt.Sprintf("音訊長度: %.1f 分鐘", f.DurationMin)
}

// Key is the stable index key for this fingerprint.
func (f Fingerprint) Key() string {
	return f.SizeLine() + "|" + f.DurationLine()
}

// Header holds the metadata block written once when a checkpoint file is
// created.
type Header struct {
	SourcePath     string
	Model          string
	HardwareDesc   string
	Acceleration   string
	MemoryGB       float64
	Fingerprint    Fingerprint
	SegmentSeconds int
	StrideSeconds  int
	BatchSize      int
	Precision      string
}

// File is an open checkpoint being appended to.
type File struct {
	Path string
	f    *os.File
}

// Create writes a new checkpoint file with its header block and returns a
// handle for appends. The file name embeds the creation timestamp so the
// newest candidate wins during resume discovery.
func Create(dir, sourceBase string, header Header) (*File, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create results directory: %w", err)
	}

	name := fmt.Sprintf("result-%s-%s.txt", sourceBase, time.Now().Format(fileTimestampLayout))
	path := filepath.Join(dir, name)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND|os.O_EXCL, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to create checkpoint file: %w", err)
	}

	var b strings.Builder
	b.WriteString("智能語音轉錄結果\n")
	b.WriteString(headerRule + "\n")
	fmt.Fprintf(&b, "檔案: %s\n", header.SourcePath)
	fmt.Fprintf(&b, "模型: %s\n", header.Model)
	b.WriteString("處理方法: 智能分段轉錄\n")
	fmt.Fprintf(&b, "硬體配置: %s\n", header.HardwareDesc)
	fmt.Fprintf(&b, "加速方式: %s\n", header.Acceleration)
	fmt.Fprintf(&b, "記憶體: %.1f GB\n", header.MemoryGB)
	b.WriteString(header.Fingerprint.SizeLine() + "\n")
	b.WriteString(header.Fingerprint.DurationLine() + "\n")
	fmt.Fprintf(&b, "智能分段大小: %d 秒\n", header.SegmentSeconds)
	fmt.Fprintf(&b, "重疊時間: %d 秒\n", header.StrideSeconds)
	fmt.Fprintf(&b, "批次大小: %d\n", header.BatchSize)
	fmt.Fprintf(&b, "精度: %s\n", header.Precision)
	fmt.Fprintf(&b, "轉錄時間: %s\n", time.Now().Format("2006-01-02 15:04:05"))
	b.WriteString(headerRule + "\n\n")
	b.WriteString(sectionLabel + "\n")
	b.WriteString(headerRule + "\n")

	if _, err := f.WriteString(b.String()); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to write checkpoint header: %w", err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to flush checkpoint header: %w", err)
	}

	logger.WithComponent("checkpoint").Info().Str("path", path).Msg("Checkpoint file created")

	return &File{Path: path, f: f}, nil
}

// Open reopens an existing checkpoint file for appending.
func Open(path string) (*File, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open checkpoint file: %w", err)
	}
	return &File{Path: path, f: f}, nil
}

// AppendResumeMarker writes the separator line that precedes spans added
// by a resumed run.
func (cf *File) AppendResumeMarker() error {
	line := fmt.Sprintf("\n--- 續轉結果 (%s) ---\n", time.Now().Format("2006-01-02 15:04:05"))
	if _, err := cf.f.WriteString(line); err != nil {
		return fmt.Errorf("failed to append resume marker: %w", err)
	}
	return cf.f.Sync()
}

// AppendSegment writes one transcript span and flushes it to disk before
// returning. A crash loses at most the in-flight span, never prior lines.
func (cf *File) AppendSegment(seg backends.Segment) error {
	var line string
	if seg.Start != nil && seg.End != nil {
		line = fmt.Sprintf("[%.1fs - %.1fs] %s\n", *seg.Start, *seg.End, seg.Text)
	} else {
		line = fmt.Sprintf("%s %s\n", unknownMarker, seg.Text)
	}

	if _, err := cf.f.WriteString(line); err != nil {
		return fmt.Errorf("failed to append segment: %w", err)
	}
	if err := cf.f.Sync(); err != nil {
		return fmt.Errorf("failed to flush segment: %w", err)
	}
	return nil
}

// AppendResult writes every span of a slice result. Results with no spans
// fall back to a single text-only line.
func (cf *File) AppendResult(result *backends.Result) error {
	if len(result.Segments) == 0 {
		if strings.TrimSpace(result.Text) == "" {
			return nil
		}
		if _, err := cf.f.WriteString(result.Text + "\n"); err != nil {
			return fmt.Errorf("failed to append text: %w", err)
		}
		return cf.f.Sync()
	}

	for _, seg := range result.Segments {
		if err := cf.AppendSegment(seg); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the underlying file.
func (cf *File) Close() error {
	return cf.f.Close()
}
