package checkpoint

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cwhuang/segscribe/pkg/backends"
)

func floatPtr(v float64) *float64 { return &v }

func testHeader() Header {
	return Header{
		SourcePath:     "/audio/lecture.aac",
		Model:          "whisper-large-v3",
		HardwareDesc:   "Apple Silicon (16.0 GB)",
		Acceleration:   "metal",
		MemoryGB:       16.0,
		Fingerprint:    Fingerprint{SizeMB: 52.3, DurationMin: 84.7},
		SegmentSeconds: 120,
		StrideSeconds:  6,
		BatchSize:      2,
		Precision:      "fp16",
	}
}

func TestCreateWritesHeader(t *testing.T) {
	dir := t.TempDir()

	cf, err := Create(dir, "lecture", testHeader())
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	defer cf.Close()

	content, err := os.ReadFile(cf.Path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	text := string(content)

	for _, want := range []string{
		"檔案: /audio/lecture.aac",
		"模型: whisper-large-v3",
		"檔案大小: 52.3 MB",
		"音訊長度: 84.7 分鐘",
		"智能分段大小: 120 秒",
		"重疊時間: 6 秒",
		"批次大小: 2",
		"精度: fp16",
		sectionLabel,
	} {
		if !strings.Contains(text, want) {
			t.Errorf("header missing %q", want)
		}
	}

	base := filepath.Base(cf.Path)
	if !strings.HasPrefix(base, "result-lecture-") || !strings.HasSuffix(base, ".txt") {
		t.Errorf("unexpected file name %q", base)
	}
	if _, ok := parseNameTimestamp(base); !ok {
		t.Errorf("file name %q has no parsable timestamp", base)
	}
}

func TestAppendSegment(t *testing.T) {
	tests := []struct {
		name string
		seg  backends.Segment
		want string
	}{
		{
			name: "with timestamps",
			seg:  backends.Segment{Text: "第一句話", Start: floatPtr(0), End: floatPtr(12.5)},
			want: "[0.0s - 12.5s] 第一句話",
		},
		{
			name: "without timestamps",
			seg:  backends.Segment{Text: "沒有時間的句子"},
			want: "[時間戳未知] 沒有時間的句子",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			cf, err := Create(dir, "clip", testHeader())
			if err != nil {
				t.Fatalf("Create() error = %v", err)
			}

			if err := cf.AppendSegment(tt.seg); err != nil {
				t.Fatalf("AppendSegment() error = %v", err)
			}
			cf.Close()

			content, _ := os.ReadFile(cf.Path)
			if !strings.Contains(string(content), tt.want) {
				t.Errorf("file missing line %q", tt.want)
			}
		})
	}
}

func TestAppendResultFallsBackToText(t *testing.T) {
	dir := t.TempDir()
	cf, err := Create(dir, "clip", testHeader())
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	result := &backends.Result{Text: "只有純文字的結果"}
	if err := cf.AppendResult(result); err != nil {
		t.Fatalf("AppendResult() error = %v", err)
	}
	cf.Close()

	content, _ := os.ReadFile(cf.Path)
	if !strings.Contains(string(content), "只有純文字的結果\n") {
		t.Errorf("text-only result not written")
	}
}

func TestOpenReappends(t *testing.T) {
	dir := t.TempDir()
	cf, err := Create(dir, "clip", testHeader())
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := cf.AppendSegment(backends.Segment{Text: "first", Start: floatPtr(0), End: floatPtr(10)}); err != nil {
		t.Fatalf("AppendSegment() error = %v", err)
	}
	path := cf.Path
	cf.Close()

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := reopened.AppendSegment(backends.Segment{Text: "second", Start: floatPtr(10), End: floatPtr(20)}); err != nil {
		t.Fatalf("AppendSegment() after reopen error = %v", err)
	}
	reopened.Close()

	content, _ := os.ReadFile(path)
	text := string(content)
	if !strings.Contains(text, "[0.0s - 10.0s] first") || !strings.Contains(text, "[10.0s - 20.0s] second") {
		t.Errorf("reopened file missing appended lines:\n%s", text)
	}
}

func TestFingerprintKey(t *testing.T) {
	a := Fingerprint{SizeMB: 10.04, DurationMin: 5.0}
	b := Fingerprint{SizeMB: 10.01, DurationMin: 5.04}
	if a.Key() != b.Key() {
		t.Errorf("keys differ despite equal one-decimal rendering: %q vs %q", a.Key(), b.Key())
	}

	c := Fingerprint{SizeMB: 10.1, DurationMin: 5.0}
	if a.Key() == c.Key() {
		t.Errorf("distinct fingerprints share key %q", a.Key())
	}
}
