package checkpoint

import (
	"os"
	"path/filepath"
	"testing"
)

const sampleBody = `智能語音轉錄結果
============================================================
檔案: /audio/lecture.aac
模型: whisper-large-v3
處理方法: 智能分段轉錄
硬體配置: Apple Silicon (16.0 GB)
加速方式: metal
記憶體: 16.0 GB
檔案大小: 52.3 MB
音訊長度: 84.7 分鐘
智能分段大小: 120 秒
重疊時間: 6 秒
批次大小: 2
精度: fp16
轉錄時間: 2025-09-03 22:03:56
============================================================

智能分段轉錄結果:
============================================================
[0.0s - 57.3s] 大家好今天我們來談一談分散式系統裡面的共識演算法
這是一段完全沒有時間戳記的純文字轉錄內容條目
[57.3s - 118.9s] 首先我們從最經典的例子開始講起
[時間戳未知] 這一句沒有時間資訊
[118.9s - 130.0s] 最後做個簡單的總結
`

func writeResult(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile(%s) error = %v", name, err)
	}
	return path
}

func TestFindResumable(t *testing.T) {
	fp := Fingerprint{SizeMB: 52.3, DurationMin: 84.7}

	t.Run("matching fingerprint found", func(t *testing.T) {
		dir := t.TempDir()
		writeResult(t, dir, "result-lecture-20250903_220356.txt", sampleBody)

		cand, err := FindResumable(dir, fp)
		if err != nil {
			t.Fatalf("FindResumable() error = %v", err)
		}
		if cand == nil {
			t.Fatal("FindResumable() = nil, want candidate")
		}
		if cand.LastEndSec == nil || *cand.LastEndSec != 130.0 {
			t.Errorf("LastEndSec = %v, want 130.0", cand.LastEndSec)
		}
		if cand.FirstContent != "這是一段完全沒有時間戳記的純文字轉錄內容條目" {
			t.Errorf("FirstContent = %q", cand.FirstContent)
		}
	})

	t.Run("fingerprint mismatch skipped", func(t *testing.T) {
		dir := t.TempDir()
		writeResult(t, dir, "result-lecture-20250903_220356.txt", sampleBody)

		cand, err := FindResumable(dir, Fingerprint{SizeMB: 99.9, DurationMin: 84.7})
		if err != nil {
			t.Fatalf("FindResumable() error = %v", err)
		}
		if cand != nil {
			t.Errorf("FindResumable() = %v, want nil", cand.Path)
		}
	})

	t.Run("newest file wins", func(t *testing.T) {
		dir := t.TempDir()
		writeResult(t, dir, "result-lecture-20250901_100000.txt", sampleBody)
		newest := writeResult(t, dir, "result-lecture-20250903_220356.txt", sampleBody)
		writeResult(t, dir, "result-lecture-20250902_150000.txt", sampleBody)

		cand, err := FindResumable(dir, fp)
		if err != nil {
			t.Fatalf("FindResumable() error = %v", err)
		}
		if cand == nil || cand.Path != newest {
			t.Errorf("candidate = %v, want %s", cand, newest)
		}
	})

	t.Run("unparsable timestamps sort last", func(t *testing.T) {
		dir := t.TempDir()
		writeResult(t, dir, "result-lecture-notadate.txt", sampleBody)
		parsable := writeResult(t, dir, "result-lecture-20250901_100000.txt", sampleBody)

		cand, err := FindResumable(dir, fp)
		if err != nil {
			t.Fatalf("FindResumable() error = %v", err)
		}
		if cand == nil || cand.Path != parsable {
			t.Errorf("candidate = %v, want %s", cand, parsable)
		}
	})

	t.Run("missing directory", func(t *testing.T) {
		cand, err := FindResumable(filepath.Join(t.TempDir(), "nope"), fp)
		if err != nil {
			t.Fatalf("FindResumable() error = %v", err)
		}
		if cand != nil {
			t.Errorf("FindResumable() = %v, want nil", cand)
		}
	})
}

func TestLastProgress(t *testing.T) {
	dir := t.TempDir()
	path := writeResult(t, dir, "result-lecture-20250903_220356.txt", sampleBody)

	lastEnd, firstContent, err := LastProgress(path)
	if err != nil {
		t.Fatalf("LastProgress() error = %v", err)
	}
	if lastEnd == nil || *lastEnd != 130.0 {
		t.Errorf("lastEnd = %v, want 130.0", lastEnd)
	}
	if firstContent == "" {
		t.Errorf("firstContent empty, want transcript line")
	}
}

func TestIsComplete(t *testing.T) {
	end := func(v float64) *float64 { return &v }

	tests := []struct {
		name    string
		lastEnd *float64
		total   float64
		want    bool
	}{
		{"no progress", nil, 600, false},
		{"exactly at tolerance", end(570), 600, true},
		{"just under tolerance", end(569.99), 600, false},
		{"fully covered", end(600), 600, true},
		{"past the end", end(612.4), 600, true},
		{"far short", end(100), 600, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsComplete(tt.lastEnd, tt.total); got != tt.want {
				t.Errorf("IsComplete() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseTimestampLine(t *testing.T) {
	tests := []struct {
		line      string
		wantStart float64
		wantEnd   float64
		wantOK    bool
	}{
		{"[0.0s - 57.3s] some text", 0.0, 57.3, true},
		{"[118.9s - 130.0s]", 118.9, 130.0, true},
		{"[時間戳未知] text", 0, 0, false},
		{"plain text line", 0, 0, false},
		{"[12.0 - 15.0] missing suffix", 0, 0, false},
		{"[12.0s-15.0s] no spaced dash", 0, 0, false},
		{"[abc - def] garbage", 0, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			start, end, ok := ParseTimestampLine(tt.line)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && (start != tt.wantStart || end != tt.wantEnd) {
				t.Errorf("got [%v, %v], want [%v, %v]", start, end, tt.wantStart, tt.wantEnd)
			}
		})
	}
}

func TestParseNameTimestamp(t *testing.T) {
	tests := []struct {
		name   string
		wantOK bool
	}{
		{"result-lecture-20250903_220356.txt", true},
		{"result-my-long-name-20250101_000000.txt", true},
		{"result-lecture-notadate.txt", false},
		{"result.txt", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, ok := parseNameTimestamp(tt.name); ok != tt.wantOK {
				t.Errorf("ok = %v, want %v", ok, tt.wantOK)
			}
		})
	}
}
