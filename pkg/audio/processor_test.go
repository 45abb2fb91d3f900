package audio

import (
	"os"
	"testing"
)

func TestNewProcessor(t *testing.T) {
	tests := []struct {
		name    string
		tempDir string
		want    string
	}{
		{
			name:    "default temp dir",
			tempDir: "",
			want:    os.TempDir(),
		},
		{
			name:    "custom temp dir",
			tempDir: "/custom/temp",
			want:    "/custom/temp",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewProcessor(tt.tempDir)
			if p.tempDir != tt.want {
				t.Errorf("NewProcessor() tempDir = %v, want %v", p.tempDir, tt.want)
			}
		})
	}
}

func TestParseProbeData(t *testing.T) {
	probeJSON := `{
		"format": {"duration": "130.56", "size": "4177920"},
		"streams": [
			{"codec_type": "video", "codec_name": "mjpeg"},
			{"codec_type": "audio", "codec_name": "aac", "sample_rate": "44100", "channels": 2}
		]
	}`

	info := &FileInfo{}
	if err := parseProbeData(probeJSON, info); err != nil {
		t.Fatalf("parseProbeData() error = %v", err)
	}

	if info.DurationSec != 130.56 {
		t.Errorf("DurationSec = %v, want 130.56", info.DurationSec)
	}
	if info.Codec != "aac" {
		t.Errorf("Codec = %q, want aac", info.Codec)
	}
	if info.SampleRate != 44100 {
		t.Errorf("SampleRate = %d, want 44100", info.SampleRate)
	}
	if info.Channels != 2 {
		t.Errorf("Channels = %d, want 2", info.Channels)
	}
}

func TestParseProbeDataInvalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{name: "not json", data: "not json"},
		{name: "missing duration", data: `{"format": {}, "streams": []}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := parseProbeData(tt.data, &FileInfo{}); err == nil {
				t.Error("parseProbeData() error = nil, want error")
			}
		})
	}
}

func TestEstimatedSegments(t *testing.T) {
	tests := []struct {
		name        string
		durationSec float64
		segmentSec  int
		want        int
	}{
		{name: "multiple segments", durationSec: 600, segmentSec: 60, want: 10},
		{name: "short file is one segment", durationSec: 20, segmentSec: 60, want: 1},
		{name: "zero segment size is one segment", durationSec: 600, segmentSec: 0, want: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fi := &FileInfo{DurationSec: tt.durationSec}
			if got := fi.EstimatedSegments(tt.segmentSec); got != tt.want {
				t.Errorf("EstimatedSegments(%d) = %d, want %d", tt.segmentSec, got, tt.want)
			}
		})
	}
}
