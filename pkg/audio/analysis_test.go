package audio

import "testing"

func TestParseVolumeOutput(t *testing.T) {
	output := `[Parsed_volumedetect_0 @ 0x7f8] n_samples: 4800000
[Parsed_volumedetect_0 @ 0x7f8] mean_volume: -23.4 dB
[Parsed_volumedetect_0 @ 0x7f8] max_volume: -5.1 dB
[Parsed_volumedetect_0 @ 0x7f8] histogram_0db: 12`

	info, ok := parseVolumeOutput(output)
	if !ok {
		t.Fatal("parseVolumeOutput() ok = false, want true")
	}
	if info.MeanDB != -23.4 {
		t.Errorf("MeanDB = %v, want -23.4", info.MeanDB)
	}
	if info.MaxDB != -5.1 {
		t.Errorf("MaxDB = %v, want -5.1", info.MaxDB)
	}
}

func TestParseVolumeOutputNoMeasurements(t *testing.T) {
	if _, ok := parseVolumeOutput("size=N/A time=00:01:00.00 bitrate=N/A"); ok {
		t.Error("parseVolumeOutput() ok = true, want false")
	}
}

func TestParseVolumeOutputMalformedLineSkipped(t *testing.T) {
	output := `mean_volume: garbage dB
max_volume: -7.2 dB`

	info, ok := parseVolumeOutput(output)
	if !ok {
		t.Fatal("parseVolumeOutput() ok = false, want true")
	}
	if info.MaxDB != -7.2 {
		t.Errorf("MaxDB = %v, want -7.2", info.MaxDB)
	}
	if info.MeanDB != 0 {
		t.Errorf("MeanDB = %v, want 0 for skipped malformed line", info.MeanDB)
	}
}

func TestParseSilenceOutput(t *testing.T) {
	output := `[silencedetect @ 0x7f9] silence_start: 3.240021
[silencedetect @ 0x7f9] silence_end: 4.1 | silence_duration: 0.859979
frame= 1500 fps=0.0 q=-0.0
[silencedetect @ 0x7f9] silence_start: 10.5
[silencedetect @ 0x7f9] silence_end: 12.75 | silence_duration: 2.25`

	spans := parseSilenceOutput(output)
	if len(spans) != 2 {
		t.Fatalf("spans = %d, want 2", len(spans))
	}
	if spans[0].StartSec != 3.240021 || spans[0].EndSec != 4.1 {
		t.Errorf("first span = %+v", spans[0])
	}
	if spans[1].StartSec != 10.5 || spans[1].EndSec != 12.75 {
		t.Errorf("second span = %+v", spans[1])
	}
}

func TestParseSilenceOutputUnmatchedMarkers(t *testing.T) {
	tests := []struct {
		name   string
		output string
		want   int
	}{
		{
			name:   "end without start dropped",
			output: "silence_end: 4.1 | silence_duration: 0.9",
			want:   0,
		},
		{
			name:   "trailing start without end dropped",
			output: "silence_start: 3.2\nsilence_end: 4.1\nsilence_start: 9.0",
			want:   1,
		},
		{
			name:   "empty output",
			output: "",
			want:   0,
		},
		{
			name:   "malformed start value skipped",
			output: "silence_start: notanumber\nsilence_end: 4.1",
			want:   0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := parseSilenceOutput(tt.output); len(got) != tt.want {
				t.Errorf("spans = %d, want %d", len(got), tt.want)
			}
		})
	}
}

func TestClamp(t *testing.T) {
	tests := []struct {
		v, lo, hi, want float64
	}{
		{5, 0, 15, 5},
		{-3, 0, 15, 0},
		{20, 0, 15, 15},
		{0, 0, 15, 0},
	}

	for _, tt := range tests {
		if got := clamp(tt.v, tt.lo, tt.hi); got != tt.want {
			t.Errorf("clamp(%v, %v, %v) = %v, want %v", tt.v, tt.lo, tt.hi, got, tt.want)
		}
	}
}
