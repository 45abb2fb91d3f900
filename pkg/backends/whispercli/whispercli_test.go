package whispercli

import "testing"

func TestParseOutput(t *testing.T) {
	data := []byte(`{
		"result": {"language": "zh"},
		"transcription": [
			{
				"timestamps": {"from": "00:00:00,000", "to": "00:00:04,500"},
				"offsets": {"from": 0, "to": 4500},
				"text": " 今天我們來討論預算"
			},
			{
				"timestamps": {"from": "00:00:04,500", "to": "00:00:09,200"},
				"offsets": {"from": 4500, "to": 9200},
				"text": " 第三季的部分"
			}
		]
	}`)

	result, err := parseOutput(data)
	if err != nil {
		t.Fatalf("parseOutput() error = %v", err)
	}

	if len(result.Segments) != 2 {
		t.Fatalf("segments = %d, want 2", len(result.Segments))
	}

	first := result.Segments[0]
	if first.Text != "今天我們來討論預算" {
		t.Errorf("first segment text = %q", first.Text)
	}
	if first.Start == nil || *first.Start != 0 {
		t.Errorf("first segment start = %v, want 0", first.Start)
	}
	if first.End == nil || *first.End != 4.5 {
		t.Errorf("first segment end = %v, want 4.5", first.End)
	}

	second := result.Segments[1]
	if second.Start == nil || *second.Start != 4.5 {
		t.Errorf("second segment start = %v, want 4.5", second.Start)
	}
	if second.End == nil || *second.End != 9.2 {
		t.Errorf("second segment end = %v, want 9.2", second.End)
	}

	if result.Text != "今天我們來討論預算 第三季的部分" {
		t.Errorf("full text = %q", result.Text)
	}
}

func TestParseOutputEmpty(t *testing.T) {
	result, err := parseOutput([]byte(`{"transcription": []}`))
	if err != nil {
		t.Fatalf("parseOutput() error = %v", err)
	}
	if result.Text != "" {
		t.Errorf("text = %q, want empty", result.Text)
	}
	if len(result.Segments) != 0 {
		t.Errorf("segments = %d, want 0", len(result.Segments))
	}
}

func TestParseOutputMalformed(t *testing.T) {
	if _, err := parseOutput([]byte("not json")); err == nil {
		t.Fatal("parseOutput() error = nil, want error")
	}
}

func TestOptions(t *testing.T) {
	b := New("breeze", "/models/breeze.bin",
		WithBinary("/usr/local/bin/whisper-cli"),
		WithLanguage("zh"),
		WithThreads(4),
		WithTempDir("/tmp/segscribe"),
	)

	if b.Name() != "breeze" {
		t.Errorf("Name() = %q, want breeze", b.Name())
	}
	if b.binary != "/usr/local/bin/whisper-cli" {
		t.Errorf("binary = %q", b.binary)
	}
	if b.language != "zh" {
		t.Errorf("language = %q", b.language)
	}
	if b.threads != 4 {
		t.Errorf("threads = %d", b.threads)
	}
	if b.tempDir != "/tmp/segscribe" {
		t.Errorf("tempDir = %q", b.tempDir)
	}
}
