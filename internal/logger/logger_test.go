package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]LogLevel{
		"debug":   DebugLevel,
		"INFO":    InfoLevel,
		"warning": WarnLevel,
		" error ": ErrorLevel,
		"bogus":   InfoLevel,
		"":        InfoLevel,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestZerologAdapterWritesComponentAndFields(t *testing.T) {
	var buf bytes.Buffer
	log := NewZerolog(&buf, zerolog.DebugLevel)

	log.Error("BatchRunner", errors.New("decode failed"), map[string]interface{}{"frame": "a.png"})

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v (%q)", err, buf.String())
	}
	if entry["component"] != "BatchRunner" {
		t.Errorf("component = %v", entry["component"])
	}
	if entry["error"] != "decode failed" {
		t.Errorf("error = %v", entry["error"])
	}
	if entry["frame"] != "a.png" {
		t.Errorf("frame = %v", entry["frame"])
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := NewFileLogger(WarnLevel, &buf)

	log.Info("Tuner", "hidden", nil)
	if buf.Len() != 0 {
		t.Fatalf("info message leaked at warn level: %q", buf.String())
	}
	log.Warning("Tuner", "shown", nil)
	if buf.Len() == 0 {
		t.Fatal("warning was filtered")
	}
}
