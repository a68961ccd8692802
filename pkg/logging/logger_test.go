package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func decodeLine(t *testing.T, line string) LogEntry {
	t.Helper()
	var entry LogEntry
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v (%q)", err, line)
	}
	return entry
}

func TestJSONLoggerWritesStructuredEntries(t *testing.T) {
	var buf bytes.Buffer
	log := NewJSONLogger(&buf, InfoLevel)

	log.Info("memtable flushed", Entries(128), SSTPath("level0-0.sst"))

	entry := decodeLine(t, strings.TrimSpace(buf.String()))
	if entry.Level != "INFO" {
		t.Errorf("level = %q, want INFO", entry.Level)
	}
	if entry.Message != "memtable flushed" {
		t.Errorf("msg = %q", entry.Message)
	}
	if entry.Fields["entries"] != float64(128) {
		t.Errorf("entries field = %v, want 128", entry.Fields["entries"])
	}
	if entry.Fields["sst"] != "level0-0.sst" {
		t.Errorf("sst field = %v", entry.Fields["sst"])
	}
}

func TestLoggerLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := NewJSONLogger(&buf, WarnLevel)

	log.Debug("dropped")
	log.Info("dropped")
	log.Warn("kept")
	log.Error("kept too")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}
}

func TestLoggerWithPresetsFields(t *testing.T) {
	var buf bytes.Buffer
	log := NewJSONLogger(&buf, InfoLevel).With(Component("bufferpool"), StoreID("abc"))

	log.Info("page evicted", PageID("x-3"))

	entry := decodeLine(t, strings.TrimSpace(buf.String()))
	if entry.Fields["component"] != "bufferpool" {
		t.Errorf("component = %v", entry.Fields["component"])
	}
	if entry.Fields["store_id"] != "abc" {
		t.Errorf("store_id = %v", entry.Fields["store_id"])
	}
	if entry.Fields["page_id"] != "x-3" {
		t.Errorf("page_id = %v", entry.Fields["page_id"])
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"debug": DebugLevel,
		"INFO":  InfoLevel,
		"warn":  WarnLevel,
		"ERROR": ErrorLevel,
		"junk":  InfoLevel,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestErrorField(t *testing.T) {
	f := Error(errors.New("disk gone"))
	if f.Key != "error" || f.Value != "disk gone" {
		t.Errorf("Error field = %+v", f)
	}
	if f := Error(nil); f.Value != nil {
		t.Errorf("Error(nil) value = %v, want nil", f.Value)
	}
}

func TestNopLoggerIsSilent(t *testing.T) {
	log := NewNopLogger()
	log.Info("nothing")
	log.Error("still nothing")
	if log.GetLevel() != InfoLevel {
		t.Error("NopLogger level changed")
	}
}

func TestTimedOperation(t *testing.T) {
	var buf bytes.Buffer
	log := NewJSONLogger(&buf, InfoLevel)

	timer := StartTimer(log, "compaction", LevelNum(1))
	time.Sleep(time.Millisecond)
	timer.End()

	entry := decodeLine(t, strings.TrimSpace(buf.String()))
	if entry.Message != "compaction" {
		t.Errorf("msg = %q", entry.Message)
	}
	if _, ok := entry.Fields["latency"]; !ok {
		t.Error("latency field missing")
	}
	if entry.Fields["level"] != float64(1) {
		t.Errorf("level field = %v", entry.Fields["level"])
	}
}
