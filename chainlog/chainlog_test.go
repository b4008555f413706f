package chainlog

import (
	"bytes"
	"strings"
	"testing"
)

func TestParseLevelDefaultsToInfo(t *testing.T) {
	if ParseLevel("bogus") != LevelInfo {
		t.Fatal("expected an unrecognized level string to default to info")
	}
	if ParseLevel("DEBUG") != LevelDebug {
		t.Fatal("expected level parsing to be case-insensitive")
	}
}

func TestLoggerDropsBelowThreshold(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, LevelWarn)
	l.Infof("should not appear")
	l.Debugf("should not appear either")
	if buf.Len() != 0 {
		t.Fatalf("expected no output below threshold, got %q", buf.String())
	}

	l.Warnf("disk usage at %d%%", 90)
	if !strings.Contains(buf.String(), "[warn]") || !strings.Contains(buf.String(), "90%") {
		t.Fatalf("expected formatted warn line, got %q", buf.String())
	}
}

func TestLoggerErrorAlwaysPasses(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, LevelError)
	l.Errorf("boom: %v", "reason")
	if !strings.Contains(buf.String(), "[error] boom: reason") {
		t.Fatalf("expected error line to pass at error threshold, got %q", buf.String())
	}
}
