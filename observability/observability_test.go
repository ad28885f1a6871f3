package observability

import (
	"bytes"
	"strings"
	"testing"
)

func TestTextLoggerEmitsSortedFields(t *testing.T) {
	var buf bytes.Buffer
	log := NewTextLogger(&buf, LevelInfo)

	log.Info("document processed", String("file", "a.pdf"), Int("regions", 3))

	line := strings.TrimSpace(buf.String())
	if line != "INFO document processed file=a.pdf regions=3" {
		t.Fatalf("unexpected line: %q", line)
	}
}

func TestTextLoggerFiltersBelowMinLevel(t *testing.T) {
	var buf bytes.Buffer
	log := NewTextLogger(&buf, LevelWarn)

	log.Debug("noise")
	log.Info("noise")
	log.Error("kept", Error("err", nil))

	out := buf.String()
	if strings.Contains(out, "noise") {
		t.Fatalf("low-severity lines leaked: %q", out)
	}
	if !strings.Contains(out, "ERROR kept") {
		t.Fatalf("error line missing: %q", out)
	}
}

func TestWithBindsFields(t *testing.T) {
	var buf bytes.Buffer
	log := NewTextLogger(&buf, LevelDebug).With(String("run", "r1"))

	log.Info("start")
	if !strings.Contains(buf.String(), "run=r1") {
		t.Fatalf("bound field missing: %q", buf.String())
	}
}

func TestNopLoggerIsInert(t *testing.T) {
	var log Logger = NopLogger{}
	log = log.With(String("k", "v"))
	log.Debug("a")
	log.Info("b")
	log.Warn("c")
	log.Error("d")
}
