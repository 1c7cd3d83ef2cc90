package logger

import (
	"regexp"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// stripANSI removes ANSI color codes from a string for testing.
func stripANSI(str string) string {
	ansiRegex := regexp.MustCompile(`\x1b\[[0-9;]*m`)
	return ansiRegex.ReplaceAllString(str, "")
}

func TestMinimalEncoderBasicShape(t *testing.T) {
	encoder := newMinimalEncoder()

	entry := zapcore.Entry{
		Level:      zapcore.InfoLevel,
		Time:       time.Date(2026, 7, 30, 13, 4, 35, 0, time.UTC),
		LoggerName: "scheduler",
		Message:    "tick processed",
	}

	buf, err := encoder.EncodeEntry(entry, nil)
	if err != nil {
		t.Fatalf("EncodeEntry() error = %v", err)
	}

	clean := stripANSI(buf.String())
	if !strings.Contains(clean, "13:04:35") {
		t.Errorf("expected timestamp in output, got: %s", clean)
	}
	if !strings.Contains(clean, "tick processed") {
		t.Errorf("expected message in output, got: %s", clean)
	}
	if !strings.Contains(clean, "s.cheduler") && !strings.Contains(clean, "scheduler") {
		t.Errorf("expected logger name reflected in output, got: %s", clean)
	}
}

func TestMinimalEncoderLevelColoring(t *testing.T) {
	entry := zapcore.Entry{
		Level:   zapcore.WarnLevel,
		Time:    time.Now(),
		Message: "tick loop stuttered",
	}

	buf, err := newMinimalEncoder().EncodeEntry(entry, nil)
	if err != nil {
		t.Fatalf("EncodeEntry() error = %v", err)
	}

	clean := stripANSI(buf.String())
	if !strings.Contains(clean, "WARN") {
		t.Errorf("expected WARN level marker, got: %s", clean)
	}
}

func TestMinimalEncoderExtractsKnownFields(t *testing.T) {
	encoder := newMinimalEncoder()

	entry := zapcore.Entry{
		Level:   zapcore.InfoLevel,
		Time:    time.Now(),
		Message: "alarm fired",
	}

	fields := []zapcore.Field{
		zap.String("code_id", "alarm-42"),
		zap.Int("due_count", 3),
		zap.String("unrelated_field", "should not appear"),
	}

	buf, err := encoder.EncodeEntry(entry, fields)
	if err != nil {
		t.Fatalf("EncodeEntry() error = %v", err)
	}

	clean := stripANSI(buf.String())
	if !strings.Contains(clean, "alarm-42") {
		t.Errorf("expected code_id value in output, got: %s", clean)
	}
	if !strings.Contains(clean, "3") {
		t.Errorf("expected due_count value in output, got: %s", clean)
	}
	if strings.Contains(clean, "should not appear") {
		t.Errorf("encoder leaked an unlisted field into console output: %s", clean)
	}
}

func TestMinimalEncoderCloneIndependence(t *testing.T) {
	encoder := newMinimalEncoder()
	clone := encoder.Clone()

	if clone == encoder {
		t.Error("Clone() returned the same encoder instance")
	}
}

func TestAbbreviateName(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"scheduler", "scheduler"},
		{"scheduler.tick", "s.tick"},
		{"controller.lifecycle.claim", "c.lifecycle.claim"},
	}

	for _, tt := range tests {
		if got := abbreviateName(tt.name); got != tt.want {
			t.Errorf("abbreviateName(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestGetFieldValue(t *testing.T) {
	tests := []struct {
		field zapcore.Field
		want  string
	}{
		{zap.String("k", "v"), "v"},
		{zap.Int("k", 42), "42"},
		{zap.Int64("k", 99), "99"},
	}

	for _, tt := range tests {
		if got := getFieldValue(tt.field); got != tt.want {
			t.Errorf("getFieldValue(%+v) = %q, want %q", tt.field, got, tt.want)
		}
	}
}
