package logger

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNewLevels(t *testing.T) {
	l, err := New("arena-service", "prod", "warn")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if l.Core().Enabled(zapcore.DebugLevel) || !l.Core().Enabled(zapcore.WarnLevel) {
		t.Fatalf("warn logger should drop debug and keep warn")
	}
	if _, err := New("arena-service", "local", "loud"); err == nil {
		t.Fatalf("expected invalid level error")
	}
}
