package logging

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNew_Levels(t *testing.T) {
	logger, err := New("warn", false)
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}
	t.Cleanup(func() { _ = logger.Sync() })

	core := logger.Desugar().Core()
	if core.Enabled(zapcore.InfoLevel) {
		t.Error("expected info to be disabled at warn level")
	}
	if !core.Enabled(zapcore.WarnLevel) {
		t.Error("expected warn to be enabled")
	}
}

func TestNew_DebugOverridesLevel(t *testing.T) {
	logger, err := New("error", true)
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}

	if !logger.Desugar().Core().Enabled(zapcore.DebugLevel) {
		t.Error("expected debug level in debug mode")
	}
}

func TestNew_UnknownLevel(t *testing.T) {
	if _, err := New("loud", false); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestOrNop(t *testing.T) {
	if OrNop(nil) == nil {
		t.Error("expected no-op logger")
	}
}
