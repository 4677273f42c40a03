package logging

import (
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"
)

func TestSetupWritesToRotatingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vyapaar.log")

	logger, err := Setup(ModeProduction, path)
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	t.Cleanup(func() { zap.ReplaceGlobals(zap.NewNop()) })

	zap.S().Infow("sale created", "shop", "shop-demo")
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if len(data) == 0 {
		t.Fatalf("expected log file to have content")
	}
}

func TestSetupDevelopmentWithoutFile(t *testing.T) {
	logger, err := Setup("development", "")
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	t.Cleanup(func() { zap.ReplaceGlobals(zap.NewNop()) })

	if zap.L() != logger {
		t.Fatalf("expected logger to be installed globally")
	}
}
