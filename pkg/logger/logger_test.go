package logger

import (
	"path/filepath"
	"testing"

	"github.com/zoff-tech/go-worker/pkg/config"
)

func TestNew_Success(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.LogSettings
	}{
		{
			name: "json stdout debug",
			cfg:  config.LogSettings{Level: "debug", Format: "json", OutputPath: "stdout"},
		},
		{
			name: "console stderr info",
			cfg:  config.LogSettings{Level: "info", Format: "console", OutputPath: "stderr"},
		},
		{
			name: "defaults",
			cfg:  config.LogSettings{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log, err := New(tt.cfg)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if log == nil || log.Logger == nil {
				t.Fatal("expected non-nil logger")
			}
		})
	}
}

func TestNew_InvalidLevel(t *testing.T) {
	_, err := New(config.LogSettings{Level: "shout"})
	if err == nil {
		t.Fatal("expected error for invalid level")
	}
}

func TestNew_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "worker.log")
	log, err := New(config.LogSettings{Level: "info", OutputPath: path})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	log.Info("hello")
	log.Sync()
}

func TestNop(t *testing.T) {
	log := Nop()
	if log == nil || log.Logger == nil {
		t.Fatal("expected non-nil nop logger")
	}
	log.Named("sub").Info("discarded")
}
