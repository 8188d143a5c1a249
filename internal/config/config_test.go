package config

import (
	"os"
	"testing"
	"time"
)

func TestNew_Defaults(t *testing.T) {
	for _, env := range []string{EnvPort, EnvCropPercent, EnvMirror, EnvScrollAttempts} {
		os.Unsetenv(env)
	}

	cfg, err := New()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port() != DefaultPort {
		t.Errorf("Port() = %d, want %d", cfg.Port(), DefaultPort)
	}
	if cfg.CropPercent() != DefaultCropPercent {
		t.Errorf("CropPercent() = %v, want %v", cfg.CropPercent(), DefaultCropPercent)
	}
	if !cfg.Mirror() {
		t.Error("Mirror() = false, want true by default")
	}
	if cfg.ScrollAttempts() != DefaultScrollAttempts {
		t.Errorf("ScrollAttempts() = %d, want %d", cfg.ScrollAttempts(), DefaultScrollAttempts)
	}
	if cfg.FetchTimeout() != 120*time.Second {
		t.Errorf("FetchTimeout() = %v, want 120s", cfg.FetchTimeout())
	}
}

func TestNew_PortFromEnv(t *testing.T) {
	os.Setenv(EnvPort, "9100")
	defer os.Unsetenv(EnvPort)

	cfg, err := New()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port() != 9100 {
		t.Errorf("Port() = %d, want 9100", cfg.Port())
	}
}

func TestNew_InvalidPort(t *testing.T) {
	tests := []string{"0", "65536", "notaport"}
	for _, val := range tests {
		os.Setenv(EnvPort, val)
		_, err := New()
		os.Unsetenv(EnvPort)
		if err == nil {
			t.Errorf("New() with %s=%q should fail", EnvPort, val)
		}
	}
}

func TestNew_CropPercentFromEnv(t *testing.T) {
	os.Setenv(EnvCropPercent, "10.5")
	defer os.Unsetenv(EnvCropPercent)

	cfg, err := New()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.CropPercent() != 10.5 {
		t.Errorf("CropPercent() = %v, want 10.5", cfg.CropPercent())
	}
}

func TestNew_CropPercentOutOfRange(t *testing.T) {
	tests := []string{"-1", "50", "51", "abc"}
	for _, val := range tests {
		os.Setenv(EnvCropPercent, val)
		_, err := New()
		os.Unsetenv(EnvCropPercent)
		if err == nil {
			t.Errorf("New() with %s=%q should fail", EnvCropPercent, val)
		}
	}
}

func TestNew_MirrorDisabled(t *testing.T) {
	os.Setenv(EnvMirror, "false")
	defer os.Unsetenv(EnvMirror)

	cfg, err := New()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Mirror() {
		t.Error("Mirror() = true, want false")
	}
}

func TestNew_ScrollAttemptsValidation(t *testing.T) {
	os.Setenv(EnvScrollAttempts, "0")
	defer os.Unsetenv(EnvScrollAttempts)

	if _, err := New(); err == nil {
		t.Error("New() with zero scroll attempts should fail")
	}
}

func TestDerivedPaths(t *testing.T) {
	os.Setenv(EnvDataDir, "/tmp/hashreel-test")
	defer os.Unsetenv(EnvDataDir)

	cfg, err := New()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.DBPath() != "/tmp/hashreel-test/"+DBFilename {
		t.Errorf("DBPath() = %s", cfg.DBPath())
	}
	if cfg.LedgerPath() != "/tmp/hashreel-test/"+LedgerFilename {
		t.Errorf("LedgerPath() = %s", cfg.LedgerPath())
	}
	if cfg.VideosDir() != "/tmp/hashreel-test/videos" {
		t.Errorf("VideosDir() = %s", cfg.VideosDir())
	}
	if cfg.OutputDir() != "/tmp/hashreel-test/edited" {
		t.Errorf("OutputDir() = %s", cfg.OutputDir())
	}
}

func TestNew_ToolPathsFromEnv(t *testing.T) {
	os.Setenv(EnvFetcherPath, "/opt/bin/yt-dlp")
	defer os.Unsetenv(EnvFetcherPath)

	cfg, err := New()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.FetcherPath() != "/opt/bin/yt-dlp" {
		t.Errorf("FetcherPath() = %s, want /opt/bin/yt-dlp", cfg.FetcherPath())
	}
	if cfg.EncoderPath() != DefaultEncoderPath {
		t.Errorf("EncoderPath() = %s, want default", cfg.EncoderPath())
	}
}
