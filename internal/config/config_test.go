package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	kerrors "github.com/tuatara-dev/korowai/internal/errors"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if err := cfg.validate(); err != nil {
		t.Fatalf("Default configuration is invalid: %v", err)
	}
	if cfg.Auth.Mode != ModeDev {
		t.Errorf("Default mode = %q, want DEV", cfg.Auth.Mode)
	}
	if cfg.Encryption.ThresholdBytes != DefaultThreshold {
		t.Errorf("Default threshold = %d", cfg.Encryption.ThresholdBytes)
	}
	if cfg.Encryption.IVPolicy != "random" {
		t.Errorf("New builds must default to random IVs, got %q", cfg.Encryption.IVPolicy)
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "korowai.toml"))
	if err != nil {
		t.Fatalf("Load with a missing file failed: %v", err)
	}
	if cfg.Auth.Mode != ModeDev {
		t.Errorf("Mode = %q", cfg.Auth.Mode)
	}
}

func TestLoad_FileOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "korowai.toml")
	content := `[auth]
mode = "PROD"
license_path = "/opt/licenses/app.license"
timeout_seconds = 5

[encryption]
threshold_bytes = 1024
iv_policy = "legacy"

[build]
build_dir = "release"
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Auth.Mode != ModeProduction {
		t.Errorf("Mode = %q", cfg.Auth.Mode)
	}
	if cfg.Auth.LicensePath != "/opt/licenses/app.license" {
		t.Errorf("LicensePath = %q", cfg.Auth.LicensePath)
	}
	if cfg.Encryption.ThresholdBytes != 1024 {
		t.Errorf("ThresholdBytes = %d", cfg.Encryption.ThresholdBytes)
	}
	if cfg.Encryption.IVPolicy != "legacy" {
		t.Errorf("IVPolicy = %q", cfg.Encryption.IVPolicy)
	}
	if cfg.Build.BuildDir != "release" {
		t.Errorf("BuildDir = %q", cfg.Build.BuildDir)
	}

	// Sections the file omits keep their defaults.
	if len(cfg.Discovery.UnitExtensions) == 0 {
		t.Error("Discovery defaults lost")
	}
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("KOROWAI_AUTH_MODE", "PROD")
	t.Setenv("KOROWAI_LICENSE_PATH", "/tmp/env.license")
	t.Setenv("KOROWAI_ENC_LEN", "2048")
	t.Setenv("KOROWAI_IV_POLICY", "legacy")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Auth.Mode != ModeProduction {
		t.Errorf("Mode = %q", cfg.Auth.Mode)
	}
	if cfg.Auth.LicensePath != "/tmp/env.license" {
		t.Errorf("LicensePath = %q", cfg.Auth.LicensePath)
	}
	if cfg.Encryption.ThresholdBytes != 2048 {
		t.Errorf("ThresholdBytes = %d", cfg.Encryption.ThresholdBytes)
	}
	if cfg.Encryption.IVPolicy != "legacy" {
		t.Errorf("IVPolicy = %q", cfg.Encryption.IVPolicy)
	}
}

func TestLoad_RejectsInvalidValues(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{"bad mode", "[auth]\nmode = \"STAGING\"\n"},
		{"bad iv policy", "[encryption]\niv_policy = \"fixed\"\n"},
		{"negative threshold", "[encryption]\nthreshold_bytes = -1\n"},
		{"zero timeout", "[auth]\ntimeout_seconds = -3\n"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "korowai.toml")
			if err := os.WriteFile(path, []byte(tc.content), 0644); err != nil {
				t.Fatalf("Failed to write config: %v", err)
			}

			_, err := Load(path)
			if err == nil {
				t.Fatal("Expected a validation error")
			}
			var cfgErr *kerrors.ConfigError
			if !errors.As(err, &cfgErr) {
				t.Errorf("Expected *ConfigError, got %T", err)
			}
		})
	}
}
