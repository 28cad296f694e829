package config

import (
	"fmt"
	"os"
	"strconv"

	kerrors "github.com/tuatara-dev/korowai/internal/errors"
)

// Operating modes for key resolution.
const (
	// ModeDev permits raw keys in the license file and degrades to
	// pass-through when no key source exists.
	ModeDev = "DEV"

	// ModeProduction requires a device-wrapped license and fails
	// initialization hard when no key resolves.
	ModeProduction = "PROD"
)

// DefaultLicenseDir is where the resolver looks for license files when no
// path is configured.
const DefaultLicenseDir = "/etc/korowai"

// DefaultThreshold is the partial-encryption boundary: payloads larger than
// this have only their first DefaultThreshold bytes passed through the
// cipher.
const DefaultThreshold = 10 * 1024 * 1024

type Config struct {
	Auth       AuthConfig       `toml:"auth"`
	Encryption EncryptionConfig `toml:"encryption"`
	Discovery  DiscoveryConfig  `toml:"discovery"`
	Build      BuildConfig      `toml:"build"`
}

type AuthConfig struct {
	// Mode is ModeDev or ModeProduction.
	Mode string `toml:"mode"`

	// LicensePath overrides the default license file location.
	LicensePath string `toml:"license_path"`

	// TimeoutSeconds bounds calls to the authorization device.
	TimeoutSeconds int `toml:"timeout_seconds"`

	// Strict makes initialization fail hard even in DEV mode when no key
	// source is available.
	Strict bool `toml:"strict"`
}

type EncryptionConfig struct {
	// ThresholdBytes is the partial-encryption boundary in bytes.
	ThresholdBytes int64 `toml:"threshold_bytes"`

	// IVPolicy is "random" or "legacy". New builds default to random
	// per-file IVs; legacy keeps the fixed IV for byte-compatible artifacts.
	IVPolicy string `toml:"iv_policy"`
}

type DiscoveryConfig struct {
	ExcludeDirs     []string `toml:"exclude_dirs"`
	ExcludeFiles    []string `toml:"exclude_files"`
	UnitExtensions  []string `toml:"unit_extensions"`
	ModelExtensions []string `toml:"model_extensions"`
}

type BuildConfig struct {
	// BuildDir is the output directory, relative to the project root.
	BuildDir string `toml:"build_dir"`

	// ExcludeEncrypt lists files copied into the build but never encrypted
	// (entry points that must stay importable, for example).
	ExcludeEncrypt []string `toml:"exclude_encrypt"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Auth: AuthConfig{
			Mode:           ModeDev,
			TimeoutSeconds: 10,
		},
		Encryption: EncryptionConfig{
			ThresholdBytes: DefaultThreshold,
			IVPolicy:       "random",
		},
		Discovery: DiscoveryConfig{
			ExcludeDirs: []string{
				".git", "__pycache__", "build", "dist", "release",
				"venv", "env", "node_modules",
			},
			ExcludeFiles:    []string{"*.pyc", "*.log", "*.tmp"},
			UnitExtensions:  []string{".py"},
			ModelExtensions: []string{".onnx"},
		},
		Build: BuildConfig{
			BuildDir: "build",
		},
	}
}

// Load reads korowai.toml from path and applies environment overrides.
// A missing file is not an error: defaults plus environment apply.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := LoadTOML(path, cfg); err != nil {
				return nil, &kerrors.ConfigError{Path: path, Err: err}
			}
		} else if !os.IsNotExist(err) {
			return nil, &kerrors.ConfigError{Path: path, Err: err}
		}
	}

	cfg.applyEnv()

	if err := cfg.validate(); err != nil {
		return nil, &kerrors.ConfigError{Path: path, Err: err}
	}

	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("KOROWAI_AUTH_MODE"); v != "" {
		c.Auth.Mode = v
	}
	if v := os.Getenv("KOROWAI_LICENSE_PATH"); v != "" {
		c.Auth.LicensePath = v
	}
	if v := os.Getenv("KOROWAI_ENC_LEN"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			c.Encryption.ThresholdBytes = n
		}
	}
	if v := os.Getenv("KOROWAI_IV_POLICY"); v != "" {
		c.Encryption.IVPolicy = v
	}
}

func (c *Config) validate() error {
	if c.Auth.Mode != ModeDev && c.Auth.Mode != ModeProduction {
		return fmt.Errorf("auth.mode must be %q or %q, got %q", ModeDev, ModeProduction, c.Auth.Mode)
	}
	if c.Encryption.ThresholdBytes <= 0 {
		return fmt.Errorf("encryption.threshold_bytes must be positive, got %d", c.Encryption.ThresholdBytes)
	}
	switch c.Encryption.IVPolicy {
	case "random", "legacy":
	default:
		return fmt.Errorf("encryption.iv_policy must be \"random\" or \"legacy\", got %q", c.Encryption.IVPolicy)
	}
	if c.Auth.TimeoutSeconds <= 0 {
		return fmt.Errorf("auth.timeout_seconds must be positive, got %d", c.Auth.TimeoutSeconds)
	}
	return nil
}
