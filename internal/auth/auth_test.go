package auth

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/tuatara-dev/korowai/internal/config"
	kerrors "github.com/tuatara-dev/korowai/internal/errors"
	logger "github.com/tuatara-dev/korowai/internal/logging"
)

func writeLicense(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("Failed to write license file: %v", err)
	}
	return path
}

func devManager(licensePath string) *Manager {
	return NewManager(config.AuthConfig{
		Mode:           config.ModeDev,
		LicensePath:    licensePath,
		TimeoutSeconds: 1,
	}, nil, logger.Logger{})
}

func TestResolveKey_DevModeRawKey(t *testing.T) {
	dir := t.TempDir()
	path := writeLicense(t, dir, "license.dat", "0123456789abcdef\n")

	m := devManager(path)
	key, err := m.ResolveKey()
	if err != nil {
		t.Fatalf("ResolveKey failed: %v", err)
	}
	if !bytes.Equal(key, []byte("0123456789abcdef")) {
		t.Errorf("Unexpected key: %q", key)
	}
}

func TestResolveKey_CachesAndCopies(t *testing.T) {
	dir := t.TempDir()
	path := writeLicense(t, dir, "license.dat", "0123456789abcdef")

	m := devManager(path)
	first, err := m.ResolveKey()
	if err != nil {
		t.Fatalf("ResolveKey failed: %v", err)
	}

	// Deleting the source must not matter: the key is cached.
	if err := os.Remove(path); err != nil {
		t.Fatalf("Failed to remove license: %v", err)
	}
	second, err := m.ResolveKey()
	if err != nil {
		t.Fatalf("Second ResolveKey failed: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Error("Cached key differs from first resolution")
	}

	// Mutating a returned copy must not poison the cache.
	second[0] ^= 0xFF
	third, err := m.ResolveKey()
	if err != nil {
		t.Fatalf("Third ResolveKey failed: %v", err)
	}
	if !bytes.Equal(first, third) {
		t.Error("Cache was mutated through a returned copy")
	}
}

func TestResolveKey_InvalidLengthsAreFatal(t *testing.T) {
	for _, key := range []string{"short15bytes!!!", "17bytes-key-here!", "twenty-byte-keyssss!", "thirtythree-byte-key-is-too-long!"} {
		dir := t.TempDir()
		path := writeLicense(t, dir, "license.dat", key)

		m := devManager(path)
		_, err := m.ResolveKey()
		if !errors.Is(err, kerrors.ErrInvalidKeyLength) {
			t.Errorf("Key of %d bytes: expected ErrInvalidKeyLength, got %v", len(key), err)
		}
		if IsNoSource(err) {
			t.Errorf("Key of %d bytes: invalid key must not be classified as recoverable", len(key))
		}
	}
}

func TestResolveKey_MissingLicenseIsRecoverable(t *testing.T) {
	m := devManager(filepath.Join(t.TempDir(), "nope.dat"))

	_, err := m.ResolveKey()
	if err == nil {
		t.Fatal("Expected an error for a missing license")
	}
	if !IsNoSource(err) {
		t.Errorf("Missing license should be a no-source failure, got %v", err)
	}

	var authErr *kerrors.AuthError
	if !errors.As(err, &authErr) {
		t.Errorf("Expected *AuthError, got %T", err)
	}
}

func TestResolveKey_ProductionRequiresDevice(t *testing.T) {
	dir := t.TempDir()
	path := writeLicense(t, dir, "license.dat", "c2VhbGVkLWJsb2I=")

	m := NewManager(config.AuthConfig{
		Mode:           config.ModeProduction,
		LicensePath:    path,
		TimeoutSeconds: 1,
	}, nil, logger.Logger{})

	_, err := m.ResolveKey()
	if !IsNoSource(err) {
		t.Errorf("Production mode without a device should be a no-source failure, got %v", err)
	}
}

func TestResolveKey_ProductionSealedLicense(t *testing.T) {
	device := NewSealedDevice("hunter2")
	sealed, err := device.SealLicense("0123456789abcdef")
	if err != nil {
		t.Fatalf("SealLicense failed: %v", err)
	}

	dir := t.TempDir()
	path := writeLicense(t, dir, "license.dat", sealed)

	m := NewManager(config.AuthConfig{
		Mode:           config.ModeProduction,
		LicensePath:    path,
		TimeoutSeconds: 5,
	}, device, logger.Logger{})

	key, err := m.ResolveKey()
	if err != nil {
		t.Fatalf("ResolveKey failed: %v", err)
	}
	if !bytes.Equal(key, []byte("0123456789abcdef")) {
		t.Errorf("Unexpected key: %q", key)
	}

	info := m.Info()
	if info.KeySource != SourceSealedLicense {
		t.Errorf("KeySource = %q, want %q", info.KeySource, SourceSealedLicense)
	}
}

func TestResolveKey_WrongDeviceSecretIsFatal(t *testing.T) {
	sealed, err := NewSealedDevice("right-secret").SealLicense("0123456789abcdef")
	if err != nil {
		t.Fatalf("SealLicense failed: %v", err)
	}

	dir := t.TempDir()
	path := writeLicense(t, dir, "license.dat", sealed)

	m := NewManager(config.AuthConfig{
		Mode:           config.ModeProduction,
		LicensePath:    path,
		TimeoutSeconds: 5,
	}, NewSealedDevice("wrong-secret"), logger.Logger{})

	_, err = m.ResolveKey()
	if err == nil {
		t.Fatal("Expected an error for an unopenable license")
	}
	if IsNoSource(err) {
		t.Error("An unopenable license is present-but-invalid, not a no-source failure")
	}
}

type hangingDevice struct{}

func (hangingDevice) DeviceID(ctx context.Context) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func (hangingDevice) DecryptLicense(ctx context.Context, sealed string) (string, error) {
	time.Sleep(10 * time.Second)
	return "", nil
}

func TestResolveKey_DeviceTimeoutIsBounded(t *testing.T) {
	dir := t.TempDir()
	path := writeLicense(t, dir, "license.dat", "whatever")

	m := NewManager(config.AuthConfig{
		Mode:           config.ModeProduction,
		LicensePath:    path,
		TimeoutSeconds: 1,
	}, hangingDevice{}, logger.Logger{})

	start := time.Now()
	_, err := m.ResolveKey()
	elapsed := time.Since(start)

	if err == nil {
		t.Fatal("Expected a timeout error")
	}
	if !errors.Is(err, kerrors.ErrDeviceUnavailable) {
		t.Errorf("Expected ErrDeviceUnavailable, got %v", err)
	}
	if elapsed > 3*time.Second {
		t.Errorf("Device call was not bounded: took %s", elapsed)
	}
}

func TestRotate_ForcesReResolution(t *testing.T) {
	dir := t.TempDir()
	path := writeLicense(t, dir, "license.dat", "0123456789abcdef")

	m := devManager(path)
	first, err := m.ResolveKey()
	if err != nil {
		t.Fatalf("ResolveKey failed: %v", err)
	}

	// Swap the license content, rotate, and expect the new key.
	if err := os.WriteFile(path, []byte("fedcba9876543210fedcba98"), 0600); err != nil {
		t.Fatalf("Failed to rewrite license: %v", err)
	}
	m.Rotate()

	second, err := m.ResolveKey()
	if err != nil {
		t.Fatalf("ResolveKey after Rotate failed: %v", err)
	}
	if bytes.Equal(first, second) {
		t.Error("Rotate did not force re-resolution")
	}
	if len(second) != 24 {
		t.Errorf("Expected the rotated 24-byte key, got %d bytes", len(second))
	}
}

func TestSealedDevice_RoundTrip(t *testing.T) {
	device := NewSealedDevice("provisioning-secret")

	sealed, err := device.SealLicense("0123456789abcdef")
	if err != nil {
		t.Fatalf("SealLicense failed: %v", err)
	}

	opened, err := device.DecryptLicense(context.Background(), sealed)
	if err != nil {
		t.Fatalf("DecryptLicense failed: %v", err)
	}
	if opened != "0123456789abcdef" {
		t.Errorf("Round trip mismatch: %q", opened)
	}

	id, err := device.DeviceID(context.Background())
	if err != nil {
		t.Fatalf("DeviceID failed: %v", err)
	}
	if len(id) != 12 {
		t.Errorf("DeviceID length = %d, want 12 hex chars", len(id))
	}
}
