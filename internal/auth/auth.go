package auth

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/tuatara-dev/korowai/internal/config"
	"github.com/tuatara-dev/korowai/internal/crypto"
	kerrors "github.com/tuatara-dev/korowai/internal/errors"
	logger "github.com/tuatara-dev/korowai/internal/logging"
)

// Key sources reported by Info.
const (
	SourceNone          = "none"
	SourceLicenseFile   = "license_file"
	SourceSealedLicense = "device_sealed_license"
)

// Manager resolves the process encryption key from a prioritized set of
// sources and caches it for the process lifetime.
//
// Resolution order: a device-specific license located through the
// authorization device, then the configured (or default) license file. In
// DEV mode the license file holds the raw key; in production mode it holds
// device-sealed ciphertext and a device is mandatory.
type Manager struct {
	mode        string
	device      Device
	licensePath string
	timeout     time.Duration
	log         logger.Logger

	mu      sync.Mutex
	key     []byte
	source  string
	version uint64
}

// NewManager builds a Manager from the auth configuration. device may be
// nil in DEV mode.
func NewManager(cfg config.AuthConfig, device Device, log logger.Logger) *Manager {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Manager{
		mode:        cfg.Mode,
		device:      device,
		licensePath: cfg.LicensePath,
		timeout:     timeout,
		log:         log,
	}
}

// ResolveKey returns the process encryption key, resolving it on first use.
// The returned slice is a copy: a concurrent Rotate cannot mutate key
// material an in-flight decrypt already captured.
func (m *Manager) ResolveKey() ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.key != nil {
		return append([]byte(nil), m.key...), nil
	}

	key, source, err := m.resolve()
	if err != nil {
		return nil, err
	}

	if !crypto.ValidKey(key) {
		// A present-but-invalid key is fatal, never truncated or padded.
		return nil, &kerrors.AuthError{Source: source, Err: fmt.Errorf("%w: got %d bytes", kerrors.ErrInvalidKeyLength, len(key))}
	}

	m.key = key
	m.source = source
	m.version++
	m.log.Infof("Encryption key resolved from %s (%d bytes)", source, len(key))

	return append([]byte(nil), m.key...), nil
}

// Rotate discards the cached key so the next ResolveKey resolves afresh.
// In-flight operations keep the copies they already hold.
func (m *Manager) Rotate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.key = nil
	m.source = ""
}

// Resolved reports whether a key is currently cached.
func (m *Manager) Resolved() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.key != nil
}

func (m *Manager) resolve() ([]byte, string, error) {
	path, err := m.findLicenseFile()
	if err != nil {
		return nil, SourceNone, err
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, SourceNone, &kerrors.AuthError{
				Source: "license",
				Err:    fmt.Errorf("%w: %w at %s", kerrors.ErrNoKeySource, kerrors.ErrLicenseNotFound, path),
			}
		}
		return nil, SourceNone, &kerrors.AuthError{Source: "license", Err: err}
	}

	content := strings.TrimSpace(string(raw))
	if content == "" {
		return nil, SourceNone, &kerrors.AuthError{Source: "license", Err: fmt.Errorf("license file %s is empty", path)}
	}

	if m.mode == config.ModeDev {
		m.log.Debugf("DEV mode: using raw key from %s", path)
		return []byte(content), SourceLicenseFile, nil
	}

	if m.device == nil {
		return nil, SourceNone, &kerrors.AuthError{
			Source: "device",
			Err:    fmt.Errorf("%w: production mode requires an authorization device", kerrors.ErrNoKeySource),
		}
	}

	unwrapped, err := m.decryptLicense(content)
	if err != nil {
		// The license exists but the device cannot unwrap it: fatal.
		return nil, SourceNone, &kerrors.AuthError{Source: "device", Err: err}
	}

	unwrapped = strings.TrimSpace(unwrapped)
	if unwrapped == "" {
		return nil, SourceNone, &kerrors.AuthError{Source: "device", Err: fmt.Errorf("device returned an empty key for %s", path)}
	}

	return []byte(unwrapped), SourceSealedLicense, nil
}

// findLicenseFile picks the license path: the configured path wins; with a
// device available, a device-specific file is preferred over the shared
// default.
func (m *Manager) findLicenseFile() (string, error) {
	if m.licensePath != "" {
		return m.licensePath, nil
	}

	fallback := filepath.Join(config.DefaultLicenseDir, "license.dat")

	if m.device != nil {
		id, err := m.deviceID()
		if err != nil {
			m.log.Warnf("Failed to get device ID, falling back to %s: %v", fallback, err)
			return fallback, nil
		}

		candidate := filepath.Join(config.DefaultLicenseDir, id+".license")
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}

	return fallback, nil
}

func (m *Manager) deviceID() (string, error) {
	return m.boundedCall(func(ctx context.Context) (string, error) {
		return m.device.DeviceID(ctx)
	})
}

func (m *Manager) decryptLicense(sealed string) (string, error) {
	return m.boundedCall(func(ctx context.Context) (string, error) {
		return m.device.DecryptLicense(ctx, sealed)
	})
}

// boundedCall enforces the hard timeout around a device call even when the
// implementation ignores context cancellation.
func (m *Manager) boundedCall(fn func(ctx context.Context) (string, error)) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	type result struct {
		value string
		err   error
	}

	ch := make(chan result, 1)
	go func() {
		value, err := fn(ctx)
		ch <- result{value, err}
	}()

	select {
	case r := <-ch:
		return r.value, r.err
	case <-ctx.Done():
		return "", fmt.Errorf("%w: timed out after %s", kerrors.ErrDeviceUnavailable, m.timeout)
	}
}

// IsNoSource reports whether err means "no key source available" — the one
// recoverable authorization failure (DEV mode may degrade to pass-through).
func IsNoSource(err error) bool {
	return errors.Is(err, kerrors.ErrNoKeySource)
}

// Info describes the authorization state for status reporting. It never
// contains key material.
type Info struct {
	Mode            string
	KeySource       string
	KeyResolved     bool
	KeyLength       int
	DeviceAvailable bool
}

// Info returns the current authorization state.
func (m *Manager) Info() Info {
	m.mu.Lock()
	defer m.mu.Unlock()

	info := Info{
		Mode:            m.mode,
		KeySource:       SourceNone,
		DeviceAvailable: m.device != nil,
	}

	if m.key != nil {
		info.KeyResolved = true
		info.KeyLength = len(m.key)
		info.KeySource = m.source
	}

	return info
}
