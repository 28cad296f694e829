package errors

import (
	"errors"
	"fmt"
)

// Authorization errors indicate the process could not obtain a usable key.
var (
	// ErrNoKeySource indicates no key source (device or license file) was available.
	ErrNoKeySource = errors.New("no key source available")

	// ErrLicenseNotFound indicates the license file could not be located.
	ErrLicenseNotFound = errors.New("license file not found")

	// ErrDeviceUnavailable indicates the authorization device did not respond.
	ErrDeviceUnavailable = errors.New("authorization device unavailable")

	// ErrInvalidKeyLength indicates a resolved key is not 16, 24, or 32 bytes.
	ErrInvalidKeyLength = errors.New("key length must be 16, 24, or 32 bytes")

	// ErrKeyNotResolved indicates key resolution has not succeeded yet.
	ErrKeyNotResolved = errors.New("encryption key has not been resolved")
)

// Cipher errors indicate structural failures during encrypt or decrypt.
var (
	// ErrCiphertextTooShort indicates an artifact is shorter than its minimum structural length.
	ErrCiphertextTooShort = errors.New("ciphertext shorter than minimum structural length")

	// ErrMissingHeader indicates a random-IV artifact is missing its header.
	ErrMissingHeader = errors.New("artifact header missing or malformed")

	// ErrUnknownIVPolicy indicates an unrecognized IV policy name.
	ErrUnknownIVPolicy = errors.New("unknown IV policy")
)

// Loader errors indicate failures after an artifact was successfully located.
var (
	// ErrNotInitialized indicates the loader system has not been initialized.
	ErrNotInitialized = errors.New("loader system has not been initialized")

	// ErrNoHandleBuilder indicates no handle builder is registered for model loading.
	ErrNoHandleBuilder = errors.New("no handle builder registered")

	// ErrArtifactNotFound indicates a registered artifact file is missing on disk.
	ErrArtifactNotFound = errors.New("encrypted artifact not found on disk")
)

// Build errors indicate failures while preparing an encrypted build tree.
var (
	// ErrProjectRootNotFound indicates the project root does not exist or is not a directory.
	ErrProjectRootNotFound = errors.New("project root not found")

	// ErrBuildDirMissing indicates the build output directory does not exist.
	ErrBuildDirMissing = errors.New("build directory does not exist")
)

// Manifest errors indicate issues with the build manifest.
var (
	// ErrManifestInvalid indicates the manifest could not be parsed.
	ErrManifestInvalid = errors.New("manifest is malformed")

	// ErrManifestNotFound indicates no manifest exists at the expected location.
	ErrManifestNotFound = errors.New("manifest not found")
)

// AuthError reports a key-resolution failure with its source attached.
// A wrapped ErrNoKeySource is recoverable (callers may degrade in DEV mode);
// anything else means a source was present but invalid and is fatal.
type AuthError struct {
	Source string // "device", "license", or "config"
	Err    error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth %s: %v", e.Source, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// DecryptionError reports a failed decrypt with the artifact path attached.
type DecryptionError struct {
	Path string
	Err  error
}

func (e *DecryptionError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("decrypt: %v", e.Err)
	}
	return fmt.Sprintf("decrypt %s: %v", e.Path, e.Err)
}

func (e *DecryptionError) Unwrap() error { return e.Err }

// EncryptionError reports a failed encrypt with the artifact path attached.
type EncryptionError struct {
	Path string
	Err  error
}

func (e *EncryptionError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("encrypt: %v", e.Err)
	}
	return fmt.Sprintf("encrypt %s: %v", e.Path, e.Err)
}

func (e *EncryptionError) Unwrap() error { return e.Err }

// LoaderError reports an activation or handle-construction failure with the
// logical name or artifact path attached.
type LoaderError struct {
	Name string
	Err  error
}

func (e *LoaderError) Error() string {
	return fmt.Sprintf("load %s: %v", e.Name, e.Err)
}

func (e *LoaderError) Unwrap() error { return e.Err }

// ConfigError reports a malformed configuration or manifest file.
type ConfigError struct {
	Path string
	Err  error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config %s: %v", e.Path, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }
