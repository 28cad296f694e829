package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/nacl/secretbox"
	"golang.org/x/crypto/pbkdf2"
)

// Device is an authorization mechanism that can identify itself and unwrap
// a sealed license. Hardware tokens implement this over their native SDKs;
// SealedDevice is the software implementation used in tests and on hosts
// provisioned with a shared secret instead of a token.
//
// Implementations should honor ctx cancellation; the Manager additionally
// enforces a hard timeout around every call.
type Device interface {
	// DeviceID returns a stable identifier used to locate a
	// device-specific license file.
	DeviceID(ctx context.Context) (string, error)

	// DecryptLicense unwraps a sealed license string into the raw key
	// material it protects.
	DecryptLicense(ctx context.Context, sealed string) (string, error)
}

// sealSalt is a fixed application salt for the license-seal key derivation.
// Changing it invalidates every sealed license in the field.
var sealSalt = []byte("korowai/license-seal/v1")

const sealIterations = 4096

// SealedDevice unwraps licenses sealed with a passphrase-derived secretbox
// key. The passphrase typically arrives via provisioning (for example the
// KOROWAI_DEVICE_SECRET environment variable) and never appears in the
// project tree.
type SealedDevice struct {
	key [32]byte
	id  string
}

// NewSealedDevice derives the seal key from secret.
func NewSealedDevice(secret string) *SealedDevice {
	d := &SealedDevice{}
	copy(d.key[:], pbkdf2.Key([]byte(secret), sealSalt, sealIterations, 32, sha256.New))

	sum := sha256.Sum256(d.key[:])
	d.id = hex.EncodeToString(sum[:6])
	return d
}

// DeviceID returns a short fingerprint of the seal key.
func (d *SealedDevice) DeviceID(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return d.id, nil
}

// DecryptLicense opens a license sealed by SealLicense.
func (d *SealedDevice) DecryptLicense(ctx context.Context, sealed string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(sealed))
	if err != nil {
		return "", fmt.Errorf("license is not valid base64: %w", err)
	}
	if len(raw) < 24 {
		return "", fmt.Errorf("sealed license too short: %d bytes", len(raw))
	}

	var nonce [24]byte
	copy(nonce[:], raw[:24])

	plaintext, ok := secretbox.Open(nil, raw[24:], &nonce, &d.key)
	if !ok {
		return "", fmt.Errorf("failed to open sealed license")
	}

	return string(plaintext), nil
}

// SealLicense wraps raw key material into a sealed license string suitable
// for a production license file. Used by the keygen command and tests.
func (d *SealedDevice) SealLicense(key string) (string, error) {
	var nonce [24]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := secretbox.Seal(nonce[:], []byte(key), &nonce, &d.key)
	return base64.StdEncoding.EncodeToString(sealed), nil
}
