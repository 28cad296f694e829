package crypto

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"io"
	"os"
	"path/filepath"

	kerrors "github.com/tuatara-dev/korowai/internal/errors"
)

// Artifact header for random-IV encryption: 4-byte magic followed by the
// 16-byte IV, then the cipher body. Legacy artifacts have no header.
var headerMagic = []byte("KRW1")

const (
	ivSize     = aes.BlockSize
	headerSize = 4 + ivSize
)

// legacyIV is the fixed IV used by the legacy artifact format. Identical
// plaintext prefixes encrypt identically under it; it exists only for
// byte-compatibility with artifacts already in the field and is not the
// default for new builds.
var legacyIV = []byte("KorowaiLegacyIV!")

// IVPolicy selects how the IV is chosen on encrypt and located on decrypt.
type IVPolicy int

const (
	// IVRandom generates a fresh IV per encryption and stores it in the
	// artifact header.
	IVRandom IVPolicy = iota

	// IVLegacy uses the fixed IV and writes no header.
	IVLegacy

	// IVAuto is decrypt-only: artifacts carrying the header are treated as
	// IVRandom, everything else as IVLegacy. Encrypting under IVAuto
	// behaves as IVRandom.
	IVAuto
)

// ParseIVPolicy maps a manifest/config policy name to an IVPolicy.
func ParseIVPolicy(name string) (IVPolicy, error) {
	switch name {
	case "random":
		return IVRandom, nil
	case "legacy":
		return IVLegacy, nil
	case "auto":
		return IVAuto, nil
	default:
		return 0, fmt.Errorf("%w: %q", kerrors.ErrUnknownIVPolicy, name)
	}
}

// String returns the manifest name of the policy.
func (p IVPolicy) String() string {
	switch p {
	case IVRandom:
		return "random"
	case IVLegacy:
		return "legacy"
	case IVAuto:
		return "auto"
	default:
		return fmt.Sprintf("unknown(%d)", int(p))
	}
}

// ValidKey reports whether key has an acceptable AES length.
func ValidKey(key []byte) bool {
	switch len(key) {
	case 16, 24, 32:
		return true
	}
	return false
}

// Cipher is the stateless encrypt/decrypt engine: AES in CFB mode (segment
// size 128) with partial encryption. Payloads larger than Threshold have
// only their first Threshold bytes passed through the cipher; the remainder
// is copied verbatim. This is a deliberate security/performance trade-off
// for large binary artifacts, not an accident: bytes past the threshold are
// identical between plaintext and ciphertext.
type Cipher struct {
	Threshold int64
	Policy    IVPolicy
}

// New returns a Cipher with the given partial-encryption threshold and IV
// policy. A non-positive threshold falls back to 10 MiB.
func New(threshold int64, policy IVPolicy) *Cipher {
	if threshold <= 0 {
		threshold = 10 * 1024 * 1024
	}
	return &Cipher{Threshold: threshold, Policy: policy}
}

// Encrypt encrypts plaintext under key according to the cipher's IV policy.
// The encrypted region has the same length as the corresponding plaintext
// region; random-IV output is prefixed with the artifact header.
func (c *Cipher) Encrypt(plaintext, key []byte) ([]byte, error) {
	if !ValidKey(key) {
		return nil, &kerrors.EncryptionError{Err: fmt.Errorf("%w: got %d bytes", kerrors.ErrInvalidKeyLength, len(key))}
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, &kerrors.EncryptionError{Err: err}
	}

	n := c.encLen(int64(len(plaintext)))

	if c.Policy == IVLegacy {
		out := make([]byte, len(plaintext))
		cipher.NewCFBEncrypter(block, legacyIV).XORKeyStream(out[:n], plaintext[:n])
		copy(out[n:], plaintext[n:])
		return out, nil
	}

	out := make([]byte, headerSize+len(plaintext))
	copy(out, headerMagic)
	iv := out[4:headerSize]
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return nil, &kerrors.EncryptionError{Err: fmt.Errorf("failed to generate IV: %w", err)}
	}

	body := out[headerSize:]
	cipher.NewCFBEncrypter(block, iv).XORKeyStream(body[:n], plaintext[:n])
	copy(body[n:], plaintext[n:])
	return out, nil
}

// Decrypt reverses Encrypt. The artifact's IV policy is never guessed
// silently: under IVRandom a missing header is an error, under IVLegacy the
// whole input is treated as body, and only under the explicit IVAuto policy
// is the header sniffed.
func (c *Cipher) Decrypt(data, key []byte) ([]byte, error) {
	if !ValidKey(key) {
		return nil, &kerrors.DecryptionError{Err: fmt.Errorf("%w: got %d bytes", kerrors.ErrInvalidKeyLength, len(key))}
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, &kerrors.DecryptionError{Err: err}
	}

	policy := c.Policy
	if policy == IVAuto {
		if hasHeader(data) {
			policy = IVRandom
		} else {
			policy = IVLegacy
		}
	}

	var iv, body []byte
	switch policy {
	case IVRandom:
		if len(data) < headerSize {
			return nil, &kerrors.DecryptionError{Err: fmt.Errorf("%w: %d bytes, need at least %d", kerrors.ErrCiphertextTooShort, len(data), headerSize)}
		}
		if !bytes.Equal(data[:4], headerMagic) {
			return nil, &kerrors.DecryptionError{Err: kerrors.ErrMissingHeader}
		}
		iv = data[4:headerSize]
		body = data[headerSize:]
	default:
		iv = legacyIV
		body = data
	}

	n := c.encLen(int64(len(body)))
	out := make([]byte, len(body))
	cipher.NewCFBDecrypter(block, iv).XORKeyStream(out[:n], body[:n])
	copy(out[n:], body[n:])
	return out, nil
}

// EncryptFile encrypts the file at inputPath and writes the artifact to
// outputPath, creating parent directories as needed.
func (c *Cipher) EncryptFile(inputPath, outputPath string, key []byte) error {
	plaintext, err := os.ReadFile(inputPath)
	if err != nil {
		return &kerrors.EncryptionError{Path: inputPath, Err: err}
	}

	encrypted, err := c.Encrypt(plaintext, key)
	if err != nil {
		return &kerrors.EncryptionError{Path: inputPath, Err: err}
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return &kerrors.EncryptionError{Path: outputPath, Err: err}
	}

	if err := os.WriteFile(outputPath, encrypted, 0600); err != nil {
		return &kerrors.EncryptionError{Path: outputPath, Err: err}
	}

	return nil
}

// DecryptFile decrypts the artifact at path into memory. The plaintext
// never touches disk.
func (c *Cipher) DecryptFile(path string, key []byte) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &kerrors.DecryptionError{Path: path, Err: err}
	}

	plaintext, err := c.Decrypt(data, key)
	if err != nil {
		return nil, &kerrors.DecryptionError{Path: path, Err: err}
	}

	return plaintext, nil
}

// EncryptedByteCount returns how many bytes of a payload of the given size
// actually pass through the cipher.
func (c *Cipher) EncryptedByteCount(size int64) int64 {
	return c.encLen(size)
}

func (c *Cipher) encLen(size int64) int64 {
	if size < c.Threshold {
		return size
	}
	return c.Threshold
}

// hasHeader matches on the magic alone, not the full header length: a
// random-IV artifact truncated mid-header must route to the random path
// and fail structurally there, not silently decrypt as legacy.
func hasHeader(data []byte) bool {
	return len(data) >= len(headerMagic) && bytes.Equal(data[:4], headerMagic)
}
