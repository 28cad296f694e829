package cmd

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/tuatara-dev/korowai/internal/auth"
	"github.com/tuatara-dev/korowai/internal/ui"
)

var (
	keygenOut    string
	keygenLength int
	keygenSeal   bool
)

func init() {
	keygenCmd.Flags().StringVarP(&keygenOut, "out", "o", "license.dat", "license file to write")
	keygenCmd.Flags().IntVar(&keygenLength, "length", 32, "key length in bytes (16, 24, or 32)")
	keygenCmd.Flags().BoolVar(&keygenSeal, "seal", false, "seal the key with KOROWAI_DEVICE_SECRET for a production license")
}

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate a new license file",
	Long: `Generates a fresh encryption key and writes it as a license file. The key
is hex text, so the license stays editable and diff-friendly while the
decoded length matches the requested AES key size.

With --seal, the key is wrapped with the device secret from
KOROWAI_DEVICE_SECRET before writing, producing a production license that
only a matching device can unwrap. The key itself is never printed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		Logger.Infof("Starting keygen command")

		switch keygenLength {
		case 16, 24, 32:
		default:
			return Logger.ErrorfAndReturn("key length must be 16, 24, or 32 bytes, got %d", keygenLength)
		}

		// Hex text of length/2 random bytes: the license stays printable
		// and the key string has exactly the requested length.
		raw := make([]byte, keygenLength/2)
		if _, err := rand.Read(raw); err != nil {
			return Logger.ErrorfAndReturn("failed to generate key material: %v", err)
		}
		key := hex.EncodeToString(raw)

		content := key
		if keygenSeal {
			secret := os.Getenv("KOROWAI_DEVICE_SECRET")
			if secret == "" {
				return Logger.ErrorfAndReturn("--seal requires KOROWAI_DEVICE_SECRET to be set")
			}
			sealed, err := auth.NewSealedDevice(secret).SealLicense(key)
			if err != nil {
				return Logger.ErrorfAndReturn("failed to seal license: %v", err)
			}
			content = sealed
		}

		if err := os.MkdirAll(filepath.Dir(keygenOut), 0755); err != nil {
			return Logger.ErrorfAndReturn("failed to create %s: %v", filepath.Dir(keygenOut), err)
		}
		if err := os.WriteFile(keygenOut, []byte(content+"\n"), 0600); err != nil {
			return Logger.ErrorfAndReturn("failed to write license: %v", err)
		}

		kind := "DEV"
		if keygenSeal {
			kind = "sealed production"
		}
		fmt.Printf("%s Wrote %s license to %s (%d-byte key)\n", ui.Success.Sprint("✓"), kind, ui.Path.Sprint(keygenOut), keygenLength)
		return nil
	},
}
