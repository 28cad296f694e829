package build

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/google/uuid"
	"github.com/zeebo/blake3"

	"github.com/tuatara-dev/korowai/internal/auth"
	"github.com/tuatara-dev/korowai/internal/config"
	"github.com/tuatara-dev/korowai/internal/crypto"
	"github.com/tuatara-dev/korowai/internal/discovery"
	kerrors "github.com/tuatara-dev/korowai/internal/errors"
	"github.com/tuatara-dev/korowai/internal/loader"
	logger "github.com/tuatara-dev/korowai/internal/logging"
	"github.com/tuatara-dev/korowai/internal/registry"
	"github.com/tuatara-dev/korowai/internal/utils"
)

// Options controls a single build.
type Options struct {
	// SkipEncrypt copies the tree and writes the manifest without
	// encrypting anything. Stray .enc files from earlier builds are
	// dropped so the output is entirely plaintext.
	SkipEncrypt bool
}

// Report summarizes a completed build.
type Report struct {
	BuildID         string
	OutputDir       string
	EncryptedUnits  int
	EncryptedModels int
	CopiedFiles     int
	SkippedEncrypt  []string
	Duration        time.Duration
}

// Builder produces an encrypted, relocatable build tree: the project is
// copied into the build directory, discovered units and models are
// encrypted in place (plaintext removed), and a manifest records the
// name-to-artifact mapping.
type Builder struct {
	Root   string
	Config *config.Config
	Keys   *auth.Manager
	Logger logger.Logger
}

// NewBuilder returns a builder for the project at root.
func NewBuilder(root string, cfg *config.Config, keys *auth.Manager, log logger.Logger) (*Builder, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if info, err := os.Stat(abs); err != nil || !info.IsDir() {
		return nil, kerrors.ErrProjectRootNotFound
	}
	return &Builder{Root: abs, Config: cfg, Keys: keys, Logger: log}, nil
}

// Build runs a full build into the configured build directory. The output
// directory is recreated from scratch on every run.
func (b *Builder) Build(opts Options) (*Report, error) {
	start := time.Now()

	var key []byte
	if !opts.SkipEncrypt {
		resolved, err := b.Keys.ResolveKey()
		if err != nil {
			return nil, err
		}
		key = resolved
	}

	scanner, err := discovery.NewScanner(b.Root, b.Config.Discovery, b.Logger)
	if err != nil {
		return nil, err
	}
	found, err := scanner.DiscoverAll()
	if err != nil {
		return nil, err
	}

	outputDir := b.outputDir()
	if err := os.RemoveAll(outputDir); err != nil {
		return nil, err
	}

	buildBase := filepath.Base(outputDir)
	skip := func(name string, isDir bool) bool {
		if isDir {
			if name == buildBase {
				return true
			}
			for _, dir := range b.Config.Discovery.ExcludeDirs {
				if name == dir {
					return true
				}
			}
			return false
		}
		if opts.SkipEncrypt && strings.HasSuffix(name, loader.EncryptedExt) {
			return true
		}
		for _, pattern := range b.Config.Discovery.ExcludeFiles {
			if ok, err := doublestar.Match(pattern, name); err == nil && ok {
				return true
			}
		}
		return false
	}
	if err := utils.CopyTree(b.Root, outputDir, skip); err != nil {
		return nil, err
	}

	manifest := registry.NewManifest()
	manifest.Metadata.BuildID = uuid.NewString()
	manifest.Metadata.CreatedAt = start.UTC().Format(time.RFC3339)
	manifest.Metadata.AuthMode = b.Config.Auth.Mode
	manifest.Metadata.IVPolicy = b.Config.Encryption.IVPolicy

	report := &Report{
		BuildID:   manifest.Metadata.BuildID,
		OutputDir: outputDir,
	}

	if !opts.SkipEncrypt {
		policy, err := crypto.ParseIVPolicy(b.Config.Encryption.IVPolicy)
		if err != nil {
			return nil, err
		}
		engine := crypto.New(b.Config.Encryption.ThresholdBytes, policy)

		for _, unit := range found.Units {
			if b.excludedFromEncryption(unit.RelPath) {
				report.SkippedEncrypt = append(report.SkippedEncrypt, unit.RelPath)
				b.Logger.Debugf("Leaving %s unencrypted", unit.RelPath)
				continue
			}
			location, sum, err := b.encryptInPlace(engine, outputDir, unit.RelPath, key)
			if err != nil {
				return nil, err
			}
			manifest.Modules[unit.Name] = location
			manifest.Checksums[location] = sum
			report.EncryptedUnits++
		}

		for _, model := range found.Models {
			if b.excludedFromEncryption(model.RelPath) {
				report.SkippedEncrypt = append(report.SkippedEncrypt, model.RelPath)
				continue
			}
			location, sum, err := b.encryptInPlace(engine, outputDir, model.RelPath, key)
			if err != nil {
				return nil, err
			}
			manifest.Models[model.RelPath] = location
			manifest.Checksums[location] = sum
			report.EncryptedModels++
		}
	}

	manifestPath := filepath.Join(outputDir, registry.ManifestName)
	if err := manifest.Write(manifestPath); err != nil {
		return nil, err
	}

	report.CopiedFiles = utils.CountFiles(outputDir)
	report.Duration = time.Since(start)

	b.Logger.Infof("Build %s complete: %d units, %d models encrypted into %s in %s",
		report.BuildID, report.EncryptedUnits, report.EncryptedModels, outputDir, report.Duration.Round(time.Millisecond))
	return report, nil
}

// Clean removes the build directory.
func (b *Builder) Clean() error {
	outputDir := b.outputDir()
	if _, err := os.Stat(outputDir); os.IsNotExist(err) {
		return kerrors.ErrBuildDirMissing
	}
	return os.RemoveAll(outputDir)
}

// encryptInPlace encrypts the copied file at rel inside outputDir, writes
// the artifact next to it with the encrypted extension, and removes the
// plaintext copy. Returns the artifact's build-relative location and its
// blake3 checksum.
func (b *Builder) encryptInPlace(engine *crypto.Cipher, outputDir, rel string, key []byte) (string, string, error) {
	plainPath := filepath.Join(outputDir, filepath.FromSlash(rel))
	artifactPath := plainPath + loader.EncryptedExt

	if err := engine.EncryptFile(plainPath, artifactPath, key); err != nil {
		return "", "", err
	}
	if err := os.Remove(plainPath); err != nil {
		return "", "", &kerrors.EncryptionError{Path: plainPath, Err: fmt.Errorf("failed to remove plaintext: %w", err)}
	}

	data, err := os.ReadFile(artifactPath)
	if err != nil {
		return "", "", err
	}
	sum := blake3.Sum256(data)

	return rel + loader.EncryptedExt, hex.EncodeToString(sum[:]), nil
}

func (b *Builder) excludedFromEncryption(rel string) bool {
	base := filepath.Base(rel)
	for _, pattern := range b.Config.Build.ExcludeEncrypt {
		target := base
		if strings.ContainsRune(pattern, '/') {
			target = rel
		}
		if ok, err := doublestar.Match(pattern, target); err == nil && ok {
			return true
		}
	}
	return false
}

func (b *Builder) outputDir() string {
	dir := b.Config.Build.BuildDir
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(b.Root, dir)
	}
	return dir
}
