package build

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/flate"

	kerrors "github.com/tuatara-dev/korowai/internal/errors"
	"github.com/tuatara-dev/korowai/internal/loader"
)

// Package archives the build directory into a single zip for distribution.
// outputPath defaults to "<build_dir>.zip". Encrypted artifacts are
// high-entropy and do not compress, so they are stored; everything else is
// deflated.
func (b *Builder) Package(outputPath string) (string, error) {
	outputDir := b.outputDir()
	if _, err := os.Stat(outputDir); os.IsNotExist(err) {
		return "", kerrors.ErrBuildDirMissing
	}

	if outputPath == "" {
		outputPath = outputDir + ".zip"
	}

	out, err := os.Create(outputPath)
	if err != nil {
		return "", err
	}

	zw := zip.NewWriter(out)
	zw.RegisterCompressor(zip.Deflate, func(w io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(w, flate.BestSpeed)
	})

	err = filepath.WalkDir(outputDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(outputDir, path)
		if err != nil {
			return err
		}

		header := &zip.FileHeader{
			Name:   filepath.ToSlash(rel),
			Method: zip.Deflate,
		}
		if strings.HasSuffix(path, loader.EncryptedExt) {
			header.Method = zip.Store
		}
		if info, err := d.Info(); err == nil {
			header.Modified = info.ModTime()
			header.SetMode(info.Mode())
		}

		w, err := zw.CreateHeader(header)
		if err != nil {
			return err
		}

		in, err := os.Open(path)
		if err != nil {
			return err
		}
		defer in.Close()

		_, err = io.Copy(w, in)
		return err
	})
	if err != nil {
		zw.Close()
		out.Close()
		return "", err
	}

	if err := zw.Close(); err != nil {
		out.Close()
		return "", err
	}
	if err := out.Close(); err != nil {
		return "", err
	}

	b.Logger.Infof("Packaged %s into %s", outputDir, outputPath)
	return outputPath, nil
}
