package discovery

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/tuatara-dev/korowai/internal/config"
	kerrors "github.com/tuatara-dev/korowai/internal/errors"
	logger "github.com/tuatara-dev/korowai/internal/logging"
)

// FileInfo describes one discovered source unit or model file.
type FileInfo struct {
	// Path is the absolute file location.
	Path string

	// RelPath is the location relative to the project root, with forward
	// slashes.
	RelPath string

	// Name is the dotted logical name derived from RelPath. For units this
	// is the import name ("pkg.mod"); package initializers drop their
	// trailing component ("pkg/__init__.py" becomes "pkg").
	Name string

	Size int64
}

// Result groups one full scan of a project tree.
type Result struct {
	Units  []FileInfo
	Models []FileInfo
}

// Scanner walks a project tree and finds the source units and model files
// that a build should encrypt. Exclusions come from configuration: directory
// names are matched exactly, file patterns support ** globs.
type Scanner struct {
	Root   string
	Config config.DiscoveryConfig
	Logger logger.Logger
}

// NewScanner returns a scanner rooted at root. Root must exist.
func NewScanner(root string, cfg config.DiscoveryConfig, log logger.Logger) (*Scanner, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, kerrors.ErrProjectRootNotFound
	}
	if !info.IsDir() {
		return nil, kerrors.ErrProjectRootNotFound
	}
	return &Scanner{Root: abs, Config: cfg, Logger: log}, nil
}

// DiscoverAll walks the tree once and returns every unit and model file
// that survives the exclusion rules.
func (s *Scanner) DiscoverAll() (*Result, error) {
	result := &Result{}

	err := filepath.WalkDir(s.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			if path != s.Root && s.excludedDir(d.Name()) {
				s.Logger.Debugf("Skipping excluded directory: %s", path)
				return filepath.SkipDir
			}
			return nil
		}

		rel, err := filepath.Rel(s.Root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		if s.excludedFile(rel, d.Name()) {
			return nil
		}

		ext := filepath.Ext(d.Name())
		switch {
		case containsExt(s.Config.UnitExtensions, ext):
			info, err := d.Info()
			if err != nil {
				return err
			}
			result.Units = append(result.Units, FileInfo{
				Path:    path,
				RelPath: rel,
				Name:    UnitName(rel),
				Size:    info.Size(),
			})
		case containsExt(s.Config.ModelExtensions, ext):
			info, err := d.Info()
			if err != nil {
				return err
			}
			result.Models = append(result.Models, FileInfo{
				Path:    path,
				RelPath: rel,
				Name:    modelName(rel),
				Size:    info.Size(),
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.Logger.Debugf("Discovered %d units and %d models under %s",
		len(result.Units), len(result.Models), s.Root)
	return result, nil
}

// DiscoverUnits returns only the source units.
func (s *Scanner) DiscoverUnits() ([]FileInfo, error) {
	result, err := s.DiscoverAll()
	if err != nil {
		return nil, err
	}
	return result.Units, nil
}

// DiscoverModels returns only the model files.
func (s *Scanner) DiscoverModels() ([]FileInfo, error) {
	result, err := s.DiscoverAll()
	if err != nil {
		return nil, err
	}
	return result.Models, nil
}

func (s *Scanner) excludedDir(name string) bool {
	for _, dir := range s.Config.ExcludeDirs {
		if name == dir {
			return true
		}
	}
	return false
}

func (s *Scanner) excludedFile(rel, base string) bool {
	for _, pattern := range s.Config.ExcludeFiles {
		// Bare patterns match the filename anywhere in the tree; patterns
		// with a separator match the whole relative path.
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

// UnitName converts a root-relative source path into its dotted logical
// name. A package initializer names the package itself.
func UnitName(rel string) string {
	rel = filepath.ToSlash(rel)
	rel = strings.TrimSuffix(rel, filepath.Ext(rel))

	parts := strings.Split(rel, "/")
	if parts[len(parts)-1] == "__init__" {
		parts = parts[:len(parts)-1]
	}
	return strings.Join(parts, ".")
}

func modelName(rel string) string {
	rel = filepath.ToSlash(rel)
	rel = strings.TrimSuffix(rel, filepath.Ext(rel))
	return strings.ReplaceAll(rel, "/", ".")
}

func containsExt(exts []string, ext string) bool {
	for _, e := range exts {
		if strings.EqualFold(e, ext) {
			return true
		}
	}
	return false
}
