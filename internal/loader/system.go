package loader

import (
	"errors"
	"path/filepath"
	"strings"
	"sync"

	"github.com/tuatara-dev/korowai/internal/auth"
	"github.com/tuatara-dev/korowai/internal/cache"
	"github.com/tuatara-dev/korowai/internal/config"
	"github.com/tuatara-dev/korowai/internal/crypto"
	kerrors "github.com/tuatara-dev/korowai/internal/errors"
	logger "github.com/tuatara-dev/korowai/internal/logging"
	"github.com/tuatara-dev/korowai/internal/registry"
)

// System holds the shared state of the loading subsystem: the key manager,
// the artifact registry, the cipher, and the two loaders with their caches.
type System struct {
	cfg    *config.Config
	auth   *auth.Manager
	reg    *registry.Registry
	cipher *crypto.Cipher
	log    logger.Logger

	units  *ModuleLoader
	models *ModelLoader

	mu          sync.Mutex
	initialized bool
	degraded    bool
	searchPaths []string
}

// New constructs a System from configuration. device may be nil in DEV
// mode. The system is inert until Initialize is called.
func New(cfg *config.Config, device auth.Device, log logger.Logger) *System {
	s := &System{
		cfg:    cfg,
		auth:   auth.NewManager(cfg.Auth, device, log),
		reg:    registry.New(),
		// Decryption sniffs the artifact header, so legacy and random-IV
		// artifacts can coexist in one build tree.
		cipher: crypto.New(cfg.Encryption.ThresholdBytes, crypto.IVAuto),
		log:    log,
	}
	s.units = &ModuleLoader{sys: s, cache: cache.New(), eval: DeclarativeEvaluator{}}
	s.models = &ModelLoader{sys: s, cache: cache.New(), build: BlobBuilder}
	return s
}

// InitOptions controls Initialize.
type InitOptions struct {
	// ManifestPath names a manifest file to seed the registry from. Empty
	// means auto-discover <build_dir>/korowai.manifest.json; an explicit
	// path that does not exist is an error.
	ManifestPath string

	// Mapping seeds the registry directly. Keys that carry a path
	// separator or a configured model extension register as models,
	// everything else as dotted unit names. Relative artifact locations
	// resolve against the working directory.
	Mapping map[string]string

	// SearchPaths overrides the default unit-discovery locations (the
	// build directory). Distinct from an empty list passed to Resolve,
	// which suppresses discovery for that call only.
	SearchPaths []string
}

// Initialize resolves the encryption key and seeds the registry. In DEV
// mode a missing key source degrades the system to pass-through: nothing
// encrypted will load, everything defers to the host. Any other
// authorization failure, and a missing key source in production or strict
// mode, fails hard.
func (s *System) Initialize(opts InitOptions) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.initialized {
		return nil
	}

	if _, err := s.auth.ResolveKey(); err != nil {
		if auth.IsNoSource(err) && s.cfg.Auth.Mode == config.ModeDev && !s.cfg.Auth.Strict {
			s.degraded = true
			s.log.WarnfAlways("No key source available; running in pass-through mode. Encrypted artifacts will not load.")
		} else {
			return err
		}
	}

	buildDir, err := filepath.Abs(s.cfg.Build.BuildDir)
	if err != nil {
		return err
	}

	manifestPath := opts.ManifestPath
	autoDiscovered := manifestPath == ""
	if autoDiscovered {
		manifestPath = filepath.Join(buildDir, registry.ManifestName)
	}

	m, err := registry.LoadManifest(manifestPath)
	switch {
	case err == nil:
		s.reg.Merge(m, filepath.Dir(manifestPath))
		s.log.Infof("Loaded manifest %s: %d units, %d models", manifestPath, len(m.Modules), len(m.Models))
	case autoDiscovered && errors.Is(err, kerrors.ErrManifestNotFound):
		s.log.Debugf("No manifest at %s; relying on mapping and lazy discovery", manifestPath)
	default:
		return err
	}

	for name, location := range opts.Mapping {
		abs, err := filepath.Abs(location)
		if err != nil {
			return err
		}
		kind := s.mappingKind(name)
		key := name
		if kind == registry.KindModel {
			if key, err = filepath.Abs(name); err != nil {
				return err
			}
		}
		s.reg.Register(key, registry.Entry{Path: abs, Kind: kind})
	}

	if opts.SearchPaths != nil {
		s.searchPaths = append([]string(nil), opts.SearchPaths...)
	} else {
		s.searchPaths = []string{buildDir}
	}

	s.initialized = true
	return nil
}

// IsInitialized reports whether Initialize has completed.
func (s *System) IsInitialized() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initialized
}

// Degraded reports whether the system is running in pass-through mode.
func (s *System) Degraded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.degraded
}

// ClearCaches drops every decrypted namespace and model handle, closing
// handles that hold non-memory resources. The registry is untouched.
func (s *System) ClearCaches() {
	s.units.cache.Clear()
	s.models.cache.Clear()
}

// Shutdown clears the caches and returns the system to its uninitialized
// state. A later Initialize starts fresh.
func (s *System) Shutdown() {
	s.ClearCaches()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.initialized = false
	s.degraded = false
	s.searchPaths = nil
}

// Units returns the logical-unit loader.
func (s *System) Units() *ModuleLoader { return s.units }

// Models returns the binary-artifact loader.
func (s *System) Models() *ModelLoader { return s.models }

// Registry returns the shared artifact registry.
func (s *System) Registry() *registry.Registry { return s.reg }

// Auth returns the key manager.
func (s *System) Auth() *auth.Manager { return s.auth }

// Resolve resolves a logical name using the default search paths.
func (s *System) Resolve(name string) (*Namespace, bool, error) {
	return s.units.Resolve(name, nil)
}

// Load loads a binary artifact by path with options.
func (s *System) Load(path string, opts Options) (Handle, error) {
	return s.models.Load(path, opts)
}

// Status is a point-in-time snapshot for operator display. It never
// contains key material.
type Status struct {
	Initialized  bool
	Degraded     bool
	Auth         auth.Info
	Registered   int
	CachedUnits  int
	CachedModels int
	SearchPaths  []string
}

// Status reports the current system state.
func (s *System) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Status{
		Initialized:  s.initialized,
		Degraded:     s.degraded,
		Auth:         s.auth.Info(),
		Registered:   s.reg.Len(),
		CachedUnits:  s.units.cache.Len(),
		CachedModels: s.models.cache.Len(),
		SearchPaths:  append([]string(nil), s.searchPaths...),
	}
}

// mappingKind classifies a mapping key: a path separator or a model
// extension marks a model, everything else is a dotted unit name.
func (s *System) mappingKind(name string) registry.Kind {
	if strings.ContainsRune(name, '/') || strings.ContainsRune(name, filepath.Separator) {
		return registry.KindModel
	}
	for _, ext := range s.cfg.Discovery.ModelExtensions {
		if strings.EqualFold(ext, filepath.Ext(name)) {
			return registry.KindModel
		}
	}
	return registry.KindUnit
}

func (s *System) defaultSearchPaths() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.searchPaths...)
}

func (s *System) notReady() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return kerrors.ErrNotInitialized
	}
	return nil
}
