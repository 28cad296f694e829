package loader

import (
	"sync"

	"github.com/tuatara-dev/korowai/internal/auth"
	"github.com/tuatara-dev/korowai/internal/config"
	kerrors "github.com/tuatara-dev/korowai/internal/errors"
	logger "github.com/tuatara-dev/korowai/internal/logging"
)

// The default system is a convenience veneer for applications that want
// the one-call bootstrap. Everything else in this package works on
// explicit System values; the veneer is just a guarded pointer to one.
var (
	defaultMu  sync.Mutex
	defaultSys *System
)

// Initialize constructs and initializes the process-default System. It is
// an error to initialize twice without an intervening Shutdown.
func Initialize(cfg *config.Config, device auth.Device, log logger.Logger, opts InitOptions) error {
	defaultMu.Lock()
	defer defaultMu.Unlock()

	if defaultSys != nil {
		return nil
	}

	s := New(cfg, device, log)
	if err := s.Initialize(opts); err != nil {
		return err
	}
	defaultSys = s
	return nil
}

// IsInitialized reports whether the default system is up.
func IsInitialized() bool {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	return defaultSys != nil && defaultSys.IsInitialized()
}

// Default returns the default system, or nil before Initialize.
func Default() *System {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	return defaultSys
}

// Activate resolves and activates a logical unit through the default
// system.
func Activate(name string) (*Namespace, error) {
	s := Default()
	if s == nil {
		return nil, &kerrors.LoaderError{Name: name, Err: kerrors.ErrNotInitialized}
	}
	return s.Units().Activate(name)
}

// LoadModel loads a binary artifact through the default system.
func LoadModel(path string, opts Options) (Handle, error) {
	s := Default()
	if s == nil {
		return nil, &kerrors.LoaderError{Name: path, Err: kerrors.ErrNotInitialized}
	}
	return s.Load(path, opts)
}

// Shutdown tears down the default system. A later Initialize starts a
// fresh one.
func Shutdown() {
	defaultMu.Lock()
	defer defaultMu.Unlock()

	if defaultSys != nil {
		defaultSys.Shutdown()
		defaultSys = nil
	}
}
