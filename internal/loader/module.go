package loader

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tuatara-dev/korowai/internal/cache"
	kerrors "github.com/tuatara-dev/korowai/internal/errors"
	"github.com/tuatara-dev/korowai/internal/registry"
)

// EncryptedExt marks a file as an encrypted artifact.
const EncryptedExt = ".enc"

// initializerStem is the basename (before extensions) of a package
// initializer unit.
const initializerStem = "__init__"

// Namespace is an activated logical unit: the bindings its source
// established plus the introspection attributes consumers expect.
type Namespace struct {
	// Name is the canonical dotted name the unit was resolved as.
	Name string

	// File is the originating artifact path, or a synthetic
	// "<encrypted:name>" placeholder when the unit was activated from raw
	// source.
	File string

	// Package is the dotted name of the containing package. A package
	// names itself; a top-level unit has an empty Package.
	Package string

	// Path is the in-package search location, set only when the unit is a
	// package, so nested lookups under it resolve.
	Path []string

	// Values holds the unit's top-level bindings.
	Values map[string]any
}

// IsPackage reports whether the namespace was activated from a package
// initializer.
func (ns *Namespace) IsPackage() bool { return ns.Path != nil }

// ModuleLoader resolves logical unit names to encrypted artifacts and
// activates them. A resolution miss is a defined defer outcome, never an
// error: the host's normal resolution proceeds.
type ModuleLoader struct {
	sys   *System
	cache *cache.Store
	eval  Evaluator
}

// SetEvaluator replaces the source evaluator. It must be called before the
// first resolution; activated namespaces are cached.
func (l *ModuleLoader) SetEvaluator(eval Evaluator) { l.eval = eval }

// Resolve makes the named unit available, decrypting and activating it
// from its encrypted artifact when one is registered or discoverable.
//
// searchPaths controls discovery on a registry miss: nil means the
// system's default locations, an empty non-nil list means "no locations"
// and defers without scanning. The two are distinct on purpose: nested
// relative lookups pass an explicit location list that may legitimately be
// empty.
//
// found reports whether the name was handled. (nil, false, nil) is the
// defer outcome; the registry is never poisoned by a miss, so a later
// resolution can still discover the unit.
func (l *ModuleLoader) Resolve(name string, searchPaths []string) (ns *Namespace, found bool, err error) {
	if err := l.sys.notReady(); err != nil {
		return nil, false, &kerrors.LoaderError{Name: name, Err: err}
	}
	if l.sys.Degraded() {
		return nil, false, nil
	}

	entry, ok := l.sys.reg.Lookup(name)
	if !ok {
		// An explicit empty location list suppresses discovery entirely;
		// only a nil list falls back to the defaults.
		if searchPaths != nil && len(searchPaths) == 0 {
			return nil, false, nil
		}
		entry, ok = l.discover(name, searchPaths)
		if !ok {
			return nil, false, nil
		}
		l.sys.reg.Register(name, entry)
		l.sys.log.Debugf("Auto-registered %s -> %s", name, entry.Path)
	}

	ns, err = l.activate(name, entry)
	if err != nil {
		return nil, true, err
	}
	return ns, true, nil
}

// Activate resolves name with the default search paths and treats a defer
// as an error. It is the explicit-call entry point for hosts without a
// pluggable resolution chain.
func (l *ModuleLoader) Activate(name string) (*Namespace, error) {
	ns, found, err := l.Resolve(name, nil)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, &kerrors.LoaderError{Name: name, Err: kerrors.ErrArtifactNotFound}
	}
	return ns, nil
}

// ActivateSource activates raw source text under name without touching the
// registry or the cache. The namespace reports a synthetic file placeholder.
func (l *ModuleLoader) ActivateSource(name, source string) (*Namespace, error) {
	ns := l.newNamespace(name, fmt.Sprintf("<encrypted:%s>", name), false)
	if err := l.eval.Evaluate(source, ns); err != nil {
		return nil, &kerrors.LoaderError{Name: name, Err: err}
	}
	return ns, nil
}

// discover searches for an artifact for name. Search order follows normal
// nested-package resolution: the tail component of the dotted name is
// looked up in each location, package form before single-unit form.
func (l *ModuleLoader) discover(name string, searchPaths []string) (registry.Entry, bool) {
	tail := name
	if i := strings.LastIndex(name, "."); i >= 0 {
		tail = name[i+1:]
	}

	paths := searchPaths
	if paths == nil {
		paths = l.sys.defaultSearchPaths()
	}

	for _, dir := range paths {
		for _, ext := range l.sys.cfg.Discovery.UnitExtensions {
			candidate := filepath.Join(dir, tail, initializerStem+ext+EncryptedExt)
			if fileExists(candidate) {
				return registry.Entry{Path: candidate, Kind: registry.KindUnit}, true
			}
		}
		for _, ext := range l.sys.cfg.Discovery.UnitExtensions {
			candidate := filepath.Join(dir, tail+ext+EncryptedExt)
			if fileExists(candidate) {
				return registry.Entry{Path: candidate, Kind: registry.KindUnit}, true
			}
		}
		if candidate := filepath.Join(dir, tail+EncryptedExt); fileExists(candidate) {
			return registry.Entry{Path: candidate, Kind: registry.KindUnit}, true
		}
	}

	return registry.Entry{}, false
}

// activate decrypts and executes the unit, compute-once per name:
// concurrent first resolutions share one decrypt and one activation, and a
// failed activation is not cached, so nothing is ever half-populated.
func (l *ModuleLoader) activate(name string, entry registry.Entry) (*Namespace, error) {
	value, err := l.cache.GetOrCompute(name, func() (any, error) {
		data, err := os.ReadFile(entry.Path)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, &kerrors.LoaderError{Name: name, Err: fmt.Errorf("%w: %s", kerrors.ErrArtifactNotFound, entry.Path)}
			}
			return nil, &kerrors.LoaderError{Name: name, Err: err}
		}

		key, err := l.sys.auth.ResolveKey()
		if err != nil {
			return nil, &kerrors.LoaderError{Name: name, Err: err}
		}

		source, err := l.sys.cipher.Decrypt(data, key)
		if err != nil {
			return nil, &kerrors.LoaderError{Name: name, Err: err}
		}

		ns := l.newNamespace(name, entry.Path, isInitializer(entry.Path))
		if err := l.eval.Evaluate(string(source), ns); err != nil {
			return nil, &kerrors.LoaderError{Name: name, Err: err}
		}

		l.sys.log.Debugf("Activated %s from %s", name, entry.Path)
		return ns, nil
	})
	if err != nil {
		return nil, err
	}
	return value.(*Namespace), nil
}

func (l *ModuleLoader) newNamespace(name, file string, pkg bool) *Namespace {
	ns := &Namespace{
		Name:   name,
		File:   file,
		Values: make(map[string]any),
	}

	if pkg {
		ns.Package = name
		ns.Path = []string{filepath.Dir(file)}
	} else if i := strings.LastIndex(name, "."); i >= 0 {
		ns.Package = name[:i]
	}

	return ns
}

func isInitializer(path string) bool {
	base := filepath.Base(path)
	return base == initializerStem+EncryptedExt || strings.HasPrefix(base, initializerStem+".")
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
