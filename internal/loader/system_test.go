package loader

import (
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/tuatara-dev/korowai/internal/auth"
	"github.com/tuatara-dev/korowai/internal/config"
	kerrors "github.com/tuatara-dev/korowai/internal/errors"
	logger "github.com/tuatara-dev/korowai/internal/logging"
	"github.com/tuatara-dev/korowai/internal/registry"
)

func TestInitialize_ManifestAutoDiscovery(t *testing.T) {
	buildDir := t.TempDir()
	writeArtifact(t, buildDir, "pkg/mod.py.enc", "VALUE = 42")

	m := registry.NewManifest()
	m.Modules["pkg.mod"] = "pkg/mod.py.enc"
	if err := m.Write(filepath.Join(buildDir, registry.ManifestName)); err != nil {
		t.Fatalf("Failed to write manifest: %v", err)
	}

	s := newTestSystem(t, buildDir, InitOptions{})

	ns, found, err := s.Resolve("pkg.mod")
	if err != nil || !found {
		t.Fatalf("Manifest-seeded unit did not resolve: found=%v err=%v", found, err)
	}
	if ns.Values["VALUE"] != float64(42) {
		t.Errorf("VALUE = %v", ns.Values["VALUE"])
	}
}

func TestInitialize_ExplicitManifestMissing(t *testing.T) {
	s := New(newTestConfig(t, t.TempDir()), nil, logger.Logger{})

	err := s.Initialize(InitOptions{
		ManifestPath: filepath.Join(t.TempDir(), "nope.json"),
	})
	if !errors.Is(err, kerrors.ErrManifestNotFound) {
		t.Errorf("Expected ErrManifestNotFound, got %v", err)
	}
	if s.IsInitialized() {
		t.Error("Failed initialization left the system initialized")
	}
}

func TestInitialize_ProductionFailsHardWithoutKey(t *testing.T) {
	cfg := config.Default()
	cfg.Auth.Mode = config.ModeProduction
	cfg.Auth.LicensePath = filepath.Join(t.TempDir(), "absent.dat")
	cfg.Build.BuildDir = t.TempDir()

	s := New(cfg, nil, logger.Logger{})

	err := s.Initialize(InitOptions{})
	if err == nil {
		t.Fatal("Production mode without a key source must fail hard")
	}
	if !auth.IsNoSource(err) {
		t.Errorf("Expected a no-key-source failure, got %v", err)
	}
	if s.IsInitialized() || s.Degraded() {
		t.Error("Production failure must not degrade to pass-through")
	}
}

func TestInitialize_DevStrictFailsHard(t *testing.T) {
	cfg := config.Default()
	cfg.Auth.Strict = true
	cfg.Auth.LicensePath = filepath.Join(t.TempDir(), "absent.dat")
	cfg.Build.BuildDir = t.TempDir()

	s := New(cfg, nil, logger.Logger{})

	if err := s.Initialize(InitOptions{}); err == nil {
		t.Fatal("Strict DEV mode without a key source must fail hard")
	}
	if s.Degraded() {
		t.Error("Strict mode must not degrade")
	}
}

func TestInitialize_Idempotent(t *testing.T) {
	s := newTestSystem(t, t.TempDir(), InitOptions{})

	if err := s.Initialize(InitOptions{}); err != nil {
		t.Errorf("Repeated Initialize failed: %v", err)
	}
}

func TestClearCaches_ClosesHandlesAndRecomputes(t *testing.T) {
	buildDir := t.TempDir()
	artifact := writeModelArtifact(t, buildDir, "net.onnx.enc", []byte("weights"))

	s := newTestSystem(t, buildDir, InitOptions{})

	var closed int32
	s.Models().SetHandleBuilder(func(data []byte, opts Options) (Handle, error) {
		return &trackedHandle{closed: &closed}, nil
	})

	if _, err := s.Load(artifact, nil); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	s.ClearCaches()
	if atomic.LoadInt32(&closed) != 1 {
		t.Error("ClearCaches did not close the cached handle")
	}

	if _, err := s.Load(artifact, nil); err != nil {
		t.Fatalf("Load after ClearCaches failed: %v", err)
	}
	if s.Models().cache.Len() != 1 {
		t.Error("Reload after ClearCaches did not repopulate the cache")
	}
}

type trackedHandle struct {
	closed *int32
}

func (h *trackedHandle) Close() error {
	atomic.AddInt32(h.closed, 1)
	return nil
}

func TestShutdown(t *testing.T) {
	buildDir := t.TempDir()
	writeArtifact(t, buildDir, "unit.py.enc", "A = 1")

	s := newTestSystem(t, buildDir, InitOptions{})

	if _, _, err := s.Resolve("unit"); err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	s.Shutdown()

	if s.IsInitialized() {
		t.Error("Shutdown left the system initialized")
	}
	if _, _, err := s.Resolve("unit"); !errors.Is(err, kerrors.ErrNotInitialized) {
		t.Errorf("Resolve after Shutdown: expected ErrNotInitialized, got %v", err)
	}

	// The lifecycle is restartable.
	if err := s.Initialize(InitOptions{}); err != nil {
		t.Fatalf("Re-initialize failed: %v", err)
	}
	if _, found, err := s.Resolve("unit"); err != nil || !found {
		t.Errorf("Resolve after re-initialize: found=%v err=%v", found, err)
	}
}

func TestStatus(t *testing.T) {
	buildDir := t.TempDir()
	writeArtifact(t, buildDir, "unit.py.enc", "A = 1")

	s := newTestSystem(t, buildDir, InitOptions{})

	if _, _, err := s.Resolve("unit"); err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	status := s.Status()
	if !status.Initialized || status.Degraded {
		t.Errorf("Unexpected lifecycle state: %+v", status)
	}
	if status.Registered != 1 || status.CachedUnits != 1 || status.CachedModels != 0 {
		t.Errorf("Unexpected counts: %+v", status)
	}
	if !status.Auth.KeyResolved || status.Auth.KeyLength != len(testKey) {
		t.Errorf("Unexpected auth info: %+v", status.Auth)
	}
	if len(status.SearchPaths) != 1 || status.SearchPaths[0] != buildDir {
		t.Errorf("Unexpected search paths: %v", status.SearchPaths)
	}
}
