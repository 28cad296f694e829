package loader

import (
	"errors"
	"testing"

	kerrors "github.com/tuatara-dev/korowai/internal/errors"
	logger "github.com/tuatara-dev/korowai/internal/logging"
)

func TestDefaultSystem_Lifecycle(t *testing.T) {
	t.Cleanup(Shutdown)

	if IsInitialized() {
		t.Fatal("Default system reports initialized before Initialize")
	}
	if _, err := Activate("pkg.mod"); !errors.Is(err, kerrors.ErrNotInitialized) {
		t.Fatalf("Activate before Initialize = %v, want ErrNotInitialized", err)
	}
	if _, err := LoadModel("model.onnx", nil); !errors.Is(err, kerrors.ErrNotInitialized) {
		t.Fatalf("LoadModel before Initialize = %v, want ErrNotInitialized", err)
	}

	buildDir := t.TempDir()
	artifact := writeArtifact(t, buildDir, "pkg/mod.py.enc", "VALUE = 7")

	cfg := newTestConfig(t, buildDir)
	opts := InitOptions{Mapping: map[string]string{"pkg.mod": artifact}}
	if err := Initialize(cfg, nil, logger.Logger{}, opts); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	if !IsInitialized() {
		t.Fatal("Default system not initialized after Initialize")
	}

	// A second Initialize is a no-op, not an error.
	if err := Initialize(cfg, nil, logger.Logger{}, InitOptions{}); err != nil {
		t.Fatalf("Repeated Initialize failed: %v", err)
	}

	ns, err := Activate("pkg.mod")
	if err != nil {
		t.Fatalf("Activate failed: %v", err)
	}
	if ns.Values["VALUE"] != float64(7) {
		t.Errorf("VALUE = %v, want 7", ns.Values["VALUE"])
	}

	Shutdown()
	if IsInitialized() {
		t.Error("Default system still initialized after Shutdown")
	}

	// Shutdown leaves the package reusable.
	if err := Initialize(cfg, nil, logger.Logger{}, opts); err != nil {
		t.Fatalf("Re-Initialize after Shutdown failed: %v", err)
	}
	if _, err := Activate("pkg.mod"); err != nil {
		t.Errorf("Activate after re-Initialize failed: %v", err)
	}
}
