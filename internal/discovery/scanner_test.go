package discovery

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/tuatara-dev/korowai/internal/config"
	logger "github.com/tuatara-dev/korowai/internal/logging"
)

func scaffoldProject(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatalf("Failed to create directory for %s: %v", rel, err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatalf("Failed to write %s: %v", rel, err)
		}
	}
	return root
}

func newTestScanner(t *testing.T, root string) *Scanner {
	t.Helper()
	s, err := NewScanner(root, config.Default().Discovery, logger.Logger{})
	if err != nil {
		t.Fatalf("NewScanner failed: %v", err)
	}
	return s
}

func TestDiscoverAll(t *testing.T) {
	root := scaffoldProject(t, map[string]string{
		"app.py":              "print('hi')",
		"pkg/__init__.py":     "",
		"pkg/mod.py":          "VALUE = 42",
		"models/net.onnx":     "onnx-bytes",
		"notes.txt":           "ignored",
		"build/stale.py":      "excluded directory",
		"__pycache__/mod.pyc": "excluded directory",
	})

	result, err := newTestScanner(t, root).DiscoverAll()
	if err != nil {
		t.Fatalf("DiscoverAll failed: %v", err)
	}

	unitNames := make(map[string]bool)
	for _, u := range result.Units {
		unitNames[u.Name] = true
	}
	for _, want := range []string{"app", "pkg", "pkg.mod"} {
		if !unitNames[want] {
			t.Errorf("Missing unit %q, got %v", want, unitNames)
		}
	}
	if unitNames["build.stale"] {
		t.Error("Excluded directory leaked into discovery")
	}

	if len(result.Models) != 1 {
		t.Fatalf("Expected 1 model, got %d", len(result.Models))
	}
	if result.Models[0].Name != "models.net" {
		t.Errorf("Unexpected model name: %q", result.Models[0].Name)
	}
	if result.Models[0].RelPath != "models/net.onnx" {
		t.Errorf("Unexpected model RelPath: %q", result.Models[0].RelPath)
	}
}

func TestDiscoverAll_ExcludeFilePatterns(t *testing.T) {
	root := scaffoldProject(t, map[string]string{
		"keep.py":        "x = 1",
		"skip.log":       "noise",
		"deep/also.tmp":  "noise",
		"deep/wanted.py": "y = 2",
	})

	s := newTestScanner(t, root)
	s.Config.ExcludeFiles = append(s.Config.ExcludeFiles, "**/wanted.py")

	result, err := s.DiscoverAll()
	if err != nil {
		t.Fatalf("DiscoverAll failed: %v", err)
	}

	if len(result.Units) != 1 || result.Units[0].Name != "keep" {
		t.Errorf("Exclusion patterns misapplied: %+v", result.Units)
	}
}

func TestNewScanner_MissingRoot(t *testing.T) {
	_, err := NewScanner(filepath.Join(t.TempDir(), "nope"), config.Default().Discovery, logger.Logger{})
	if err == nil {
		t.Fatal("Expected an error for a missing project root")
	}
}

func TestUnitName(t *testing.T) {
	cases := []struct {
		rel  string
		want string
	}{
		{"app.py", "app"},
		{"pkg/mod.py", "pkg.mod"},
		{"pkg/__init__.py", "pkg"},
		{"a/b/c.py", "a.b.c"},
	}
	for _, tc := range cases {
		if got := UnitName(tc.rel); got != tc.want {
			t.Errorf("UnitName(%q) = %q, want %q", tc.rel, got, tc.want)
		}
	}
}
