package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tidwall/jsonc"

	kerrors "github.com/tuatara-dev/korowai/internal/errors"
)

// ManifestVersion is written into new manifests. Readers accept any
// version: the mapping is the only contract, the envelope is advisory.
const ManifestVersion = "1"

// ManifestName is the manifest filename inside a build directory.
const ManifestName = "korowai.manifest.json"

// Manifest is the build-time record mapping logical names and canonical
// paths to encrypted-artifact locations. Artifact locations are stored
// relative to the manifest's own directory so a build tree stays
// relocatable.
type Manifest struct {
	Metadata Metadata `json:"metadata"`

	// Modules maps dotted unit names to artifact locations.
	Modules map[string]string `json:"modules"`

	// Models maps canonical model paths (relative to the build root) to
	// artifact locations.
	Models map[string]string `json:"models"`

	// Checksums maps artifact locations to blake3 hex digests of the
	// artifact bytes.
	Checksums map[string]string `json:"checksums,omitempty"`
}

// Metadata is the manifest envelope. The loading subsystem only acts on
// AuthMode and IVPolicy; the rest is for operators.
type Metadata struct {
	Version   string `json:"version"`
	BuildID   string `json:"build_id,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
	AuthMode  string `json:"auth_mode,omitempty"`
	IVPolicy  string `json:"iv_policy,omitempty"`
}

// NewManifest returns an empty manifest with the current version.
func NewManifest() *Manifest {
	return &Manifest{
		Metadata:  Metadata{Version: ManifestVersion},
		Modules:   make(map[string]string),
		Models:    make(map[string]string),
		Checksums: make(map[string]string),
	}
}

// LoadManifest reads a manifest file. Comments and trailing commas are
// tolerated: manifests get hand-edited in the field.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &kerrors.ConfigError{Path: path, Err: kerrors.ErrManifestNotFound}
		}
		return nil, &kerrors.ConfigError{Path: path, Err: err}
	}

	m := NewManifest()
	if err := json.Unmarshal(jsonc.ToJSON(data), m); err != nil {
		return nil, &kerrors.ConfigError{Path: path, Err: fmt.Errorf("%w: %w", kerrors.ErrManifestInvalid, err)}
	}

	if m.Modules == nil {
		m.Modules = make(map[string]string)
	}
	if m.Models == nil {
		m.Models = make(map[string]string)
	}

	return m, nil
}

// Write serializes the manifest to path.
func (m *Manifest) Write(path string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return &kerrors.ConfigError{Path: path, Err: err}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return &kerrors.ConfigError{Path: path, Err: err}
	}

	return os.WriteFile(path, append(data, '\n'), 0644)
}

// Merge populates the registry from a manifest. Relative artifact
// locations are resolved against baseDir (normally the manifest's
// directory).
func (r *Registry) Merge(m *Manifest, baseDir string) {
	resolve := func(location string) string {
		if filepath.IsAbs(location) {
			return location
		}
		return filepath.Join(baseDir, location)
	}

	for name, location := range m.Modules {
		r.Register(name, Entry{
			Path:     resolve(location),
			Kind:     KindUnit,
			Checksum: m.Checksums[location],
		})
	}
	for path, location := range m.Models {
		r.Register(resolve(path), Entry{
			Path:     resolve(location),
			Kind:     KindModel,
			Checksum: m.Checksums[location],
		})
	}
}
