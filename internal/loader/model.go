package loader

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/zeebo/blake3"

	"github.com/tuatara-dev/korowai/internal/cache"
	kerrors "github.com/tuatara-dev/korowai/internal/errors"
)

// Options are the load options a handle is constructed with. They are part
// of the cache identity: identical (path, options) pairs share one handle.
type Options map[string]any

// Handle is a constructed runtime handle over a model's bytes. Cached
// handles are closed when the cache entry is dropped.
type Handle interface {
	io.Closer
}

// HandleBuilder turns decrypted model bytes into a runtime handle. The
// bytes arrive in memory and must not be written to disk.
type HandleBuilder func(data []byte, opts Options) (Handle, error)

// Blob is the default handle: the model bytes held in memory, for
// consumers that feed an engine accepting a buffer directly.
type Blob struct {
	Data []byte
	Opts Options
}

func (b *Blob) Close() error {
	b.Data = nil
	return nil
}

// BlobBuilder is the default HandleBuilder.
func BlobBuilder(data []byte, opts Options) (Handle, error) {
	return &Blob{Data: data, Opts: opts}, nil
}

// ModelLoader loads binary artifacts by canonical path, decrypting
// transparently when an encrypted counterpart exists and caching the
// constructed handle per (path, options) pair.
type ModelLoader struct {
	sys   *System
	cache *cache.Store
	build HandleBuilder
}

// SetHandleBuilder replaces the handle builder. It must be called before
// the first load; constructed handles are cached.
func (l *ModelLoader) SetHandleBuilder(build HandleBuilder) { l.build = build }

// Load produces the runtime handle for the artifact at path. An encrypted
// artifact — named directly, registered, or found as a ".enc" sibling — is
// decrypted in memory and its handle cached; a plain file is handed to the
// builder uncached, exactly as the underlying mechanism would load it.
func (l *ModelLoader) Load(path string, opts Options) (Handle, error) {
	if err := l.sys.notReady(); err != nil {
		return nil, &kerrors.LoaderError{Name: path, Err: err}
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, &kerrors.LoaderError{Name: path, Err: err}
	}

	artifact, encrypted := l.locateArtifact(abs)
	if !encrypted {
		return l.loadPlain(artifact, opts)
	}

	if l.sys.Degraded() {
		return nil, &kerrors.LoaderError{Name: path, Err: fmt.Errorf("%w: cannot decrypt %s in pass-through mode", kerrors.ErrNoKeySource, artifact)}
	}

	value, err := l.cache.GetOrCompute(Fingerprint(artifact, opts), func() (any, error) {
		data, err := os.ReadFile(artifact)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, &kerrors.LoaderError{Name: path, Err: fmt.Errorf("%w: %s", kerrors.ErrArtifactNotFound, artifact)}
			}
			return nil, &kerrors.LoaderError{Name: path, Err: err}
		}

		key, err := l.sys.auth.ResolveKey()
		if err != nil {
			return nil, &kerrors.LoaderError{Name: path, Err: err}
		}

		plain, err := l.sys.cipher.Decrypt(data, key)
		if err != nil {
			return nil, &kerrors.LoaderError{Name: path, Err: err}
		}

		handle, err := l.build(plain, opts)
		if err != nil {
			return nil, &kerrors.LoaderError{Name: path, Err: err}
		}

		l.sys.log.Debugf("Constructed handle for %s", artifact)
		return handle, nil
	})
	if err != nil {
		return nil, err
	}
	return value.(Handle), nil
}

// locateArtifact decides whether path denotes an encrypted artifact and
// where its bytes live: an explicit ".enc" path, a registry entry for the
// canonical path, or an encrypted sibling next to the plain name.
func (l *ModelLoader) locateArtifact(abs string) (string, bool) {
	if strings.HasSuffix(abs, EncryptedExt) {
		return abs, true
	}
	if entry, ok := l.sys.reg.Lookup(abs); ok {
		return entry.Path, true
	}
	if sibling := abs + EncryptedExt; fileExists(sibling) {
		return sibling, true
	}
	return abs, false
}

// loadPlain delegates an unencrypted file straight to the builder, with no
// caching: the underlying mechanism owns its own lifecycle for plain files.
func (l *ModelLoader) loadPlain(path string, opts Options) (Handle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &kerrors.LoaderError{Name: path, Err: fmt.Errorf("%w: %s", kerrors.ErrArtifactNotFound, path)}
		}
		return nil, &kerrors.LoaderError{Name: path, Err: err}
	}

	handle, err := l.build(data, opts)
	if err != nil {
		return nil, &kerrors.LoaderError{Name: path, Err: err}
	}
	return handle, nil
}

// Fingerprint is the cache identity of a (path, options) pair: a blake3
// digest over the artifact path and the normalized options. JSON
// serialization sorts map keys, so equal option sets fingerprint equally
// regardless of construction order.
func Fingerprint(path string, opts Options) string {
	normalized, err := json.Marshal(opts)
	if err != nil {
		// Unserializable option values still need a stable identity.
		normalized = []byte(fmt.Sprintf("%#v", opts))
	}

	h := blake3.New()
	h.Write([]byte(path))
	h.Write([]byte{0})
	h.Write(normalized)
	return hex.EncodeToString(h.Sum(nil))
}
