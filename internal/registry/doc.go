// Package registry maintains the mapping from logical names and canonical
// artifact paths to encrypted-artifact locations, and reads and writes the
// build manifest that populates it.
//
// The registry is shared by both loaders and is append-mostly: the build
// manifest seeds it, and lazy discovery extends it at runtime. A lookup
// miss is not an error — it is the signal to attempt discovery or defer to
// the host's normal resolution.
package registry
