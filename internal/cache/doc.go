// Package cache implements the decrypted-content cache shared by the
// module and model loaders.
//
// Values live for the process lifetime (no TTL, no eviction) and are keyed
// by logical name or artifact fingerprint. The one guarantee callers build
// on is compute-once: however many goroutines race on the first use of a
// key, the decrypt-and-construct function runs exactly once and everyone
// shares its result. Values implementing io.Closer are closed when their
// entry is invalidated or the store is cleared.
package cache
