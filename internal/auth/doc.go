// Package auth resolves and guards the process encryption key.
//
// The Manager tries key sources in a fixed priority order — a
// device-specific sealed license located through the authorization device,
// then the configured or default license file — and validates the resolved
// key's length before anyone may use it. Resolution happens once per
// process; Rotate forces the next caller to re-resolve. ResolveKey hands
// out copies, so rotation never yanks key material out from under an
// in-flight decrypt.
//
// Two failure classes matter to callers: "no source available" (check with
// IsNoSource; DEV-mode initialization may degrade to pass-through) and
// "source present but invalid", which is always fatal.
//
// Key material is never logged and never written outside its source file.
package auth
