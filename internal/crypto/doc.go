// Package crypto implements the artifact cipher engine: AES-CFB with
// partial encryption and a dual IV policy.
//
// # Artifact format
//
// Random-IV artifacts (the default for new builds) start with a 20-byte
// header — the magic "KRW1" and a per-file 16-byte IV — followed by the
// cipher body. Legacy artifacts are the bare cipher body under a fixed IV,
// kept for byte-compatibility with existing deployments; note that under
// the fixed IV identical plaintext prefixes always encrypt identically.
//
// # Partial encryption
//
// Only the first Threshold bytes (10 MiB by default) of a payload pass
// through the cipher; the remainder is appended verbatim. CFB keeps the
// encrypted region the same length as the plaintext region, so decrypting
// the prefix cannot disturb the verbatim tail. This is a documented
// weakening traded for load speed on large model files, whose sensitive
// structure concentrates in the leading bytes.
package crypto
