// Package errors defines sentinel errors and identity-carrying error types
// for the Korowai loading subsystem.
//
// Sentinels describe the category of a failure and are matched with
// errors.Is. The wrapper types (AuthError, DecryptionError, LoaderError,
// ConfigError) attach the logical name or artifact path a failure belongs
// to and are matched with errors.As; they unwrap to their cause, so both
// matching styles compose.
//
// Lookup and discovery misses are not errors anywhere in Korowai — loaders
// signal them with a found=false return so the host's normal resolution can
// proceed.
package errors
