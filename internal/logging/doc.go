// Package logger provides verbosity-gated colored logging for Korowai
// commands and library components.
//
// Logging behavior is controlled by two flags:
//
//   - --verbose: shows info and warning messages
//   - --debug: shows all messages including debug details
//
// Without flags, only critical warnings and errors are shown.
//
// Commands create a Logger in their PersistentPreRun and pass it (by value)
// to the internal packages that want progress output. The zero Logger is
// valid and quiet except for errors and WarnfAlways.
package logger
