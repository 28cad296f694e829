// Package config loads and validates korowai.toml project configuration.
//
// Configuration layers, lowest precedence first:
//
//  1. Built-in defaults (Default)
//  2. korowai.toml at the project root
//  3. KOROWAI_* environment variables (AUTH_MODE, LICENSE_PATH, ENC_LEN,
//     IV_POLICY)
//
// The auth mode decides which key sources the resolver may use and whether
// a missing key source is fatal; see the auth package.
package config
