// Package ui contains small text-formatting helpers shared by the CLI
// commands, mainly for composing spinner final messages.
package ui
