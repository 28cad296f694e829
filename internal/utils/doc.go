// Package utils provides filesystem helpers shared by the build pipeline
// and the CLI: project-root discovery, tree copying, and file counting.
package utils
