// Package discovery walks a project tree and finds the source units and
// binary model files a build should encrypt. Exclusion rules keep build
// output, caches, and tooling directories out of the scan.
package discovery
