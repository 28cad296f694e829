// Package build produces encrypted build trees: it copies a project into
// the build directory, encrypts discovered units and models in place, and
// writes the manifest that the runtime loaders consume. It also packages a
// finished build into a single distributable archive.
package build
