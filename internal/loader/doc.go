// Package loader is the runtime half of the subsystem: it resolves logical
// unit names and canonical model paths to encrypted artifacts, decrypts them
// in memory, and activates them into namespaces or runtime handles.
//
// All state lives in an explicitly constructed System. There are no
// package-level singletons: tests and embedders can run several independent
// systems in one process.
package loader
