// Package setup orchestrates one reconciliation run: resolve configuration,
// take the installation lock, bootstrap when stale, install dependency sets,
// commit the tag and emit the toolchain config for the build system.
package setup
