// Package vcpkg manages a per-project, content-addressed installation of the
// vcpkg dependency tool.
//
// The installation identity is derived from a digest of the ports overlay
// plus a format version; the resulting tag, persisted inside the root,
// decides on every invocation whether the installation is reused or torn
// down and rebuilt. Downloads, archive extraction and tool invocation are
// injectable collaborators, keeping the reconciliation logic testable.
package vcpkg
