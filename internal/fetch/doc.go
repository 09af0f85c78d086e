// Package fetch downloads, verifies and unpacks release archives.
//
// Verification is mandatory when a digest is pinned: the archive is hashed in
// full before extraction starts, so a mismatch or truncated download never
// leaves partial files in the destination.
package fetch
