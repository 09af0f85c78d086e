// Package hashdir computes a stable content digest over a directory tree.
//
// The digest is a pure function of file contents: two trees with identical
// contents hash identically on any platform, and changing a single byte in
// any file changes the digest.
package hashdir
