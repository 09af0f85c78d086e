// Package android carries the metadata for the prebuilt binary sets that
// Android targets pull instead of building ports from source.
package android
