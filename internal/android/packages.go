package android

import (
	"fmt"
	"strings"
)

const (
	// Triplet is the only Android target the dependency tool builds for.
	Triplet = "arm64-android"

	// baseURL hosts the prebuilt Android binary archives.
	baseURL = "https://artifacts.vcpkg-tools.dev/dependencies/android"

	// PrebuiltInstalledURL holds a prebuilt vcpkg installed tree for the
	// Android triplet, extracted under installed/ on first setup.
	PrebuiltInstalledURL = "https://artifacts.vcpkg-tools.dev/dependencies/vcpkg/vcpkg-arm64-android.tar.gz"
)

// Package describes one prebuilt Android binary set.
type Package struct {
	// File is the archive filename under the package base URL.
	File string
	// Checksum is the hex MD5 digest of the archive.
	Checksum string
}

// URL returns the full download location of the package archive.
func (p Package) URL() string {
	return fmt.Sprintf("%s/%s", baseURL, p.File)
}

// IsZip reports whether the archive is a zip rather than a tarball.
func (p Package) IsZip() bool {
	return strings.HasSuffix(p.File, ".zip")
}

// Packages returns the prebuilt binary sets installed for Android targets,
// keyed by the directory name they unpack into. Checksums are MD5 because
// that is what the hosting pipeline publishes for these archives.
func Packages() map[string]Package {
	return map[string]Package{
		"qt": {
			File:     "qt-5.15.2-android.tar.gz",
			Checksum: "9b2fb2e82ef5b1d01627a1702e35c4a7",
		},
		"openssl": {
			File:     "openssl-1.1.1g-android.tar.gz",
			Checksum: "2b00e38d5dcdcbcf7dfa0b414aeb0a1e",
		},
		"tbb": {
			File:     "tbb-2020.2-android.tar.gz",
			Checksum: "7b612cb7c1a2392b7d4adafbb7ba7b24",
		},
		"polyvox": {
			File:     "polyvox-0.2.1-android.tar.gz",
			Checksum: "5c918288741ac1b27ee9b320bf64a152",
		},
		"etc2comp": {
			File:     "etc2comp-patched-android.zip",
			Checksum: "412e9626ab12c5a41dbb3e1a26ca8ee4",
		},
	}
}
