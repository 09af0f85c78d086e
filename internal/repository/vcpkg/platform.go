package vcpkg

// distribution pins the base tool archive for one host platform. The digest
// is SHA-512 and verification is mandatory: a mismatch aborts the bootstrap.
type distribution struct {
	// url is the pinned archive location.
	url string
	// sha512 is the hex digest the archive must match.
	sha512 string
	// exeName is the tool binary name inside the extracted root.
	exeName string
	// hostTriplet selects build variants for tools running on this host.
	hostTriplet string
}

// distributionFor returns the archive pinned for the given GOOS,
// defaulting to the Linux build.
func distributionFor(goos string) distribution {
	switch goos {
	case "windows":
		return distribution{
			url:         "https://artifacts.vcpkg-tools.dev/dependencies/vcpkg/vcpkg-win32.tar.gz",
			sha512:      "3e0ff829a74956491d57666109b3e6b5ce4ed0735c24093884317102387b2cb1b2cd1ff38af9ed9173501f6e32ffa05cc6fe6d470b77a71ca1ffc3e0aa46ab9e",
			exeName:     "vcpkg.exe",
			hostTriplet: "x64-windows",
		}
	case "darwin":
		return distribution{
			url:         "https://artifacts.vcpkg-tools.dev/dependencies/vcpkg/vcpkg-osx.tar.gz",
			sha512:      "519d666d02ef22b87c793f016ca412e70f92e1d55953c8f9bd4ee40f6d9f78c1df01a6ee293907718f3bbf24075cc35492fb216326dfc50712a95858e9cbcb4d",
			exeName:     "vcpkg",
			hostTriplet: "x64-osx",
		}
	default:
		return distribution{
			url:         "https://artifacts.vcpkg-tools.dev/dependencies/vcpkg/vcpkg-linux.tar.gz",
			sha512:      "6a1ce47ef6621e699a4627e8821ad32528c82fce62a6939d35b205da2d299aaa405b5f392df4a9e5343dd6a296516e341105fbb2dd8b48864781d129d7fba10d",
			exeName:     "vcpkg",
			hostTriplet: "x64-linux",
		}
	}
}

// qtURLFor returns the prebuilt Qt archive for desktop targets on the given
// GOOS. These archives carry no pinned digest; they unpack a versioned
// directory under installed/ that is skipped when already present.
func qtURLFor(goos string) string {
	switch goos {
	case "windows":
		return "https://artifacts.vcpkg-tools.dev/qt5/windows/vcpkg-qt5.tar.gz"
	case "darwin":
		return "https://artifacts.vcpkg-tools.dev/qt5/mac/qt5-install.zip"
	default:
		return "https://artifacts.vcpkg-tools.dev/qt5/ubuntu/qt5-install.zip"
	}
}
