// Package version holds build identification for the bootloader and
// application images. Distinguishing which of the two images is which,
// and which build of either is running, is done by reading these
// values back after flashing.
package version

// Build information, injected via ldflags at build time - must NOT have
// default values in a release build, since a zero value silently
// passing as "unknown" is worse than a link failure.
var (
	Version   string
	GitSHA    string
	BuildDate string
)

// BuildMarker is a fixed string embedded in every image so that
// linkergen's -version flag and a flashed device can be compared by
// eye without decoding the ldflags values.
const BuildMarker = "moonboot-dev"
