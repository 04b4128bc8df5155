// Package bhtsne binds the native Multicore-TSNE library through cgo.
// Build with -tags nativetsne and libtsne_multicore on the linker path;
// without the tag every entry point reports the routine as unavailable.
package bhtsne

import (
	"github.com/Masterminds/semver/v3"

	"github.com/teranos/rtsne/errors"
)

// SupportedVersions is the range of library versions this binding accepts.
const SupportedVersions = ">= 0.1.0, < 1.0.0"

// DefaultSeed matches the Go engine so both backends start from a fixed layout.
const DefaultSeed = 42

// LibraryVersion is the version of the linked libtsne_multicore. Override with
//
//	-ldflags "-X github.com/teranos/rtsne/bhtsne.LibraryVersion=0.1.1"
var LibraryVersion = "0.1.0"

// CheckCompatible reports whether the library version v is supported.
func CheckCompatible(v string) error {
	constraint, err := semver.NewConstraint(SupportedVersions)
	if err != nil {
		return errors.Wrap(err, "invalid version constraint")
	}
	parsed, err := semver.NewVersion(v)
	if err != nil {
		return errors.Wrapf(err, "invalid native library version %q", v)
	}
	if !constraint.Check(parsed) {
		return errors.WithHintf(
			errors.Newf("native library version %s is not supported", parsed),
			"rebuild against a libtsne_multicore matching %s", SupportedVersions)
	}
	return nil
}
