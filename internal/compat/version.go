// Package compat decides which macOS installers a machine model is able to run.
package compat

import (
	"fmt"
	"strings"

	"github.com/Masterminds/semver"
)

// Version is a named macOS release. Versions compare by Number only, so two installers with different names but the
// same release number are the same version.
type Version struct {
	Name   string
	Number *semver.Version
}

// knownRelease maps a marker found in an installer name to the release number it identifies.
type knownRelease struct {
	marker string
	number string
}

// knownReleases is checked in order. High Sierra must be matched before Sierra.
var knownReleases = []knownRelease{
	{marker: "Mavericks", number: "10.9"},
	{marker: "Yosemite", number: "10.10"},
	{marker: "El Capitan", number: "10.11"},
	{marker: "High Sierra", number: "10.13"},
	{marker: "Sierra", number: "10.12"},
	{marker: "Mojave", number: "10.14"},
	{marker: "Catalina", number: "10.15"},
	{marker: "Big Sur", number: "11.0"},
	{marker: "Monterey", number: "12.0"},
	{marker: "Ventura", number: "13.0"},
	{marker: "Sonoma", number: "14.0"},
	{marker: "Sequoia", number: "15.0"},
}

var (
	Mavericks  = mustVersion("OS X Mavericks", "10.9")
	Yosemite   = mustVersion("OS X Yosemite", "10.10")
	ElCapitan  = mustVersion("OS X El Capitan", "10.11")
	Sierra     = mustVersion("macOS Sierra", "10.12")
	HighSierra = mustVersion("macOS High Sierra", "10.13")
	Mojave     = mustVersion("macOS Mojave", "10.14")
	Catalina   = mustVersion("macOS Catalina", "10.15")
)

var (
	// unknownNumber sorts unrecognised releases below every known release.
	unknownNumber = mustNumber("0.0")
	// apfsMinimum is the first release whose installer requires an APFS target.
	apfsMinimum = mustNumber("10.13")
)

func mustNumber(number string) *semver.Version {
	v, err := semver.NewVersion(number)
	if err != nil {
		panic(fmt.Errorf("must initialize release number: %w", err))
	}

	return v
}

func mustVersion(name, number string) Version {
	return Version{Name: name, Number: mustNumber(number)}
}

// ParseVersion identifies the release named by name. Names without a known release marker get the 0.0 number.
func ParseVersion(name string) Version {
	for _, r := range knownReleases {
		if strings.Contains(name, r.marker) {
			return Version{Name: name, Number: mustNumber(r.number)}
		}
	}

	return Version{Name: name, Number: unknownNumber}
}

// number guards against zero Versions.
func (v Version) number() *semver.Version {
	if v.Number == nil {
		return unknownNumber
	}

	return v.Number
}

// Equal reports whether both versions identify the same release.
func (v Version) Equal(other Version) bool {
	return v.number().Equal(other.number())
}

// Less orders versions from oldest to newest.
func (v Version) Less(other Version) bool {
	return v.number().LessThan(other.number())
}

// IsKnown reports whether the version was recognised.
func (v Version) IsKnown() bool {
	return !v.Equal(Version{})
}

// NeedsAPFS reports whether the installer for this release can only install onto an APFS volume.
func (v Version) NeedsAPFS() bool {
	return !v.number().LessThan(apfsMinimum)
}

// SortNumber flattens the release number for sorting, e.g. 10.15 becomes 1015.
func (v Version) SortNumber() int64 {
	n := v.number()
	return n.Major()*100 + n.Minor()
}

func (v Version) String() string {
	return fmt.Sprintf("%s - %d.%d", v.Name, v.number().Major(), v.number().Minor())
}

// Contains reports whether versions holds a version equal to v.
func Contains(versions []Version, v Version) bool {
	for _, candidate := range versions {
		if candidate.Equal(v) {
			return true
		}
	}

	return false
}
