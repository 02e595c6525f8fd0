package compat

import (
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

// modelFamily is a row of the installer decision table. Models whose identifier digits (e.g. 152 for
// "MacBookPro15,2") exceed threshold can run Mojave and Catalina.
type modelFamily struct {
	prefix    string
	threshold int
	// extra versions the family can always install.
	extra []Version
}

// modelFamilies is matched in order by substring, so MacBookPro and MacBookAir must be checked before MacBook.
var modelFamilies = []modelFamily{
	{prefix: "MacBookPro", threshold: 91},
	{prefix: "MacBookAir", threshold: 51},
	{prefix: "MacBook", threshold: 81},
	{prefix: "Macmini", threshold: 61},
	{prefix: "MacPro", threshold: 41, extra: []Version{Mavericks}},
	{prefix: "iMac", threshold: 131},
}

// virtualModelMarker identifies VMware guests, which can install every supported release.
const virtualModelMarker = "VMware"

// ModelYearDetermination builds the allow-list of installable releases for a machine model.
type ModelYearDetermination struct {
	ModelIdentifier string
}

// InstallableVersions returns the releases the model can install, newest first. El Capitan and High Sierra are
// always installable.
func (m ModelYearDetermination) InstallableVersions() []Version {
	versions := []Version{ElCapitan, HighSierra}

	for _, family := range modelFamilies {
		if !strings.Contains(m.ModelIdentifier, family.prefix) {
			continue
		}

		versions = append(versions, family.extra...)

		digits, err := identifierDigits(m.ModelIdentifier, family.prefix)
		if err != nil {
			logrus.WithError(err).WithField("model", m.ModelIdentifier).Warn("Unable to read model identifier digits")
			break
		}
		if digits > family.threshold {
			versions = append(versions, Mojave, Catalina)
		}

		return reversed(versions)
	}

	if strings.Contains(m.ModelIdentifier, virtualModelMarker) {
		versions = append(versions, Mojave, Catalina)
	}

	return reversed(versions)
}

// CanInstall reports whether the model can install v.
func (m ModelYearDetermination) CanInstall(v Version) bool {
	return Contains(m.InstallableVersions(), v)
}

// identifierDigits strips the family name and the comma from a model identifier: "iMac14,2" becomes 142.
func identifierDigits(model, family string) (int, error) {
	digits := strings.ReplaceAll(strings.ReplaceAll(model, family, ""), ",", "")

	return strconv.Atoi(digits)
}

func reversed(versions []Version) []Version {
	out := make([]Version, 0, len(versions))
	for i := len(versions) - 1; i >= 0; i-- {
		out = append(out, versions[i])
	}

	return out
}
