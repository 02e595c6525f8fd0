// Package system provides the functionality necessary for identifying the macOS release and the hardware the
// utilities are running on.
package system

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"howett.net/plist"
)

const (
	// versionPath is the path on the root filesystem to the SystemVersion plist
	versionPath = "/System/Library/CoreServices/SystemVersion.plist"

	// dotVersionPath is the path to the symlink that directly references versionPath and bypasses the compatibility
	// mode that was introduced with macOS 11.0.
	dotVersionPath = "/System/Library/CoreServices/.SystemVersionPlatform.plist"

	// dotVersionSwitch is the product version number returned by macOS when the system is in compat mode
	// (SYSTEM_VERSION_COMPAT=1). If this version is returned, dotVersionPath should be read to bypass compat mode.
	dotVersionSwitch = "10.16"
)

// System correlates VersionInfo with a Product and the Machine it runs on.
type System struct {
	versionInfo *VersionInfo
	product     *Product
	machine     *Machine
}

// Product returns the identified macOS release.
func (sys *System) Product() *Product {
	return sys.product
}

// Machine returns the identified hardware, or nil when it could not be determined.
func (sys *System) Machine() *Machine {
	return sys.machine
}

// BuildVersion returns the macOS build number (e.g. "19H15").
func (sys *System) BuildVersion() string {
	return sys.versionInfo.ProductBuildVersion
}

// Scan reads the VersionInfo and the hardware overview and creates a new System struct from them. Failing to
// identify the hardware is logged but not fatal since only installer eligibility depends on it.
func Scan(ctx context.Context) (*System, error) {
	version, err := readVersion()
	if err != nil {
		return nil, err
	}

	product, err := version.Product()
	if err != nil {
		return nil, err
	}

	machine, err := ScanMachine(ctx)
	if err != nil {
		logrus.WithError(err).Warn("Unable to identify machine hardware")
	}

	system := &System{
		versionInfo: version,
		product:     product,
		machine:     machine,
	}

	return system, nil
}

// VersionInfo mirrors the raw data found in the SystemVersion plist file.
type VersionInfo struct {
	ProductBuildVersion       string `plist:"ProductBuildVersion"`
	ProductCopyright          string `plist:"ProductCopyright"`
	ProductName               string `plist:"ProductName"`
	ProductUserVisibleVersion string `plist:"ProductUserVisibleVersion"`
	ProductVersion            string `plist:"ProductVersion"`
}

// Product determines the specific product that the VersionInfo.ProductVersion is associated with.
func (v *VersionInfo) Product() (*Product, error) {
	return NewProduct(v.ProductVersion)
}

// decodeVersionInfo attempts to decode the raw data from the reader into a new VersionInfo struct.
func decodeVersionInfo(reader io.ReadSeeker) (*VersionInfo, error) {
	version := &VersionInfo{}
	if err := plist.NewDecoder(reader).Decode(version); err != nil {
		return nil, fmt.Errorf("system failed to decode contents of reader: %w", err)
	}

	return version, nil
}

// readVersion reads the SystemVersion plist data from disk (versionPath). If "SYSTEM_VERSION_COMPAT" is enabled, it
// will instead read from dotVersionPath to bypass macOS's compat mode.
func readVersion() (*VersionInfo, error) {
	version, err := readProductVersionFile(versionPath)
	if err != nil {
		return nil, err
	}

	if version.ProductVersion == dotVersionSwitch {
		return readProductVersionFile(dotVersionPath)
	}

	return version, nil
}

// readProductVersionFile opens the given file and attempts to decode it as VersionInfo.
func readProductVersionFile(path string) (*VersionInfo, error) {
	versionFile, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer versionFile.Close()

	return decodeVersionInfo(versionFile)
}
