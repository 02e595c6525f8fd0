package types

import (
	"path/filepath"
	"strings"
)

const (
	// minimumInstallableGigabytes is the smallest partition size an installer will be pointed at.
	minimumInstallableGigabytes = 120

	// systemReservedName is the volume label Boot Camp gives its Windows recovery partition.
	systemReservedName = "System Reserved"

	// notMountedName is reported for partitions without a name or a mount point.
	notMountedName = "Not mounted"
)

// Content types diskutil reports for partitions that are relevant to installs.
const (
	ContentAPFSContainer = "Apple_APFS"
	ContentHFS           = "Apple_HFS"
	ContentEFI           = "EFI"
	ContentGUIDScheme    = "GUID_partition_scheme"
)

// installerMarkers are the folder names macOS installers mount their payload volumes under.
var installerMarkers = []string{"Install macOS", "Install OS X"}

// Partition mirrors a single entry of the "Partitions" or "APFSVolumes" arrays in the output of
// "diskutil list -plist".
type Partition struct {
	Content          string `plist:"Content" yaml:"content,omitempty"`
	DeviceIdentifier string `plist:"DeviceIdentifier" yaml:"device_identifier"`
	DiskUUID         string `plist:"DiskUUID" yaml:"disk_uuid,omitempty"`
	Size             Size   `plist:"Size" yaml:"size"`
	VolumeName       string `plist:"VolumeName" yaml:"volume_name,omitempty"`
	VolumeUUID       string `plist:"VolumeUUID" yaml:"volume_uuid,omitempty"`
	MountPoint       string `plist:"MountPoint" yaml:"mount_point,omitempty"`

	// Fake marks partitions generated for demonstration rigs rather than decoded from diskutil.
	Fake bool `plist:"-" yaml:"fake,omitempty"`
}

// ID returns the partition's stable identifier: its volume UUID, else its disk UUID, else a hash of its
// device identifier.
func (p Partition) ID() string {
	switch {
	case p.VolumeUUID != "":
		return p.VolumeUUID
	case p.DiskUUID != "":
		return p.DiskUUID
	default:
		return HashID(p.DeviceIdentifier)
	}
}

// Equal reports whether both partitions refer to the same volume.
func (p Partition) Equal(other Partition) bool {
	return p.VolumeUUID == other.VolumeUUID && p.DiskUUID == other.DiskUUID &&
		p.DeviceIdentifier == other.DeviceIdentifier
}

// Name returns the volume name, falling back to the last component of the mount point.
func (p Partition) Name() string {
	if p.VolumeName != "" {
		return p.VolumeName
	}
	if p.MountPoint != "" {
		return filepath.Base(p.MountPoint)
	}

	return notMountedName
}

// IsMounted reports whether the partition currently has a mount point.
func (p Partition) IsMounted() bool {
	return p.MountPoint != ""
}

// IsAPFS reports whether the partition is an APFS volume or container. APFS volumes listed under
// "APFSVolumes" carry no content type but always have a volume UUID.
func (p Partition) IsAPFS() bool {
	return (p.Content == "" && p.VolumeUUID != "") || p.Content == ContentAPFSContainer
}

// Installable reports whether an operating system can be installed onto the partition. The partition must be
// at least 120 GB, mounted, not the "System Reserved" Boot Camp volume and neither an EFI partition nor a
// bare APFS container.
func (p Partition) Installable() bool {
	if p.Size.Gigabytes() < minimumInstallableGigabytes {
		return false
	}
	if p.Name() == systemReservedName || !p.IsMounted() {
		return false
	}

	return p.Content != ContentEFI && p.Content != ContentAPFSContainer
}

// ContainsInstaller reports whether the partition is mounted under a macOS installer folder name.
func (p Partition) ContainsInstaller() bool {
	return containsInstallerMarker(p.MountPoint)
}

// FormattedFor reports whether the partition's file system suits an installer that does or does not require
// APFS.
func (p Partition) FormattedFor(needsAPFS bool) bool {
	if needsAPFS {
		return p.IsAPFS()
	}

	return p.Content == ContentHFS
}

// containsInstallerMarker checks the path for any known installer folder name.
func containsInstallerMarker(path string) bool {
	for _, marker := range installerMarkers {
		if strings.Contains(path, marker) {
			return true
		}
	}

	return false
}
