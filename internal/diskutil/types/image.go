package types

import (
	"fmt"
	"path/filepath"
)

// DiskImage mirrors a single "system-entities" element emitted by "hdiutil mount -plist".
type DiskImage struct {
	ContentHint          string `plist:"content-hint" yaml:"content_hint,omitempty"`
	DevEntry             string `plist:"dev-entry" yaml:"dev_entry"`
	PotentiallyMountable bool   `plist:"potentially-mountable" yaml:"potentially_mountable"`
	UnmappedContentHint  string `plist:"unmapped-content-hint" yaml:"unmapped_content_hint,omitempty"`
	MountPoint           string `plist:"mount-point" yaml:"mount_point,omitempty"`
}

// ID derives the image's identity from its device entry and mount point.
func (i DiskImage) ID() string {
	return HashID(fmt.Sprintf("%s-%s", i.DevEntry, i.MountPoint))
}

// Equal reports whether both entities refer to the same device entry and mount point.
func (i DiskImage) Equal(other DiskImage) bool {
	return i.DevEntry == other.DevEntry && i.MountPoint == other.MountPoint
}

// VolumeName returns the last component of the mount point or an empty string for unmounted entities.
func (i DiskImage) VolumeName() string {
	if i.MountPoint == "" {
		return ""
	}

	return filepath.Base(i.MountPoint)
}

// IsMounted reports whether hdiutil mounted a volume for the entity.
func (i DiskImage) IsMounted() bool {
	return i.MountPoint != ""
}

// IsMountable reports whether the entity holds a volume which has been mounted.
func (i DiskImage) IsMountable() bool {
	return i.PotentiallyMountable && i.IsMounted()
}

// ContainsInstaller reports whether the entity is mounted under a macOS installer folder name.
func (i DiskImage) ContainsInstaller() bool {
	return containsInstallerMarker(i.MountPoint)
}

// MountResult mirrors the output format of the command "hdiutil mount -plist <image>".
type MountResult struct {
	DiskImages []DiskImage `plist:"system-entities" yaml:"system_entities"`
}

// MountableDiskImage returns the first entity that holds a mounted volume.
func (m *MountResult) MountableDiskImage() (DiskImage, bool) {
	for _, image := range m.DiskImages {
		if image.IsMountable() {
			return image, true
		}
	}

	return DiskImage{}, false
}
