package types

import (
	"fmt"
)

const (
	// noContent is reported for disks diskutil lists without a content type.
	noContent = "None"

	// noVolumeName is reported for disks without an installable partition.
	noVolumeName = "None"
)

// Disk mirrors a single entry of "AllDisksAndPartitions" in the output of "diskutil list -plist". Disks are
// treated as values: changes produce a replacement copy through WithPartitions or WithAPFSVolumes.
type Disk struct {
	Content          string      `plist:"Content" yaml:"content,omitempty"`
	DeviceIdentifier string      `plist:"DeviceIdentifier" yaml:"device_identifier"`
	Size             Size        `plist:"Size" yaml:"size"`
	Partitions       []Partition `plist:"Partitions" yaml:"partitions,omitempty"`
	APFSVolumes      []Partition `plist:"APFSVolumes" yaml:"apfs_volumes,omitempty"`

	// Fake marks disks generated for demonstration rigs rather than decoded from diskutil.
	Fake bool `plist:"-" yaml:"fake,omitempty"`

	// Info holds the "diskutil info" details for the disk once they have been fetched.
	Info *DiskInfo `plist:"-" yaml:"info,omitempty"`
}

// ContentType returns the disk's content type or "None" when diskutil did not report one.
func (d Disk) ContentType() string {
	if d.Content == "" {
		return noContent
	}

	return d.Content
}

// ID derives the disk's identity from its device identifier, size and content type. Two disks reporting the
// same three values are indistinguishable.
func (d Disk) ID() string {
	return HashID(fmt.Sprintf("%s-%d-%s", d.DeviceIdentifier, d.Size, d.ContentType()))
}

// Equal reports whether both disks share the same content type, device identifier and size.
func (d Disk) Equal(other Disk) bool {
	return d.ContentType() == other.ContentType() &&
		d.DeviceIdentifier == other.DeviceIdentifier &&
		d.Size == other.Size
}

// IsAPFS reports whether the disk is a synthesized APFS container, which diskutil lists without a regular
// partition map.
func (d Disk) IsAPFS() bool {
	return d.Partitions == nil
}

// AllPartitions returns the regular partitions followed by the APFS volumes of the disk.
func (d Disk) AllPartitions() []Partition {
	all := make([]Partition, 0, len(d.Partitions)+len(d.APFSVolumes))
	all = append(all, d.Partitions...)
	all = append(all, d.APFSVolumes...)

	return all
}

// InstallablePartition returns the first partition an installer can target.
func (d Disk) InstallablePartition() (Partition, bool) {
	for _, p := range d.AllPartitions() {
		if p.Installable() {
			return p, true
		}
	}

	return Partition{}, false
}

// InstallablePartitions returns every partition an installer can target.
func (d Disk) InstallablePartitions() []Partition {
	var parts []Partition
	for _, p := range d.AllPartitions() {
		if p.Installable() {
			parts = append(parts, p)
		}
	}

	return parts
}

// MountedPartitions returns every partition that has a mount point.
func (d Disk) MountedPartitions() []Partition {
	var parts []Partition
	for _, p := range d.AllPartitions() {
		if p.IsMounted() {
			parts = append(parts, p)
		}
	}

	return parts
}

// VolumeName returns the name of the installable partition or "None".
func (d Disk) VolumeName() string {
	if p, ok := d.InstallablePartition(); ok {
		return p.Name()
	}

	return noVolumeName
}

// FormattedFor reports whether the disk is laid out for an installer that does or does not require APFS.
func (d Disk) FormattedFor(needsAPFS bool) bool {
	if needsAPFS {
		return d.APFSVolumes != nil
	}

	return d.Content == ContentGUIDScheme
}

// WithPartitions returns a copy of the disk with its regular partitions replaced.
func (d Disk) WithPartitions(parts []Partition) Disk {
	d.Partitions = append([]Partition(nil), parts...)
	return d
}

// WithAPFSVolumes returns a copy of the disk with its APFS volumes replaced.
func (d Disk) WithAPFSVolumes(volumes []Partition) Disk {
	d.APFSVolumes = append([]Partition(nil), volumes...)
	return d
}

// WithInfo returns a copy of the disk carrying the given info.
func (d Disk) WithInfo(info *DiskInfo) Disk {
	d.Info = info
	return d
}
