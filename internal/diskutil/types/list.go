package types

import (
	"fmt"
	"strings"
)

// DiskList mirrors the output format of the command "diskutil list -plist" to store all disk
// and partition information.
type DiskList struct {
	AllDisks              []string `plist:"AllDisks" yaml:"all_disks"`
	AllDisksAndPartitions []Disk   `plist:"AllDisksAndPartitions" yaml:"disks"`
	VolumesFromDisks      []string `plist:"VolumesFromDisks" yaml:"volumes_from_disks"`
	WholeDisks            []string `plist:"WholeDisks" yaml:"whole_disks"`
}

// Disks returns the disks described by the list.
func (l *DiskList) Disks() []Disk {
	return l.AllDisksAndPartitions
}

// Disk looks up the disk with the given device identifier.
func (l *DiskList) Disk(id string) (Disk, bool) {
	for _, d := range l.AllDisksAndPartitions {
		if strings.EqualFold(d.DeviceIdentifier, id) {
			return d, true
		}
	}

	return Disk{}, false
}

// Contains reports whether the device identifier names a disk or partition in the list.
func (l *DiskList) Contains(id string) bool {
	for _, name := range l.AllDisks {
		if strings.EqualFold(name, id) {
			return true
		}
	}

	return false
}

// AvailableDiskSpace calculates the amount of unallocated disk space for a specific device id.
func (l *DiskList) AvailableDiskSpace(id string) (Size, error) {
	target, ok := l.Disk(id)
	if !ok {
		return 0, fmt.Errorf("no partition information found for ID [%s]", id)
	}

	// Sum up disk's current allocations.
	var allocated Size
	for _, p := range target.Partitions {
		allocated += p.Size
	}
	if allocated > target.Size {
		return 0, nil
	}

	return target.Size - allocated, nil
}
