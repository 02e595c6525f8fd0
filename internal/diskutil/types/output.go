package types

import (
	"errors"
	"fmt"
)

// Output is implemented by every record decoded from diskutil or hdiutil plist output.
type Output interface {
	// Command names the invocation the record was produced by.
	Command() string
	// Validate checks that the keys the record cannot work without were present in the output.
	Validate() error
}

func (l *DiskList) Command() string { return "diskutil list" }

func (l *DiskList) Validate() error {
	if l.AllDisksAndPartitions == nil {
		return errors.New("missing AllDisksAndPartitions")
	}
	for i, d := range l.AllDisksAndPartitions {
		if d.DeviceIdentifier == "" {
			return fmt.Errorf("disk %d is missing DeviceIdentifier", i)
		}
	}

	return nil
}

func (d *DiskInfo) Command() string { return "diskutil info" }

func (d *DiskInfo) Validate() error {
	if d.DeviceIdentifier == "" {
		return errors.New("missing DeviceIdentifier")
	}

	return nil
}

func (c *CoreStorageList) Command() string { return "diskutil cs list" }

func (c *CoreStorageList) Validate() error {
	if c.LogicalVolumeGroups == nil {
		return errors.New("missing CoreStorageLogicalVolumeGroups")
	}
	for i, group := range c.LogicalVolumeGroups {
		if group.UUID == "" {
			return fmt.Errorf("logical volume group %d is missing CoreStorageUUID", i)
		}
	}

	return nil
}

func (m *MountResult) Command() string { return "hdiutil mount" }

func (m *MountResult) Validate() error {
	if m.DiskImages == nil {
		return errors.New("missing system-entities")
	}

	return nil
}
