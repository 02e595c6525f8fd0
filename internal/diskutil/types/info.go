package types

import (
	"strings"
)

// fusionModelFamilies are the only model families that shipped with Fusion Drives.
var fusionModelFamilies = []string{"iMac", "Macmini"}

// DiskInfo mirrors the output format of the command "diskutil info -plist <disk>" to store information about
// a disk.
type DiskInfo struct {
	BusProtocol         string `plist:"BusProtocol" yaml:"bus_protocol,omitempty"`
	Content             string `plist:"Content" yaml:"content,omitempty"`
	DeviceIdentifier    string `plist:"DeviceIdentifier" yaml:"device_identifier"`
	DeviceNode          string `plist:"DeviceNode" yaml:"device_node,omitempty"`
	IORegistryEntryName string `plist:"IORegistryEntryName" yaml:"io_registry_entry_name,omitempty"`
	Internal            bool   `plist:"Internal" yaml:"internal"`
	MediaName           string `plist:"MediaName" yaml:"media_name,omitempty"`
	MountPoint          string `plist:"MountPoint" yaml:"mount_point,omitempty"`
	ParentWholeDisk     string `plist:"ParentWholeDisk" yaml:"parent_whole_disk,omitempty"`
	Removable           bool   `plist:"Removable" yaml:"removable"`
	SMARTStatus         string `plist:"SMARTStatus" yaml:"smart_status,omitempty"`
	Size                Size   `plist:"Size" yaml:"size"`
	SolidState          bool   `plist:"SolidState" yaml:"solid_state"`
	VirtualOrPhysical   string `plist:"VirtualOrPhysical" yaml:"virtual_or_physical,omitempty"`
	VolumeName          string `plist:"VolumeName" yaml:"volume_name,omitempty"`
	WholeDisk           bool   `plist:"WholeDisk" yaml:"whole_disk"`
}

// IsPhysical reports whether diskutil considers the device a physical disk.
func (d *DiskInfo) IsPhysical() bool {
	return strings.EqualFold(d.VirtualOrPhysical, "Physical")
}

// IsVirtual reports whether diskutil considers the device a virtual disk (e.g. an APFS container or disk
// image).
func (d *DiskInfo) IsVirtual() bool {
	return strings.EqualFold(d.VirtualOrPhysical, "Virtual")
}

// PotentialFusionDriveHalf reports whether the disk could be one half of a Fusion Drive: a fixed, internal,
// physical device.
func (d *DiskInfo) PotentialFusionDriveHalf() bool {
	return !d.Removable && d.Internal && d.IsPhysical()
}

// HasFusionDrive reports whether the machine model and its disks make up a Fusion Drive: at least two potential
// halves, one solid state and one spinning.
func HasFusionDrive(model string, infos []*DiskInfo) bool {
	if !isFusionModel(model) {
		return false
	}

	var halves, ssd, hdd int
	for _, info := range infos {
		if info == nil || !info.PotentialFusionDriveHalf() {
			continue
		}
		halves++
		if info.SolidState {
			ssd++
		} else {
			hdd++
		}
	}

	return halves > 1 && ssd > 0 && hdd > 0
}

// FusionHalves returns the first solid state and first spinning disk that could form a Fusion Drive.
func FusionHalves(infos []*DiskInfo) (ssd *DiskInfo, hdd *DiskInfo) {
	for _, info := range infos {
		if info == nil || !info.PotentialFusionDriveHalf() {
			continue
		}
		if info.SolidState && ssd == nil {
			ssd = info
		}
		if !info.SolidState && hdd == nil {
			hdd = info
		}
	}

	return ssd, hdd
}

func isFusionModel(model string) bool {
	for _, family := range fusionModelFamilies {
		if strings.Contains(model, family) {
			return true
		}
	}

	return false
}
