package types

// CoreStorageList mirrors the output format of the command "diskutil cs list -plist".
type CoreStorageList struct {
	LogicalVolumeGroups []LogicalVolumeGroup `plist:"CoreStorageLogicalVolumeGroups" yaml:"logical_volume_groups"`
}

// LogicalVolumeGroup is a CoreStorage logical volume group, the container a Fusion Drive is built from.
type LogicalVolumeGroup struct {
	Role string `plist:"CoreStorageRole" yaml:"role"`
	UUID string `plist:"CoreStorageUUID" yaml:"uuid"`
}
