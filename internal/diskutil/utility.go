package diskutil

import (
	"context"
	"fmt"

	"github.com/er2/macos-utilities/internal/util"
)

// UtilImpl outlines the functionality necessary for wrapping macOS's diskutil tool. The methods are intentionally
// named to correspond to diskutil(8)'s subcommand names as its API.
type UtilImpl interface {
	// CoreStorageImpl outlines the functionality necessary for wrapping diskutil's "cs" verb.
	CoreStorageImpl
	// Info fetches raw disk information for the specified device identifier.
	Info(ctx context.Context, id string) (string, error)
	// List fetches all disk and partition information for the system.
	// This output will be filtered based on the args provided.
	List(ctx context.Context, args []string) (string, error)
	// Eject ejects the disk with the specified device identifier.
	Eject(ctx context.Context, id string) (string, error)
	// Unmount unmounts the volume at the given mount point, forcefully if requested.
	Unmount(ctx context.Context, mountPoint string, force bool) (string, error)
	// EraseDisk reformats the whole disk with the given format and volume name.
	// This process requires root access.
	EraseDisk(ctx context.Context, format, name, id string) (string, error)
	// EraseVolume reformats a single volume with the given format and volume name.
	// This process requires root access.
	EraseVolume(ctx context.Context, format, name, id string) (string, error)
}

// CoreStorageImpl outlines the functionality necessary for wrapping diskutil's "cs" verb.
type CoreStorageImpl interface {
	// CoreStorageList fetches the raw list of CoreStorage logical volume groups.
	CoreStorageList(ctx context.Context) (string, error)
	// CoreStorageCreate creates a logical volume group named name from the given device identifiers.
	CoreStorageCreate(ctx context.Context, name string, ids []string) (string, error)
	// CoreStorageCreateVolume creates a logical volume inside the logical volume group.
	CoreStorageCreateVolume(ctx context.Context, groupUUID, format, name, size string) (string, error)
	// CoreStorageDelete deletes the logical volume group with the given UUID.
	CoreStorageDelete(ctx context.Context, groupUUID string) (string, error)
}

// DiskUtilityCmd is an empty struct that provides the implementation for the UtilImpl interface.
type DiskUtilityCmd struct{}

// List uses the macOS diskutil list command to list disks and partitions in a plist format by passing the -plist arg.
// List also appends any given args to fully support the diskutil list verb.
func (d *DiskUtilityCmd) List(ctx context.Context, args []string) (string, error) {
	// Create the diskutil command for retrieving all disk and partition information
	//   * -plist converts diskutil's output from human-readable to the plist format
	cmdListDisks := []string{"diskutil", "list", "-plist"}

	// Append arguments to the diskutil list verb
	if len(args) > 0 {
		cmdListDisks = append(cmdListDisks, args...)
	}

	cmdOut, err := util.ExecuteCommand(ctx, cmdListDisks, "", nil, nil)
	if err != nil {
		return cmdOut.Stdout, fmt.Errorf("diskutil: failed to run diskutil command to list all disks, stderr: [%s]: %w", cmdOut.Stderr, err)
	}

	return cmdOut.Stdout, nil
}

// Info uses the macOS diskutil info command to get detailed information about a disk, partition, or container
// format by passing the -plist arg.
func (d *DiskUtilityCmd) Info(ctx context.Context, id string) (string, error) {
	cmdDiskInfo := []string{"diskutil", "info", "-plist", id}

	cmdOut, err := util.ExecuteCommand(ctx, cmdDiskInfo, "", nil, nil)
	if err != nil {
		return cmdOut.Stdout, fmt.Errorf("diskutil: failed to run diskutil command to fetch disk information, stderr: [%s]: %w", cmdOut.Stderr, err)
	}

	return cmdOut.Stdout, nil
}

// Eject uses the macOS diskutil eject command to detach a disk image or removable disk.
func (d *DiskUtilityCmd) Eject(ctx context.Context, id string) (string, error) {
	cmdEject := []string{"diskutil", "eject", id}

	cmdOut, err := util.ExecuteCommand(ctx, cmdEject, "", nil, nil)
	if err != nil {
		return cmdOut.Stdout, fmt.Errorf("diskutil: failed to run diskutil command to eject disk, stderr: [%s]: %w", cmdOut.Stderr, err)
	}

	return cmdOut.Stdout, nil
}

// Unmount uses the macOS diskutil unmount command to unmount the volume at mountPoint.
func (d *DiskUtilityCmd) Unmount(ctx context.Context, mountPoint string, force bool) (string, error) {
	// cmdUnmount represents the command used for executing macOS's diskutil to unmount a volume
	//   * force - unmounts even when files on the volume are open (used for NFS shares)
	cmdUnmount := []string{"diskutil", "unmount"}
	if force {
		cmdUnmount = append(cmdUnmount, "force")
	}
	cmdUnmount = append(cmdUnmount, mountPoint)

	cmdOut, err := util.ExecuteCommand(ctx, cmdUnmount, "", nil, nil)
	if err != nil {
		return cmdOut.Stdout, fmt.Errorf("diskutil: failed to run diskutil command to unmount volume, stderr: [%s]: %w", cmdOut.Stderr, err)
	}

	return cmdOut.Stdout, nil
}

// EraseDisk uses the macOS diskutil eraseDisk command to reformat a whole disk.
func (d *DiskUtilityCmd) EraseDisk(ctx context.Context, format, name, id string) (string, error) {
	// cmdEraseDisk represents the command used for executing macOS's diskutil to erase a disk
	//   * format - the personality of the new file system (e.g. "JHFS+" or "APFS")
	//   * name - the name of the volume created on the erased disk
	//   * id - the device identifier of the whole disk
	cmdEraseDisk := []string{"diskutil", "eraseDisk", format, name, id}

	cmdOut, err := util.ExecuteCommand(ctx, cmdEraseDisk, "", nil, nil)
	if err != nil {
		return cmdOut.Stdout, fmt.Errorf("diskutil: failed to run eraseDisk command, stderr: [%s]: %w", cmdOut.Stderr, err)
	}

	return cmdOut.Stdout, nil
}

// EraseVolume uses the macOS diskutil eraseVolume command to reformat a single volume.
func (d *DiskUtilityCmd) EraseVolume(ctx context.Context, format, name, id string) (string, error) {
	cmdEraseVolume := []string{"diskutil", "eraseVolume", format, name, id}

	cmdOut, err := util.ExecuteCommand(ctx, cmdEraseVolume, "", nil, nil)
	if err != nil {
		return cmdOut.Stdout, fmt.Errorf("diskutil: failed to run eraseVolume command, stderr: [%s]: %w", cmdOut.Stderr, err)
	}

	return cmdOut.Stdout, nil
}

// CoreStorageList uses the macOS diskutil cs list command to list logical volume groups in a plist format.
func (d *DiskUtilityCmd) CoreStorageList(ctx context.Context) (string, error) {
	cmdCSList := []string{"diskutil", "cs", "list", "-plist"}

	cmdOut, err := util.ExecuteCommand(ctx, cmdCSList, "", nil, nil)
	if err != nil {
		return cmdOut.Stdout, fmt.Errorf("diskutil: failed to run diskutil command to list core storage, stderr: [%s]: %w", cmdOut.Stderr, err)
	}

	return cmdOut.Stdout, nil
}

// CoreStorageCreate uses the macOS diskutil cs create command to build a logical volume group.
func (d *DiskUtilityCmd) CoreStorageCreate(ctx context.Context, name string, ids []string) (string, error) {
	cmdCSCreate := append([]string{"diskutil", "cs", "create", name}, ids...)

	cmdOut, err := util.ExecuteCommand(ctx, cmdCSCreate, "", nil, nil)
	if err != nil {
		return cmdOut.Stdout, fmt.Errorf("diskutil: failed to run cs create command, stderr: [%s]: %w", cmdOut.Stderr, err)
	}

	return cmdOut.Stdout, nil
}

// CoreStorageCreateVolume uses the macOS diskutil cs createVolume command to add a logical volume to a group.
func (d *DiskUtilityCmd) CoreStorageCreateVolume(ctx context.Context, groupUUID, format, name, size string) (string, error) {
	// cmdCSCreateVolume represents the command used for creating a logical volume
	//   * size - either an absolute size or a percentage of the group (e.g. "100%")
	cmdCSCreateVolume := []string{"diskutil", "cs", "createVolume", groupUUID, format, name, size}

	cmdOut, err := util.ExecuteCommand(ctx, cmdCSCreateVolume, "", nil, nil)
	if err != nil {
		return cmdOut.Stdout, fmt.Errorf("diskutil: failed to run cs createVolume command, stderr: [%s]: %w", cmdOut.Stderr, err)
	}

	return cmdOut.Stdout, nil
}

// CoreStorageDelete uses the macOS diskutil cs delete command to remove a logical volume group.
func (d *DiskUtilityCmd) CoreStorageDelete(ctx context.Context, groupUUID string) (string, error) {
	cmdCSDelete := []string{"diskutil", "cs", "delete", groupUUID}

	cmdOut, err := util.ExecuteCommand(ctx, cmdCSDelete, "", nil, nil)
	if err != nil {
		return cmdOut.Stdout, fmt.Errorf("diskutil: failed to run cs delete command, stderr: [%s]: %w", cmdOut.Stderr, err)
	}

	return cmdOut.Stdout, nil
}

// HDIUtilImpl outlines the functionality necessary for wrapping macOS's hdiutil tool.
type HDIUtilImpl interface {
	// Mount attaches the disk image at path and mounts its volumes.
	Mount(ctx context.Context, path string) (string, error)
}

// HDIUtilCmd is an empty struct that provides the implementation for the HDIUtilImpl interface.
type HDIUtilCmd struct{}

// Mount uses the macOS hdiutil mount command to attach a disk image, reporting the attached entities in a
// plist format.
func (h *HDIUtilCmd) Mount(ctx context.Context, path string) (string, error) {
	// cmdMount represents the command used for executing macOS's hdiutil to mount a disk image
	//   * -plist converts hdiutil's output from human-readable to the plist format
	//   * -noverify skips checksum verification of the image, which takes minutes for installer images
	cmdMount := []string{"hdiutil", "mount", "-plist", path, "-noverify"}

	cmdOut, err := util.ExecuteCommand(ctx, cmdMount, "", nil, nil)
	if err != nil {
		return cmdOut.Stdout, fmt.Errorf("hdiutil: failed to run hdiutil command to mount image, stderr: [%s]: %w", cmdOut.Stderr, err)
	}

	return cmdOut.Stdout, nil
}
