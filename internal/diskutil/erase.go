package diskutil

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/er2/macos-utilities/internal/diskutil/types"
	"github.com/er2/macos-utilities/internal/system"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
)

const (
	// eraseFinishedMarker is printed by diskutil once an erase has completed.
	eraseFinishedMarker = "Finished erase"

	// volumesDir is where macOS mounts the volumes created by an erase.
	volumesDir = "/Volumes"
)

// ErrContainsInstaller identifies erase requests for a partition an installer is mounted from.
var ErrContainsInstaller = errors.New("partition contains an installer")

// EraseError reports an erase that diskutil did not confirm as finished.
type EraseError struct {
	Output string
}

func (e EraseError) Error() string {
	return fmt.Sprintf("erase did not finish: %s", strings.TrimSpace(e.Output))
}

// EraseOptions configures an erase.
type EraseOptions struct {
	// Name is the name given to the new volume. The current volume name is kept when empty.
	Name string
	// NeedsAPFS is set when the erase prepares the target for an installer that requires APFS.
	NeedsAPFS bool
}

// FormatFor chooses the file system an erase should create: APFS when the installer requires it and the running
// release can create it, JHFS+ otherwise.
func FormatFor(p *system.Product, needsAPFS bool) string {
	if needsAPFS && p != nil && p.SupportsAPFS() {
		return FormatAPFS
	}

	return FormatJHFS
}

// EraseDisk reformats a whole disk and returns the replacement disk carrying the newly created volume. Disks
// generated for demonstration rigs are never handed to diskutil.
func EraseDisk(ctx context.Context, u DiskUtil, p *system.Product, disk types.Disk, opts EraseOptions) (types.Disk, error) {
	name := opts.Name
	if name == "" {
		name = disk.VolumeName()
	}
	format := FormatFor(p, opts.NeedsAPFS)

	logger := logrus.WithFields(logrus.Fields{
		"device_id": disk.DeviceIdentifier,
		"format":    format,
		"name":      name,
		"size":      humanize.IBytes(uint64(disk.Size)),
	})

	if disk.Fake {
		logger.Info("Simulating erase of fake disk")
		return withErasedVolume(disk, name), nil
	}

	logger.Info("Erasing disk...")
	out, err := u.EraseDisk(ctx, format, name, disk.DeviceIdentifier)
	logrus.WithField("out", out).Debug("EraseDisk output")
	if errors.Is(err, ErrReadOnly) {
		logger.WithError(err).Warn("Would have erased disk")
		return disk, nil
	} else if err != nil {
		return disk, err
	}

	if !strings.Contains(out, eraseFinishedMarker) {
		return disk, EraseError{Output: out}
	}
	logger.Info("Successfully erased disk")

	return withErasedVolume(disk, name), nil
}

// ErasePartition reformats a single partition. Partitions that an installer is mounted from are refused.
func ErasePartition(ctx context.Context, u DiskUtil, p *system.Product, part types.Partition, opts EraseOptions) (types.Partition, error) {
	if part.ContainsInstaller() {
		return part, fmt.Errorf("cannot erase %s: %w", part.DeviceIdentifier, ErrContainsInstaller)
	}

	name := opts.Name
	if name == "" {
		name = part.Name()
	}
	format := FormatFor(p, opts.NeedsAPFS)

	logger := logrus.WithFields(logrus.Fields{
		"device_id": part.DeviceIdentifier,
		"format":    format,
		"name":      name,
	})

	erased := part
	erased.VolumeName = name
	erased.MountPoint = path.Join(volumesDir, name)

	if part.Fake {
		logger.Info("Simulating erase of fake partition")
		return erased, nil
	}

	logger.Info("Erasing partition...")
	out, err := u.EraseVolume(ctx, format, name, part.DeviceIdentifier)
	logrus.WithField("out", out).Debug("EraseVolume output")
	if errors.Is(err, ErrReadOnly) {
		logger.WithError(err).Warn("Would have erased partition")
		return part, nil
	} else if err != nil {
		return part, err
	}

	if !strings.Contains(out, eraseFinishedMarker) {
		return part, EraseError{Output: out}
	}
	logger.Info("Successfully erased partition")

	return erased, nil
}

// withErasedVolume builds the disk diskutil leaves behind after an erase: a single volume spanning the disk.
func withErasedVolume(disk types.Disk, name string) types.Disk {
	volume := types.Partition{
		DeviceIdentifier: disk.DeviceIdentifier + "s2",
		Size:             disk.Size,
		VolumeName:       name,
		MountPoint:       path.Join(volumesDir, name),
		Fake:             disk.Fake,
	}

	return disk.WithPartitions([]types.Partition{volume})
}
