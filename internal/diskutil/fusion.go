package diskutil

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/er2/macos-utilities/internal/diskutil/types"

	"github.com/sirupsen/logrus"
)

const (
	// fusionGroupName is the logical volume group name Apple uses for Fusion Drives.
	fusionGroupName = "FusionDrive"
	// fusionVolumeName is the name of the volume created on a rebuilt Fusion Drive.
	fusionVolumeName = "Macintosh HD"

	// groupCreatedMarker is printed by diskutil once a logical volume group exists.
	groupCreatedMarker = "Discovered new Logical Volume Group"
	// coreStorageFinishedMarker is printed by diskutil once a CoreStorage operation has completed.
	coreStorageFinishedMarker = "Finished CoreStorage operation"
)

// CreateFusionDrive rebuilds a Fusion Drive from the first solid state and first spinning potential halves. Any
// existing logical volume groups are deleted first.
func CreateFusionDrive(ctx context.Context, u DiskUtil, infos []*types.DiskInfo) error {
	ssd, hdd := types.FusionHalves(infos)
	if ssd == nil {
		return errors.New("could not find a solid state drive")
	}
	if hdd == nil {
		return errors.New("could not find a hard disk drive")
	}

	existing, err := u.CoreStorageList(ctx)
	if err != nil {
		return fmt.Errorf("cannot list logical volume groups: %w", err)
	}
	for _, group := range existing.LogicalVolumeGroups {
		logrus.WithField("uuid", group.UUID).Info("Deleting logical volume group...")
		out, err := u.CoreStorageDelete(ctx, group.UUID)
		logrus.WithField("out", out).Debug("CoreStorageDelete output")
		if errors.Is(err, ErrReadOnly) {
			logrus.WithError(err).Warn("Would have deleted logical volume group")
		} else if err != nil {
			return err
		}
	}

	logrus.WithFields(logrus.Fields{
		"ssd": ssd.DeviceIdentifier,
		"hdd": hdd.DeviceIdentifier,
	}).Info("Creating Fusion Drive...")
	out, err := u.CoreStorageCreate(ctx, fusionGroupName, []string{ssd.DeviceIdentifier, hdd.DeviceIdentifier})
	logrus.WithField("out", out).Debug("CoreStorageCreate output")
	if errors.Is(err, ErrReadOnly) {
		logrus.WithError(err).Warn("Would have created Fusion Drive")
		return nil
	} else if err != nil {
		return err
	}
	if !strings.Contains(out, groupCreatedMarker) {
		return fmt.Errorf("could not create Fusion Drive: %s", strings.TrimSpace(out))
	}

	groups, err := u.CoreStorageList(ctx)
	if err != nil {
		return fmt.Errorf("cannot list logical volume groups: %w", err)
	}
	if len(groups.LogicalVolumeGroups) == 0 {
		return errors.New("no logical volume group found after creating Fusion Drive")
	}
	group := groups.LogicalVolumeGroups[0]

	logrus.WithField("uuid", group.UUID).Info("Creating Fusion Drive volume...")
	out, err = u.CoreStorageCreateVolume(ctx, group.UUID, strings.ToLower(FormatJHFS), fusionVolumeName, "100%")
	logrus.WithField("out", out).Debug("CoreStorageCreateVolume output")
	if err != nil {
		return err
	}
	if strings.Contains(out, "Error") || !strings.Contains(out, coreStorageFinishedMarker) {
		return fmt.Errorf("could not create Fusion Drive volume: %s", strings.TrimSpace(out))
	}
	logrus.Info("Successfully created Fusion Drive")

	return nil
}
