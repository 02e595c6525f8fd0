package repository

import (
	"fmt"
	"path/filepath"

	"github.com/er2/macos-utilities/internal/app"
	"github.com/er2/macos-utilities/internal/diskutil/types"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// fakeDiskSize is large enough for fake disks to be installable.
const fakeDiskSize = 500

// AddFakeInstallers registers one installable and one non-installable fake installer for demonstration rigs.
func (r *Registry) AddFakeInstallers() []*app.Application {
	fakes := []*app.Application{app.NewFakeInstaller(false), app.NewFakeInstaller(true)}
	for _, f := range fakes {
		r.Register(f)
	}

	return fakes
}

// AddFakeDisks appends count fake installable disks to the disk snapshot. The fakes outlive later scans, which
// never report them.
func (r *Registry) AddFakeDisks(count int) []types.Disk {
	fakes := make([]types.Disk, 0, count)
	for i := 0; i < count; i++ {
		fakes = append(fakes, newFakeDisk())
	}

	r.mu.Lock()
	r.fakeDisks = append(r.fakeDisks, fakes...)
	r.mu.Unlock()

	generation := r.BeginScan()
	r.ApplyDisks(generation, r.Disks())
	logrus.WithField("count", count).Debug("Added fake disks")

	return fakes
}

func newFakeDisk() types.Disk {
	id := uuid.New()
	deviceID := fmt.Sprintf("FakeDisk-%d", id.ID()%100000)
	name := fmt.Sprintf("Fake Volume %04d", id.ID()%10000)
	size := types.SizeFromGigabytes(fakeDiskSize)

	disk := types.Disk{
		Content:          types.ContentGUIDScheme,
		DeviceIdentifier: deviceID,
		Size:             size,
		Fake:             true,
	}

	return disk.WithPartitions([]types.Partition{{
		Content:          types.ContentHFS,
		DeviceIdentifier: deviceID + "s2",
		DiskUUID:         id.String(),
		Size:             size,
		VolumeName:       name,
		MountPoint:       filepath.Join(DefaultVolumesDir, name),
		Fake:             true,
	}})
}
