package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSize_Gigabytes(t *testing.T) {
	for _, n := range []uint64{0, 1, 119, 120, 500, 1000} {
		assert.Equal(t, float64(n), SizeFromGigabytes(n).Gigabytes(), "exact multiples should convert back to %d", n)
	}
}

func TestSize_Human(t *testing.T) {
	tests := []struct {
		name      string
		size      Size
		wantValue float64
		wantUnit  Unit
	}{
		{
			name:      "Rounds down below half a gigabyte",
			size:      SizeFromGigabytes(250) + bytesPerGigabyte/4,
			wantValue: 250,
			wantUnit:  Gigabytes,
		},
		{
			name:      "Rounds up at half a gigabyte",
			size:      SizeFromGigabytes(250) + bytesPerGigabyte/2,
			wantValue: 251,
			wantUnit:  Gigabytes,
		},
		{
			name:      "Exactly 1000 GB stays in gigabytes",
			size:      SizeFromGigabytes(1000),
			wantValue: 1000,
			wantUnit:  Gigabytes,
		},
		{
			name:      "Promotes to terabytes with a decimal divisor",
			size:      SizeFromGigabytes(2000),
			wantValue: 2,
			wantUnit:  Terabytes,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotValue, gotUnit := tt.size.Human()
			assert.Equal(t, tt.wantValue, gotValue)
			assert.Equal(t, tt.wantUnit, gotUnit)
		})
	}

	assert.Equal(t, "2 TB", SizeFromGigabytes(2000).String())
}

func TestPartition_Installable(t *testing.T) {
	mounted := Partition{
		Content:          ContentHFS,
		DeviceIdentifier: "disk0s2",
		Size:             SizeFromGigabytes(250),
		VolumeName:       "Macintosh HD",
		MountPoint:       "/Volumes/Macintosh HD",
	}

	tests := []struct {
		name   string
		modify func(p Partition) Partition
		want   bool
	}{
		{
			name:   "Large mounted HFS partition",
			modify: func(p Partition) Partition { return p },
			want:   true,
		},
		{
			name:   "Exactly at the size floor",
			modify: func(p Partition) Partition { p.Size = SizeFromGigabytes(120); return p },
			want:   true,
		},
		{
			name:   "Below the size floor",
			modify: func(p Partition) Partition { p.Size = SizeFromGigabytes(119); return p },
			want:   false,
		},
		{
			name:   "Below the size floor while unmounted",
			modify: func(p Partition) Partition { p.Size = SizeFromGigabytes(50); p.MountPoint = ""; return p },
			want:   false,
		},
		{
			name:   "System Reserved label",
			modify: func(p Partition) Partition { p.VolumeName = "System Reserved"; return p },
			want:   false,
		},
		{
			name:   "Not mounted",
			modify: func(p Partition) Partition { p.MountPoint = ""; return p },
			want:   false,
		},
		{
			name:   "EFI partition",
			modify: func(p Partition) Partition { p.Content = ContentEFI; return p },
			want:   false,
		},
		{
			name:   "APFS container",
			modify: func(p Partition) Partition { p.Content = ContentAPFSContainer; return p },
			want:   false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.modify(mounted).Installable())
		})
	}
}

func TestPartition_Name(t *testing.T) {
	assert.Equal(t, "Data", Partition{VolumeName: "Data", MountPoint: "/Volumes/Other"}.Name())
	assert.Equal(t, "Other", Partition{MountPoint: "/Volumes/Other"}.Name())
	assert.Equal(t, "Not mounted", Partition{}.Name())
}

func TestPartition_IsAPFS(t *testing.T) {
	assert.True(t, Partition{VolumeUUID: "A1"}.IsAPFS(), "APFS volumes carry a UUID and no content")
	assert.True(t, Partition{Content: ContentAPFSContainer}.IsAPFS())
	assert.False(t, Partition{Content: ContentHFS, VolumeUUID: "A1"}.IsAPFS())
	assert.False(t, Partition{}.IsAPFS())
}

func TestPartition_ContainsInstaller(t *testing.T) {
	assert.True(t, Partition{MountPoint: "/Volumes/Install macOS Mojave"}.ContainsInstaller())
	assert.True(t, Partition{MountPoint: "/Volumes/Install OS X El Capitan"}.ContainsInstaller())
	assert.False(t, Partition{MountPoint: "/Volumes/Macintosh HD"}.ContainsInstaller())
}

func TestDisk_IDAndEqual(t *testing.T) {
	a := Disk{DeviceIdentifier: "disk0", Size: SizeFromGigabytes(500), Content: ContentGUIDScheme}
	b := a.WithPartitions([]Partition{{DeviceIdentifier: "disk0s1"}})
	c := a
	c.Size++

	assert.Equal(t, a.ID(), b.ID(), "partitions do not take part in the identity")
	assert.True(t, a.Equal(b))
	assert.NotEqual(t, a.ID(), c.ID())
	assert.False(t, a.Equal(c))
	assert.Len(t, a.ID(), 32)
}

func TestDisk_ContentType(t *testing.T) {
	assert.Equal(t, "None", Disk{}.ContentType())
	assert.Equal(t, Disk{DeviceIdentifier: "disk1", Content: "None"}.ID(), Disk{DeviceIdentifier: "disk1"}.ID())
}

func TestDisk_WithPartitionsCopies(t *testing.T) {
	original := Disk{DeviceIdentifier: "disk2", Partitions: []Partition{{DeviceIdentifier: "disk2s1"}}}

	parts := []Partition{{DeviceIdentifier: "disk2s2"}}
	updated := original.WithPartitions(parts)
	parts[0].DeviceIdentifier = "changed"

	assert.Equal(t, "disk2s1", original.Partitions[0].DeviceIdentifier, "original should be left untouched")
	assert.Equal(t, "disk2s2", updated.Partitions[0].DeviceIdentifier, "copy should not alias the argument")
}

func TestDisk_InstallablePartition(t *testing.T) {
	installable := Partition{
		DeviceIdentifier: "disk1s1",
		Size:             SizeFromGigabytes(200),
		VolumeUUID:       "U1",
		VolumeName:       "Macintosh HD",
		MountPoint:       "/",
	}
	disk := Disk{
		DeviceIdentifier: "disk1",
		APFSVolumes: []Partition{
			{DeviceIdentifier: "disk1s2", Size: SizeFromGigabytes(1), VolumeName: "Preboot"},
			installable,
		},
	}

	got, ok := disk.InstallablePartition()
	assert.True(t, ok)
	assert.Equal(t, installable, got)
	assert.Equal(t, "Macintosh HD", disk.VolumeName())
	assert.True(t, disk.IsAPFS())
	assert.True(t, disk.FormattedFor(true))
	assert.False(t, disk.FormattedFor(false))

	empty := Disk{DeviceIdentifier: "disk3", Partitions: []Partition{}}
	_, ok = empty.InstallablePartition()
	assert.False(t, ok)
	assert.Equal(t, "None", empty.VolumeName())
	assert.False(t, empty.IsAPFS())
}

func TestDiskList_AvailableDiskSpace(t *testing.T) {
	tests := []struct {
		name     string
		list     DiskList
		id       string
		wantSize Size
		wantErr  bool
	}{
		{
			name: "Bad case: ID not found in the disk list",
			list: DiskList{
				AllDisksAndPartitions: []Disk{
					{DeviceIdentifier: "disk0"},
					{DeviceIdentifier: "disk1"},
				},
			},
			id:      "disk3",
			wantErr: true,
		},
		{
			name: "Good case: ID found and size matches",
			list: DiskList{
				AllDisksAndPartitions: []Disk{
					{DeviceIdentifier: "disk0"},
					{
						DeviceIdentifier: "disk1",
						Size:             2000000,
						Partitions: []Partition{
							{Size: 500000},
							{Size: 500000},
						},
					},
				},
			},
			id:       "disk1",
			wantSize: 1000000,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotSize, err := tt.list.AvailableDiskSpace(tt.id)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.wantSize, gotSize)
		})
	}
}

func TestHasFusionDrive(t *testing.T) {
	ssd := &DiskInfo{Internal: true, VirtualOrPhysical: "Physical", SolidState: true}
	hdd := &DiskInfo{Internal: true, VirtualOrPhysical: "Physical"}
	external := &DiskInfo{Removable: true, VirtualOrPhysical: "Physical", SolidState: true}

	assert.True(t, HasFusionDrive("iMac14,2", []*DiskInfo{ssd, hdd}))
	assert.True(t, HasFusionDrive("Macmini7,1", []*DiskInfo{hdd, ssd, nil}))
	assert.False(t, HasFusionDrive("MacBookPro15,2", []*DiskInfo{ssd, hdd}), "laptops never carry fusion drives")
	assert.False(t, HasFusionDrive("iMac14,2", []*DiskInfo{ssd, ssd}), "needs a spinning half")
	assert.False(t, HasFusionDrive("iMac14,2", []*DiskInfo{hdd, external}), "external disks are not halves")

	gotSSD, gotHDD := FusionHalves([]*DiskInfo{external, hdd, ssd})
	assert.Same(t, ssd, gotSSD)
	assert.Same(t, hdd, gotHDD)
}

func TestMountResult_MountableDiskImage(t *testing.T) {
	mountable := DiskImage{DevEntry: "/dev/disk4s1", PotentiallyMountable: true, MountPoint: "/Volumes/Install macOS Catalina"}
	result := MountResult{DiskImages: []DiskImage{
		{DevEntry: "/dev/disk4", ContentHint: ContentGUIDScheme},
		mountable,
	}}

	got, ok := result.MountableDiskImage()
	assert.True(t, ok)
	assert.Equal(t, mountable, got)
	assert.Equal(t, "Install macOS Catalina", got.VolumeName())
	assert.True(t, got.ContainsInstaller())

	_, ok = (&MountResult{DiskImages: []DiskImage{{PotentiallyMountable: true}}}).MountableDiskImage()
	assert.False(t, ok, "potentially mountable entities without a mount point do not count")
}

func TestShare_ID(t *testing.T) {
	a := Share{Type: ShareTypeNFS, MountPoint: "/Users/Shared/dmg"}
	b := Share{Type: ShareTypeNFS, MountPoint: "/Users/Shared/dmg"}

	assert.True(t, a.Equal(b))
	assert.Equal(t, a.ID(), b.ID())
	assert.NotEqual(t, a.ID(), Share{Type: ShareTypeNFS, MountPoint: "/tmp"}.ID())
}
