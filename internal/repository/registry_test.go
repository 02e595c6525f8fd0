package repository

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/er2/macos-utilities/internal/app"
	"github.com/er2/macos-utilities/internal/compat"
	mock_diskutil "github.com/er2/macos-utilities/internal/diskutil/mocks"
	"github.com/er2/macos-utilities/internal/diskutil/types"
	"github.com/er2/macos-utilities/internal/notify"

	"github.com/golang/mock/gomock"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	logrus.SetOutput(io.Discard)
}

func noLookup(string) (string, bool) { return "", false }

func installer(name string) *app.Application {
	return app.NewInstaller("/Volumes/"+name, name, nil, app.WithLookup(noLookup))
}

func TestRegistry_RegisterIsIdempotent(t *testing.T) {
	r := New(nil)

	assert.True(t, r.Register(app.New("Safari", "/Applications/Safari.app", true)))
	assert.False(t, r.Register(app.New("Safari", "/elsewhere/Safari.app", false)))

	assert.Len(t, r.Items(), 1)
}

func TestRegistry_PublishesByRole(t *testing.T) {
	bus := notify.NewBus()
	var topics []notify.Topic
	bus.Subscribe(func(e notify.Event) { topics = append(topics, e.Topic) })

	r := New(bus)
	r.Register(app.New("Safari", "", true))
	r.Register(app.NewUtility("Terminal", "Terminal", "/System/Applications/Utilities"))
	mojave := installer("Install macOS Mojave")
	r.Register(mojave)
	r.Unregister(mojave)

	assert.Equal(t, []notify.Topic{
		notify.NewApplication,
		notify.NewUtility,
		notify.NewInstaller,
		notify.RemoveInstaller,
	}, topics)
}

func TestRegistry_SubscribersMayReadRegistry(t *testing.T) {
	r := New(nil)
	var seen int
	r.Bus().Subscribe(func(notify.Event) { seen = len(r.Items()) }, notify.NewApplication)

	r.Register(app.New("Safari", "", true))

	assert.Equal(t, 1, seen)
}

func TestRegistry_RegisterAll(t *testing.T) {
	r := New(nil)
	var batches [][]*app.Application
	r.Bus().Subscribe(func(e notify.Event) {
		batches = append(batches, e.Payload.([]*app.Application))
	}, notify.NewApplications)

	r.Register(app.New("Safari", "", true))
	added := r.RegisterAll([]*app.Application{
		app.New("Safari", "", true),
		app.New("Chess", "", true),
		app.New("Chess", "", false),
	}, true)

	assert.Equal(t, 1, added)
	require.Len(t, batches, 1)
	assert.Equal(t, "Chess", batches[0][0].Name)
}

func TestRegistry_Views(t *testing.T) {
	r := New(nil)
	r.Register(app.New("Shown", "", true))
	r.Register(app.New("Hidden", "", false))
	r.Register(app.NewUtility("Terminal", "Terminal", "/Applications/Utilities"))

	assert.Len(t, r.Applications(), 2)
	require.Len(t, r.AllowedApplications(), 1)
	assert.Equal(t, "Shown", r.AllowedApplications()[0].Name)
	assert.Len(t, r.Utilities(), 1)
	assert.True(t, r.Has(app.RoleUtility))
	assert.False(t, r.Has(app.RoleInstaller))

	found, ok := r.Find("Terminal")
	require.True(t, ok)
	assert.Equal(t, app.RoleUtility, found.Role)
}

func TestRegistry_InstallersSorted(t *testing.T) {
	r := New(nil)
	fake := app.NewFakeInstaller(true)
	r.Register(fake)
	r.Register(installer("Install macOS Catalina"))
	r.Register(installer("Install macOS High Sierra"))
	r.Register(installer("Install macOS Mojave"))

	var names []string
	for _, i := range r.Installers() {
		names = append(names, i.Name)
	}

	assert.Equal(t, []string{
		"Install macOS High Sierra",
		"Install macOS Mojave",
		"Install macOS Catalina",
		fake.Name,
	}, names)
}

func TestRegistry_SetSelectedInstaller(t *testing.T) {
	r := New(nil)
	a := installer("Install macOS Mojave")
	b := installer("Install macOS Catalina")
	r.Register(a)
	r.Register(b)

	require.NoError(t, r.SetSelectedInstaller(a))
	require.NoError(t, r.SetSelectedInstaller(b))

	selected := 0
	for _, i := range r.Installers() {
		if r.IsSelected(i) {
			selected++
		}
	}
	assert.Equal(t, 1, selected)
	assert.True(t, r.IsSelected(b))

	got, ok := r.SelectedInstaller()
	require.True(t, ok)
	assert.True(t, got.Equal(b))

	r.UnsetAllSelectedInstallers()
	_, ok = r.SelectedInstaller()
	assert.False(t, ok)
}

func TestRegistry_SetSelectedInstallerErrors(t *testing.T) {
	r := New(nil)

	assert.ErrorIs(t, r.SetSelectedInstaller(installer("Install macOS Mojave")), ErrNotRegistered)
	assert.Error(t, r.SetSelectedInstaller(app.New("Safari", "", true)))
}

func TestRegistry_RemoveInstaller(t *testing.T) {
	r := New(nil)
	mojave := installer("Install macOS Mojave")
	r.Register(mojave)
	require.NoError(t, r.SetSelectedInstaller(mojave))

	assert.False(t, r.RemoveInstaller("macOS Catalina"))
	assert.True(t, r.RemoveInstaller("macOS Mojave"))

	assert.Empty(t, r.Installers())
	_, ok := r.SelectedInstaller()
	assert.False(t, ok, "removing the selected installer clears the selection")
}

func TestRegistry_UpdateAllowedVersions(t *testing.T) {
	r := New(nil)
	catalina := installer("Install macOS Catalina")
	r.Register(catalina)
	require.False(t, catalina.Installer.CanInstall())

	r.UpdateAllowedVersions([]compat.Version{compat.Catalina})

	assert.True(t, catalina.Installer.CanInstall())
}

func TestRegistry_ApplyDisksDiscardsStaleScans(t *testing.T) {
	r := New(nil)
	older := r.BeginScan()
	newer := r.BeginScan()

	assert.True(t, r.ApplyDisks(newer, []types.Disk{{DeviceIdentifier: "disk1"}}))
	assert.False(t, r.ApplyDisks(older, []types.Disk{{DeviceIdentifier: "disk0"}}))
	assert.False(t, r.ApplyDisks(newer+1, nil), "scans that never began are ignored")

	require.Len(t, r.Disks(), 1)
	assert.Equal(t, "disk1", r.Disks()[0].DeviceIdentifier)
}

func TestRegistry_DiskViews(t *testing.T) {
	r := New(nil)
	mounted := types.Disk{DeviceIdentifier: "disk0"}.WithPartitions([]types.Partition{{
		DeviceIdentifier: "disk0s1",
		Size:             types.SizeFromGigabytes(50),
		MountPoint:       "/Volumes/Small",
	}})
	r.ApplyDisks(r.BeginScan(), []types.Disk{mounted, {DeviceIdentifier: "disk1"}})
	fakes := r.AddFakeDisks(1)

	assert.Len(t, r.Disks(), 3)
	assert.Len(t, r.MountedDisks(), 2)
	require.Len(t, r.InstallableDisks(), 1)
	assert.True(t, r.InstallableDisks()[0].Equal(fakes[0]))
}

func TestRegistry_FakeDisksSurviveRescans(t *testing.T) {
	r := New(nil)
	fakes := r.AddFakeDisks(2)

	assert.True(t, r.ApplyDisks(r.BeginScan(), []types.Disk{{DeviceIdentifier: "disk0"}}))

	disks := r.Disks()
	require.Len(t, disks, 3)
	assert.Equal(t, "disk0", disks[0].DeviceIdentifier)
	assert.Equal(t, fakes[0].DeviceIdentifier, disks[1].DeviceIdentifier)
	assert.Equal(t, fakes[1].DeviceIdentifier, disks[2].DeviceIdentifier)

	erased := fakes[0].WithPartitions(nil)
	assert.True(t, r.ApplyDisks(r.BeginScan(), []types.Disk{{DeviceIdentifier: "disk0"}, erased}))

	disks = r.Disks()
	require.Len(t, disks, 3, "a fake carried by the scan is not added twice")
	assert.Empty(t, disks[1].Partitions)
	assert.Equal(t, fakes[1].DeviceIdentifier, disks[2].DeviceIdentifier)
}

func TestRegistry_Shares(t *testing.T) {
	r := New(nil)
	var published []types.Share
	r.Bus().Subscribe(func(e notify.Event) { published = e.Payload.([]types.Share) }, notify.NewShares)

	share := types.Share{Type: types.ShareTypeNFS, MountPoint: "/Volumes/installers"}
	assert.True(t, r.AddShare(share))
	assert.False(t, r.AddShare(share))
	assert.Equal(t, []types.Share{share}, published)

	assert.True(t, r.RemoveShare(share))
	assert.Empty(t, r.Shares())
}

func TestRegistry_AddFakeInstallers(t *testing.T) {
	r := New(nil)

	fakes := r.AddFakeInstallers()

	assert.Len(t, r.Installers(), 2)
	assert.False(t, fakes[0].Installer.CanInstall())
	assert.True(t, fakes[1].Installer.CanInstall())
}

func TestReloader_ReloadAll(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	utilities := t.TempDir()
	for _, name := range []string{"Terminal.app", "Console.app", ".localized"} {
		require.NoError(t, os.Mkdir(filepath.Join(utilities, name), 0o755))
	}
	volumes := t.TempDir()
	for _, name := range []string{"Install macOS Catalina", "Macintosh HD", "Install OS X El Capitan"} {
		require.NoError(t, os.Mkdir(filepath.Join(volumes, name), 0o755))
	}

	list := &types.DiskList{AllDisksAndPartitions: []types.Disk{
		{DeviceIdentifier: "disk0"},
		{DeviceIdentifier: "disk1"},
	}}
	du := mock_diskutil.NewMockDiskUtil(ctrl)
	du.EXPECT().List(gomock.Any(), nil).Return(list, nil)
	du.EXPECT().Info(gomock.Any(), "disk0").Return(&types.DiskInfo{DeviceIdentifier: "disk0", SolidState: true}, nil)
	du.EXPECT().Info(gomock.Any(), "disk1").Return(nil, errors.New("no such disk"))

	r := New(nil)
	rl := &Reloader{
		Registry:     r,
		DiskUtil:     du,
		Allowed:      compat.ModelYearDetermination{ModelIdentifier: "iMac14,2"}.InstallableVersions(),
		UtilitiesDir: utilities,
		VolumesDir:   volumes,
		Lookup:       noLookup,
	}

	require.NoError(t, rl.ReloadAll(ctx))

	assert.Len(t, r.Utilities(), 2)
	installers := r.Installers()
	require.Len(t, installers, 2)
	assert.Equal(t, "Install OS X El Capitan", installers[0].Name)
	assert.True(t, installers[1].Installer.CanInstall())

	disks := r.Disks()
	require.Len(t, disks, 2)
	require.NotNil(t, disks[0].Info)
	assert.True(t, disks[0].Info.SolidState)
	assert.Nil(t, disks[1].Info, "disks without details are kept")
}

func TestReloader_ReloadAllSkipsFailingSteps(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	du := mock_diskutil.NewMockDiskUtil(ctrl)
	du.EXPECT().List(gomock.Any(), nil).Return(nil, errors.New("diskutil unavailable"))

	volumes := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(volumes, "Install macOS Mojave"), 0o755))

	r := New(nil)
	rl := &Reloader{
		Registry:     r,
		DiskUtil:     du,
		UtilitiesDir: filepath.Join(t.TempDir(), "missing"),
		VolumesDir:   volumes,
		Lookup:       noLookup,
	}

	assert.NoError(t, rl.ReloadAll(context.Background()))
	assert.Len(t, r.Installers(), 1)
	assert.Empty(t, r.Utilities())
	assert.Empty(t, r.Disks())
}

func TestReloader_Subscribe(t *testing.T) {
	volumes := t.TempDir()
	r := New(nil)
	rl := &Reloader{
		Registry:     r,
		UtilitiesDir: t.TempDir(),
		VolumesDir:   volumes,
		Lookup:       noLookup,
	}
	cancel := rl.Subscribe(context.Background())
	defer cancel()

	require.NoError(t, os.Mkdir(filepath.Join(volumes, "Install macOS Catalina"), 0o755))
	r.Bus().Publish(notify.RefreshRepository, nil)

	assert.Len(t, r.Installers(), 1)
}

func TestIsInstallerVolume(t *testing.T) {
	assert.True(t, IsInstallerVolume("Install macOS Big Sur"))
	assert.True(t, IsInstallerVolume("Install Mac OS X Lion"))
	assert.True(t, IsInstallerVolume("Install OS X Yosemite"))
	assert.False(t, IsInstallerVolume("Macintosh HD"))
}

func TestReloader_ReloadApplications(t *testing.T) {
	r := New(nil)
	rl := &Reloader{Registry: r}

	assert.Equal(t, 2, rl.ReloadApplications([]*app.Application{app.New("A", "", true), app.New("B", "", true)}))
	assert.Equal(t, 0, rl.ReloadApplications([]*app.Application{app.New("A", "", true)}))
}
