package share

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/er2/macos-utilities/internal/diskutil"
	mock_diskutil "github.com/er2/macos-utilities/internal/diskutil/mocks"
	"github.com/er2/macos-utilities/internal/diskutil/types"
	"github.com/er2/macos-utilities/internal/preferences"
	"github.com/er2/macos-utilities/internal/repository"
	"github.com/er2/macos-utilities/internal/util"

	"github.com/golang/mock/gomock"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	logrus.SetOutput(io.Discard)
}

// fakeRunner returns canned mount output, optionally blocking until the context expires.
type fakeRunner struct {
	out      util.CommandOutput
	err      error
	block    bool
	commands [][]string
}

func (f *fakeRunner) Run(ctx context.Context, c []string, runAsUser string) (util.CommandOutput, error) {
	f.commands = append(f.commands, c)
	if f.block {
		<-ctx.Done()
		return util.CommandOutput{}, ctx.Err()
	}

	return f.out, f.err
}

func server(mountPath string) *preferences.InstallerServerPreferences {
	return &preferences.InstallerServerPreferences{
		ServerIP:      "10.0.0.2",
		ServerPath:    "/installers",
		ServerType:    types.ShareTypeNFS,
		MountPath:     mountPath,
		ServerEnabled: true,
	}
}

func TestManager_Mount(t *testing.T) {
	mountPath := filepath.Join(t.TempDir(), "installers")
	runner := &fakeRunner{}
	reg := repository.New(nil)
	m := &Manager{Registry: reg, Runner: runner}

	share, err := m.Mount(context.Background(), server(mountPath))
	require.NoError(t, err)

	assert.Equal(t, types.Share{Type: types.ShareTypeNFS, MountPoint: mountPath}, share)
	assert.Equal(t, [][]string{{"/sbin/mount", "-t", "nfs", "10.0.0.2:/installers", mountPath}}, runner.commands)
	assert.Equal(t, []types.Share{share}, reg.Shares())
	assert.DirExists(t, mountPath)
}

func TestManager_MountReusesExistingShare(t *testing.T) {
	mountPath := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(mountPath, "catalina.dmg"), nil, 0o644))
	runner := &fakeRunner{}
	reg := repository.New(nil)
	m := &Manager{Registry: reg, Runner: runner}

	_, err := m.Mount(context.Background(), server(mountPath))
	require.NoError(t, err)

	assert.Empty(t, runner.commands, "an existing share with disk images is not mounted again")
	assert.Len(t, reg.Shares(), 1)
}

func TestManager_MountFailures(t *testing.T) {
	tests := []struct {
		name   string
		runner *fakeRunner
	}{
		{name: "denied", runner: &fakeRunner{out: util.CommandOutput{Stderr: "mount_nfs: can't mount /installers from 10.0.0.2 onto /tmp/x: Permission denied"}, err: errors.New("exit status 1")}},
		{name: "error word", runner: &fakeRunner{out: util.CommandOutput{Stdout: "RPC error"}}},
		{name: "exit status", runner: &fakeRunner{err: errors.New("exit status 1")}},
		{name: "timeout", runner: &fakeRunner{block: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := repository.New(nil)
			m := &Manager{Registry: reg, Runner: tt.runner, Timeout: 10 * time.Millisecond}

			_, err := m.Mount(context.Background(), server(filepath.Join(t.TempDir(), "installers")))

			assert.Error(t, err)
			assert.Empty(t, reg.Shares())
		})
	}
}

func TestManager_MountNotConfigured(t *testing.T) {
	m := &Manager{Registry: repository.New(nil), Runner: &fakeRunner{}}

	_, err := m.Mount(context.Background(), &preferences.InstallerServerPreferences{ServerIP: "10.0.0.2"})
	assert.ErrorIs(t, err, ErrNotMountable)

	_, err = m.Mount(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNotMountable)
}

func TestManager_EjectAll(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	reg := repository.New(nil)
	ok := types.Share{Type: types.ShareTypeNFS, MountPoint: "/tmp/ok"}
	busy := types.Share{Type: types.ShareTypeNFS, MountPoint: "/tmp/busy"}
	broken := types.Share{Type: types.ShareTypeNFS, MountPoint: "/tmp/broken"}
	reg.AddShare(ok)
	reg.AddShare(busy)
	reg.AddShare(broken)

	du := mock_diskutil.NewMockDiskUtil(ctrl)
	du.EXPECT().Unmount(ctx, "/tmp/ok", true).Return("Volume installers on 10.0.0.2:/installers Unmount successful for /tmp/ok", nil)
	du.EXPECT().Unmount(ctx, "/tmp/busy", true).Return("Unmount failed for /tmp/busy", errors.New("exit status 1"))
	du.EXPECT().Unmount(ctx, "/tmp/broken", true).Return("", errors.New("exit status 1"))

	m := &Manager{Registry: reg, DiskUtil: du}
	err := m.EjectAll(ctx)

	assert.Error(t, err)
	assert.Equal(t, []types.Share{broken}, reg.Shares())
}

func TestManager_EjectAllDryrun(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	reg := repository.New(nil)
	reg.AddShare(types.Share{Type: types.ShareTypeNFS, MountPoint: "/tmp/ok"})
	m := &Manager{Registry: reg, DiskUtil: diskutil.Dryrun(mock_diskutil.NewMockDiskUtil(ctrl))}

	assert.NoError(t, m.EjectAll(context.Background()))
	assert.Len(t, reg.Shares(), 1)
}
