package app

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/er2/macos-utilities/internal/compat"
	"github.com/er2/macos-utilities/internal/util"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	logrus.SetOutput(io.Discard)
}

// recordingRunner records the commands it is asked to run.
type recordingRunner struct {
	commands [][]string
	err      error
}

func (r *recordingRunner) Run(ctx context.Context, c []string, runAsUser string) (util.CommandOutput, error) {
	r.commands = append(r.commands, c)
	return util.CommandOutput{}, r.err
}

func makeBundle(t *testing.T, dir, name string) string {
	t.Helper()

	p := filepath.Join(dir, name+".app")
	require.NoError(t, os.MkdirAll(filepath.Join(p, "Contents"), 0o755))

	return p
}

func noLookup(string) (string, bool) { return "", false }

func TestApplication_ResolvedPath(t *testing.T) {
	dir := t.TempDir()
	configured := makeBundle(t, dir, "Configured")
	found := makeBundle(t, dir, "Found")

	t.Run("configured path exists", func(t *testing.T) {
		a := New("Configured", configured, true, WithLookup(noLookup))
		assert.Equal(t, configured, a.ResolvedPath())
		assert.True(t, a.Valid())
	})

	t.Run("falls back to lookup by name", func(t *testing.T) {
		lookups := 0
		a := New("Found", filepath.Join(dir, "Missing.app"), true, WithLookup(func(name string) (string, bool) {
			lookups++
			return found, name == "Found"
		}))

		assert.Equal(t, found, a.ResolvedPath())
		assert.Equal(t, found, a.ResolvedPath())
		assert.Equal(t, 1, lookups, "resolved paths should be cached")

		a.ReloadPath()
		a.ResolvedPath()
		assert.Equal(t, 2, lookups)
	})

	t.Run("not found", func(t *testing.T) {
		a := New("Nothing", "", true, WithLookup(noLookup))
		assert.Empty(t, a.ResolvedPath())
		assert.False(t, a.Valid())
	})
}

func TestApplication_UpdatePath(t *testing.T) {
	dir := t.TempDir()
	first := makeBundle(t, dir, "First")
	second := makeBundle(t, dir, "Second")

	a := New("App", first, true, WithLookup(noLookup))
	require.Equal(t, first, a.ResolvedPath())

	a.UpdatePath(second)

	assert.Equal(t, second, a.ResolvedPath())
}

func TestNewUtility(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{path: "Terminal", want: "/System/Applications/Utilities/Terminal.app"},
		{path: "Terminal.app", want: "/System/Applications/Utilities/Terminal.app"},
		{path: "/System/Applications/Utilities/Console.app", want: "/System/Applications/Utilities/Console.app"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			u := NewUtility("Utility", tt.path, "/System/Applications/Utilities")

			assert.Equal(t, tt.want, u.Path)
			assert.Equal(t, RoleUtility, u.Role)
			assert.False(t, u.ShowInApplicationsWindow)
		})
	}
}

func TestApplication_ID(t *testing.T) {
	assert.Equal(t, New("Safari", "/a", true).ID(), New("Safari", "/b", false).ID(), "applications are identified by name")
	assert.NotEqual(t, New("Safari", "", true).ID(), New("Chess", "", true).ID())

	a := NewInstaller("/Volumes/Install macOS Mojave", "Install macOS Mojave", nil)
	b := NewInstaller("/Volumes/Install macOS Mojave 1", "Install macOS Mojave 10.14.6", nil)
	assert.True(t, a.Equal(b), "installers are identified by version name")
}

func TestNewInstaller(t *testing.T) {
	tests := []struct {
		appName     string
		wantVersion string
		wantSort    int64
	}{
		{appName: "Install macOS Catalina", wantVersion: "macOS Catalina", wantSort: 1015},
		{appName: "Install macOS High Sierra.app", wantVersion: "macOS High Sierra", wantSort: 1013},
		{appName: "Install macOS Mojave 10.14.6", wantVersion: "macOS Mojave", wantSort: 1014},
		{appName: "Install OS X El Capitan", wantVersion: "OS X El Capitan", wantSort: 1011},
	}
	for _, tt := range tests {
		t.Run(tt.appName, func(t *testing.T) {
			a := NewInstaller("/Volumes/"+tt.appName, tt.appName, nil)

			require.True(t, a.IsInstaller())
			assert.Equal(t, tt.wantVersion, a.Installer.Version().Name)
			assert.Equal(t, tt.wantSort, a.Installer.SortNumber())
			assert.Equal(t, filepath.Join("/Volumes/"+tt.appName, tt.appName+".app"), a.Path)
		})
	}
}

func TestInstaller_CanInstall(t *testing.T) {
	allowed := compat.ModelYearDetermination{ModelIdentifier: "MacBookPro15,2"}.InstallableVersions()

	catalina := NewInstaller("/Volumes/Install macOS Catalina", "Install macOS Catalina", allowed)
	assert.True(t, catalina.Installer.CanInstall())

	sierra := NewInstaller("/Volumes/Install macOS Sierra", "Install macOS Sierra", allowed)
	assert.False(t, sierra.Installer.CanInstall())
}

func TestInstaller_CanInstallIsMemoised(t *testing.T) {
	old := compat.ModelYearDetermination{ModelIdentifier: "MacBookPro8,1"}.InstallableVersions()
	current := compat.ModelYearDetermination{ModelIdentifier: "MacBookPro15,2"}.InstallableVersions()

	a := NewInstaller("/Volumes/Install macOS Catalina", "Install macOS Catalina", old)
	require.False(t, a.Installer.CanInstall())

	a.Installer.allowed = current
	assert.False(t, a.Installer.CanInstall(), "the first answer should be kept")

	a.Installer.InvalidateCanInstall(current)
	assert.True(t, a.Installer.CanInstall())
}

func TestNewFakeInstaller(t *testing.T) {
	a := NewFakeInstaller(true)
	b := NewFakeInstaller(false)

	require.True(t, a.IsInstaller())
	assert.True(t, a.Installer.Fake)
	assert.Contains(t, a.Name, "Fake Installer ")
	assert.True(t, a.Installer.CanInstall(), "fake installers bypass the allow-list")
	assert.False(t, b.Installer.CanInstall())
}

func TestApplication_Open(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	bundle := makeBundle(t, dir, "Tool")

	t.Run("application", func(t *testing.T) {
		r := &recordingRunner{}
		a := New("Tool", bundle, true, WithLookup(noLookup))

		require.NoError(t, a.Open(ctx, r))
		assert.Equal(t, [][]string{{"open", bundle}}, r.commands)
	})

	t.Run("missing bundle", func(t *testing.T) {
		r := &recordingRunner{}
		a := New("Gone", filepath.Join(dir, "Gone.app"), true, WithLookup(noLookup))

		assert.ErrorIs(t, a.Open(ctx, r), ErrNotFound)
		assert.Empty(t, r.commands)
	})

	t.Run("open fails", func(t *testing.T) {
		r := &recordingRunner{err: errors.New("exit status 1")}
		a := New("Tool", bundle, true, WithLookup(noLookup))

		assert.Error(t, a.Open(ctx, r))
	})

	t.Run("installer not allowed", func(t *testing.T) {
		r := &recordingRunner{}
		a := NewInstaller(dir, "Tool", nil, WithLookup(noLookup))

		assert.ErrorIs(t, a.Open(ctx, r), ErrCannotInstall)
		assert.Empty(t, r.commands)
	})

	t.Run("fake installer", func(t *testing.T) {
		r := &recordingRunner{}

		assert.NoError(t, NewFakeInstaller(false).Open(ctx, r))
		assert.Empty(t, r.commands, "fake installers are never launched")
	})
}

func TestInstallerVersionName(t *testing.T) {
	assert.Equal(t, "macOS Mojave", InstallerVersionName("Install macOS Mojave"))
	assert.Equal(t, "macOS Catalina", InstallerVersionName("Install macOS Catalina.app"))
}
