package app

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/er2/macos-utilities/internal/compat"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ErrCannotInstall is returned when opening an installer the machine is not allowed to install.
var ErrCannotInstall = errors.New("machine cannot install this version")

const installPrefix = "Install "

// trailingVersion matches the version number some installer volumes carry after the release name, e.g.
// "Install macOS Catalina 10.15.7".
var trailingVersion = regexp.MustCompile(`.[0-9].*`)

// Installer is the installer specific metadata of an Application.
type Installer struct {
	// VolumePath is the mounted volume the installer was found on.
	VolumePath string `yaml:"volume_path"`
	// Fake marks installers generated for demonstration rigs.
	Fake bool `yaml:"fake,omitempty"`

	version        compat.Version
	fakeCanInstall bool

	mu         sync.Mutex
	allowed    []compat.Version
	canInstall *bool
}

// NewInstaller creates the installer application for the bundle appName on the volume mounted at volumePath.
// allowed is the list of versions the machine can install.
func NewInstaller(volumePath, appName string, allowed []compat.Version, opts ...Option) *Application {
	installerPath := filepath.Join(volumePath, appName+bundleSuffix)

	a := New(appName, installerPath, true, opts...)
	a.Role = RoleInstaller
	a.Installer = &Installer{
		VolumePath: volumePath,
		version:    parseInstallerVersion(appName, false),
		allowed:    allowed,
	}

	return a
}

// NewFakeInstaller creates an installer that is never launched. canInstall decides whether it is offered as
// installable.
func NewFakeInstaller(canInstall bool) *Application {
	id := uuid.New()
	name := fmt.Sprintf("Fake Installer %04d", id.ID()%10000)

	a := New(name, filepath.Join("/Volumes", id.String(), name+bundleSuffix), true)
	a.Role = RoleInstaller
	a.Installer = &Installer{
		VolumePath:     filepath.Join("/Volumes", id.String()),
		Fake:           true,
		version:        parseInstallerVersion(name, true),
		fakeCanInstall: canInstall,
	}

	return a
}

// InstallerVersionName returns the version name an installer bundle or volume name carries, e.g. "macOS Mojave"
// for "Install macOS Mojave.app".
func InstallerVersionName(name string) string {
	return parseInstallerVersion(name, false).Name
}

func parseInstallerVersion(name string, fake bool) compat.Version {
	versionName := strings.ReplaceAll(name, bundleSuffix, "")
	versionName = strings.ReplaceAll(versionName, installPrefix, "")
	if !fake {
		versionName = trailingVersion.ReplaceAllString(versionName, "")
	}

	return compat.ParseVersion(versionName)
}

// Version returns the macOS version the installer installs.
func (i *Installer) Version() compat.Version {
	return i.version
}

// SortNumber orders installers by version.
func (i *Installer) SortNumber() int64 {
	return i.version.SortNumber()
}

// CanInstall reports whether the machine can install this version. The answer is computed once and kept until
// InvalidateCanInstall is called.
func (i *Installer) CanInstall() bool {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.canInstall != nil {
		return *i.canInstall
	}

	can := i.fakeCanInstall || compat.Contains(i.allowed, i.version)
	if can {
		logrus.WithField("version", i.version).Info("Machine can install version")
	}
	i.canInstall = &can

	return can
}

// InvalidateCanInstall replaces the allow-list and forgets the cached CanInstall answer. It is called when the
// machine context changes.
func (i *Installer) InvalidateCanInstall(allowed []compat.Version) {
	i.mu.Lock()
	defer i.mu.Unlock()

	i.allowed = allowed
	i.canInstall = nil
}

func (i *Installer) String() string {
	if i.Fake {
		return fmt.Sprintf("FakeInstaller: %s", i.version)
	}

	return fmt.Sprintf("Installer: %s", i.version)
}
