package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/er2/macos-utilities/internal/app"
	"github.com/er2/macos-utilities/internal/compat"
	"github.com/er2/macos-utilities/internal/contextual"
	"github.com/er2/macos-utilities/internal/diskimage"
	"github.com/er2/macos-utilities/internal/diskutil"
	"github.com/er2/macos-utilities/internal/preferences"
	"github.com/er2/macos-utilities/internal/repository"
	"github.com/er2/macos-utilities/internal/share"
	"github.com/er2/macos-utilities/internal/system"
	"github.com/er2/macos-utilities/internal/util"
)

// fakeDiskCount is the number of fake disks added in demo mode.
const fakeDiskCount = 2

// session wires the components a command works with for the identified system.
type session struct {
	opts *globalOptions

	product  *system.Product
	machine  *system.Machine
	diskutil diskutil.DiskUtil
	runner   util.Runner

	registry *repository.Registry
	reloader *repository.Reloader
	loader   *preferences.Loader
	prefs    *preferences.Preferences
	images   *diskimage.Manager
	shares   *share.Manager
}

// newSession identifies the system from the command's context, loads the preferences and registers the mapped
// applications. Nothing is scanned yet.
func newSession(cmd *cobra.Command, opts *globalOptions) (*session, error) {
	ctx := cmd.Context()
	product := contextual.Product(ctx)
	if product == nil {
		return nil, errors.New("product required in context")
	}

	logrus.WithField("product", product).Debug("Configuring diskutil for product")
	du, err := diskutil.ForProduct(product)
	if err != nil {
		return nil, err
	}
	if opts.dryrun {
		du = diskutil.Dryrun(du)
	}

	path := opts.preferencesPath
	if path == "" {
		if path, err = preferences.DefaultPath(); err != nil {
			return nil, err
		}
	}

	machine := contextual.Machine(ctx)
	registry := repository.New(nil)
	loader := preferences.NewLoader(path, registry.Bus())
	prefs := loader.Load()
	setupRemoteLogging(cmd, opts, prefs)

	s := &session{
		opts:     opts,
		product:  product,
		machine:  machine,
		diskutil: du,
		runner:   util.ExecRunner{},
		registry: registry,
		reloader: &repository.Reloader{
			Registry:     registry,
			DiskUtil:     du,
			Allowed:      allowedVersions(machine),
			UtilitiesDir: product.Release.UtilitiesDir(),
		},
		loader: loader,
		prefs:  prefs,
		images: diskimage.NewManager(du, registry.Bus()),
	}
	s.shares = &share.Manager{Registry: registry, DiskUtil: du, Runner: s.runner}

	s.reloader.ReloadApplications(prefs.Applications())
	if opts.demo {
		registry.AddFakeInstallers()
		registry.AddFakeDisks(fakeDiskCount)
	}

	return s, nil
}

// allowedVersions returns the versions the machine can install. Unidentified machines are limited to the
// baseline versions every supported model can run.
func allowedVersions(machine *system.Machine) []compat.Version {
	var model string
	if machine != nil {
		model = machine.ModelIdentifier
	}

	return compat.ModelYearDetermination{ModelIdentifier: model}.InstallableVersions()
}

// loadDisks scans the disks.
func (s *session) loadDisks(ctx context.Context) error {
	return s.reloader.ReloadDisks(ctx)
}

// loadAll scans disks, utilities and mounted installers.
func (s *session) loadAll(ctx context.Context) error {
	return s.reloader.ReloadAll(ctx)
}

// installer finds a registered installer by name or version name.
func (s *session) installer(name string) (*app.Application, error) {
	for _, installer := range s.registry.Installers() {
		if installer.Name == name || installer.Installer.Version().Name == name {
			return installer, nil
		}
	}

	return nil, fmt.Errorf("installer %q: %w", name, repository.ErrNotRegistered)
}
