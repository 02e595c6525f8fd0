package repository

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/er2/macos-utilities/internal/app"
	"github.com/er2/macos-utilities/internal/compat"
	"github.com/er2/macos-utilities/internal/diskutil"
	"github.com/er2/macos-utilities/internal/diskutil/types"
	"github.com/er2/macos-utilities/internal/notify"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultVolumesDir is where macOS mounts volumes.
	DefaultVolumesDir = "/Volumes"

	// infoConcurrency bounds the diskutil info invocations run at once during a disk scan.
	infoConcurrency = 4
)

// installerVolumeMarkers identify volumes carrying a macOS installer.
var installerVolumeMarkers = []string{"Install macOS", "Install Mac OS X", "Install OS X"}

// IsInstallerVolume reports whether a volume name identifies a mounted macOS installer.
func IsInstallerVolume(name string) bool {
	for _, marker := range installerVolumeMarkers {
		if strings.Contains(name, marker) {
			return true
		}
	}

	return false
}

// Reloader fills a Registry from the machine.
type Reloader struct {
	Registry *Registry
	DiskUtil diskutil.DiskUtil

	// Allowed is the list of versions installers found by the reloader may install.
	Allowed []compat.Version
	// UtilitiesDir is the folder the bundled utilities are scanned from.
	UtilitiesDir string
	// VolumesDir is scanned for mounted installers. It defaults to DefaultVolumesDir.
	VolumesDir string
	// Lookup resolves applications by name. It defaults to app.DefaultLookup.
	Lookup app.Lookup
}

func (rl *Reloader) volumesDir() string {
	if rl.VolumesDir == "" {
		return DefaultVolumesDir
	}

	return rl.VolumesDir
}

func (rl *Reloader) appOptions() []app.Option {
	if rl.Lookup == nil {
		return nil
	}

	return []app.Option{app.WithLookup(rl.Lookup)}
}

// ReloadAll rescans disks, utilities and mounted installers concurrently. Items are only ever added. A failing
// step is logged and skipped so the others still complete.
func (rl *Reloader) ReloadAll(ctx context.Context) error {
	var g errgroup.Group

	steps := map[string]func(context.Context) error{
		"disks":      rl.ReloadDisks,
		"utilities":  rl.ScanUtilities,
		"installers": rl.ScanInstallers,
	}
	for name, step := range steps {
		name, step := name, step
		g.Go(func() error {
			if err := step(ctx); err != nil {
				logrus.WithError(err).WithField("step", name).Error("Rescan step failed")
			}
			return nil
		})
	}
	_ = g.Wait()

	return ctx.Err()
}

// ReloadDisks lists the disks and fetches their details. Disks whose details cannot be read are kept without
// them. The snapshot is only applied if no newer scan finished first.
func (rl *Reloader) ReloadDisks(ctx context.Context) error {
	if rl.DiskUtil == nil {
		return fmt.Errorf("no diskutil available")
	}

	generation := rl.Registry.BeginScan()

	list, err := rl.DiskUtil.List(ctx, nil)
	if err != nil {
		return fmt.Errorf("cannot list disks: %w", err)
	}

	disks := list.Disks()
	detailed := make([]types.Disk, len(disks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(infoConcurrency)
	for i, d := range disks {
		i, d := i, d
		g.Go(func() error {
			info, err := rl.DiskUtil.Info(gctx, d.DeviceIdentifier)
			if err != nil {
				logrus.WithError(err).WithField("device_id", d.DeviceIdentifier).Warn("Unable to read disk info")
				detailed[i] = d
				return nil
			}
			detailed[i] = d.WithInfo(info)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if rl.Registry.ApplyDisks(generation, detailed) {
		logrus.WithField("count", len(detailed)).Info("Disk scan applied")
	}

	return nil
}

// ScanUtilities registers every bundle in the utilities folder.
func (rl *Reloader) ScanUtilities(ctx context.Context) error {
	logrus.WithField("dir", rl.UtilitiesDir).Debug("Loading utilities")

	entries, err := os.ReadDir(rl.UtilitiesDir)
	if err != nil {
		return fmt.Errorf("cannot read utilities from %s: %w", rl.UtilitiesDir, err)
	}

	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		name := strings.ReplaceAll(entry.Name(), ".app", "")
		rl.Registry.Register(app.NewUtility(name, entry.Name(), rl.UtilitiesDir, rl.appOptions()...))
	}

	return ctx.Err()
}

// ScanInstallers registers an installer for every mounted installer volume.
func (rl *Reloader) ScanInstallers(ctx context.Context) error {
	dir := rl.volumesDir()

	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("cannot scan for mounted installers: %w", err)
	}

	for _, entry := range entries {
		if !IsInstallerVolume(entry.Name()) {
			continue
		}
		rl.Registry.Register(app.NewInstaller(filepath.Join(dir, entry.Name()), entry.Name(), rl.Allowed, rl.appOptions()...))
	}

	return ctx.Err()
}

// ReloadApplications registers the applications mapped in the preferences.
func (rl *Reloader) ReloadApplications(mapped []*app.Application) int {
	return rl.Registry.RegisterAll(mapped, true)
}

// Subscribe rescans whenever a repository refresh is requested. The returned function stops listening.
func (rl *Reloader) Subscribe(ctx context.Context) (cancel func()) {
	return rl.Registry.Bus().Subscribe(func(notify.Event) {
		if err := rl.ReloadAll(ctx); err != nil {
			logrus.WithError(err).Warn("Repository refresh interrupted")
		}
	}, notify.RefreshRepository)
}
