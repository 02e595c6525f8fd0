package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/er2/macos-utilities/internal/diskimage"
	"github.com/er2/macos-utilities/internal/diskutil/types"
	"github.com/er2/macos-utilities/internal/preferences"
	"github.com/er2/macos-utilities/internal/repository"
	"github.com/er2/macos-utilities/internal/share"
)

const devPrefix = "/dev/"

func writeImages(w io.Writer, format string, images []types.DiskImage) error {
	return render(w, format, images, func(w io.Writer) error {
		rows := make([]string, 0, len(images))
		for _, image := range images {
			rows = append(rows, fmt.Sprintf("%s\t%s\t%s", image.DevEntry, image.VolumeName(), image.MountPoint))
		}

		return table(w, "DEVICE\tVOLUME\tMOUNT POINT", rows)
	})
}

// mountImages mounts a single disk image, or every disk image when path is a folder.
func mountImages(ctx context.Context, images *diskimage.Manager, path string) ([]types.DiskImage, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return images.MountAll(ctx, path)
	}

	image, err := images.Mount(ctx, path)
	if err != nil {
		return nil, err
	}

	return []types.DiskImage{image}, nil
}

// imagesCommand groups the commands mounting and ejecting installer disk images.
func imagesCommand(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "images",
		Short: "mount and eject installer disk images",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "mount PATH",
		Short: "mount a disk image, or every disk image in a folder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(cmd, opts)
			if err != nil {
				return err
			}

			mounted, err := mountImages(cmd.Context(), s.images, args[0])
			if err != nil {
				return err
			}

			return writeImages(cmd.OutOrStdout(), opts.output, mounted)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "eject DEVICE...",
		Short: "eject mounted disk images by device (e.g. /dev/disk4)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(cmd, opts)
			if err != nil {
				return err
			}

			var errs []error
			for _, device := range args {
				image := types.DiskImage{DevEntry: devEntry(device)}
				if err := s.images.Eject(cmd.Context(), image); err != nil {
					errs = append(errs, err)
				}
			}

			return errors.Join(errs...)
		},
	})

	return cmd
}

func devEntry(device string) string {
	if strings.HasPrefix(device, devPrefix) {
		return device
	}

	return devPrefix + device
}

// mountServer mounts the installer share configured in the preferences and then every disk image it serves.
func mountServer(ctx context.Context, shares *share.Manager, images *diskimage.Manager, server *preferences.InstallerServerPreferences) ([]types.DiskImage, error) {
	mounted, err := shares.Mount(ctx, server)
	if err != nil {
		return nil, err
	}

	return images.MountAll(ctx, mounted.MountPoint)
}

// sharesCommand groups the commands working with the installer server share.
func sharesCommand(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "shares",
		Short: "mount and eject the installer server share",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "mount",
		Short: "mount the configured installer share and its disk images",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(cmd, opts)
			if err != nil {
				return err
			}

			mounted, err := mountServer(cmd.Context(), s.shares, s.images, s.prefs.InstallerServer)
			if err != nil {
				return err
			}

			return writeImages(cmd.OutOrStdout(), opts.output, mounted)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "eject [MOUNT_POINT...]",
		Short: "force unmount installer shares (default: the configured share)",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(cmd, opts)
			if err != nil {
				return err
			}

			mountPoints := args
			if len(mountPoints) == 0 {
				server := s.prefs.InstallerServer
				if server == nil || !server.Mountable() {
					return share.ErrNotMountable
				}
				mountPoints = []string{server.MountPath}
			}
			for _, mp := range mountPoints {
				s.registry.AddShare(types.Share{Type: types.ShareTypeNFS, MountPoint: mp})
			}

			return s.shares.EjectAll(cmd.Context())
		},
	})

	return cmd
}

// ejectAll ejects every mounted installer volume and unmounts the installer share. Failures are collected so one
// busy volume does not keep the others mounted.
func ejectAll(ctx context.Context, reg *repository.Registry, images *diskimage.Manager, shares *share.Manager, server *preferences.InstallerServerPreferences) error {
	var errs []error
	for _, disk := range reg.MountedDisks() {
		for _, part := range disk.MountedPartitions() {
			if !part.ContainsInstaller() {
				continue
			}
			image := types.DiskImage{DevEntry: devEntry(disk.DeviceIdentifier), MountPoint: part.MountPoint}
			if err := images.Eject(ctx, image); err != nil {
				errs = append(errs, err)
			}
			break
		}
	}

	if server != nil && server.Mountable() {
		if _, err := os.Stat(server.MountPath); err == nil {
			reg.AddShare(types.Share{Type: types.ShareTypeNFS, MountPoint: filepath.Clean(server.MountPath)})
		}
	}
	if err := shares.EjectAll(ctx); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// ejectAllCommand ejects installer media, as done when quitting with "eject drives on quit" enabled.
func ejectAllCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "eject-all",
		Short: "eject every mounted installer and the installer share",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(cmd, opts)
			if err != nil {
				return err
			}
			if err := s.loadDisks(cmd.Context()); err != nil {
				return err
			}

			if !s.prefs.EjectDrivesOnQuit {
				logrus.Info("Ejecting drives is disabled in the preferences, ejecting on request")
			}

			return ejectAll(cmd.Context(), s.registry, s.images, s.shares, s.prefs.InstallerServer)
		},
	}
}
