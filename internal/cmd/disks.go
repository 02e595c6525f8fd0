package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/er2/macos-utilities/internal/compat"
	"github.com/er2/macos-utilities/internal/diskutil"
	"github.com/er2/macos-utilities/internal/diskutil/identifier"
	"github.com/er2/macos-utilities/internal/diskutil/types"
	"github.com/er2/macos-utilities/internal/repository"
	"github.com/er2/macos-utilities/internal/system"
)

// diskLine formats a disk for the text output of the disk commands.
func diskLine(disk types.Disk) string {
	var notes []string
	if _, ok := disk.InstallablePartition(); ok {
		notes = append(notes, "installable")
	}
	if disk.Fake {
		notes = append(notes, "fake")
	}
	if disk.Info != nil && disk.Info.SolidState {
		notes = append(notes, "ssd")
	}

	return fmt.Sprintf("%s\t%s\t%s\t%s\t%s", disk.DeviceIdentifier, humanize.Bytes(uint64(disk.Size)), disk.ContentType(), disk.VolumeName(), strings.Join(notes, ", "))
}

func writeDisks(w io.Writer, format string, disks []types.Disk) error {
	return render(w, format, disks, func(w io.Writer) error {
		rows := make([]string, 0, len(disks))
		for _, disk := range disks {
			rows = append(rows, diskLine(disk))
		}

		return table(w, "DISK\tSIZE\tCONTENT\tVOLUME\tNOTES", rows)
	})
}

func writeDiskInfo(w io.Writer, format string, info *types.DiskInfo) error {
	return render(w, format, info, func(w io.Writer) error {
		rows := []string{
			"Device Identifier:\t" + info.DeviceIdentifier,
			"Device Node:\t" + info.DeviceNode,
			"Media Name:\t" + info.MediaName,
			"Volume Name:\t" + info.VolumeName,
			"Mount Point:\t" + info.MountPoint,
			"Content:\t" + info.Content,
			"Size:\t" + humanize.Bytes(uint64(info.Size)),
			"Protocol:\t" + info.BusProtocol,
			fmt.Sprintf("Solid State:\t%t", info.SolidState),
			fmt.Sprintf("Internal:\t%t", info.Internal),
			fmt.Sprintf("Removable:\t%t", info.Removable),
			"SMART Status:\t" + info.SMARTStatus,
		}

		return table(w, "", rows)
	})
}

// disksCommand groups the commands inspecting disks.
func disksCommand(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "disks",
		Short: "list and inspect disks",
	}

	var installable, mounted bool
	list := &cobra.Command{
		Use:   "list",
		Short: "list disks with their partitions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(cmd, opts)
			if err != nil {
				return err
			}
			if err := s.loadDisks(cmd.Context()); err != nil {
				return err
			}

			disks := s.registry.Disks()
			switch {
			case installable:
				disks = s.registry.InstallableDisks()
			case mounted:
				disks = s.registry.MountedDisks()
			}

			return writeDisks(cmd.OutOrStdout(), opts.output, disks)
		},
	}
	list.Flags().BoolVar(&installable, "installable", false, "only list disks an installer can target")
	list.Flags().BoolVar(&mounted, "mounted", false, "only list disks with a mounted partition")
	cmd.AddCommand(list)

	cmd.AddCommand(&cobra.Command{
		Use:   "info ID",
		Short: "show details about a disk or partition",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(cmd, opts)
			if err != nil {
				return err
			}

			id := identifier.ParsePartitionID(args[0])
			if id == "" {
				id = identifier.ParseDiskID(args[0])
			}
			if id == "" {
				return fmt.Errorf("%q is not a device identifier", args[0])
			}

			info, err := s.diskutil.Info(cmd.Context(), id)
			if err != nil {
				return err
			}

			return writeDiskInfo(cmd.OutOrStdout(), opts.output, info)
		},
	})

	return cmd
}

// eraseArgs is a struct for holding all information passed into the erase command.
type eraseArgs struct {
	id      string
	name    string
	version string
	apfs    bool
}

// needsAPFS reports whether the erase prepares for an APFS installer, either requested directly or derived from
// the installer version name.
func (a eraseArgs) needsAPFS() bool {
	if a.apfs {
		return true
	}
	if a.version == "" {
		return false
	}

	return compat.ParseVersion(a.version).NeedsAPFS()
}

// eraseCommand creates a new command which erases a disk or partition.
func eraseCommand(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "erase",
		Short: "erase a disk or partition for an install",
		Long: strings.TrimSpace(`
erase reformats a disk or a single partition using 'diskutil'. The target
is given by its identifier (e.g. disk2, /dev/disk2 or disk2s2). Whole disks
get a GUID partition map with one volume. Partitions an installer is mounted
from are refused.

The file system is APFS when --apfs is set, or when --for names an installer
version that requires APFS and the running release can create it. Otherwise
Mac OS Extended (Journaled) is used.
`),
		Args:    cobra.NoArgs,
		PreRunE: assertRootPrivileges,
	}

	args := eraseArgs{}
	cmd.Flags().StringVar(&args.id, "id", "", "disk or partition identifier to erase")
	cmd.Flags().StringVar(&args.name, "name", "", "name of the new volume (default: keep the current name)")
	cmd.Flags().StringVar(&args.version, "for", "", "installer version the target is prepared for (e.g. Mojave)")
	cmd.Flags().BoolVar(&args.apfs, "apfs", false, "format as APFS")
	cmd.MarkFlagRequired("id")

	cmd.RunE = func(cmd *cobra.Command, _ []string) error {
		s, err := newSession(cmd, opts)
		if err != nil {
			return err
		}
		if err := s.loadDisks(cmd.Context()); err != nil {
			return err
		}

		logrus.WithField("args", args).Debug("Running erase command with args")
		name, err := runErase(cmd.Context(), s.diskutil, s.product, s.registry, args)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Erased %s as %q\n", args.id, name)

		return nil
	}

	return cmd
}

// runErase erases the disk or partition named by args and returns the name of the new volume. The disk snapshot
// is replaced with the erased disk so later lookups see the new layout.
func runErase(ctx context.Context, du diskutil.DiskUtil, product *system.Product, reg *repository.Registry, args eraseArgs) (string, error) {
	disk, part, err := findEraseTarget(reg.Disks(), args.id)
	if err != nil {
		return "", fmt.Errorf("cannot erase: %w", err)
	}

	opts := diskutil.EraseOptions{Name: args.name, NeedsAPFS: args.needsAPFS()}
	if part != nil {
		erased, err := diskutil.ErasePartition(ctx, du, product, *part, opts)
		if err != nil {
			return "", err
		}

		return erased.Name(), nil
	}

	erased, err := diskutil.EraseDisk(ctx, du, product, disk, opts)
	if err != nil {
		return "", err
	}

	disks := reg.Disks()
	for i := range disks {
		if disks[i].Equal(disk) {
			disks[i] = erased
		}
	}
	reg.ApplyDisks(reg.BeginScan(), disks)

	return erased.VolumeName(), nil
}

// findEraseTarget resolves id to a disk or, when it names a partition, to that partition and its disk. Ids are
// first matched as given, so fake disks can be targeted, then as parsed device identifiers.
func findEraseTarget(disks []types.Disk, id string) (types.Disk, *types.Partition, error) {
	if strings.TrimSpace(id) == "" {
		return types.Disk{}, nil, errors.New("empty device id")
	}

	candidates := []string{id}
	if partID := identifier.ParsePartitionID(id); partID != "" {
		candidates = append(candidates, partID)
	} else if diskID := identifier.ParseDiskID(id); diskID != "" {
		candidates = append(candidates, diskID)
	}

	for _, candidate := range candidates {
		for _, disk := range disks {
			if strings.EqualFold(disk.DeviceIdentifier, candidate) {
				return disk, nil, nil
			}
			for _, part := range disk.AllPartitions() {
				if strings.EqualFold(part.DeviceIdentifier, candidate) {
					part := part
					return disk, &part, nil
				}
			}
		}
	}

	return types.Disk{}, nil, fmt.Errorf("invalid device identifier %q", id)
}

// fusionCommand creates a new command which rebuilds a broken Fusion Drive.
func fusionCommand(opts *globalOptions) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "fusion",
		Short: "rebuild the Fusion Drive",
		Long: strings.TrimSpace(`
fusion deletes any CoreStorage logical volume group and creates a new Fusion
Drive from the internal solid state and spinning disks. All data on both
disks is lost.
`),
		Args:    cobra.NoArgs,
		PreRunE: assertRootPrivileges,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(cmd, opts)
			if err != nil {
				return err
			}
			if err := s.loadDisks(cmd.Context()); err != nil {
				return err
			}

			var model string
			if s.machine != nil {
				model = s.machine.ModelIdentifier
			}

			return runFusion(cmd.Context(), s.diskutil, model, s.registry.Disks(), force)
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "rebuild even when the model is not known to ship a Fusion Drive")

	return cmd
}

// runFusion rebuilds the Fusion Drive from the disks' details.
func runFusion(ctx context.Context, du diskutil.DiskUtil, model string, disks []types.Disk, force bool) error {
	infos := make([]*types.DiskInfo, 0, len(disks))
	for _, disk := range disks {
		if disk.Info != nil {
			infos = append(infos, disk.Info)
		}
	}

	if !types.HasFusionDrive(model, infos) && !force {
		return fmt.Errorf("no Fusion Drive found for model %q", model)
	}

	return diskutil.CreateFusionDrive(ctx, du, infos)
}
