package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/er2/macos-utilities/internal/app"
	"github.com/er2/macos-utilities/internal/repository"
)

// itemView is the rendered form of a registered application, utility or installer.
type itemView struct {
	Name       string   `yaml:"name"`
	Role       app.Role `yaml:"role"`
	Path       string   `yaml:"path,omitempty"`
	Shown      bool     `yaml:"shown,omitempty"`
	Version    string   `yaml:"version,omitempty"`
	CanInstall *bool    `yaml:"can_install,omitempty"`
	Selected   bool     `yaml:"selected,omitempty"`
}

func newItemView(reg *repository.Registry, item *app.Application) itemView {
	view := itemView{
		Name:  item.Name,
		Role:  item.Role,
		Path:  item.ResolvedPath(),
		Shown: item.ShowInApplicationsWindow,
	}
	if item.IsInstaller() {
		canInstall := item.Installer.CanInstall()
		view.Version = item.Installer.Version().String()
		view.CanInstall = &canInstall
		view.Selected = reg.IsSelected(item)
	}

	return view
}

func writeItems(w io.Writer, format string, reg *repository.Registry, items []*app.Application) error {
	views := make([]itemView, 0, len(items))
	for _, item := range items {
		views = append(views, newItemView(reg, item))
	}

	return render(w, format, views, func(w io.Writer) error {
		rows := make([]string, 0, len(views))
		for _, v := range views {
			var details []string
			if v.CanInstall != nil && !*v.CanInstall {
				details = append(details, "not installable")
			}
			if v.Selected {
				details = append(details, "selected")
			}
			if v.Path == "" {
				details = append(details, "not found")
			}
			rows = append(rows, fmt.Sprintf("%s\t%s\t%s\t%s", v.Name, v.Role, v.Version, strings.Join(details, ", ")))
		}

		return table(w, "NAME\tROLE\tVERSION\tNOTES", rows)
	})
}

// itemsCommand lists every application, utility and installer found on the machine.
func itemsCommand(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "items",
		Short: "list applications, utilities and installers",
		Long: strings.TrimSpace(`
items lists the applications mapped in the preferences together with the
bundled utilities and every mounted macOS installer.
`),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(cmd, opts)
			if err != nil {
				return err
			}
			if err := s.loadAll(cmd.Context()); err != nil {
				return err
			}

			return writeItems(cmd.OutOrStdout(), opts.output, s.registry, s.registry.Items())
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "open NAME",
		Short: "open an application, utility or installer by name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(cmd, opts)
			if err != nil {
				return err
			}
			if err := s.loadAll(cmd.Context()); err != nil {
				return err
			}

			return s.registry.Open(cmd.Context(), args[0], s.runner)
		},
	})

	return cmd
}

// selectionView describes a selected installer and the disks it could be installed to.
type selectionView struct {
	Installer itemView     `yaml:"installer"`
	Targets   []targetView `yaml:"targets"`
}

type targetView struct {
	DeviceIdentifier string `yaml:"device_identifier"`
	VolumeName       string `yaml:"volume_name"`
	Size             string `yaml:"size"`
	NeedsErase       bool   `yaml:"needs_erase"`
}

// selectInstaller marks the installer as selected and lists the disks it could target. Disks not formatted for
// the installer's version need an erase first.
func selectInstaller(reg *repository.Registry, installer *app.Application) (selectionView, error) {
	if err := reg.SetSelectedInstaller(installer); err != nil {
		return selectionView{}, err
	}

	needsAPFS := installer.Installer.Version().NeedsAPFS()
	view := selectionView{Installer: newItemView(reg, installer)}
	for _, disk := range reg.InstallableDisks() {
		view.Targets = append(view.Targets, targetView{
			DeviceIdentifier: disk.DeviceIdentifier,
			VolumeName:       disk.VolumeName(),
			Size:             humanize.Bytes(uint64(disk.Size)),
			NeedsErase:       !disk.FormattedFor(needsAPFS),
		})
	}

	return view, nil
}

func writeSelection(w io.Writer, format string, view selectionView) error {
	return render(w, format, view, func(w io.Writer) error {
		fmt.Fprintf(w, "Selected %s (%s)\n\n", view.Installer.Name, view.Installer.Version)
		if len(view.Targets) == 0 {
			fmt.Fprintln(w, "No installable disks found")
			return nil
		}

		rows := make([]string, 0, len(view.Targets))
		for _, t := range view.Targets {
			erase := ""
			if t.NeedsErase {
				erase = "erase required"
			}
			rows = append(rows, fmt.Sprintf("%s\t%s\t%s\t%s", t.DeviceIdentifier, t.VolumeName, t.Size, erase))
		}

		return table(w, "DISK\tVOLUME\tSIZE\tNOTES", rows)
	})
}

// installersCommand groups the commands working with mounted macOS installers.
func installersCommand(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "installers",
		Short: "list, select and open macOS installers",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "list mounted installers, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(cmd, opts)
			if err != nil {
				return err
			}
			if err := s.reloader.ScanInstallers(cmd.Context()); err != nil {
				return err
			}

			return writeItems(cmd.OutOrStdout(), opts.output, s.registry, s.registry.Installers())
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "select NAME",
		Short: "select an installer and list the disks it can be installed to",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(cmd, opts)
			if err != nil {
				return err
			}
			if err := s.loadAll(cmd.Context()); err != nil {
				return err
			}
			installer, err := s.installer(args[0])
			if err != nil {
				return err
			}

			view, err := selectInstaller(s.registry, installer)
			if err != nil {
				return err
			}

			return writeSelection(cmd.OutOrStdout(), opts.output, view)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "open NAME",
		Short: "open an installer as the logged in user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(cmd, opts)
			if err != nil {
				return err
			}
			if err := s.reloader.ScanInstallers(cmd.Context()); err != nil {
				return err
			}
			installer, err := s.installer(args[0])
			if err != nil {
				return err
			}

			logrus.WithFields(logrus.Fields{
				"installer": installer.Name,
				"version":   installer.Installer.Version(),
			}).Info("Opening installer")

			return installer.Open(cmd.Context(), s.runner)
		},
	})

	return cmd
}
