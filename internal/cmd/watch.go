package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/gosuri/uilive"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/er2/macos-utilities/internal/notify"
	"github.com/er2/macos-utilities/internal/repository"
	"github.com/er2/macos-utilities/internal/volumes"
)

// writeStatus summarizes what the registry currently holds.
func writeStatus(w io.Writer, reg *repository.Registry) {
	installers := reg.Installers()
	names := make([]string, 0, len(installers))
	for _, installer := range installers {
		names = append(names, installer.Installer.Version().Name)
	}

	fmt.Fprintf(w, "Installers: %d %s\n", len(installers), strings.Join(names, ", "))
	fmt.Fprintf(w, "Disks: %d (%d installable)\n", len(reg.Disks()), len(reg.InstallableDisks()))
	fmt.Fprintf(w, "Shares: %d\n", len(reg.Shares()))
}

// watchCommand follows volumes being mounted and unmounted until interrupted.
func watchCommand(opts *globalOptions) *cobra.Command {
	var (
		dir     string
		noEject bool
	)
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "follow installers and disks as volumes come and go",
		Long: strings.TrimSpace(`
watch keeps the list of installers and disks current while volumes are
mounted and unmounted, until interrupted. On exit, installer media is
ejected when the preferences ask for drives to be ejected on quit.
`),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			s, err := newSession(cmd, opts)
			if err != nil {
				return err
			}
			s.reloader.VolumesDir = dir
			if err := s.loadAll(ctx); err != nil {
				return err
			}

			live := uilive.New()
			live.Out = cmd.OutOrStdout()
			live.Start()
			defer live.Stop()

			writeStatus(live, s.registry)
			cancel := s.registry.Bus().Subscribe(func(notify.Event) {
				writeStatus(live, s.registry)
			}, notify.NewInstaller, notify.RemoveInstaller, notify.NewDisks, notify.NewShares)
			defer cancel()
			defer s.reloader.Subscribe(ctx)()

			watcher, err := volumes.NewWatcher(dir, s.reloader)
			if err != nil {
				return err
			}
			if err := watcher.Start(ctx); err != nil {
				return err
			}
			<-ctx.Done()
			watcher.Stop()

			if noEject || !s.prefs.EjectDrivesOnQuit {
				return nil
			}
			logrus.Info("Ejecting installer media")

			return ejectAll(context.Background(), s.registry, s.images, s.shares, s.prefs.InstallerServer)
		},
	}
	cmd.Flags().StringVar(&dir, "volumes", repository.DefaultVolumesDir, "folder volumes are mounted in")
	cmd.Flags().BoolVar(&noEject, "no-eject", false, "keep installer media mounted on exit")

	return cmd
}
