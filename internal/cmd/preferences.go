package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/er2/macos-utilities/internal/app"
	"github.com/er2/macos-utilities/internal/preferences"
)

func writePreferences(w io.Writer, format string, prefs *preferences.Preferences) error {
	return render(w, format, prefs, func(w io.Writer) error {
		data, err := preferences.Encode(prefs)
		if err != nil {
			return err
		}
		_, err = w.Write(data)

		return err
	})
}

// mapApplication adds or replaces the mapped application called name and saves the result.
func mapApplication(loader *preferences.Loader, name, path string, shown bool) (*preferences.Preferences, error) {
	prefs := loader.Current()

	mapped := app.New(name, path, shown)
	apps := prefs.Applications()
	replaced := false
	for i, existing := range apps {
		if existing.Name == name {
			apps[i] = mapped
			replaced = true
		}
	}
	if !replaced {
		apps = append(apps, mapped)
	}
	prefs.SetApplications(apps)

	if _, err := loader.Save(prefs, true); err != nil {
		return nil, err
	}

	return prefs, nil
}

// preferencesCommand groups the commands managing the preference file.
func preferencesCommand(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "preferences",
		Aliases: []string{"prefs"},
		Short:   "show, export and import the preferences",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "print the running preferences",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(cmd, opts)
			if err != nil {
				return err
			}

			return writePreferences(cmd.OutOrStdout(), opts.output, s.loader.Current())
		},
	})

	var exportName string
	export := &cobra.Command{
		Use:   "export [DIR]",
		Short: "export the preferences to a .utilconf file (default: ~/Downloads)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(cmd, opts)
			if err != nil {
				return err
			}

			var dir string
			if len(args) > 0 {
				dir = args[0]
			}
			path, err := s.loader.Export(s.loader.Current(), dir, exportName)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)

			return nil
		},
	}
	export.Flags().StringVar(&exportName, "name", "macOS Utilities", "name of the exported configuration")
	cmd.AddCommand(export)

	var updatingRunning bool
	importCmd := &cobra.Command{
		Use:   "import PATH",
		Short: "import preferences from a .utilconf or .plist file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(cmd, opts)
			if err != nil {
				return err
			}

			prefs, err := s.loader.Import(args[0], updatingRunning)
			if err != nil {
				return err
			}

			return writePreferences(cmd.OutOrStdout(), opts.output, prefs)
		},
	}
	importCmd.Flags().BoolVar(&updatingRunning, "update-running", false, "update the running preferences without reloading them")
	cmd.AddCommand(importCmd)

	var hidden bool
	mapCmd := &cobra.Command{
		Use:   "map NAME PATH",
		Short: "map an application bundle into the applications list",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(cmd, opts)
			if err != nil {
				return err
			}

			prefs, err := mapApplication(s.loader, args[0], args[1], !hidden)
			if err != nil {
				return err
			}

			return writePreferences(cmd.OutOrStdout(), opts.output, prefs)
		},
	}
	mapCmd.Flags().BoolVar(&hidden, "hidden", false, "hide the application from the applications window")
	cmd.AddCommand(mapCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "reset",
		Short: "reset the preferences to their defaults",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(cmd, opts)
			if err != nil {
				return err
			}

			prefs := s.loader.Current()
			prefs.Reset()
			if _, err := s.loader.Save(prefs, true); err != nil {
				return err
			}

			return writePreferences(cmd.OutOrStdout(), opts.output, prefs)
		},
	})

	return cmd
}
