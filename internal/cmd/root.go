// Package cmd provides the functionality necessary for CLI commands in macOS Utilities.
package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/er2/macos-utilities/internal/build"
	"github.com/er2/macos-utilities/internal/contextual"
	"github.com/er2/macos-utilities/internal/logging"
	"github.com/er2/macos-utilities/internal/preferences"
)

const shortLicenseText = "Copyright ER2. All Rights Reserved."

// globalOptions holds the persistent flags shared by every subcommand.
type globalOptions struct {
	verbose         bool
	dryrun          bool
	demo            bool
	preferencesPath string
	logFile         string
	output          string
}

// MainCommand provides the main program entrypoint that dispatches to utility subcommands.
func MainCommand() *cobra.Command {
	opts := &globalOptions{}
	cmd := rootCommand(opts)

	cmds := []*cobra.Command{
		itemsCommand(opts),
		disksCommand(opts),
		installersCommand(opts),
		imagesCommand(opts),
		sharesCommand(opts),
		ejectAllCommand(opts),
		eraseCommand(opts),
		fusionCommand(opts),
		preferencesCommand(opts),
		deviceCommand(opts),
		watchCommand(opts),
	}
	for i := range cmds {
		cmd.AddCommand(cmds[i])
	}

	return cmd
}

// rootCommand builds a root command object for program run.
func rootCommand(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   build.ProjectName,
		Short: "utilities for preparing and installing macOS",
		Long: strings.TrimSpace(`
This command provides the tools used to prepare Macs for a macOS install: listing and erasing disks, mounting
installer disk images and shares, and opening installers and utilities.

Tasks are reached through subcommands, each with help text and usages that accompany them.
`),
		Version:      build.Version,
		SilenceUsage: true,
	}

	versionTemplate := "{{.Name}} {{.Version}} [%s]\n\n%s\n"
	cmd.SetVersionTemplate(fmt.Sprintf(versionTemplate, build.CommitDate, shortLicenseText))

	flags := cmd.PersistentFlags()
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "Enable verbose logging output")
	flags.BoolVar(&opts.dryrun, "dryrun", false, "Log mutating disk operations instead of running them")
	flags.BoolVar(&opts.demo, "demo", false, "Add fake installers and disks for demonstrations")
	flags.StringVar(&opts.preferencesPath, "preferences", "", "Preference file to use (default ~/Library/Application Support/macOS Utilities)")
	flags.StringVar(&opts.logFile, "log-file", "", "Also write the log to this file")
	flags.StringVarP(&opts.output, "output", "o", outputText, "Output format: text or yaml")

	var logFile io.Closer
	cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		level := logrus.InfoLevel
		if opts.verbose {
			level = logrus.DebugLevel
		}
		setupLogging(level)

		if err := validateOutput(opts.output); err != nil {
			return err
		}

		if opts.logFile != "" {
			closer, err := logging.ConfigureFile(logrus.StandardLogger(), opts.logFile)
			if err != nil {
				return err
			}
			logFile = closer
		}

		return nil
	}
	cmd.PersistentPostRunE = func(cmd *cobra.Command, args []string) error {
		if logFile != nil {
			return logFile.Close()
		}

		return nil
	}

	return cmd
}

// setupLogging configures logrus to use the desired timestamp format and log level.
func setupLogging(level logrus.Level) {
	Formatter := &logrus.TextFormatter{}

	// Configure the formatter
	Formatter.TimestampFormat = time.RFC822
	Formatter.FullTimestamp = true

	// Set the desired log level
	logrus.SetLevel(level)

	logrus.SetFormatter(Formatter)
}

// setupRemoteLogging sends the log to the endpoint configured in the preferences, if any.
func setupRemoteLogging(cmd *cobra.Command, opts *globalOptions, prefs *preferences.Preferences) {
	host, err := os.Hostname()
	if err != nil {
		logrus.WithError(err).Debug("Unable to read host name")
	}
	name := logging.MachineName(host, contextual.Machine(cmd.Context()), opts.verbose)

	err = logging.ConfigureRemote(logrus.StandardLogger(), prefs.Logging, name)
	if errors.Is(err, logging.ErrRemoteDisabled) {
		return
	} else if err != nil {
		logrus.WithError(err).Warn("Remote logging unavailable")
	}
}

func hasRootPrivileges() bool {
	return os.Geteuid() == 0
}

// assertRootPrivileges checks if the command is running with root permissions.
// If the command doesn't have root permissions, a help message is logged with
// an example and an error is returned.
func assertRootPrivileges(cmd *cobra.Command, args []string) error {
	logrus.Debug("Checking user permissions...")
	ok := hasRootPrivileges()
	if !ok {
		logrus.Warn("Root privileges required")
		return errors.New("root privileges required, re-run command with sudo")
	}

	return nil
}
