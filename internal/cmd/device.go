package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/er2/macos-utilities/internal/logging"
	"github.com/er2/macos-utilities/internal/system"
)

// deviceView describes the machine being serviced.
type deviceView struct {
	MachineName         string          `yaml:"machine_name"`
	Product             string          `yaml:"product"`
	Machine             *system.Machine `yaml:"machine,omitempty"`
	InstallableVersions []string        `yaml:"installable_versions"`
}

func newDeviceView(host string, product *system.Product, machine *system.Machine) deviceView {
	view := deviceView{
		MachineName: logging.MachineName(host, machine, false),
		Machine:     machine,
	}
	if product != nil {
		view.Product = product.String()
	}
	for _, v := range allowedVersions(machine) {
		view.InstallableVersions = append(view.InstallableVersions, v.Name)
	}

	return view
}

func writeDevice(w io.Writer, format string, view deviceView) error {
	return render(w, format, view, func(w io.Writer) error {
		rows := []string{
			"Machine Name:\t" + view.MachineName,
			"macOS:\t" + view.Product,
		}
		if m := view.Machine; m != nil {
			rows = append(rows,
				"Model:\t"+strings.TrimSpace(m.ModelName+" "+m.ModelIdentifier),
				"Processor:\t"+m.Processor(),
				"Memory:\t"+m.PhysicalMemory,
				"Serial Number:\t"+m.SerialNumber,
				"Hardware UUID:\t"+m.PlatformUUID,
			)
		}
		rows = append(rows, "Installable:\t"+strings.Join(view.InstallableVersions, ", "))

		return table(w, "", rows)
	})
}

// deviceCommand prints the machine's identity and the macOS versions it can install.
func deviceCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "device",
		Short: "show the machine and the macOS versions it can install",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(cmd, opts)
			if err != nil {
				return err
			}

			host, err := os.Hostname()
			if err != nil {
				return fmt.Errorf("cannot read host name: %w", err)
			}

			return writeDevice(cmd.OutOrStdout(), opts.output, newDeviceView(host, s.product, s.machine))
		},
	}
}
