package system

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/er2/macos-utilities/internal/util"

	"howett.net/plist"
)

// Machine mirrors the hardware overview reported by "system_profiler -xml SPHardwareDataType".
type Machine struct {
	ModelIdentifier string `plist:"machine_model" yaml:"model_identifier"`
	ModelName       string `plist:"machine_name" yaml:"model_name,omitempty"`
	SerialNumber    string `plist:"serial_number" yaml:"serial_number,omitempty"`
	PhysicalMemory  string `plist:"physical_memory" yaml:"physical_memory,omitempty"`
	CPUType         string `plist:"cpu_type" yaml:"cpu_type,omitempty"`
	ChipType        string `plist:"chip_type" yaml:"chip_type,omitempty"`
	PlatformUUID    string `plist:"platform_UUID" yaml:"platform_uuid,omitempty"`
	BootROMVersion  string `plist:"boot_rom_version" yaml:"boot_rom_version,omitempty"`
}

// Processor returns the Apple silicon chip name or, on Intel machines, the CPU type.
func (m *Machine) Processor() string {
	if m.ChipType != "" {
		return m.ChipType
	}

	return m.CPUType
}

// hardwareDataType is a single data type section of a system_profiler XML report.
type hardwareDataType struct {
	Items []Machine `plist:"_items"`
}

// ScanMachine identifies the machine's hardware with system_profiler. When system_profiler cannot be used, the
// model identifier is still resolved through sysctl.
func ScanMachine(ctx context.Context) (*Machine, error) {
	out, err := util.ExecuteCommand(ctx, []string{"system_profiler", "-xml", "SPHardwareDataType"}, "", nil, nil)
	if err == nil {
		machine, decodeErr := decodeHardwareReport(strings.NewReader(out.Stdout))
		if decodeErr == nil && machine.ModelIdentifier != "" {
			return machine, nil
		}
		err = decodeErr
	}

	model, sysctlErr := readModelIdentifier(ctx)
	if sysctlErr != nil {
		return nil, fmt.Errorf("cannot identify machine: %w", errors.Join(err, sysctlErr))
	}

	return &Machine{ModelIdentifier: model}, nil
}

// decodeHardwareReport decodes the first hardware item of a system_profiler XML report.
func decodeHardwareReport(reader io.ReadSeeker) (machine *Machine, err error) {
	// Catch panics thrown by the Decode method
	defer func() {
		if panicErr := recover(); panicErr != nil {
			machine = nil
			err = fmt.Errorf("system: panic occurred while decoding hardware report: %v", panicErr)
		}
	}()

	var report []hardwareDataType
	if err := plist.NewDecoder(reader).Decode(&report); err != nil {
		return nil, fmt.Errorf("system failed to decode hardware report: %w", err)
	}

	for _, section := range report {
		if len(section.Items) > 0 {
			return &section.Items[0], nil
		}
	}

	return nil, errors.New("system: hardware report has no items")
}

// readModelIdentifier reads the model identifier (e.g. "MacBookPro15,2") through sysctl.
func readModelIdentifier(ctx context.Context) (string, error) {
	out, err := util.ExecuteCommand(ctx, []string{"sysctl", "-n", "hw.model"}, "", nil, nil)
	if err != nil {
		return "", fmt.Errorf("sysctl: failed to read hw.model, stderr: [%s]: %w", out.Stderr, err)
	}

	model := strings.TrimSpace(out.Stdout)
	if model == "" {
		return "", errors.New("sysctl: empty hw.model")
	}

	return model, nil
}
