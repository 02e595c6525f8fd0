// Package preferences loads and saves the utilities' property list configuration.
package preferences

import (
	"strings"

	"github.com/er2/macos-utilities/internal/app"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

// CurrentConfigurationVersion is written into new preference files.
const CurrentConfigurationVersion = "2.0"

// Preferences is the configuration document.
type Preferences struct {
	HelpEmailAddress                    string                      `plist:"helpEmailAddress,omitempty" yaml:"help_email_address,omitempty"`
	PrintServerAddress                  string                      `plist:"printServerAddress,omitempty" yaml:"print_server_address,omitempty"`
	DeviceIdentifierAuthenticationToken string                      `plist:"deviceIdentifierAuthenticationToken,omitempty" yaml:"-"`
	Logging                             *LoggingPreferences         `plist:"loggingPreferences,omitempty" yaml:"logging,omitempty"`
	InstallerServer                     *InstallerServerPreferences `plist:"installerServerPreferences,omitempty" yaml:"installer_server,omitempty"`
	MappedApplications                  []MappedApplication         `plist:"mappedApplications,omitempty" yaml:"applications,omitempty"`
	ApplicationsSectionLabel            string                      `plist:"applicationsSectionLabel,omitempty" yaml:"applications_section_label,omitempty"`
	IsRemoteConfiguration               bool                        `plist:"isRemoteConfiguration" yaml:"remote_configuration"`
	EjectDrivesOnQuit                   bool                        `plist:"ejectDrivesOnQuit" yaml:"eject_drives_on_quit"`
	ConfigurationVersion                string                      `plist:"configurationVersion" yaml:"configuration_version"`
}

// LoggingPreferences configure remote logging.
type LoggingPreferences struct {
	LoggingEnabled bool   `plist:"loggingEnabled" yaml:"enabled"`
	LoggingPort    uint   `plist:"loggingPort" yaml:"port"`
	LoggingURL     string `plist:"loggingURL" yaml:"url"`
}

// InstallerServerPreferences describe the NFS server installer disk images are served from.
type InstallerServerPreferences struct {
	ServerPath    string `plist:"serverPath" yaml:"path"`
	ServerIP      string `plist:"serverIP" yaml:"ip"`
	ServerType    string `plist:"serverType" yaml:"type"`
	MountPath     string `plist:"mountPath" yaml:"mount_path"`
	ServerEnabled bool   `plist:"serverEnabled" yaml:"enabled"`
}

// Mountable reports whether enough of the server is configured to mount it.
func (s *InstallerServerPreferences) Mountable() bool {
	return strings.TrimSpace(s.ServerPath) != "" &&
		strings.TrimSpace(s.ServerIP) != "" &&
		strings.TrimSpace(s.MountPath) != ""
}

// ShareURL is the NFS location of the server, e.g. "10.0.0.2:/installers".
func (s *InstallerServerPreferences) ShareURL() string {
	return s.ServerIP + ":" + s.ServerPath
}

// MappedApplication is an application the user added to the applications window.
type MappedApplication struct {
	Name                     string `plist:"name" yaml:"name"`
	Path                     string `plist:"path" yaml:"path"`
	ShowInApplicationsWindow bool   `plist:"showInApplicationsWindow" yaml:"shown"`
}

// Default returns the preferences used when no preference file can be read.
func Default() *Preferences {
	return &Preferences{
		EjectDrivesOnQuit:    true,
		ConfigurationVersion: CurrentConfigurationVersion,
	}
}

// UseDeviceIdentifierAPI reports whether an authentication token for the device identifier service is configured.
func (p *Preferences) UseDeviceIdentifierAPI() bool {
	return p.DeviceIdentifierAuthenticationToken != ""
}

// Applications builds the applications mapped in the preferences.
func (p *Preferences) Applications(opts ...app.Option) []*app.Application {
	apps := make([]*app.Application, 0, len(p.MappedApplications))
	for _, m := range p.MappedApplications {
		apps = append(apps, app.New(m.Name, m.Path, m.ShowInApplicationsWindow, opts...))
	}

	return apps
}

// SetApplications replaces the mapped applications.
func (p *Preferences) SetApplications(apps []*app.Application) {
	mapped := make([]MappedApplication, 0, len(apps))
	for _, a := range apps {
		mapped = append(mapped, MappedApplication{
			Name:                     a.Name,
			Path:                     a.Path,
			ShowInApplicationsWindow: a.ShowInApplicationsWindow,
		})
	}
	p.MappedApplications = mapped
}

// dropInvalidApplications removes mapped applications without a bundle path.
func (p *Preferences) dropInvalidApplications() {
	valid := p.MappedApplications[:0]
	for _, m := range p.MappedApplications {
		if m.Path != "" && strings.Contains(m.Path, ".app") {
			valid = append(valid, m)
		}
	}
	p.MappedApplications = valid
}

// Reset clears everything but the configuration version.
func (p *Preferences) Reset() {
	version := p.ConfigurationVersion
	*p = Preferences{ConfigurationVersion: version}
}

// Equal reports whether both documents hold the same settings. A nil and an empty application list are equal.
func (p *Preferences) Equal(other *Preferences) bool {
	if p == nil || other == nil {
		return p == other
	}

	return cmp.Equal(*p, *other, cmpopts.EquateEmpty())
}

// Diff describes how other differs from p, for logging.
func (p *Preferences) Diff(other *Preferences) string {
	if p == nil || other == nil {
		return cmp.Diff(p == nil, other == nil)
	}

	// Values, not pointers: cmp would otherwise call back into Equal.
	return cmp.Diff(*p, *other, cmpopts.EquateEmpty())
}

// Clone returns a deep copy.
func (p *Preferences) Clone() *Preferences {
	if p == nil {
		return nil
	}

	c := *p
	if p.Logging != nil {
		l := *p.Logging
		c.Logging = &l
	}
	if p.InstallerServer != nil {
		s := *p.InstallerServer
		c.InstallerServer = &s
	}
	if p.MappedApplications != nil {
		c.MappedApplications = append([]MappedApplication(nil), p.MappedApplications...)
	}

	return &c
}
