// Package app models the launchable bundles the utilities know about: mapped applications, the bundled macOS
// utilities and the macOS installers found on mounted volumes.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/er2/macos-utilities/internal/diskutil/types"
	"github.com/er2/macos-utilities/internal/util"

	"github.com/sirupsen/logrus"
)

// Role distinguishes the kinds of bundle an Application can be.
type Role uint8

const (
	RoleApplication Role = iota
	RoleUtility
	RoleInstaller
)

func (r Role) String() string {
	switch r {
	case RoleApplication:
		return "application"
	case RoleUtility:
		return "utility"
	case RoleInstaller:
		return "installer"
	default:
		return "unknown"
	}
}

// MarshalText lets roles render by name in YAML output.
func (r Role) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

const bundleSuffix = ".app"

// ErrNotFound is returned when an application's bundle cannot be located.
var ErrNotFound = errors.New("application bundle not found")

// Lookup resolves an application name to the path of its bundle, the way Launch Services finds an application by
// name.
type Lookup func(name string) (string, bool)

// SearchDirs are the folders DefaultLookup searches.
var SearchDirs = []string{
	"/Applications",
	"/Applications/Utilities",
	"/System/Applications",
	"/System/Applications/Utilities",
}

// DefaultLookup searches SearchDirs for a bundle named after the application.
func DefaultLookup(name string) (string, bool) {
	bundle := name
	if !strings.HasSuffix(bundle, bundleSuffix) {
		bundle += bundleSuffix
	}

	for _, dir := range SearchDirs {
		p := filepath.Join(dir, bundle)
		if isDir(p) {
			return p, true
		}
	}

	return "", false
}

// Application is a launchable bundle. Installer is only set for the installer role.
type Application struct {
	Name string `yaml:"name"`
	// Path is the configured bundle path. The resolved path may differ, see ResolvedPath.
	Path                     string     `yaml:"path"`
	ShowInApplicationsWindow bool       `yaml:"shown"`
	Role                     Role       `yaml:"role"`
	Installer                *Installer `yaml:"installer,omitempty"`

	lookup Lookup

	mu         sync.Mutex
	cachedPath *string
}

// Option customises a new Application.
type Option func(*Application)

// WithLookup replaces DefaultLookup for resolving the application by name.
func WithLookup(lookup Lookup) Option {
	return func(a *Application) {
		a.lookup = lookup
	}
}

// New creates an application mapped by the user.
func New(name, path string, shown bool, opts ...Option) *Application {
	a := &Application{
		Name:                     name,
		Path:                     path,
		ShowInApplicationsWindow: shown,
		Role:                     RoleApplication,
		lookup:                   DefaultLookup,
	}
	for _, opt := range opts {
		opt(a)
	}

	return a
}

// NewUtility creates a bundled utility. The path is normalised into utilitiesDir with a .app suffix, so a bare
// bundle name like "Terminal" is enough.
func NewUtility(name, path, utilitiesDir string, opts ...Option) *Application {
	if !strings.Contains(path, utilitiesDir+"/") {
		path = filepath.Join(utilitiesDir, path)
	}
	if !strings.Contains(path, bundleSuffix) {
		path += bundleSuffix
	}

	a := New(name, path, false, opts...)
	a.Role = RoleUtility

	return a
}

// ID identifies the application in the repository. Installers are identified by their version name, everything
// else by name.
func (a *Application) ID() string {
	if a.Installer != nil {
		return types.HashID(a.Installer.Version().Name)
	}

	return types.HashID(a.Name)
}

// Equal reports whether both applications identify the same item.
func (a *Application) Equal(other *Application) bool {
	if other == nil {
		return false
	}

	return a.ID() == other.ID()
}

// IsInstaller reports whether the application is a macOS installer.
func (a *Application) IsInstaller() bool {
	return a.Role == RoleInstaller && a.Installer != nil
}

// ResolvedPath returns the configured path when a bundle exists there, otherwise the path found by looking the
// application up by name. The result is cached until ReloadPath is called. An empty string means the
// application could not be found.
func (a *Application) ResolvedPath() string {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.cachedPath != nil {
		return *a.cachedPath
	}

	resolved := a.resolve()
	a.cachedPath = &resolved

	return resolved
}

func (a *Application) resolve() string {
	if a.Path != "" && exists(a.Path) {
		return a.Path
	}

	lookup := a.lookup
	if lookup == nil {
		lookup = DefaultLookup
	}

	if found, ok := lookup(a.Name); ok {
		if a.Path != "" {
			logrus.WithFields(logrus.Fields{
				"name":       a.Name,
				"configured": a.Path,
				"found":      found,
			}).Debug("Configured path does not exist, using the application found by name")
		}
		return found
	}

	logrus.WithField("name", a.Name).Debug("Could not find path for application")

	return ""
}

// ReloadPath drops the cached path so the next ResolvedPath resolves it again.
func (a *Application) ReloadPath() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.cachedPath = nil
}

// UpdatePath changes the configured path.
func (a *Application) UpdatePath(path string) {
	logrus.WithFields(logrus.Fields{
		"name": a.Name,
		"path": path,
	}).Debug("Updating application path")

	a.mu.Lock()
	defer a.mu.Unlock()

	a.Path = path
	a.cachedPath = nil
}

// Valid reports whether the application's bundle exists.
func (a *Application) Valid() bool {
	p := a.ResolvedPath()

	return p != "" && isDir(p)
}

// Open launches the application. Installers the machine cannot install are refused and fake installers are never
// launched.
func (a *Application) Open(ctx context.Context, r util.Runner) error {
	if a.IsInstaller() {
		if a.Installer.Fake {
			logrus.WithField("installer", a.Installer.Version()).Info("Pretending to open fake installer")
			return nil
		}
		if !a.Installer.CanInstall() {
			return fmt.Errorf("%s: %w", a.Installer.Version(), ErrCannotInstall)
		}
	}

	p := a.ResolvedPath()
	if p == "" {
		return fmt.Errorf("%s: %w", a.Name, ErrNotFound)
	}

	out, err := r.Run(ctx, []string{"open", p}, util.InvokingUser())
	if err != nil {
		return fmt.Errorf("failed to open %s, stderr: [%s]: %w", p, out.Stderr, err)
	}
	logrus.WithFields(logrus.Fields{
		"role": a.Role,
		"path": p,
	}).Info("Launched application")

	return nil
}

func (a *Application) String() string {
	if a.IsInstaller() {
		return a.Installer.String()
	}
	if a.Role == RoleUtility {
		return fmt.Sprintf("Utility: %s: %s", a.Name, a.ResolvedPath())
	}

	return fmt.Sprintf("%s: %s", a.Name, a.ResolvedPath())
}

func exists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}

func isDir(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.IsDir()
}
