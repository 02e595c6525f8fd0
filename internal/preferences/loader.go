package preferences

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/er2/macos-utilities/internal/notify"

	"github.com/sirupsen/logrus"
	"howett.net/plist"
)

const (
	// propertyListName is the preference file's name without extension.
	propertyListName = "com.er2.applications"
	// exportExtension is used for preference files exported for other machines.
	exportExtension = ".utilconf"
)

// DefaultPath returns the preference file in the user's Application Support folder.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot find home folder: %w", err)
	}

	return filepath.Join(home, "Library", "Application Support", "macOS Utilities", propertyListName+".plist"), nil
}

// DefaultExportDir returns the user's Downloads folder.
func DefaultExportDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot find home folder: %w", err)
	}

	return filepath.Join(home, "Downloads"), nil
}

// Loader owns the running preferences and the file they are stored in.
type Loader struct {
	path string
	bus  *notify.Bus

	mu      sync.RWMutex
	current *Preferences
	// running is the document last loaded or saved, used to skip saving unchanged preferences.
	running *Preferences
}

// NewLoader creates a loader for the preference file at path. bus may be nil.
func NewLoader(path string, bus *notify.Bus) *Loader {
	return &Loader{path: path, bus: bus}
}

// Path returns the preference file path.
func (l *Loader) Path() string {
	return l.path
}

func (l *Loader) publish(topic notify.Topic, payload interface{}) {
	if l.bus != nil {
		l.bus.Publish(topic, payload)
	}
}

// Load reads the preference file. A missing or undecodable file is logged and the defaults are used instead.
func (l *Loader) Load() *Preferences {
	prefs, err := decodeFile(l.path)
	if err != nil {
		logrus.WithError(err).WithField("path", l.path).Warn("Could not load preferences, using defaults")
		prefs = Default()
	}

	l.mu.Lock()
	l.current = prefs
	l.running = prefs.Clone()
	l.mu.Unlock()

	logrus.WithField("path", l.path).Debug("Preferences loaded")
	l.publish(notify.PreferencesLoaded, prefs.Clone())

	return prefs.Clone()
}

// Current returns a copy of the running preferences, loading them first if needed.
func (l *Loader) Current() *Preferences {
	l.mu.RLock()
	current := l.current
	l.mu.RUnlock()

	if current == nil {
		return l.Load()
	}

	return current.Clone()
}

// IsDifferentFromRunning reports whether p differs from the preferences last loaded or saved.
func (l *Loader) IsDifferentFromRunning(p *Preferences) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.running == nil {
		return true
	}

	return !p.Equal(l.running)
}

// Save writes p as an XML property list when it differs from the running preferences. With reload set, p
// becomes the running preferences and PreferencesLoaded is published, otherwise PreferencesUpdated is published.
// It reports whether the file was written.
func (l *Loader) Save(p *Preferences, reload bool) (bool, error) {
	if !l.IsDifferentFromRunning(p) {
		logrus.Debug("Preferences unchanged, not saving")
		return false, nil
	}

	if logrus.IsLevelEnabled(logrus.DebugLevel) {
		l.mu.RLock()
		logrus.WithField("diff", p.Diff(l.running)).Debug("Preferences changed")
		l.mu.RUnlock()
	}

	if err := writeFile(l.path, p); err != nil {
		return false, err
	}
	logrus.WithField("path", l.path).Info("Saved preferences")

	l.mu.Lock()
	l.running = p.Clone()
	if reload {
		l.current = p.Clone()
	}
	l.mu.Unlock()

	if reload {
		l.publish(notify.PreferencesLoaded, p.Clone())
	} else {
		l.publish(notify.PreferencesUpdated, p.Clone())
	}

	return true, nil
}

// Export writes p to dir as name.utilconf, with spaces in name replaced by dashes. It returns the written path.
func (l *Loader) Export(p *Preferences, dir, name string) (string, error) {
	if dir == "" {
		var err error
		if dir, err = DefaultExportDir(); err != nil {
			return "", err
		}
	}

	fileName := strings.ReplaceAll(strings.TrimSpace(name), " ", "-")
	if fileName == "" {
		fileName = propertyListName
	}
	path := filepath.Join(dir, fileName+exportExtension)

	if err := writeFile(path, p); err != nil {
		return "", err
	}
	logrus.WithField("path", path).Info("Exported preferences")

	return path, nil
}

// Import reads preferences from path, drops mapped applications without an application bundle path and saves
// them as the running preferences. With updatingRunning set, subscribers are told the running preferences were
// updated instead of reloaded.
func (l *Loader) Import(path string, updatingRunning bool) (*Preferences, error) {
	prefs, err := decodeFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot import preferences: %w", err)
	}
	prefs.dropInvalidApplications()

	if _, err := l.Save(prefs, !updatingRunning); err != nil {
		return nil, err
	}

	l.mu.Lock()
	l.current = prefs.Clone()
	l.mu.Unlock()

	logrus.WithField("path", path).Info("Imported preferences")

	return prefs.Clone(), nil
}

// Decode reads preferences from a property list document.
func Decode(data []byte) (*Preferences, error) {
	prefs := &Preferences{}
	if _, err := plist.Unmarshal(data, prefs); err != nil {
		return nil, fmt.Errorf("cannot decode preferences: %w", err)
	}
	if prefs.ConfigurationVersion == "" {
		return nil, fmt.Errorf("cannot decode preferences: missing configuration version")
	}

	return prefs, nil
}

// Encode renders preferences as an XML property list.
func Encode(p *Preferences) ([]byte, error) {
	var buf bytes.Buffer
	encoder := plist.NewEncoderForFormat(&buf, plist.XMLFormat)
	encoder.Indent("\t")
	if err := encoder.Encode(p); err != nil {
		return nil, fmt.Errorf("cannot encode preferences: %w", err)
	}

	return buf.Bytes(), nil
}

func decodeFile(path string) (*Preferences, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	return Decode(data)
}

func writeFile(path string, p *Preferences) error {
	data, err := Encode(p)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("cannot create preferences folder: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("cannot save preferences to %s: %w", path, err)
	}

	return nil
}
