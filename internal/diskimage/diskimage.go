// Package diskimage mounts installer disk images and keeps track of the ones it mounted.
package diskimage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/er2/macos-utilities/internal/diskutil"
	"github.com/er2/macos-utilities/internal/diskutil/types"
	"github.com/er2/macos-utilities/internal/notify"

	"github.com/sirupsen/logrus"
)

const (
	imageExtension = ".dmg"
	// ejectedMarker is printed by diskutil once a device was ejected.
	ejectedMarker = "ejected"
)

// ErrNotDiskImage is returned for paths that are not disk images.
var ErrNotDiskImage = errors.New("not a disk image")

// Manager mounts disk images and caches the mounted images by equality.
type Manager struct {
	du  diskutil.DiskUtil
	bus *notify.Bus

	mu     sync.Mutex
	images []types.DiskImage
}

// NewManager creates a manager mounting through du. bus may be nil.
func NewManager(du diskutil.DiskUtil, bus *notify.Bus) *Manager {
	return &Manager{du: du, bus: bus}
}

func (m *Manager) publish(topic notify.Topic, payload interface{}) {
	if m.bus != nil {
		m.bus.Publish(topic, payload)
	}
}

// Mount attaches the disk image at path and returns its mountable volume.
func (m *Manager) Mount(ctx context.Context, path string) (types.DiskImage, error) {
	if !strings.Contains(path, imageExtension) {
		return types.DiskImage{}, fmt.Errorf("%s: %w", path, ErrNotDiskImage)
	}

	logrus.WithField("path", path).Info("Mounting disk image")
	result, err := m.du.MountImage(ctx, path)
	if err != nil {
		return types.DiskImage{}, fmt.Errorf("could not mount %s: %w", path, err)
	}

	image, ok := result.MountableDiskImage()
	if !ok {
		return types.DiskImage{}, fmt.Errorf("could not mount %s: no mountable volume", path)
	}

	m.mu.Lock()
	known := false
	for _, cached := range m.images {
		if cached.Equal(image) {
			known = true
			break
		}
	}
	if !known {
		m.images = append(m.images, image)
	}
	m.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"dev_entry":   image.DevEntry,
		"mount_point": image.MountPoint,
	}).Info("Mounted disk image")
	m.publish(notify.DiskImageMounted, image)

	return image, nil
}

// MountAll mounts every disk image in folder. Images that fail to mount are logged and skipped.
func (m *Manager) MountAll(ctx context.Context, folder string) ([]types.DiskImage, error) {
	entries, err := os.ReadDir(folder)
	if err != nil {
		return nil, fmt.Errorf("unable to list %s: %w", folder, err)
	}

	var mounted []types.DiskImage
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != imageExtension {
			continue
		}

		image, err := m.Mount(ctx, filepath.Join(folder, entry.Name()))
		if err != nil {
			logrus.WithError(err).WithField("image", entry.Name()).Error("Disk image could not be mounted")
			continue
		}
		mounted = append(mounted, image)
	}

	return mounted, nil
}

// Eject ejects a mounted disk image and forgets it along with any cached image that is no longer mounted.
func (m *Manager) Eject(ctx context.Context, image types.DiskImage) error {
	if image.DevEntry == "" {
		return fmt.Errorf("disk image has no device entry")
	}

	logrus.WithField("dev_entry", image.DevEntry).Debug("Ejecting disk image")
	out, err := m.du.Eject(ctx, image.DevEntry)
	if errors.Is(err, diskutil.ErrReadOnly) {
		logrus.WithError(err).WithField("dev_entry", image.DevEntry).Warn("Would have ejected disk image")
		return nil
	} else if err != nil {
		return fmt.Errorf("unable to eject %s: %w", image.DevEntry, err)
	}
	if !strings.Contains(out, ejectedMarker) {
		return fmt.Errorf("unable to eject %s: %s", image.DevEntry, strings.TrimSpace(out))
	}

	m.mu.Lock()
	kept := m.images[:0]
	for _, cached := range m.images {
		if !cached.Equal(image) && cached.IsMounted() {
			kept = append(kept, cached)
		}
	}
	m.images = kept
	m.mu.Unlock()

	logrus.WithField("dev_entry", image.DevEntry).Info("Ejected disk image")
	m.publish(notify.DiskImageUnmounted, image)

	return nil
}

// EjectAll ejects every cached disk image, returning the failures together.
func (m *Manager) EjectAll(ctx context.Context) error {
	var errs []error
	for _, image := range m.Images() {
		if err := m.Eject(ctx, image); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// Images returns the cached disk images.
func (m *Manager) Images() []types.DiskImage {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]types.DiskImage(nil), m.images...)
}

// AllUnmounted reports whether no mounted disk image is cached.
func (m *Manager) AllUnmounted() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.images) == 0
}
