// Package share mounts the NFS server installer disk images are served from.
package share

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/er2/macos-utilities/internal/diskutil"
	"github.com/er2/macos-utilities/internal/diskutil/types"
	"github.com/er2/macos-utilities/internal/preferences"
	"github.com/er2/macos-utilities/internal/repository"
	"github.com/er2/macos-utilities/internal/util"

	"github.com/sirupsen/logrus"
)

// DefaultMountTimeout bounds how long mount may take before the server is considered unreachable.
const DefaultMountTimeout = 3 * time.Second

var (
	// mountFailureWords appear in mount's output when mounting failed.
	mountFailureWords = []string{"can't", "denied", "error", "killed"}
	// unmountMarkers are printed by diskutil once it is done with a share, whether or not the unmount worked.
	unmountMarkers = []string{"Unmount successful for", "Unmount failed for"}
)

// ErrNotMountable is returned when the server preferences are incomplete.
var ErrNotMountable = errors.New("installer server is not configured")

// Manager mounts installer server shares and records them in the registry.
type Manager struct {
	Registry *repository.Registry
	DiskUtil diskutil.DiskUtil
	Runner   util.Runner
	// Timeout defaults to DefaultMountTimeout.
	Timeout time.Duration
}

func (m *Manager) timeout() time.Duration {
	if m.Timeout <= 0 {
		return DefaultMountTimeout
	}

	return m.Timeout
}

// Mount mounts the server at its configured mount path. A mount path that already exists and holds disk images is
// reused without mounting again.
func (m *Manager) Mount(ctx context.Context, server *preferences.InstallerServerPreferences) (types.Share, error) {
	if server == nil || !server.Mountable() {
		return types.Share{}, ErrNotMountable
	}

	localPath := server.MountPath
	share := types.Share{Type: types.ShareTypeNFS, MountPoint: localPath}
	logger := logrus.WithFields(logrus.Fields{
		"share":      server.ShareURL(),
		"mount_path": localPath,
	})

	existed, err := createMountPath(localPath)
	if err != nil {
		return types.Share{}, err
	}
	if existed && holdsDiskImages(localPath) {
		logger.Debug("Adding existing share")
		m.Registry.AddShare(share)
		return share, nil
	}

	ctx, cancel := context.WithTimeout(ctx, m.timeout())
	defer cancel()

	out, err := m.Runner.Run(ctx, []string{"/sbin/mount", "-t", "nfs", server.ShareURL(), localPath}, "")
	output := out.Combined()
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || strings.Contains(output, "killed") {
		logger.Error("Mounting NFS share timed out, check the hostname, path or local mount point")
		return types.Share{}, fmt.Errorf("mounting NFS share %s at %s timed out after %s", server.ShareURL(), localPath, m.timeout())
	}
	if failed(output) {
		return types.Share{}, fmt.Errorf("mounting NFS share %s at %s failed: %s", server.ShareURL(), localPath, strings.TrimSpace(output))
	}
	if err != nil {
		return types.Share{}, fmt.Errorf("mounting NFS share %s at %s failed: %w", server.ShareURL(), localPath, err)
	}

	logger.Info("Mounted NFS share")
	m.Registry.AddShare(share)

	return share, nil
}

// EjectAll force unmounts every recorded share. Shares diskutil finished with are forgotten even when the unmount
// failed.
func (m *Manager) EjectAll(ctx context.Context) error {
	var errs []error
	for _, share := range m.Registry.Shares() {
		out, err := m.DiskUtil.Unmount(ctx, share.MountPoint, true)
		if errors.Is(err, diskutil.ErrReadOnly) {
			logrus.WithError(err).WithField("mount_point", share.MountPoint).Warn("Would have unmounted share")
			continue
		}

		if finished(out) {
			m.Registry.RemoveShare(share)
			logrus.WithField("mount_point", share.MountPoint).Info("Unmounted share")
			continue
		}
		if err == nil {
			err = fmt.Errorf("unexpected output: %s", strings.TrimSpace(out))
		}
		errs = append(errs, fmt.Errorf("unable to unmount %s: %w", share.MountPoint, err))
	}

	return errors.Join(errs...)
}

func failed(output string) bool {
	for _, word := range mountFailureWords {
		if strings.Contains(output, word) {
			return true
		}
	}

	return false
}

func finished(output string) bool {
	for _, marker := range unmountMarkers {
		if strings.Contains(output, marker) {
			return true
		}
	}

	return false
}

// createMountPath creates the mount path and reports whether it already existed.
func createMountPath(path string) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return true, nil
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return false, fmt.Errorf("unable to create mount path %s: %w", path, err)
	}

	return false, nil
}

func holdsDiskImages(path string) bool {
	entries, err := os.ReadDir(path)
	if err != nil {
		return false
	}
	for _, entry := range entries {
		if filepath.Ext(entry.Name()) == ".dmg" {
			return true
		}
	}

	return false
}
