// Package volumes follows volumes being mounted and unmounted and keeps the repository in step.
package volumes

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/er2/macos-utilities/internal/app"
	"github.com/er2/macos-utilities/internal/repository"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// Watcher watches the volumes folder. Installer volumes appearing trigger an installer scan and disappearing ones
// remove their installer. Any other volume change triggers a disk rescan.
type Watcher struct {
	dir      string
	reloader *repository.Reloader

	watcher *fsnotify.Watcher

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewWatcher creates a watcher for dir, defaulting to the reloader's volumes folder when dir is empty.
func NewWatcher(dir string, reloader *repository.Reloader) (*Watcher, error) {
	if dir == "" {
		dir = reloader.VolumesDir
	}
	if dir == "" {
		dir = repository.DefaultVolumesDir
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("cannot create volume watcher: %w", err)
	}

	return &Watcher{
		dir:      dir,
		reloader: reloader,
		watcher:  watcher,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// Start begins watching without blocking.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return nil
	}
	if err := w.watcher.Add(w.dir); err != nil {
		return fmt.Errorf("cannot watch %s: %w", w.dir, err)
	}
	w.running = true

	logrus.WithField("dir", w.dir).Debug("Watching volumes")
	go w.run(ctx)

	return nil
}

// Stop stops watching and waits for the event loop to exit.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		if err := w.watcher.Close(); err != nil {
			logrus.WithError(err).Debug("Error closing volume watcher")
		}
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh

	if err := w.watcher.Close(); err != nil {
		logrus.WithError(err).Debug("Error closing volume watcher")
	}
	logrus.Debug("Volume watcher stopped")
}

// Done is closed once the event loop exited.
func (w *Watcher) Done() <-chan struct{} {
	return w.doneCh
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(ctx, event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logrus.WithError(err).Error("Volume watcher error")
		}
	}
}

func (w *Watcher) handleEvent(ctx context.Context, event fsnotify.Event) {
	name := filepath.Base(event.Name)
	logger := logrus.WithFields(logrus.Fields{
		"volume": name,
		"op":     event.Op.String(),
	})

	switch {
	case event.Op&fsnotify.Create != 0:
		logger.Info("Volume mounted")
		w.didMount(ctx, name)
	case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		logger.Info("Volume unmounted")
		w.didUnmount(ctx, name)
	}
}

func (w *Watcher) didMount(ctx context.Context, name string) {
	if repository.IsInstallerVolume(name) {
		if err := w.reloader.ScanInstallers(ctx); err != nil {
			logrus.WithError(err).Error("Could not scan for mounted installers")
		}
		return
	}

	w.rescanDisks(ctx)
}

func (w *Watcher) didUnmount(ctx context.Context, name string) {
	if repository.IsInstallerVolume(name) {
		versionName := app.InstallerVersionName(name)
		if !w.reloader.Registry.RemoveInstaller(versionName) {
			logrus.WithField("version", versionName).Debug("Could not find installer to remove")
		}
		return
	}

	for _, disk := range w.reloader.Registry.Disks() {
		if part, ok := disk.InstallablePartition(); ok && part.Name() == name {
			return
		}
	}
	w.rescanDisks(ctx)
}

func (w *Watcher) rescanDisks(ctx context.Context) {
	if err := w.reloader.ReloadDisks(ctx); err != nil {
		logrus.WithError(err).Error("Could not rescan disks")
	}
}
