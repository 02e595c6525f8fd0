// Package repository keeps track of everything the utilities discovered on the machine: applications, utilities,
// installers, disks and shares.
package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/er2/macos-utilities/internal/app"
	"github.com/er2/macos-utilities/internal/compat"
	"github.com/er2/macos-utilities/internal/diskutil/types"
	"github.com/er2/macos-utilities/internal/notify"
	"github.com/er2/macos-utilities/internal/util"

	"github.com/sirupsen/logrus"
)

// ErrNotRegistered is returned for items the registry does not hold.
var ErrNotRegistered = errors.New("item is not registered")

// Registry is the in-memory store of discovered items. Items are unique by ID. Every change is published on the
// registry's bus after the registry lock is released, so subscribers may call back into the registry.
type Registry struct {
	bus *notify.Bus

	mu         sync.RWMutex
	items      []*app.Application
	selectedID string

	generation uint64
	applied    uint64
	disks      []types.Disk
	fakeDisks  []types.Disk

	shares []types.Share
}

// New creates an empty registry publishing on bus. A new bus is created when bus is nil.
func New(bus *notify.Bus) *Registry {
	if bus == nil {
		bus = notify.NewBus()
	}

	return &Registry{bus: bus}
}

// Bus returns the bus the registry publishes on.
func (r *Registry) Bus() *notify.Bus {
	return r.bus
}

func (r *Registry) indexOf(id string) int {
	for i, item := range r.items {
		if item.ID() == id {
			return i
		}
	}

	return -1
}

// Register adds item unless an item with the same ID is already registered. It reports whether the item was
// added.
func (r *Registry) Register(item *app.Application) bool {
	r.mu.Lock()
	if r.indexOf(item.ID()) >= 0 {
		r.mu.Unlock()
		return false
	}
	r.items = append(r.items, item)
	r.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"role": item.Role,
		"name": item.Name,
	}).Info("Adding item to repository")

	switch item.Role {
	case app.RoleApplication:
		r.bus.Publish(notify.NewApplication, item)
	case app.RoleUtility:
		r.bus.Publish(notify.NewUtility, item)
	case app.RoleInstaller:
		r.bus.Publish(notify.NewInstaller, item)
	}

	return true
}

// RegisterAll registers every item. With merge set, items already registered are dropped before registering.
// Newly added applications are also published together. It returns the number of items added.
func (r *Registry) RegisterAll(items []*app.Application, merge bool) int {
	if merge {
		fresh := make([]*app.Application, 0, len(items))
		for _, item := range items {
			if !r.Contains(item) {
				fresh = append(fresh, item)
			}
		}
		items = fresh
	}

	var added []*app.Application
	for _, item := range items {
		if r.Register(item) {
			added = append(added, item)
		}
	}

	if len(added) > 0 && added[0].Role == app.RoleApplication {
		r.bus.Publish(notify.NewApplications, added)
	}

	return len(added)
}

// Unregister removes item. It reports whether the item was registered.
func (r *Registry) Unregister(item *app.Application) bool {
	r.mu.Lock()
	i := r.indexOf(item.ID())
	if i < 0 {
		r.mu.Unlock()
		return false
	}
	removed := r.items[i]
	r.items = append(r.items[:i:i], r.items[i+1:]...)
	if r.selectedID == removed.ID() {
		r.selectedID = ""
	}
	r.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"role": removed.Role,
		"name": removed.Name,
	}).Info("Removing item from repository")

	if removed.Role == app.RoleInstaller {
		r.bus.Publish(notify.RemoveInstaller, removed)
	} else {
		r.bus.Publish(notify.RemoveApplication, removed)
		r.bus.Publish(notify.ReloadApplications, nil)
	}

	return true
}

// RemoveInstaller unregisters the installer for the version name, e.g. "macOS Mojave".
func (r *Registry) RemoveInstaller(versionName string) bool {
	for _, installer := range r.Installers() {
		if installer.Installer.Version().Name == versionName {
			return r.Unregister(installer)
		}
	}

	return false
}

// Contains reports whether an item with the same ID as item is registered.
func (r *Registry) Contains(item *app.Application) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.indexOf(item.ID()) >= 0
}

// Items returns every registered item in registration order.
func (r *Registry) Items() []*app.Application {
	r.mu.RLock()
	defer r.mu.RUnlock()

	items := make([]*app.Application, len(r.items))
	copy(items, r.items)

	return items
}

func (r *Registry) withRole(role app.Role) []*app.Application {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var items []*app.Application
	for _, item := range r.items {
		if item.Role == role {
			items = append(items, item)
		}
	}

	return items
}

// Applications returns the mapped applications.
func (r *Registry) Applications() []*app.Application {
	return r.withRole(app.RoleApplication)
}

// AllowedApplications returns the mapped applications shown in the applications window.
func (r *Registry) AllowedApplications() []*app.Application {
	var allowed []*app.Application
	for _, a := range r.Applications() {
		if a.ShowInApplicationsWindow {
			allowed = append(allowed, a)
		}
	}

	return allowed
}

// Utilities returns the bundled utilities.
func (r *Registry) Utilities() []*app.Application {
	return r.withRole(app.RoleUtility)
}

// Installers returns the installers, oldest version first, with fake installers last.
func (r *Registry) Installers() []*app.Application {
	installers := r.withRole(app.RoleInstaller)
	sort.SliceStable(installers, func(i, j int) bool {
		a, b := installers[i].Installer, installers[j].Installer
		if a.Fake != b.Fake {
			return !a.Fake
		}

		return a.SortNumber() < b.SortNumber()
	})

	return installers
}

// Has reports whether any item with the role is registered.
func (r *Registry) Has(role app.Role) bool {
	return len(r.withRole(role)) > 0
}

// Find returns the item named name.
func (r *Registry) Find(name string) (*app.Application, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, item := range r.items {
		if item.Name == name {
			return item, true
		}
	}

	return nil, false
}

// Open launches the item named name.
func (r *Registry) Open(ctx context.Context, name string, runner util.Runner) error {
	item, ok := r.Find(name)
	if !ok {
		return fmt.Errorf("cannot open %q: %w", name, ErrNotRegistered)
	}

	return item.Open(ctx, runner)
}

// SetSelectedInstaller clears any previous selection and selects installer. At most one installer is selected.
func (r *Registry) SetSelectedInstaller(installer *app.Application) error {
	if !installer.IsInstaller() {
		return fmt.Errorf("%s is not an installer", installer.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.indexOf(installer.ID()) < 0 {
		return fmt.Errorf("cannot select %s: %w", installer.Name, ErrNotRegistered)
	}
	r.selectedID = installer.ID()

	return nil
}

// UnsetAllSelectedInstallers clears the installer selection.
func (r *Registry) UnsetAllSelectedInstallers() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.selectedID = ""
}

// SelectedInstaller returns the selected installer.
func (r *Registry) SelectedInstaller() (*app.Application, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.selectedID == "" {
		return nil, false
	}
	if i := r.indexOf(r.selectedID); i >= 0 {
		return r.items[i], true
	}

	return nil, false
}

// IsSelected reports whether installer is the selected installer.
func (r *Registry) IsSelected(installer *app.Application) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.selectedID != "" && r.selectedID == installer.ID()
}

// UpdateAllowedVersions hands a new allow-list to every registered installer after the machine context changed.
func (r *Registry) UpdateAllowedVersions(allowed []compat.Version) {
	for _, installer := range r.Installers() {
		installer.Installer.InvalidateCanInstall(allowed)
	}
}

// BeginScan starts a disk scan and returns its generation, which ApplyDisks uses to discard results of scans that
// were overtaken by a newer one.
func (r *Registry) BeginScan() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.generation++

	return r.generation
}

// ApplyDisks replaces the disk snapshot with the result of the scan generation. Results from a scan older than
// the snapshot already applied are discarded. Fake disks the scan does not carry are kept at the end of the
// snapshot. It reports whether the disks were applied.
func (r *Registry) ApplyDisks(generation uint64, disks []types.Disk) bool {
	r.mu.Lock()
	if generation < r.applied || generation > r.generation {
		r.mu.Unlock()
		logrus.WithFields(logrus.Fields{
			"generation": generation,
			"applied":    r.applied,
		}).Debug("Discarding stale disk scan")
		return false
	}
	r.applied = generation
	r.disks = withFakes(disks, r.fakeDisks)
	snapshot := r.copyDisks()
	r.mu.Unlock()

	r.bus.Publish(notify.NewDisks, snapshot)

	return true
}

// withFakes copies disks and appends the fakes missing from it.
func withFakes(disks, fakes []types.Disk) []types.Disk {
	merged := append([]types.Disk(nil), disks...)
	for _, fake := range fakes {
		found := false
		for _, d := range disks {
			if d.DeviceIdentifier == fake.DeviceIdentifier {
				found = true
				break
			}
		}
		if !found {
			merged = append(merged, fake)
		}
	}

	return merged
}

func (r *Registry) copyDisks() []types.Disk {
	return append([]types.Disk(nil), r.disks...)
}

// Disks returns the latest disk snapshot.
func (r *Registry) Disks() []types.Disk {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.copyDisks()
}

// InstallableDisks returns the disks with a partition an installer can target.
func (r *Registry) InstallableDisks() []types.Disk {
	var disks []types.Disk
	for _, d := range r.Disks() {
		if _, ok := d.InstallablePartition(); ok {
			disks = append(disks, d)
		}
	}

	return disks
}

// MountedDisks returns the disks with at least one mounted partition.
func (r *Registry) MountedDisks() []types.Disk {
	var disks []types.Disk
	for _, d := range r.Disks() {
		if len(d.MountedPartitions()) > 0 {
			disks = append(disks, d)
		}
	}

	return disks
}

// AddShare records a mounted share. It reports whether the share was new.
func (r *Registry) AddShare(share types.Share) bool {
	r.mu.Lock()
	for _, s := range r.shares {
		if s.Equal(share) {
			r.mu.Unlock()
			return false
		}
	}
	r.shares = append(r.shares, share)
	shares := append([]types.Share(nil), r.shares...)
	r.mu.Unlock()

	r.bus.Publish(notify.NewShares, shares)

	return true
}

// RemoveShare forgets a share. It reports whether the share was known.
func (r *Registry) RemoveShare(share types.Share) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, s := range r.shares {
		if s.Equal(share) {
			r.shares = append(r.shares[:i:i], r.shares[i+1:]...)
			return true
		}
	}

	return false
}

// Shares returns the mounted shares.
func (r *Registry) Shares() []types.Share {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return append([]types.Share(nil), r.shares...)
}
