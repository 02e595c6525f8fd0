// Package diskutil provides the functionality necessary for interacting with macOS's diskutil and hdiutil CLIs.
package diskutil

//go:generate mockgen -destination mocks/mock_diskutil.go github.com/er2/macos-utilities/internal/diskutil DiskUtil

import (
	"context"
	"errors"
	"fmt"

	"github.com/er2/macos-utilities/internal/diskutil/types"
	"github.com/er2/macos-utilities/internal/system"
)

// Erase formats understood by diskutil.
const (
	FormatJHFS = "JHFS+"
	FormatAPFS = "APFS"
)

// ErrReadOnly identifies errors due to dry-run not being able to continue without mutating changes.
var ErrReadOnly = errors.New("read-only mode")

// ErrUnsupportedFormat identifies erase requests for a file system the running release cannot create.
var ErrUnsupportedFormat = errors.New("format not supported on this release")

// DiskUtil outlines the functionality necessary for wrapping macOS's diskutil and hdiutil tools.
type DiskUtil interface {
	// CoreStorage outlines the functionality necessary for wrapping diskutil's "cs" verb.
	CoreStorage
	// DiskImages outlines the functionality necessary for wrapping hdiutil.
	DiskImages
	// Info fetches disk information for the specified device identifier.
	Info(ctx context.Context, id string) (*types.DiskInfo, error)
	// List fetches all disk and partition information for the system.
	// This output will be filtered based on the args provided.
	List(ctx context.Context, args []string) (*types.DiskList, error)
	// Eject ejects the disk with the specified device identifier.
	Eject(ctx context.Context, id string) (string, error)
	// Unmount unmounts the volume at the given mount point.
	Unmount(ctx context.Context, mountPoint string, force bool) (string, error)
	// EraseDisk reformats the whole disk with the given format and volume name.
	// This process requires root access.
	EraseDisk(ctx context.Context, format, name, id string) (string, error)
	// EraseVolume reformats a single volume with the given format and volume name.
	// This process requires root access.
	EraseVolume(ctx context.Context, format, name, id string) (string, error)
}

// CoreStorage outlines the functionality necessary for wrapping diskutil's "cs" verb.
type CoreStorage interface {
	// CoreStorageList fetches the CoreStorage logical volume groups.
	CoreStorageList(ctx context.Context) (*types.CoreStorageList, error)
	// CoreStorageCreate creates a logical volume group from the given device identifiers.
	CoreStorageCreate(ctx context.Context, name string, ids []string) (string, error)
	// CoreStorageCreateVolume creates a logical volume inside the logical volume group.
	CoreStorageCreateVolume(ctx context.Context, groupUUID, format, name, size string) (string, error)
	// CoreStorageDelete deletes the logical volume group.
	CoreStorageDelete(ctx context.Context, groupUUID string) (string, error)
}

// DiskImages outlines the functionality necessary for wrapping hdiutil.
type DiskImages interface {
	// MountImage attaches the disk image at path and returns the attached entities.
	MountImage(ctx context.Context, path string) (*types.MountResult, error)
}

// readonlyWrapper provides a typed implementation for DiskUtil that substitutes mutating
// methods with dryrun alternatives.
type readonlyWrapper struct {
	// impl is the DiskUtil implementation that should have mutating methods substituted for dryrun methods.
	impl DiskUtil
}

func (r readonlyWrapper) Info(ctx context.Context, id string) (*types.DiskInfo, error) {
	return r.impl.Info(ctx, id)
}

func (r readonlyWrapper) List(ctx context.Context, args []string) (*types.DiskList, error) {
	return r.impl.List(ctx, args)
}

func (r readonlyWrapper) CoreStorageList(ctx context.Context) (*types.CoreStorageList, error) {
	return r.impl.CoreStorageList(ctx)
}

func (r readonlyWrapper) Eject(ctx context.Context, id string) (string, error) {
	return "", fmt.Errorf("skip eject: %w", ErrReadOnly)
}

func (r readonlyWrapper) Unmount(ctx context.Context, mountPoint string, force bool) (string, error) {
	return "", fmt.Errorf("skip unmount: %w", ErrReadOnly)
}

func (r readonlyWrapper) EraseDisk(ctx context.Context, format, name, id string) (string, error) {
	return "", fmt.Errorf("skip erase disk: %w", ErrReadOnly)
}

func (r readonlyWrapper) EraseVolume(ctx context.Context, format, name, id string) (string, error) {
	return "", fmt.Errorf("skip erase volume: %w", ErrReadOnly)
}

func (r readonlyWrapper) CoreStorageCreate(ctx context.Context, name string, ids []string) (string, error) {
	return "", fmt.Errorf("skip core storage create: %w", ErrReadOnly)
}

func (r readonlyWrapper) CoreStorageCreateVolume(ctx context.Context, groupUUID, format, name, size string) (string, error) {
	return "", fmt.Errorf("skip core storage create volume: %w", ErrReadOnly)
}

func (r readonlyWrapper) CoreStorageDelete(ctx context.Context, groupUUID string) (string, error) {
	return "", fmt.Errorf("skip core storage delete: %w", ErrReadOnly)
}

func (r readonlyWrapper) MountImage(ctx context.Context, path string) (*types.MountResult, error) {
	return nil, fmt.Errorf("skip mount image: %w", ErrReadOnly)
}

// Type assertion to ensure readonlyWrapper implements the DiskUtil interface.
var _ DiskUtil = (*readonlyWrapper)(nil)

// Dryrun takes a DiskUtil implementation and wraps the mutating methods with dryrun alternatives.
func Dryrun(impl DiskUtil) *readonlyWrapper {
	return &readonlyWrapper{impl}
}

// ForProduct creates a new diskutil controller for the given product.
func ForProduct(p *system.Product) (DiskUtil, error) {
	switch p.Release {
	case system.ElCapitan, system.Sierra:
		return newHFS(p)
	case system.HighSierra, system.Mojave, system.Catalina, system.BigSur, system.Monterey, system.Ventura,
		system.Sonoma, system.Sequoia, system.Tahoe, system.CompatMode:
		return newAPFS(p)
	default:
		return nil, errors.New("unknown release")
	}
}

// newHFS configures the DiskUtil for releases which predate APFS.
func newHFS(p *system.Product) (*diskutilHFS, error) {
	du := &diskutilHFS{
		embeddedDiskutil: &DiskUtilityCmd{},
		images:           &HDIUtilCmd{},
		parser:           &PlistParser{},
	}

	return du, nil
}

// newAPFS configures the DiskUtil for releases able to create APFS volumes.
func newAPFS(p *system.Product) (*diskutilAPFS, error) {
	du := &diskutilAPFS{
		embeddedDiskutil: &DiskUtilityCmd{},
		images:           &HDIUtilCmd{},
		parser:           &PlistParser{},
	}

	return du, nil
}

// embeddedDiskutil is a private interface used to embed UtilImpl into implementation-specific structs.
type embeddedDiskutil interface {
	UtilImpl
}

// diskutilHFS wraps all the functionality necessary for interacting with macOS's diskutil on El Capitan and Sierra.
// These releases cannot create APFS volumes so erase requests for APFS are refused before diskutil is invoked.
type diskutilHFS struct {
	// embeddedDiskutil provides the diskutil implementation to prevent manual wiring between UtilImpl and DiskUtil.
	embeddedDiskutil

	// images is the hdiutil implementation used for mounting disk images.
	images HDIUtilImpl

	// parser is the Parser used to decode the raw output from UtilImpl into usable structs.
	parser Parser
}

func (d *diskutilHFS) List(ctx context.Context, args []string) (*types.DiskList, error) {
	return list(ctx, d.embeddedDiskutil, d.parser, args)
}

func (d *diskutilHFS) Info(ctx context.Context, id string) (*types.DiskInfo, error) {
	return info(ctx, d.embeddedDiskutil, d.parser, id)
}

func (d *diskutilHFS) CoreStorageList(ctx context.Context) (*types.CoreStorageList, error) {
	return coreStorageList(ctx, d.embeddedDiskutil, d.parser)
}

func (d *diskutilHFS) MountImage(ctx context.Context, path string) (*types.MountResult, error) {
	return mountImage(ctx, d.images, d.parser, path)
}

// EraseDisk refuses APFS before handing the request to diskutil.
func (d *diskutilHFS) EraseDisk(ctx context.Context, format, name, id string) (string, error) {
	if format == FormatAPFS {
		return "", fmt.Errorf("cannot erase %s as %s: %w", id, format, ErrUnsupportedFormat)
	}

	return d.embeddedDiskutil.EraseDisk(ctx, format, name, id)
}

// EraseVolume refuses APFS before handing the request to diskutil.
func (d *diskutilHFS) EraseVolume(ctx context.Context, format, name, id string) (string, error) {
	if format == FormatAPFS {
		return "", fmt.Errorf("cannot erase %s as %s: %w", id, format, ErrUnsupportedFormat)
	}

	return d.embeddedDiskutil.EraseVolume(ctx, format, name, id)
}

// diskutilAPFS wraps all the functionality necessary for interacting with macOS's diskutil from High Sierra on.
type diskutilAPFS struct {
	// embeddedDiskutil provides the diskutil implementation to prevent manual wiring between UtilImpl and DiskUtil.
	embeddedDiskutil

	// images is the hdiutil implementation used for mounting disk images.
	images HDIUtilImpl

	// parser is the Parser used to decode the raw output from UtilImpl into usable structs.
	parser Parser
}

func (d *diskutilAPFS) List(ctx context.Context, args []string) (*types.DiskList, error) {
	return list(ctx, d.embeddedDiskutil, d.parser, args)
}

func (d *diskutilAPFS) Info(ctx context.Context, id string) (*types.DiskInfo, error) {
	return info(ctx, d.embeddedDiskutil, d.parser, id)
}

func (d *diskutilAPFS) CoreStorageList(ctx context.Context) (*types.CoreStorageList, error) {
	return coreStorageList(ctx, d.embeddedDiskutil, d.parser)
}

func (d *diskutilAPFS) MountImage(ctx context.Context, path string) (*types.MountResult, error) {
	return mountImage(ctx, d.images, d.parser, path)
}

// info is a wrapper that fetches the raw diskutil info data and decodes it into a usable types.DiskInfo struct.
func info(ctx context.Context, util UtilImpl, parser Parser, id string) (*types.DiskInfo, error) {
	rawDisk, err := util.Info(ctx, id)
	if err != nil {
		return nil, err
	}

	return ParseInfo(parser, rawDisk)
}

// list is a wrapper that fetches the raw diskutil list data and decodes it into a usable types.DiskList struct.
func list(ctx context.Context, util UtilImpl, parser Parser, args []string) (*types.DiskList, error) {
	rawList, err := util.List(ctx, args)
	if err != nil {
		return nil, err
	}

	return ParseList(parser, rawList)
}

// coreStorageList is a wrapper that fetches the raw diskutil cs list data and decodes it.
func coreStorageList(ctx context.Context, util UtilImpl, parser Parser) (*types.CoreStorageList, error) {
	rawList, err := util.CoreStorageList(ctx)
	if err != nil {
		return nil, err
	}

	return ParseCoreStorageList(parser, rawList)
}

// mountImage is a wrapper that mounts a disk image with hdiutil and decodes the attached entities.
func mountImage(ctx context.Context, util HDIUtilImpl, parser Parser, path string) (*types.MountResult, error) {
	rawMount, err := util.Mount(ctx, path)
	if err != nil {
		return nil, err
	}

	return ParseMount(parser, rawMount)
}

// Type assertions to ensure the release-specific implementations satisfy the DiskUtil interface.
var (
	_ DiskUtil = (*diskutilHFS)(nil)
	_ DiskUtil = (*diskutilAPFS)(nil)
)
