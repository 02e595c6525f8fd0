package diskutil

import (
	"embed"
	"errors"
	"path"
	"strings"
	"testing"

	"github.com/er2/macos-utilities/internal/diskutil/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

//go:embed testdata/parser
var testDataFS embed.FS

const testDataDir = "testdata/parser"

func readTestData(t *testing.T, name string) string {
	t.Helper()

	read, err := testDataFS.ReadFile(path.Join(testDataDir, name))
	require.NoError(t, err)

	return string(read)
}

func TestPlistParser_ParseList(t *testing.T) {
	tests := []struct {
		name     string
		fileName string
		raw      string
		wantErr  bool
	}{
		{
			name:     "Good case: properly formatted input",
			fileName: "list-good.plist",
		},
		{
			name:     "Bad case: truncated input",
			fileName: "list-bad.plist",
			wantErr:  true,
		},
		{
			name:     "Bad case: disk without a device identifier",
			fileName: "list-missing-id.plist",
			wantErr:  true,
		},
		{
			name:    "Bad case: empty input",
			raw:     "",
			wantErr: true,
		},
		{
			name:    "Bad case: garbage input",
			raw:     "abcdefghijklmnopqrstuvwxyz",
			wantErr: true,
		},
		{
			name:    "Bad case: info output given to the list parser",
			raw:     `<?xml version="1.0"?><plist version="1.0"><dict><key>DeviceIdentifier</key><string>disk0</string></dict></plist>`,
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := tt.raw
			if tt.fileName != "" {
				input = readTestData(t, tt.fileName)
			}

			got, err := ParseList(&PlistParser{}, input)
			if tt.wantErr {
				var parseErr *ParseFailedError
				assert.True(t, errors.As(err, &parseErr), "expected a ParseFailedError, got %v", err)
				assert.Equal(t, input, parseErr.Raw, "the raw output should be kept for logging")
				assert.Nil(t, got)
				return
			}
			require.NoError(t, err)

			assert.Equal(t, []string{"disk0", "disk1"}, got.WholeDisks)
			require.Len(t, got.Disks(), 2)

			disk0 := got.Disks()[0]
			assert.Equal(t, "disk0", disk0.DeviceIdentifier)
			assert.Equal(t, types.ContentGUIDScheme, disk0.Content)
			assert.Equal(t, types.Size(500277790720), disk0.Size)
			assert.Len(t, disk0.Partitions, 2)
			assert.False(t, disk0.IsAPFS())
			_, ok := disk0.InstallablePartition()
			assert.False(t, ok, "neither the EFI partition nor the APFS container are installable")

			disk1 := got.Disks()[1]
			assert.True(t, disk1.IsAPFS())
			assert.Len(t, disk1.APFSVolumes, 2)
			assert.Equal(t, "Macintosh HD", disk1.VolumeName())
		})
	}
}

func TestPlistParser_ParseInfo(t *testing.T) {
	got, err := ParseInfo(&PlistParser{}, readTestData(t, "info-good.plist"))
	require.NoError(t, err)

	assert.Equal(t, &types.DiskInfo{
		BusProtocol:         "SATA",
		Content:             types.ContentGUIDScheme,
		DeviceIdentifier:    "disk0",
		DeviceNode:          "/dev/disk0",
		IORegistryEntryName: "APPLE SSD SM0128F Media",
		Internal:            true,
		MediaName:           "APPLE SSD SM0128F",
		ParentWholeDisk:     "disk0",
		SMARTStatus:         "Verified",
		Size:                121332826112,
		SolidState:          true,
		VirtualOrPhysical:   "Physical",
		WholeDisk:           true,
	}, got)
	assert.True(t, got.PotentialFusionDriveHalf())

	_, err = ParseInfo(&PlistParser{}, readTestData(t, "info-bad.plist"))
	var parseErr *ParseFailedError
	assert.True(t, errors.As(err, &parseErr), "truncated info should fail to parse")
}

func TestPlistParser_ParseCoreStorageList(t *testing.T) {
	got, err := ParseCoreStorageList(&PlistParser{}, readTestData(t, "cslist-good.plist"))
	require.NoError(t, err)

	assert.Equal(t, []types.LogicalVolumeGroup{
		{Role: "LVG", UUID: "0A1B2C3D-4E5F-6789-ABCD-EF0123456789"},
	}, got.LogicalVolumeGroups)
}

func TestPlistParser_ParseCoreStorageList_NoGroups(t *testing.T) {
	const noGroups = `<?xml version="1.0" encoding="UTF-8"?>
<plist version="1.0">
<dict>
	<key>CoreStorageLogicalVolumeGroups</key>
	<array/>
</dict>
</plist>
`
	got, err := ParseCoreStorageList(&PlistParser{}, noGroups)
	require.NoError(t, err)

	assert.Empty(t, got.LogicalVolumeGroups)
}

func TestPlistParser_ParseCoreStorageList_Unexpected(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{name: "missing key", raw: readTestData(t, "info-good.plist")},
		{name: "empty dict", raw: "<plist version=\"1.0\"><dict/></plist>"},
		{name: "openstep dict", raw: "{}"},
		{name: "byte order mark only", raw: "\xff\xfe"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseCoreStorageList(&PlistParser{}, tt.raw)

			var parseErr *ParseFailedError
			assert.True(t, errors.As(err, &parseErr), "got %v", err)
			assert.Nil(t, got)
		})
	}
}

func TestPlistParser_ParseMount(t *testing.T) {
	got, err := ParseMount(&PlistParser{}, readTestData(t, "mount-good.plist"))
	require.NoError(t, err)

	assert.Len(t, got.DiskImages, 2)
	mountable, ok := got.MountableDiskImage()
	require.True(t, ok)
	assert.Equal(t, got.DiskImages[1], mountable)
	assert.Equal(t, "/dev/disk4s1", mountable.DevEntry)
	assert.Equal(t, "Install macOS Catalina", mountable.VolumeName())

	_, err = ParseMount(&PlistParser{}, readTestData(t, "mount-missing-entities.plist"))
	var parseErr *ParseFailedError
	assert.True(t, errors.As(err, &parseErr), "mount output without system entities should fail")
}

func TestPlistParser_Dispatch(t *testing.T) {
	p := &PlistParser{}

	_, err := p.Parse("", InvalidTool, ListOutput)
	assert.ErrorIs(t, err, ErrInvalidOutputTool)

	_, err = p.Parse("", ToolType(42), ListOutput)
	assert.ErrorIs(t, err, ErrInvalidOutputTool)

	_, err = p.Parse("", HDIUtilTool, ListOutput)
	var invalidOutput *InvalidOutputError
	if assert.True(t, errors.As(err, &invalidOutput)) {
		assert.Equal(t, HDIUtilTool, invalidOutput.Tool)
		assert.Equal(t, ListOutput, invalidOutput.Output)
	}

	_, err = p.Parse("", DiskUtilityTool, MountOutput)
	assert.True(t, errors.As(err, &invalidOutput))
}

func TestPlistParser_TruncatedNeverPanics(t *testing.T) {
	sources := []struct {
		tool   ToolType
		output OutputType
		raw    string
	}{
		{DiskUtilityTool, ListOutput, readTestData(t, "list-good.plist")},
		{DiskUtilityTool, InfoOutput, readTestData(t, "info-good.plist")},
		{DiskUtilityTool, CoreStorageListOutput, readTestData(t, "cslist-good.plist")},
		{HDIUtilTool, MountOutput, readTestData(t, "mount-good.plist")},
	}
	for _, src := range sources {
		beforeEnd := strings.LastIndex(src.raw, "</plist>")
		require.Positive(t, beforeEnd)

		for _, cut := range []int{1, len(src.raw) / 3, len(src.raw) / 2, len(src.raw) - 20, beforeEnd} {
			assert.NotPanics(t, func() {
				_, err := (&PlistParser{}).Parse(src.raw[:cut], src.tool, src.output)

				var parseErr *ParseFailedError
				assert.True(t, errors.As(err, &parseErr), "truncated %s output at %d should fail", src.output, cut)
			})
		}

		_, err := (&PlistParser{}).Parse(src.raw, src.tool, src.output)
		assert.NoError(t, err, "complete %s output", src.output)
	}
}
