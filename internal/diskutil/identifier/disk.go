// Package identifier extracts device identifiers from user input such as "disk2", "/dev/disk2s1" or "rdisk2".
package identifier

import (
	"regexp"
	"strings"
)

var (
	// diskIDExp is the regexp expression for device identifiers.
	diskIDExp = regexp.MustCompile("disk[0-9]+")
	// partitionIDExp matches identifiers of a slice of a whole disk.
	partitionIDExp = regexp.MustCompile("disk[0-9]+s[0-9]+")
)

// ParseDiskID parses a supported disk identifier from a string.
func ParseDiskID(s string) string {
	if strings.TrimSpace(s) == "" {
		return ""
	}
	return diskIDExp.FindString(s)
}

// ParsePartitionID parses a partition identifier (e.g. disk2s1) from a string. It returns an empty string when s
// names a whole disk.
func ParsePartitionID(s string) string {
	if strings.TrimSpace(s) == "" {
		return ""
	}
	return partitionIDExp.FindString(s)
}
