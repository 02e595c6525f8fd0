package types

import "fmt"

// ShareTypeNFS identifies shares mounted over NFS.
const ShareTypeNFS = "NFS"

// Share is a network file system mounted locally to serve installer disk images.
type Share struct {
	Type       string `yaml:"type"`
	MountPoint string `yaml:"mount_point"`
}

// ID derives the share's identity from its type and mount point.
func (s Share) ID() string {
	return HashID(fmt.Sprintf("%s-%s", s.Type, s.MountPoint))
}

// Equal reports whether both shares have the same type and mount point.
func (s Share) Equal(other Share) bool {
	return s.Type == other.Type && s.MountPoint == other.MountPoint
}
