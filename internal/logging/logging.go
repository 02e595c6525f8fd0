// Package logging configures where log entries go besides the terminal.
package logging

import (
	"errors"
	"fmt"
	"io"
	"log/syslog"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/er2/macos-utilities/internal/preferences"
	"github.com/er2/macos-utilities/internal/system"

	"github.com/sirupsen/logrus"
	lSyslog "github.com/sirupsen/logrus/hooks/syslog"
)

const (
	nameSeparator = "__"
	debugSuffix   = "__DEBUG__"
	// netBootMarker appears in the host name of machines booted from the network, which all share one name.
	netBootMarker = "NetBoot"
)

// ErrRemoteDisabled is returned when remote logging is not enabled in the preferences.
var ErrRemoteDisabled = errors.New("remote logging is disabled")

// MachineName identifies this machine in remote logs as "host__(model__uuid)". The host is left out when unknown or
// when the machine was booted from the network.
func MachineName(host string, machine *system.Machine, debug bool) string {
	var model, uuid string
	if machine != nil {
		model = machine.ModelIdentifier
		uuid = machine.PlatformUUID
	}

	name := "(" + model + nameSeparator + uuid + ")"
	if host != "" && !strings.Contains(host, netBootMarker) {
		name = host + nameSeparator + name
	}
	if debug {
		name += debugSuffix
	}

	return name
}

// ConfigureFile additionally writes the log to path, creating it and its folder when needed. The returned closer
// closes the file.
func ConfigureFile(logger *logrus.Logger, path string) (io.Closer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("cannot create log folder: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("cannot open log file: %w", err)
	}

	logger.SetOutput(io.MultiWriter(logger.Out, f))
	logger.WithField("path", path).Debug("Logging to file")

	return f, nil
}

// RemoteAddress returns the syslog endpoint configured in the preferences.
func RemoteAddress(prefs *preferences.LoggingPreferences) (string, error) {
	if prefs == nil || !prefs.LoggingEnabled {
		return "", ErrRemoteDisabled
	}
	if prefs.LoggingURL == "" || prefs.LoggingPort == 0 {
		return "", fmt.Errorf("remote logging needs both an endpoint and a port")
	}

	return net.JoinHostPort(prefs.LoggingURL, strconv.FormatUint(uint64(prefs.LoggingPort), 10)), nil
}

// ConfigureRemote sends log entries to the syslog endpoint configured in the preferences, tagged with machineName.
func ConfigureRemote(logger *logrus.Logger, prefs *preferences.LoggingPreferences, machineName string) error {
	addr, err := RemoteAddress(prefs)
	if err != nil {
		return err
	}

	hook, err := lSyslog.NewSyslogHook("udp", addr, syslog.LOG_INFO, machineName)
	if err != nil {
		return fmt.Errorf("cannot reach remote log endpoint %s: %w", addr, err)
	}
	logger.AddHook(hook)

	logger.WithFields(logrus.Fields{
		"endpoint": addr,
		"machine":  machineName,
	}).Debug("Remote logging enabled")

	return nil
}
