// Package util provides helpers for executing the command line tools the utilities are built on.
package util

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/user"
	"strconv"
	"syscall"
)

// CommandOutput wraps the output from an exec command as strings.
type CommandOutput struct {
	Stdout string
	Stderr string
}

// Combined returns stdout followed by stderr, for tools that report failures on either stream.
func (o CommandOutput) Combined() string {
	if o.Stderr == "" {
		return o.Stdout
	}

	return o.Stdout + o.Stderr
}

// ExecuteCommand runs c, as runAsUser when it is set, and returns what it wrote to stdout and stderr.
// The output collected so far is returned alongside any error.
func ExecuteCommand(ctx context.Context, c []string, runAsUser string, envVars []string, stdin io.ReadCloser) (CommandOutput, error) {
	if len(c) == 0 {
		return CommandOutput{}, errors.New("must provide a command")
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, c[0], c[1:]...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.Env = append(os.Environ(), envVars...)
	if stdin != nil {
		cmd.Stdin = stdin
	}

	collected := func() CommandOutput {
		return CommandOutput{Stdout: stdout.String(), Stderr: stderr.String()}
	}

	if runAsUser != "" {
		cred, err := credentialFor(ctx, runAsUser)
		if err != nil {
			return collected(), fmt.Errorf("error looking up user: %w", err)
		}
		cmd.SysProcAttr = &syscall.SysProcAttr{Credential: cred}
	}

	if err := cmd.Start(); err != nil {
		return collected(), fmt.Errorf("start %s: %w", c[0], err)
	}
	if err := cmd.Wait(); err != nil {
		return collected(), fmt.Errorf("wait for %s: %w", c[0], err)
	}

	return collected(), nil
}

// Runner executes commands on behalf of the packages that shell out, allowing tests to substitute canned output.
type Runner interface {
	// Run executes the command, as runAsUser when it is not empty.
	Run(ctx context.Context, c []string, runAsUser string) (CommandOutput, error)
}

// ExecRunner is the Runner backed by ExecuteCommand.
type ExecRunner struct{}

// Run executes the command with ExecuteCommand.
func (ExecRunner) Run(ctx context.Context, c []string, runAsUser string) (CommandOutput, error) {
	return ExecuteCommand(ctx, c, runAsUser, nil, nil)
}

// InvokingUser returns the user that ran the utilities through sudo, or an empty string when they were not run
// through sudo. Applications are opened as this user so they do not run with root privileges.
func InvokingUser() string {
	if os.Geteuid() != 0 {
		return ""
	}

	return os.Getenv("SUDO_USER")
}

// credentialFor resolves the uid and gid of username. Directory services can lag behind user.Lookup on a freshly
// imaged machine, so dscacheutil is asked when the lookup fails.
func credentialFor(ctx context.Context, username string) (*syscall.Credential, error) {
	ids := map[string]string{}
	if u, err := user.Lookup(username); err == nil {
		ids["uid"], ids["gid"] = u.Uid, u.Gid
	} else {
		out, err := ExecuteCommand(ctx, []string{"dscacheutil", "-q", "user", "-a", "name", username}, "", nil, nil)
		if err != nil {
			return nil, fmt.Errorf("dscacheutil: %w", err)
		}
		ids = dsCacheValues([]byte(out.Stdout), "uid", "gid")
	}

	if ids["uid"] == "" || ids["gid"] == "" {
		return nil, fmt.Errorf("user %q: no user info", username)
	}

	uid, err := strconv.ParseUint(ids["uid"], 10, 32)
	if err != nil {
		return nil, fmt.Errorf("parse %q uid: %w", username, err)
	}
	gid, err := strconv.ParseUint(ids["gid"], 10, 32)
	if err != nil {
		return nil, fmt.Errorf("parse %q gid: %w", username, err)
	}

	return &syscall.Credential{Uid: uint32(uid), Gid: uint32(gid)}, nil
}

// dsCacheValues picks keys out of dscacheutil's "key: value" lines, matching keys case-insensitively.
//
//	name: tech
//	uid: 501
//	gid: 20
//	dir: /Users/tech
func dsCacheValues(text []byte, keys ...string) map[string]string {
	values := map[string]string{}

	for _, line := range bytes.Split(text, []byte("\n")) {
		kv := bytes.SplitN(line, []byte(": "), 2)
		if len(kv) < 2 {
			continue
		}

		for _, key := range keys {
			if bytes.EqualFold(kv[0], []byte(key)) {
				values[key] = string(kv[1])
			}
		}
	}

	return values
}
