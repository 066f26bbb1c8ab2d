// Package credentials resolves the effective database password from one of
// several operator-supplied sources. Exactly one source is consulted per
// resolution: a literal value beats a password file, which beats a password
// command, which beats the PGPASSWORD environment variable. The ordering
// lets operators plug in secrets managers via password-cmd without the
// literal flag ever appearing in process listings.
package credentials

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// ErrPasswordCommandFailed indicates the configured password command could
// not be run or exited non-zero.
var ErrPasswordCommandFailed = errors.New("password command failed")

// EnvPassword is the well-known environment fallback.
const EnvPassword = "PGPASSWORD"

// Sources lists the candidate password sources in priority order.
type Sources struct {
	// Literal is an explicit password value.
	Literal string
	// File is a path whose trimmed contents are the password.
	File string
	// Command is a shell command whose trimmed stdout is the password.
	Command string
}

// Getenv allows tests to substitute the environment lookup.
var Getenv = os.Getenv

// ResolvePassword returns the effective password and whether any source
// supplied one. The first configured source wins; later sources are never
// consulted, even if the winning source yields an empty string.
func ResolvePassword(ctx context.Context, src Sources) (string, bool, error) {
	if src.Literal != "" {
		return src.Literal, true, nil
	}

	if src.File != "" {
		data, err := os.ReadFile(src.File)
		if err != nil {
			return "", false, fmt.Errorf("reading password file %s: %w", src.File, err)
		}
		return strings.TrimSpace(string(data)), true, nil
	}

	if src.Command != "" {
		out, err := runPasswordCommand(ctx, src.Command)
		if err != nil {
			return "", false, fmt.Errorf("%w: %v", ErrPasswordCommandFailed, err)
		}
		return strings.TrimSpace(out), true, nil
	}

	if v := Getenv(EnvPassword); v != "" {
		return v, true, nil
	}

	return "", false, nil
}

func runPasswordCommand(ctx context.Context, command string) (string, error) {
	cmd := exec.CommandContext(ctx, "/bin/sh", "-c", command)
	cmd.Stderr = nil
	out, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", fmt.Errorf("exit status %d", exitErr.ExitCode())
		}
		return "", err
	}
	return string(out), nil
}
