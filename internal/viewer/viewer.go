package viewer

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
)

// Runner opens a file in an external viewer. It does not wait for the
// viewer to be closed: the login loop keeps polling while the code is shown.
type Runner interface {
	Open(ctx context.Context, viewerCmd string, filePath string) error
}

// ProcessRunner is a Runner implemented via os/exec.
type ProcessRunner struct {
	// Start launches cmd; tests replace it to avoid spawning processes.
	Start func(cmd *exec.Cmd) error
}

func NewProcessRunner() *ProcessRunner {
	return &ProcessRunner{Start: func(cmd *exec.Cmd) error { return cmd.Start() }}
}

// DefaultCommand is the platform opener used when no viewer is configured.
func DefaultCommand() string {
	switch runtime.GOOS {
	case "darwin":
		return "open"
	case "windows":
		return "explorer"
	default:
		return "xdg-open"
	}
}

func (r *ProcessRunner) Open(ctx context.Context, viewerCmd string, filePath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	filePath = strings.TrimSpace(filePath)
	if filePath == "" {
		return fmt.Errorf("filePath is required")
	}
	if _, err := os.Stat(filePath); err != nil {
		return fmt.Errorf("stat %s: %w", filePath, err)
	}

	viewerCmd = strings.TrimSpace(viewerCmd)
	if viewerCmd == "" {
		viewerCmd = DefaultCommand()
	}

	parts := strings.Fields(viewerCmd)
	name := parts[0]
	args := append(parts[1:], filePath)

	// Not bound to ctx: the viewer outlives the login command.
	cmd := exec.Command(name, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	start := r.Start
	if start == nil {
		start = func(cmd *exec.Cmd) error { return cmd.Start() }
	}
	if err := start(cmd); err != nil {
		return fmt.Errorf("run viewer %q: %w", viewerCmd, err)
	}
	return nil
}
