package infrastructure

import (
	"bytes"
	"context"
	"os/exec"
)

// CommandRunner abstracts child process execution so the extraction waterfall
// can be tested without a real yt-dlp binary.
type CommandRunner interface {
	// Run executes the binary with args and returns captured stdout and
	// stderr. A non-zero exit is returned as err with both captures intact.
	Run(ctx context.Context, binary string, args []string) (stdout, stderr []byte, err error)
}

// ExecRunner runs commands via os/exec.
type ExecRunner struct{}

// Run implements CommandRunner.
func (ExecRunner) Run(ctx context.Context, binary string, args []string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, binary, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}
