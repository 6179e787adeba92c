// Package execcompiler compiles tx3 protocols by running an external
// compiler command that prints a JSON manifest.
package execcompiler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/louisbranch/tx3-mcp/internal/platform/timeouts"
	"github.com/louisbranch/tx3-mcp/internal/tx3"
)

// DefaultCommand is the compiler invocation used when none is configured.
// The protocol source is written to stdin.
const DefaultCommand = "tx3c inspect --format json -"

// CommandRunner executes a command with stdin and returns stdout.
type CommandRunner interface {
	Run(ctx context.Context, stdin []byte, args ...string) ([]byte, error)
}

// DefaultCommandRunner runs commands through os/exec.
type DefaultCommandRunner struct{}

var _ CommandRunner = DefaultCommandRunner{}

// Run executes args[0] with the remaining args. Stderr is folded into the
// returned error when the command fails.
func (DefaultCommandRunner) Run(ctx context.Context, stdin []byte, args ...string) ([]byte, error) {
	if len(args) == 0 {
		return nil, errors.New("command is required")
	}
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Stdin = bytes.NewReader(stdin)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%w: %s", err, msg)
		}
		return nil, err
	}
	return stdout.Bytes(), nil
}

// Compiler implements tx3.Compiler on top of a command.
type Compiler struct {
	args   []string
	runner CommandRunner
}

var _ tx3.Compiler = (*Compiler)(nil)

// New builds a compiler from a whitespace-separated command line. An empty
// command selects DefaultCommand; a nil runner selects DefaultCommandRunner.
func New(command string, runner CommandRunner) *Compiler {
	if strings.TrimSpace(command) == "" {
		command = DefaultCommand
	}
	args := strings.Fields(command)
	if runner == nil {
		runner = DefaultCommandRunner{}
	}
	return &Compiler{args: args, runner: runner}
}

// Compile runs the command with source on stdin and decodes its manifest.
// Each run is bounded by timeouts.Compile.
func (c *Compiler) Compile(ctx context.Context, name, source string) (*tx3.Protocol, error) {
	ctx, cancel := context.WithTimeout(ctx, timeouts.Compile)
	defer cancel()
	out, err := c.runner.Run(ctx, []byte(source), c.args...)
	if err != nil {
		return nil, fmt.Errorf("compile protocol %s: %w", name, err)
	}
	protocol, err := tx3.DecodeManifest(name, out)
	if err != nil {
		return nil, fmt.Errorf("compile protocol %s: %w", name, err)
	}
	return protocol, nil
}
