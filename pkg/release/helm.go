package release

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"emperror.dev/errors"
	"github.com/apparentlymart/go-shquot/shquot"
	"github.com/cuemby/modelctl/pkg/log"
)

// Result is the outcome of a submission
type Result struct {
	// Command is the shell-quoted command line that was run
	Command string

	// Output is the release manager's combined output, verbatim
	Output string
}

// Manager submits releases
type Manager interface {
	Submit(ctx context.Context, spec Spec) (Result, error)
}

// Runner executes a command and returns its combined output
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

// ExecRunner runs commands with os/exec
func ExecRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// Helm submits releases through the helm CLI
type Helm struct {
	binary string
	run    Runner
}

// NewHelm creates a helm adapter using binary ("helm" when empty)
func NewHelm(binary string) *Helm {
	return NewHelmWithRunner(binary, ExecRunner)
}

// NewHelmWithRunner creates a helm adapter with a custom runner
func NewHelmWithRunner(binary string, run Runner) *Helm {
	if binary == "" {
		binary = "helm"
	}
	return &Helm{binary: binary, run: run}
}

// Args returns the helm arguments for spec. upgrade --install makes the
// submission idempotent per release name.
func (h *Helm) Args(spec Spec) []string {
	args := []string{"upgrade", "--install", spec.Name, spec.Chart, "--namespace", spec.Namespace}
	if spec.ValuesFile != "" {
		args = append(args, "--values", spec.ValuesFile)
	}
	for _, kv := range spec.OverrideList() {
		args = append(args, "--set", kv)
	}
	if spec.Wait {
		args = append(args, "--wait")
	}
	if spec.Timeout > 0 {
		args = append(args, "--timeout", fmt.Sprintf("%ds", int(spec.Timeout.Seconds())))
	}
	if spec.DryRun {
		args = append(args, "--dry-run")
	}
	return args
}

// Submit runs helm upgrade --install for spec
func (h *Helm) Submit(ctx context.Context, spec Spec) (Result, error) {
	args := h.Args(spec)
	command := shquot.POSIXShell(append([]string{h.binary}, args...))

	logger := log.WithComponent("helm")
	logger.Debug().Str("command", command).Msg("Submitting release")

	out, err := h.run(ctx, h.binary, args...)
	result := Result{Command: command, Output: string(out)}
	if err != nil {
		detail := strings.TrimSpace(result.Output)
		if detail == "" {
			return result, errors.Wrapf(err, "helm upgrade %s", spec.Name)
		}
		return result, errors.Wrapf(err, "helm upgrade %s: %s", spec.Name, lastLine(detail))
	}
	return result, nil
}

func lastLine(s string) string {
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}

var _ Manager = (*Helm)(nil)
