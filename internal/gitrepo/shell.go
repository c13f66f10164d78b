package gitrepo

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"strings"
	"time"

	"emperror.dev/errors"
	"github.com/rung-dev/rung/internal/rlog"
)

// RunOpts mirrors av's git.RunOpts: the shared shape for invoking the git
// binary as a subprocess.
type RunOpts struct {
	Args []string
	Env  []string
	// ExitError causes Run to return an error for a non-zero exit code.
	ExitError bool
}

// RunResult mirrors av's git.Output.
type RunResult struct {
	ExitCode int
	Stdout   []byte
	Stderr   []byte
}

func (o RunResult) Lines() []string {
	s := strings.TrimSpace(string(o.Stdout))
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

func (o RunResult) Text() string {
	return strings.TrimSpace(string(o.Stdout))
}

// shell invokes the git binary in dir, the way av's Repo.Run does: separate
// stdout/stderr buffers, IN_RUNG_CLI set so hooks can detect the caller.
func shell(ctx context.Context, dir string, opts RunOpts) (*RunResult, error) {
	start := time.Now()
	cmd := exec.CommandContext(ctx, "git", opts.Args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), "IN_RUNG_CLI=1")
	cmd.Env = append(cmd.Env, opts.Env...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	rlog.GitCall(opts.Args, start, err)

	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		return nil, errors.Wrapf(err, "git %s", opts.Args)
	}
	result := &RunResult{
		ExitCode: cmd.ProcessState.ExitCode(),
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
	}
	if err != nil && opts.ExitError {
		return result, errors.WrapIff(err, "git %s: %s", opts.Args, strings.TrimSpace(stderr.String()))
	}
	return result, nil
}
