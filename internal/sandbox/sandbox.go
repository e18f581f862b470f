// Package sandbox runs code snippets, script files, and shell commands in a
// child process with a timeout and captured output.
package sandbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/milohq/milo-memory/internal/apperr"
	"github.com/milohq/milo-memory/internal/logging"
)

// DefaultTimeout applies when Spec.Timeout is zero.
const DefaultTimeout = 30 * time.Second

// waitDelay bounds how long Wait blocks on output pipes after a kill.
const waitDelay = 2 * time.Second

// Spec describes one process run.
type Spec struct {
	Program string
	Args    []string
	Stdin   string
	Dir     string
	// Env is added to the parent environment.
	Env     map[string]string
	Timeout time.Duration
	// Tee, when set, receives output as it is produced.
	Tee    io.Writer
	Logger *zap.Logger
}

// Result is the outcome of a run. A non-zero exit is not an error.
type Result struct {
	Stdout   string        `json:"stdout"`
	Stderr   string        `json:"stderr"`
	ExitCode int           `json:"exit_code"`
	TimedOut bool          `json:"timed_out"`
	Duration time.Duration `json:"-"`
	Seconds  float64       `json:"duration_s"`
}

// Err is an ExternalTimeout error when the run timed out, else nil.
func (r *Result) Err() error {
	if r.TimedOut {
		return apperr.ExternalTimeout("sandbox", fmt.Errorf("killed after %.3fs", r.Seconds))
	}
	return nil
}

// Summary is the one-line status printed after the output.
func (r *Result) Summary() string {
	status := fmt.Sprintf("exit %d", r.ExitCode)
	if r.TimedOut {
		status = "TIMED OUT"
	}
	return fmt.Sprintf("--- %s | %.3fs ---", status, r.Seconds)
}

// Run starts the process and waits for it or for the timeout, whichever
// comes first. On timeout the process is killed, ExitCode is -1, and
// TimedOut is set.
func Run(ctx context.Context, spec Spec) (*Result, error) {
	if strings.TrimSpace(spec.Program) == "" {
		return nil, apperr.Validation("sandbox", "program is required")
	}
	if spec.Dir != "" {
		if info, err := os.Stat(spec.Dir); err != nil || !info.IsDir() {
			return nil, apperr.Validation("sandbox", "working directory does not exist: %s", spec.Dir)
		}
	}
	timeout := spec.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	log := logging.OrNop(spec.Logger)

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, spec.Program, spec.Args...)
	cmd.Dir = spec.Dir
	cmd.Env = mergeEnv(os.Environ(), spec.Env)
	cmd.WaitDelay = waitDelay
	if spec.Stdin != "" {
		cmd.Stdin = strings.NewReader(spec.Stdin)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout, cmd.Stderr = &stdout, &stderr
	if spec.Tee != nil {
		cmd.Stdout = io.MultiWriter(&stdout, spec.Tee)
		cmd.Stderr = io.MultiWriter(&stderr, spec.Tee)
	}

	start := time.Now()
	err := cmd.Run()
	elapsed := time.Since(start)

	res := &Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: elapsed,
		Seconds:  float64(elapsed.Round(time.Millisecond)) / float64(time.Second),
	}

	switch {
	case err == nil:
		res.ExitCode = 0
	case errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil:
		res.TimedOut = true
		res.ExitCode = -1
	default:
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return nil, fmt.Errorf("sandbox: run %s: %w", spec.Program, err)
		}
		res.ExitCode = exitErr.ExitCode()
	}

	log.Debug("sandbox run",
		zap.String("program", spec.Program),
		zap.Int("exit_code", res.ExitCode),
		zap.Bool("timed_out", res.TimedOut),
		zap.Duration("duration", elapsed))
	return res, nil
}

func mergeEnv(base []string, extra map[string]string) []string {
	if len(extra) == 0 {
		return base
	}
	out := make([]string, 0, len(base)+len(extra))
	for _, kv := range base {
		k, _, _ := strings.Cut(kv, "=")
		if _, override := extra[k]; override {
			continue
		}
		out = append(out, kv)
	}
	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		out = append(out, k+"="+extra[k])
	}
	return out
}

// ParseEnv turns KEY=VALUE pairs into a map. Pairs without "=" are ignored.
func ParseEnv(pairs []string) map[string]string {
	env := map[string]string{}
	for _, p := range pairs {
		if k, v, ok := strings.Cut(p, "="); ok && k != "" {
			env[k] = v
		}
	}
	return env
}
