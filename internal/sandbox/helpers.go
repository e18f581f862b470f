package sandbox

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/milohq/milo-memory/internal/apperr"
)

// DefaultInterpreter runs code snippets and script files.
const DefaultInterpreter = "python3"

// DefaultShell runs shell commands.
const DefaultShell = "/bin/sh"

// RunCode writes code to a temporary file in spec.Dir (or the system temp
// directory) and runs spec.Program on it. The file is removed afterwards.
func RunCode(ctx context.Context, code string, spec Spec) (*Result, error) {
	if spec.Program == "" {
		spec.Program = DefaultInterpreter
	}
	dir := spec.Dir
	if dir == "" {
		dir = os.TempDir()
	}
	tmp, err := os.CreateTemp(dir, "snippet-*"+extensionFor(spec.Program))
	if err != nil {
		return nil, fmt.Errorf("sandbox: write snippet: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.WriteString(code); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("sandbox: write snippet: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("sandbox: write snippet: %w", err)
	}

	if spec.Env == nil {
		spec.Env = map[string]string{}
	}
	spec.Env["PYTHONDONTWRITEBYTECODE"] = "1"
	spec.Args = append(append([]string(nil), spec.Args...), tmp.Name())
	return Run(ctx, spec)
}

// RunFile runs spec.Program on an existing script, in the script's
// directory unless spec.Dir says otherwise.
func RunFile(ctx context.Context, path string, spec Spec) (*Result, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(abs); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, apperr.NotFound("sandbox", "file not found: %s", path)
		}
		return nil, err
	}
	if spec.Program == "" {
		spec.Program = DefaultInterpreter
	}
	if spec.Dir == "" {
		spec.Dir = filepath.Dir(abs)
	}
	spec.Args = append(append([]string(nil), spec.Args...), abs)
	return Run(ctx, spec)
}

// RunShell runs command through spec.Program (DefaultShell when empty) with -c.
func RunShell(ctx context.Context, command string, spec Spec) (*Result, error) {
	if spec.Program == "" {
		spec.Program = DefaultShell
	}
	spec.Args = []string{"-c", command}
	return Run(ctx, spec)
}

func extensionFor(program string) string {
	switch filepath.Base(program) {
	case "python", "python3":
		return ".py"
	case "node":
		return ".js"
	case "sh", "bash", "zsh":
		return ".sh"
	}
	return ""
}
