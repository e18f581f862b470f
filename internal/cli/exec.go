package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/milohq/milo-memory/internal/apperr"
	"github.com/milohq/milo-memory/internal/sandbox"
)

func init() {
	cmd := &cobra.Command{
		Use:   "exec",
		Short: "Run a code snippet, a script file, or a shell command with a timeout",
		Long: "Exactly one of --code, --file, or --command is required. Code and files run with\n" +
			"--program (default python3); commands run with /bin/sh -c. Output is printed as\n" +
			"it was captured, followed by an exit summary on stderr.",
		Args: cobra.NoArgs,
		Run:  runExec,
	}

	cmd.Flags().String("code", "", "Code to run")
	cmd.Flags().String("file", "", "Script file to run")
	cmd.Flags().String("command", "", "Shell command to run")
	cmd.Flags().String("program", "", "Interpreter or shell (default: python3 for code/files, /bin/sh for commands)")
	cmd.Flags().Int("timeout", 0, "Timeout in seconds (default: sandbox.timeout)")
	cmd.Flags().String("cwd", "", "Working directory")
	cmd.Flags().StringArray("env", nil, "Extra environment variable, KEY=VALUE (repeatable)")
	cmd.Flags().Bool("json", false, "Print the result as JSON")
	cmd.Flags().Bool("stream", false, "Print output as it is produced")

	RootCmd.AddCommand(cmd)
}

func runExec(cmd *cobra.Command, args []string) {
	code, _ := cmd.Flags().GetString("code")
	file, _ := cmd.Flags().GetString("file")
	command, _ := cmd.Flags().GetString("command")
	program, _ := cmd.Flags().GetString("program")
	timeout, _ := cmd.Flags().GetInt("timeout")
	cwd, _ := cmd.Flags().GetString("cwd")
	env, _ := cmd.Flags().GetStringArray("env")
	asJSON, _ := cmd.Flags().GetBool("json")
	stream, _ := cmd.Flags().GetBool("stream")

	given := 0
	for _, s := range []string{code, file, command} {
		if s != "" {
			given++
		}
	}
	if given != 1 {
		exitErr(cmd, "", apperr.Validation("exec", "exactly one of --code, --file, or --command is required"))
	}

	spec := sandbox.Spec{
		Program: program,
		Dir:     cwd,
		Env:     sandbox.ParseEnv(env),
		Timeout: cfg.SandboxTimeout,
		Logger:  logger,
	}
	if timeout > 0 {
		spec.Timeout = time.Duration(timeout) * time.Second
	}
	if stream && !asJSON {
		spec.Tee = cmd.OutOrStdout()
	}

	var (
		res *sandbox.Result
		err error
	)
	switch {
	case code != "":
		res, err = sandbox.RunCode(cmd.Context(), code, spec)
	case file != "":
		res, err = sandbox.RunFile(cmd.Context(), file, spec)
	default:
		res, err = sandbox.RunShell(cmd.Context(), command, spec)
	}
	if err != nil {
		exitErr(cmd, "exec", err)
	}
	if res.TimedOut {
		logger.Warn("process timed out", zap.Error(res.Err()))
	}

	if asJSON {
		printJSON(cmd.OutOrStdout(), res)
		return
	}
	if !stream {
		io.WriteString(cmd.OutOrStdout(), res.Stdout)
		io.WriteString(cmd.ErrOrStderr(), res.Stderr)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "\n%s\n", res.Summary())
}
