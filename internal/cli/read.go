package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/milohq/milo-memory/internal/apperr"
	"github.com/milohq/milo-memory/internal/hybrid"
	"github.com/milohq/milo-memory/internal/model"
)

func init() {
	cmd := &cobra.Command{
		Use:   "read",
		Short: "Print the session context: MEMORY.md, recent logs, and recent entries",
		Long: "Prints MEMORY.md, the daily log for --date (default today), yesterday's log,\n" +
			"and the newest database entries. --format raw prints only MEMORY.md and the day's log.",
		Args: cobra.NoArgs,
		Run:  runRead,
	}

	cmd.Flags().StringP("format", "f", "markdown", "Format: markdown, raw, json, or yaml")
	cmd.Flags().String("date", "", "Daily log date, YYYY-MM-DD (default: today)")
	cmd.Flags().IntP("limit", "l", hybrid.DefaultContextEntries, "Max recent database entries")
	cmd.Flags().Bool("render", false, "Style the markdown when stdout is a terminal")

	RootCmd.AddCommand(cmd)
}

func runRead(cmd *cobra.Command, args []string) {
	format, _ := cmd.Flags().GetString("format")
	date, _ := cmd.Flags().GetString("date")
	limit, _ := cmd.Flags().GetInt("limit")
	render, _ := cmd.Flags().GetBool("render")

	format = strings.ToLower(strings.TrimSpace(format))
	switch format {
	case "markdown", "raw", outputJSON, outputYAML:
	default:
		reportErr(cmd, "read", apperr.Validation("read", "unknown format %q (use markdown, raw, json, or yaml)", format))
		return
	}

	// The raw view never lists entries, so it does not need the store.
	var openErr error
	c := coordinator(nil)
	if format != "raw" {
		s, err := openStore()
		if err != nil {
			logger.Warn("entry store unavailable, reading files only", zap.Error(err))
			openErr = err
		} else {
			defer s.Close()
			c = coordinator(s)
		}
	}

	view, err := c.Assemble(cmd.Context(), hybrid.ContextParams{Date: date, Limit: limit})
	if err != nil {
		reportErr(cmd, "read", err)
		return
	}
	if openErr != nil {
		view.Errors = append(view.Errors, hybrid.SourceError{Source: model.SourceDB, Err: openErr})
	}

	out := cmd.OutOrStdout()
	switch format {
	case "raw":
		err = view.RenderRaw(out)
	case "markdown":
		var b strings.Builder
		if err = view.RenderMarkdown(&b); err == nil {
			err = writeMarkdown(out, b.String(), render)
		}
	default:
		err = writeOutput(out, format, view, func(io.Writer) error { return nil })
	}
	if err != nil {
		reportErr(cmd, "read", fmt.Errorf("write output: %w", err))
	}
}
