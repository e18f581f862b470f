package cli

import (
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/milohq/milo-memory/internal/hybrid"
	"github.com/milohq/milo-memory/internal/model"
)

func init() {
	cmd := &cobra.Command{
		Use:   "search",
		Short: "Search the database, MEMORY.md, and recent daily logs",
		Long: "Hybrid keyword search. Each source is searched separately and reported in its\n" +
			"own group: database entries, MEMORY.md lines, then daily log lines.",
		Args: cobra.NoArgs,
		Run:  runSearch,
	}

	cmd.Flags().StringP("query", "q", "", "Search text (required)")
	cmd.Flags().IntP("limit", "l", 0, "Max database matches (default: search.limit)")
	cmd.Flags().Bool("render", false, "Style the report when stdout is a terminal")
	cmd.Flags().StringP("output", "o", outputText, "Output format: text, json, or yaml")

	RootCmd.AddCommand(cmd)
}

func runSearch(cmd *cobra.Command, args []string) {
	query, _ := cmd.Flags().GetString("query")
	limit, _ := cmd.Flags().GetInt("limit")
	render, _ := cmd.Flags().GetBool("render")
	output, _ := cmd.Flags().GetString("output")
	if limit <= 0 {
		limit = cfg.SearchLimit
	}

	s, openErr := openStore()
	if openErr != nil {
		logger.Warn("entry store unavailable, searching files only", zap.Error(openErr))
		s = nil
	} else {
		defer s.Close()
	}

	report, err := coordinator(s).Search(cmd.Context(), query, limit)
	if err != nil {
		reportErr(cmd, "search", err)
		return
	}
	if openErr != nil {
		report.Errors = append(report.Errors, hybrid.SourceError{Source: model.SourceDB, Err: openErr})
	}

	err = writeOutput(cmd.OutOrStdout(), output, report, func(w io.Writer) error {
		var b strings.Builder
		if err := report.Render(&b); err != nil {
			return err
		}
		return writeMarkdown(w, b.String(), render)
	})
	if err != nil {
		reportErr(cmd, "search", err)
	}
}
