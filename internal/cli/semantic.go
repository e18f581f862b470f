package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/milohq/milo-memory/internal/apperr"
	"github.com/milohq/milo-memory/internal/ranker"
)

func init() {
	cmd := &cobra.Command{
		Use:   "semantic",
		Short: "Rank database entries by similarity to a query",
		Long: "Scores every database entry against the query with TF-IDF cosine similarity,\n" +
			"or with query-word overlap when ranker.mode is substring.",
		Args: cobra.NoArgs,
		Run:  runSemantic,
	}

	cmd.Flags().StringP("query", "q", "", "Query text (required)")
	cmd.Flags().IntP("limit", "l", 0, "Max results (default: semantic.limit)")
	cmd.Flags().String("mode", "", "Ranker: auto, tfidf, or substring (default: ranker.mode)")
	cmd.Flags().StringP("output", "o", outputText, "Output format: text, json, or yaml")

	RootCmd.AddCommand(cmd)
}

func runSemantic(cmd *cobra.Command, args []string) {
	query, _ := cmd.Flags().GetString("query")
	limit, _ := cmd.Flags().GetInt("limit")
	mode, _ := cmd.Flags().GetString("mode")
	output, _ := cmd.Flags().GetString("output")
	if limit <= 0 {
		limit = cfg.SemanticLimit
	}
	if mode == "" {
		mode = cfg.RankerMode
	}

	if strings.TrimSpace(query) == "" {
		reportErr(cmd, "semantic", apperr.Validation("semantic", "--query is required"))
		return
	}

	rk, err := ranker.New(mode)
	if err != nil {
		reportErr(cmd, "semantic", err)
		return
	}

	s, err := openStore()
	if err != nil {
		reportErr(cmd, "open store", err)
		return
	}
	defer s.Close()

	corpus, err := s.All(cmd.Context())
	if err != nil {
		reportErr(cmd, "semantic", err)
		return
	}

	var scored []ranker.Scored
	if len(corpus) > 0 {
		scored, err = rk.Rank(query, corpus, limit)
		if err != nil {
			reportErr(cmd, "semantic", err)
			return
		}
	}
	logger.Debug("ranked entries",
		zap.String("mode", string(rk.Mode())),
		zap.Int("corpus", len(corpus)),
		zap.Int("hits", len(scored)))

	err = writeOutput(cmd.OutOrStdout(), output, ranker.ToResults(scored), func(w io.Writer) error {
		switch {
		case len(corpus) == 0:
			_, err := fmt.Fprintln(w, "No memory entries found")
			return err
		case len(scored) == 0 && rk.Mode() == ranker.ModeSubstring:
			_, err := fmt.Fprintf(w, "No matches for '%s'\n", query)
			return err
		case len(scored) == 0:
			_, err := fmt.Fprintf(w, "No semantically similar results for '%s'\n", query)
			return err
		}
		for _, sc := range scored {
			if _, err := fmt.Fprintf(w, "[%d] (score: %s) [%s] %s\n",
				sc.Entry.ID, ranker.FormatScore(sc.Score), sc.Entry.EntryType, sc.Entry.Content); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		reportErr(cmd, "semantic", err)
	}
}
