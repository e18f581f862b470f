package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/milohq/milo-memory/internal/apperr"
	"github.com/milohq/milo-memory/internal/model"
	"github.com/milohq/milo-memory/internal/store"
)

const defaultListLimit = 20

func init() {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Query and maintain the entry database",
		Long: "Actions:\n" +
			"  search  entries containing --query, most important first\n" +
			"  list    newest entries, optionally of one --type\n" +
			"  delete  the entry with --id\n" +
			"  stats   entry counts per type\n" +
			"  init    create the databases, the logs directory, and MEMORY.md",
		Args: cobra.NoArgs,
		Run:  runDB,
	}

	cmd.Flags().StringP("action", "a", "list", "search, list, delete, stats, or init")
	cmd.Flags().StringP("query", "q", "", "Search text (search)")
	cmd.Flags().StringP("type", "t", "", "Filter by entry type (search, list)")
	cmd.Flags().Int64("id", 0, "Entry id (delete)")
	cmd.Flags().IntP("limit", "l", 0, "Max entries")
	cmd.Flags().StringP("output", "o", outputText, "Output format: text, json, or yaml")

	RootCmd.AddCommand(cmd)
}

func runDB(cmd *cobra.Command, args []string) {
	action, _ := cmd.Flags().GetString("action")

	if action == "init" {
		runDBInit(cmd)
		return
	}

	query, _ := cmd.Flags().GetString("query")
	entryType, _ := cmd.Flags().GetString("type")
	id, _ := cmd.Flags().GetInt64("id")
	limit, _ := cmd.Flags().GetInt("limit")
	output, _ := cmd.Flags().GetString("output")

	switch action {
	case "search":
		if query == "" {
			reportErr(cmd, "", apperr.Validation("db", "--query required for search"))
			return
		}
	case "delete":
		if id == 0 {
			reportErr(cmd, "", apperr.Validation("db", "--id required for delete"))
			return
		}
	case "list", "stats":
	default:
		reportErr(cmd, "", apperr.Validation("db", "unknown action %q (use search, list, delete, stats, or init)", action))
		return
	}

	s, err := openStore()
	if err != nil {
		reportErr(cmd, "open store", err)
		return
	}
	defer s.Close()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	switch action {
	case "search":
		if limit <= 0 {
			limit = cfg.SearchLimit
		}
		entries, err := s.Search(ctx, store.SearchParams{Query: query, EntryType: entryType, Limit: limit})
		if err != nil {
			reportErr(cmd, "search", err)
			return
		}
		err = writeOutput(out, output, entries, func(w io.Writer) error {
			if len(entries) == 0 {
				_, err := fmt.Fprintf(w, "No results for '%s'\n", query)
				return err
			}
			return writeEntries(w, entries)
		})
		if err != nil {
			reportErr(cmd, "search", err)
		}

	case "list":
		if limit <= 0 {
			limit = defaultListLimit
		}
		entries, err := s.List(ctx, store.ListParams{EntryType: entryType, Limit: limit})
		if err != nil {
			reportErr(cmd, "list", err)
			return
		}
		err = writeOutput(out, output, entries, func(w io.Writer) error {
			if len(entries) == 0 {
				_, err := fmt.Fprintln(w, "No entries found")
				return err
			}
			return writeEntries(w, entries)
		})
		if err != nil {
			reportErr(cmd, "list", err)
		}

	case "delete":
		n, err := s.Delete(ctx, id)
		if err != nil {
			reportErr(cmd, "delete", err)
			return
		}
		result := map[string]int64{"id": id, "deleted": n}
		err = writeOutput(out, output, result, func(w io.Writer) error {
			_, err := fmt.Fprintf(w, "Deleted %d entry(ies) with id=%d\n", n, id)
			return err
		})
		if err != nil {
			reportErr(cmd, "delete", err)
		}

	case "stats":
		st, err := s.Stats(ctx)
		if err != nil {
			reportErr(cmd, "stats", err)
			return
		}
		err = writeOutput(out, output, st, func(w io.Writer) error {
			if _, err := fmt.Fprintf(w, "Total entries: %d\n", st.Total); err != nil {
				return err
			}
			for _, t := range st.Types {
				if _, err := fmt.Fprintf(w, "  %s: %d\n", t, st.PerType[t]); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			reportErr(cmd, "stats", err)
		}
	}
}

func writeEntries(w io.Writer, entries []model.Entry) error {
	for _, e := range entries {
		if _, err := fmt.Fprintf(w, "[%d] [%s] (imp: %d) %s  (%s)\n",
			e.ID, e.EntryType, e.Importance, e.Content, e.CreatedAt.Format(store.TimeLayout)); err != nil {
			return err
		}
	}
	return nil
}

func runDBInit(cmd *cobra.Command) {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	s, err := openStore()
	if err != nil {
		reportErr(cmd, "init", err)
		return
	}
	s.Close()

	a, err := openActivity()
	if err != nil {
		reportErr(cmd, "init", err)
		return
	}
	a.Close()

	if err := os.MkdirAll(cfg.LogsDir, 0o755); err != nil {
		reportErr(cmd, "init", fmt.Errorf("create logs dir: %w", err))
		return
	}
	fmt.Fprintln(out, "Databases initialized")

	doc := curatedDoc()
	created, err := doc.Scaffold(ctx)
	if err != nil {
		reportErr(cmd, "init", fmt.Errorf("scaffold %s: %w", doc.Name(), err))
		return
	}
	if created {
		fmt.Fprintf(out, "Created %s\n", doc.Path())
	}
}
