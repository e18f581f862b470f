package cli

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/milohq/milo-memory/internal/apperr"
	"github.com/milohq/milo-memory/internal/curated"
	"github.com/milohq/milo-memory/internal/model"
	"github.com/milohq/milo-memory/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "write",
		Short: "Store a memory entry, log an event, or update MEMORY.md",
		Long: "Stores content in the entry database. Entries of type \"event\" are also appended to\n" +
			"the daily log. With --update-memory the content is added to a MEMORY.md section instead.",
		Args: cobra.NoArgs,
		Run:  runWrite,
	}

	cmd.Flags().StringP("content", "c", "", "Content to remember (required)")
	cmd.Flags().StringP("type", "t", model.DefaultEntryType, "Entry type: "+strings.Join(model.KnownEntryTypes, ", "))
	cmd.Flags().IntP("importance", "i", model.DefaultImportance, "Importance 1-10")
	cmd.Flags().Bool("update-memory", false, "Append to MEMORY.md instead of the database")
	cmd.Flags().StringP("section", "s", curated.DefaultSection, "MEMORY.md section: "+strings.Join(curated.SectionKeys(), ", ")+", or any header text")
	cmd.Flags().String("date", "", "Daily log date for events, YYYY-MM-DD (default: today)")

	RootCmd.AddCommand(cmd)
}

func runWrite(cmd *cobra.Command, args []string) {
	content, _ := cmd.Flags().GetString("content")
	entryType, _ := cmd.Flags().GetString("type")
	importance, _ := cmd.Flags().GetInt("importance")
	updateMemory, _ := cmd.Flags().GetBool("update-memory")
	section, _ := cmd.Flags().GetString("section")
	date, _ := cmd.Flags().GetString("date")

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	if strings.TrimSpace(content) == "" {
		reportErr(cmd, "write", apperr.Validation("write", "--content is required"))
		return
	}

	if updateMemory {
		doc := curatedDoc()
		res, err := doc.AppendToSection(ctx, content, section)
		if apperr.Is(err, apperr.KindNotFound) {
			fmt.Fprintf(out, "%s not found\n", doc.Name())
			return
		}
		if err != nil {
			reportErr(cmd, "update memory", err)
			return
		}
		fmt.Fprintf(out, "Updated %s [%s]: %s\n", doc.Name(), strings.TrimPrefix(res.Header, "## "), content)
		return
	}

	entryType = strings.TrimSpace(entryType)
	if entryType == "" {
		entryType = model.DefaultEntryType
	}

	// The store treats a zero importance as unset. On the command line an
	// explicit 0 is a bad value.
	if cmd.Flags().Changed("importance") && (importance < model.MinImportance || importance > model.MaxImportance) {
		reportErr(cmd, "write", apperr.Validation("write", "importance must be between %d and %d, got %d",
			model.MinImportance, model.MaxImportance, importance))
		return
	}
	params := store.InsertParams{
		Content:    content,
		EntryType:  entryType,
		Importance: importance,
	}
	if err := store.Validate(params); err != nil {
		reportErr(cmd, "write", err)
		return
	}

	if entryType == "event" {
		path, err := dailyLog().Append(ctx, content, date)
		if err != nil {
			reportErr(cmd, "log event", err)
			return
		}
		fmt.Fprintf(out, "Logged to %s: %s\n", filepath.Base(path), content)
	}

	s, err := openStore()
	if err != nil {
		reportErr(cmd, "open store", err)
		return
	}
	defer s.Close()

	e, err := s.Insert(ctx, params)
	if err != nil {
		reportErr(cmd, "write", err)
		return
	}
	fmt.Fprintf(out, "Stored [%s] (importance: %d): %s\n", e.EntryType, e.Importance, e.Content)
}
