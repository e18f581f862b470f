package hybrid

import (
	"context"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/milohq/milo-memory/internal/apperr"
	"github.com/milohq/milo-memory/internal/dailylog"
	"github.com/milohq/milo-memory/internal/model"
	"github.com/milohq/milo-memory/internal/store"
)

// DefaultContextEntries is how many recent entries a context view lists.
const DefaultContextEntries = 20

// ContextParams holds parameters for context assembly.
type ContextParams struct {
	// Date selects the "today" log; empty means today.
	Date  string
	Limit int
}

// ContextView is what the agent reads at the start of a session: the
// curated document, today's and yesterday's logs, and recent entries.
// Missing documents are left empty and reported through the *Found flags.
type ContextView struct {
	Curated        string        `json:"curated" yaml:"curated"`
	CuratedFound   bool          `json:"curated_found" yaml:"curated_found"`
	Date           string        `json:"date" yaml:"date"`
	Today          string        `json:"today" yaml:"today"`
	TodayFound     bool          `json:"today_found" yaml:"today_found"`
	YesterdayDate  string        `json:"yesterday_date" yaml:"yesterday_date"`
	Yesterday      string        `json:"yesterday" yaml:"yesterday"`
	YesterdayFound bool          `json:"yesterday_found" yaml:"yesterday_found"`
	Entries        []model.Entry `json:"entries" yaml:"entries"`
	Errors         []SourceError `json:"errors,omitempty" yaml:"errors,omitempty"`
}

// Assemble gathers the context view. Yesterday is relative to the clock,
// not to p.Date. A failing entry store is recorded on the view.
func (c *Coordinator) Assemble(ctx context.Context, p ContextParams) (*ContextView, error) {
	limit := p.Limit
	if limit <= 0 {
		limit = DefaultContextEntries
	}

	now := c.now()
	v := &ContextView{
		Date:          now.Format(dailylog.DateLayout),
		YesterdayDate: now.AddDate(0, 0, -1).Format(dailylog.DateLayout),
	}
	if d := strings.TrimSpace(p.Date); d != "" {
		v.Date = d
	}

	var err error
	if c.curated != nil {
		if v.Curated, v.CuratedFound, err = readOptional(func() (string, error) { return c.curated.Read(ctx) }); err != nil {
			return nil, err
		}
	}
	if c.logs != nil {
		if v.Today, v.TodayFound, err = readOptional(func() (string, error) { return c.logs.Read(ctx, v.Date) }); err != nil {
			return nil, err
		}
		if v.Yesterday, v.YesterdayFound, err = readOptional(func() (string, error) { return c.logs.Read(ctx, v.YesterdayDate) }); err != nil {
			return nil, err
		}
	}

	if c.entries != nil {
		entries, err := c.entries.List(ctx, store.ListParams{Limit: limit})
		if err != nil {
			c.log.Warn("memory source failed", zap.String("source", model.SourceDB), zap.Error(err))
			v.Errors = append(v.Errors, SourceError{Source: model.SourceDB, Err: err})
		}
		v.Entries = entries
	}
	return v, nil
}

func readOptional(read func() (string, error)) (string, bool, error) {
	text, err := read()
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return "", false, nil
		}
		return "", false, err
	}
	return text, true, nil
}

func (v *ContextView) curatedText() string {
	if !v.CuratedFound {
		return "(" + model.SourceCurated + " not found)"
	}
	return strings.TrimRight(v.Curated, "\n")
}

func logText(text string, found bool, date string) string {
	if !found {
		return fmt.Sprintf("(No log for %s)", date)
	}
	return strings.TrimRight(text, "\n")
}

// RenderMarkdown writes the full context document.
func (v *ContextView) RenderMarkdown(w io.Writer) error {
	var b strings.Builder
	b.WriteString("# Memory Context\n\n")
	b.WriteString("## Curated Memory (MEMORY.md)\n\n")
	b.WriteString(v.curatedText())
	b.WriteString("\n\n---\n\n## Today's Log\n\n")
	b.WriteString(logText(v.Today, v.TodayFound, v.Date))
	b.WriteString("\n\n---\n\n## Yesterday's Log\n\n")
	b.WriteString(logText(v.Yesterday, v.YesterdayFound, v.YesterdayDate))
	b.WriteString("\n")

	if len(v.Entries) > 0 {
		b.WriteString("\n---\n\n## Recent Database Entries\n\n")
		for _, e := range v.Entries {
			fmt.Fprintf(&b, "- [%s] (importance: %d) %s\n", e.EntryType, e.Importance, e.Content)
		}
	}
	for _, e := range v.Errors {
		fmt.Fprintf(&b, "\n> %s unavailable: %v\n", e.Source, e.Err)
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// RenderRaw writes the curated document and the selected day's log only.
func (v *ContextView) RenderRaw(w io.Writer) error {
	_, err := fmt.Fprintf(w, "%s\n\n---\n\n%s\n", v.curatedText(), logText(v.Today, v.TodayFound, v.Date))
	return err
}
