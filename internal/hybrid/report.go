package hybrid

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"

	"github.com/milohq/milo-memory/internal/model"
)

// SourceLogs names the daily logs in source errors.
const SourceLogs = "logs"

// SourceError is a failure of one source during a search.
type SourceError struct {
	Source string
	Err    error
}

func (e SourceError) Error() string { return e.Source + ": " + e.Err.Error() }

// MarshalJSON renders the error as {"source", "error"}.
func (e SourceError) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]string{"source": e.Source, "error": e.Err.Error()})
}

// MarshalYAML renders the error like MarshalJSON.
func (e SourceError) MarshalYAML() (interface{}, error) {
	return map[string]string{"source": e.Source, "error": e.Err.Error()}, nil
}

// Report holds the per-source results of one hybrid search. Results are
// grouped by source and never merged or re-ranked across sources.
type Report struct {
	Query    string               `json:"query" yaml:"query"`
	Database []model.SearchResult `json:"database" yaml:"database"`
	Curated  []model.SearchResult `json:"curated" yaml:"curated"`
	Logs     []model.SearchResult `json:"logs" yaml:"logs"`
	Errors   []SourceError        `json:"errors,omitempty" yaml:"errors,omitempty"`
}

// Total is the number of results across all sources.
func (r *Report) Total() int {
	return len(r.Database) + len(r.Curated) + len(r.Logs)
}

// Render writes the markdown report: database, curated document, then
// logs, each with its match count, and a total footer.
func (r *Report) Render(w io.Writer) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintf(bw, "# Hybrid Search: \"%s\"\n\n", r.Query)

	if len(r.Database) > 0 {
		fmt.Fprintf(bw, "## Database (%d matches)\n\n", len(r.Database))
		for _, res := range r.Database {
			fmt.Fprintf(bw, "- [%s] (imp: %d) %s\n", res.EntryType, res.Importance, res.Content)
		}
		bw.WriteString("\n")
	}

	if len(r.Curated) > 0 {
		fmt.Fprintf(bw, "## %s (%d matches)\n\n", model.SourceCurated, len(r.Curated))
		for _, res := range r.Curated {
			fmt.Fprintf(bw, "- (line %d) %s\n", res.Line, res.Content)
		}
		bw.WriteString("\n")
	}

	if len(r.Logs) > 0 {
		fmt.Fprintf(bw, "## Daily Logs (%d matches)\n\n", len(r.Logs))
		for _, res := range r.Logs {
			fmt.Fprintf(bw, "- [%s] %s\n", res.Source, res.Content)
		}
		bw.WriteString("\n")
	}

	if len(r.Errors) > 0 {
		bw.WriteString("## Unavailable Sources\n\n")
		for _, e := range r.Errors {
			fmt.Fprintf(bw, "- %s\n", e.Error())
		}
		bw.WriteString("\n")
	}

	if total := r.Total(); total == 0 {
		fmt.Fprintf(bw, "No results found for '%s'\n", r.Query)
	} else {
		fmt.Fprintf(bw, "---\nTotal: %d results across all sources\n", total)
	}
	return bw.Flush()
}
