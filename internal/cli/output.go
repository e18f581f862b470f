package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"
)

const (
	outputText = "text"
	outputJSON = "json"
	outputYAML = "yaml"
)

// writeOutput prints v as JSON or YAML, or calls text for the plain format.
// A nil text prints JSON.
func writeOutput(w io.Writer, format string, v any, text func(io.Writer) error) error {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", outputText:
		if text == nil {
			return writeOutput(w, outputJSON, v, nil)
		}
		return text(w)
	case outputJSON:
		b, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(b))
		return err
	case outputYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown output format %q (use text, json, or yaml)", format)
	}
}

// printJSON is the plain JSON printer used by the non-memory commands.
func printJSON(w io.Writer, v any) {
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Fprintln(w, string(b))
}

// writeMarkdown prints md, styled with glamour when render is set and w is
// a terminal. Pipes always get the plain text.
func writeMarkdown(w io.Writer, md string, render bool) error {
	if render {
		if width, ok := terminalWidth(w); ok {
			r, err := glamour.NewTermRenderer(
				glamour.WithAutoStyle(),
				glamour.WithWordWrap(width-4),
			)
			if err == nil {
				out, err := r.Render(md)
				if err == nil {
					_, err = io.WriteString(w, out)
					return err
				}
			}
			logger.Debug("glamour render failed, printing plain markdown")
		}
	}
	_, err := io.WriteString(w, md)
	return err
}

func terminalWidth(w io.Writer) (int, bool) {
	f, ok := w.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return 0, false
	}
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil || width < 20 {
		width = 80
	}
	return width, true
}
