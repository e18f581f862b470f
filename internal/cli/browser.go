package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/milohq/milo-memory/internal/apperr"
	"github.com/milohq/milo-memory/internal/cdp"
)

var browserActions = []string{"navigate", "screenshot", "get_text", "get_html", "click", "type", "evaluate", "wait_for"}

func init() {
	cmd := &cobra.Command{
		Use:   "browser",
		Short: "Drive a running browser through its remote-debugging port",
		Long: "Connects to the first page target of a browser started with\n" +
			"--remote-debugging-port and runs one action. Results are printed as JSON.",
		Args: cobra.NoArgs,
		Run:  runBrowser,
	}

	cmd.Flags().StringP("action", "a", "", fmt.Sprintf("Action: %v", browserActions))
	cmd.Flags().String("url", "", "URL to navigate to")
	cmd.Flags().String("selector", "", "CSS selector of the target element")
	cmd.Flags().String("text", "", "Text to type")
	cmd.Flags().String("expression", "", "JavaScript expression to evaluate")
	cmd.Flags().StringP("output", "o", "", "File to save a screenshot to")
	cmd.Flags().Bool("full-page", false, "Capture the whole page, not just the viewport")
	cmd.Flags().Bool("no-clear", false, "Keep the field's existing value when typing")
	cmd.Flags().Int("timeout", 10, "Seconds to wait for --selector (wait_for)")
	cmd.Flags().String("host", "", "Debugger host (default: cdp.host)")
	cmd.Flags().Int("port", 0, "Debugger port (default: cdp.port)")

	RootCmd.AddCommand(cmd)
}

func runBrowser(cmd *cobra.Command, args []string) {
	action, _ := cmd.Flags().GetString("action")
	host, _ := cmd.Flags().GetString("host")
	port, _ := cmd.Flags().GetInt("port")
	if host == "" {
		host = cfg.CDPHost
	}
	if port <= 0 {
		port = cfg.CDPPort
	}

	ctx := cmd.Context()
	wsURL, err := cdp.DiscoverTarget(ctx, host, port)
	if err != nil {
		exitErr(cmd, "browser", err)
	}
	sess, err := cdp.Dial(ctx, wsURL, cdp.Options{
		Timeout: cfg.CDPTimeout,
		Settle:  time.Second,
		Logger:  logger,
	})
	if err != nil {
		exitErr(cmd, "browser", err)
	}
	defer sess.Close()

	result, err := browserAction(ctx, cmd, sess, action)
	if err != nil {
		exitErr(cmd, "browser "+action, err)
	}
	printJSON(cmd.OutOrStdout(), result)
}

func browserAction(ctx context.Context, cmd *cobra.Command, sess *cdp.Session, action string) (any, error) {
	f := cmd.Flags()
	url, _ := f.GetString("url")
	selector, _ := f.GetString("selector")
	text, _ := f.GetString("text")
	expression, _ := f.GetString("expression")
	output, _ := f.GetString("output")
	fullPage, _ := f.GetBool("full-page")
	noClear, _ := f.GetBool("no-clear")
	timeout, _ := f.GetInt("timeout")

	need := func(flag, value string) error {
		if value == "" {
			return apperr.Validation("browser", "--%s is required for %s", flag, action)
		}
		return nil
	}

	switch action {
	case "navigate":
		if err := need("url", url); err != nil {
			return nil, err
		}
		return sess.Navigate(ctx, url)

	case "screenshot":
		png, err := sess.CaptureScreenshot(ctx, fullPage)
		if err != nil {
			return nil, err
		}
		if output == "" {
			return map[string]any{"status": "captured", "size_bytes": len(png)}, nil
		}
		if err := os.WriteFile(output, png, 0o644); err != nil {
			return nil, err
		}
		return map[string]any{"status": "saved", "path": output, "size_bytes": len(png)}, nil

	case "get_text":
		s, err := sess.GetText(ctx, selector)
		if err != nil {
			return nil, err
		}
		return map[string]string{"text": s}, nil

	case "get_html":
		s, err := sess.GetHTML(ctx, selector)
		if err != nil {
			return nil, err
		}
		return map[string]string{"html": s}, nil

	case "click":
		if err := need("selector", selector); err != nil {
			return nil, err
		}
		return sess.Click(ctx, selector)

	case "type":
		if err := need("selector", selector); err != nil {
			return nil, err
		}
		if err := sess.Type(ctx, selector, text, !noClear); err != nil {
			return nil, err
		}
		return map[string]any{"status": "typed", "selector": selector, "length": len([]rune(text))}, nil

	case "evaluate":
		if err := need("expression", expression); err != nil {
			return nil, err
		}
		res, err := sess.Evaluate(ctx, expression)
		if err != nil {
			return nil, err
		}
		if len(res.Value) == 0 {
			res.Value = json.RawMessage("null")
		}
		return res, nil

	case "wait_for", "wait":
		if err := need("selector", selector); err != nil {
			return nil, err
		}
		err := sess.WaitFor(ctx, selector, time.Duration(timeout)*time.Second)
		if apperr.Is(err, apperr.KindExternalTimeout) {
			return map[string]any{"status": "timeout", "selector": selector, "waited_s": timeout}, nil
		}
		if err != nil {
			return nil, err
		}
		return map[string]string{"status": "found", "selector": selector}, nil

	default:
		return nil, apperr.Validation("browser", "unknown action %q, available: %v", action, browserActions)
	}
}
