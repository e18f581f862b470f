package cdp

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/milohq/milo-memory/internal/apperr"
)

// NavigateResult is returned by Navigate.
type NavigateResult struct {
	Status  string `json:"status"`
	URL     string `json:"url"`
	FrameID string `json:"frame_id,omitempty"`
}

// EvalResult is the value of an evaluated expression.
type EvalResult struct {
	Value       json.RawMessage `json:"value,omitempty"`
	Description string          `json:"description,omitempty"`
}

// ClickResult is returned by Click.
type ClickResult struct {
	Status   string  `json:"status"`
	Selector string  `json:"selector"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
}

type remoteObject struct {
	Result struct {
		Value       json.RawMessage `json:"value"`
		Description string          `json:"description"`
	} `json:"result"`
	ExceptionDetails *struct {
		Text string `json:"text"`
	} `json:"exceptionDetails"`
}

// Navigate loads url and waits for the page to settle.
func (s *Session) Navigate(ctx context.Context, url string) (*NavigateResult, error) {
	raw, err := s.Call(ctx, "Page.navigate", map[string]any{"url": url})
	if err != nil {
		return nil, err
	}
	var nav struct {
		FrameID   string `json:"frameId"`
		ErrorText string `json:"errorText"`
	}
	if err := json.Unmarshal(raw, &nav); err != nil {
		return nil, fmt.Errorf("decode Page.navigate: %w", err)
	}
	if nav.ErrorText != "" {
		return nil, fmt.Errorf("navigate %s: %s", url, nav.ErrorText)
	}
	if _, err := s.Call(ctx, "Page.enable", nil); err != nil {
		return nil, err
	}
	if err := sleep(ctx, s.opts.Settle); err != nil {
		return nil, err
	}
	return &NavigateResult{Status: "navigated", URL: url, FrameID: nav.FrameID}, nil
}

// Evaluate runs a JavaScript expression in the page and returns its value.
func (s *Session) Evaluate(ctx context.Context, expression string) (*EvalResult, error) {
	obj, err := s.evaluate(ctx, expression)
	if err != nil {
		return nil, err
	}
	return &EvalResult{Value: obj.Result.Value, Description: obj.Result.Description}, nil
}

func (s *Session) evaluate(ctx context.Context, expression string) (*remoteObject, error) {
	raw, err := s.Call(ctx, "Runtime.evaluate", map[string]any{
		"expression":    expression,
		"returnByValue": true,
	})
	if err != nil {
		return nil, err
	}
	var obj remoteObject
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, fmt.Errorf("decode Runtime.evaluate: %w", err)
	}
	if obj.ExceptionDetails != nil {
		return nil, fmt.Errorf("evaluate: %s", obj.ExceptionDetails.Text)
	}
	return &obj, nil
}

func (s *Session) evaluateString(ctx context.Context, expression string) (string, error) {
	obj, err := s.evaluate(ctx, expression)
	if err != nil {
		return "", err
	}
	var out string
	if len(obj.Result.Value) > 0 {
		if err := json.Unmarshal(obj.Result.Value, &out); err != nil {
			return "", fmt.Errorf("expected a string result: %w", err)
		}
	}
	return out, nil
}

// GetText returns the visible text of the page, or of the first element
// matching selector.
func (s *Session) GetText(ctx context.Context, selector string) (string, error) {
	js := "document.body.innerText"
	if selector != "" {
		js = fmt.Sprintf(`document.querySelector(%s)?.innerText || ""`, jsString(selector))
	}
	return s.evaluateString(ctx, js)
}

// GetHTML returns the page markup, or the outer HTML of the first element
// matching selector.
func (s *Session) GetHTML(ctx context.Context, selector string) (string, error) {
	js := "document.documentElement.outerHTML"
	if selector != "" {
		js = fmt.Sprintf(`document.querySelector(%s)?.outerHTML || ""`, jsString(selector))
	}
	return s.evaluateString(ctx, js)
}

// CaptureScreenshot returns a PNG of the viewport, or of the whole page.
func (s *Session) CaptureScreenshot(ctx context.Context, fullPage bool) ([]byte, error) {
	params := map[string]any{"format": "png"}
	if fullPage {
		raw, err := s.Call(ctx, "Page.getLayoutMetrics", nil)
		if err != nil {
			return nil, err
		}
		var layout struct {
			ContentSize struct {
				Width  float64 `json:"width"`
				Height float64 `json:"height"`
			} `json:"contentSize"`
		}
		if err := json.Unmarshal(raw, &layout); err != nil {
			return nil, fmt.Errorf("decode Page.getLayoutMetrics: %w", err)
		}
		w, h := layout.ContentSize.Width, layout.ContentSize.Height
		if w == 0 || h == 0 {
			w, h = 1920, 1080
		}
		params["clip"] = map[string]any{"x": 0, "y": 0, "width": w, "height": h, "scale": 1}
	}

	raw, err := s.Call(ctx, "Page.captureScreenshot", params)
	if err != nil {
		return nil, err
	}
	var shot struct {
		Data string `json:"data"`
	}
	if err := json.Unmarshal(raw, &shot); err != nil {
		return nil, fmt.Errorf("decode Page.captureScreenshot: %w", err)
	}
	return base64.StdEncoding.DecodeString(shot.Data)
}

// Click presses and releases the left mouse button at the centre of the
// first element matching selector.
func (s *Session) Click(ctx context.Context, selector string) (*ClickResult, error) {
	js := fmt.Sprintf(`(() => {
		const el = document.querySelector(%s);
		if (!el) return null;
		const r = el.getBoundingClientRect();
		return {x: r.x + r.width / 2, y: r.y + r.height / 2};
	})()`, jsString(selector))
	obj, err := s.evaluate(ctx, js)
	if err != nil {
		return nil, err
	}
	var pt *struct{ X, Y float64 }
	if len(obj.Result.Value) > 0 {
		if err := json.Unmarshal(obj.Result.Value, &pt); err != nil {
			return nil, fmt.Errorf("decode element position: %w", err)
		}
	}
	if pt == nil {
		return nil, apperr.NotFound("click", "element not found: %s", selector)
	}

	for _, typ := range []string{"mousePressed", "mouseReleased"} {
		if _, err := s.Call(ctx, "Input.dispatchMouseEvent", map[string]any{
			"type": typ, "x": pt.X, "y": pt.Y, "button": "left", "clickCount": 1,
		}); err != nil {
			return nil, err
		}
	}
	return &ClickResult{Status: "clicked", Selector: selector, X: pt.X, Y: pt.Y}, nil
}

// Type focuses the element matching selector and types text one key at a
// time, selecting and deleting the existing value first when clear is set.
func (s *Session) Type(ctx context.Context, selector, text string, clear bool) error {
	if _, err := s.evaluate(ctx, fmt.Sprintf(`document.querySelector(%s)?.focus()`, jsString(selector))); err != nil {
		return err
	}

	var events []map[string]any
	if clear {
		const ctrl = 2
		events = append(events,
			map[string]any{"type": "keyDown", "key": "a", "modifiers": ctrl},
			map[string]any{"type": "keyUp", "key": "a", "modifiers": ctrl},
			map[string]any{"type": "keyDown", "key": "Backspace"},
			map[string]any{"type": "keyUp", "key": "Backspace"},
		)
	}
	for _, r := range text {
		events = append(events,
			map[string]any{"type": "keyDown", "text": string(r)},
			map[string]any{"type": "keyUp", "key": string(r)},
		)
	}
	for _, ev := range events {
		if _, err := s.Call(ctx, "Input.dispatchKeyEvent", ev); err != nil {
			return err
		}
	}
	return nil
}

// WaitFor polls until an element matches selector or timeout elapses.
func (s *Session) WaitFor(ctx context.Context, selector string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	js := fmt.Sprintf(`!!document.querySelector(%s)`, jsString(selector))
	for {
		obj, err := s.evaluate(ctx, js)
		if err != nil {
			return err
		}
		if string(obj.Result.Value) == "true" {
			return nil
		}
		if time.Now().After(deadline) {
			return apperr.ExternalTimeout("wait for "+selector, fmt.Errorf("not present after %s", timeout))
		}
		if err := sleep(ctx, 250*time.Millisecond); err != nil {
			return err
		}
	}
}

// jsString quotes s as a JavaScript string literal.
func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
