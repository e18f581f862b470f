package cdp

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/milohq/milo-memory/internal/apperr"
)

type fakeRequest struct {
	ID     int64           `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
}

// fakeBrowser answers debugger calls through handle. A nil result from
// handle means no reply is sent.
type fakeBrowser struct {
	t      *testing.T
	srv    *httptest.Server
	handle func(req fakeRequest) any

	mu   sync.Mutex
	seen []fakeRequest
}

func newFakeBrowser(t *testing.T, handle func(req fakeRequest) any) *fakeBrowser {
	t.Helper()
	fb := &fakeBrowser{t: t, handle: handle}
	mux := http.NewServeMux()
	mux.HandleFunc("/json", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]Target{
			{ID: "bg", Type: "service_worker", WebSocketDebuggerURL: fb.wsURL() + "/devtools/sw"},
			{ID: "p1", Type: "page", Title: "Example", WebSocketDebuggerURL: fb.wsURL() + "/devtools/page/p1"},
		})
	})
	mux.HandleFunc("/devtools/page/p1", fb.serveWS)
	fb.srv = httptest.NewServer(mux)
	t.Cleanup(fb.srv.Close)
	return fb
}

func (fb *fakeBrowser) wsURL() string {
	return "ws" + strings.TrimPrefix(fb.srv.URL, "http")
}

func (fb *fakeBrowser) hostPort() (string, int) {
	u, _ := url.Parse(fb.srv.URL)
	port, _ := strconv.Atoi(u.Port())
	return u.Hostname(), port
}

func (fb *fakeBrowser) serveWS(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()
	for {
		var req fakeRequest
		if err := conn.ReadJSON(&req); err != nil {
			return
		}
		fb.mu.Lock()
		fb.seen = append(fb.seen, req)
		fb.mu.Unlock()

		// Events and stale replies arrive before the real one.
		conn.WriteJSON(map[string]any{"method": "Page.frameStartedLoading", "params": map[string]any{}})
		conn.WriteJSON(map[string]any{"id": req.ID + 1000, "result": map[string]any{}})

		reply := fb.handle(req)
		if reply == nil {
			continue
		}
		if err := conn.WriteJSON(reply); err != nil {
			return
		}
	}
}

func (fb *fakeBrowser) requests() []fakeRequest {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return append([]fakeRequest(nil), fb.seen...)
}

func ok(id int64, result any) map[string]any {
	return map[string]any{"id": id, "result": result}
}

func evalValue(id int64, v any) map[string]any {
	return ok(id, map[string]any{"result": map[string]any{"type": "object", "value": v}})
}

func dial(t *testing.T, fb *fakeBrowser, opts Options) *Session {
	t.Helper()
	host, port := fb.hostPort()
	wsURL, err := DiscoverTarget(context.Background(), host, port)
	require.NoError(t, err)
	require.True(t, strings.HasSuffix(wsURL, "/devtools/page/p1"), wsURL)

	s, err := Dial(context.Background(), wsURL, opts)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCallMatchesReplyID(t *testing.T) {
	fb := newFakeBrowser(t, func(req fakeRequest) any {
		return ok(req.ID, map[string]any{"method": req.Method})
	})
	s := dial(t, fb, Options{Timeout: 2 * time.Second})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		raw, err := s.Call(ctx, "Browser.getVersion", nil)
		require.NoError(t, err)
		assert.JSONEq(t, `{"method":"Browser.getVersion"}`, string(raw))
	}

	reqs := fb.requests()
	require.Len(t, reqs, 3)
	assert.Equal(t, []int64{1, 2, 3}, []int64{reqs[0].ID, reqs[1].ID, reqs[2].ID})
}

func TestCallIDsAreUniqueAcrossGoroutines(t *testing.T) {
	fb := newFakeBrowser(t, func(req fakeRequest) any { return ok(req.ID, nil) })
	s := dial(t, fb, Options{Timeout: 2 * time.Second})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Call(context.Background(), "Runtime.enable", nil)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	seen := map[int64]bool{}
	for _, r := range fb.requests() {
		assert.False(t, seen[r.ID], "duplicate id %d", r.ID)
		seen[r.ID] = true
	}
	assert.Len(t, seen, 8)
}

func TestCallProtocolError(t *testing.T) {
	fb := newFakeBrowser(t, func(req fakeRequest) any {
		return map[string]any{"id": req.ID, "error": map[string]any{"code": -32601, "message": "'Nope.nope' wasn't found"}}
	})
	s := dial(t, fb, Options{Timeout: 2 * time.Second})

	_, err := s.Call(context.Background(), "Nope.nope", nil)
	require.Error(t, err)
	var pe *ProtocolError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, -32601, pe.Code)
}

func TestCallTimeout(t *testing.T) {
	fb := newFakeBrowser(t, func(fakeRequest) any { return nil })
	s := dial(t, fb, Options{Timeout: 150 * time.Millisecond})

	start := time.Now()
	_, err := s.Call(context.Background(), "Page.navigate", map[string]any{"url": "about:blank"})
	assert.True(t, apperr.Is(err, apperr.KindExternalTimeout), "got %v", err)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestCallRequiresMethod(t *testing.T) {
	fb := newFakeBrowser(t, func(req fakeRequest) any { return ok(req.ID, nil) })
	s := dial(t, fb, Options{})
	_, err := s.Call(context.Background(), " ", nil)
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestActions(t *testing.T) {
	png := []byte{0x89, 'P', 'N', 'G'}
	fb := newFakeBrowser(t, func(req fakeRequest) any {
		switch req.Method {
		case "Page.navigate":
			return ok(req.ID, map[string]any{"frameId": "F1"})
		case "Page.captureScreenshot":
			return ok(req.ID, map[string]any{"data": base64.StdEncoding.EncodeToString(png)})
		case "Runtime.evaluate":
			var p struct{ Expression string }
			json.Unmarshal(req.Params, &p)
			switch {
			case strings.Contains(p.Expression, "getBoundingClientRect") && strings.Contains(p.Expression, `"#missing"`):
				return evalValue(req.ID, nil)
			case strings.Contains(p.Expression, "getBoundingClientRect"):
				return evalValue(req.ID, map[string]any{"x": 10.5, "y": 20})
			case strings.Contains(p.Expression, "innerText"):
				return evalValue(req.ID, "Hello")
			default:
				return evalValue(req.ID, 42)
			}
		default:
			return ok(req.ID, map[string]any{})
		}
	})
	s := dial(t, fb, Options{Timeout: 2 * time.Second})
	ctx := context.Background()

	nav, err := s.Navigate(ctx, "https://example.com")
	require.NoError(t, err)
	assert.Equal(t, "F1", nav.FrameID)

	text, err := s.GetText(ctx, `h1[data-x="a"]`)
	require.NoError(t, err)
	assert.Equal(t, "Hello", text)

	ev, err := s.Evaluate(ctx, "6*7")
	require.NoError(t, err)
	assert.JSONEq(t, "42", string(ev.Value))

	shot, err := s.CaptureScreenshot(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, png, shot)

	click, err := s.Click(ctx, "#submit")
	require.NoError(t, err)
	assert.Equal(t, 10.5, click.X)
	assert.Equal(t, 20.0, click.Y)

	_, err = s.Click(ctx, "#missing")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	require.NoError(t, s.Type(ctx, "#q", "hi", true))

	var keyEvents int
	for _, r := range fb.requests() {
		if r.Method == "Input.dispatchKeyEvent" {
			keyEvents++
		}
	}
	assert.Equal(t, 4+2*2, keyEvents)
}

func TestDiscoverUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	u, _ := url.Parse(srv.URL)
	port, _ := strconv.Atoi(u.Port())

	_, err := DiscoverTarget(context.Background(), u.Hostname(), port)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--remote-debugging-port")
}

func TestDiscoverFallsBackToVersion(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/json", func(w http.ResponseWriter, r *http.Request) { w.Write([]byte(`[]`)) })
	mux.HandleFunc("/json/version", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"webSocketDebuggerUrl":"ws://x/devtools/browser/b"}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()
	u, _ := url.Parse(srv.URL)
	port, _ := strconv.Atoi(u.Port())

	wsURL, err := DiscoverTarget(context.Background(), u.Hostname(), port)
	require.NoError(t, err)
	assert.Equal(t, "ws://x/devtools/browser/b", wsURL)
}

func TestJSString(t *testing.T) {
	assert.Equal(t, `"a\"b"`, jsString(`a"b`))
}
