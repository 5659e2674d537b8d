package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/tokenfield/pkg/cache"
	"github.com/matzehuels/tokenfield/pkg/errors"
	"github.com/matzehuels/tokenfield/pkg/observability"
	"github.com/matzehuels/tokenfield/pkg/pipeline"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	s := New(Config{Logger: log.New(io.Discard)})
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func post(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

const layoutBody = `{
  "scene": {"name": "Staging", "width": 1000, "height": 1000, "grid_size": 100},
  "actors": [
    {"id": "a1", "name": "Goblin", "prototype": {"width": 1, "height": 1}},
    {"id": "a2", "name": "Ogre", "prototype": {"width": 2, "height": 2}},
    {"id": "a3", "name": "Hero", "player_owned": true, "prototype": {"width": 1, "height": 1}}
  ],
  "options": {"spacing": {"item": 0, "letter_group": 0, "row": 0, "size_group": 0}}
}`

func TestHealthz(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body["status"] != "ok" || body["version"] == "" || body["commit"] == "" {
		t.Errorf("body = %v", body)
	}
}

func TestLayout(t *testing.T) {
	ts := newTestServer(t)
	resp := post(t, ts.URL+"/v1/layout", layoutBody)

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		t.Fatalf("status = %d: %s", resp.StatusCode, b)
	}
	var got LayoutResponse
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}

	if len(got.Placements) != 2 || len(got.Tokens) != 2 {
		t.Fatalf("placements=%d tokens=%d, want 2 and 2", len(got.Placements), len(got.Tokens))
	}
	if got.Tokens[0].Name != "Goblin" || got.Tokens[0].X != 0 || got.Tokens[0].Y != 0 {
		t.Errorf("first token = %+v", got.Tokens[0])
	}
	if got.Tokens[1].Name != "Ogre" || got.Tokens[1].Y != 100 {
		t.Errorf("second token = %+v", got.Tokens[1])
	}
	if got.Area.LimitX != 10 || got.Area.LimitY != 10 {
		t.Errorf("area = %+v", got.Area)
	}
}

func TestLayoutSVG(t *testing.T) {
	ts := newTestServer(t)
	resp := post(t, ts.URL+"/v1/layout?format=svg", layoutBody)

	if ct := resp.Header.Get("Content-Type"); ct != "image/svg+xml" {
		t.Errorf("Content-Type = %q", ct)
	}
	b, _ := io.ReadAll(resp.Body)
	if !bytes.HasPrefix(b, []byte("<svg")) || !bytes.Contains(b, []byte("Staging")) {
		t.Errorf("unexpected body: %.120s", b)
	}
}

func TestLayoutCached(t *testing.T) {
	c, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	runner := pipeline.NewRunner(pipeline.Collaborators{}, c, nil, log.New(io.Discard))
	ts := httptest.NewServer(New(Config{Runner: runner, Logger: log.New(io.Discard)}).Handler())
	defer ts.Close()

	var hits []bool
	for range 2 {
		resp := post(t, ts.URL+"/v1/layout", layoutBody)
		var got LayoutResponse
		if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
			t.Fatal(err)
		}
		hits = append(hits, got.Cached)
	}
	if hits[0] || !hits[1] {
		t.Errorf("cache hits = %v, want [false true]", hits)
	}
}

func TestLayoutErrors(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		status int
		code   errors.Code
	}{
		{
			name:   "malformed json",
			body:   `{"scene":`,
			status: http.StatusBadRequest,
			code:   errors.ErrCodeInvalidInput,
		},
		{
			name:   "unknown field",
			body:   `{"scene": {"grid_size": 100}, "bogus": 1}`,
			status: http.StatusBadRequest,
			code:   errors.ErrCodeInvalidInput,
		},
		{
			name:   "zero grid",
			body:   `{"scene": {"width": 100, "height": 100}}`,
			status: http.StatusBadRequest,
			code:   errors.ErrCodeConfiguration,
		},
		{
			name:   "unknown display mode",
			body:   `{"scene": {"width": 1000, "height": 1000, "grid_size": 100}, "actors": [{"id": "1", "name": "a"}], "options": {"display_mode": 7}}`,
			status: http.StatusBadRequest,
			code:   errors.ErrCodeConfiguration,
		},
		{
			name:   "too large",
			body:   `{"scene": {"width": 200, "height": 200, "grid_size": 100}, "actors": [{"id": "x", "name": "Tarrasque", "prototype": {"width": 3, "height": 3}}]}`,
			status: http.StatusUnprocessableEntity,
			code:   errors.ErrCodeItemTooLarge,
		},
		{
			name:   "overflow",
			body:   `{"scene": {"width": 200, "height": 100, "grid_size": 100}, "actors": [{"id": "1", "name": "a"}, {"id": "2", "name": "b"}, {"id": "3", "name": "c"}], "options": {"spacing": {}}}`,
			status: http.StatusUnprocessableEntity,
			code:   errors.ErrCodeVerticalOverflow,
		},
	}

	ts := newTestServer(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := post(t, ts.URL+"/v1/layout", tt.body)
			if resp.StatusCode != tt.status {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.status)
			}
			var body errorResponse
			if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
				t.Fatal(err)
			}
			if body.Code != tt.code {
				t.Errorf("code = %q, want %q (%s)", body.Code, tt.code, body.Message)
			}
		})
	}
}

func TestLayoutAllowPartial(t *testing.T) {
	ts := newTestServer(t)
	body := `{"scene": {"width": 200, "height": 100, "grid_size": 100},
	  "actors": [{"id": "1", "name": "a"}, {"id": "2", "name": "b"}, {"id": "3", "name": "c"}],
	  "options": {"spacing": {}, "allow_partial": true}}`

	resp := post(t, ts.URL+"/v1/layout", body)
	var got LayoutResponse
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if len(got.Tokens) != 2 || got.Skipped != 1 || got.Overflow == "" {
		t.Errorf("partial layout = %+v", got)
	}
}

func TestLayoutRejectsOtherContentTypes(t *testing.T) {
	ts := newTestServer(t)
	resp, err := http.Post(ts.URL+"/v1/layout", "text/plain", strings.NewReader(layoutBody))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnsupportedMediaType {
		t.Errorf("status = %d, want 415", resp.StatusCode)
	}
}

func TestToken(t *testing.T) {
	ts := newTestServer(t)
	resp := post(t, ts.URL+"/v1/token",
		`{"name": "Troll", "size_code": 5, "lantern": true, "click_x": 130, "click_y": 40, "grid_size": 100}`)

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var tok pipeline.Token
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		t.Fatal(err)
	}
	if tok.Name != "Troll" || tok.Width != 2 || tok.Light == nil || tok.Linked {
		t.Errorf("token = %+v", tok)
	}
}

func TestTokenInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"zero grid", `{"name": "Troll"}`},
		{"unknown disposition", `{"name": "Troll", "disposition": 5, "grid_size": 100}`},
		{"control characters", `{"name": "Tr\u0007oll", "grid_size": 100}`},
	}
	ts := newTestServer(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := post(t, ts.URL+"/v1/token", tt.body)
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", resp.StatusCode)
			}
		})
	}
}

type recordingHooks struct {
	mu        sync.Mutex
	requests  []string
	responses []int
}

func (h *recordingHooks) OnRequest(_ context.Context, method, path string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.requests = append(h.requests, method+" "+path)
}

func (h *recordingHooks) OnResponse(_ context.Context, _, _ string, status int, _ time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.responses = append(h.responses, status)
}

func TestHTTPHooks(t *testing.T) {
	hooks := &recordingHooks{}
	observability.SetHTTPHooks(hooks)
	t.Cleanup(observability.Reset)

	ts := newTestServer(t)
	post(t, ts.URL+"/v1/token", `{"name": "Troll"}`)

	hooks.mu.Lock()
	defer hooks.mu.Unlock()
	if len(hooks.requests) != 1 || hooks.requests[0] != "POST /v1/token" {
		t.Errorf("requests = %v", hooks.requests)
	}
	if len(hooks.responses) != 1 || hooks.responses[0] != http.StatusBadRequest {
		t.Errorf("responses = %v", hooks.responses)
	}
}

func TestServeShutdown(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	s := New(Config{Logger: log.New(io.Discard)})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	resp.Body.Close()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("serve() = %v, want nil after cancel", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{errors.New(errors.ErrCodeInvalidName, "x"), http.StatusBadRequest},
		{errors.New(errors.ErrCodeNotFound, "x"), http.StatusNotFound},
		{errors.New(errors.ErrCodeUnsupported, "x"), http.StatusNotImplemented},
		{&errors.ItemError{Kind: errors.ErrCodeItemTooLarge}, http.StatusUnprocessableEntity},
		{io.ErrUnexpectedEOF, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
