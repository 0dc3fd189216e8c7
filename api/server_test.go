package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/tailored-agentic-units/lifeline/agent/mock"
	"github.com/tailored-agentic-units/lifeline/api"
	"github.com/tailored-agentic-units/lifeline/kernel"
	"github.com/tailored-agentic-units/lifeline/observability"
	"github.com/tailored-agentic-units/lifeline/session"
)

// --- Test helpers ---

type captureObserver struct {
	mu     sync.Mutex
	events []observability.Event
}

func (c *captureObserver) OnEvent(_ context.Context, e observability.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
}

func (c *captureObserver) requests() []observability.Event {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []observability.Event
	for _, e := range c.events {
		if e.Type == api.EventRequest {
			out = append(out, e)
		}
	}
	return out
}

func newKernel(t *testing.T, a *mock.MockAgent) *kernel.Kernel {
	t.Helper()

	if a == nil {
		a = mock.NewMockAgent(mock.WithReply("Estou aqui com você."))
	}
	cfg := kernel.DefaultConfig()
	k, err := kernel.New(&cfg,
		kernel.WithAgent(a),
		kernel.WithStore(session.NewMemoryStore()),
		kernel.WithObserver(observability.NoOpObserver{}),
	)
	if err != nil {
		t.Fatalf("kernel.New failed: %v", err)
	}
	t.Cleanup(func() { k.Close() })
	return k
}

func newTestServer(t *testing.T, k *kernel.Kernel, opts ...api.Option) *httptest.Server {
	t.Helper()

	if k == nil {
		k = newKernel(t, nil)
	}
	srv := httptest.NewServer(api.NewServer(k, opts...))
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, srv *httptest.Server, method, path, body string) (int, []byte) {
	t.Helper()

	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, srv.URL+path, r)
	if err != nil {
		t.Fatal(err)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	return resp.StatusCode, data
}

func decodeInto[T any](t *testing.T, data []byte) T {
	t.Helper()

	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		t.Fatalf("decode %s: %v", data, err)
	}
	return v
}

type transcriptBody struct {
	SessionID string            `json:"session_id"`
	State     session.State     `json:"state"`
	Messages  []session.Message `json:"messages"`
}

// --- Tests ---

func TestREST_EndToEnd(t *testing.T) {
	srv := newTestServer(t, nil)

	status, body := do(t, srv, http.MethodPost, "/api/sessions/s1/messages", `{"text":"oi"}`)
	if status != http.StatusOK {
		t.Fatalf("got status %d, want 200: %s", status, body)
	}
	reply := decodeInto[kernel.Reply](t, body)
	if reply.Kind != kernel.ReplyAssistant || reply.Text != "Estou aqui com você." {
		t.Errorf("got reply %+v, want assistant completion", reply)
	}

	status, body = do(t, srv, http.MethodPost, "/api/sessions/s1/messages", `{"text":"nao aguento mais"}`)
	if status != http.StatusOK {
		t.Fatalf("got status %d, want 200: %s", status, body)
	}
	if reply := decodeInto[kernel.Reply](t, body); reply.Kind != kernel.ReplyEscalated {
		t.Errorf("got reply kind %q, want %q", reply.Kind, kernel.ReplyEscalated)
	}

	_, body = do(t, srv, http.MethodGet, "/api/handoffs", "")
	if got := decodeInto[map[string][]string](t, body)["sessions"]; len(got) != 1 || got[0] != "s1" {
		t.Errorf("got handoff sessions %v, want [s1]", got)
	}

	status, body = do(t, srv, http.MethodPost, "/api/sessions/s1/operator-messages", `{"text":"Olá, estou aqui."}`)
	if status != http.StatusCreated {
		t.Fatalf("got status %d, want 201: %s", status, body)
	}
	if msg := decodeInto[session.Message](t, body); msg.Sender != session.SenderOperator {
		t.Errorf("got sender %q, want %q", msg.Sender, session.SenderOperator)
	}

	status, _ = do(t, srv, http.MethodDelete, "/api/sessions/s1/handoff", "")
	if status != http.StatusOK {
		t.Fatalf("got status %d, want 200", status)
	}

	_, body = do(t, srv, http.MethodGet, "/api/sessions/s1/messages", "")
	tr := decodeInto[transcriptBody](t, body)
	if tr.State != session.StateAIActive {
		t.Errorf("got state %q, want %q", tr.State, session.StateAIActive)
	}
	if len(tr.Messages) != 6 {
		t.Errorf("got %d messages, want 6", len(tr.Messages))
	}
}

func TestREST_RequestHuman(t *testing.T) {
	srv := newTestServer(t, nil)

	status, body := do(t, srv, http.MethodPost, "/api/sessions/new/handoff", "")
	if status != http.StatusOK {
		t.Fatalf("got status %d, want 200: %s", status, body)
	}

	var tr struct {
		Changed bool          `json:"changed"`
		To      session.State `json:"to"`
		Notice  *session.Message
	}
	if err := json.Unmarshal(body, &tr); err != nil {
		t.Fatal(err)
	}
	if !tr.Changed || tr.To != session.StateHumanActive || tr.Notice == nil {
		t.Errorf("got transition %s, want change to human_active with notice", body)
	}
}

func TestREST_UnknownTranscript(t *testing.T) {
	srv := newTestServer(t, nil)

	status, body := do(t, srv, http.MethodGet, "/api/sessions/nobody/messages", "")
	if status != http.StatusOK {
		t.Fatalf("got status %d, want 200", status)
	}
	if !bytes.Contains(body, []byte(`"messages":[]`)) {
		t.Errorf("got %s, want empty messages array", body)
	}
	if tr := decodeInto[transcriptBody](t, body); tr.State != session.StateAIActive {
		t.Errorf("got state %q, want %q", tr.State, session.StateAIActive)
	}
}

func TestREST_EmptyHandoffs(t *testing.T) {
	srv := newTestServer(t, nil)

	_, body := do(t, srv, http.MethodGet, "/api/handoffs", "")
	if !bytes.Contains(body, []byte(`"sessions":[]`)) {
		t.Errorf("got %s, want empty sessions array", body)
	}
}

func TestREST_Errors(t *testing.T) {
	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"empty text", http.MethodPost, "/api/sessions/s1/messages", `{"text":"  "}`, http.StatusBadRequest},
		{"missing text", http.MethodPost, "/api/sessions/s1/messages", `{}`, http.StatusBadRequest},
		{"invalid json", http.MethodPost, "/api/sessions/s1/messages", `{"text":`, http.StatusBadRequest},
		{"text too long", http.MethodPost, "/api/sessions/s1/messages", `{"text":"` + strings.Repeat("a", 2001) + `"}`, http.StatusBadRequest},
		{"session id too long", http.MethodPost, "/api/sessions/" + strings.Repeat("x", 129) + "/messages", `{"text":"oi"}`, http.StatusBadRequest},
		{"empty operator text", http.MethodPost, "/api/sessions/s1/operator-messages", `{"text":""}`, http.StatusBadRequest},
		{"wrong method", http.MethodPut, "/api/sessions/s1/messages", `{"text":"oi"}`, http.StatusMethodNotAllowed},
		{"wrong method on handoff", http.MethodGet, "/api/sessions/s1/handoff", "", http.StatusMethodNotAllowed},
		{"wrong method on operator messages", http.MethodDelete, "/api/sessions/s1/operator-messages", "", http.StatusMethodNotAllowed},
		{"wrong method on handoff list", http.MethodPost, "/api/handoffs", "", http.StatusMethodNotAllowed},
		{"unknown route", http.MethodGet, "/api/unknown", "", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, nil)

			status, body := do(t, srv, tt.method, tt.path, tt.body)
			if status != tt.want {
				t.Errorf("got status %d, want %d: %s", status, tt.want, body)
			}
		})
	}
}

func TestREST_ValidationLeavesTranscript(t *testing.T) {
	srv := newTestServer(t, nil)
	do(t, srv, http.MethodPost, "/api/sessions/s1/messages", `{"text":"oi"}`)

	do(t, srv, http.MethodPost, "/api/sessions/s1/messages", `{"text":""}`)

	_, body := do(t, srv, http.MethodGet, "/api/sessions/s1/messages", "")
	if tr := decodeInto[transcriptBody](t, body); len(tr.Messages) != 2 {
		t.Errorf("got %d messages, want 2", len(tr.Messages))
	}
}

func TestREST_UpstreamFailure(t *testing.T) {
	k := newKernel(t, mock.NewMockAgent(mock.WithError(errors.New("boom"))))
	srv := newTestServer(t, k)

	status, body := do(t, srv, http.MethodPost, "/api/sessions/s1/messages", `{"text":"oi"}`)
	if status != http.StatusOK {
		t.Fatalf("got status %d, want 200", status)
	}
	if reply := decodeInto[kernel.Reply](t, body); reply.Kind != kernel.ReplyUnavailable {
		t.Errorf("got reply kind %q, want %q", reply.Kind, kernel.ReplyUnavailable)
	}
}

func TestREST_RateLimit(t *testing.T) {
	srv := newTestServer(t, nil, api.WithRateLimit(0.001, 2))

	for i := range 2 {
		if status, body := do(t, srv, http.MethodPost, "/api/sessions/s1/messages", `{"text":"oi"}`); status != http.StatusOK {
			t.Fatalf("request %d: got status %d: %s", i, status, body)
		}
	}

	status, body := do(t, srv, http.MethodPost, "/api/sessions/s1/messages", `{"text":"oi"}`)
	if status != http.StatusTooManyRequests {
		t.Errorf("got status %d, want 429: %s", status, body)
	}

	if status, _ := do(t, srv, http.MethodPost, "/api/sessions/s2/messages", `{"text":"oi"}`); status != http.StatusOK {
		t.Errorf("other session got status %d, want 200", status)
	}

	_, body = do(t, srv, http.MethodGet, "/api/sessions/s1/messages", "")
	if tr := decodeInto[transcriptBody](t, body); len(tr.Messages) != 4 {
		t.Errorf("rate-limited message was recorded: got %d messages, want 4", len(tr.Messages))
	}
}

func TestREST_Health(t *testing.T) {
	srv := newTestServer(t, nil)

	status, body := do(t, srv, http.MethodGet, "/healthz", "")
	if status != http.StatusOK || !bytes.Contains(body, []byte(`"ok"`)) {
		t.Errorf("got %d %s, want 200 ok", status, body)
	}
}

func TestREST_RequestEvents(t *testing.T) {
	obs := &captureObserver{}
	srv := newTestServer(t, nil, api.WithObserver(obs))

	do(t, srv, http.MethodPost, "/api/sessions/s1/messages", `{"text":"oi"}`)
	do(t, srv, http.MethodPost, "/api/sessions/s1/messages", `{"text":""}`)

	events := obs.requests()
	if len(events) != 2 {
		t.Fatalf("got %d request events, want 2", len(events))
	}

	first := events[0]
	if first.Data["route"] != "/api/sessions/{id}/messages" {
		t.Errorf("got route %v, want template", first.Data["route"])
	}
	if first.Data["status"] != http.StatusOK || first.Level != observability.LevelInfo {
		t.Errorf("got status %v level %v, want 200 INFO", first.Data["status"], first.Level)
	}
	if _, ok := first.Data[observability.DataDuration]; !ok {
		t.Error("request event has no duration")
	}

	if events[1].Data["status"] != http.StatusBadRequest || events[1].Level != observability.LevelWarning {
		t.Errorf("got status %v level %v, want 400 WARN", events[1].Data["status"], events[1].Level)
	}
}

func TestREST_Metrics(t *testing.T) {
	prom := observability.NewPrometheusObserver("lifeline")
	srv := newTestServer(t, nil, api.WithObserver(prom), api.WithMetrics(prom.Handler()))

	do(t, srv, http.MethodGet, "/healthz", "")

	status, body := do(t, srv, http.MethodGet, "/metrics", "")
	if status != http.StatusOK {
		t.Fatalf("got status %d, want 200", status)
	}
	for _, want := range []string{
		`lifeline_events_total{level="INFO",type="api.request"} 1`,
		`lifeline_event_outcomes_total{outcome="200",type="api.request"} 1`,
		`lifeline_event_duration_seconds_count{type="api.request"} 1`,
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("metrics missing %q", want)
		}
	}
}

func TestREST_NoMetricsByDefault(t *testing.T) {
	srv := newTestServer(t, nil)

	if status, _ := do(t, srv, http.MethodGet, "/metrics", ""); status != http.StatusNotFound {
		t.Errorf("got status %d, want 404", status)
	}
}
