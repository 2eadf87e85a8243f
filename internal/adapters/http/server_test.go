package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	gatewayhttp "github.com/katlego-io/ussdflow/internal/adapters/http"
	"github.com/katlego-io/ussdflow/pkg/adapters/memory"
	"github.com/katlego-io/ussdflow/pkg/domain"
	"github.com/katlego-io/ussdflow/pkg/engine"
)

func testFlow() *domain.Flow {
	return &domain.Flow{
		ID:      "banking",
		Version: 1,
		Nodes: map[string]domain.Node{
			"start": {ID: "start", Kind: domain.KindStart},
			"main-menu": {ID: "main-menu", Kind: domain.KindMenu, Menu: &domain.MenuPayload{
				Title: "Welcome",
				Options: []domain.MenuOption{
					{Key: "1", Text: "Balance"},
					{Key: "2", Text: "Exit"},
				},
			}},
			"show-balance": {ID: "show-balance", Kind: domain.KindResponse, Response: &domain.ResponsePayload{Text: "Balance: 0"}},
			"goodbye":      {ID: "goodbye", Kind: domain.KindEnd, End: &domain.EndPayload{Text: "Goodbye"}},
		},
		Edges: []domain.Edge{
			{ID: "e1", SourceNodeID: "start", TargetNodeID: "main-menu"},
			{ID: "e2", SourceNodeID: "main-menu", TargetNodeID: "show-balance", OptionKey: "1"},
			{ID: "e3", SourceNodeID: "main-menu", TargetNodeID: "goodbye", OptionKey: "2"},
			{ID: "e4", SourceNodeID: "show-balance", TargetNodeID: "main-menu"},
		},
	}
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	flows := memory.NewFlowStore()
	require.NoError(t, flows.Put(context.Background(), testFlow()))

	eng := engine.New(flows, memory.NewSessionStore(), engine.WithSessionTimeout(time.Minute))
	srv := httptest.NewServer(gatewayhttp.NewHandler(eng, nil))
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

type screenBody struct {
	SessionID string `json:"session_id"`
	Text      string `json:"text"`
	Status    string `json:"status"`
	Reprompt  bool   `json:"reprompt"`
}

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func createSession(t *testing.T, srv *httptest.Server, phone string) screenBody {
	t.Helper()
	resp := postJSON(t, srv.URL+"/v1/sessions", map[string]string{
		"flow_id":      "banking",
		"phone_number": phone,
		"short_code":   "*123#",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return decode[screenBody](t, resp)
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t)
	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestCreateSession(t *testing.T) {
	srv := newTestServer(t)

	screen := createSession(t, srv, "+254700000001")
	assert.NotEmpty(t, screen.SessionID)
	assert.Equal(t, "Welcome\n1. Balance\n2. Exit", screen.Text)
	assert.Equal(t, "active", screen.Status)
}

func TestCreateSession_Validation(t *testing.T) {
	srv := newTestServer(t)

	resp := postJSON(t, srv.URL+"/v1/sessions", map[string]string{"flow_id": "banking"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "bad_request", decode[errorBody](t, resp).Code)

	resp = postJSON(t, srv.URL+"/v1/sessions", map[string]string{
		"flow_id": "missing", "phone_number": "+1", "short_code": "*1#",
	})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "not_found", decode[errorBody](t, resp).Code)
}

func TestCreateSession_Conflict(t *testing.T) {
	srv := newTestServer(t)
	createSession(t, srv, "+254700000002")

	resp := postJSON(t, srv.URL+"/v1/sessions", map[string]string{
		"flow_id": "banking", "phone_number": "+254700000002", "short_code": "*123#",
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "conflicting_active_session", decode[errorBody](t, resp).Code)
}

func TestProcessInput(t *testing.T) {
	srv := newTestServer(t)
	screen := createSession(t, srv, "+254700000003")
	base := fmt.Sprintf("%s/v1/sessions/%s", srv.URL, screen.SessionID)

	resp := postJSON(t, base+"/input", map[string]string{"input": "1"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[screenBody](t, resp)
	assert.Equal(t, "Balance: 0", body.Text)
	assert.Equal(t, "active", body.Status)
	assert.False(t, body.Reprompt)

	// A bad choice is a 200 re-prompt, not an error.
	resp = postJSON(t, base+"/input", map[string]string{"input": "9"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body = decode[screenBody](t, resp)
	assert.True(t, body.Reprompt)
	assert.Contains(t, body.Text, "Invalid choice.")
}

func TestProcessInput_CompletesSession(t *testing.T) {
	srv := newTestServer(t)
	screen := createSession(t, srv, "+254700000004")
	base := fmt.Sprintf("%s/v1/sessions/%s", srv.URL, screen.SessionID)

	resp := postJSON(t, base+"/input", map[string]string{"input": "2"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[screenBody](t, resp)
	assert.Equal(t, "Goodbye", body.Text)
	assert.Equal(t, "completed", body.Status)

	// The closed session no longer accepts input.
	resp = postJSON(t, base+"/input", map[string]string{"input": "1"})
	assert.Equal(t, http.StatusGone, resp.StatusCode)
	assert.Equal(t, "session_not_active", decode[errorBody](t, resp).Code)
}

func TestProcessInput_UnknownSession(t *testing.T) {
	srv := newTestServer(t)

	resp := postJSON(t, srv.URL+"/v1/sessions/nope/input", map[string]string{"input": "1"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestNavigate(t *testing.T) {
	srv := newTestServer(t)
	screen := createSession(t, srv, "+254700000005")
	base := fmt.Sprintf("%s/v1/sessions/%s", srv.URL, screen.SessionID)

	resp := postJSON(t, base+"/navigate", map[string]string{"node_id": "show-balance"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	session := decode[domain.Session](t, resp)
	assert.Equal(t, "show-balance", session.CurrentNodeID)

	resp = postJSON(t, base+"/navigate", map[string]string{"node_id": "ghost"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = postJSON(t, base+"/navigate", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestTerminateAndComplete(t *testing.T) {
	srv := newTestServer(t)
	screen := createSession(t, srv, "+254700000006")
	base := fmt.Sprintf("%s/v1/sessions/%s", srv.URL, screen.SessionID)

	resp := postJSON(t, base+"/terminate", map[string]string{"reason": "operator request"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	session := decode[domain.Session](t, resp)
	assert.Equal(t, domain.StatusTerminated, session.Status)
	assert.Equal(t, "operator request", session.TerminationReason)

	// Idempotent: completing a terminated session is a 200 no-op.
	resp = postJSON(t, base+"/complete", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	session = decode[domain.Session](t, resp)
	assert.Equal(t, domain.StatusTerminated, session.Status)
}

func TestGetActiveSession(t *testing.T) {
	srv := newTestServer(t)
	screen := createSession(t, srv, "+254700000007")

	resp, err := http.Get(srv.URL + "/v1/sessions/active?phone_number=%2B254700000007&short_code=*123%23")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	session := decode[domain.Session](t, resp)
	assert.Equal(t, screen.SessionID, session.SessionID)

	resp, err = http.Get(srv.URL + "/v1/sessions/active?phone_number=%2B000&short_code=*123%23")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/v1/sessions/active")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

// syncBuffer makes a bytes.Buffer safe to read while the server goroutine
// is still writing log lines.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestRequestLogging(t *testing.T) {
	flows := memory.NewFlowStore()
	require.NoError(t, flows.Put(context.Background(), testFlow()))
	eng := engine.New(flows, memory.NewSessionStore())

	var buf syncBuffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	srv := httptest.NewServer(gatewayhttp.NewHandler(eng, logger))
	t.Cleanup(srv.Close)

	resp := postJSON(t, srv.URL+"/v1/sessions", map[string]string{
		"flow_id": "banking", "phone_number": "+254700000099", "short_code": "*123#",
	})
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	require.Eventually(t, func() bool {
		return buf.String() != ""
	}, time.Second, 10*time.Millisecond)

	line := buf.String()
	assert.Contains(t, line, "method=POST")
	assert.Contains(t, line, "path=/v1/sessions")
	assert.Contains(t, line, "status=201")
	assert.Contains(t, line, "request_id=")
}

func TestSweep(t *testing.T) {
	srv := newTestServer(t)

	resp := postJSON(t, srv.URL+"/v1/sweep", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	defer resp.Body.Close()
	var body struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, 0, body.Count)
}
