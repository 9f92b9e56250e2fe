package admin

import (
	"crypto/rand"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"lockchat/internal/model"
	"lockchat/internal/service/server"
)

func newAdmin(t *testing.T) *Admin {
	t.Helper()

	dek := make([]byte, 32)
	_, err := rand.Read(dek)
	require.NoError(t, err)

	chat := server.New(dek, server.Options{})
	t.Cleanup(func() { chat.Close() })
	return New(chat)
}

func TestHealthz(t *testing.T) {
	a := newAdmin(t)

	rec := httptest.NewRecorder()
	a.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "ok", body["status"])
}

func TestSessions_EmptyRegistry(t *testing.T) {
	a := newAdmin(t)

	rec := httptest.NewRecorder()
	a.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/sessions", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var infos []server.SessionInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &infos))
	require.Empty(t, infos)
}

func TestMetrics_Exposed(t *testing.T) {
	a := newAdmin(t)

	rec := httptest.NewRecorder()
	a.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "lockchat_sessions_active")
}

func TestRedact_StripsMessageText(t *testing.T) {
	ev := redact(model.NewMessage("alice", "secret"))
	require.Empty(t, ev.Text)
	require.Equal(t, "alice", ev.Sender)

	sys := redact(model.NewSystem("alice joined"))
	require.Equal(t, "alice joined", sys.Text)
}
