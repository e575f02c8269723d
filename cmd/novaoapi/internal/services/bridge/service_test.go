package bridge

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dwnilii/novao/cmd/novaoapi/internal/auth"
	"github.com/dwnilii/novao/cmd/novaoapi/internal/panel"
)

type mockPanelStore struct {
	writes []string
	err    error
}

func (m *mockPanelStore) SetPanelURL(_ context.Context, url string) error {
	if m.err != nil {
		return m.err
	}
	m.writes = append(m.writes, url)
	return nil
}

func newTestService(store *mockPanelStore) *Service {
	return NewService(panel.NewClient(panel.NewHTTPClient(2*time.Second), "session"), store)
}

func panelServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestBridge_EmptyPanelURL(t *testing.T) {
	store := &mockPanelStore{}
	_, err := newTestService(store).Bridge(context.Background(), "  ", "u", "p")

	var cfgErr *ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Empty(t, store.writes)
}

func TestBridge_WrappedFailureEnvelope(t *testing.T) {
	srv := panelServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":{"success":false,"msg":"bad creds"}}`))
	})
	store := &mockPanelStore{}

	_, err := newTestService(store).Bridge(context.Background(), srv.URL, "u", "wrong")

	var authErr *UpstreamAuthError
	require.True(t, errors.As(err, &authErr))
	assert.Equal(t, "bad creds", authErr.Message)
	assert.Equal(t, http.StatusOK, authErr.Status)
	assert.Empty(t, store.writes, "failed bridge must not touch settings")
}

func TestBridge_NonSuccessStatus(t *testing.T) {
	srv := panelServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("<html>oops</html>"))
	})

	_, err := newTestService(&mockPanelStore{}).Bridge(context.Background(), srv.URL, "u", "p")

	var authErr *UpstreamAuthError
	require.True(t, errors.As(err, &authErr))
	assert.Equal(t, http.StatusBadGateway, authErr.Status)
	assert.Equal(t, GenericFailureMessage, authErr.Message)
}

func TestBridge_MissingSessionCookie(t *testing.T) {
	srv := panelServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":true,"msg":"Login successful"}`))
	})
	store := &mockPanelStore{}

	_, err := newTestService(store).Bridge(context.Background(), srv.URL, "u", "p")
	assert.ErrorIs(t, err, ErrMissingSessionCookie)
	assert.Empty(t, store.writes)
}

func TestBridge_Success(t *testing.T) {
	srv := panelServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/login", r.URL.Path)
		w.Header().Add("Set-Cookie", "session=XYZ; Path=/")
		_, _ = w.Write([]byte(`{"success":true,"msg":"Login successful","obj":null}`))
	})
	store := &mockPanelStore{}

	result, err := newTestService(store).Bridge(context.Background(), srv.URL+"/", "admin", "pw")
	require.NoError(t, err)

	assert.Equal(t, "XYZ", result.Session.Token)
	assert.Equal(t, srv.URL, result.Session.PanelURL)
	assert.Equal(t, auth.SessionDuration, result.Session.ExpiresAt.Sub(result.Session.IssuedAt))
	assert.JSONEq(t, `{"success":true,"msg":"Login successful","obj":null}`, string(result.Body))
	assert.Equal(t, []string{srv.URL}, store.writes)
}

func TestBridge_PersistFailure(t *testing.T) {
	srv := panelServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Add("Set-Cookie", "session=XYZ; Path=/")
		_, _ = w.Write([]byte(`{"success":true}`))
	})

	_, err := newTestService(&mockPanelStore{err: errors.New("db down")}).Bridge(context.Background(), srv.URL, "u", "p")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "persist panel url")
}

func TestBridge_ConnectionError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := newTestService(&mockPanelStore{}).Bridge(context.Background(), url, "u", "p")

	var connErr *ConnectionError
	assert.True(t, errors.As(err, &connErr))
}
