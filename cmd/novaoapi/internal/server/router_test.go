package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/dwnilii/novao/cmd/novaoapi/internal/auth"
	"github.com/dwnilii/novao/cmd/novaoapi/internal/db/bunx"
	"github.com/dwnilii/novao/cmd/novaoapi/internal/db/models"
	"github.com/dwnilii/novao/cmd/novaoapi/internal/gate"
	"github.com/dwnilii/novao/cmd/novaoapi/internal/gateway"
	novaomw "github.com/dwnilii/novao/cmd/novaoapi/internal/middleware"
	"github.com/dwnilii/novao/cmd/novaoapi/internal/migrations"
	"github.com/dwnilii/novao/cmd/novaoapi/internal/panel"
	"github.com/dwnilii/novao/cmd/novaoapi/internal/repository"
	"github.com/dwnilii/novao/cmd/novaoapi/internal/services/bridge"
	"github.com/dwnilii/novao/cmd/novaoapi/internal/services/iam"
	"github.com/dwnilii/novao/cmd/novaoapi/internal/settings"
	"github.com/dwnilii/novao/cmd/novaoapi/internal/telemetry"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

// fakePanel mimics the upstream panel's login and inbound API.
type fakePanel struct {
	mu       sync.Mutex
	paths    []string
	cookies  []string
	password string
}

func (p *fakePanel) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/login" {
		var creds panel.Credentials
		_ = json.NewDecoder(r.Body).Decode(&creds)
		if creds.Password != p.password {
			_, _ = w.Write([]byte(`{"success":false,"msg":"Wrong username or password"}`))
			return
		}
		w.Header().Add("Set-Cookie", "session=XYZ; Path=/; HttpOnly")
		_, _ = w.Write([]byte(`{"success":true,"msg":"Login successful","obj":null}`))
		return
	}

	p.mu.Lock()
	p.paths = append(p.paths, r.URL.RequestURI())
	p.cookies = append(p.cookies, r.Header.Get("Cookie"))
	p.mu.Unlock()

	if r.Header.Get("Cookie") != "session=XYZ" {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"success":false,"msg":"unauthorized"}`))
		return
	}
	_, _ = w.Write([]byte(`{"success": true, "obj": {"up": 1, "down": 2}}`))
}

type harness struct {
	server  *httptest.Server
	client  *http.Client
	panel   *fakePanel
	upURL   string
	users   *repository.BunUserRepository
	metrics *telemetry.Metrics
}

func bcryptHash(t *testing.T, s string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(s), bcrypt.MinCost)
	require.NoError(t, err)
	return string(h)
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ctx := context.Background()

	db, err := bunx.NewDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = bunx.Close(db) })
	_, err = migrations.Apply(ctx, db)
	require.NoError(t, err)

	settingRepo := repository.NewBunSettingRepository(db)
	userRepo := repository.NewBunUserRepository(db)
	panelCfg := settings.NewPanelConfig(settingRepo)

	issuer, err := auth.NewIssuer(testSecret)
	require.NoError(t, err)
	cookies := auth.NewCookies(false, "session", auth.NewBindingCodec(testSecret))

	pinGate, err := gate.New(gate.Options{
		PINHash:     bcryptHash(t, "4821"),
		MaxAttempts: 3,
		BaseLockout: time.Minute,
	})
	require.NoError(t, err)

	iamSvc := iam.NewService(userRepo, issuer, iam.AdminCredentials{
		Username:     "root",
		PasswordHash: bcryptHash(t, "hunter2"),
	})
	panelClient := panel.NewClient(panel.NewHTTPClient(2*time.Second), "session")
	metrics := telemetry.NewMetrics()

	enforcer, err := auth.InitEnforcer()
	require.NoError(t, err)
	authz, err := novaomw.NewAuthzMiddleware(enforcer)
	require.NoError(t, err)

	router := NewRouter(RouterOptions{
		IAM:        iamSvc,
		Gate:       pinGate,
		GatePasses: issuer,
		Bridge:     bridge.NewService(panelClient, panelCfg),
		Panel:      panelCfg,
		Settings:   settingRepo,
		Gateway: gateway.New(gateway.Options{
			Panel:   panelCfg,
			Client:  panelClient,
			Cookies: cookies,
			Metrics: metrics,
		}),
		Cookies:       cookies,
		Authz:         authz,
		Metrics:       metrics,
		ExposeMetrics: true,
	})

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	fake := &fakePanel{password: "panel-pw"}
	upstream := httptest.NewServer(fake)
	t.Cleanup(upstream.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)

	return &harness{
		server:  server,
		client:  &http.Client{Jar: jar},
		panel:   fake,
		upURL:   upstream.URL,
		users:   userRepo,
		metrics: metrics,
	}
}

func (h *harness) do(t *testing.T, method, path, body string) (int, string) {
	t.Helper()
	return h.doWith(t, method, path, body, nil)
}

func (h *harness) doWith(t *testing.T, method, path, body string, header http.Header) (int, string) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, h.server.URL+path, reader)
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range header {
		req.Header[k] = v
	}
	resp, err := h.client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(data)
}

func (h *harness) adminLogin(t *testing.T) {
	t.Helper()
	status, _ := h.do(t, http.MethodPost, "/auth/pin", `{"pin":"4821"}`)
	require.Equal(t, http.StatusOK, status)
	status, body := h.do(t, http.MethodPost, "/auth/admin/login", `{"username":"root","password":"hunter2"}`)
	require.Equal(t, http.StatusOK, status, body)
}

func TestRouter_Health(t *testing.T) {
	h := newHarness(t)
	status, body := h.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "OK", body)
}

func TestRouter_AdminFlowEndToEnd(t *testing.T) {
	h := newHarness(t)

	// Anonymous callers never reach the gateway.
	status, _ := h.do(t, http.MethodGet, "/api/panel/list", "")
	assert.Equal(t, http.StatusUnauthorized, status)

	// Credentials alone are refused until the PIN gate is passed.
	status, body := h.do(t, http.MethodPost, "/auth/admin/login", `{"username":"root","password":"hunter2"}`)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Contains(t, body, msgGateRequired)

	status, body = h.do(t, http.MethodPost, "/auth/pin", `{"pin":"0000"}`)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.JSONEq(t, `{"success":false,"message":"Invalid PIN"}`, body)

	h.adminLogin(t)

	status, body = h.do(t, http.MethodGet, "/auth/whoami", "")
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, `"scope":"admin"`)

	// No panel configured yet.
	status, _ = h.do(t, http.MethodGet, "/api/panel/list", "")
	assert.Equal(t, http.StatusInternalServerError, status)

	status, body = h.do(t, http.MethodGet, "/admin/panel/status", "")
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"configured":false,"bridged":false}`, body)

	// Wrong panel password is relayed with the panel's message.
	status, body = h.do(t, http.MethodPost, "/admin/panel/bridge",
		`{"panelUrl":"`+h.upURL+`","username":"admin","password":"nope"}`)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.JSONEq(t, `{"success":false,"msg":"Wrong username or password"}`, body)

	status, body = h.do(t, http.MethodPost, "/admin/panel/bridge",
		`{"panelUrl":"`+h.upURL+`","username":"admin","password":"panel-pw"}`)
	require.Equal(t, http.StatusOK, status, body)
	assert.JSONEq(t, `{"success":true,"msg":"Login successful","obj":null}`, body)

	status, body = h.do(t, http.MethodGet, "/admin/panel/status", "")
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, `"bridged":true`)

	status, body = h.do(t, http.MethodGet, "/api/panel/client/abc-123?lang=en", "")
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, `{"success":true,"obj":{"up":1,"down":2}}`, body)

	h.panel.mu.Lock()
	assert.Equal(t, []string{"/panel/api/inbounds/getClientTrafficsById/abc-123?lang=en"}, h.panel.paths)
	assert.Equal(t, []string{"session=XYZ"}, h.panel.cookies)
	h.panel.mu.Unlock()

	// Changing the panel URL invalidates the bridged session.
	status, _ = h.do(t, http.MethodPut, "/admin/settings/panelUrl", `{"value":"http://127.0.0.1:1"}`)
	require.Equal(t, http.StatusOK, status)
	status, _ = h.do(t, http.MethodGet, "/api/panel/list", "")
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = h.do(t, http.MethodPost, "/auth/logout", "")
	require.Equal(t, http.StatusOK, status)
	status, _ = h.do(t, http.MethodGet, "/auth/whoami", "")
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestRouter_PortalUser(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.users.Create(context.Background(), &models.User{
		Name:         "alice",
		PasswordHash: bcryptHash(t, "s3cret"),
		PlanTitle:    "Gold",
		Total:        100,
	}))

	status, body := h.do(t, http.MethodPost, "/auth/login", `{"username":"alice","password":"bad"}`)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.JSONEq(t, `{"message":"Invalid portal username or password."}`, body)

	status, body = h.do(t, http.MethodPost, "/auth/login", `{"username":"alice","password":"s3cret"}`)
	require.Equal(t, http.StatusOK, status, body)
	assert.Contains(t, body, `"planTitle":"Gold"`)
	assert.NotContains(t, body, "password")

	status, body = h.do(t, http.MethodGet, "/auth/whoami", "")
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, `"scope":"portal-user"`)
	assert.Contains(t, body, `"name":"alice"`)

	// Portal users can never use the gateway or admin settings.
	status, _ = h.do(t, http.MethodGet, "/api/panel/list", "")
	assert.Equal(t, http.StatusForbidden, status)
	status, _ = h.do(t, http.MethodGet, "/admin/settings", "")
	assert.Equal(t, http.StatusForbidden, status)
}

func TestRouter_PINLockout(t *testing.T) {
	h := newHarness(t)

	for i := 0; i < 2; i++ {
		status, _ := h.do(t, http.MethodPost, "/auth/pin", `{"pin":"0000"}`)
		require.Equal(t, http.StatusUnauthorized, status)
	}
	status, body := h.do(t, http.MethodPost, "/auth/pin", `{"pin":"0000"}`)
	assert.Equal(t, http.StatusTooManyRequests, status)
	assert.Contains(t, body, msgTooManyAttempts)

	// The correct PIN is not evaluated while locked.
	status, _ = h.do(t, http.MethodPost, "/auth/pin", `{"pin":"4821"}`)
	assert.Equal(t, http.StatusTooManyRequests, status)
}

func TestRouter_SettingsCRUD(t *testing.T) {
	h := newHarness(t)
	h.adminLogin(t)

	status, body := h.do(t, http.MethodGet, "/admin/settings", "")
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `[]`, body)

	status, body = h.do(t, http.MethodPut, "/admin/settings/siteTitle", `{"value":"Novao"}`)
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, `"value":"Novao"`)

	status, body = h.do(t, http.MethodGet, "/admin/settings/siteTitle", "")
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, `"key":"siteTitle"`)

	status, _ = h.do(t, http.MethodPut, "/admin/settings/panelUrl", `{"value":"  "}`)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = h.do(t, http.MethodDelete, "/admin/settings/siteTitle", "")
	assert.Equal(t, http.StatusNoContent, status)
	status, _ = h.do(t, http.MethodGet, "/admin/settings/siteTitle", "")
	assert.Equal(t, http.StatusNotFound, status)
}

func TestRouter_MetricsRequireAdmin(t *testing.T) {
	h := newHarness(t)

	status, _ := h.do(t, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusUnauthorized, status)

	h.adminLogin(t)
	status, body := h.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "novao_gate_attempts_total")
}

func TestRouter_PINLockoutIgnoresForwardingHeaders(t *testing.T) {
	h := newHarness(t)

	var statuses []int
	for i := 1; i <= 4; i++ {
		status, _ := h.doWith(t, http.MethodPost, "/auth/pin", `{"pin":"0000"}`, http.Header{
			"X-Forwarded-For": {"10.0.0." + strconv.Itoa(i)},
			"X-Real-Ip":       {"10.0.1." + strconv.Itoa(i)},
		})
		statuses = append(statuses, status)
	}
	assert.Equal(t, []int{
		http.StatusUnauthorized,
		http.StatusUnauthorized,
		http.StatusTooManyRequests,
		http.StatusTooManyRequests,
	}, statuses)
}

func TestRouter_PortalLoginReplacesAdminSession(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.users.Create(context.Background(), &models.User{
		Name:         "alice",
		PasswordHash: bcryptHash(t, "s3cret"),
	}))

	h.adminLogin(t)
	status, body := h.do(t, http.MethodPost, "/admin/panel/bridge",
		`{"panelUrl":"`+h.upURL+`","username":"admin","password":"panel-pw"}`)
	require.Equal(t, http.StatusOK, status, body)

	status, body = h.do(t, http.MethodPost, "/auth/login", `{"username":"alice","password":"s3cret"}`)
	require.Equal(t, http.StatusOK, status, body)

	status, body = h.do(t, http.MethodGet, "/auth/whoami", "")
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, `"scope":"portal-user"`)

	status, _ = h.do(t, http.MethodGet, "/api/panel/list", "")
	assert.Equal(t, http.StatusForbidden, status)

	serverURL, err := url.Parse(h.server.URL)
	require.NoError(t, err)
	var names []string
	for _, c := range h.client.Jar.Cookies(serverURL) {
		names = append(names, c.Name)
	}
	sort.Strings(names)
	assert.Equal(t, []string{auth.UserSessionCookieName}, names)
}

func TestRouter_FailedAdminLoginRestartsAtPIN(t *testing.T) {
	h := newHarness(t)

	status, _ := h.do(t, http.MethodPost, "/auth/pin", `{"pin":"4821"}`)
	require.Equal(t, http.StatusOK, status)

	status, _ = h.do(t, http.MethodPost, "/auth/admin/login", `{"username":"root","password":"wrong"}`)
	require.Equal(t, http.StatusUnauthorized, status)

	status, body := h.do(t, http.MethodPost, "/auth/admin/login", `{"username":"root","password":"hunter2"}`)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Contains(t, body, msgGateRequired)
}
