package api_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/linkguard/internal/api/apierr"
	"github.com/mcoot/linkguard/internal/api/response"
	"github.com/mcoot/linkguard/internal/config"
	"github.com/mcoot/linkguard/internal/factory"
	"github.com/mcoot/linkguard/internal/model"
	"github.com/mcoot/linkguard/internal/services/admin"
	"github.com/mcoot/linkguard/internal/services/login"
)

const (
	steveID   = "8667ba71-b85a-4004-af54-457a9734eed7"
	alexID    = "ec561538-f3fd-461d-aff5-086b22154bce"
	chatSteve = "123456789012345678"
	chatAlex  = "876543210987654321"
)

// testServer wraps a test app and its router
type testServer struct {
	app *factory.TestApp
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	return newTestServerWithSettings(t, factory.TestSettings())
}

func newTestServerWithSettings(t *testing.T, settings config.Settings) *testServer {
	t.Helper()
	app := factory.NewTestAppWithSettings(settings)
	app.FakeProvider.Register("steve-code", model.ChatUser{ID: chatSteve, Username: "steve"})
	app.FakeProvider.Register("alex-code", model.ChatUser{ID: chatAlex, Username: "alex"})
	t.Cleanup(func() { _ = app.Close() })
	return &testServer{app: app}
}

func (ts *testServer) request(method, path string, body any, token string) *httptest.ResponseRecorder {
	var reqBody *bytes.Buffer
	if body != nil {
		b, _ := json.Marshal(body)
		reqBody = bytes.NewBuffer(b)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rr := httptest.NewRecorder()
	ts.app.Router.ServeHTTP(rr, req)
	return rr
}

func (ts *testServer) game(method, path string, body any) *httptest.ResponseRecorder {
	return ts.request(method, "/api/v1/game"+path, body, factory.TestBridgeToken)
}

func (ts *testServer) admin(method, path string, body any) *httptest.ResponseRecorder {
	return ts.request(method, "/api/v1/admin"+path, body, factory.TestAdminToken)
}

func (ts *testServer) join(t *testing.T, playerID, name, address, kind string) response.JoinResponse {
	t.Helper()
	rr := ts.game(http.MethodPost, "/join", map[string]string{
		"player_id": playerID, "name": name, "address": address, "platform_kind": kind,
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var resp response.JoinResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	return resp
}

// link runs a primary join and the browser callback for playerID
func (ts *testServer) link(t *testing.T, playerID, name, address, code string) {
	t.Helper()
	resp := ts.join(t, playerID, name, address, "PRIMARY")
	require.Equal(t, string(login.JoinPendingLogin), resp.Outcome)

	rr := ts.request(http.MethodGet, "/oauth/callback?code="+code+"&state="+stateOf(t, resp.LoginURL), nil, "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
}

func stateOf(t *testing.T, loginURL string) string {
	t.Helper()
	u, err := url.Parse(loginURL)
	require.NoError(t, err)
	return u.Query().Get("state")
}

func errorCode(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var resp apierr.ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp), rr.Body.String())
	return resp.Error.Code
}

func TestHealthCheck(t *testing.T) {
	ts := newTestServer(t)
	ts.join(t, steveID, "Steve", "10.0.0.1", "PRIMARY")

	rr := ts.request(http.MethodGet, "/api/v1/health", nil, "")
	assert.Equal(t, http.StatusOK, rr.Code)

	var resp response.HealthResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 1, resp.OnlinePlayers)
}

func TestBridgeRequiresToken(t *testing.T) {
	ts := newTestServer(t)
	body := map[string]string{"address": "10.0.0.1"}

	tests := []struct {
		name  string
		token string
	}{
		{"missing", ""},
		{"wrong", "nope"},
		{"admin token", factory.TestAdminToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := ts.request(http.MethodPost, "/api/v1/game/prelogin", body, tt.token)
			assert.Equal(t, http.StatusUnauthorized, rr.Code)
			assert.Equal(t, apierr.CodeUnauthorized, errorCode(t, rr))
		})
	}
}

func TestAdminRequiresToken(t *testing.T) {
	ts := newTestServer(t)
	rr := ts.request(http.MethodGet, "/api/v1/admin/sessions", nil, factory.TestBridgeToken)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestEmptyTokenRejectsEverything(t *testing.T) {
	settings := factory.TestSettings()
	settings.Security.AdminToken = ""
	ts := newTestServerWithSettings(t, settings)

	assert.Equal(t, http.StatusUnauthorized, ts.request(http.MethodGet, "/api/v1/admin/sessions", nil, "").Code)
	assert.Equal(t, http.StatusUnauthorized, ts.request(http.MethodGet, "/api/v1/admin/sessions", nil, "x").Code)
}

func TestPreLogin(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.game(http.MethodPost, "/prelogin", map[string]string{"address": "10.0.0.1"})
	require.Equal(t, http.StatusOK, rr.Code)
	var resp response.PreLoginResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.False(t, resp.Banned)

	rr = ts.game(http.MethodPost, "/prelogin", map[string]string{"address": "not-an-ip"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, apierr.CodeInvalidAddress, errorCode(t, rr))
}

func TestJoinValidation(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name string
		body map[string]string
		code string
	}{
		{"bad player id", map[string]string{"player_id": "steve", "name": "Steve", "address": "10.0.0.1"}, apierr.CodeInvalidPlayerID},
		{"bad address", map[string]string{"player_id": steveID, "name": "Steve", "address": "::zz"}, apierr.CodeInvalidAddress},
		{"missing name", map[string]string{"player_id": steveID, "address": "10.0.0.1"}, apierr.CodeInvalidRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := ts.game(http.MethodPost, "/join", tt.body)
			assert.Equal(t, http.StatusBadRequest, rr.Code)
			assert.Equal(t, tt.code, errorCode(t, rr))
		})
	}
	assert.False(t, ts.app.Presence.IsOnline(model.PlayerID(steveID)))
}

func TestJoinUnlinkedPrimaryReturnsLoginLink(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.join(t, steveID, "Steve", "10.0.0.1", "PRIMARY")
	assert.Equal(t, string(login.JoinPendingLogin), resp.Outcome)
	assert.Contains(t, resp.LoginURL, factory.TestPublicURL+"/login?state=")

	var kinds []login.IntentKind
	for _, in := range resp.Intents {
		assert.False(t, in.ForChat())
		kinds = append(kinds, in.Kind)
	}
	assert.Contains(t, kinds, login.IntentShowLoginLink)
}

func TestJoinUnlinkedAlternateReturnsCode(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.join(t, alexID, "Alex", "10.0.0.2", "ALTERNATE")
	assert.Equal(t, string(login.JoinPendingLogin), resp.Outcome)
	assert.Len(t, resp.Code, 6)
	assert.Empty(t, resp.LoginURL)
}

func TestLoginRedirectsToProvider(t *testing.T) {
	ts := newTestServer(t)
	resp := ts.join(t, steveID, "Steve", "10.0.0.1", "PRIMARY")
	state := stateOf(t, resp.LoginURL)

	rr := ts.request(http.MethodGet, "/login?state="+state, nil, "")
	assert.Equal(t, http.StatusFound, rr.Code)
	assert.Contains(t, rr.Header().Get("Location"), "state="+state)

	rr = ts.request(http.MethodGet, "/login?state=bogus", nil, "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestCallbackLinksAndAllowsActions(t *testing.T) {
	ts := newTestServer(t)
	ts.link(t, steveID, "Steve", "10.0.0.1", "steve-code")

	rr := ts.game(http.MethodPost, "/allowed", map[string]string{"player_id": steveID, "address": "10.0.0.1"})
	require.Equal(t, http.StatusOK, rr.Code)
	var allowed response.AllowedResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &allowed))
	assert.True(t, allowed.Allowed)

	sent := ts.app.FakeChat.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, chatSteve, sent[0].Recipient)
}

func TestCallbackErrors(t *testing.T) {
	ts := newTestServer(t)
	resp := ts.join(t, steveID, "Steve", "10.0.0.1", "PRIMARY")
	state := stateOf(t, resp.LoginURL)

	rr := ts.request(http.MethodGet, "/oauth/callback?error=access_denied&state="+state, nil, "")
	assert.Equal(t, http.StatusBadGateway, rr.Code)

	rr = ts.request(http.MethodGet, "/oauth/callback?state="+state, nil, "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = ts.request(http.MethodGet, "/oauth/callback?code=unknown&state="+state, nil, "")
	assert.Equal(t, http.StatusBadGateway, rr.Code)

	// The failed exchange consumed the state
	rr = ts.request(http.MethodGet, "/oauth/callback?code=steve-code&state="+state, nil, "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestCallbackForbiddenForOtherIdentity(t *testing.T) {
	ts := newTestServer(t)
	ts.link(t, steveID, "Steve", "10.0.0.1", "steve-code")

	// A fresh handoff completed by a different chat identity
	token := ts.app.Sessions.CreateOAuthHandoff(model.PlayerID(steveID), "10.0.0.1", "Steve", model.PlatformPrimary)
	rr := ts.request(http.MethodGet, "/oauth/callback?code=alex-code&state="+token, nil, "")
	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestCallbackRedirectsWhenConfigured(t *testing.T) {
	settings := factory.TestSettings()
	settings.OAuth.PostLinkAction = "redirect"
	settings.OAuth.PostLinkURL = "https://example.com/welcome"
	ts := newTestServerWithSettings(t, settings)

	resp := ts.join(t, steveID, "Steve", "10.0.0.1", "PRIMARY")
	rr := ts.request(http.MethodGet, "/oauth/callback?code=steve-code&state="+stateOf(t, resp.LoginURL), nil, "")
	assert.Equal(t, http.StatusFound, rr.Code)
	assert.Equal(t, "https://example.com/welcome", rr.Header().Get("Location"))
}

func TestJoinFromNewAddressNotifiesOwner(t *testing.T) {
	ts := newTestServer(t)
	ts.link(t, steveID, "Steve", "10.0.0.1", "steve-code")

	resp := ts.join(t, steveID, "Steve", "203.0.113.9", "PRIMARY")
	assert.Equal(t, string(login.JoinPendingIPConfirm), resp.Outcome)

	sent := ts.app.FakeChat.Sent()
	require.Len(t, sent, 2)
	assert.Equal(t, chatSteve, sent[1].Recipient)
	assert.NotEmpty(t, sent[1].Message.Components)

	rr := ts.game(http.MethodPost, "/allowed", map[string]string{"player_id": steveID, "address": "203.0.113.9"})
	var allowed response.AllowedResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &allowed))
	assert.False(t, allowed.Allowed)
}

func TestLeaveMarksPlayerOffline(t *testing.T) {
	ts := newTestServer(t)
	ts.join(t, steveID, "Steve", "10.0.0.1", "PRIMARY")
	require.True(t, ts.app.Presence.IsOnline(model.PlayerID(steveID)))

	rr := ts.game(http.MethodPost, "/leave", map[string]string{"player_id": steveID})
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.False(t, ts.app.Presence.IsOnline(model.PlayerID(steveID)))
	assert.False(t, ts.app.Sessions.IsPendingLogin(model.PlayerID(steveID)))
}

func TestAdminBypass(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.admin(http.MethodPost, "/bypass/"+steveID, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, ts.app.Sessions.HasLimitBypass(model.PlayerID(steveID)))

	rr = ts.admin(http.MethodDelete, "/bypass/"+steveID, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var resp response.BypassResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.True(t, resp.Changed)
	assert.False(t, resp.Active)

	rr = ts.admin(http.MethodPost, "/bypass/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestAdminLinkAndUnlink(t *testing.T) {
	ts := newTestServer(t)

	// Unknown players cannot be linked
	rr := ts.admin(http.MethodPost, "/links", map[string]string{"chat_user_id": chatAlex, "player_id": alexID})
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, apierr.CodePlayerNotFound, errorCode(t, rr))

	ts.join(t, alexID, "Alex", "10.0.0.2", "ALTERNATE")
	rr = ts.admin(http.MethodPost, "/links", map[string]string{"chat_user_id": chatAlex, "player_id": alexID})
	require.Equal(t, http.StatusNoContent, rr.Code)
	assert.False(t, ts.app.Sessions.IsPendingLogin(model.PlayerID(alexID)))

	rr = ts.admin(http.MethodDelete, "/links/chat/"+chatAlex+"/player/"+alexID, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var resp response.UnlinkResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Removed)

	rr = ts.admin(http.MethodDelete, "/links/player/"+alexID, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, 0, resp.Removed)
}

func TestAdminLookup(t *testing.T) {
	ts := newTestServer(t)
	ts.link(t, steveID, "Steve", "10.0.0.1", "steve-code")

	for _, query := range []string{steveID, chatSteve, "Steve"} {
		rr := ts.admin(http.MethodGet, "/lookup/"+query, nil)
		require.Equal(t, http.StatusOK, rr.Code, query)
		var result admin.LookupResult
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &result))
		assert.Equal(t, query, result.Query)
	}

	rr := ts.admin(http.MethodGet, "/lookup/"+alexID, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	rr = ts.admin(http.MethodGet, "/lookup/99999999", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, apierr.CodeChatUserNotFound, errorCode(t, rr))
}

func TestAdminSessionsAndClear(t *testing.T) {
	ts := newTestServer(t)
	ts.join(t, steveID, "Steve", "10.0.0.1", "PRIMARY")

	rr := ts.admin(http.MethodGet, "/sessions", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var sessions admin.Sessions
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &sessions))
	require.Len(t, sessions.PendingLogins, 1)
	assert.Equal(t, model.PlayerID(steveID), sessions.PendingLogins[0].PlayerID)

	rr = ts.admin(http.MethodDelete, "/sessions/"+steveID+"/login", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var cleared response.ClearResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &cleared))
	assert.True(t, cleared.Cleared)
	assert.False(t, ts.app.Sessions.IsPendingLogin(model.PlayerID(steveID)))
}

func TestAdminForgive(t *testing.T) {
	ts := newTestServer(t)
	ts.link(t, steveID, "Steve", "10.0.0.1", "steve-code")
	ts.join(t, steveID, "Steve", "203.0.113.9", "PRIMARY")
	_, err := ts.app.Login.RejectIPChange(t.Context(), model.PlayerID(steveID), chatSteve)
	require.NoError(t, err)

	var pre response.PreLoginResponse
	rr := ts.game(http.MethodPost, "/prelogin", map[string]string{"address": "203.0.113.9"})
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &pre))
	assert.True(t, pre.Banned)
	assert.Equal(t, int64(30*60), pre.RemainingSeconds)

	rr = ts.admin(http.MethodPost, "/forgive/203.0.113.9", nil)
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = ts.game(http.MethodPost, "/prelogin", map[string]string{"address": "203.0.113.9"})
	pre = response.PreLoginResponse{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &pre))
	assert.False(t, pre.Banned)
}

func TestBrowserEndpointsAreRateLimited(t *testing.T) {
	settings := factory.TestSettings()
	settings.RateLimit.PerSecond = 0.001
	settings.RateLimit.Burst = 2
	ts := newTestServerWithSettings(t, settings)

	assert.Equal(t, http.StatusBadRequest, ts.request(http.MethodGet, "/login?state=x", nil, "").Code)
	assert.Equal(t, http.StatusBadRequest, ts.request(http.MethodGet, "/login?state=x", nil, "").Code)
	rr := ts.request(http.MethodGet, "/login?state=x", nil, "")
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, apierr.CodeRateLimited, errorCode(t, rr))

	// The bridge is not throttled
	for range 5 {
		assert.Equal(t, http.StatusOK, ts.game(http.MethodPost, "/prelogin", map[string]string{"address": "10.0.0.1"}).Code)
	}
}
