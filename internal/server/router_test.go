package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dengue-gen/denguegen-backend/internal/handlers"
	"github.com/dengue-gen/denguegen-backend/internal/kv"
	"github.com/dengue-gen/denguegen-backend/internal/logger"
	"github.com/dengue-gen/denguegen-backend/internal/middleware"
	"github.com/dengue-gen/denguegen-backend/internal/services"
	"github.com/dengue-gen/denguegen-backend/internal/socket"
	"github.com/dengue-gen/denguegen-backend/internal/types"
)

type testServer struct {
	router *gin.Engine
	token  string
}

func newTestServer(t *testing.T, upstreamURL string) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := logger.Nop()

	authService, err := services.NewAuthService(log, "test-secret", 24*time.Hour)
	require.NoError(t, err)
	avatarService, err := services.NewAvatarService(log, "", "")
	require.NoError(t, err)
	hub := socket.NewHub(log)
	sm := services.NewSessionManager(services.SessionManagerConfig{
		Store:    kv.NewMemoryStore(),
		Notifier: hub,
		Timings:  services.DefaultStatusTimings(),
		Log:      log,
	})
	t.Cleanup(sm.CloseAll)

	router := NewRouter(RouterConfig{
		Log:            log,
		AuthHandler:    handlers.NewAuthHandler(log, authService, sm, false),
		AuthMiddleware: middleware.NewAuthMiddleware(log, authService),
		ChatHandler:    handlers.NewChatHandler(log, services.NewMockChatService(log, 0)),
		ChatsHandler:   handlers.NewChatsHandler(log, sm),
		AvatarHandler:  handlers.NewAvatarHandler(log, avatarService, sm),
		ProxyHandler:   handlers.NewProxyHandler(log, services.NewProxyService(log, upstreamURL, nil)),
		SendLimiter:    middleware.NewRateLimiter(1000, 1000, log),
		WsHandler:      handlers.WsHandler(hub, log),
	})

	res, err := authService.Login(context.Background(), services.DemoUserEmail, services.DemoUserPassword)
	require.NoError(t, err)
	return &testServer{router: router, token: res.SessionToken}
}

func (ts *testServer) do(t *testing.T, method, path string, body interface{}, authed bool) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if authed {
		req.AddCookie(&http.Cookie{Name: types.SessionCookieName, Value: ts.token})
	}
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestAuthRoutes(t *testing.T) {
	ts := newTestServer(t, "")

	w := ts.do(t, http.MethodPost, "/api/auth", gin.H{"action": "login", "email": services.DemoUserEmail, "password": services.DemoUserPassword}, false)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode(t, w)["success"])
	cookie := w.Result().Cookies()
	require.NotEmpty(t, cookie)
	assert.Equal(t, types.SessionCookieName, cookie[0].Name)
	assert.True(t, cookie[0].HttpOnly)

	w = ts.do(t, http.MethodPost, "/api/auth", gin.H{"action": "login", "email": services.DemoUserEmail, "password": "nope"}, false)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, services.ErrCodeInvalidCredentials, decode(t, w)["errorCode"])

	w = ts.do(t, http.MethodPost, "/api/auth", gin.H{"action": "register", "name": "Ana", "email": services.TakenEmail, "password": "x"}, false)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, services.ErrCodeEmailTaken, decode(t, w)["errorCode"])

	w = ts.do(t, http.MethodPost, "/api/auth", gin.H{"action": "dance"}, false)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, http.MethodGet, "/api/auth?action=session", nil, false)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "null", strings.TrimSpace(w.Body.String()))

	w = ts.do(t, http.MethodGet, "/api/auth?action=session", nil, true)
	require.Equal(t, http.StatusOK, w.Code)
	user := decode(t, w)["user"].(map[string]interface{})
	assert.Equal(t, services.DemoUserID, user["id"])

	w = ts.do(t, http.MethodPost, "/api/auth", gin.H{"action": "logout"}, true)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestMockChatRoutes(t *testing.T) {
	ts := newTestServer(t, "")

	w := ts.do(t, http.MethodPost, "/api/chat", gin.H{"chatId": "c1", "content": "oi"}, false)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, http.MethodPost, "/api/chat", gin.H{"chatId": "c1", "content": "oi", "userId": "u1"}, false)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Contains(t, body, "message")
	assert.Contains(t, body, "aiResponse")

	w = ts.do(t, http.MethodGet, "/api/chat", nil, false)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, http.MethodGet, "/api/chat?chatId=c1&limit=1", nil, false)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode(t, w)["hasMore"])
}

func TestChatSessionRoutes(t *testing.T) {
	ts := newTestServer(t, "")

	w := ts.do(t, http.MethodGet, "/api/session", nil, false)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = ts.do(t, http.MethodGet, "/api/session", nil, true)
	require.Equal(t, http.StatusOK, w.Code)
	snap := decode(t, w)
	assert.Equal(t, "ready", snap["state"])
	assert.Equal(t, types.AssistantChatID, snap["activeChatId"])

	w = ts.do(t, http.MethodPost, "/api/chats", nil, true)
	require.Equal(t, http.StatusCreated, w.Code)
	chatID := decode(t, w)["id"].(string)

	w = ts.do(t, http.MethodPost, "/api/chats/"+chatID+"/messages", gin.H{"content": "   "}, true)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, services.MsgEmptyMessage, decode(t, w)["error"])

	w = ts.do(t, http.MethodPost, "/api/chats/"+chatID+"/messages", gin.H{"content": strings.Repeat("a", 4001)}, true)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, services.MsgMessageTooLong, decode(t, w)["error"])

	w = ts.do(t, http.MethodPost, "/api/chats/"+chatID+"/messages", gin.H{"content": "Quais os sintomas?"}, true)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "sending", decode(t, w)["status"])

	w = ts.do(t, http.MethodGet, "/api/chats?q=sintomas", nil, true)
	require.Equal(t, http.StatusOK, w.Code)
	chats := decode(t, w)["chats"].([]interface{})
	require.Len(t, chats, 1)

	w = ts.do(t, http.MethodGet, "/api/search?q=sintomas", nil, true)
	require.Equal(t, http.StatusOK, w.Code)
	found := decode(t, w)
	assert.Equal(t, false, found["noResults"])
	items := found["items"].([]interface{})
	require.Len(t, items, 1)
	item := items[0].(map[string]interface{})
	assert.Equal(t, "chat", item["kind"])
	assert.Equal(t, chatID, item["chat"].(map[string]interface{})["id"])

	w = ts.do(t, http.MethodPatch, "/api/chats/"+chatID, gin.H{"name": "Dúvidas"}, true)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Dúvidas", decode(t, w)["name"])

	w = ts.do(t, http.MethodGet, "/api/chats/"+chatID+"/avatar.png?size=32", nil, true)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))

	w = ts.do(t, http.MethodDelete, "/api/chats/"+chatID, nil, true)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = ts.do(t, http.MethodDelete, "/api/chats/"+chatID+"?confirm=true", nil, true)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, types.AssistantChatID, decode(t, w)["activeChatId"])

	w = ts.do(t, http.MethodPost, "/api/chats/"+chatID+"/select", nil, true)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSearchAndOnboardingRoutes(t *testing.T) {
	ts := newTestServer(t, "")

	w := ts.do(t, http.MethodPost, "/api/search/recent", gin.H{"term": "febre"}, true)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []interface{}{"febre"}, decode(t, w)["recent"])

	w = ts.do(t, http.MethodDelete, "/api/search/recent", nil, true)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = ts.do(t, http.MethodGet, "/api/onboarding", nil, true)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, decode(t, w)["completed"])

	w = ts.do(t, http.MethodPost, "/api/onboarding", nil, true)
	require.Equal(t, http.StatusOK, w.Code)

	w = ts.do(t, http.MethodGet, "/api/onboarding", nil, true)
	assert.Equal(t, true, decode(t, w)["completed"])
}

func TestProxyRoutes(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"path":"` + r.URL.Path + `"}`))
	}))
	defer upstream.Close()
	ts := newTestServer(t, upstream.URL)

	w := ts.do(t, http.MethodOptions, "/api/proxy/tactiq/proxy/client", nil, false)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "86400", w.Header().Get("Access-Control-Max-Age"))

	w = ts.do(t, http.MethodGet, "/api/proxy/tactiq/proxy/client", nil, false)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "/proxy/client", decode(t, w)["path"])
}

func TestSendRateLimit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	limiter := middleware.NewRateLimiter(0.001, 1, logger.Nop())
	r := gin.New()
	r.POST("/send", limiter.Limit("send_message"), func(c *gin.Context) { c.Status(http.StatusCreated) })

	send := func() int {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/send", nil))
		return w.Code
	}
	assert.Equal(t, http.StatusCreated, send())
	assert.Equal(t, http.StatusTooManyRequests, send())
}

func TestHealthAndMetrics(t *testing.T) {
	ts := newTestServer(t, "")
	w := ts.do(t, http.MethodGet, "/healthz", nil, false)
	assert.Equal(t, http.StatusOK, w.Code)

	w = ts.do(t, http.MethodGet, "/metrics", nil, false)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "denguegen_http_requests_total")
}
