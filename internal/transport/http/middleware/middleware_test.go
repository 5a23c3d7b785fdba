package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"go-table-identity/internal/core/auth"
	resp "go-table-identity/internal/transport/http/response"
)

func init() { gin.SetMode(gin.TestMode) }

func serve(r *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func code(t *testing.T, w *httptest.ResponseRecorder) int {
	t.Helper()
	var r resp.Resp
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &r))
	return r.Code
}

func TestRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, c.GetString(KeyRequestID)) })

	w := serve(r, httptest.NewRequest(http.MethodGet, "/", nil))
	rid := w.Header().Get(KeyRequestID)
	require.Len(t, rid, 36)
	require.Equal(t, rid, w.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(KeyRequestID, "abc-123")
	w = serve(r, req)
	require.Equal(t, "abc-123", w.Header().Get(KeyRequestID))
}

func TestTimeout(t *testing.T) {
	r := gin.New()
	r.Use(Timeout(10 * time.Millisecond))
	r.GET("/slow", func(c *gin.Context) { <-c.Request.Context().Done() })
	r.GET("/fast", func(c *gin.Context) { c.JSON(http.StatusOK, resp.OK(nil)) })

	require.Equal(t, resp.CodeTimeout, code(t, serve(r, httptest.NewRequest(http.MethodGet, "/slow", nil))))
	require.Equal(t, resp.CodeOK, code(t, serve(r, httptest.NewRequest(http.MethodGet, "/fast", nil))))
}

func TestRateLimitPerIP(t *testing.T) {
	r := gin.New()
	r.Use(RateLimitPerIP(0.001, 1))
	r.GET("/", func(c *gin.Context) { c.JSON(http.StatusOK, resp.OK(nil)) })

	a := httptest.NewRequest(http.MethodGet, "/", nil)
	a.RemoteAddr = "10.0.0.1:1000"
	require.Equal(t, resp.CodeOK, code(t, serve(r, a)))
	require.Equal(t, resp.CodeTooManyRequests, code(t, serve(r, a)))

	b := httptest.NewRequest(http.MethodGet, "/", nil)
	b.RemoteAddr = "10.0.0.2:1000"
	require.Equal(t, resp.CodeOK, code(t, serve(r, b)))
}

func TestAuthJWT(t *testing.T) {
	j := &auth.JWTer{Secret: []byte("k"), Issuer: "t", TTL: time.Hour}
	r := gin.New()
	r.Use(AuthJWT(j, "admin"))
	r.GET("/", func(c *gin.Context) {
		cl, ok := ClaimsFrom(c)
		require.True(t, ok)
		c.JSON(http.StatusOK, resp.OK(gin.H{"uid": cl.UID}))
	})

	call := func(tok string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
		return code(t, serve(r, req))
	}

	require.Equal(t, resp.CodeUnauthorized, call(""))
	require.Equal(t, resp.CodeUnauthorized, call("garbage"))

	user, err := j.Issue("u1", "u@x.io", []string{"editor"})
	require.NoError(t, err)
	require.Equal(t, resp.CodeForbidden, call(user))

	admin, err := j.Issue("u2", "a@x.io", []string{"admin"})
	require.NoError(t, err)
	require.Equal(t, resp.CodeOK, call(admin))
}

func TestAccessLogMasksQuery(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	r := gin.New()
	r.Use(AccessLog(zap.New(core)))
	r.GET("/users", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	serve(r, httptest.NewRequest(http.MethodGet, "/users?limit=5&token=abc", nil))

	entries := logs.FilterMessage("HTTP").All()
	require.Len(t, entries, 1)
	q := entries[0].ContextMap()["query"].(map[string][]string)
	require.Equal(t, []string{"5"}, q["limit"])
	require.Equal(t, []string{"****"}, q["token"])
}

type roleCheckFunc func(ctx context.Context, userID, role string) (bool, error)

func (f roleCheckFunc) HasRole(ctx context.Context, userID, role string) (bool, error) {
	return f(ctx, userID, role)
}

func TestRequireStoredRole(t *testing.T) {
	stored := map[string]bool{"u1": true}
	var fail error
	check := roleCheckFunc(func(_ context.Context, uid, role string) (bool, error) {
		require.Equal(t, "admin", role)
		return stored[uid], fail
	})

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(KeyUserID, c.GetHeader("X-User"))
		c.Next()
	}, RequireStoredRole(check, "admin"))
	r.GET("/", func(c *gin.Context) { c.JSON(http.StatusOK, resp.OK(nil)) })

	call := func(uid string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-User", uid)
		return code(t, serve(r, req))
	}

	require.Equal(t, resp.CodeOK, call("u1"))
	require.Equal(t, resp.CodeForbidden, call("u2"))

	stored["u1"] = false
	require.Equal(t, resp.CodeForbidden, call("u1"))

	fail = errors.New("table down")
	require.Equal(t, resp.CodeStorageError, call("u1"))
}
