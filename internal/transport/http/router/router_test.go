package router

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"go-table-identity/internal/core/auth"
	"go-table-identity/internal/core/tablestorage"
	"go-table-identity/internal/repo"
	"go-table-identity/internal/service"
)

func init() { gin.SetMode(gin.TestMode) }

type envelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

type harness struct {
	svc   *service.UserService
	api   *gin.Engine
	admin *gin.Engine
	jwt   *auth.JWTer
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	jwter := &auth.JWTer{Secret: []byte("test"), Issuer: "test", TTL: time.Hour}
	users := repo.NewUserStore(tablestorage.NewMemoryTable("Users"))
	svc := service.NewUserService(users, repo.NewRoleStore(), nil, jwter, nil)
	l := zap.NewNop()
	return &harness{
		svc:   svc,
		api:   NewAPIEngine(l, svc, jwter),
		admin: NewAdminEngine(l, svc, jwter),
		jwt:   jwter,
	}
}

func do(t *testing.T, h http.Handler, method, path, token string, body any) envelope {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

func TestAPI_RegisterLoginMe(t *testing.T) {
	h := newHarness(t)

	env := do(t, h.api, http.MethodPost, "/api/v1/auth/register", "", gin.H{"email": "alice@example.com", "password": "s3cret!"})
	require.Equal(t, 0, env.Code, env.Msg)
	var v service.View
	require.NoError(t, json.Unmarshal(env.Data, &v))
	require.NotEmpty(t, v.ID)
	require.Equal(t, []string{}, v.Roles)

	env = do(t, h.api, http.MethodPost, "/api/v1/auth/register", "", gin.H{"email": "Alice@example.com", "password": "s3cret!"})
	require.Equal(t, 409, env.Code)

	env = do(t, h.api, http.MethodPost, "/api/v1/auth/login", "", gin.H{"email": "alice@example.com", "password": "nope-nope"})
	require.Equal(t, 401, env.Code)

	env = do(t, h.api, http.MethodPost, "/api/v1/auth/login", "", gin.H{"email": "alice@example.com", "password": "s3cret!"})
	require.Equal(t, 0, env.Code, env.Msg)
	var lo struct {
		Token string       `json:"token"`
		User  service.View `json:"user"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &lo))
	require.NotEmpty(t, lo.Token)

	env = do(t, h.api, http.MethodGet, "/api/v1/me", lo.Token, nil)
	require.Equal(t, 0, env.Code, env.Msg)
	require.NoError(t, json.Unmarshal(env.Data, &v))
	require.Equal(t, "alice@example.com", v.Email)

	env = do(t, h.api, http.MethodGet, "/api/v1/me", "", nil)
	require.Equal(t, 401, env.Code)
}

func TestAPI_RegisterValidation(t *testing.T) {
	h := newHarness(t)
	env := do(t, h.api, http.MethodPost, "/api/v1/auth/register", "", gin.H{"email": "bad", "password": "s3cret!"})
	require.Equal(t, 400, env.Code)
}

func TestAdmin_RequiresAdminRole(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	u, err := h.svc.Register(ctx, "user@example.com", "pw1234")
	require.NoError(t, err)
	tok, err := h.jwt.Issue(u.RowKey, u.Email, nil)
	require.NoError(t, err)

	env := do(t, h.admin, http.MethodGet, "/admin/v1/users", tok, nil)
	require.Equal(t, 403, env.Code)

	env = do(t, h.admin, http.MethodGet, "/admin/v1/users", "", nil)
	require.Equal(t, 401, env.Code)
}

func TestAdmin_ManageRoles(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	admin, err := h.svc.EnsureAdmin(ctx, "root@example.com", "rootpw")
	require.NoError(t, err)
	tok, _, err := h.svc.Login(ctx, "root@example.com", "rootpw")
	require.NoError(t, err)

	u, err := h.svc.Register(ctx, "ed@example.com", "pw1234")
	require.NoError(t, err)

	env := do(t, h.admin, http.MethodPost, "/admin/v1/users/"+u.RowKey+"/roles", tok, gin.H{"role": "Editor"})
	require.Equal(t, 0, env.Code, env.Msg)
	var v service.View
	require.NoError(t, json.Unmarshal(env.Data, &v))
	require.Equal(t, []string{"editor"}, v.Roles)

	env = do(t, h.admin, http.MethodPost, "/admin/v1/users/"+u.RowKey+"/roles", tok, gin.H{"role": ""})
	require.Equal(t, 400, env.Code)

	env = do(t, h.admin, http.MethodGet, "/admin/v1/roles/editor/users", tok, nil)
	require.Equal(t, 0, env.Code, env.Msg)
	var views []service.View
	require.NoError(t, json.Unmarshal(env.Data, &views))
	require.Len(t, views, 1)
	require.Equal(t, u.RowKey, views[0].ID)

	env = do(t, h.admin, http.MethodDelete, "/admin/v1/users/"+u.RowKey+"/roles/editor", tok, nil)
	require.Equal(t, 0, env.Code, env.Msg)
	require.NoError(t, json.Unmarshal(env.Data, &v))
	require.Empty(t, v.Roles)

	env = do(t, h.admin, http.MethodPost, "/admin/v1/users/"+u.RowKey+"/confirm-email", tok, gin.H{})
	require.Equal(t, 0, env.Code, env.Msg)
	require.NoError(t, json.Unmarshal(env.Data, &v))
	require.True(t, v.EmailConfirmed)

	env = do(t, h.admin, http.MethodGet, "/admin/v1/users?limit=1", tok, nil)
	require.Equal(t, 0, env.Code, env.Msg)
	var list struct {
		Items []service.View `json:"items"`
		Next  string         `json:"next"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &list))
	require.Len(t, list.Items, 1)
	require.NotEmpty(t, list.Next)

	env = do(t, h.admin, http.MethodGet, "/admin/v1/users?limit=1&next="+list.Next, tok, nil)
	require.Equal(t, 0, env.Code, env.Msg)
	require.NoError(t, json.Unmarshal(env.Data, &list))
	require.Len(t, list.Items, 1)
	require.Empty(t, list.Next)

	env = do(t, h.admin, http.MethodDelete, "/admin/v1/users/"+u.RowKey, tok, nil)
	require.Equal(t, 0, env.Code, env.Msg)
	env = do(t, h.admin, http.MethodGet, "/admin/v1/users/"+u.RowKey, tok, nil)
	require.Equal(t, 404, env.Code)

	env = do(t, h.admin, http.MethodGet, "/admin/v1/users/"+admin.RowKey, tok, nil)
	require.Equal(t, 0, env.Code, env.Msg)
}

func TestHealthAndMetrics(t *testing.T) {
	h := newHarness(t)
	for _, e := range []*gin.Engine{h.api, h.admin} {
		w := httptest.NewRecorder()
		e.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
		require.Equal(t, http.StatusOK, w.Code)

		w = httptest.NewRecorder()
		e.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		require.Equal(t, http.StatusOK, w.Code)
		require.Contains(t, w.Body.String(), "http_requests_total")
	}
}

func TestAdmin_RevokedRoleLosesAccess(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	root, err := h.svc.EnsureAdmin(ctx, "root@example.com", "rootpw")
	require.NoError(t, err)
	other, err := h.svc.EnsureAdmin(ctx, "ops@example.com", "opspw1")
	require.NoError(t, err)
	tok, _, err := h.svc.Login(ctx, "ops@example.com", "opspw1")
	require.NoError(t, err)

	env := do(t, h.admin, http.MethodGet, "/admin/v1/users", tok, nil)
	require.Equal(t, 0, env.Code, env.Msg)

	rootTok, _, err := h.svc.Login(ctx, "root@example.com", "rootpw")
	require.NoError(t, err)
	env = do(t, h.admin, http.MethodDelete, "/admin/v1/users/"+other.RowKey+"/roles/admin", rootTok, nil)
	require.Equal(t, 0, env.Code, env.Msg)

	// the token still says admin, the store does not
	env = do(t, h.admin, http.MethodGet, "/admin/v1/users", tok, nil)
	require.Equal(t, 403, env.Code)

	env = do(t, h.admin, http.MethodDelete, "/admin/v1/users/"+root.RowKey, rootTok, nil)
	require.Equal(t, 0, env.Code, env.Msg)
	env = do(t, h.admin, http.MethodGet, "/admin/v1/users", rootTok, nil)
	require.Equal(t, 403, env.Code)
}
