package router

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"go-table-identity/internal/core/auth"
	"go-table-identity/internal/core/server"
	"go-table-identity/internal/service"
	mdw "go-table-identity/internal/transport/http/middleware"
)

func NewAPIEngine(l *zap.Logger, svc *service.UserService, jwter *auth.JWTer) *gin.Engine {
	r := server.NewRouter(l)
	r.Use(
		mdw.RequestID(),
		mdw.RateLimit(200, 400),
		mdw.ConcurrencyLimit(300),
		mdw.MaxBodyBytes(1<<20),
		mdw.Timeout(10*time.Second),
		mdw.Metrics("api"),
		mdw.AccessLog(l),
	)

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": 1}) })
	r.GET("/metrics", mdw.MetricsHandler())

	api := r.Group("/api/v1")

	public := api.Group("/auth")
	public.Use(mdw.RateLimitPerIP(5, 10))
	mountAuthActions(New(public), svc)

	authUser := api.Group("")
	authUser.Use(mdw.AuthJWT(jwter, ""))
	mountMeActions(New(authUser), svc)

	return r
}

type credentialsIn struct {
	Email    string `json:"email"    binding:"required,email"`
	Password string `json:"password" binding:"required,min=6,max=72"`
}

func mountAuthActions(ez EZ, svc *service.UserService) {
	RegisterAction(ez, Action[credentialsIn, service.View]{
		Method: http.MethodPost,
		Path:   "/register",
		Binder: BindJSON,
		Handler: func(c *gin.Context, in *credentialsIn) (service.View, error) {
			u, err := svc.Register(c.Request.Context(), in.Email, in.Password)
			if err != nil {
				return service.View{}, err
			}
			return svc.View(u), nil
		},
	})

	type loginOut struct {
		Token string       `json:"token"`
		User  service.View `json:"user"`
	}
	RegisterAction(ez, Action[credentialsIn, loginOut]{
		Method: http.MethodPost,
		Path:   "/login",
		Binder: BindJSON,
		Handler: func(c *gin.Context, in *credentialsIn) (loginOut, error) {
			tok, u, err := svc.Login(c.Request.Context(), in.Email, in.Password)
			if err != nil {
				return loginOut{}, err
			}
			return loginOut{Token: tok, User: svc.View(u)}, nil
		},
	})
}

func mountMeActions(ez EZ, svc *service.UserService) {
	RegisterAction(ez, Action[struct{}, service.View]{
		Method: http.MethodGet,
		Path:   "/me",
		Binder: BindNone,
		Auth:   true,
		Handler: func(c *gin.Context, _ *struct{}) (service.View, error) {
			u, err := svc.Get(c.Request.Context(), c.GetString(mdw.KeyUserID))
			if err != nil {
				return service.View{}, err
			}
			return svc.View(u), nil
		},
	})

	type passwordIn struct {
		Current string `json:"current"`
		New     string `json:"new" binding:"required,min=6,max=72"`
	}
	RegisterAction(ez, Action[passwordIn, gin.H]{
		Method: http.MethodPost,
		Path:   "/me/password",
		Binder: BindJSON,
		Auth:   true,
		Handler: func(c *gin.Context, in *passwordIn) (gin.H, error) {
			uid := c.GetString(mdw.KeyUserID)
			if err := svc.ChangePassword(c.Request.Context(), uid, in.Current, in.New); err != nil {
				return nil, err
			}
			return gin.H{"id": uid}, nil
		},
	})
}
