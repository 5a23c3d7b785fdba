package router

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"go-table-identity/internal/core/auth"
	"go-table-identity/internal/core/server"
	"go-table-identity/internal/service"
	mdw "go-table-identity/internal/transport/http/middleware"
)

func NewAdminEngine(l *zap.Logger, svc *service.UserService, jwter *auth.JWTer) *gin.Engine {
	r := server.NewRouter(l)
	r.Use(
		mdw.RequestID(),
		mdw.RateLimit(50, 100),
		mdw.ConcurrencyLimit(50),
		mdw.MaxBodyBytes(1<<20),
		mdw.Timeout(30*time.Second),
		mdw.Metrics("admin"),
		mdw.AccessLog(l),
	)

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": 1}) })
	r.GET("/metrics", mdw.MetricsHandler())

	// every admin route needs the admin role, in the token and in the store
	admin := r.Group("/admin/v1")
	admin.Use(
		mdw.AuthJWT(jwter, service.RoleAdmin),
		mdw.RequireStoredRole(svc, service.RoleAdmin),
	)
	mountAdminActions(New(admin), svc)

	return r
}

func mountAdminActions(ez EZ, svc *service.UserService) {
	type listQ struct {
		Limit int    `form:"limit,default=50"`
		Next  string `form:"next"`
	}
	type listOut struct {
		Items []service.View `json:"items"`
		Next  string         `json:"next,omitempty"`
	}
	RegisterAction(ez, Action[listQ, listOut]{
		Method: http.MethodGet,
		Path:   "/users",
		Binder: BindQuery,
		Handler: func(c *gin.Context, in *listQ) (listOut, error) {
			if in.Limit <= 0 || in.Limit > 1000 {
				in.Limit = 50
			}
			page, err := svc.List(c.Request.Context(), in.Limit, in.Next)
			if err != nil {
				return listOut{}, err
			}
			out := listOut{Items: make([]service.View, 0, len(page.Users)), Next: page.Next}
			for _, u := range page.Users {
				out.Items = append(out.Items, svc.View(u))
			}
			return out, nil
		},
	})

	RegisterAction(ez, Action[struct{}, service.View]{
		Method: http.MethodGet,
		Path:   "/users/:id",
		Binder: BindNone,
		Handler: func(c *gin.Context, _ *struct{}) (service.View, error) {
			u, err := svc.Get(c.Request.Context(), c.Param("id"))
			if err != nil {
				return service.View{}, err
			}
			return svc.View(u), nil
		},
	})

	RegisterAction(ez, Action[struct{}, gin.H]{
		Method: http.MethodDelete,
		Path:   "/users/:id",
		Binder: BindNone,
		Handler: func(c *gin.Context, _ *struct{}) (gin.H, error) {
			id := c.Param("id")
			if err := svc.Delete(c.Request.Context(), id); err != nil {
				return nil, err
			}
			return gin.H{"id": id}, nil
		},
	})

	type roleIn struct {
		Role string `json:"role"`
	}
	RegisterAction(ez, Action[roleIn, service.View]{
		Method: http.MethodPost,
		Path:   "/users/:id/roles",
		Binder: BindJSON,
		Handler: func(c *gin.Context, in *roleIn) (service.View, error) {
			u, err := svc.AddRole(c.Request.Context(), c.Param("id"), strings.TrimSpace(in.Role))
			if err != nil {
				return service.View{}, err
			}
			return svc.View(u), nil
		},
	})

	RegisterAction(ez, Action[struct{}, service.View]{
		Method: http.MethodDelete,
		Path:   "/users/:id/roles/:role",
		Binder: BindNone,
		Handler: func(c *gin.Context, _ *struct{}) (service.View, error) {
			u, err := svc.RemoveRole(c.Request.Context(), c.Param("id"), c.Param("role"))
			if err != nil {
				return service.View{}, err
			}
			return svc.View(u), nil
		},
	})

	type confirmIn struct {
		Confirmed *bool `json:"confirmed"`
	}
	RegisterAction(ez, Action[confirmIn, service.View]{
		Method: http.MethodPost,
		Path:   "/users/:id/confirm-email",
		Binder: BindJSON,
		Handler: func(c *gin.Context, in *confirmIn) (service.View, error) {
			confirmed := true
			if in.Confirmed != nil {
				confirmed = *in.Confirmed
			}
			u, err := svc.ConfirmEmail(c.Request.Context(), c.Param("id"), confirmed)
			if err != nil {
				return service.View{}, err
			}
			return svc.View(u), nil
		},
	})

	RegisterAction(ez, Action[struct{}, []service.View]{
		Method: http.MethodGet,
		Path:   "/roles/:role/users",
		Binder: BindNone,
		Handler: func(c *gin.Context, _ *struct{}) ([]service.View, error) {
			users, err := svc.UsersInRole(c.Request.Context(), c.Param("role"))
			if err != nil {
				return nil, err
			}
			out := make([]service.View, 0, len(users))
			for _, u := range users {
				out = append(out, svc.View(u))
			}
			return out, nil
		},
	})
}
