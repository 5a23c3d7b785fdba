package router

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"go-table-identity/internal/core/tablestorage"
	"go-table-identity/internal/domain"
	"go-table-identity/internal/service"
	mdw "go-table-identity/internal/transport/http/middleware"
	resp "go-table-identity/internal/transport/http/response"
	"go-table-identity/pkg/utils"
)

type EZ struct{ g *gin.RouterGroup }

func New(g *gin.RouterGroup) EZ { return EZ{g: g} }

type Binder string

const (
	BindJSON  Binder = "json"
	BindQuery Binder = "query"
	BindNone  Binder = "none" // handler reads c.Param itself
)

// AErr is an error that already knows its response code.
type AErr struct {
	Code int
	Msg  string
	Err  error
}

func (e *AErr) Error() string {
	if e.Msg != "" {
		return e.Msg
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "action error"
}

func (e *AErr) Unwrap() error { return e.Err }

func BadRequest(msg string) error   { return &AErr{Code: resp.CodeBadRequest, Msg: msg} }
func Unauthorized(msg string) error { return &AErr{Code: resp.CodeUnauthorized, Msg: msg} }
func Forbidden(msg string) error    { return &AErr{Code: resp.CodeForbidden, Msg: msg} }
func NotFound(msg string) error     { return &AErr{Code: resp.CodeNotFound, Msg: msg} }
func Internal(msg string, err error) error {
	return &AErr{Code: resp.CodeServerError, Msg: msg, Err: err}
}

// Action is a typed endpoint: I is bound from the request, O is the data of
// a successful envelope.
type Action[I any, O any] struct {
	Method  string
	Path    string
	Binder  Binder
	Auth    bool     // require a logged-in user
	Roles   []string // any of these roles, checked against token claims
	Handler func(c *gin.Context, in *I) (O, error)
}

func RegisterAction[I any, O any](e EZ, a Action[I, O]) {
	h := func(c *gin.Context) {
		if a.Auth || len(a.Roles) > 0 {
			claims, ok := mdw.ClaimsFrom(c)
			if !ok || claims.UID == "" {
				c.JSON(http.StatusOK, resp.Error(resp.CodeUnauthorized, "unauthorized"))
				return
			}
			if len(a.Roles) > 0 && !hasAnyRole(claims.Roles, a.Roles) {
				c.JSON(http.StatusOK, resp.Error(resp.CodeForbidden, "forbidden"))
				return
			}
		}

		var in I
		var bindErr error
		switch a.Binder {
		case BindJSON:
			bindErr = c.ShouldBindJSON(&in)
		case BindQuery:
			bindErr = c.ShouldBindQuery(&in)
		}
		if bindErr != nil {
			c.JSON(http.StatusOK, resp.Error(resp.CodeBadRequest, bindErr.Error()))
			return
		}

		out, err := a.Handler(c, &in)
		if err != nil {
			_ = c.Error(err)
			c.JSON(http.StatusOK, errorResp(err))
			return
		}
		c.JSON(http.StatusOK, resp.OK(out))
	}

	switch strings.ToUpper(a.Method) {
	case http.MethodGet:
		e.g.GET(a.Path, h)
	case http.MethodPut:
		e.g.PUT(a.Path, h)
	case http.MethodDelete:
		e.g.DELETE(a.Path, h)
	default:
		e.g.POST(a.Path, h)
	}
}

func hasAnyRole(have, want []string) bool {
	for _, w := range want {
		for _, h := range have {
			if h == w {
				return true
			}
		}
	}
	return false
}

// errorResp maps service, store and storage errors onto envelope codes.
func errorResp(err error) resp.Resp {
	var ae *AErr
	if errors.As(err, &ae) {
		return resp.Error(ae.Code, ae.Error())
	}
	var re *service.ResultError
	if errors.As(err, &re) {
		return resp.Failed(resp.CodeStorageError, re.Op+" failed", re.Result)
	}
	switch {
	case errors.Is(err, service.ErrUserNotFound):
		return resp.Error(resp.CodeNotFound, err.Error())
	case errors.Is(err, service.ErrUserExists):
		return resp.Error(resp.CodeConflict, err.Error())
	case errors.Is(err, service.ErrInvalidCredentials):
		return resp.Error(resp.CodeUnauthorized, err.Error())
	case errors.Is(err, service.ErrInvalidEmail),
		errors.Is(err, domain.ErrEmptyRoleName),
		errors.Is(err, utils.ErrEmptyPassword),
		errors.Is(err, tablestorage.ErrInvalidContinuation):
		return resp.Error(resp.CodeBadRequest, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return resp.Error(resp.CodeTimeout, "timeout")
	}
	var te *tablestorage.Error
	if errors.As(err, &te) {
		return resp.Error(resp.CodeStorageError, "storage error: "+te.Code)
	}
	return resp.Error(resp.CodeServerError, "internal error")
}
