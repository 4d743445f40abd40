package middleware_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"procura/internal/core/apperror"
	appctx "procura/internal/core/context"
	"procura/internal/infrastructure/http/v1/middleware"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubValidator struct {
	user *appctx.UserContext
	err  error
}

func (v stubValidator) ValidateToken(string) (*appctx.UserContext, error) {
	return v.user, v.err
}

func newEngine(handlers ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(middleware.Recovery(), middleware.Trace(), middleware.ErrorHandler())
	r.GET("/", handlers...)
	return r
}

func serve(r http.Handler, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for k, v := range header {
		req.Header[k] = v
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRecoveryHidesPanicDetails(t *testing.T) {
	r := newEngine(func(*gin.Context) { panic("secret state") })

	w := serve(r, nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), apperror.CodeInternal)
	assert.NotContains(t, w.Body.String(), "secret state")
}

func TestErrorHandlerRendersAppError(t *testing.T) {
	r := newEngine(func(c *gin.Context) {
		_ = c.Error(apperror.NewConflict("duplicate supplier invoice number"))
	})

	w := serve(r, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), apperror.CodeConflict)
}

func TestErrorHandlerMasksPlainErrors(t *testing.T) {
	r := newEngine(func(c *gin.Context) {
		_ = c.Error(errors.New("pq: connection reset"))
	})

	w := serve(r, nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "connection reset")
}

func TestTraceEchoesRequestID(t *testing.T) {
	r := newEngine(func(c *gin.Context) {
		c.String(http.StatusOK, appctx.GetTraceID(c.Request.Context()))
	})

	w := serve(r, http.Header{middleware.HeaderRequestID: {"req-42"}})
	assert.Equal(t, "req-42", w.Header().Get(middleware.HeaderRequestID))
	traceID := w.Header().Get(middleware.HeaderTraceID)
	require.NotEmpty(t, traceID)
	assert.Equal(t, traceID, w.Body.String())
}

func TestAuth(t *testing.T) {
	alice := &appctx.UserContext{UserID: "alice"}
	tests := []struct {
		name      string
		validator stubValidator
		header    string
		want      int
	}{
		{name: "missing header", validator: stubValidator{user: alice}, want: http.StatusUnauthorized},
		{name: "wrong scheme", validator: stubValidator{user: alice}, header: "Basic abc", want: http.StatusUnauthorized},
		{name: "invalid token", validator: stubValidator{err: errors.New("expired")}, header: "Bearer t", want: http.StatusUnauthorized},
		{name: "empty subject", validator: stubValidator{user: &appctx.UserContext{}}, header: "Bearer t", want: http.StatusUnauthorized},
		{name: "valid", validator: stubValidator{user: alice}, header: "Bearer t", want: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newEngine(middleware.Auth(tt.validator), func(c *gin.Context) {
				c.String(http.StatusOK, appctx.GetUserID(c.Request.Context()))
			})
			header := http.Header{}
			if tt.header != "" {
				header.Set("Authorization", tt.header)
			}

			w := serve(r, header)
			assert.Equal(t, tt.want, w.Code)
			if tt.want == http.StatusOK {
				assert.Equal(t, "alice", w.Body.String())
			}
		})
	}
}
