package middleware

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"procura/internal/core/apperror"
	appctx "procura/internal/core/context"
	"procura/internal/infrastructure/cache"
	"procura/pkg/logger"
)

const (
	HeaderIdempotencyKey      = "Idempotency-Key"
	HeaderIdempotentReplayed  = "Idempotent-Replayed"
	maxIdempotencyKeyLength   = 255
	maxIdempotentRequestBytes = 1 << 20
)

// IdempotencyStore is the cache behind Idempotency.
type IdempotencyStore interface {
	Acquire(ctx context.Context, actor, key, fingerprint string) (*cache.IdempotencyReplay, error)
	Complete(ctx context.Context, actor, key, fingerprint string, resp cache.IdempotencyReplay) error
	Release(ctx context.Context, actor, key string) error
}

// Idempotency replays the stored response when a mutating request is retried
// with the same Idempotency-Key. Only successful responses are stored; a failed
// request frees its key so the client can retry once the cause is fixed.
// Must run after Auth: keys are scoped to the caller.
func Idempotency(store IdempotencyStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(HeaderIdempotencyKey)
		if key == "" || !isMutating(c.Request.Method) {
			c.Next()
			return
		}
		if len(key) > maxIdempotencyKeyLength {
			_ = c.Error(apperror.NewValidation("idempotency key too long").
				WithDetail("max_length", maxIdempotencyKeyLength))
			c.Abort()
			return
		}

		body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxIdempotentRequestBytes+1))
		if err != nil {
			_ = c.Error(apperror.NewValidation("cannot read request body"))
			c.Abort()
			return
		}
		if len(body) > maxIdempotentRequestBytes {
			_ = c.Error(apperror.NewValidation("request body too large for idempotent replay"))
			c.Abort()
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))

		ctx := c.Request.Context()
		actor := appctx.GetUserID(ctx)
		fingerprint := cache.Fingerprint(c.Request.Method, c.Request.URL.Path, actor, body)

		replay, err := store.Acquire(ctx, actor, key, fingerprint)
		if err != nil {
			var appErr *apperror.AppError
			if !errors.As(err, &appErr) {
				err = apperror.NewInternal(err)
			}
			_ = c.Error(err)
			c.Abort()
			return
		}
		if replay != nil {
			c.Header(HeaderIdempotentReplayed, "true")
			if replay.StatusCode == http.StatusNoContent || len(replay.Body) == 0 {
				c.Status(replay.StatusCode)
			} else {
				c.Data(replay.StatusCode, replay.ContentType, replay.Body)
			}
			c.Abort()
			return
		}

		rec := &bodyRecorder{ResponseWriter: c.Writer, body: &bytes.Buffer{}}
		c.Writer = rec

		c.Next()

		// The request context may be cancelled once the client disconnects.
		saveCtx := context.WithoutCancel(ctx)
		status := rec.Status()
		if len(c.Errors) > 0 || status >= http.StatusBadRequest {
			if err := store.Release(saveCtx, actor, key); err != nil {
				logger.Warn(ctx, "idempotency release failed", "key", key, "error", err)
			}
			return
		}

		err = store.Complete(saveCtx, actor, key, fingerprint, cache.IdempotencyReplay{
			StatusCode:  status,
			ContentType: rec.Header().Get("Content-Type"),
			Body:        rec.body.Bytes(),
		})
		if err != nil {
			logger.Warn(ctx, "idempotency save failed", "key", key, "error", err)
		}
	}
}

func isMutating(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

// bodyRecorder keeps a copy of everything written to the client.
type bodyRecorder struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (r *bodyRecorder) Write(b []byte) (int, error) {
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}

func (r *bodyRecorder) WriteString(s string) (int, error) {
	r.body.WriteString(s)
	return r.ResponseWriter.WriteString(s)
}
