package idempotency

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"leadgen_backend/platform/apperr"
	"leadgen_backend/platform/httpkit"
	"leadgen_backend/platform/logger"

	"github.com/gin-gonic/gin"
)

const (
	HeaderKey      = "Idempotency-Key"
	HeaderReplayed = "Idempotent-Replayed"

	CodeInProgress = "request_in_progress"
	CodeKeyReused  = "idempotency_key_reused"

	maxKeyLength = 128
	maxBodyBytes = 1 << 20
	storeTimeout = 5 * time.Second
)

// responseRecorder tees the handler's output so it can be stored.
type responseRecorder struct {
	gin.ResponseWriter
	body bytes.Buffer
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}

func (r *responseRecorder) WriteString(s string) (int, error) {
	r.body.WriteString(s)
	return r.ResponseWriter.WriteString(s)
}

// Middleware replays the first completed response for a user and key. Mount
// it after AuthRequired. Requests without the header pass through, and so do
// all requests when the store is unavailable.
func Middleware(store *Store, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := strings.TrimSpace(c.GetHeader(HeaderKey))
		if key == "" || store == nil {
			c.Next()
			return
		}
		if len(key) > maxKeyLength {
			httpkit.Error(c, http.StatusBadRequest, apperr.CodeInvalidRequest, "idempotency key too long", nil)
			return
		}

		identity := httpkit.MustGetIdentity(c)
		if identity == nil {
			return
		}

		body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodyBytes))
		if err != nil {
			httpkit.Error(c, http.StatusBadRequest, apperr.CodeInvalidRequest, "invalid request", nil)
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))

		ctx := c.Request.Context()
		reqLog := log.WithContext(ctx)
		storeKey := identity.UserID().String() + ":" + c.Request.Method + ":" + c.FullPath() + ":" + key
		fingerprint := fingerprintOf(body)

		acquired, err := store.Acquire(ctx, storeKey)
		if err != nil {
			reqLog.Warn("idempotency store unavailable", "error", err)
			c.Next()
			return
		}

		if !acquired {
			replay(c, store, storeKey, fingerprint, reqLog)
			return
		}

		rec := &responseRecorder{ResponseWriter: c.Writer}
		c.Writer = rec
		c.Next()

		// The outcome is stored even when the client has already gone away:
		// a settled search must replay, not run again.
		saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), storeTimeout)
		defer cancel()

		status := rec.Status()
		if status >= http.StatusInternalServerError {
			if err := store.Release(saveCtx, storeKey); err != nil {
				reqLog.Warn("idempotency release failed", "error", err)
			}
			return
		}

		if err := store.Complete(saveCtx, storeKey, Record{
			Fingerprint: fingerprint,
			Status:      status,
			ContentType: rec.Header().Get("Content-Type"),
			Body:        rec.body.Bytes(),
		}); err != nil {
			reqLog.Warn("idempotency record not stored", "error", err)
		}
	}
}

func replay(c *gin.Context, store *Store, storeKey, fingerprint string, log *logger.Logger) {
	stored, err := store.Load(c.Request.Context(), storeKey)
	switch {
	case errors.Is(err, ErrInProgress):
		httpkit.Error(c, http.StatusConflict, CodeInProgress, "a request with this idempotency key is still in progress", nil)
		return
	case errors.Is(err, ErrNotFound):
		// Expired between Acquire and Load.
		httpkit.Error(c, http.StatusConflict, CodeInProgress, "retry the request", nil)
		return
	case err != nil:
		log.Warn("idempotency load failed", "error", err)
		httpkit.Error(c, http.StatusInternalServerError, apperr.CodeInternal, "internal error", nil)
		return
	}

	if stored.Fingerprint != fingerprint {
		httpkit.Error(c, http.StatusUnprocessableEntity, CodeKeyReused, "idempotency key was used with a different request body", nil)
		return
	}

	c.Header(HeaderReplayed, "true")
	c.Data(stored.Status, stored.ContentType, stored.Body)
	c.Abort()
}

func fingerprintOf(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}
