package observability

import (
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/gin-gonic/gin"

	appErrors "github.com/noah-isme/school-portal-api/pkg/errors"
	"github.com/noah-isme/school-portal-api/pkg/logger"
	"github.com/noah-isme/school-portal-api/pkg/middleware/requestid"
	"github.com/noah-isme/school-portal-api/pkg/response"
)

// InitSentry configures the global Sentry client. An empty DSN disables reporting.
// The returned func flushes buffered events and should be deferred by the caller.
func InitSentry(dsn, env, release string) (func(), error) {
	if dsn == "" {
		return func() {}, nil
	}
	if err := sentry.Init(sentry.ClientOptions{
		Dsn:         dsn,
		Environment: env,
		Release:     release,
	}); err != nil {
		return func() {}, err
	}
	return func() { sentry.Flush(2 * time.Second) }, nil
}

// CaptureErr reports err when it is non-nil.
func CaptureErr(err error) {
	if err != nil {
		sentry.CaptureException(err)
	}
}

// GinRecovery turns panics into 500 responses and reports them, together with any
// handler error that ended in a 5xx status.
func GinRecovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				captureRequest(c, fmt.Errorf("panic: %v", r))
				response.Error(c, appErrors.ErrInternal)
				c.Abort()
			}
		}()

		c.Next()

		if c.Writer.Status() < 500 {
			return
		}
		if err := c.Errors.Last(); err != nil {
			captureRequest(c, err.Err)
		}
	}
}

func captureRequest(c *gin.Context, err error) {
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetRequest(c.Request)
		scope.SetTag("route", c.FullPath())
		scope.SetTag("request_id", requestid.Value(c))
		if userID := c.GetString(logger.UserIDKey); userID != "" {
			scope.SetUser(sentry.User{ID: userID})
		}
		sentry.CaptureException(err)
	})
}
