package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/irsalhamdi/lms/api/web"
	"github.com/sirupsen/logrus"
	"github.com/zenazn/goji/web/mutil"
)

// Logger writes one line per request once the handler chain returns.
// Server errors are logged at warn level.
func Logger(log logrus.FieldLogger) web.Middleware {
	m := func(handler web.Handler) web.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			entry := log.WithFields(logrus.Fields{
				"req_id":     ContextRequestID(ctx),
				"method":     r.Method,
				"path":       r.URL.Path,
				"remoteaddr": r.RemoteAddr,
			})
			entry.Debug("started")

			start := time.Now()
			lw := mutil.WrapWriter(w)
			err := handler(ctx, lw, r)

			status := lw.Status()
			if status == 0 {
				status = http.StatusOK
			}

			entry = entry.WithFields(logrus.Fields{
				"statuscode":  status,
				"bytes":       lw.BytesWritten(),
				"duration_ms": time.Since(start).Milliseconds(),
			})
			if status >= http.StatusInternalServerError {
				entry.Warn("completed")
			} else {
				entry.Info("completed")
			}
			return err
		}
		return h
	}
	return m
}
