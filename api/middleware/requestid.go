package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/irsalhamdi/lms/api/web"
	"github.com/irsalhamdi/lms/random"
)

const (
	RequestIDHeader = "X-Request-Id"

	requestIDMaxLen = 128
)

type reqIDKeyCtx int

const reqIDKey reqIDKeyCtx = 1

var (
	reqSeq    int64
	reqPrefix = newPrefix()
)

// newPrefix identifies the process in generated request ids so ids from
// two replicas never collide.
func newPrefix() string {
	p, err := random.Code(10)
	if err != nil {
		return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:10])
	}
	return p
}

// RequestID tags the request with the caller's X-Request-Id when it is
// usable, or with a generated one, and echoes it back.
func RequestID() web.Middleware {
	m := func(handler web.Handler) web.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			id := cleanRequestID(r.Header.Get(RequestIDHeader))
			if id == "" {
				id = fmt.Sprintf("%s-%d", reqPrefix, atomic.AddInt64(&reqSeq, 1))
			}

			ctx = context.WithValue(ctx, reqIDKey, id)
			w.Header().Set(RequestIDHeader, id)

			return handler(ctx, w, r)
		}
		return h
	}
	return m
}

// cleanRequestID drops anything that is not printable ASCII so client ids
// cannot break log lines.
func cleanRequestID(id string) string {
	if len(id) > requestIDMaxLen {
		id = id[:requestIDMaxLen]
	}
	return strings.Map(func(r rune) rune {
		if r < '!' || r > '~' {
			return -1
		}
		return r
	}, id)
}

func ContextRequestID(ctx context.Context) string {
	id, _ := ctx.Value(reqIDKey).(string)
	return id
}
