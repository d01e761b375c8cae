package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/irsalhamdi/lms/api/web"
	"github.com/irsalhamdi/lms/api/weberr"
	"github.com/irsalhamdi/lms/core/claims"
	"github.com/irsalhamdi/lms/rate"
	"github.com/sirupsen/logrus"
)

// RateLimit throttles per account when claims are present and per remote
// address otherwise.
func RateLimit(lim *rate.Limiter) web.Middleware {
	m := func(handler web.Handler) web.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			key := r.RemoteAddr
			if clm, err := claims.Get(ctx); err == nil {
				key = clm.UserID
			}

			if !lim.Allow(key) {
				return weberr.TooManyRequests(errors.New("rate limit exceeded"), weberr.WithFields(logrus.Fields{
					"key": key,
				}))
			}

			return handler(ctx, w, r)
		}
		return h
	}
	return m
}
