package auth

import (
	"context"
	"errors"
	"net/http"

	"github.com/alexedwards/scs/v2"
	"github.com/irsalhamdi/lms/api/web"
	"github.com/irsalhamdi/lms/api/weberr"
	"github.com/irsalhamdi/lms/core/claims"
)

const (
	userIDKey = "userID"
	roleKey   = "role"
)

// LoadAndSave adapts the scs session middleware to web.Handler so the
// session travels in the request context seen by every other middleware.
func LoadAndSave(sm *scs.SessionManager) web.Middleware {
	m := func(handler web.Handler) web.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			var herr error
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				herr = handler(r.Context(), w, r)
			})

			sm.LoadAndSave(next).ServeHTTP(w, r.WithContext(ctx))
			return herr
		}
		return h
	}
	return m
}

func Authenticate(sm *scs.SessionManager) web.Middleware {
	m := func(handler web.Handler) web.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			clm, ok := sessionClaims(ctx, sm)
			if !ok {
				return weberr.NotAuthorized(errors.New("user not authenticated"))
			}

			return handler(claims.Set(ctx, clm), w, r)
		}
		return h
	}
	return m
}

// Identify sets the claims when a session exists and lets anonymous
// requests through.
func Identify(sm *scs.SessionManager) web.Middleware {
	m := func(handler web.Handler) web.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			if clm, ok := sessionClaims(ctx, sm); ok {
				ctx = claims.Set(ctx, clm)
			}

			return handler(ctx, w, r)
		}
		return h
	}
	return m
}

func Admin(sm *scs.SessionManager) web.Middleware {
	m := func(handler web.Handler) web.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			clm, ok := sessionClaims(ctx, sm)
			if !ok {
				return weberr.NotAuthorized(errors.New("user not authenticated"))
			}

			if clm.Role != claims.RoleAdmin {
				return weberr.Forbidden(errors.New("admin role required"))
			}

			return handler(claims.Set(ctx, clm), w, r)
		}
		return h
	}
	return m
}

func sessionClaims(ctx context.Context, sm *scs.SessionManager) (claims.Claims, bool) {
	userID := sm.GetString(ctx, userIDKey)
	if userID == "" {
		return claims.Claims{}, false
	}

	return claims.Claims{
		UserID: userID,
		Role:   sm.GetString(ctx, roleKey),
	}, true
}
