// Package claims carries the identity of the session owner through the
// request context.
package claims

import (
	"context"
	"errors"
)

const (
	RoleAdmin = "ADMIN"
	RoleUser  = "USER"
)

// ErrMissing is returned by Get when the request carries no session.
var ErrMissing = errors.New("claim value missing from context")

type Claims struct {
	UserID string
	Role   string
}

func (c Claims) Admin() bool {
	return c.Role == RoleAdmin
}

// Owns reports whether the caller may read a resource belonging to ownerID.
// Admins own everything.
func (c Claims) Owns(ownerID string) bool {
	return c.Admin() || (c.UserID != "" && c.UserID == ownerID)
}

type ctxKey int

const claimsKey ctxKey = 1

func Set(ctx context.Context, clm Claims) context.Context {
	return context.WithValue(ctx, claimsKey, clm)
}

func Get(ctx context.Context) (Claims, error) {
	v, ok := ctx.Value(claimsKey).(Claims)
	if !ok {
		return Claims{}, ErrMissing
	}
	return v, nil
}

// IsAdmin is false for anonymous requests.
func IsAdmin(ctx context.Context) bool {
	c, err := Get(ctx)
	if err != nil {
		return false
	}
	return c.Admin()
}

func Owns(ctx context.Context, ownerID string) bool {
	c, err := Get(ctx)
	if err != nil {
		return false
	}
	return c.Owns(ownerID)
}
