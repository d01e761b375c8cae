package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/irsalhamdi/lms/api/web"
	"github.com/irsalhamdi/lms/api/weberr"
	"github.com/irsalhamdi/lms/core/claims"
	"github.com/irsalhamdi/lms/core/user"
	"github.com/irsalhamdi/lms/validate"
	"github.com/jmoiron/sqlx"
)

type Signup struct {
	Name            string `json:"name" validate:"required"`
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required,min=8"`
	PasswordConfirm string `json:"passwordConfirm" validate:"eqfield=Password"`
}

type Login struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func HandleSignup(db *sqlx.DB, sm *scs.SessionManager) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		var in Signup
		if err := web.Decode(w, r, &in); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode payload: %w", err))
		}

		if err := validate.Check(in); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusBadRequest)
		}

		usr, err := user.New(user.UserNew{
			Name:            in.Name,
			Email:           in.Email,
			Role:            claims.RoleUser,
			Password:        in.Password,
			PasswordConfirm: in.PasswordConfirm,
		}, time.Now().UTC())
		if err != nil {
			return err
		}

		if err := user.Create(ctx, db, usr); err != nil {
			if errors.Is(err, user.ErrEmailTaken) {
				return weberr.Conflict(err, nil)
			}
			return fmt.Errorf("signing up: %w", err)
		}

		if err := startSession(ctx, sm, usr); err != nil {
			return err
		}

		return web.Respond(ctx, w, usr, http.StatusCreated)
	}
}

func HandleLogin(db *sqlx.DB, sm *scs.SessionManager) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		var in Login
		if err := web.Decode(w, r, &in); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode payload: %w", err))
		}

		if err := validate.Check(in); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusBadRequest)
		}

		usr, err := user.Authenticate(ctx, db, in.Email, in.Password)
		if err != nil {
			if errors.Is(err, user.ErrAuthentication) {
				return weberr.NotAuthorized(err)
			}
			return fmt.Errorf("authenticating: %w", err)
		}

		if err := startSession(ctx, sm, usr); err != nil {
			return err
		}

		return web.Respond(ctx, w, usr, http.StatusOK)
	}
}

func HandleLogout(sm *scs.SessionManager) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		if err := sm.Destroy(ctx); err != nil {
			return fmt.Errorf("destroying session: %w", err)
		}
		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}
}

func startSession(ctx context.Context, sm *scs.SessionManager, usr user.User) error {
	if err := sm.RenewToken(ctx); err != nil {
		return fmt.Errorf("renewing session token: %w", err)
	}
	sm.Put(ctx, userIDKey, usr.ID)
	sm.Put(ctx, roleKey, usr.Role)
	return nil
}
