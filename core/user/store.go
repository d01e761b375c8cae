package user

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/irsalhamdi/lms/core/claims"
	"github.com/irsalhamdi/lms/database"
	"github.com/irsalhamdi/lms/validate"
	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrNotFound       = errors.New("user not found")
	ErrEmailTaken     = errors.New("email already registered")
	ErrAuthentication = errors.New("authentication failed")
)

func New(nu UserNew, now time.Time) (User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(nu.Password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, fmt.Errorf("generating password hash: %w", err)
	}

	return User{
		ID:           validate.GenerateID(),
		Name:         nu.Name,
		Email:        strings.ToLower(nu.Email),
		Role:         nu.Role,
		PasswordHash: hash,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

func Create(ctx context.Context, db sqlx.ExtContext, usr User) error {
	const q = `
	INSERT INTO users
		(user_id, name, email, role, password_hash, active, created_at, updated_at)
	VALUES
		(:user_id, :name, :email, :role, :password_hash, :active, :created_at, :updated_at)`

	if err := database.NamedExecContext(ctx, db, q, usr); err != nil {
		if errors.Is(err, database.ErrDBDuplicatedEntry) {
			return ErrEmailTaken
		}
		return fmt.Errorf("inserting user: %w", err)
	}
	return nil
}

func Fetch(ctx context.Context, db sqlx.ExtContext, id string) (User, error) {
	in := struct {
		ID string `db:"user_id"`
	}{id}

	const q = `SELECT * FROM users WHERE user_id = :user_id`

	var usr User
	if err := database.NamedQueryStruct(ctx, db, q, in, &usr); err != nil {
		if errors.Is(err, database.ErrDBNotFound) {
			return User{}, ErrNotFound
		}
		return User{}, fmt.Errorf("selecting user[%s]: %w", id, err)
	}
	return usr, nil
}

func FetchByEmail(ctx context.Context, db sqlx.ExtContext, email string) (User, error) {
	in := struct {
		Email string `db:"email"`
	}{strings.ToLower(email)}

	const q = `SELECT * FROM users WHERE email = :email`

	var usr User
	if err := database.NamedQueryStruct(ctx, db, q, in, &usr); err != nil {
		if errors.Is(err, database.ErrDBNotFound) {
			return User{}, ErrNotFound
		}
		return User{}, fmt.Errorf("selecting user by email: %w", err)
	}
	return usr, nil
}

// Authenticate returns ErrAuthentication for both unknown emails and wrong
// passwords.
func Authenticate(ctx context.Context, db sqlx.ExtContext, email, password string) (User, error) {
	usr, err := FetchByEmail(ctx, db, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return User{}, ErrAuthentication
		}
		return User{}, err
	}

	if !usr.Active {
		return User{}, ErrAuthentication
	}

	if err := bcrypt.CompareHashAndPassword(usr.PasswordHash, []byte(password)); err != nil {
		return User{}, ErrAuthentication
	}
	return usr, nil
}

// EnsureAdmin creates the administrator account unless one with that email
// already exists. It is run explicitly by the admin tool, never on startup.
func EnsureAdmin(ctx context.Context, db sqlx.ExtContext, name, email, password string) (User, bool, error) {
	usr, err := FetchByEmail(ctx, db, email)
	switch {
	case err == nil:
		if usr.Role != claims.RoleAdmin {
			return User{}, false, fmt.Errorf("user[%s] exists without the %s role", email, claims.RoleAdmin)
		}
		return usr, false, nil
	case !errors.Is(err, ErrNotFound):
		return User{}, false, err
	}

	nu := UserNew{
		Name:            name,
		Email:           email,
		Role:            claims.RoleAdmin,
		Password:        password,
		PasswordConfirm: password,
	}
	if err := validate.Check(nu); err != nil {
		return User{}, false, fmt.Errorf("validating admin: %w", err)
	}

	usr, err = New(nu, time.Now().UTC())
	if err != nil {
		return User{}, false, err
	}

	if err := Create(ctx, db, usr); err != nil {
		if errors.Is(err, ErrEmailTaken) {
			usr, err = FetchByEmail(ctx, db, email)
			return usr, false, err
		}
		return User{}, false, err
	}
	return usr, true, nil
}
