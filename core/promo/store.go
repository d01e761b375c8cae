package promo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/irsalhamdi/lms/database"
	"github.com/jmoiron/sqlx"
)

var (
	ErrInvalid    = errors.New("promo code is invalid or expired")
	ErrCodeTaken  = errors.New("promo code already exists")
	ErrPercentMax = errors.New("percent promo amount must not exceed 100")
)

func New(pn PromoNew, now time.Time) (Promo, error) {
	if pn.Kind == Percent && pn.Amount.GreaterThan(decimal100) {
		return Promo{}, ErrPercentMax
	}

	p := Promo{
		Code:      Normalize(pn.Code),
		Kind:      pn.Kind,
		Amount:    pn.Amount,
		StartsAt:  now,
		ExpiresAt: pn.ExpiresAt,
		MaxUses:   pn.MaxUses,
		Active:    true,
		CreatedAt: now,
	}
	if pn.StartsAt != nil {
		p.StartsAt = *pn.StartsAt
	}
	return p, nil
}

func Create(ctx context.Context, db sqlx.ExtContext, p Promo) error {
	const q = `
	INSERT INTO promo_codes
		(code, kind, amount, starts_at, expires_at, max_uses, used_count, active, created_at)
	VALUES
		(:code, :kind, :amount, :starts_at, :expires_at, :max_uses, :used_count, :active, :created_at)`

	if err := database.NamedExecContext(ctx, db, q, p); err != nil {
		if errors.Is(err, database.ErrDBDuplicatedEntry) {
			return ErrCodeTaken
		}
		return fmt.Errorf("inserting promo code: %w", err)
	}
	return nil
}

func Fetch(ctx context.Context, db sqlx.ExtContext, code string) (Promo, error) {
	in := struct {
		Code string `db:"code"`
	}{Normalize(code)}

	const q = `SELECT * FROM promo_codes WHERE code = :code`

	var p Promo
	if err := database.NamedQueryStruct(ctx, db, q, in, &p); err != nil {
		return Promo{}, err
	}
	return p, nil
}

// Resolve returns a code that is usable at now, or ErrInvalid.
func Resolve(ctx context.Context, db sqlx.ExtContext, code string, now time.Time) (Promo, error) {
	p, err := Fetch(ctx, db, code)
	if err != nil {
		if errors.Is(err, database.ErrDBNotFound) {
			return Promo{}, ErrInvalid
		}
		return Promo{}, fmt.Errorf("selecting promo code: %w", err)
	}

	if !p.Usable(now) {
		return Promo{}, ErrInvalid
	}
	return p, nil
}

// Redeem counts one use of code. The update re-checks every usability
// condition so a code exhausted by a concurrent checkout fails with
// ErrInvalid.
func Redeem(ctx context.Context, db sqlx.ExtContext, code string, now time.Time) error {
	in := struct {
		Code string    `db:"code"`
		Now  time.Time `db:"now"`
	}{Normalize(code), now}

	const q = `
	UPDATE promo_codes SET used_count = used_count + 1
	WHERE code = :code
		AND active
		AND starts_at <= :now
		AND (expires_at IS NULL OR expires_at > :now)
		AND (max_uses IS NULL OR used_count < max_uses)`

	n, err := database.NamedExecAffected(ctx, db, q, in)
	if err != nil {
		return fmt.Errorf("redeeming promo code: %w", err)
	}
	if n == 0 {
		return ErrInvalid
	}
	return nil
}

func Query(ctx context.Context, db sqlx.ExtContext) ([]Promo, error) {
	const q = `SELECT * FROM promo_codes ORDER BY created_at DESC, code`

	var ps []Promo
	if err := database.NamedQuerySlice(ctx, db, q, struct{}{}, &ps); err != nil {
		return nil, fmt.Errorf("selecting promo codes: %w", err)
	}
	return ps, nil
}
