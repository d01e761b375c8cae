package course

import (
	"time"

	"github.com/shopspring/decimal"
)

type Course struct {
	ID            string              `json:"id" db:"course_id"`
	Name          string              `json:"name" db:"name"`
	Description   string              `json:"description" db:"description"`
	ImageURL      string              `json:"imageUrl" db:"image_url"`
	Price         decimal.Decimal     `json:"price" db:"price"`
	DiscountPrice decimal.NullDecimal `json:"discountPrice" db:"discount_price"`
	Published     bool                `json:"published" db:"published"`
	CreatedAt     time.Time           `json:"createdAt" db:"created_at"`
	UpdatedAt     time.Time           `json:"updatedAt" db:"updated_at"`
	Version       int                 `json:"-" db:"version"`
}

// EffectivePrice is what a buyer pays: the discount price when one is set.
func (c Course) EffectivePrice() decimal.Decimal {
	if c.DiscountPrice.Valid {
		return c.DiscountPrice.Decimal
	}
	return c.Price
}

type CourseNew struct {
	Name          string           `json:"name" validate:"required"`
	Description   string           `json:"description" validate:"required"`
	Price         decimal.Decimal  `json:"price" validate:"gte=0"`
	DiscountPrice *decimal.Decimal `json:"discountPrice" validate:"omitempty,gte=0"`
	ImageURL      string           `json:"imageUrl" validate:"required"`
	Published     bool             `json:"published"`
}

type CourseUp struct {
	Name          *string          `json:"name"`
	Description   *string          `json:"description"`
	Price         *decimal.Decimal `json:"price" validate:"omitempty,gte=0"`
	DiscountPrice *decimal.Decimal `json:"discountPrice" validate:"omitempty,gte=0"`
	ClearDiscount bool             `json:"clearDiscount"`
	ImageURL      *string          `json:"imageUrl"`
	Published     *bool            `json:"published"`
}
