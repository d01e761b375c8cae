package validate

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestCheckDecimal(t *testing.T) {
	type priced struct {
		Price decimal.Decimal `json:"price" validate:"gte=0"`
	}

	if err := Check(priced{Price: decimal.RequireFromString("12.50")}); err != nil {
		t.Fatalf("positive price rejected: %v", err)
	}

	if err := Check(priced{Price: decimal.RequireFromString("-1")}); err == nil {
		t.Fatal("negative price accepted")
	}
}

func TestCheckIDs(t *testing.T) {
	if err := CheckIDs([]string{GenerateID(), GenerateID()}); err != nil {
		t.Fatalf("generated ids rejected: %v", err)
	}

	if err := CheckIDs([]string{GenerateID(), "42"}); err == nil {
		t.Fatal("malformed id accepted")
	}
}
