package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Currency is the code of a supported currency.
type Currency string

const (
	USDC Currency = "USDC"
	ETH  Currency = "ETH"
	USD  Currency = "USD"
)

// ParseCurrency returns the currency for code or an InvalidInputs error.
func ParseCurrency(code string) (Currency, error) {
	switch c := Currency(code); c {
	case USDC, ETH, USD:
		return c, nil
	default:
		return "", InvalidInputs(fmt.Errorf("unknown currency %q", code))
	}
}

// Amount is a decimal value in a currency.
type Amount struct {
	Value    decimal.Decimal `json:"amount"`
	Currency Currency        `json:"currency"`
}

func NewAmount(value decimal.Decimal, currency Currency) Amount {
	return Amount{Value: value, Currency: currency}
}

func (a Amount) String() string {
	return a.Value.String() + " " + string(a.Currency)
}

// SameCurrency fails with InvalidInputs when b is in another currency.
func (a Amount) SameCurrency(b Amount) error {
	if a.Currency != b.Currency {
		return InvalidInputs(fmt.Errorf("currency mismatch: %s and %s", a.Currency, b.Currency))
	}
	return nil
}
