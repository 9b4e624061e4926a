package utils

import "github.com/shopspring/decimal"

// RoundMoney rounds an amount to cents (half away from zero).
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}
