// Package money normaliza valores de crédito para 2 casas decimais e converte
// para unidades mínimas do Jetton.
package money

import (
	"errors"
	"fmt"
	"math"
	"math/big"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidAmount = errors.New("amount must be a finite number")
	ErrNonPositive   = errors.New("amount must be greater than zero")
	ErrAboveMaximum  = errors.New("amount exceeds maximum")
	ErrBelowMinimum  = errors.New("amount below minimum")
)

// Normalize aplica max(0, round(v*100)/100).
func Normalize(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	d := decimal.NewFromFloat(v).Round(2)
	if d.IsNegative() {
		return 0
	}
	f, _ := d.Float64()
	return f
}

// Add soma em decimal e normaliza o resultado (piso em zero).
func Add(a, b float64) float64 {
	sum := decimal.NewFromFloat(a).Add(decimal.NewFromFloat(b))
	f, _ := sum.Float64()
	return Normalize(f)
}

// ValidatePositive exige valor finito > 0 e, se max > 0, <= max.
func ValidatePositive(v, max float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return ErrInvalidAmount
	}
	if v <= 0 {
		return ErrNonPositive
	}
	if max > 0 && v > max {
		return fmt.Errorf("%w (%s)", ErrAboveMaximum, decimal.NewFromFloat(max).String())
	}
	return nil
}

// ValidateMinimum exige v >= min.
func ValidateMinimum(v, min float64) error {
	if v < min {
		return fmt.Errorf("%w (%s)", ErrBelowMinimum, decimal.NewFromFloat(min).String())
	}
	return nil
}

// ToNano converte um valor de crédito para unidades mínimas com `decimals` casas.
func ToNano(v float64, decimals int32) *big.Int {
	return decimal.NewFromFloat(Normalize(v)).Shift(decimals).BigInt()
}

// String formata com 2 casas fixas, útil em logs e mensagens.
func String(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}
