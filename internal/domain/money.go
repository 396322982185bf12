package domain

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
)

// Money — сумма в минимальных денежных единицах (пайсы, копейки).
// В JSON выводится числом с двумя знаками после запятой.
type Money int64

// MoneyFromMajor переводит целые денежные единицы в Money.
func MoneyFromMajor(units int64) Money {
	return Money(units * 100)
}

// MoneyFromFloat округляет дробную сумму до минимальных единиц.
func MoneyFromFloat(v float64) Money {
	return Money(math.Round(v * 100))
}

// Float возвращает сумму в основных единицах.
func (m Money) Float() float64 {
	return float64(m) / 100
}

// Mul умножает сумму на количество.
func (m Money) Mul(qty int) Money {
	return m * Money(qty)
}

func (m Money) String() string {
	sign := ""
	v := int64(m)
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}

// MarshalJSON сериализует сумму как число: 20 -> 20.00.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalJSON принимает число или строку с числом.
func (m *Money) UnmarshalJSON(data []byte) error {
	data = bytes.Trim(bytes.TrimSpace(data), `"`)
	if len(data) == 0 || string(data) == "null" {
		*m = 0
		return nil
	}
	v, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return fmt.Errorf("parse money %q: %w", string(data), err)
	}
	*m = MoneyFromFloat(v)
	return nil
}
