package utils

import (
	"github.com/shopspring/decimal"
)

// math.go - расчёт доходности участников соревнования
//
// Все функции чистые. Вычисления идут через decimal, чтобы 1234.50 при
// стартовом балансе 1000 давало ровно 23.45, а не 23.450000000000003.
// Округление для отображения не выполняется - это задача UI.

// DefaultStartingBalance - стартовый баланс участника по умолчанию
const DefaultStartingBalance = 1000.0

var hundred = decimal.NewFromInt(100)

// ProfitPercentage возвращает доходность в процентах относительно стартового баланса.
//
//	ProfitPercentage(1234.50, 1000) = 23.45
//	ProfitPercentage(900, 1000)     = -10
//	ProfitPercentage(x, 0)          = 0
func ProfitPercentage(balance, startBalance float64) float64 {
	if startBalance == 0 {
		return 0
	}
	start := decimal.NewFromFloat(startBalance)
	pct, _ := decimal.NewFromFloat(balance).
		Sub(start).
		Div(start).
		Mul(hundred).
		Float64()
	return pct
}

// ProfitAmount возвращает абсолютную прибыль (может быть отрицательной)
func ProfitAmount(balance, startBalance float64) float64 {
	amount, _ := decimal.NewFromFloat(balance).Sub(decimal.NewFromFloat(startBalance)).Float64()
	return amount
}

// EffectiveStartingBalance выбирает стартовый баланс трейдера,
// если он известен и положителен, иначе fallback
func EffectiveStartingBalance(traderStart, fallback float64) float64 {
	if traderStart > 0 {
		return traderStart
	}
	if fallback > 0 {
		return fallback
	}
	return DefaultStartingBalance
}

// ParseAmount разбирает денежную строку: "1,234.50", " 1234.5 ", "$1 000".
// Возвращает false для пустых и нечисловых значений.
func ParseAmount(raw string) (float64, bool) {
	cleaned := make([]rune, 0, len(raw))
	for _, r := range raw {
		switch {
		case r >= '0' && r <= '9', r == '.', r == '-':
			cleaned = append(cleaned, r)
		case r == ',', r == ' ', r == '$', r == '\u00a0':
			// разделители тысяч и символ валюты
		default:
			return 0, false
		}
	}
	if len(cleaned) == 0 {
		return 0, false
	}
	d, err := decimal.NewFromString(string(cleaned))
	if err != nil {
		return 0, false
	}
	f, _ := d.Float64()
	return f, true
}

// Round2 округляет до центов
func Round2(v float64) float64 {
	f, _ := decimal.NewFromFloat(v).Round(2).Float64()
	return f
}
