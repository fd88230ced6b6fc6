// Package utils provides shared utility functions.
package utils

import (
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// Round2 rounds half away from zero to two decimal places.
func Round2(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	f, _ := decimal.NewFromFloat(v).Round(2).Float64()
	return f
}

// PercentChange returns (price-prev)/prev*100, or 0 when prev is zero.
func PercentChange(price, prev float64) float64 {
	if prev == 0 {
		return 0
	}
	return decimal.NewFromFloat(price).
		Sub(decimal.NewFromFloat(prev)).
		Div(decimal.NewFromFloat(prev)).
		Mul(decimal.NewFromInt(100)).
		InexactFloat64()
}

// FormatUSD formats an amount as dollars with thousands separators.
func FormatUSD(amount float64) string {
	negative := amount < 0
	if negative {
		amount = -amount
	}

	str := fmt.Sprintf("%.2f", amount)
	parts := strings.Split(str, ".")

	result := "$" + groupThousands(parts[0]) + "." + parts[1]
	if negative {
		result = "-" + result
	}
	return result
}

func groupThousands(s string) string {
	n := len(s)
	if n <= 3 {
		return s
	}
	head := n % 3
	var b strings.Builder
	if head > 0 {
		b.WriteString(s[:head])
	}
	for i := head; i < n; i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}

// FormatPercent formats a percentage with sign.
func FormatPercent(value float64) string {
	sign := ""
	if value > 0 {
		sign = "+"
	}
	return fmt.Sprintf("%s%.2f%%", sign, value)
}

// FormatChange formats a signed price change.
func FormatChange(value float64) string {
	if value > 0 {
		return fmt.Sprintf("+%.2f", value)
	}
	return fmt.Sprintf("%.2f", value)
}

// FormatVolume formats a share count with commas.
func FormatVolume(v int64) string {
	if v < 0 {
		return "-" + groupThousands(fmt.Sprintf("%d", -v))
	}
	return groupThousands(fmt.Sprintf("%d", v))
}

// FormatCompact formats large amounts as K/M/B/T.
func FormatCompact(amount float64) string {
	abs := math.Abs(amount)
	switch {
	case abs >= 1e12:
		return fmt.Sprintf("%.2fT", amount/1e12)
	case abs >= 1e9:
		return fmt.Sprintf("%.2fB", amount/1e9)
	case abs >= 1e6:
		return fmt.Sprintf("%.2fM", amount/1e6)
	case abs >= 1e3:
		return fmt.Sprintf("%.2fK", amount/1e3)
	}
	return fmt.Sprintf("%.2f", amount)
}
