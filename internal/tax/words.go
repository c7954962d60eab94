package tax

import (
	"math"
	"strings"
)

var ones = []string{
	"", "One", "Two", "Three", "Four", "Five", "Six", "Seven", "Eight", "Nine",
	"Ten", "Eleven", "Twelve", "Thirteen", "Fourteen", "Fifteen", "Sixteen",
	"Seventeen", "Eighteen", "Nineteen",
}

var tens = []string{
	"", "", "Twenty", "Thirty", "Forty", "Fifty", "Sixty", "Seventy", "Eighty", "Ninety",
}

const (
	crore    = 10000000
	lakh     = 100000
	thousand = 1000
)

// AmountToWords spells out the integer part of amount using crore/lakh/thousand
// grouping. Fractions are truncated, not rounded.
func AmountToWords(amount float64) string {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return ""
	}
	n := int64(amount)
	if n == 0 {
		return "Zero"
	}
	if n < 0 {
		return "Minus " + spell(uint64(-n))
	}
	return spell(uint64(n))
}

// RupeesInWords renders the amount as it appears on printed documents.
func RupeesInWords(amount float64) string {
	return "Rupees " + AmountToWords(amount) + " Only"
}

func spell(n uint64) string {
	var parts []string
	if n >= crore {
		parts = append(parts, spell(n/crore), "Crore")
		n %= crore
	}
	if n >= lakh {
		parts = append(parts, belowHundred(n/lakh), "Lakh")
		n %= lakh
	}
	if n >= thousand {
		parts = append(parts, belowHundred(n/thousand), "Thousand")
		n %= thousand
	}
	if n >= 100 {
		parts = append(parts, ones[n/100], "Hundred")
		n %= 100
	}
	if n > 0 {
		parts = append(parts, belowHundred(n))
	}
	return strings.Join(parts, " ")
}

func belowHundred(n uint64) string {
	if n < 20 {
		return ones[n]
	}
	if n%10 == 0 {
		return tens[n/10]
	}
	return tens[n/10] + " " + ones[n%10]
}
