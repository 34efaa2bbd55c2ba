package processor

import (
	"regexp"
	"strconv"
	"strings"
)

// Numbers in chat are spelled out before synthesis: engines tend to mangle
// digits, especially large ones, so "1500" becomes "one thousand five
// hundred" and "3.14" becomes "three point one four".

var numberRE = regexp.MustCompile(`\b\d+(?:\.\d+)?\b`)

var smallNumbers = []string{
	"zero", "one", "two", "three", "four", "five", "six", "seven", "eight",
	"nine", "ten", "eleven", "twelve", "thirteen", "fourteen", "fifteen",
	"sixteen", "seventeen", "eighteen", "nineteen",
}

var tensNumbers = []string{
	"", "", "twenty", "thirty", "forty", "fifty", "sixty", "seventy",
	"eighty", "ninety",
}

var scaleNumbers = []struct {
	value int64
	name  string
}{
	{1_000_000_000_000, "trillion"},
	{1_000_000_000, "billion"},
	{1_000_000, "million"},
	{1_000, "thousand"},
}

// SpellNumbers replaces every standalone number in text with its English
// words. Numbers too large to parse are left untouched.
func SpellNumbers(text string) string {
	return numberRE.ReplaceAllStringFunc(text, func(tok string) string {
		whole, frac, hasFrac := strings.Cut(tok, ".")

		n, err := strconv.ParseInt(whole, 10, 64)
		if err != nil {
			return tok
		}
		out := spellInt(n)

		if hasFrac {
			out += " point"
			// Fractional digits read out one by one, preserving zeros.
			for _, d := range frac {
				out += " " + smallNumbers[d-'0']
			}
		}
		return out
	})
}

func spellInt(n int64) string {
	if n < 20 {
		return smallNumbers[n]
	}
	if n < 100 {
		s := tensNumbers[n/10]
		if n%10 != 0 {
			s += "-" + smallNumbers[n%10]
		}
		return s
	}
	if n < 1000 {
		s := smallNumbers[n/100] + " hundred"
		if n%100 != 0 {
			s += " " + spellInt(n%100)
		}
		return s
	}
	for _, scale := range scaleNumbers {
		if n >= scale.value {
			s := spellInt(n/scale.value) + " " + scale.name
			if n%scale.value != 0 {
				s += " " + spellInt(n%scale.value)
			}
			return s
		}
	}
	return strconv.FormatInt(n, 10)
}
