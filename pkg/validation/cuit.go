package validation

import (
	"strings"

	"github.com/go-playground/validator/v10"
)

var cuitWeights = [10]int{5, 4, 3, 2, 7, 6, 5, 4, 3, 2}

var cuitPrefixes = map[string]struct{}{
	"20": {}, "23": {}, "24": {}, "27": {},
	"30": {}, "33": {}, "34": {},
}

// NormalizeCUIT strips dashes, dots and spaces. It does not validate.
func NormalizeCUIT(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		switch r {
		case '-', '.', ' ':
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// ValidCUIT reports whether raw is an 11 digit CUIT/CUIL with a known type
// prefix and a correct mod-11 check digit.
func ValidCUIT(raw string) bool {
	cuit := NormalizeCUIT(raw)
	if len(cuit) != 11 {
		return false
	}
	for _, r := range cuit {
		if r < '0' || r > '9' {
			return false
		}
	}
	if _, ok := cuitPrefixes[cuit[:2]]; !ok {
		return false
	}

	sum := 0
	for i, w := range cuitWeights {
		sum += int(cuit[i]-'0') * w
	}
	check := 11 - sum%11
	switch check {
	case 11:
		check = 0
	case 10:
		return false
	}
	return int(cuit[10]-'0') == check
}

// FormatCUIT renders a normalised CUIT as XX-XXXXXXXX-X.
func FormatCUIT(raw string) string {
	cuit := NormalizeCUIT(raw)
	if len(cuit) != 11 {
		return raw
	}
	return cuit[:2] + "-" + cuit[2:10] + "-" + cuit[10:]
}

func validateCUIT(fl validator.FieldLevel) bool {
	return ValidCUIT(fl.Field().String())
}
