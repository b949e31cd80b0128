// Package rut validates and formats Chilean national ids (RUT).
package rut

import (
	"errors"
	"strconv"
	"strings"
)

var ErrInvalid = errors.New("rut: invalid")

// Clean strips dots, dashes and spaces and upper-cases the check digit.
func Clean(value string) string {
	r := strings.NewReplacer(".", "", "-", "", " ", "")
	return strings.ToUpper(r.Replace(strings.TrimSpace(value)))
}

// CheckDigit computes the mod-11 verifier for the numeric body of a RUT.
func CheckDigit(body string) string {
	sum, multiplier := 0, 2
	for i := len(body) - 1; i >= 0; i-- {
		sum += int(body[i]-'0') * multiplier
		multiplier++
		if multiplier > 7 {
			multiplier = 2
		}
	}
	switch dv := 11 - sum%11; dv {
	case 11:
		return "0"
	case 10:
		return "K"
	default:
		return strconv.Itoa(dv)
	}
}

func Valid(value string) bool {
	cleaned := Clean(value)
	if len(cleaned) < 2 {
		return false
	}
	body, dv := cleaned[:len(cleaned)-1], cleaned[len(cleaned)-1:]
	for _, r := range body {
		if r < '0' || r > '9' {
			return false
		}
	}
	return CheckDigit(body) == dv
}

// Normalize returns the cleaned RUT or ErrInvalid.
func Normalize(value string) (string, error) {
	if !Valid(value) {
		return "", ErrInvalid
	}
	return Clean(value), nil
}

// Format renders 123456785 as 12.345.678-5. Inputs too short to carry a
// check digit are returned cleaned.
func Format(value string) string {
	cleaned := Clean(value)
	if len(cleaned) < 2 {
		return cleaned
	}
	body, dv := cleaned[:len(cleaned)-1], cleaned[len(cleaned)-1:]

	var b strings.Builder
	for i, r := range body {
		if i > 0 && (len(body)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	return b.String() + "-" + dv
}
