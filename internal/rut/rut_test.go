package rut

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValid(t *testing.T) {
	cases := map[string]bool{
		"12.345.678-5": true,
		"12345678-5":   true,
		"123456785":    true,
		"11.111.111-1": true,
		"7.775.735-K":  true,
		"7775735k":     true,
		"12.345.678-9": false,
		"":             false,
		"5":            false,
		"12a45678-5":   false,
	}
	for input, want := range cases {
		assert.Equal(t, want, Valid(input), input)
	}
}

func TestCheckDigitSpecialCases(t *testing.T) {
	assert.Equal(t, "K", CheckDigit("7775735"))
	assert.Equal(t, "0", CheckDigit("14"))
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "12.345.678-5", Format("123456785"))
	assert.Equal(t, "7.775.735-K", Format("7775735k"))
	assert.Equal(t, "1-9", Format("19"))
	assert.Equal(t, "5", Format("5"))
}

func TestNormalize(t *testing.T) {
	got, err := Normalize("12.345.678-5")
	require.NoError(t, err)
	assert.Equal(t, "123456785", got)

	_, err = Normalize("12.345.678-0")
	assert.ErrorIs(t, err, ErrInvalid)
}
