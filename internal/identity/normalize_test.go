package identity

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizePhone(t *testing.T) {
	cases := map[string]string{
		"5512345678":         "5512345678",
		"+52 55 1234 5678":   "5512345678",
		"5215512345678":      "5512345678",
		"+52 1 55 1234 5678": "5512345678",
		"0052 55 1234 5678":  "5512345678",
		"005215512345678":    "5512345678",
		"01 55 1234 5678":    "5512345678",
		"(55) 1234-5678":     "5512345678",
		"12345":              "12345",
		"":                   "",
	}
	for in, want := range cases {
		require.Equal(t, want, NormalizePhone(in), "in=%q", in)
	}
}

func TestNormalizeEmail(t *testing.T) {
	require.Equal(t, "jose.nunez@example.com", NormalizeEmail("  José.Núñez@Example.com "))
	require.Equal(t, "a+b-c_d@x.mx", NormalizeEmail("A+B-C_D@X.MX"))
	require.Equal(t, "ana@example.com", NormalizeEmail("ana <>@example.com"))
}

func TestNormalizeUnit(t *testing.T) {
	require.Equal(t, "101", NormalizeUnit(" 101 "))
	require.Equal(t, "a101", NormalizeUnit("A-101"))
	require.Equal(t, "torreb4", NormalizeUnit("Tórre B #4"))
}

func TestFold(t *testing.T) {
	require.Equal(t, "buenos dias", Fold("Buenos Días"))
	require.Equal(t, "menu", Fold("MENÚ"))
}
