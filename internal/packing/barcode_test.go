package packing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeBarcode(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "7701234567890", "7701234567890"},
		{"whitespace", "  7701234567890\n", "7701234567890"},
		{"fractional suffix", "7701234567890.0", "7701234567890"},
		{"comma decimal", "7701234567890,0", "7701234567890"},
		{"alphanumeric untouched", "ABC-123", "ABC-123"},
		{"alphanumeric with dot untouched", "SKU.1A", "SKU.1A"},
		{"empty", "", ""},
		{"only spaces", "   ", ""},
		{"lone dot", ".", "."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeBarcode(tt.in))
		})
	}
}

func TestDigitsOnly(t *testing.T) {
	assert.Equal(t, "770123", DigitsOnly("ABC-770 123"))
	assert.Equal(t, "", DigitsOnly("no digits"))
	assert.Equal(t, "123", DigitsOnly("123"))
}

func TestBarcodesEqual(t *testing.T) {
	assert.True(t, BarcodesEqual("7701234567890", "7701234567890"))
	assert.True(t, BarcodesEqual("7701234567890.0", "7701234567890"))
	assert.True(t, BarcodesEqual(" 7701234567890 ", "7701234567890"))
	assert.True(t, BarcodesEqual("X-7701234567890", "7701234567890"), "digit-only forms match")

	assert.False(t, BarcodesEqual("7701234567890", "7701234567891"))
	assert.False(t, BarcodesEqual("", "7701234567890"))
	assert.False(t, BarcodesEqual("", ""))
	assert.False(t, BarcodesEqual("ABC", "XYZ"), "no digits, names differ")
}

func TestNormalizeName(t *testing.T) {
	assert.Equal(t, "cocacola1.5l", NormalizeName("  Coca Cola 1.5L "))
	assert.Equal(t, NormalizeName("ARROZ DIANA X500"), NormalizeName("arroz diana x500"))
	assert.Equal(t, "", NormalizeName("   "))
}
