package utils

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testKey = bytes.Repeat([]byte{0x2a}, 32)

func TestValidateCardNumber(t *testing.T) {
	tests := []struct {
		name    string
		number  string
		wantErr bool
	}{
		{"visa test number", "4111111111111111", false},
		{"mastercard test number", "5555555555554444", false},
		{"amex test number", "378282246310005", false},
		{"nineteen digits", "6011000990139424009", false},
		{"bad checksum", "4111111111111112", true},
		{"too short", "411111111111", true},
		{"too long", "41111111111111111111", true},
		{"letters", "4111a11111111111", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCardNumber(tt.number)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestNormalizeAndLastFour(t *testing.T) {
	n := NormalizeCardNumber("4111 1111-1111 1111")
	assert.Equal(t, "4111111111111111", n)
	assert.Equal(t, "1111", LastFour(n))
	assert.Equal(t, "12", LastFour("12"))
}

func TestCardBrand(t *testing.T) {
	assert.Equal(t, "visa", CardBrand("4111111111111111"))
	assert.Equal(t, "mastercard", CardBrand("5555555555554444"))
	assert.Equal(t, "amex", CardBrand("378282246310005"))
	assert.Equal(t, "rupay", CardBrand("6080000000000001"))
	assert.Equal(t, "other", CardBrand("9999999999999995"))
}

func TestValidateDigits(t *testing.T) {
	assert.True(t, ValidateDigits("1234", 4))
	assert.False(t, ValidateDigits("123", 4))
	assert.False(t, ValidateDigits("12a4", 4))
	assert.True(t, ValidateDigits("123", 3))
}

func TestEncryptDecrypt(t *testing.T) {
	for _, plain := range []string{"4111111111111111", "0123456789abcdef", "x"} {
		enc, err := Encrypt(plain, testKey)
		require.NoError(t, err)
		assert.NotContains(t, enc, plain)

		dec, err := Decrypt(enc, testKey)
		require.NoError(t, err)
		assert.Equal(t, plain, dec)
	}

	a, err := Encrypt("same", testKey)
	require.NoError(t, err)
	b, err := Encrypt("same", testKey)
	require.NoError(t, err)
	assert.NotEqual(t, a, b, "random IV")
}

func TestEncryptErrors(t *testing.T) {
	_, err := Encrypt("", testKey)
	assert.Error(t, err)

	_, err = Encrypt("data", []byte("short"))
	assert.Error(t, err)

	_, err = Decrypt("zz", testKey)
	assert.Error(t, err)

	_, err = Decrypt("00112233", testKey)
	assert.Error(t, err)
}

func TestHMAC(t *testing.T) {
	mac := GenerateHMAC("4111111111111111", "12/2030", "secret")
	assert.Len(t, mac, 64)
	assert.True(t, VerifyHMAC("4111111111111111", "12/2030", "secret", mac))
	assert.False(t, VerifyHMAC("4111111111111111", "11/2030", "secret", mac))
	assert.False(t, VerifyHMAC("4111111111111111", "12/2030", "other", mac))
}
