package utils

import (
	"crypto/rand"
	"math/big"
	"strings"
)

// OTPLength is the number of digits in every issued passcode.
const OTPLength = 6

var ten = big.NewInt(10)

// GenerateSecureOTP returns OTPLength decimal digits, each drawn uniformly
// from crypto/rand.
func GenerateSecureOTP() (string, error) {
	var builder strings.Builder
	builder.Grow(OTPLength)
	for i := 0; i < OTPLength; i++ {
		n, err := rand.Int(rand.Reader, ten)
		if err != nil {
			return "", err
		}
		builder.WriteByte(byte('0' + n.Int64()))
	}
	return builder.String(), nil
}
