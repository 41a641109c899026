package utils

import (
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

// OTPValidity is how long a delivered code stays valid
const OTPValidity = 15 * time.Minute

// otpOpts pins the code parameters. The period matches the validity window
// so a code generated at delivery time validates until it expires.
var otpOpts = totp.ValidateOpts{
	Period:    uint(OTPValidity / time.Second),
	Skew:      1,
	Digits:    otp.DigitsSix,
	Algorithm: otp.AlgorithmSHA1,
}

// NewOTPSecret creates a per-user secret used to derive OTP codes
func NewOTPSecret(accountName string) (string, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      "GradSkill",
		AccountName: accountName,
	})
	if err != nil {
		return "", err
	}
	return key.Secret(), nil
}

// GenerateOTP derives the 6-digit code for the current window
func GenerateOTP(secret string) (string, error) {
	return totp.GenerateCodeCustom(secret, time.Now(), otpOpts)
}

// VerifyOTP checks a code against the user's secret
func VerifyOTP(code, secret string) bool {
	ok, err := totp.ValidateCustom(code, secret, time.Now(), otpOpts)
	return err == nil && ok
}
