package utils

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
	"time"
)

// GenerateOrderID generates a locally-unique order identifier in the form
// GS_<unix-millis>_<3-digit-random>, matching what the payment gateway
// expects as order_id.
func GenerateOrderID() string {
	n, err := rand.Int(rand.Reader, big.NewInt(1000))
	if err != nil {
		n = big.NewInt(time.Now().UnixNano() % 1000)
	}
	return fmt.Sprintf("GS_%d_%03d", time.Now().UnixMilli(), n.Int64())
}

// GenerateReferralCode generates a candidate referral code: "GS" followed by
// six uppercase hex characters. Uniqueness is enforced by the caller against
// the users table.
func GenerateReferralCode() (string, error) {
	buf := make([]byte, 3)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return "GS" + strings.ToUpper(hex.EncodeToString(buf)), nil
}
