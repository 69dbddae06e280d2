// Package payment verifies the payment gateway's callback signature. The
// verifier is the sole gate before an order's payment_status moves to PAID.
package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

type Verifier struct {
	secret []byte
}

// NewVerifier fails when the shared secret is absent: that is a startup
// misconfiguration, not a per-request condition.
func NewVerifier(secret string) (*Verifier, error) {
	if secret == "" {
		return nil, fmt.Errorf("payment gateway secret is not configured")
	}
	return &Verifier{secret: []byte(secret)}, nil
}

// Verify computes HMAC-SHA256 over "orderRef|paymentRef" and compares it
// in constant time to the provided hex signature. Any mismatch, including
// malformed input, yields false; it never returns an error.
func (v *Verifier) Verify(orderRef, paymentRef, providedSignature string) bool {
	if orderRef == "" || paymentRef == "" || providedSignature == "" {
		return false
	}

	mac := hmac.New(sha256.New, v.secret)
	mac.Write([]byte(orderRef + "|" + paymentRef))
	expected := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(providedSignature))
}
