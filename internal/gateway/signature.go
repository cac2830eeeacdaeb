package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// ComputeSignature produces the hex HMAC-SHA256 of "intentID|paymentID" under
// the server-held secret. This is the signature the gateway attaches to
// payment callbacks.
func ComputeSignature(secret, intentID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(intentID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks a callback signature in constant time. It is a pure
// CPU-only check; no network involved.
func VerifySignature(secret, intentID, paymentID, signature string) error {
	expected := ComputeSignature(secret, intentID, paymentID)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return ErrInvalidSignature
	}
	return nil
}

// ComputeBodySignature signs a raw webhook body with the webhook secret.
func ComputeBodySignature(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyBodySignature authenticates a webhook delivery before its payload is
// parsed, in constant time.
func VerifyBodySignature(secret string, body []byte, signature string) error {
	expected := ComputeBodySignature(secret, body)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return ErrInvalidSignature
	}
	return nil
}
