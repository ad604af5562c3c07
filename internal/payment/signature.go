package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// VerifyPaymentSignature checks the signature the checkout widget hands back
// after a payment: hex HMAC-SHA256 of "<gateway order id>|<gateway payment id>"
// keyed with the API key secret. Any empty input fails.
func VerifyPaymentSignature(gatewayOrderID, gatewayPaymentID, signature, secret string) bool {
	if gatewayOrderID == "" || gatewayPaymentID == "" {
		return false
	}
	return verifyHMAC([]byte(gatewayOrderID+"|"+gatewayPaymentID), signature, secret)
}

// VerifyWebhookSignature checks the X-Razorpay-Signature header against the
// exact request body keyed with the webhook secret. Any empty input fails.
func VerifyWebhookSignature(rawPayload []byte, signature, secret string) bool {
	if len(rawPayload) == 0 {
		return false
	}
	return verifyHMAC(rawPayload, signature, secret)
}

// Sign returns the hex HMAC-SHA256 of message under secret.
func Sign(message []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(message)
	return hex.EncodeToString(mac.Sum(nil))
}

func verifyHMAC(message []byte, signature, secret string) bool {
	if signature == "" || secret == "" {
		return false
	}
	expected := Sign(message, secret)
	return hmac.Equal([]byte(expected), []byte(signature))
}
