package handler

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// verifySignature checks an X-Hub-Signature-256 header ("sha256=<hex>")
// against the HMAC-SHA256 of body keyed by secret.
func verifySignature(secret, body []byte, header string) error {
	if len(secret) == 0 {
		return errors.New("handler: signature: secret is empty")
	}
	if header == "" {
		return errors.New("handler: signature: header is missing")
	}
	got, err := hex.DecodeString(strings.TrimPrefix(header, "sha256="))
	if err != nil {
		return fmt.Errorf("handler: signature: invalid hex: %w", err)
	}
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	if !hmac.Equal(mac.Sum(nil), got) {
		return errors.New("handler: signature: mismatch")
	}
	return nil
}
