package payments

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"net/url"
	"sort"
	"strings"
)

const (
	paramSecureHash     = "vnp_SecureHash"
	paramSecureHashType = "vnp_SecureHashType"
)

// hashPayload builds the canonical string the gateway signs: all non-empty
// parameters sorted lexicographically by key, query-encoded, joined with "&".
// The signature fields themselves are never part of the payload.
func hashPayload(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k, v := range params {
		if v == "" || k == paramSecureHash || k == paramSecureHashType {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(k))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(params[k]))
	}
	return b.String()
}

// SignParams computes the HMAC-SHA512 signature over the canonical payload.
func SignParams(params map[string]string, secret string) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write([]byte(hashPayload(params)))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature recomputes the signature over every received field except
// the signature fields and compares it case-insensitively with the one the
// gateway sent. A missing signature always fails.
func VerifySignature(params map[string]string, secret string) bool {
	received := params[paramSecureHash]
	if received == "" {
		return false
	}
	expected := SignParams(params, secret)
	return strings.EqualFold(expected, received)
}
