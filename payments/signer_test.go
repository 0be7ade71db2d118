package payments

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

const testSecret = "TESTSECRET123"

func sampleParams() map[string]string {
	return map[string]string{
		"vnp_Version":   "2.1.0",
		"vnp_Command":   "pay",
		"vnp_TmnCode":   "DEMO01",
		"vnp_Amount":    "150000000",
		"vnp_TxnRef":    "ABC123XYZ789",
		"vnp_OrderInfo": "BOOKING|7b1c0a44-9f30-4f39-b1b2-5a8f6f1f4a10",
	}
}

func TestSignAndVerifyRoundtrip(t *testing.T) {
	params := sampleParams()
	params[paramSecureHash] = SignParams(params, testSecret)

	assert.True(t, VerifySignature(params, testSecret))
}

func TestVerifyRejectsTamperedParams(t *testing.T) {
	params := sampleParams()
	params[paramSecureHash] = SignParams(params, testSecret)

	params["vnp_Amount"] = "999999900"
	assert.False(t, VerifySignature(params, testSecret))
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	params := sampleParams()
	params[paramSecureHash] = SignParams(params, testSecret)

	assert.False(t, VerifySignature(params, "SOMEOTHERSECRET"))
}

func TestVerifyRejectsMissingSignature(t *testing.T) {
	assert.False(t, VerifySignature(sampleParams(), testSecret))
}

func TestVerifyIsCaseInsensitiveOnSignature(t *testing.T) {
	params := sampleParams()
	params[paramSecureHash] = strings.ToUpper(SignParams(params, testSecret))

	assert.True(t, VerifySignature(params, testSecret))
}

func TestHashPayloadSkipsEmptyAndSignatureFields(t *testing.T) {
	params := sampleParams()
	withNoise := sampleParams()
	withNoise["vnp_BankCode"] = ""
	withNoise[paramSecureHash] = "deadbeef"
	withNoise[paramSecureHashType] = "HmacSHA512"

	assert.Equal(t, hashPayload(params), hashPayload(withNoise))
}

func TestHashPayloadIsSortedAndEncoded(t *testing.T) {
	payload := hashPayload(map[string]string{
		"b": "2",
		"a": "1",
		"c": "hello world",
	})
	assert.Equal(t, "a=1&b=2&c=hello+world", payload)
}
