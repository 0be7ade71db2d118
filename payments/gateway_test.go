package payments

import (
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testGateway() *Gateway {
	return &Gateway{
		PayURL:     "https://sandbox.example.com/pay",
		TmnCode:    "DEMO01",
		HashSecret: testSecret,
		ReturnURL:  "https://app.example.com/payments/return",
	}
}

func TestBuildPaymentURLSignsAndScalesAmount(t *testing.T) {
	gw := testGateway()

	raw, err := gw.BuildPaymentURL(PaymentRequest{
		TxnRef:    "TESTREF00001",
		Amount:    1500000,
		OrderInfo: "BOOKING|7b1c0a44-9f30-4f39-b1b2-5a8f6f1f4a10",
		IPAddr:    "203.0.113.7",
	})
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(raw, gw.PayURL+"?"))

	u, err := url.Parse(raw)
	require.NoError(t, err)
	q := u.Query()

	// Amounts go to the gateway multiplied by 100.
	assert.Equal(t, "150000000", q.Get("vnp_Amount"))
	assert.Equal(t, "TESTREF00001", q.Get("vnp_TxnRef"))
	assert.Equal(t, "VND", q.Get("vnp_CurrCode"))
	assert.NotEmpty(t, q.Get("vnp_ExpireDate"))

	params := FlattenQuery(q)
	assert.True(t, VerifySignature(params, gw.HashSecret))
}

func TestBuildPaymentURLRejectsBadInput(t *testing.T) {
	gw := testGateway()

	_, err := gw.BuildPaymentURL(PaymentRequest{TxnRef: "X", Amount: 0})
	assert.Error(t, err)

	_, err = gw.BuildPaymentURL(PaymentRequest{TxnRef: "", Amount: 100})
	assert.Error(t, err)
}

func signedCallback(gw *Gateway, override map[string]string) map[string]string {
	params := map[string]string{
		"vnp_TmnCode":       gw.TmnCode,
		"vnp_TxnRef":        "TESTREF00001",
		"vnp_Amount":        "150000000",
		"vnp_OrderInfo":     "BOOKING|7b1c0a44-9f30-4f39-b1b2-5a8f6f1f4a10",
		"vnp_ResponseCode":  "00",
		"vnp_TransactionNo": "14721088",
		"vnp_BankCode":      "NCB",
	}
	for k, v := range override {
		params[k] = v
	}
	params[paramSecureHash] = SignParams(params, gw.HashSecret)
	return params
}

func TestParseCallbackSuccess(t *testing.T) {
	gw := testGateway()
	res := gw.ParseCallback(signedCallback(gw, nil))

	assert.True(t, res.SignatureOK)
	assert.True(t, res.Success)
	assert.Equal(t, "TESTREF00001", res.TxnRef)
	assert.Equal(t, float64(1500000), res.Amount) // divided back down
	assert.Equal(t, "14721088", res.TransactionNo)
}

func TestParseCallbackDeclined(t *testing.T) {
	gw := testGateway()
	res := gw.ParseCallback(signedCallback(gw, map[string]string{"vnp_ResponseCode": "24"}))

	assert.True(t, res.SignatureOK)
	assert.False(t, res.Success)
	assert.Equal(t, "24", res.ResponseCode)
}

func TestParseCallbackTamperedSignature(t *testing.T) {
	gw := testGateway()
	params := signedCallback(gw, nil)
	params["vnp_Amount"] = "999999900"

	res := gw.ParseCallback(params)
	assert.False(t, res.SignatureOK)
	assert.False(t, res.Success)
}

func TestParamsFromURL(t *testing.T) {
	params, err := ParamsFromURL("https://app.example.com/payments/return?vnp_TxnRef=ABC&vnp_ResponseCode=00")
	require.NoError(t, err)
	assert.Equal(t, "ABC", params["vnp_TxnRef"])
	assert.Equal(t, "00", params["vnp_ResponseCode"])
}
