package payments

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	config "github.com/minhvu2810/homestay_booking/configs"
)

const (
	gatewayVersion       = "2.1.0"
	sessionExpiryMinutes = 15
	ResponseCodeSuccess  = "00"
	MethodVNPay          = "vnpay"
)

// Gateway is the VNPay client. All outgoing requests carry an HMAC-SHA512
// signature over the sorted parameter set; callbacks are verified the same
// way before anything is trusted.
type Gateway struct {
	PayURL     string
	APIURL     string
	TmnCode    string
	HashSecret string
	ReturnURL  string
}

func NewGatewayFromEnv() *Gateway {
	return &Gateway{
		PayURL:     config.ConfigOr("VNPAY_PAY_URL", "https://sandbox.vnpayment.vn/paymentv2/vpcpay.html"),
		APIURL:     config.ConfigOr("VNPAY_API_URL", "https://sandbox.vnpayment.vn/merchant_webapi/api/transaction"),
		TmnCode:    config.Config("VNPAY_TMN_CODE"),
		HashSecret: config.Config("VNPAY_HASH_SECRET"),
		ReturnURL:  config.Config("VNPAY_RETURN_URL"),
	}
}

type PaymentRequest struct {
	TxnRef    string  // our unique transaction code
	Amount    float64 // whole VND, rounded by the caller
	OrderInfo string  // encoded order descriptor
	IPAddr    string
}

// BuildPaymentURL produces the signed redirect URL for a payment session.
// The session expires on the gateway side after 15 minutes.
func (g *Gateway) BuildPaymentURL(req PaymentRequest) (string, error) {
	if req.Amount <= 0 {
		return "", fmt.Errorf("payment amount must be positive, got %v", req.Amount)
	}
	if req.TxnRef == "" {
		return "", fmt.Errorf("transaction reference is required")
	}

	now := time.Now()
	params := map[string]string{
		"vnp_Version":    gatewayVersion,
		"vnp_Command":    "pay",
		"vnp_TmnCode":    g.TmnCode,
		"vnp_Amount":     strconv.FormatInt(int64(math.Round(req.Amount))*100, 10),
		"vnp_CurrCode":   "VND",
		"vnp_TxnRef":     req.TxnRef,
		"vnp_OrderInfo":  req.OrderInfo,
		"vnp_OrderType":  "170000", // accommodation services
		"vnp_Locale":     "vn",
		"vnp_ReturnUrl":  g.ReturnURL,
		"vnp_IpAddr":     req.IPAddr,
		"vnp_CreateDate": now.Format("20060102150405"),
		"vnp_ExpireDate": now.Add(sessionExpiryMinutes * time.Minute).Format("20060102150405"),
	}
	params[paramSecureHash] = SignParams(params, g.HashSecret)

	keys := make([]string, 0, len(params))
	for k, v := range params {
		if v == "" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var q strings.Builder
	for i, k := range keys {
		if i > 0 {
			q.WriteByte('&')
		}
		q.WriteString(url.QueryEscape(k))
		q.WriteByte('=')
		q.WriteString(url.QueryEscape(params[k]))
	}
	return g.PayURL + "?" + q.String(), nil
}

// CallbackResult is the normalized view of a gateway callback, whichever
// channel it arrived through.
type CallbackResult struct {
	TxnRef        string
	OrderInfo     string
	Amount        float64 // whole VND, already divided back down
	ResponseCode  string
	TransactionNo string
	BankCode      string
	Raw           string
	SignatureOK   bool
	Success       bool
}

// ParseCallback verifies the signature and normalizes the callback fields.
// SignatureOK is false on any mismatch; callers must not mutate state then.
func (g *Gateway) ParseCallback(params map[string]string) CallbackResult {
	res := CallbackResult{
		TxnRef:        params["vnp_TxnRef"],
		OrderInfo:     params["vnp_OrderInfo"],
		ResponseCode:  params["vnp_ResponseCode"],
		TransactionNo: params["vnp_TransactionNo"],
		BankCode:      params["vnp_BankCode"],
		Raw:           encodeRaw(params),
		SignatureOK:   VerifySignature(params, g.HashSecret),
	}
	if raw := params["vnp_Amount"]; raw != "" {
		if cents, err := strconv.ParseInt(raw, 10, 64); err == nil {
			res.Amount = float64(cents) / 100
		}
	}
	res.Success = res.SignatureOK && res.ResponseCode == ResponseCodeSuccess
	return res
}

// ParamsFromURL extracts callback parameters from a raw callback URL, for
// clients that can only relay the redirect URL they landed on.
func ParamsFromURL(raw string) (map[string]string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("cannot parse callback url: %v", err)
	}
	return FlattenQuery(u.Query()), nil
}

// FlattenQuery keeps the first value of each query parameter.
func FlattenQuery(values url.Values) map[string]string {
	params := make(map[string]string, len(values))
	for k, v := range values {
		if len(v) > 0 {
			params[k] = v[0]
		}
	}
	return params
}

func encodeRaw(params map[string]string) string {
	values := url.Values{}
	for k, v := range params {
		values.Set(k, v)
	}
	return values.Encode()
}

type refundResponse struct {
	ResponseCode string `json:"vnp_ResponseCode"`
	Message      string `json:"vnp_Message"`
}

// RequestRefund asks the gateway to move real money back to the payer. It
// returns the gateway response code; "00" means the refund was accepted.
func (g *Gateway) RequestRefund(txnRef string, amount float64, createdBy string) (string, error) {
	now := time.Now()
	params := map[string]string{
		"vnp_RequestId":       fmt.Sprintf("%s-%d", txnRef, now.UnixNano()),
		"vnp_Version":         gatewayVersion,
		"vnp_Command":         "refund",
		"vnp_TmnCode":         g.TmnCode,
		"vnp_TransactionType": "02", // full refund
		"vnp_TxnRef":          txnRef,
		"vnp_Amount":          strconv.FormatInt(int64(math.Round(amount))*100, 10),
		"vnp_OrderInfo":       "refund " + txnRef,
		"vnp_TransactionDate": now.Format("20060102150405"),
		"vnp_CreateDate":      now.Format("20060102150405"),
		"vnp_CreateBy":        createdBy,
		"vnp_IpAddr":          "127.0.0.1",
	}
	params[paramSecureHash] = SignParams(params, g.HashSecret)

	body, err := json.Marshal(params)
	if err != nil {
		return "", fmt.Errorf("failed to marshal refund payload: %v", err)
	}

	httpReq, err := http.NewRequest("POST", g.APIURL, bytes.NewBuffer(body))
	if err != nil {
		return "", fmt.Errorf("failed to create refund request: %v", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("failed to send refund request: %v", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read refund response: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("gateway refund API returned non-200 status: %d", resp.StatusCode)
	}

	var parsed refundResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("failed to unmarshal refund response: %v", err)
	}
	return parsed.ResponseCode, nil
}
