// Package esewa implements the eSewa ePay v2 form protocol: signed payment
// form generation and callback signature verification.
// Docs: https://developer.esewa.com.np/pages/Epay-V2
package esewa

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

const (
	// TestGatewayURL is the eSewa sandbox form endpoint.
	TestGatewayURL = "https://rc-epay.esewa.com.np/api/epay/main/v2/form"
	// TestProductCode is the shared sandbox merchant code.
	TestProductCode = "EPAYTEST"
)

var (
	ErrMissingSignature  = errors.New("esewa: callback carries no signature")
	ErrInvalidSignature  = errors.New("esewa: signature mismatch")
	ErrMissingFieldNames = errors.New("esewa: callback carries no signed_field_names")
)

// Client signs outgoing payment forms and verifies gateway callbacks.
type Client struct {
	secret      string
	productCode string
	gatewayURL  string
}

func NewClient(secret, productCode, gatewayURL string) *Client {
	if productCode == "" {
		productCode = TestProductCode
	}
	if gatewayURL == "" {
		gatewayURL = TestGatewayURL
	}
	return &Client{secret: secret, productCode: productCode, gatewayURL: gatewayURL}
}

// GatewayURL returns the form endpoint the browser must POST to.
func (c *Client) GatewayURL() string { return c.gatewayURL }

// FormData is the field set eSewa expects in the payment form.
type FormData struct {
	Amount                string `json:"amount"`
	TaxAmount             string `json:"tax_amount"`
	ProductServiceCharge  string `json:"product_service_charge"`
	ProductDeliveryCharge string `json:"product_delivery_charge"`
	TotalAmount           string `json:"total_amount"`
	TransactionUUID       string `json:"transaction_uuid"`
	ProductCode           string `json:"product_code"`
	SuccessURL            string `json:"success_url"`
	FailureURL            string `json:"failure_url"`
	SignedFieldNames      string `json:"signed_field_names"`
	Signature             string `json:"signature"`
}

// PaymentForm builds the signed form for a transaction. The signature covers
// total_amount, transaction_uuid and product_code, in that order.
func (c *Client) PaymentForm(totalAmount float64, transactionUUID, successURL, failureURL string) FormData {
	amount := fmt.Sprintf("%.2f", totalAmount)
	payload := fmt.Sprintf("total_amount=%s,transaction_uuid=%s,product_code=%s", amount, transactionUUID, c.productCode)
	return FormData{
		Amount:                amount,
		TaxAmount:             "0",
		ProductServiceCharge:  "0",
		ProductDeliveryCharge: "0",
		TotalAmount:           amount,
		TransactionUUID:       transactionUUID,
		ProductCode:           c.productCode,
		SuccessURL:            successURL,
		FailureURL:            failureURL,
		SignedFieldNames:      "total_amount,transaction_uuid,product_code",
		Signature:             c.sign(payload),
	}
}

// VerifyCallback checks the gateway's signature over the callback fields.
// The signed string is rebuilt strictly in the order the gateway declares in
// signed_field_names, so gateway-side field additions keep verifying.
func (c *Client) VerifyCallback(fields map[string]string) error {
	signature := fields["signature"]
	if signature == "" {
		return ErrMissingSignature
	}
	names := fields["signed_field_names"]
	if names == "" {
		return ErrMissingFieldNames
	}

	parts := make([]string, 0, 8)
	for _, name := range strings.Split(names, ",") {
		name = strings.TrimSpace(name)
		parts = append(parts, fmt.Sprintf("%s=%s", name, fields[name]))
	}
	expected := c.sign(strings.Join(parts, ","))
	if subtle.ConstantTimeCompare([]byte(expected), []byte(signature)) != 1 {
		return ErrInvalidSignature
	}
	return nil
}

func (c *Client) sign(payload string) string {
	mac := hmac.New(sha256.New, []byte(c.secret))
	mac.Write([]byte(payload))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// DecodeCallback normalizes a gateway callback into a flat field map. eSewa
// sends either raw query/form fields or a single base64-encoded JSON blob in
// the data parameter; both shapes are accepted.
func DecodeCallback(params map[string]string) (map[string]string, error) {
	encoded, ok := params["data"]
	if !ok || encoded == "" {
		return params, nil
	}
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		// Some gateway builds use URL-safe encoding.
		raw, err = base64.URLEncoding.DecodeString(encoded)
		if err != nil {
			return nil, fmt.Errorf("esewa: decode callback data: %w", err)
		}
	}
	// Numbers must keep their exact wire text: reformatting 500.5 to
	// "500.50" would break signature verification.
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var decoded map[string]any
	if err := dec.Decode(&decoded); err != nil {
		return nil, fmt.Errorf("esewa: parse callback data: %w", err)
	}
	fields := make(map[string]string, len(decoded))
	for k, v := range decoded {
		switch val := v.(type) {
		case string:
			fields[k] = val
		case json.Number:
			fields[k] = val.String()
		default:
			fields[k] = fmt.Sprintf("%v", val)
		}
	}
	return fields, nil
}

// NewTransactionUUID returns a unique id for a payment attempt.
func NewTransactionUUID() string {
	return "CLK-" + uuid.NewString()
}
