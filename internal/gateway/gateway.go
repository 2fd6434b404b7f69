package gateway

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"tourbook/internal/model"
)

const (
	StatusApproved = "Approved"

	DefaultBaseURL = "https://api.sandbox.accept.blue/api/v2"
	DefaultLinkURL = "https://accept.blue/api/v1/create-payment-link"
	DefaultTimeout = 30 * time.Second

	FallbackReal = "real"
	FallbackTest = "test"
)

// PaymentGateway is the card processing surface the registration flow relies on.
type PaymentGateway interface {
	Verify(ctx context.Context, req *VerifyRequest) (*VerifyResult, error)
	Charge(ctx context.Context, req *ChargeRequest) (*ChargeResult, error)
	Refund(ctx context.Context, referenceNumber string, amount float64) (*ChargeResult, error)
}

type Config struct {
	APIKey        string
	BaseURL       string
	LinkURL       string
	PublicBaseURL string
	FallbackMode  string
	Timeout       time.Duration
}

type Card struct {
	CardNumber     string `json:"card_number"`
	ExpiryMonth    string `json:"expiry_month"`
	ExpiryYear     string `json:"expiry_year"`
	CVV            string `json:"cvv"`
	CardholderName string `json:"cardholder_name"`
}

// Last4 is the only part of a card number that may appear in logs.
func (c Card) Last4() string {
	if len(c.CardNumber) <= 4 {
		return c.CardNumber
	}
	return c.CardNumber[len(c.CardNumber)-4:]
}

type VerifyRequest struct {
	Card
	BillingAddress string `json:"billing_address"`
	BillingZip     string `json:"billing_zip"`
}

type VerifyResult struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message,omitempty"`
}

func (r *VerifyResult) Approved() bool {
	return r != nil && r.Status == StatusApproved
}

type ChargeRequest struct {
	Card
	BillingAddress string  `json:"billing_address"`
	BillingZip     string  `json:"billing_zip"`
	Amount         float64 `json:"amount"`
	EventName      string  `json:"event_name"`
	FullName       string  `json:"full_name"`
	Email          string  `json:"email"`
	Phone          string  `json:"phone"`
	Address        string  `json:"address"`
	City           string  `json:"city"`
	State          string  `json:"state"`
	ZipCode        string  `json:"zip_code"`
	Country        string  `json:"country"`
}

type ChargeResult struct {
	Status          string `json:"status"`
	ErrorMessage    string `json:"error_message,omitempty"`
	ReferenceNumber string `json:"reference_number,omitempty"`
}

func (r *ChargeResult) Approved() bool {
	return r != nil && r.Status == StatusApproved
}

// Error is returned when the upstream API rejected a request outright or
// could not be reached. It matches model.ErrGateway.
type Error struct {
	Op         string
	StatusCode int
	Detail     string
	Err        error
}

func (e *Error) Error() string {
	msg := "gateway " + e.Op
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(": status code %d", e.StatusCode)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool { return target == model.ErrGateway }

type Client struct {
	cfg   Config
	http  *http.Client
	log   *zerolog.Logger
	now   func() time.Time
	newID func() string
}

func NewClient(cfg Config, log *zerolog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.LinkURL == "" {
		cfg.LinkURL = DefaultLinkURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.FallbackMode != FallbackTest {
		cfg.FallbackMode = FallbackReal
	}
	if log == nil {
		nop := zerolog.Nop()
		log = &nop
	}
	return &Client{
		cfg:   cfg,
		http:  &http.Client{Timeout: cfg.Timeout},
		log:   log,
		now:   time.Now,
		newID: func() string { return strings.ReplaceAll(uuid.NewString(), "-", "") },
	}
}

type transactionFlags struct {
	IsCustomerInitiated bool `json:"is_customer_initiated"`
	CardholderPresent   bool `json:"cardholder_present"`
	CardPresent         bool `json:"card_present"`
}

var cardNotPresent = transactionFlags{IsCustomerInitiated: true}

type verifyPayload struct {
	Card        string           `json:"card"`
	ExpiryMonth int              `json:"expiry_month"`
	ExpiryYear  int              `json:"expiry_year"`
	CVV2        string           `json:"cvv2"`
	AVSAddress  string           `json:"avs_address"`
	AVSZip      string           `json:"avs_zip"`
	Name        string           `json:"name"`
	Flags       transactionFlags `json:"transaction_flags"`
}

type billingInfo struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Street    string `json:"street"`
	City      string `json:"city"`
	State     string `json:"state"`
	Zip       string `json:"zip"`
	Country   string `json:"country"`
	Phone     string `json:"phone"`
}

type transactionDetails struct {
	Description   string `json:"description"`
	InvoiceNumber string `json:"invoice_number"`
}

type customer struct {
	Email      string `json:"email"`
	Identifier string `json:"identifier"`
}

type chargePayload struct {
	Amount      float64            `json:"amount"`
	Card        string             `json:"card"`
	ExpiryMonth int                `json:"expiry_month"`
	ExpiryYear  int                `json:"expiry_year"`
	CVV2        string             `json:"cvv2"`
	Name        string             `json:"name"`
	AVSAddress  string             `json:"avs_address"`
	AVSZip      string             `json:"avs_zip"`
	BillingInfo billingInfo        `json:"billing_info"`
	Details     transactionDetails `json:"transaction_details"`
	Customer    customer           `json:"customer"`
	Flags       transactionFlags   `json:"transaction_flags"`
}

type refundPayload struct {
	ReferenceNumber string  `json:"reference_number"`
	Amount          float64 `json:"amount"`
}

func (c *Client) Verify(ctx context.Context, req *VerifyRequest) (*VerifyResult, error) {
	payload := verifyPayload{
		Card:        req.CardNumber,
		ExpiryMonth: atoi(req.ExpiryMonth),
		ExpiryYear:  atoi(req.ExpiryYear),
		CVV2:        req.CVV,
		AVSAddress:  req.BillingAddress,
		AVSZip:      req.BillingZip,
		Name:        req.CardholderName,
		Flags:       cardNotPresent,
	}

	var res VerifyResult
	if err := c.post(ctx, "verify", c.cfg.BaseURL+"/transactions/verify", payload, &res); err != nil {
		c.log.Error().Err(err).Str("card_last4", req.Last4()).Msg("card verification request failed")
		return nil, err
	}
	c.log.Info().Str("status", res.Status).Str("card_last4", req.Last4()).Msg("card verification completed")
	return &res, nil
}

func (c *Client) Charge(ctx context.Context, req *ChargeRequest) (*ChargeResult, error) {
	first, last := splitName(req.FullName)
	payload := chargePayload{
		Amount:      req.Amount,
		Card:        req.CardNumber,
		ExpiryMonth: atoi(req.ExpiryMonth),
		ExpiryYear:  atoi(req.ExpiryYear),
		CVV2:        req.CVV,
		Name:        req.CardholderName,
		AVSAddress:  req.BillingAddress,
		AVSZip:      req.BillingZip,
		BillingInfo: billingInfo{
			FirstName: first,
			LastName:  last,
			Street:    req.Address,
			City:      req.City,
			State:     req.State,
			Zip:       req.ZipCode,
			Country:   req.Country,
			Phone:     req.Phone,
		},
		Details: transactionDetails{
			Description:   "Event Registration: " + req.EventName,
			InvoiceNumber: fmt.Sprintf("REG-%d", c.now().UnixMilli()),
		},
		Customer: customer{Email: req.Email, Identifier: req.FullName},
		Flags:    cardNotPresent,
	}

	var res ChargeResult
	if err := c.post(ctx, "charge", c.cfg.BaseURL+"/transactions/charge", payload, &res); err != nil {
		c.log.Error().Err(err).Str("card_last4", req.Last4()).Float64("amount", req.Amount).Msg("charge request failed")
		return nil, err
	}
	c.log.Info().
		Str("status", res.Status).
		Str("reference_number", res.ReferenceNumber).
		Float64("amount", req.Amount).
		Msg("charge completed")
	return &res, nil
}

func (c *Client) Refund(ctx context.Context, referenceNumber string, amount float64) (*ChargeResult, error) {
	var res ChargeResult
	payload := refundPayload{ReferenceNumber: referenceNumber, Amount: amount}
	if err := c.post(ctx, "refund", c.cfg.BaseURL+"/transactions/refund", payload, &res); err != nil {
		c.log.Error().Err(err).Str("reference_number", referenceNumber).Msg("refund request failed")
		return nil, err
	}
	c.log.Warn().
		Str("status", res.Status).
		Str("reference_number", referenceNumber).
		Float64("amount", amount).
		Msg("refund completed")
	return &res, nil
}

// post sends the payload and decodes the gateway's JSON answer whatever the
// HTTP status; only transport failures and undecodable bodies are errors.
func (c *Client) post(ctx context.Context, op, endpoint string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return &Error{Op: op, Err: fmt.Errorf("marshal request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return &Error{Op: op, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte(c.cfg.APIKey)))

	resp, err := c.http.Do(req)
	if err != nil {
		return &Error{Op: op, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &Error{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("read response: %w", err)}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &Error{Op: op, StatusCode: resp.StatusCode, Detail: truncate(string(raw), 200), Err: errors.New("undecodable response")}
	}
	return nil
}

func atoi(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return n
}

func splitName(full string) (string, string) {
	full = strings.TrimSpace(full)
	first, last, _ := strings.Cut(full, " ")
	return first, strings.TrimSpace(last)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
