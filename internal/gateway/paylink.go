package gateway

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"tourbook/internal/model"
)

const (
	testLinkHost       = "https://pay.brytewire.com/"
	linkDateLayout     = "Jan 2, 2006"
	maxLinkDescription = 100
)

type LinkRequest struct {
	EventName   string     `json:"event_name"`
	Description string     `json:"description"`
	Price       float64    `json:"price"`
	StartDate   *time.Time `json:"start_date,omitempty"`
	EndDate     *time.Time `json:"end_date,omitempty"`
}

type LinkResult struct {
	PaymentLink   string `json:"payment_link"`
	PaymentLinkID string `json:"payment_link_id,omitempty"`
	TestMode      bool   `json:"test_mode,omitempty"`
	Note          string `json:"note,omitempty"`
}

type linkPayload struct {
	AuthToken   string `json:"auth_token"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Amount      int64  `json:"amount"`
	Currency    string `json:"currency"`
	SuccessURL  string `json:"success_url"`
	CancelURL   string `json:"cancel_url"`
}

// GenerateLink mints a hosted payment link for an event. With the fallback
// mode set to test, upstream failures produce a clearly flagged test link.
func (c *Client) GenerateLink(ctx context.Context, req *LinkRequest) (*LinkResult, error) {
	var missing []string
	if strings.TrimSpace(req.EventName) == "" {
		missing = append(missing, "event name")
	}
	if req.Price <= 0 {
		missing = append(missing, "price per person")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing required fields: %s", model.ErrValidation, strings.Join(missing, ", "))
	}
	if c.cfg.APIKey == "" {
		return nil, &Error{Op: "link", Detail: "payment API key is not configured"}
	}

	payload := linkPayload{
		AuthToken:   c.cfg.APIKey,
		Name:        req.EventName,
		Description: LinkDescription(req),
		Amount:      int64(math.Round(req.Price * 100)),
		Currency:    "USD",
		SuccessURL:  c.cfg.PublicBaseURL,
		CancelURL:   c.cfg.PublicBaseURL,
	}
	c.log.Info().
		Str("event_name", req.EventName).
		Int64("amount", payload.Amount).
		Str("fallback_mode", c.cfg.FallbackMode).
		Msg("requesting hosted payment link")

	res, err := c.requestLink(ctx, payload)
	if err == nil {
		return res, nil
	}
	if c.cfg.FallbackMode != FallbackTest {
		c.log.Error().Err(err).Str("event_name", req.EventName).Msg("payment link generation failed")
		return nil, err
	}

	c.log.Warn().Err(err).Str("event_name", req.EventName).Msg("payment link generation failed, issuing test link")
	note := "This is a test payment link (API call failed)"
	var gwErr *Error
	if errors.As(err, &gwErr) && gwErr.StatusCode == 0 {
		note = "This is a test payment link (API connection failed)"
	}
	return c.testLink(req, note), nil
}

func (c *Client) requestLink(ctx context.Context, payload linkPayload) (*LinkResult, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, &Error{Op: "link", Err: fmt.Errorf("marshal request: %w", err)}
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.LinkURL, bytes.NewReader(body))
	if err != nil {
		return nil, &Error{Op: "link", Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte(c.cfg.APIKey)))

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, &Error{Op: "link", Err: err}
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &Error{Op: "link", StatusCode: resp.StatusCode, Detail: truncate(string(raw), 200)}
	}

	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, &Error{Op: "link", StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	link := firstString(decoded, "url", "payment_url", "link")
	if link == "" {
		return nil, &Error{Op: "link", StatusCode: resp.StatusCode, Detail: "response carried no payment link"}
	}
	return &LinkResult{
		PaymentLink:   link,
		PaymentLinkID: firstString(decoded, "id", "payment_id"),
	}, nil
}

func (c *Client) testLink(req *LinkRequest, note string) *LinkResult {
	id := fmt.Sprintf("test-%d-%s", c.now().UnixMilli(), truncate(c.newID(), 8))
	name := strings.ReplaceAll(url.QueryEscape(req.EventName), "+", "%20")
	link := fmt.Sprintf("%s%s?amount=%s&name=%s",
		testLinkHost, id, strconv.FormatFloat(req.Price, 'f', -1, 64), name)
	return &LinkResult{
		PaymentLink:   link,
		PaymentLinkID: id,
		TestMode:      true,
		Note:          note,
	}
}

// LinkDescription combines a truncated event description with its date range.
func LinkDescription(req *LinkRequest) string {
	desc := truncate(req.Description, maxLinkDescription)
	if desc == "" {
		desc = req.EventName
	}
	dateRange := "Dates TBD"
	if req.StartDate != nil && !req.StartDate.IsZero() && req.EndDate != nil && !req.EndDate.IsZero() {
		dateRange = req.StartDate.Format(linkDateLayout) + " - " + req.EndDate.Format(linkDateLayout)
	}
	return desc + " (" + dateRange + ")"
}

func firstString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		switch v := m[k].(type) {
		case string:
			if v != "" {
				return v
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		}
	}
	return ""
}
