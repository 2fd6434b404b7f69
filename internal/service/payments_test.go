package service

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tourbook/internal/dto"
	"tourbook/internal/gateway"
)

// failingGateway answers every call with an upstream rejection.
type failingGateway struct{ status int }

func (g failingGateway) err() error {
	return &gateway.Error{Op: "verify", StatusCode: g.status, Detail: "upstream rejected request"}
}

func (g failingGateway) Verify(context.Context, *gateway.VerifyRequest) (*gateway.VerifyResult, error) {
	return nil, g.err()
}

func (g failingGateway) Charge(context.Context, *gateway.ChargeRequest) (*gateway.ChargeResult, error) {
	return nil, g.err()
}

func (g failingGateway) GenerateLink(context.Context, *gateway.LinkRequest) (*gateway.LinkResult, error) {
	return nil, g.err()
}

func TestVerifyCard_PassesResultThrough(t *testing.T) {
	h := newHarness(t)
	h.gateway.verify = &gateway.VerifyResult{Status: "Declined", ErrorMessage: "Invalid CVV"}
	req := gateway.VerifyRequest{Card: gateway.Card{CardNumber: "4111111111111111", CVV: "000"}}

	for i := 0; i < 2; i++ {
		w, env := h.do(t, http.MethodPost, "/api/payment/verify", req, nil)
		require.Equal(t, http.StatusOK, w.Code)
		var res gateway.VerifyResult
		require.NoError(t, json.Unmarshal(env.Data, &res))
		assert.Equal(t, "Declined", res.Status)
		assert.Equal(t, "Invalid CVV", res.ErrorMessage)
	}
	assert.Equal(t, 2, h.gateway.verifyCalls)
}

func TestChargeCard_DuplicateKey(t *testing.T) {
	h := newHarness(t)
	req := gateway.ChargeRequest{Card: gateway.Card{CardNumber: "4111111111111111"}, Amount: 200}
	headers := map[string]string{IdempotencyHeader: "charge-1"}

	w, _ := h.do(t, http.MethodPost, "/api/payment/charge", req, headers)
	require.Equal(t, http.StatusOK, w.Code)

	w, env := h.do(t, http.MethodPost, "/api/payment/charge", req, headers)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, dto.DuplicateSubmission, env.Error.Code)
	assert.Equal(t, 1, h.gateway.chargeCalls)
}

func TestGatewayFailureStatus(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   int
	}{
		{"upstream 4xx passes through", http.StatusUnprocessableEntity, http.StatusUnprocessableEntity},
		{"unreachable becomes bad gateway", 0, http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.engine = h.build(t, failingGateway{status: tt.status})

			w, env := h.do(t, http.MethodPost, "/api/payment/verify", gateway.VerifyRequest{}, nil)

			assert.Equal(t, tt.want, w.Code)
			assert.Equal(t, dto.GatewayError, env.Error.Code)
		})
	}
}

func TestGeneratePaymentLink(t *testing.T) {
	h := newHarness(t)

	w, env := h.do(t, http.MethodPost, "/api/payment/link", dto.PaymentLinkRequest{
		EventName: "Summer Camp",
		Price:     100,
		StartDate: "2025-08-01",
	}, nil)

	require.Equal(t, http.StatusOK, w.Code)
	var res gateway.LinkResult
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.Equal(t, "https://pay.example.com/Summer Camp", res.PaymentLink)
}

func TestGeneratePaymentLink_GatewayRejectionCarriesDetail(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   int
	}{
		{"upstream 4xx", http.StatusBadRequest, http.StatusBadRequest},
		{"upstream 5xx", http.StatusInternalServerError, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.engine = h.build(t, failingGateway{status: tt.status})

			w, env := h.do(t, http.MethodPost, "/api/payment/link", dto.PaymentLinkRequest{EventName: "Summer Camp", Price: 100}, nil)

			assert.Equal(t, tt.want, w.Code)
			assert.Equal(t, dto.GatewayError, env.Error.Code)
			assert.Equal(t, "Failed to generate payment link: upstream rejected request", env.Error.Desc)
		})
	}
}

func TestGeneratePaymentLink_MissingPrice(t *testing.T) {
	h := newHarness(t)
	h.engine = h.build(t, gateway.NewClient(gateway.Config{APIKey: "key"}, nil))

	w, env := h.do(t, http.MethodPost, "/api/payment/link", dto.PaymentLinkRequest{EventName: "Summer Camp"}, nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, dto.ValidationFailed, env.Error.Code)
	assert.Contains(t, env.Error.Desc, "price per person")
}

func TestGeneratePaymentLink_BadDate(t *testing.T) {
	h := newHarness(t)

	w, env := h.do(t, http.MethodPost, "/api/payment/link", dto.PaymentLinkRequest{
		EventName: "Summer Camp",
		Price:     100,
		StartDate: "soon",
	}, nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, dto.FieldBadFormat, env.Error.Code)
}
