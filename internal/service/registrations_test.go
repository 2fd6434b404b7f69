package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tourbook/internal/dto"
	"tourbook/internal/gateway"
	"tourbook/internal/model"
	"tourbook/internal/registration"
)

func (h *harness) seedEvent(t *testing.T) int64 {
	t.Helper()
	w, env := h.do(t, http.MethodPost, "/api/events", summerCamp(), nil)
	require.Equal(t, http.StatusCreated, w.Code)
	var e model.Event
	require.NoError(t, json.Unmarshal(env.Data, &e))
	return e.ID
}

func checkoutBody(eventID int64, travelers ...model.Traveler) dto.CheckoutRequest {
	return dto.CheckoutRequest{
		EventID: eventID,
		Form: registration.Form{
			FullName:     "Ann Example",
			Address:      "1 Lake Rd",
			City:         "Springfield",
			State:        "IL",
			ZipCode:      "62701",
			Country:      "US",
			DateOfBirth:  "1980-05-01",
			Participants: len(travelers),
			Travelers:    travelers,
		},
		Card: gateway.Card{
			CardNumber:     "4111111111111111",
			ExpiryMonth:    "12",
			ExpiryYear:     "2030",
			CVV:            "123",
			CardholderName: "Ann Example",
		},
	}
}

func family() []model.Traveler {
	return []model.Traveler{
		{IsAdult: true, Email: "a@x.com", Phone: "1"},
		{IsAdult: false},
	}
}

func TestCheckout_Success(t *testing.T) {
	h := newHarness(t)
	id := h.seedEvent(t)

	w, env := h.do(t, http.MethodPost, "/api/registrations/checkout", checkoutBody(id, family()...), nil)

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var resp dto.CheckoutResponse
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	assert.Equal(t, registration.StateComplete, resp.State)
	assert.InDelta(t, 200.0, resp.TotalPrice, 0.001)
	require.NotNil(t, resp.Registration)
	assert.Equal(t, "Traveler 1: Adult (a@x.com, 1); Traveler 2: Minor", resp.Registration.TravelersSummary)

	stored := h.repo.registrations[resp.Registration.ID]
	require.NotNil(t, stored)
	assert.Equal(t, model.RegistrationConfirmed, stored.Status)
	assert.Equal(t, "ref-1", stored.TransactionID)
	assert.InDelta(t, 200.0, stored.TotalPrice, 0.001)
	assert.Equal(t, []int64{stored.ID}, h.scheduler.confirmed)
	assert.Equal(t, 1, h.scheduler.expiries)
}

func TestCheckout_NoAdultNeverCallsGateway(t *testing.T) {
	h := newHarness(t)
	id := h.seedEvent(t)

	w, env := h.do(t, http.MethodPost, "/api/registrations/checkout",
		checkoutBody(id, model.Traveler{IsAdult: false}, model.Traveler{IsAdult: false}), nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, dto.NoAdultTraveler, env.Error.Code)
	assert.Zero(t, h.gateway.verifyCalls)
	assert.Zero(t, h.gateway.chargeCalls)
	assert.Empty(t, h.repo.registrations)
}

func TestCheckout_VerifyDeclinedStopsBeforeCharge(t *testing.T) {
	h := newHarness(t)
	h.gateway.verify = &gateway.VerifyResult{Status: "Declined", ErrorMessage: "Card declined"}
	id := h.seedEvent(t)

	w, env := h.do(t, http.MethodPost, "/api/registrations/checkout", checkoutBody(id, family()...), nil)

	assert.Equal(t, http.StatusPaymentRequired, w.Code)
	assert.Equal(t, dto.PaymentDeclined, env.Error.Code)
	assert.Equal(t, "Card declined", env.Error.Desc)
	assert.Zero(t, h.gateway.chargeCalls)
	assert.Empty(t, h.repo.registrations)
}

func TestCheckout_ChargeDeclinedLeavesNoConfirmedRecord(t *testing.T) {
	h := newHarness(t)
	h.gateway.charge = &gateway.ChargeResult{Status: "Declined", ErrorMessage: "Insufficient funds"}
	id := h.seedEvent(t)

	w, env := h.do(t, http.MethodPost, "/api/registrations/checkout", checkoutBody(id, family()...), nil)

	assert.Equal(t, http.StatusPaymentRequired, w.Code)
	assert.Equal(t, "Insufficient funds", env.Error.Desc)
	assert.Zero(t, h.repo.confirmedCount())
	require.Len(t, h.repo.registrations, 1)
	assert.Equal(t, model.RegistrationFailed, h.repo.registrations[1].Status)
}

func TestCheckout_ConfirmFailureKeepsChargeOnPendingRow(t *testing.T) {
	h := newHarness(t)
	id := h.seedEvent(t)
	h.repo.confirmErr = errors.New("connection reset")

	w, env := h.do(t, http.MethodPost, "/api/registrations/checkout", checkoutBody(id, family()...), nil)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, dto.PersistenceFailed, env.Error.Code)
	require.Len(t, h.repo.registrations, 1)
	stored := h.repo.registrations[1]
	assert.Equal(t, model.RegistrationPending, stored.Status)
	assert.Equal(t, "ref-1", stored.TransactionID)

	expired, err := h.repo.ExpireIfPendingTx(context.Background(), stored.ID)
	require.NoError(t, err)
	assert.False(t, expired)
}

func TestCheckout_DuplicateSubmission(t *testing.T) {
	h := newHarness(t)
	id := h.seedEvent(t)
	headers := map[string]string{IdempotencyHeader: "k-1"}

	w, _ := h.do(t, http.MethodPost, "/api/registrations/checkout", checkoutBody(id, family()...), headers)
	require.Equal(t, http.StatusCreated, w.Code)

	w, env := h.do(t, http.MethodPost, "/api/registrations/checkout", checkoutBody(id, family()...), headers)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, dto.DuplicateSubmission, env.Error.Code)
	assert.Equal(t, 1, h.gateway.chargeCalls)
}

func TestCheckout_DeclinedAttemptReleasesKey(t *testing.T) {
	h := newHarness(t)
	h.gateway.verify = &gateway.VerifyResult{Status: "Declined"}
	id := h.seedEvent(t)
	headers := map[string]string{IdempotencyHeader: "k-2"}

	w, _ := h.do(t, http.MethodPost, "/api/registrations/checkout", checkoutBody(id, family()...), headers)
	require.Equal(t, http.StatusPaymentRequired, w.Code)

	h.gateway.verify = &gateway.VerifyResult{Status: gateway.StatusApproved}
	w, _ = h.do(t, http.MethodPost, "/api/registrations/checkout", checkoutBody(id, family()...), headers)
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestCheckout_UnknownEvent(t *testing.T) {
	h := newHarness(t)

	w, env := h.do(t, http.MethodPost, "/api/registrations/checkout", checkoutBody(7, family()...), nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, dto.EventNotFound, env.Error.Code)
	assert.Zero(t, h.gateway.verifyCalls)
}

func paidRegistration(eventID int64) dto.CreateRegistrationRequest {
	return dto.CreateRegistrationRequest{
		EventID:        eventID,
		FullName:       "Ann Example",
		PrimaryContact: dto.PrimaryContact{Email: "a@x.com", Phone: "1"},
		Participants:   2,
		TotalPrice:     200,
		TransactionID:  "ref-9",
		Travelers:      family(),
	}
}

func TestCreateRegistration(t *testing.T) {
	h := newHarness(t)
	id := h.seedEvent(t)

	w, env := h.do(t, http.MethodPost, "/api/registrations", paidRegistration(id), nil)

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var reg model.Registration
	require.NoError(t, json.Unmarshal(env.Data, &reg))
	assert.Equal(t, model.RegistrationConfirmed, reg.Status)
	assert.Equal(t, "Traveler 1: Adult (a@x.com, 1); Traveler 2: Minor", reg.TravelersSummary)
	assert.Equal(t, []int64{reg.ID}, h.scheduler.confirmed)

	w, env = h.do(t, http.MethodGet, "/api/registrations/1", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(env.Data), `"transaction_id":"ref-9"`)
}

func TestCreateRegistration_Rejections(t *testing.T) {
	h := newHarness(t)
	id := h.seedEvent(t)

	noAdult := paidRegistration(id)
	noAdult.Travelers = []model.Traveler{{}, {}}
	w, env := h.do(t, http.MethodPost, "/api/registrations", noAdult, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, dto.NoAdultTraveler, env.Error.Code)

	mismatch := paidRegistration(id)
	mismatch.Participants = 3
	w, env = h.do(t, http.MethodPost, "/api/registrations", mismatch, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, dto.ValidationFailed, env.Error.Code)

	noTxn := paidRegistration(id)
	noTxn.TransactionID = " "
	w, env = h.do(t, http.MethodPost, "/api/registrations", noTxn, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, dto.ValidationFailed, env.Error.Code)

	assert.Empty(t, h.repo.registrations)
}

func TestCreateRegistration_UnknownEventStillRecorded(t *testing.T) {
	h := newHarness(t)

	w, env := h.do(t, http.MethodPost, "/api/registrations", paidRegistration(99), nil)

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var reg model.Registration
	require.NoError(t, json.Unmarshal(env.Data, &reg))
	assert.Equal(t, int64(99), reg.EventID)
	assert.Equal(t, model.RegistrationConfirmed, reg.Status)
	require.Len(t, h.repo.registrations, 1)
	assert.Equal(t, "ref-9", h.repo.registrations[reg.ID].TransactionID)
	assert.Equal(t, []int64{reg.ID}, h.scheduler.confirmed)
}

func TestCreateRegistration_PersistenceFailure(t *testing.T) {
	h := newHarness(t)
	id := h.seedEvent(t)
	h.repo.createRegErr = errors.New("connection reset")

	w, env := h.do(t, http.MethodPost, "/api/registrations", paidRegistration(id), nil)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, dto.PersistenceFailed, env.Error.Code)
	assert.Equal(t, dto.SaveFailedDesc, env.Error.Desc)
}

func TestGetRegistration_NotFound(t *testing.T) {
	h := newHarness(t)

	w, env := h.do(t, http.MethodGet, "/api/registrations/5", nil, nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, dto.RegistrationNotFound, env.Error.Code)
}
