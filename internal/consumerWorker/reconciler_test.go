package consumerWorker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tourbook/internal/dto"
	"tourbook/internal/gateway"
	"tourbook/internal/model"
	"tourbook/internal/repo"
)

type fakeStore struct {
	mu         sync.Mutex
	regs       map[int64]*model.Registration
	events     map[int64]*model.Event
	confirmErr error
	expireErr  error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		regs: map[int64]*model.Registration{
			1: {ID: 1, EventID: 7, Email: "a@x.com", Status: model.RegistrationPending, CreatedAt: time.Unix(0, 0)},
		},
		events: map[int64]*model.Event{7: {ID: 7, Name: "Summer Camp"}},
	}
}

func (s *fakeStore) GetEventByID(_ context.Context, id int64) (*model.Event, error) {
	if e, ok := s.events[id]; ok {
		return e, nil
	}
	return nil, model.ErrEventNotFound
}

func (s *fakeStore) GetRegistrationByID(_ context.Context, id int64) (*model.Registration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.regs[id]; ok {
		cp := *r
		return &cp, nil
	}
	return nil, model.ErrRegistrationNotFound
}

func (s *fakeStore) ConfirmRegistration(_ context.Context, id int64, txn string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.confirmErr != nil {
		return s.confirmErr
	}
	r, ok := s.regs[id]
	if !ok {
		return model.ErrRegistrationNotFound
	}
	if r.Status != model.RegistrationPending {
		return repo.ErrNotPending
	}
	r.Status, r.TransactionID = model.RegistrationConfirmed, txn
	return nil
}

func (s *fakeStore) ExpireIfPendingTx(_ context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.expireErr != nil {
		return false, s.expireErr
	}
	r, ok := s.regs[id]
	if !ok {
		return false, model.ErrRegistrationNotFound
	}
	if r.Status != model.RegistrationPending || r.TransactionID != "" {
		return false, nil
	}
	r.Status = model.RegistrationExpired
	return true, nil
}

func (s *fakeStore) ListStalePending(_ context.Context, olderThan time.Time, limit int) ([]model.Registration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Registration
	for _, r := range s.regs {
		if r.Status == model.RegistrationPending && r.CreatedAt.Before(olderThan) && len(out) < limit {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (s *fakeStore) status(id int64) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.regs[id].Status
}

type fakeRefunder struct {
	refunds []string
	result  *gateway.ChargeResult
	err     error
}

func (f *fakeRefunder) Refund(_ context.Context, ref string, _ float64) (*gateway.ChargeResult, error) {
	f.refunds = append(f.refunds, ref)
	if f.err != nil {
		return nil, f.err
	}
	if f.result != nil {
		return f.result, nil
	}
	return &gateway.ChargeResult{Status: gateway.StatusApproved, ReferenceNumber: "RF-1"}, nil
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []int64
}

func (n *fakeNotifier) SendConfirmation(_ context.Context, reg *model.Registration, _ *model.Event) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, reg.ID)
	return nil
}

func message(t *testing.T, msg dto.RegistrationOperateMessage) []byte {
	t.Helper()
	b, err := json.Marshal(msg)
	require.NoError(t, err)
	return b
}

func TestReconciler_Expire(t *testing.T) {
	store := newFakeStore()
	r := NewReconciler(store, &fakeRefunder{}, &fakeNotifier{}, nil)

	err := r.Handle(context.Background(), message(t, dto.RegistrationOperateMessage{
		Kind: dto.MessageReservationExpire, RegistrationID: 1,
	}))
	require.NoError(t, err)
	assert.Equal(t, model.RegistrationExpired, store.status(1))

	err = r.Handle(context.Background(), message(t, dto.RegistrationOperateMessage{
		Kind: dto.MessageReservationExpire, RegistrationID: 99,
	}))
	assert.NoError(t, err)
}

func TestReconciler_ExpireLeavesConfirmedAlone(t *testing.T) {
	store := newFakeStore()
	store.regs[1].Status = model.RegistrationConfirmed
	store.regs[1].TransactionID = "REF-1"
	r := NewReconciler(store, &fakeRefunder{}, &fakeNotifier{}, nil)

	expired, err := r.Expire(context.Background(), 1)
	require.NoError(t, err)
	assert.False(t, expired)
	assert.Equal(t, model.RegistrationConfirmed, store.status(1))
}

func TestReconciler_ExpireStoreErrorRequeues(t *testing.T) {
	store := newFakeStore()
	store.expireErr = errors.New("db down")
	r := NewReconciler(store, &fakeRefunder{}, &fakeNotifier{}, nil)

	err := r.Handle(context.Background(), message(t, dto.RegistrationOperateMessage{
		Kind: dto.MessageReservationExpire, RegistrationID: 1,
	}))
	assert.Error(t, err)
}

func TestReconciler_SettleConfirmsAndNotifies(t *testing.T) {
	store := newFakeStore()
	refunder := &fakeRefunder{}
	notifier := &fakeNotifier{}
	r := NewReconciler(store, refunder, notifier, nil)

	err := r.Handle(context.Background(), message(t, dto.RegistrationOperateMessage{
		Kind: dto.MessageRegistrationReconcile, RegistrationID: 1, TransactionID: "REF-1", Amount: 200,
	}))
	require.NoError(t, err)
	assert.Equal(t, model.RegistrationConfirmed, store.status(1))
	assert.Equal(t, []int64{1}, notifier.sent)
	assert.Empty(t, refunder.refunds)
}

func TestReconciler_SettleRefundsExpiredRegistration(t *testing.T) {
	store := newFakeStore()
	store.regs[1].Status = model.RegistrationExpired
	refunder := &fakeRefunder{}
	notifier := &fakeNotifier{}
	r := NewReconciler(store, refunder, notifier, nil)

	require.NoError(t, r.Settle(context.Background(), 1, "REF-1", 200))
	assert.Equal(t, []string{"REF-1"}, refunder.refunds)
	assert.Empty(t, notifier.sent)
}

func TestReconciler_RefundTransportErrorRequeues(t *testing.T) {
	store := newFakeStore()
	store.regs[1].Status = model.RegistrationFailed
	r := NewReconciler(store, &fakeRefunder{err: errors.New("timeout")}, &fakeNotifier{}, nil)

	assert.Error(t, r.Settle(context.Background(), 1, "REF-1", 200))
}

func TestReconciler_DeclinedRefundIsDropped(t *testing.T) {
	store := newFakeStore()
	store.regs[1].Status = model.RegistrationExpired
	refunder := &fakeRefunder{result: &gateway.ChargeResult{Status: "Declined"}}
	r := NewReconciler(store, refunder, &fakeNotifier{}, nil)

	assert.NoError(t, r.Settle(context.Background(), 1, "REF-1", 200))
	assert.Len(t, refunder.refunds, 1)
}

func TestReconciler_ConfirmedNotice(t *testing.T) {
	notifier := &fakeNotifier{}
	r := NewReconciler(newFakeStore(), &fakeRefunder{}, notifier, nil)

	require.NoError(t, r.Handle(context.Background(), message(t, dto.RegistrationOperateMessage{
		Kind: dto.MessageRegistrationConfirmed, RegistrationID: 1,
	})))
	assert.Equal(t, []int64{1}, notifier.sent)
}

func TestReconciler_DropsMalformedAndUnknown(t *testing.T) {
	r := NewReconciler(newFakeStore(), &fakeRefunder{}, &fakeNotifier{}, nil)

	assert.NoError(t, r.Handle(context.Background(), []byte("{not json")))
	assert.NoError(t, r.Handle(context.Background(), message(t, dto.RegistrationOperateMessage{Kind: "mystery"})))
}
