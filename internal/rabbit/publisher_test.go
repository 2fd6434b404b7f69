package rabbit

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tourbook/internal/dto"
)

type published struct {
	body  []byte
	delay time.Duration
}

type fakeBroker struct {
	out []published
}

func (b *fakeBroker) Publish(_ context.Context, message []byte, delay time.Duration) error {
	b.out = append(b.out, published{body: message, delay: delay})
	return nil
}

func (b *fakeBroker) Consume(func([]byte) error) error { return nil }
func (b *fakeBroker) Close() {}

func decode(t *testing.T, p published) dto.RegistrationOperateMessage {
	t.Helper()
	var msg dto.RegistrationOperateMessage
	require.NoError(t, json.Unmarshal(p.body, &msg))
	return msg
}

func TestPublisher_Messages(t *testing.T) {
	b := &fakeBroker{}
	p := NewPublisher(b)
	now := time.Date(2025, time.August, 1, 12, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, p.ScheduleExpiry(ctx, 5, 7, 15*time.Minute))
	require.NoError(t, p.RequestReconcile(ctx, 5, "REF-1", 200))
	require.NoError(t, p.NotifyConfirmed(ctx, 5))
	require.Len(t, b.out, 3)

	expire := decode(t, b.out[0])
	assert.Equal(t, dto.MessageReservationExpire, expire.Kind)
	assert.Equal(t, int64(5), expire.RegistrationID)
	assert.Equal(t, int64(7), expire.EventID)
	assert.True(t, now.Add(15*time.Minute).Equal(expire.ExpireAt))
	assert.Equal(t, 15*time.Minute, b.out[0].delay)

	reconcile := decode(t, b.out[1])
	assert.Equal(t, dto.MessageRegistrationReconcile, reconcile.Kind)
	assert.Equal(t, "REF-1", reconcile.TransactionID)
	assert.Equal(t, 200.0, reconcile.Amount)
	assert.Zero(t, b.out[1].delay)

	confirmed := decode(t, b.out[2])
	assert.Equal(t, dto.MessageRegistrationConfirmed, confirmed.Kind)
	assert.Zero(t, b.out[2].delay)
}
