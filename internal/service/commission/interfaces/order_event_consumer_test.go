package interfaces

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nexus-commission/internal/pkg/money"
	"nexus-commission/internal/service/commission/application"
	"nexus-commission/internal/service/commission/domain"
)

type fakeAttributor struct {
	calls []*application.AttributeRequest
	err   error
}

func (f *fakeAttributor) Attribute(_ context.Context, req *application.AttributeRequest) (*application.AttributeResponse, error) {
	f.calls = append(f.calls, req)
	if f.err != nil {
		return nil, f.err
	}
	return &application.AttributeResponse{OrderID: req.OrderID}, nil
}

type setMarker map[string]bool

func (m setMarker) MarkAttributed(_ context.Context, orderID string) error {
	m[orderID] = true
	return nil
}

func (m setMarker) IsAttributed(_ context.Context, orderID string) (bool, error) {
	return m[orderID], nil
}

func orderMessage(t *testing.T, orderID string) kafka.Message {
	t.Helper()
	value, err := json.Marshal(application.AttributeRequest{
		PartnerID:        "p-1",
		OrderID:          orderID,
		OrderTotal:       money.MustParse("42.00"),
		CustomerIdentity: "c@x.com",
	})
	require.NoError(t, err)
	return kafka.Message{Key: []byte(orderID), Value: value}
}

func TestOrderEventConsumerHandle(t *testing.T) {
	ctx := context.Background()

	t.Run("attributes order", func(t *testing.T) {
		svc := &fakeAttributor{}
		c := NewOrderEventConsumer(nil, nil, svc, nil, 0)
		require.NoError(t, c.handle(ctx, orderMessage(t, "o-1")))
		require.Len(t, svc.calls, 1)
		assert.Equal(t, money.MustParse("42.00"), svc.calls[0].OrderTotal)
	})

	t.Run("duplicate is handled", func(t *testing.T) {
		svc := &fakeAttributor{err: domain.ErrAlreadyAttributed}
		c := NewOrderEventConsumer(nil, nil, svc, nil, 0)
		assert.NoError(t, c.handle(ctx, orderMessage(t, "o-1")))
	})

	t.Run("marked order is dropped", func(t *testing.T) {
		svc := &fakeAttributor{}
		c := NewOrderEventConsumer(nil, nil, svc, setMarker{"o-1": true}, 0)
		assert.NoError(t, c.handle(ctx, orderMessage(t, "o-1")))
		assert.Empty(t, svc.calls)
	})

	t.Run("marked order with padded id is dropped", func(t *testing.T) {
		svc := &fakeAttributor{}
		c := NewOrderEventConsumer(nil, nil, svc, setMarker{"o-1": true}, 0)
		assert.NoError(t, c.handle(ctx, orderMessage(t, "  o-1 ")))
		assert.Empty(t, svc.calls)
	})

	t.Run("failure goes to dead letter", func(t *testing.T) {
		svc := &fakeAttributor{err: errors.New("db down")}
		c := NewOrderEventConsumer(nil, nil, svc, setMarker{}, 0)
		assert.Error(t, c.handle(ctx, orderMessage(t, "o-2")))
	})

	t.Run("malformed payload", func(t *testing.T) {
		c := NewOrderEventConsumer(nil, nil, &fakeAttributor{}, nil, 0)
		assert.Error(t, c.handle(ctx, kafka.Message{Value: []byte(`{"order_total": "1.234"}`)}))
	})
}
