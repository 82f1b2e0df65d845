package consumer

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockClearer struct {
	cleared []string
	err     error
}

func (m *mockClearer) ClearCart(_ context.Context, userID string) error {
	if m.err != nil {
		return m.err
	}
	m.cleared = append(m.cleared, userID)
	return nil
}

func TestHandleMessage_ClearsUserCart(t *testing.T) {
	clearer := &mockClearer{}
	sut := &Consumer{carts: clearer}

	err := sut.handleMessage(context.Background(), []byte(`{"user_id":"u1","order_id":"o42"}`))
	require.NoError(t, err)
	assert.Equal(t, []string{"u1"}, clearer.cleared)
}

func TestHandleMessage_InvalidJSON(t *testing.T) {
	clearer := &mockClearer{}
	sut := &Consumer{carts: clearer}

	err := sut.handleMessage(context.Background(), []byte("{not json"))
	require.Error(t, err)
	assert.Empty(t, clearer.cleared)
}

func TestHandleMessage_MissingUserID(t *testing.T) {
	clearer := &mockClearer{}
	sut := &Consumer{carts: clearer}

	err := sut.handleMessage(context.Background(), []byte(`{"order_id":"o42"}`))
	require.ErrorContains(t, err, "missing user_id")
	assert.Empty(t, clearer.cleared)
}

func TestHandleMessage_ClearFailureIsReported(t *testing.T) {
	clearer := &mockClearer{err: errors.New("database down")}
	sut := &Consumer{carts: clearer}

	err := sut.handleMessage(context.Background(), []byte(`{"user_id":"u1"}`))
	require.ErrorContains(t, err, "clear cart for user u1")
}
