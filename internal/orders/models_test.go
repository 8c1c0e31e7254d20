package orders

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewOrderComputesTotal(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.FixedZone("WIB", 7*3600))
	o, err := NewOrder("user-1", []LineInput{
		{BookID: uuid.New(), Quantity: 3, UnitPrice: decimal.RequireFromString("10.00")},
		{BookID: uuid.New(), Quantity: 2, UnitPrice: decimal.RequireFromString("5.50")},
	}, now)
	require.NoError(t, err)

	assert.True(t, o.Total.Equal(decimal.RequireFromString("41.00")), "total %s", o.Total)
	assert.Equal(t, StatusPending, o.Status)
	assert.Equal(t, time.UTC, o.CreatedAt.Location())
	require.Len(t, o.Lines, 2)
	for _, l := range o.Lines {
		assert.Equal(t, o.ID, l.OrderID)
		assert.NotEqual(t, uuid.Nil, l.ID)
	}
}

func TestNewOrderNoFloatDrift(t *testing.T) {
	o, err := NewOrder("u", []LineInput{
		{BookID: uuid.New(), Quantity: 3, UnitPrice: decimal.RequireFromString("0.10")},
		{BookID: uuid.New(), Quantity: 1, UnitPrice: decimal.RequireFromString("0.20")},
	}, time.Now())
	require.NoError(t, err)
	assert.Equal(t, "0.5", o.Total.String())
}

func TestNewOrderRejectsEmpty(t *testing.T) {
	_, err := NewOrder("user-1", nil, time.Now())
	assert.ErrorIs(t, err, ErrNoLines)
}

func TestConfirm(t *testing.T) {
	o := &Order{Status: StatusPending}
	require.NoError(t, o.Confirm())
	assert.Equal(t, StatusConfirmed, o.Status)

	assert.ErrorIs(t, o.Confirm(), ErrInvalidTransition)
}

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(StatusPending, StatusConfirmed))
	assert.False(t, CanTransition(StatusConfirmed, StatusPending))
	assert.False(t, CanTransition(Status("BOGUS"), StatusConfirmed))
}
