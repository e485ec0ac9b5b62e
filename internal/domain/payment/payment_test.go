package payment

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseStatus(t *testing.T) {
	cases := map[string]Status{
		"PENDING":    StatusPending,
		"pending":    StatusPending,
		" success ":  StatusSuccess,
		"successful": StatusSuccess,
		"FAILED":     StatusFailed,
		"":           StatusUnknown,
		"processing": StatusUnknown,
	}
	for in, want := range cases {
		require.Equal(t, want, ParseStatus(in), in)
	}
}

func TestStatusIsTerminal(t *testing.T) {
	require.True(t, StatusSuccess.IsTerminal())
	require.True(t, StatusFailed.IsTerminal())
	require.False(t, StatusPending.IsTerminal())
	require.False(t, StatusUnknown.IsTerminal())
}

func TestNewPendingHashesPhone(t *testing.T) {
	now := time.Now()
	p, err := NewPending("abc123", Request{Amount: 500, Phone: "0781234567", OrderID: "ORD-1"}, now)
	require.NoError(t, err)
	require.Equal(t, StatusPending, p.Status)
	require.Equal(t, "ORD-1", p.OrderID)
	require.Len(t, p.MSISDNHash, 64)
	require.NotContains(t, p.MSISDNHash, "0781234567")

	_, err = NewPending("", Request{Amount: 500}, now)
	require.Error(t, err)
	_, err = NewPending("abc", Request{Amount: 0}, now)
	require.Error(t, err)
}

func TestApplyStopsAtTerminal(t *testing.T) {
	now := time.Now()
	p, err := NewPending("abc", Request{Amount: 500}, now)
	require.NoError(t, err)

	require.False(t, p.Apply(StatusUnknown, now))
	require.False(t, p.Apply(StatusPending, now))
	require.True(t, p.Apply(StatusSuccess, now.Add(time.Second)))
	require.False(t, p.Apply(StatusFailed, now.Add(2*time.Second)))
	require.Equal(t, StatusSuccess, p.Status)
	require.Equal(t, now.Add(time.Second), p.UpdatedAt)
}
